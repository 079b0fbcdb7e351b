package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slamonitor_notifications_dispatched_total",
		Help: "Notification delivery attempts by channel and outcome.",
	}, []string{"channel", "status"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slamonitor_notification_send_duration_seconds",
		Help:    "Time spent in a channel sender.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	logWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slamonitor_notification_log_errors_total",
		Help: "Notification log inserts that failed.",
	})
)

const logWriteTimeout = 5 * time.Second

// LogWriter persists delivery records.
type LogWriter interface {
	InsertLog(ctx context.Context, entry *LogEntry) error
}

// Dispatcher routes payloads to channel senders and records every attempt.
type Dispatcher struct {
	senders Senders
	logs    LogWriter
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each sender call.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithClock overrides the clock used for log timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(disp *Dispatcher) { disp.now = now }
}

func NewDispatcher(logs LogWriter, senders Senders, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		senders: senders,
		logs:    logs,
		logger:  logger,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one payload and writes exactly one log entry for it. Log
// write failures are logged and never change the returned result.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Result {
	start := time.Now()
	var res Result
	sender, ok := d.senders[p.Channel]
	if !ok || sender == nil {
		res = Failure(string(p.Channel), fmt.Sprintf("%s service not configured", p.Channel))
	} else {
		res = d.send(ctx, sender, p)
	}
	dispatchDuration.WithLabelValues(string(p.Channel)).Observe(time.Since(start).Seconds())

	status := StatusSent
	if !res.Success {
		status = StatusFailed
	}
	dispatchTotal.WithLabelValues(string(p.Channel), string(status)).Inc()

	d.record(ctx, p, res)
	return res
}

// DispatchAll sends every payload concurrently. Results line up with the
// input; one failure never cancels the others.
func (d *Dispatcher) DispatchAll(ctx context.Context, payloads []Payload) []Result {
	results := make([]Result, len(payloads))
	var g errgroup.Group
	for i := range payloads {
		i := i
		g.Go(func() error {
			results[i] = d.Dispatch(ctx, payloads[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, p Payload) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg := Message{
		Type:           p.Type,
		OrganizationID: p.OrganizationID,
		Recipient:      p.Recipient,
		Subject:        p.Subject,
		Body:           p.Message,
		Metadata:       p.Metadata,
	}

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Failure(string(p.Channel), fmt.Sprintf("%s sender panicked: %v", p.Channel, r))
			}
		}()
		done <- sender.Send(ctx, msg)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Failure(string(p.Channel), fmt.Sprintf("%s send aborted: %v", p.Channel, ctx.Err()))
	}
}

func (d *Dispatcher) record(ctx context.Context, p Payload, res Result) {
	now := d.now()
	entry := &LogEntry{
		OrganizationID:    p.OrganizationID,
		UserID:            p.UserID,
		TicketID:          p.TicketID,
		CommentID:         p.CommentID,
		NotificationType:  p.Type,
		Channel:           p.Channel,
		Recipient:         p.Recipient,
		Subject:           p.Subject,
		Message:           p.Message,
		Provider:          res.Provider,
		ProviderMessageID: res.MessageID,
		Metadata:          p.Metadata,
		CreatedAt:         now,
	}
	if entry.Provider == "" {
		entry.Provider = string(p.Channel)
	}
	if res.Success {
		entry.Status = StatusSent
		entry.SentAt = &now
	} else {
		entry.Status = StatusFailed
		entry.FailedAt = &now
		entry.ErrorMessage = res.Error
	}

	// The audit row must land even when the caller's context is done.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
	defer cancel()
	if err := d.logs.InsertLog(logCtx, entry); err != nil {
		logWriteErrors.Inc()
		d.logger.Error("failed to write notification log",
			zap.String("type", string(p.Type)),
			zap.String("channel", string(p.Channel)),
			zap.String("recipient", p.Recipient),
			zap.Error(err))
	}
}
