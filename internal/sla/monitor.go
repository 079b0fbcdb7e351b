package sla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slamonitor_sweeps_total",
		Help: "Batch sweeps by result.",
	}, []string{"result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slamonitor_sweep_duration_seconds",
		Help:    "Duration of batch sweeps.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slamonitor_deadline_events_total",
		Help: "Deadline events by kind, classification and outcome.",
	}, []string{"kind", "classification", "outcome"})
)

// TicketStore is the read access the monitor needs.
type TicketStore interface {
	FindTicket(ctx context.Context, id primitive.ObjectID) (*Ticket, error)
	FindUser(ctx context.Context, id primitive.ObjectID) (*User, error)
	FindOrganization(ctx context.Context, id primitive.ObjectID) (*Organization, error)
	FindTicketsNeedingAttention(ctx context.Context, p Policy, now time.Time) ([]*Ticket, error)
}

// Ledger answers whether an event was already announced.
type Ledger interface {
	WasRecentlyNotified(ctx context.Context, key notification.DedupKey, cooldown time.Duration, now time.Time) (bool, error)
}

// Dispatcher delivers payloads.
type Dispatcher interface {
	DispatchAll(ctx context.Context, payloads []notification.Payload) []notification.Result
}

// Monitor runs the classify, dedup, format, dispatch pipeline.
type Monitor struct {
	tickets    TicketStore
	ledger     Ledger
	dispatcher Dispatcher
	policy     Policy
	portal     *config.PortalConfig
	logger     *zap.Logger

	onDemandTimeout time.Duration
	now             func() time.Time
	sweepMu         sync.Mutex
}

type MonitorOption func(*Monitor)

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func WithOnDemandTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.onDemandTimeout = d
		}
	}
}

func NewMonitor(tickets TicketStore, ledger Ledger, dispatcher Dispatcher, policy Policy, portal *config.PortalConfig, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		tickets:         tickets,
		ledger:          ledger,
		dispatcher:      dispatcher,
		policy:          policy,
		portal:          portal,
		logger:          logger,
		onDemandTimeout: 3 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckAndNotifySLA sweeps every ticket needing attention. Failures on one
// ticket are recorded in its outcome and the sweep moves on. A sweep that
// starts while another is running in this process is skipped.
func (m *Monitor) CheckAndNotifySLA(ctx context.Context) SweepSummary {
	summary := SweepSummary{Tickets: []TicketOutcome{}}
	if !m.sweepMu.TryLock() {
		m.logger.Warn("SLA sweep already running, skipping")
		sweepsTotal.WithLabelValues("skipped").Inc()
		summary.Skipped = true
		return summary
	}
	defer m.sweepMu.Unlock()

	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	now := m.now()
	tickets, err := m.tickets.FindTicketsNeedingAttention(ctx, m.policy, now)
	if err != nil {
		m.logger.Error("failed to fetch tickets needing SLA attention", zap.Error(err))
		sweepsTotal.WithLabelValues("error").Inc()
		return summary
	}

	for _, t := range tickets {
		if ctx.Err() != nil {
			m.logger.Warn("SLA sweep interrupted", zap.Error(ctx.Err()), zap.Int("checked", summary.Checked))
			break
		}
		summary.Checked++
		outcome := m.evaluate(ctx, t, now, true)
		if outcome.Notified {
			summary.Notified++
		}
		summary.Tickets = append(summary.Tickets, outcome)
	}

	sweepsTotal.WithLabelValues("completed").Inc()
	m.logger.Info("SLA sweep finished",
		zap.Int("checked", summary.Checked),
		zap.Int("notified", summary.Notified),
		zap.Duration("duration", time.Since(start)))
	return summary
}

// CheckTicketSLA re-evaluates one ticket and reports whether a notification
// went out. Invalid ids and lookup failures report false.
func (m *Monitor) CheckTicketSLA(ctx context.Context, ticketID string) bool {
	id, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		m.logger.Debug("invalid ticket id for SLA check", zap.String("ticket_id", ticketID))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, m.onDemandTimeout)
	defer cancel()

	t, err := m.tickets.FindTicket(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrTicketNotFound) {
			m.logger.Warn("SLA check ticket lookup failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return false
	}
	return m.evaluate(ctx, t, m.now(), m.policy.ImmediateBreachNotify).Notified
}

// evaluate runs the pipeline for one ticket. allowBreach false leaves breach
// events to the batch sweep.
func (m *Monitor) evaluate(ctx context.Context, t *Ticket, now time.Time, allowBreach bool) TicketOutcome {
	outcome := TicketOutcome{
		TicketID:       t.ID.Hex(),
		TicketNumber:   t.Number,
		Classification: ClassOK,
	}

	event := Classify(t, m.policy, now)
	if event == nil {
		return outcome
	}
	outcome.Kind = event.Kind
	outcome.Classification = event.Classification

	if event.Classification == ClassBreach && !allowBreach {
		eventsTotal.WithLabelValues(string(event.Kind), string(event.Classification), "deferred").Inc()
		return outcome
	}

	nType := event.NotificationType()
	key := notification.DedupKey{TicketID: t.ID, Type: nType, DeadlineKind: string(event.Kind)}
	recent, err := m.ledger.WasRecentlyNotified(ctx, key, m.policy.Cooldown, now)
	if err != nil {
		// Best effort: a ledger outage must not silence a deadline.
		m.logger.Warn("dedup lookup failed, notifying anyway",
			zap.String("ticket_id", outcome.TicketID), zap.Error(err))
	}
	if recent {
		outcome.Suppressed = true
		eventsTotal.WithLabelValues(string(event.Kind), string(event.Classification), "suppressed").Inc()
		return outcome
	}

	tc := m.loadContext(ctx, t)
	content := notification.Format(nType, m.formatContext(tc, event))
	payloads := BuildPayloads(tc, nType, content, m.metadata(t, event))
	if len(payloads) == 0 {
		eventsTotal.WithLabelValues(string(event.Kind), string(event.Classification), "no_recipients").Inc()
		m.logger.Info("SLA event has no enabled recipients",
			zap.String("ticket_id", outcome.TicketID),
			zap.String("type", string(nType)))
		return outcome
	}

	results := m.dispatcher.DispatchAll(ctx, payloads)
	outcome.Notified = true
	outcome.Attempts = len(results)
	var firstErr string
	for _, r := range results {
		if r.Success {
			outcome.Delivered++
		} else if firstErr == "" {
			firstErr = r.Error
		}
	}
	if outcome.Delivered < outcome.Attempts {
		outcome.Error = fmt.Sprintf("%d of %d deliveries failed: %s", outcome.Attempts-outcome.Delivered, outcome.Attempts, firstErr)
	}
	eventsTotal.WithLabelValues(string(event.Kind), string(event.Classification), "dispatched").Inc()
	m.logger.Info("SLA notification dispatched",
		zap.String("ticket_id", outcome.TicketID),
		zap.String("ticket_number", t.Number),
		zap.String("type", string(nType)),
		zap.String("kind", string(event.Kind)),
		zap.Int("attempts", outcome.Attempts),
		zap.Int("delivered", outcome.Delivered))
	return outcome
}

// loadContext fetches the parties of a ticket. Missing or failed lookups
// leave the party nil so the others are still notified.
func (m *Monitor) loadContext(ctx context.Context, t *Ticket) TicketContext {
	tc := TicketContext{Ticket: t}
	if !t.CreatedBy.IsZero() {
		u, err := m.tickets.FindUser(ctx, t.CreatedBy)
		if err != nil {
			m.logger.Warn("failed to load ticket creator", zap.String("ticket_id", t.ID.Hex()), zap.Error(err))
		}
		tc.Creator = u
	}
	if t.AssignedTo != nil && !t.AssignedTo.IsZero() {
		u, err := m.tickets.FindUser(ctx, *t.AssignedTo)
		if err != nil {
			m.logger.Warn("failed to load ticket assignee", zap.String("ticket_id", t.ID.Hex()), zap.Error(err))
		}
		tc.Assignee = u
	}
	if !t.OrganizationID.IsZero() {
		o, err := m.tickets.FindOrganization(ctx, t.OrganizationID)
		if err != nil {
			m.logger.Warn("failed to load ticket organization", zap.String("ticket_id", t.ID.Hex()), zap.Error(err))
		}
		tc.Organization = o
	}
	return tc
}

func (m *Monitor) formatContext(tc TicketContext, e *DeadlineEvent) notification.FormatContext {
	fc := notification.FormatContext{
		TicketNumber:  tc.Ticket.Number,
		TicketSubject: tc.Ticket.Subject,
		Priority:      tc.Ticket.Priority,
		Status:        tc.Ticket.Status,
		DeadlineKind:  string(e.Kind),
	}
	if h := e.HoursUntilDue(); h >= 0 {
		fc.HoursUntilDue = h
	} else {
		fc.HoursOverdue = -h
	}
	if tc.Assignee != nil {
		fc.AssigneeName = tc.Assignee.Name
	}
	return fc
}

func (m *Monitor) metadata(t *Ticket, e *DeadlineEvent) map[string]any {
	meta := map[string]any{
		notification.MetaDeadlineKind: string(e.Kind),
		notification.MetaTicketNumber: t.Number,
		"classification":              string(e.Classification),
		"due_at":                      e.DueAt.UTC().Format(time.RFC3339),
		"percent_remaining":           e.PercentRemaining,
	}
	if m.portal != nil {
		url := m.portal.TicketURL(t.ID.Hex())
		meta[notification.MetaActionURL] = url
		meta[notification.MetaVariables] = map[string]string{
			"ticket_number":  t.Number,
			"ticket_subject": t.Subject,
			"ticket_url":     url,
			"priority":       t.Priority,
			"deadline_kind":  string(e.Kind),
			"due_at":         e.DueAt.UTC().Format(time.RFC1123),
		}
	}
	return meta
}
