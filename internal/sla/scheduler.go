package sla

import (
	"context"
	"time"

	"SLAMonitor/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler runs the batch sweep on a fixed interval inside the process.
// Deployments that drive the sweep from an external cron through the HTTP
// endpoint can switch it off with SLA_SCHEDULER_ENABLED=false.
type Scheduler struct {
	monitor  *Monitor
	interval time.Duration
	enabled  bool
	logger   *zap.Logger
}

func NewScheduler(monitor *Monitor, cfg *config.MonitorConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		monitor:  monitor,
		interval: cfg.CheckInterval,
		enabled:  cfg.SchedulerEnabled && cfg.CheckInterval > 0,
		logger:   logger,
	}
}

// StartScheduler hooks the sweep loop into the fx lifecycle.
func (s *Scheduler) StartScheduler(lc fx.Lifecycle) {
	if !s.enabled {
		s.logger.Info("SLA scheduler disabled; sweeps run only through the cron endpoint")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info("Starting SLA scheduler", zap.Duration("interval", s.interval))
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			s.logger.Info("Stopping SLA scheduler")
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// Run sweeps once right away and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.monitor.CheckAndNotifySLA(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.monitor.CheckAndNotifySLA(ctx)
		case <-ctx.Done():
			return
		}
	}
}
