package sla

import (
	"context"
	"testing"
	"time"

	"SLAMonitor/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestScheduler_RunSweepsOnStart(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))
	s := NewScheduler(f.monitor, &config.MonitorConfig{SchedulerEnabled: true, CheckInterval: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return len(f.logs.all()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Len(t, f.logs.all(), 3)
}

func TestScheduler_DisabledWithoutInterval(t *testing.T) {
	s := NewScheduler(nil, &config.MonitorConfig{SchedulerEnabled: true}, zap.NewNop())
	assert.False(t, s.enabled)

	s = NewScheduler(nil, &config.MonitorConfig{CheckInterval: time.Minute}, zap.NewNop())
	assert.False(t, s.enabled)
}
