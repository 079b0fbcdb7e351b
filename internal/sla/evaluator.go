package sla

import (
	"time"

	"SLAMonitor/internal/notification"
)

type deadline struct {
	kind   DeadlineKind
	due    *time.Time
	actual *time.Time
}

// Classify returns the single deadline event due for a ticket at now, or nil
// when every deadline is ok, satisfied or absent.
//
// First response is checked before resolution and wins when both would
// fire. At most one event per ticket per pass keeps notification volume
// bounded; the other deadline is picked up on a later pass.
func Classify(t *Ticket, p Policy, now time.Time) *DeadlineEvent {
	if t == nil || t.IsTerminal() {
		return nil
	}
	deadlines := []deadline{
		{kind: KindFirstResponse, due: t.FirstResponseDueAt, actual: t.FirstResponseAt},
		{kind: KindResolution, due: t.ResolutionDueAt, actual: t.ResolvedAt},
	}
	for _, d := range deadlines {
		if d.actual != nil || d.due == nil {
			continue
		}
		class, pct := classifyDeadline(t.CreatedAt, *d.due, p, now)
		if class == ClassOK {
			continue
		}
		return &DeadlineEvent{
			TicketID:         t.ID,
			Kind:             d.kind,
			Classification:   class,
			DueAt:            *d.due,
			ComputedAt:       now,
			PercentRemaining: pct,
		}
	}
	return nil
}

func classifyDeadline(created, due time.Time, p Policy, now time.Time) (Classification, float64) {
	if due.Before(now) {
		return ClassBreach, 0
	}
	window := due.Sub(created)
	if window <= 0 {
		// Zero-length SLA: due at creation.
		if !now.Before(due) {
			return ClassBreach, 0
		}
		return ClassWarning, 0
	}
	remaining := due.Sub(now)
	pct := float64(remaining) / float64(window) * 100
	// The threshold itself counts as warning: 25% left on a 10h window
	// flips at exactly 7h30m elapsed.
	if pct <= p.WarningThresholdPercent {
		return ClassWarning, pct
	}
	if p.WarningHoursBefore > 0 && remaining <= p.WarningHoursBefore {
		return ClassWarning, pct
	}
	return ClassOK, pct
}

// NotificationType maps an event onto the notification type it announces.
func (e *DeadlineEvent) NotificationType() notification.Type {
	if e.Classification == ClassBreach {
		return notification.TypeSLABreach
	}
	return notification.TypeSLAWarning
}

// HoursUntilDue is negative once the deadline has passed.
func (e *DeadlineEvent) HoursUntilDue() float64 {
	return e.DueAt.Sub(e.ComputedAt).Hours()
}
