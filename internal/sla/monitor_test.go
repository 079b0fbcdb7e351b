package sla

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeStore struct {
	tickets   map[primitive.ObjectID]*Ticket
	users     map[primitive.ObjectID]*User
	orgs      map[primitive.ObjectID]*Organization
	attention func() ([]*Ticket, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: map[primitive.ObjectID]*Ticket{},
		users:   map[primitive.ObjectID]*User{},
		orgs:    map[primitive.ObjectID]*Organization{},
	}
}

func (s *fakeStore) FindTicket(_ context.Context, id primitive.ObjectID) (*Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (s *fakeStore) FindUser(_ context.Context, id primitive.ObjectID) (*User, error) {
	return s.users[id], nil
}

func (s *fakeStore) FindOrganization(_ context.Context, id primitive.ObjectID) (*Organization, error) {
	return s.orgs[id], nil
}

func (s *fakeStore) FindTicketsNeedingAttention(context.Context, Policy, time.Time) ([]*Ticket, error) {
	if s.attention != nil {
		return s.attention()
	}
	var out []*Ticket
	for _, t := range s.tickets {
		out = append(out, t)
	}
	return out, nil
}

// memLog is an in-memory notification log that answers dedup lookups the
// same way the Mongo repository does.
type memLog struct {
	mu        sync.Mutex
	entries   []notification.LogEntry
	ledgerErr error
}

func (l *memLog) InsertLog(_ context.Context, e *notification.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = primitive.NewObjectID()
	l.entries = append(l.entries, *e)
	return nil
}

func (l *memLog) WasRecentlyNotified(_ context.Context, key notification.DedupKey, cooldown time.Duration, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ledgerErr != nil {
		return false, l.ledgerErr
	}
	since := now.Add(-cooldown)
	for _, e := range l.entries {
		if e.TicketID == nil || *e.TicketID != key.TicketID || e.NotificationType != key.Type {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		if key.DeadlineKind != "" && e.Metadata[notification.MetaDeadlineKind] != key.DeadlineKind {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (l *memLog) RecentForTicket(_ context.Context, ticketID primitive.ObjectID, limit int64) ([]*notification.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*notification.LogEntry
	for i := len(l.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if e := l.entries[i]; e.TicketID != nil && *e.TicketID == ticketID {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (l *memLog) all() []notification.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notification.LogEntry(nil), l.entries...)
}

type recordingSender struct {
	mu       sync.Mutex
	channel  notification.Channel
	messages []notification.Message
	fail     map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg notification.Message) notification.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if s.fail[msg.Recipient] {
		return notification.Failure(string(s.channel), "mailbox unavailable")
	}
	return notification.Result{Success: true, MessageID: "msg-1", Provider: string(s.channel)}
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type monitorFixture struct {
	clock   *fakeClock
	store   *fakeStore
	logs    *memLog
	email   *recordingSender
	sms     *recordingSender
	slack   *recordingSender
	monitor *Monitor
	ticket  *Ticket
	creator *User
}

func newMonitorFixture(t *testing.T, policy Policy) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		clock: &fakeClock{now: t0},
		store: newFakeStore(),
		logs:  &memLog{},
		email: &recordingSender{channel: notification.ChannelEmail, fail: map[string]bool{}},
		sms:   &recordingSender{channel: notification.ChannelSMS, fail: map[string]bool{}},
		slack: &recordingSender{channel: notification.ChannelSlack, fail: map[string]bool{}},
	}

	org := &Organization{
		ID:   primitive.NewObjectID(),
		Name: "Acme",
		Preferences: OrganizationPreferences{
			SlackEnabled:    true,
			SlackWebhookURL: "https://hooks.slack.test/acme",
			EventFlags:      allFlags(),
		},
	}
	f.creator = newUser("Grace", "grace@example.com")
	f.creator.Preferences.SMSEnabled = true
	f.creator.Preferences.SMSNumber = "+15550100"

	f.ticket = openTicket()
	f.ticket.OrganizationID = org.ID
	f.ticket.CreatedBy = f.creator.ID
	f.ticket.FirstResponseDueAt = at(4 * time.Hour)

	f.store.orgs[org.ID] = org
	f.store.users[f.creator.ID] = f.creator
	f.store.tickets[f.ticket.ID] = f.ticket

	logger := zap.NewNop()
	dispatcher := notification.NewDispatcher(f.logs, notification.Senders{
		notification.ChannelEmail: f.email,
		notification.ChannelSMS:   f.sms,
		notification.ChannelSlack: f.slack,
	}, logger, notification.WithClock(f.clock.Now), notification.WithTimeout(time.Second))

	portal := &config.PortalConfig{Name: "Acme Support", URL: "https://portal.test"}
	f.monitor = NewMonitor(f.store, f.logs, dispatcher, policy, portal, logger,
		WithMonitorClock(f.clock.Now), WithOnDemandTimeout(time.Second))
	return f
}

func TestCheckTicketSLA_WarningThenCooldownThenBreach(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	id := f.ticket.ID.Hex()

	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))
	require.True(t, f.monitor.CheckTicketSLA(context.Background(), id))

	entries := f.logs.all()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, notification.StatusSent, e.Status)
		assert.Equal(t, notification.TypeSLAWarning, e.NotificationType)
		assert.Equal(t, "first_response", e.Metadata[notification.MetaDeadlineKind])
		assert.Equal(t, "https://portal.test/tickets/"+id, e.Metadata[notification.MetaActionURL])
		require.NotNil(t, e.SentAt)
	}
	assert.Equal(t, "SLA Warning: Ticket #1001 - Printer on fire", entries[0].Subject)

	f.clock.Set(t0.Add(3*time.Hour + 40*time.Minute))
	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), id))
	assert.Len(t, f.logs.all(), 3)

	f.clock.Set(t0.Add(4*time.Hour + 5*time.Minute))
	require.True(t, f.monitor.CheckTicketSLA(context.Background(), id))

	entries = f.logs.all()
	require.Len(t, entries, 6)
	for _, e := range entries[3:] {
		assert.Equal(t, notification.TypeSLABreach, e.NotificationType)
	}
	assert.Equal(t, 2, f.email.count())
	assert.Equal(t, 2, f.sms.count())
	assert.Equal(t, 2, f.slack.count())
}

func TestCheckTicketSLA_Idempotent(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))

	assert.True(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	assert.Len(t, f.logs.all(), 3)
}

func TestCheckTicketSLA_FailedDeliveriesCountForCooldown(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.email.fail["grace@example.com"] = true
	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))

	assert.True(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	entries := f.logs.all()
	require.Len(t, entries, 3)

	var failed int
	for _, e := range entries {
		if e.Status == notification.StatusFailed {
			failed++
			assert.Equal(t, "mailbox unavailable", e.ErrorMessage)
			assert.NotNil(t, e.FailedAt)
		}
	}
	assert.Equal(t, 1, failed)

	f.clock.Set(t0.Add(3*time.Hour + 20*time.Minute))
	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
}

func TestCheckTicketSLA_InvalidInput(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.clock.Set(t0.Add(5 * time.Hour))

	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), "not-an-id"))
	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), primitive.NewObjectID().Hex()))
	assert.Empty(t, f.logs.all())
}

func TestCheckTicketSLA_OKTicket(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.clock.Set(t0.Add(time.Hour))

	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	assert.Empty(t, f.logs.all())
}

func TestCheckTicketSLA_BreachDeferredToSweep(t *testing.T) {
	p := DefaultPolicy()
	p.ImmediateBreachNotify = false
	f := newMonitorFixture(t, p)
	f.clock.Set(t0.Add(4*time.Hour + 5*time.Minute))

	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	assert.Empty(t, f.logs.all())

	summary := f.monitor.CheckAndNotifySLA(context.Background())
	assert.Equal(t, 1, summary.Notified)
	assert.Len(t, f.logs.all(), 3)
}

func TestCheckTicketSLA_LedgerErrorStillNotifies(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.logs.ledgerErr = errors.New("connection reset")
	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))

	assert.True(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
}

func TestCheckTicketSLA_NoRecipients(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.creator.Preferences = UserPreferences{}
	for _, o := range f.store.orgs {
		o.Preferences.SlackEnabled = false
	}
	f.clock.Set(t0.Add(5 * time.Hour))

	assert.False(t, f.monitor.CheckTicketSLA(context.Background(), f.ticket.ID.Hex()))
	assert.Empty(t, f.logs.all())
}

func TestCheckAndNotifySLA_ContinuesPastFailures(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())

	broken := newUser("Broken", "broken@example.com")
	f.store.users[broken.ID] = broken
	f.email.fail["broken@example.com"] = true

	second := openTicket()
	second.Number = "1002"
	second.CreatedBy = broken.ID
	second.ResolutionDueAt = at(2 * time.Hour)
	f.store.tickets[second.ID] = second

	ok := openTicket()
	ok.Number = "1003"
	ok.ResolutionDueAt = at(100 * time.Hour)
	f.store.tickets[ok.ID] = ok

	f.store.attention = func() ([]*Ticket, error) {
		return []*Ticket{second, f.ticket, ok}, nil
	}
	f.clock.Set(t0.Add(3*time.Hour + 10*time.Minute))

	summary := f.monitor.CheckAndNotifySLA(context.Background())
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 2, summary.Notified)
	require.Len(t, summary.Tickets, 3)

	first := summary.Tickets[0]
	assert.Equal(t, "1002", first.TicketNumber)
	assert.Equal(t, ClassBreach, first.Classification)
	assert.True(t, first.Notified)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, 0, first.Delivered)
	assert.Contains(t, first.Error, "mailbox unavailable")

	assert.True(t, summary.Tickets[1].Notified)
	assert.Equal(t, 3, summary.Tickets[1].Delivered)
	assert.Empty(t, summary.Tickets[1].Error)

	assert.False(t, summary.Tickets[2].Notified)
	assert.Equal(t, ClassOK, summary.Tickets[2].Classification)

	again := f.monitor.CheckAndNotifySLA(context.Background())
	assert.Equal(t, 3, again.Checked)
	assert.Equal(t, 0, again.Notified)
	assert.True(t, again.Tickets[0].Suppressed)
}

func TestCheckAndNotifySLA_QueryError(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	f.store.attention = func() ([]*Ticket, error) { return nil, errors.New("boom") }

	summary := f.monitor.CheckAndNotifySLA(context.Background())
	assert.Equal(t, 0, summary.Checked)
	assert.NotNil(t, summary.Tickets)
}

func TestCheckAndNotifySLA_SkipsOverlappingSweep(t *testing.T) {
	f := newMonitorFixture(t, DefaultPolicy())
	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.attention = func() ([]*Ticket, error) {
		close(entered)
		<-release
		return nil, nil
	}

	done := make(chan SweepSummary)
	go func() { done <- f.monitor.CheckAndNotifySLA(context.Background()) }()
	<-entered

	overlapping := f.monitor.CheckAndNotifySLA(context.Background())
	assert.True(t, overlapping.Skipped)

	close(release)
	first := <-done
	assert.False(t, first.Skipped)
}
