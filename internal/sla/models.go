package sla

import (
	"time"

	"SLAMonitor/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusWaiting    = "waiting"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Ticket is the portal's ticket document. The monitor never writes it.
type Ticket struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Number             string              `bson:"ticket_number" json:"ticket_number"`
	Subject            string              `bson:"subject" json:"subject"`
	Priority           string              `bson:"priority" json:"priority"`
	Status             string              `bson:"status" json:"status"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	FirstResponseDueAt *time.Time          `bson:"first_response_due_at,omitempty" json:"first_response_due_at,omitempty"`
	FirstResponseAt    *time.Time          `bson:"first_response_at,omitempty" json:"first_response_at,omitempty"`
	ResolutionDueAt    *time.Time          `bson:"resolution_due_at,omitempty" json:"resolution_due_at,omitempty"`
	ResolvedAt         *time.Time          `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	OrganizationID     primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	AssignedTo         *primitive.ObjectID `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	CreatedBy          primitive.ObjectID  `bson:"created_by" json:"created_by"`
}

// IsTerminal reports whether the ticket is out of SLA scope.
func (t *Ticket) IsTerminal() bool {
	return t.Status == StatusResolved || t.Status == StatusClosed || t.ResolvedAt != nil
}

// UserPreferences is embedded in the user document.
type UserPreferences struct {
	EmailEnabled    bool   `bson:"email_enabled"`
	SMSEnabled      bool   `bson:"sms_enabled"`
	WhatsAppEnabled bool   `bson:"whatsapp_enabled"`
	SMSNumber       string `bson:"sms_number"`
	WhatsAppNumber  string `bson:"whatsapp_number"`

	EventFlags `bson:",inline"`
}

// OrganizationPreferences is embedded in the organization document.
type OrganizationPreferences struct {
	SlackEnabled    bool   `bson:"slack_enabled"`
	SlackWebhookURL string `bson:"slack_webhook_url"`

	EventFlags `bson:",inline"`
}

// EventFlags toggles each notification type independently.
type EventFlags struct {
	NotifyOnTicketCreated          bool `bson:"notify_on_ticket_created"`
	NotifyOnTicketUpdated          bool `bson:"notify_on_ticket_updated"`
	NotifyOnTicketAssigned         bool `bson:"notify_on_ticket_assigned"`
	NotifyOnTicketComment          bool `bson:"notify_on_ticket_comment"`
	NotifyOnTicketResolved         bool `bson:"notify_on_ticket_resolved"`
	NotifyOnTicketClosed           bool `bson:"notify_on_ticket_closed"`
	NotifyOnSLAWarning             bool `bson:"notify_on_sla_warning"`
	NotifyOnSLABreach              bool `bson:"notify_on_sla_breach"`
	NotifyOnServiceRequestCreated  bool `bson:"notify_on_service_request_created"`
	NotifyOnServiceRequestApproved bool `bson:"notify_on_service_request_approved"`
	NotifyOnServiceRequestRejected bool `bson:"notify_on_service_request_rejected"`
	NotifyOnProjectRequestCreated  bool `bson:"notify_on_project_request_created"`
	NotifyOnProjectRequestApproved bool `bson:"notify_on_project_request_approved"`
	NotifyOnProjectRequestRejected bool `bson:"notify_on_project_request_rejected"`
}

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID `bson:"organization_id"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	Preferences    UserPreferences    `bson:"notification_preferences"`
}

type Organization struct {
	ID          primitive.ObjectID      `bson:"_id,omitempty"`
	Name        string                  `bson:"name"`
	Preferences OrganizationPreferences `bson:"notification_preferences"`
}

// TicketContext is a ticket with the parties that may be notified. Creator,
// assignee and organization are nil when they could not be loaded.
type TicketContext struct {
	Ticket       *Ticket
	Creator      *User
	Assignee     *User
	Organization *Organization
}

// Policy is the SLA configuration the evaluator applies.
type Policy struct {
	WarningThresholdPercent float64
	WarningHoursBefore      time.Duration
	Cooldown                time.Duration
	ImmediateBreachNotify   bool
}

// DefaultPolicy is 25% remaining, 4h cooldown, breaches announced at once.
func DefaultPolicy() Policy {
	return Policy{
		WarningThresholdPercent: 25,
		Cooldown:                4 * time.Hour,
		ImmediateBreachNotify:   true,
	}
}

func NewPolicy(cfg *config.MonitorConfig) Policy {
	p := DefaultPolicy()
	if cfg.WarningThresholdPercent > 0 {
		p.WarningThresholdPercent = cfg.WarningThresholdPercent
	}
	if cfg.Cooldown > 0 {
		p.Cooldown = cfg.Cooldown
	}
	p.WarningHoursBefore = cfg.WarningHoursBefore
	p.ImmediateBreachNotify = cfg.ImmediateBreachNotify
	return p
}

type DeadlineKind string

const (
	KindFirstResponse DeadlineKind = "first_response"
	KindResolution    DeadlineKind = "resolution"
)

type Classification string

const (
	ClassOK      Classification = "ok"
	ClassWarning Classification = "warning"
	ClassBreach  Classification = "breach"
)

// DeadlineEvent is computed on every evaluation and never stored.
type DeadlineEvent struct {
	TicketID         primitive.ObjectID `json:"ticket_id"`
	Kind             DeadlineKind       `json:"kind"`
	Classification   Classification     `json:"classification"`
	DueAt            time.Time          `json:"due_at"`
	ComputedAt       time.Time          `json:"computed_at"`
	PercentRemaining float64            `json:"percent_remaining"`
}

// TicketOutcome summarizes what one evaluation did for a ticket.
type TicketOutcome struct {
	TicketID       string         `json:"ticket_id"`
	TicketNumber   string         `json:"ticket_number,omitempty"`
	Kind           DeadlineKind   `json:"kind,omitempty"`
	Classification Classification `json:"classification"`
	Notified       bool           `json:"notified"`
	Suppressed     bool           `json:"suppressed,omitempty"`
	Attempts       int            `json:"attempts,omitempty"`
	Delivered      int            `json:"delivered,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// SweepSummary is the batch sweep's report.
type SweepSummary struct {
	Checked  int             `json:"checked"`
	Notified int             `json:"notified"`
	Tickets  []TicketOutcome `json:"tickets"`
	Skipped  bool            `json:"skipped,omitempty"`
}
