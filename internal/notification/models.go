package notification

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type identifies the event a notification announces.
type Type string

const (
	TypeTicketCreated          Type = "ticket_created"
	TypeTicketUpdated          Type = "ticket_updated"
	TypeTicketAssigned         Type = "ticket_assigned"
	TypeTicketComment          Type = "ticket_comment"
	TypeTicketResolved         Type = "ticket_resolved"
	TypeTicketClosed           Type = "ticket_closed"
	TypeSLAWarning             Type = "sla_warning"
	TypeSLABreach              Type = "sla_breach"
	TypeServiceRequestCreated  Type = "service_request_created"
	TypeServiceRequestApproved Type = "service_request_approved"
	TypeServiceRequestRejected Type = "service_request_rejected"
	TypeProjectRequestCreated  Type = "project_request_created"
	TypeProjectRequestApproved Type = "project_request_approved"
	TypeProjectRequestRejected Type = "project_request_rejected"
)

// Types lists every notification type in a stable order.
var Types = []Type{
	TypeTicketCreated,
	TypeTicketUpdated,
	TypeTicketAssigned,
	TypeTicketComment,
	TypeTicketResolved,
	TypeTicketClosed,
	TypeSLAWarning,
	TypeSLABreach,
	TypeServiceRequestCreated,
	TypeServiceRequestApproved,
	TypeServiceRequestRejected,
	TypeProjectRequestCreated,
	TypeProjectRequestApproved,
	TypeProjectRequestRejected,
}

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSlack    Channel = "slack"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Metadata keys understood by the dispatcher and the channel senders.
const (
	MetaActionURL    = "action_url"
	MetaTicketNumber = "ticket_number"
	MetaDeadlineKind = "deadline_kind"
	MetaVariables    = "variables"
)

// Payload is a single delivery request: one channel, one recipient.
type Payload struct {
	Type           Type
	Channel        Channel
	Recipient      string
	OrganizationID primitive.ObjectID
	UserID         *primitive.ObjectID
	TicketID       *primitive.ObjectID
	CommentID      *primitive.ObjectID
	Subject        string
	Message        string
	Metadata       map[string]any
}

// Message is what a channel sender receives. It carries the type and
// organization so senders can pick templates and styling.
type Message struct {
	Type           Type
	OrganizationID primitive.ObjectID
	Recipient      string
	Subject        string
	Body           string
	Metadata       map[string]any
}

// Result is the outcome of one send. Senders report failures here rather
// than through errors.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Failure builds an unsuccessful result.
func Failure(provider, reason string) Result {
	return Result{Success: false, Error: reason, Provider: provider}
}

// Sender delivers a rendered message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

// Senders maps each channel to its adapter.
type Senders map[Channel]Sender

// LogEntry is the persisted audit record of one delivery attempt. The
// collection is append-only and doubles as the dedup ledger.
type LogEntry struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrganizationID    primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	UserID            *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	TicketID          *primitive.ObjectID `bson:"ticket_id,omitempty" json:"ticket_id,omitempty"`
	CommentID         *primitive.ObjectID `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
	NotificationType  Type                `bson:"notification_type" json:"notification_type"`
	Channel           Channel             `bson:"channel" json:"channel"`
	Recipient         string              `bson:"recipient" json:"recipient"`
	Subject           string              `bson:"subject" json:"subject"`
	Message           string              `bson:"message" json:"message"`
	Status            Status              `bson:"status" json:"status"`
	SentAt            *time.Time          `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	FailedAt          *time.Time          `bson:"failed_at,omitempty" json:"failed_at,omitempty"`
	ErrorMessage      string              `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Provider          string              `bson:"provider" json:"provider"`
	ProviderMessageID string              `bson:"provider_message_id,omitempty" json:"provider_message_id,omitempty"`
	Metadata          map[string]any      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
}

// DedupKey identifies one announceable event. DeadlineKind is optional.
type DedupKey struct {
	TicketID     primitive.ObjectID
	Type         Type
	DeadlineKind string
}

// EmailTemplate is an organization-specific or system-wide email template.
// A nil OrganizationID marks a system template.
type EmailTemplate struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty"`
	Type           Type                `bson:"type"`
	Name           string              `bson:"name"`
	Subject        string              `bson:"subject"`
	HTMLBody       string              `bson:"html_body"`
	TextBody       string              `bson:"text_body"`
	IsDefault      bool                `bson:"is_default"`
	IsActive       bool                `bson:"is_active"`
	CreatedAt      time.Time           `bson:"created_at"`
}
