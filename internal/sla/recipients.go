package sla

import (
	"strings"

	"SLAMonitor/internal/notification"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// eventFlag reads the per-type toggle from a preference set.
var eventFlag = map[notification.Type]func(EventFlags) bool{
	notification.TypeTicketCreated:          func(f EventFlags) bool { return f.NotifyOnTicketCreated },
	notification.TypeTicketUpdated:          func(f EventFlags) bool { return f.NotifyOnTicketUpdated },
	notification.TypeTicketAssigned:         func(f EventFlags) bool { return f.NotifyOnTicketAssigned },
	notification.TypeTicketComment:          func(f EventFlags) bool { return f.NotifyOnTicketComment },
	notification.TypeTicketResolved:         func(f EventFlags) bool { return f.NotifyOnTicketResolved },
	notification.TypeTicketClosed:           func(f EventFlags) bool { return f.NotifyOnTicketClosed },
	notification.TypeSLAWarning:             func(f EventFlags) bool { return f.NotifyOnSLAWarning },
	notification.TypeSLABreach:              func(f EventFlags) bool { return f.NotifyOnSLABreach },
	notification.TypeServiceRequestCreated:  func(f EventFlags) bool { return f.NotifyOnServiceRequestCreated },
	notification.TypeServiceRequestApproved: func(f EventFlags) bool { return f.NotifyOnServiceRequestApproved },
	notification.TypeServiceRequestRejected: func(f EventFlags) bool { return f.NotifyOnServiceRequestRejected },
	notification.TypeProjectRequestCreated:  func(f EventFlags) bool { return f.NotifyOnProjectRequestCreated },
	notification.TypeProjectRequestApproved: func(f EventFlags) bool { return f.NotifyOnProjectRequestApproved },
	notification.TypeProjectRequestRejected: func(f EventFlags) bool { return f.NotifyOnProjectRequestRejected },
}

// Enabled reports whether the flags allow notifications of type t.
func (f EventFlags) Enabled(t notification.Type) bool {
	flag, ok := eventFlag[t]
	return ok && flag(f)
}

// userChannel describes one per-user channel: its switch and its address.
type userChannel struct {
	channel notification.Channel
	enabled func(*User) bool
	address func(*User) string
}

var userChannels = []userChannel{
	{
		channel: notification.ChannelEmail,
		enabled: func(u *User) bool { return u.Preferences.EmailEnabled },
		address: func(u *User) string { return u.Email },
	},
	{
		channel: notification.ChannelSMS,
		enabled: func(u *User) bool { return u.Preferences.SMSEnabled },
		address: func(u *User) string { return u.Preferences.SMSNumber },
	},
	{
		channel: notification.ChannelWhatsApp,
		enabled: func(u *User) bool { return u.Preferences.WhatsAppEnabled },
		address: func(u *User) string { return u.Preferences.WhatsAppNumber },
	},
}

// notifiesAssignee lists the types the assignee hears about in addition to
// the creator.
var notifiesAssignee = map[notification.Type]bool{
	notification.TypeTicketAssigned: true,
	notification.TypeTicketComment:  true,
	notification.TypeSLAWarning:     true,
	notification.TypeSLABreach:      true,
}

// EnabledChannels returns the channels a user receives type t on, with the
// address to use for each.
func EnabledChannels(u *User, t notification.Type) map[notification.Channel]string {
	out := make(map[notification.Channel]string)
	if u == nil || !u.Preferences.Enabled(t) {
		return out
	}
	for _, c := range userChannels {
		addr := strings.TrimSpace(c.address(u))
		if c.enabled(u) && addr != "" {
			out[c.channel] = addr
		}
	}
	return out
}

// Recipients returns the users to notify about type t, creator first,
// without duplicates.
func Recipients(tc TicketContext, t notification.Type) []*User {
	var users []*User
	seen := make(map[primitive.ObjectID]bool)
	add := func(u *User) {
		if u == nil || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		users = append(users, u)
	}
	if t == notification.TypeTicketAssigned {
		add(tc.Assignee)
		return users
	}
	add(tc.Creator)
	if notifiesAssignee[t] {
		add(tc.Assignee)
	}
	return users
}

// BuildPayloads expands one event into a payload per recipient and channel,
// plus the organization's chat webhook when it is enabled.
func BuildPayloads(tc TicketContext, t notification.Type, content notification.Content, metadata map[string]any) []notification.Payload {
	if tc.Ticket == nil {
		return nil
	}
	ticketID := tc.Ticket.ID
	base := notification.Payload{
		Type:           t,
		OrganizationID: tc.Ticket.OrganizationID,
		TicketID:       &ticketID,
		Subject:        content.Subject,
		Message:        content.Message,
		Metadata:       metadata,
	}

	var payloads []notification.Payload
	for _, u := range Recipients(tc, t) {
		channels := EnabledChannels(u, t)
		userID := u.ID
		for _, c := range userChannels {
			addr, ok := channels[c.channel]
			if !ok {
				continue
			}
			p := base
			p.Channel = c.channel
			p.Recipient = addr
			p.UserID = &userID
			payloads = append(payloads, p)
		}
	}

	if org := tc.Organization; org != nil {
		prefs := org.Preferences
		url := strings.TrimSpace(prefs.SlackWebhookURL)
		if prefs.SlackEnabled && url != "" && prefs.Enabled(t) {
			p := base
			p.Channel = notification.ChannelSlack
			p.Recipient = url
			payloads = append(payloads, p)
		}
	}
	return payloads
}
