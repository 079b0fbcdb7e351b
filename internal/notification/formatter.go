package notification

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatContext supplies interpolation values. Every field is optional.
type FormatContext struct {
	TicketNumber   string
	TicketSubject  string
	Priority       string
	Status         string
	DeadlineKind   string
	HoursOverdue   float64
	HoursUntilDue  float64
	ActorName      string
	AssigneeName   string
	CommentExcerpt string
	RequestTitle   string
	Reason         string
}

// Content is channel-agnostic plain text.
type Content struct {
	Subject string
	Message string
}

// titleCase builds a fresh Caser per call; Casers keep state and must not be
// shared between goroutines.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Format renders the subject and message for an event type. It never fails:
// missing context falls back to defaults and unknown types get a generic
// message.
func Format(t Type, fc FormatContext) Content {
	ticket := ticketLabel(fc)
	subject := orDefault(fc.TicketSubject, "(no subject)")
	actor := orDefault(fc.ActorName, "Someone")
	priority := titleCase(orDefault(fc.Priority, "Medium"))
	deadline := deadlineLabel(fc.DeadlineKind)

	switch t {
	case TypeTicketCreated:
		return Content{
			Subject: fmt.Sprintf("New Ticket %s: %s", ticket, subject),
			Message: fmt.Sprintf("%s created ticket %s \"%s\".\nPriority: %s", actor, ticket, subject, priority),
		}
	case TypeTicketUpdated:
		status := titleCase(strings.ReplaceAll(orDefault(fc.Status, "updated"), "_", " "))
		return Content{
			Subject: fmt.Sprintf("Ticket %s Updated: %s", ticket, subject),
			Message: fmt.Sprintf("%s updated ticket %s \"%s\".\nStatus: %s", actor, ticket, subject, status),
		}
	case TypeTicketAssigned:
		assignee := orDefault(fc.AssigneeName, "you")
		return Content{
			Subject: fmt.Sprintf("Ticket %s Assigned: %s", ticket, subject),
			Message: fmt.Sprintf("Ticket %s \"%s\" has been assigned to %s.\nPriority: %s", ticket, subject, assignee, priority),
		}
	case TypeTicketComment:
		msg := fmt.Sprintf("%s commented on ticket %s \"%s\".", actor, ticket, subject)
		if fc.CommentExcerpt != "" {
			msg += "\n\n" + fc.CommentExcerpt
		}
		return Content{
			Subject: fmt.Sprintf("New Comment on Ticket %s", ticket),
			Message: msg,
		}
	case TypeTicketResolved:
		return Content{
			Subject: fmt.Sprintf("Ticket %s Resolved: %s", ticket, subject),
			Message: fmt.Sprintf("Ticket %s \"%s\" has been resolved by %s.", ticket, subject, actor),
		}
	case TypeTicketClosed:
		return Content{
			Subject: fmt.Sprintf("Ticket %s Closed: %s", ticket, subject),
			Message: fmt.Sprintf("Ticket %s \"%s\" has been closed.", ticket, subject),
		}
	case TypeSLAWarning:
		return Content{
			Subject: fmt.Sprintf("SLA Warning: Ticket %s - %s", ticket, subject),
			Message: fmt.Sprintf("Ticket %s \"%s\" is approaching its %s deadline.\nPriority: %s\nTime remaining: %s",
				ticket, subject, deadline, priority, hoursLabel(fc.HoursUntilDue)),
		}
	case TypeSLABreach:
		return Content{
			Subject: fmt.Sprintf("SLA Breach: Ticket %s - %s", ticket, subject),
			Message: fmt.Sprintf("Ticket %s \"%s\" has breached its %s deadline.\nPriority: %s\nOverdue by: %s",
				ticket, subject, deadline, priority, hoursLabel(fc.HoursOverdue)),
		}
	case TypeServiceRequestCreated:
		return Content{
			Subject: fmt.Sprintf("New Service Request: %s", requestTitle(fc)),
			Message: fmt.Sprintf("%s submitted a service request \"%s\".", actor, requestTitle(fc)),
		}
	case TypeServiceRequestApproved:
		return Content{
			Subject: fmt.Sprintf("Service Request Approved: %s", requestTitle(fc)),
			Message: fmt.Sprintf("Your service request \"%s\" has been approved.", requestTitle(fc)),
		}
	case TypeServiceRequestRejected:
		return Content{
			Subject: fmt.Sprintf("Service Request Declined: %s", requestTitle(fc)),
			Message: withReason(fmt.Sprintf("Your service request \"%s\" was declined.", requestTitle(fc)), fc.Reason),
		}
	case TypeProjectRequestCreated:
		return Content{
			Subject: fmt.Sprintf("New Project Request: %s", requestTitle(fc)),
			Message: fmt.Sprintf("%s submitted a project request \"%s\".", actor, requestTitle(fc)),
		}
	case TypeProjectRequestApproved:
		return Content{
			Subject: fmt.Sprintf("Project Request Approved: %s", requestTitle(fc)),
			Message: fmt.Sprintf("Your project request \"%s\" has been approved.", requestTitle(fc)),
		}
	case TypeProjectRequestRejected:
		return Content{
			Subject: fmt.Sprintf("Project Request Declined: %s", requestTitle(fc)),
			Message: withReason(fmt.Sprintf("Your project request \"%s\" was declined.", requestTitle(fc)), fc.Reason),
		}
	}

	return Content{
		Subject: "Notification",
		Message: fmt.Sprintf("There is an update on ticket %s.", ticket),
	}
}

func ticketLabel(fc FormatContext) string {
	if fc.TicketNumber == "" {
		return "#-"
	}
	return "#" + strings.TrimPrefix(fc.TicketNumber, "#")
}

func requestTitle(fc FormatContext) string {
	return orDefault(fc.RequestTitle, "Untitled request")
}

func deadlineLabel(kind string) string {
	switch kind {
	case "first_response":
		return "first response"
	case "resolution":
		return "resolution"
	}
	return "SLA"
}

func hoursLabel(h float64) string {
	if h < 0 {
		h = -h
	}
	if h < 1 {
		return fmt.Sprintf("%d minutes", int(h*60))
	}
	return fmt.Sprintf("%.1f hours", h)
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + "\nReason: " + reason
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
