package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"SLAMonitor/internal/notification"
)

const (
	providerSlack      = "slack"
	slackHeaderMaxText = 150

	colorCritical = "#dc2626"
	colorWarning  = "#f97316"
	colorInfo     = "#2563eb"
	colorSuccess  = "#16a34a"
	colorDefault  = "#64748b"
)

// SlackSender posts Block Kit messages to an incoming-webhook URL. The
// recipient is the webhook URL itself.
type SlackSender struct {
	poster *poster
}

func NewSlackSender(client *http.Client) *SlackSender {
	return &SlackSender{poster: newPoster(providerSlack, client)}
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackElement struct {
	Type  string     `json:"type"`
	Text  *slackText `json:"text,omitempty"`
	URL   string     `json:"url,omitempty"`
	Style string     `json:"style,omitempty"`
}

type slackBlock struct {
	Type     string     `json:"type"`
	Text     *slackText `json:"text,omitempty"`
	Elements []any      `json:"elements,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Blocks []slackBlock `json:"blocks"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (s *SlackSender) Send(ctx context.Context, msg notification.Message) notification.Result {
	if msg.Recipient == "" {
		return notification.Failure(providerSlack, "slack service not configured")
	}

	body, err := json.Marshal(buildSlackPayload(msg))
	if err != nil {
		return notification.Failure(providerSlack, fmt.Sprintf("failed to marshal slack payload: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Recipient, bytes.NewReader(body))
	if err != nil {
		return notification.Failure(providerSlack, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := s.poster.do(req); err != nil {
		return notification.Failure(providerSlack, err.Error())
	}
	return notification.Result{Success: true, Provider: providerSlack}
}

func buildSlackPayload(msg notification.Message) slackPayload {
	subject := msg.Subject
	if subject == "" {
		subject = "Notification"
	}
	header := subject
	if r := []rune(header); len(r) > slackHeaderMaxText {
		header = string(r[:slackHeaderMaxText-3]) + "..."
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: header, Emoji: true}},
	}
	if strings.TrimSpace(msg.Body) != "" {
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: msg.Body}})
	}
	if n := stringMeta(msg.Metadata, notification.MetaTicketNumber); n != "" {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []any{slackText{Type: "mrkdwn", Text: "Ticket #" + strings.TrimPrefix(n, "#")}},
		})
	}
	if link := stringMeta(msg.Metadata, notification.MetaActionURL); link != "" {
		blocks = append(blocks, slackBlock{
			Type: "actions",
			Elements: []any{slackElement{
				Type:  "button",
				Text:  &slackText{Type: "plain_text", Text: "View Ticket", Emoji: true},
				URL:   link,
				Style: "primary",
			}},
		})
	}

	return slackPayload{
		Text:        subject,
		Attachments: []slackAttachment{{Color: SeverityColor(msg.Type), Blocks: blocks}},
	}
}

// SeverityColor maps an event type to the attachment colour.
func SeverityColor(t notification.Type) string {
	switch t {
	case notification.TypeSLABreach:
		return colorCritical
	case notification.TypeSLAWarning:
		return colorWarning
	case notification.TypeTicketCreated, notification.TypeTicketAssigned:
		return colorInfo
	case notification.TypeTicketResolved, notification.TypeTicketClosed:
		return colorSuccess
	}
	return colorDefault
}
