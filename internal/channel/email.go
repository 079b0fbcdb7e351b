package channel

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"

	"github.com/resend/resend-go/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type outgoingEmail struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

type emailProvider interface {
	Name() string
	Send(ctx context.Context, e outgoingEmail) (string, error)
}

// TemplateSource lists the email templates that may apply to a message.
type TemplateSource interface {
	ListCandidates(ctx context.Context, t notification.Type, orgID primitive.ObjectID) ([]notification.EmailTemplate, error)
}

// EmailSender wraps messages in the portal's HTML layout and hands them to
// Resend or, failing that, an SMTP relay.
type EmailSender struct {
	cfg       *config.EmailConfig
	portal    *config.PortalConfig
	provider  emailProvider
	templates TemplateSource
	logger    *zap.Logger
}

func NewEmailSender(cfg *config.EmailConfig, portal *config.PortalConfig, templates TemplateSource, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		cfg:       cfg,
		portal:    portal,
		provider:  newEmailProvider(cfg, logger),
		templates: templates,
		logger:    logger,
	}
}

func newEmailProvider(cfg *config.EmailConfig, logger *zap.Logger) emailProvider {
	switch {
	case cfg.ResendAPIKey != "":
		client := resend.NewClient(cfg.ResendAPIKey)
		if cfg.ResendAPIURL != "" {
			if u, err := url.Parse(cfg.ResendAPIURL); err == nil {
				client.BaseURL = u
			} else {
				logger.Warn("ignoring invalid RESEND_API_URL", zap.Error(err))
			}
		}
		return &resendProvider{client: client}
	case cfg.SMTPHost != "":
		return &smtpProvider{dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)}
	}
	return nil
}

func (s *EmailSender) Send(ctx context.Context, msg notification.Message) notification.Result {
	if s.provider == nil || s.cfg.From == "" {
		return notification.Failure("email", "email service not configured")
	}
	if msg.Recipient == "" {
		return notification.Failure(s.provider.Name(), "email recipient is empty")
	}

	out, ok := s.renderTemplated(ctx, msg)
	if !ok {
		rendered, err := s.renderLayout(msg)
		if err != nil {
			return notification.Failure(s.provider.Name(), err.Error())
		}
		out = rendered
	}
	out.From = s.cfg.From
	out.To = msg.Recipient

	id, err := s.provider.Send(ctx, out)
	if err != nil {
		return notification.Failure(s.provider.Name(), err.Error())
	}
	return notification.Result{Success: true, MessageID: id, Provider: s.provider.Name()}
}

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:0;background:#f1f5f9;font-family:Arial,Helvetica,sans-serif;color:#0f172a;">
  <table width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
    <tr><td align="center">
      <table width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#0f172a;color:#ffffff;padding:20px 24px;font-size:18px;font-weight:bold;">{{.PortalName}}</td></tr>
        <tr><td style="padding:24px;">
          <h2 style="margin:0 0 16px;font-size:20px;">{{.Subject}}</h2>
          {{range .Paragraphs}}<p style="margin:0 0 12px;line-height:1.5;">{{.}}</p>
          {{end}}{{if .ActionURL}}<p style="margin:24px 0 0;"><a href="{{.ActionURL}}" style="display:inline-block;background:#2563eb;color:#ffffff;padding:10px 18px;border-radius:6px;text-decoration:none;">{{.ActionLabel}}</a></p>{{end}}
        </td></tr>
        <tr><td style="padding:16px 24px;background:#f8fafc;color:#64748b;font-size:12px;">
          You are receiving this email because of your notification settings in {{.PortalName}}.
          <a href="{{.PreferencesURL}}" style="color:#64748b;">Manage notification preferences</a>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

type layoutData struct {
	PortalName     string
	Subject        string
	Paragraphs     []string
	ActionURL      string
	ActionLabel    string
	PreferencesURL string
}

func (s *EmailSender) renderLayout(msg notification.Message) (outgoingEmail, error) {
	data := layoutData{
		PortalName:     s.portal.Name,
		Subject:        msg.Subject,
		PreferencesURL: s.portal.PreferencesURL(),
		ActionURL:      stringMeta(msg.Metadata, notification.MetaActionURL),
		ActionLabel:    "Open Portal",
	}
	if stringMeta(msg.Metadata, notification.MetaTicketNumber) != "" {
		data.ActionLabel = "View Ticket"
	}
	for _, line := range strings.Split(msg.Body, "\n") {
		if strings.TrimSpace(line) != "" {
			data.Paragraphs = append(data.Paragraphs, line)
		}
	}

	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, data); err != nil {
		return outgoingEmail{}, fmt.Errorf("render email layout: %w", err)
	}
	return outgoingEmail{Subject: msg.Subject, HTML: buf.String(), Text: msg.Body}, nil
}

// renderTemplated uses a stored template when template mode is on and one
// matches. Any lookup problem falls back to the plain layout.
func (s *EmailSender) renderTemplated(ctx context.Context, msg notification.Message) (outgoingEmail, bool) {
	if !s.cfg.TemplatesEnabled || s.templates == nil {
		return outgoingEmail{}, false
	}
	candidates, err := s.templates.ListCandidates(ctx, msg.Type, msg.OrganizationID)
	if err != nil {
		s.logger.Warn("email template lookup failed, using default layout",
			zap.String("type", string(msg.Type)), zap.Error(err))
		return outgoingEmail{}, false
	}
	tpl := notification.SelectTemplate(candidates, msg.OrganizationID)
	if tpl == nil {
		return outgoingEmail{}, false
	}

	vars := s.templateVars(msg)
	escaped := make(map[string]string, len(vars))
	for k, v := range vars {
		escaped[k] = html.EscapeString(v)
	}

	out := outgoingEmail{
		Subject: notification.Interpolate(tpl.Subject, vars),
		HTML:    notification.Interpolate(tpl.HTMLBody, escaped),
		Text:    notification.Interpolate(tpl.TextBody, vars),
	}
	if strings.TrimSpace(out.Subject) == "" {
		out.Subject = msg.Subject
	}
	if strings.TrimSpace(out.Text) == "" {
		out.Text = msg.Body
	}
	if strings.TrimSpace(out.HTML) == "" {
		return outgoingEmail{}, false
	}
	return out, true
}

func (s *EmailSender) templateVars(msg notification.Message) map[string]string {
	vars := map[string]string{
		"portal_name":     s.portal.Name,
		"portal_url":      s.portal.URL,
		"unsubscribe_url": s.portal.PreferencesURL(),
		"year":            strconv.Itoa(time.Now().Year()),
		"subject":         msg.Subject,
		"message":         msg.Body,
		"action_url":      stringMeta(msg.Metadata, notification.MetaActionURL),
		"ticket_number":   stringMeta(msg.Metadata, notification.MetaTicketNumber),
	}
	switch extra := msg.Metadata[notification.MetaVariables].(type) {
	case map[string]string:
		for k, v := range extra {
			vars[k] = v
		}
	case map[string]any:
		for k, v := range extra {
			vars[k] = fmt.Sprint(v)
		}
	}
	return vars
}

type resendProvider struct {
	client *resend.Client
}

func (p *resendProvider) Name() string { return "resend" }

func (p *resendProvider) Send(ctx context.Context, e outgoingEmail) (string, error) {
	sent, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.From,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
		Text:    e.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

type smtpProvider struct {
	dialer *gomail.Dialer
}

func (p *smtpProvider) Name() string { return "smtp" }

// Send has no native cancellation; the dial runs in the background and the
// caller stops waiting when ctx ends.
func (p *smtpProvider) Send(ctx context.Context, e outgoingEmail) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Text)
	m.AddAlternative("text/html", e.HTML)

	errc := make(chan error, 1)
	go func() { errc <- p.dialer.DialAndSend(m) }()
	select {
	case err := <-errc:
		if err != nil {
			return "", fmt.Errorf("failed to send email: %w", err)
		}
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
