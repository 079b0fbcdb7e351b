package channel

import (
	"context"
	"net/http"
	"strings"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"
)

const whatsappPrefix = "whatsapp:"

// WhatsAppSender delivers messages through Twilio's WhatsApp channel.
type WhatsAppSender struct {
	cfg    *config.TwilioConfig
	twilio *twilioClient
}

func NewWhatsAppSender(cfg *config.TwilioConfig, client *http.Client) *WhatsAppSender {
	return &WhatsAppSender{cfg: cfg, twilio: newTwilioClient(cfg, "twilio-whatsapp", client)}
}

func (s *WhatsAppSender) Send(ctx context.Context, msg notification.Message) notification.Result {
	if !s.cfg.HasCredentials() || s.cfg.WhatsAppFrom == "" {
		return notification.Failure(providerTwilio, "whatsapp service not configured")
	}
	to := NormalizeWhatsAppAddress(msg.Recipient)
	if to == "" {
		return notification.Failure(providerTwilio, "whatsapp recipient is empty")
	}

	body := msg.Body
	if msg.Subject != "" {
		body = "*" + msg.Subject + "*\n\n" + body
	}
	sid, err := s.twilio.send(ctx, NormalizeWhatsAppAddress(s.cfg.WhatsAppFrom), to, body)
	if err != nil {
		return notification.Failure(providerTwilio, err.Error())
	}
	return notification.Result{Success: true, MessageID: sid, Provider: providerTwilio}
}

// NormalizeWhatsAppAddress turns "+1 (555) 010-2000", "15550102000" or
// "whatsapp:+15550102000" into "whatsapp:+15550102000".
func NormalizeWhatsAppAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, whatsappPrefix)
	var b strings.Builder
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return whatsappPrefix + "+" + b.String()
}
