package channel

import (
	"context"
	"net/http"
	"unicode/utf8"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"
)

const (
	smsMaxLength   = 160
	smsEllipsis    = "..."
	providerTwilio = "twilio"
)

// SMSSender delivers text messages through Twilio.
type SMSSender struct {
	cfg    *config.TwilioConfig
	twilio *twilioClient
}

func NewSMSSender(cfg *config.TwilioConfig, client *http.Client) *SMSSender {
	return &SMSSender{cfg: cfg, twilio: newTwilioClient(cfg, "twilio-sms", client)}
}

func (s *SMSSender) Send(ctx context.Context, msg notification.Message) notification.Result {
	if !s.cfg.HasCredentials() || s.cfg.SMSFrom == "" {
		return notification.Failure(providerTwilio, "sms service not configured")
	}
	if msg.Recipient == "" {
		return notification.Failure(providerTwilio, "sms recipient is empty")
	}

	sid, err := s.twilio.send(ctx, s.cfg.SMSFrom, msg.Recipient, TruncateSMS(msg.Body))
	if err != nil {
		return notification.Failure(providerTwilio, err.Error())
	}
	return notification.Result{Success: true, MessageID: sid, Provider: providerTwilio}
}

// TruncateSMS caps a body at one SMS segment, ellipsis included.
func TruncateSMS(body string) string {
	if utf8.RuneCountInString(body) <= smsMaxLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:smsMaxLength-len(smsEllipsis)]) + smsEllipsis
}
