package channel

import (
	"net/http"
	"time"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"
)

// NewHTTPClient is the client shared by the webhook-style providers. Its
// timeout backs up the per-call context deadline set by the dispatcher.
func NewHTTPClient(cfg *config.MonitorConfig) *http.Client {
	timeout := cfg.ChannelTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// NewSenders registers one adapter per channel.
func NewSenders(email *EmailSender, sms *SMSSender, whatsapp *WhatsAppSender, slack *SlackSender) notification.Senders {
	return notification.Senders{
		notification.ChannelEmail:    email,
		notification.ChannelSMS:      sms,
		notification.ChannelWhatsApp: whatsapp,
		notification.ChannelSlack:    slack,
	}
}
