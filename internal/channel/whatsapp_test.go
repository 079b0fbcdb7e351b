package channel

import (
	"context"
	"testing"

	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWhatsAppAddress(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 010-2000":     "whatsapp:+15550102000",
		"15550102000":           "whatsapp:+15550102000",
		"whatsapp:+15550102000": "whatsapp:+15550102000",
		" whatsapp:15550102000": "whatsapp:+15550102000",
		"":                      "",
		"n/a":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeWhatsAppAddress(in), in)
	}
}

func TestWhatsAppSender_Send(t *testing.T) {
	fake := &fakeTwilio{}
	s := NewWhatsAppSender(newTwilioServer(t, fake), nil)

	res := s.Send(context.Background(), notification.Message{
		Type:      notification.TypeSLABreach,
		Recipient: "+44 20 7946 0000",
		Subject:   "SLA Breach: Ticket #1001 - Printer on fire",
		Body:      "Overdue by: 5 minutes",
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "SM123", res.MessageID)

	req := fake.last()
	assert.Equal(t, "whatsapp:+15550002", req.from)
	assert.Equal(t, "whatsapp:+442079460000", req.to)
	assert.Equal(t, "*SLA Breach: Ticket #1001 - Printer on fire*\n\nOverdue by: 5 minutes", req.body)
}

func TestWhatsAppSender_NotConfigured(t *testing.T) {
	cfg := &config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"}
	res := NewWhatsAppSender(cfg, nil).Send(context.Background(), notification.Message{Recipient: "+15550100"})

	assert.False(t, res.Success)
	assert.Equal(t, "whatsapp service not configured", res.Error)
}
