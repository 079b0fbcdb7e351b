package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"SLAMonitor/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "#dc2626", SeverityColor(notification.TypeSLABreach))
	assert.Equal(t, "#f97316", SeverityColor(notification.TypeSLAWarning))
	assert.Equal(t, "#2563eb", SeverityColor(notification.TypeTicketCreated))
	assert.Equal(t, "#2563eb", SeverityColor(notification.TypeTicketAssigned))
	assert.Equal(t, "#16a34a", SeverityColor(notification.TypeTicketResolved))
	assert.Equal(t, "#16a34a", SeverityColor(notification.TypeTicketClosed))
	assert.Equal(t, "#64748b", SeverityColor(notification.TypeTicketComment))
}

func TestBuildSlackPayload(t *testing.T) {
	p := buildSlackPayload(notification.Message{
		Type:    notification.TypeSLABreach,
		Subject: "SLA Breach: Ticket #1001 - Printer on fire",
		Body:    "Overdue by: 5 minutes",
		Metadata: map[string]any{
			notification.MetaTicketNumber: "1001",
			notification.MetaActionURL:    "https://portal.test/tickets/abc",
		},
	})

	assert.Equal(t, "SLA Breach: Ticket #1001 - Printer on fire", p.Text)
	require.Len(t, p.Attachments, 1)
	att := p.Attachments[0]
	assert.Equal(t, "#dc2626", att.Color)
	require.Len(t, att.Blocks, 4)
	assert.Equal(t, "header", att.Blocks[0].Type)
	assert.Equal(t, "section", att.Blocks[1].Type)
	assert.Equal(t, "Overdue by: 5 minutes", att.Blocks[1].Text.Text)
	assert.Equal(t, "context", att.Blocks[2].Type)
	assert.Equal(t, slackText{Type: "mrkdwn", Text: "Ticket #1001"}, att.Blocks[2].Elements[0])
	assert.Equal(t, "actions", att.Blocks[3].Type)
	button := att.Blocks[3].Elements[0].(slackElement)
	assert.Equal(t, "https://portal.test/tickets/abc", button.URL)
	assert.Equal(t, "View Ticket", button.Text.Text)
}

func TestBuildSlackPayload_Minimal(t *testing.T) {
	p := buildSlackPayload(notification.Message{Subject: strings.Repeat("s", 400)})

	require.Len(t, p.Attachments[0].Blocks, 1)
	header := p.Attachments[0].Blocks[0].Text.Text
	assert.Len(t, header, 150)
	assert.True(t, strings.HasSuffix(header, "..."))
	assert.Equal(t, "#64748b", p.Attachments[0].Color)
}

func TestSlackSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res := NewSlackSender(srv.Client()).Send(context.Background(), notification.Message{
		Type:      notification.TypeSLAWarning,
		Recipient: srv.URL,
		Subject:   "SLA Warning",
		Body:      "soon",
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "slack", res.Provider)
	assert.Equal(t, "SLA Warning", got["text"])
	atts := got["attachments"].([]any)
	assert.Equal(t, "#f97316", atts[0].(map[string]any)["color"])
}

func TestSlackSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer srv.Close()

	res := NewSlackSender(srv.Client()).Send(context.Background(), notification.Message{Recipient: srv.URL, Subject: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, "slack returned status 404: no_service", res.Error)
}

func TestSlackSender_NoWebhook(t *testing.T) {
	res := NewSlackSender(nil).Send(context.Background(), notification.Message{Subject: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, "slack service not configured", res.Error)
}

func TestSlackSender_BreakerOpensPerWebhook(t *testing.T) {
	var brokenCalls, healthyCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/services/broken", func(w http.ResponseWriter, r *http.Request) {
		brokenCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/services/healthy", func(w http.ResponseWriter, r *http.Request) {
		healthyCalls.Add(1)
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewSlackSender(srv.Client())
	broken := notification.Message{Recipient: srv.URL + "/services/broken", Subject: "x"}
	for i := 0; i < 5; i++ {
		s.Send(context.Background(), broken)
	}
	res := s.Send(context.Background(), broken)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "temporarily unavailable")
	assert.EqualValues(t, 5, brokenCalls.Load())

	res = s.Send(context.Background(), notification.Message{Recipient: srv.URL + "/services/healthy", Subject: "x"})
	assert.True(t, res.Success, res.Error)
	assert.EqualValues(t, 1, healthyCalls.Load())
}

func TestSlackSender_RevokedWebhookDoesNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer srv.Close()

	s := NewSlackSender(srv.Client())
	msg := notification.Message{Recipient: srv.URL, Subject: "x"}
	for i := 0; i < 7; i++ {
		res := s.Send(context.Background(), msg)
		assert.Equal(t, "slack returned status 404: no_service", res.Error)
	}
	assert.EqualValues(t, 7, calls.Load())
}
