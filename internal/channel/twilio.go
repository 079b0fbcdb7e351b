package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"SLAMonitor/internal/config"
)

// twilioClient posts to the Twilio Messages API, shared by SMS and WhatsApp.
type twilioClient struct {
	cfg    *config.TwilioConfig
	poster *poster
}

func newTwilioClient(cfg *config.TwilioConfig, provider string, client *http.Client) *twilioClient {
	return &twilioClient{cfg: cfg, poster: newPoster(provider, client)}
}

type twilioMessage struct {
	SID string `json:"sid"`
}

// send returns the provider message SID.
func (t *twilioClient) send(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(t.cfg.APIURL, "/"), url.PathEscape(t.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.poster.do(req)
	if err != nil {
		return "", err
	}
	// A 2xx means the message was accepted; an unreadable body only costs
	// us the SID.
	var msg twilioMessage
	_ = json.Unmarshal(resp, &msg)
	return msg.SID, nil
}
