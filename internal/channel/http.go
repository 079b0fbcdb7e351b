package channel

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const maxErrorBody = 512

// poster sends provider requests through circuit breakers keyed by endpoint
// (host and path). Every Slack webhook URL has its own breaker.
type poster struct {
	provider string
	client   *http.Client
	breakers sync.Map
}

func newPoster(provider string, client *http.Client) *poster {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &poster{provider: provider, client: client}
}

func (p *poster) breaker(u *url.URL) *gobreaker.CircuitBreaker {
	key := u.Host + u.Path
	if cb, ok := p.breakers.Load(key); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}
	cb, _ := p.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.provider + ":" + key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: endpointHealthy,
	}))
	return cb.(*gobreaker.CircuitBreaker)
}

// endpointHealthy treats request-specific rejections (4xx other than 408 and
// 429) as a healthy endpoint: a bad phone number says nothing about Twilio.
func endpointHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 &&
			se.code != http.StatusRequestTimeout && se.code != http.StatusTooManyRequests
	}
	return false
}

// do executes req and returns the body of a 2xx response. Any other status
// is an error carrying a trimmed copy of the body.
func (p *poster) do(req *http.Request) ([]byte, error) {
	out, err := p.breaker(req.URL).Execute(func() (interface{}, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &statusError{provider: p.provider, code: resp.StatusCode, body: trimBody(body)}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s temporarily unavailable: %w", p.provider, err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

type statusError struct {
	provider string
	code     int
	body     string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s returned status %d", e.provider, e.code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.provider, e.code, e.body)
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

func stringMeta(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	switch v := meta[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
