package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Upstream wraps one REST dependency behind a circuit breaker. A tripped
// breaker short-circuits calls until its open window elapses.
type Upstream struct {
	name   string
	base   string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewUpstream(name, base string, timeout time.Duration, failures int, openFor time.Duration) *Upstream {
	if failures < 1 {
		failures = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
	})
	return &Upstream{
		name:   name,
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		client: &http.Client{Timeout: timeout},
		cb:     cb,
	}
}

// GetJSON fetches base+path and decodes the body into out.
func (u *Upstream) GetJSON(ctx context.Context, path string, out any) error {
	_, err := u.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request: %w", u.name, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s upstream status %d", u.name, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s decode: %w", u.name, err)
		}
		return nil, nil
	})
	return err
}

// State exposes the breaker state for logging.
func (u *Upstream) State() gobreaker.State { return u.cb.State() }
