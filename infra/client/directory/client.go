package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

var _ Source = (*Client)(nil)

// ErrUnavailable wraps failures of the remote directory, including an open breaker.
var ErrUnavailable = errors.New("directory unavailable")

// Client talks to a remote directory exposing GET /api/users and /api/users/{id}.
// Calls go through a circuit breaker so a dead directory fails fast.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type ClientOption func(*gobreaker.Settings)

// WithTripAfter opens the breaker after n consecutive failures.
func WithTripAfter(n uint32) ClientOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= n }
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing again.
func WithOpenTimeout(d time.Duration) ClientOption {
	return func(s *gobreaker.Settings) { s.Timeout = d }
}

func New(rawURL string, timeout time.Duration, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("directory url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("directory url %q: scheme and host are required", rawURL)
	}

	settings := gobreaker.Settings{
		Name:    "directory",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// A missing user is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnknownUser)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("DIRECTORY_BREAKER_STATE_CHANGED",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

func (c *Client) Lookup(ctx context.Context, id model.UserID) (model.User, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		var u model.User
		if err := c.get(ctx, "/api/users/"+id.String(), &u); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return model.User{}, c.wrap(err)
	}
	return res.(model.User), nil
}

func (c *Client) List(ctx context.Context) ([]model.User, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		var users []model.User
		if err := c.get(ctx, "/api/users", &users); err != nil {
			return nil, err
		}
		return users, nil
	})
	if err != nil {
		return nil, c.wrap(err)
	}
	return res.([]model.User), nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownUser
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) wrap(err error) error {
	if errors.Is(err, ErrUnknownUser) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
