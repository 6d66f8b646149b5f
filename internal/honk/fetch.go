package honk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"golang.org/x/time/rate"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

const (
	defaultGraphQLURL = "https://platform.honkmobile.com/graphql"
	defaultSiteURL    = "https://reservenski.parkpalisadestahoe.com/select-parking"
)

// Client implements Fetcher by impersonating a real browser against the
// upstream GraphQL endpoint. It owns a single session handle, rebuilt
// wholesale on repair. The poll engine is its only caller, so no locking.
type Client struct {
	graphqlURL    string
	siteURL       string
	probeLocation domain.Location
	identities    []Identity
	newDoer       func(Identity) (Doer, error)
	limiter       *rate.Limiter
	log           *slog.Logger
	nowFunc       func() time.Time

	session *session
}

// Option configures the Client.
type Option func(*Client)

// WithGraphQLURL overrides the upstream GraphQL endpoint.
func WithGraphQLURL(u string) Option {
	return func(c *Client) { c.graphqlURL = u }
}

// WithSiteURL overrides the reservation page used for the handshake.
func WithSiteURL(u string) Option {
	return func(c *Client) { c.siteURL = u }
}

// WithIdentities overrides the client-identity ladder.
func WithIdentities(ids ...Identity) Option {
	return func(c *Client) { c.identities = ids }
}

// WithDoerFactory overrides how the per-identity HTTP client is built.
// Tests inject canned responders here.
func WithDoerFactory(f func(Identity) (Doer, error)) Option {
	return func(c *Client) { c.newDoer = f }
}

// WithRateLimit paces upstream requests. Defaults to one request per two
// seconds with a burst of one; polite, human-scale traffic.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(c *Client) { c.nowFunc = f }
}

// NewClient creates an upstream client. probeLocation is the venue zone
// used for the probe query during session establishment.
func NewClient(probeLocation domain.Location, opts ...Option) *Client {
	c := &Client{
		graphqlURL:    defaultGraphQLURL,
		siteURL:       defaultSiteURL,
		probeLocation: probeLocation,
		identities:    defaultIdentities(),
		newDoer:       newImpersonatingDoer,
		limiter:       rate.NewLimiter(rate.Every(2*time.Second), 1),
		log:           slog.Default(),
		nowFunc:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Establish builds the upstream session if one is not already held.
func (c *Client) Establish(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	s, err := c.establish(ctx)
	if err != nil {
		return err
	}
	c.session = s
	return nil
}

// Reestablish discards the current session and builds a fresh one.
func (c *Client) Reestablish(ctx context.Context) error {
	c.session = nil
	return c.Establish(ctx)
}

// Fetch retrieves one month of availability for the unit's location.
// Transport and auth failures come back wrapped in ErrSessionExpired so the
// caller can schedule a repair; clean non-200s and malformed bodies are soft
// failures the caller should skip.
func (c *Client) Fetch(
	ctx context.Context,
	unit domain.FetchUnit,
) (domain.RawAvailability, error) {
	if err := c.Establish(ctx); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(buildQuery(unit))
	if err != nil {
		return nil, fmt.Errorf("marshaling query for %s: %w", unit, err)
	}

	req, err := c.newGraphQLRequest(ctx, c.session.identity, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.session.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrSessionExpired, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: upstream returned %d", ErrSessionExpired, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("upstream returned %d for %s", resp.StatusCode, unit)
	}

	avail, err := parseAvailability(body)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", unit, err)
	}

	c.log.Debug("fetched availability",
		"unit", unit.String(),
		"dates", len(avail),
		"identity", c.session.identity.Name,
	)
	return avail, nil
}
