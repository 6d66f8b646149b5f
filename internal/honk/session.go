package honk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

// Identity is one client-identity profile the session ladder can present:
// a TLS fingerprint plus the matching User-Agent.
type Identity struct {
	Name      string
	Profile   profiles.ClientProfile
	UserAgent string
}

// defaultIdentities is the ordered ladder tried during session
// establishment, most common browser first.
func defaultIdentities() []Identity {
	return []Identity{
		{
			Name:    "chrome-120",
			Profile: profiles.Chrome_120,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) " +
				"Chrome/120.0.0.0 Safari/537.36",
		},
		{
			Name:    "safari-ios-16",
			Profile: profiles.Safari_IOS_16_0,
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) " +
				"AppleWebKit/605.1.15 (KHTML, like Gecko) " +
				"Version/16.6 Mobile/15E148 Safari/604.1",
		},
		{
			Name:      "firefox-117",
			Profile:   profiles.Firefox_117,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:117.0) Gecko/20100101 Firefox/117.0",
		},
	}
}

// newImpersonatingDoer builds a tls-client with the identity's fingerprint
// and a fresh cookie jar. Sessions are rebuilt wholesale, never patched.
func newImpersonatingDoer(id Identity) (Doer, error) {
	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(30),
		tls_client.WithClientProfile(id.Profile),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
		tls_client.WithRandomTLSExtensionOrder(),
	}
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), opts...)
	if err != nil {
		return nil, fmt.Errorf("building impersonating client: %w", err)
	}
	return client, nil
}

// session is the established upstream handle: the accepted identity and
// the client carrying its cookies.
type session struct {
	doer     Doer
	identity Identity
}

// establish walks the identity ladder: per identity, a handshake GET of the
// reservation page (warms cookies and any edge challenge), then a one-month
// probe of the availability query. The first identity whose probe returns
// 200 wins.
func (c *Client) establish(ctx context.Context) (*session, error) {
	probe := domain.FetchUnit{
		Location: c.probeLocation,
		Year:     c.nowFunc().Year(),
		Month:    int(c.nowFunc().Month()),
	}

	for _, id := range c.identities {
		doer, err := c.newDoer(id)
		if err != nil {
			c.log.Warn("identity unavailable", "identity", id.Name, "error", err)
			continue
		}

		if err := c.handshake(ctx, doer, id); err != nil {
			c.log.Debug("handshake failed", "identity", id.Name, "error", err)
			continue
		}

		status, err := c.probeQuery(ctx, doer, id, probe)
		if err != nil {
			c.log.Debug("probe failed", "identity", id.Name, "error", err)
			continue
		}
		if status != http.StatusOK {
			c.log.Debug("identity rejected", "identity", id.Name, "status", status)
			continue
		}

		c.log.Info("session established", "identity", id.Name)
		return &session{doer: doer, identity: id}, nil
	}

	return nil, fmt.Errorf("%w: tried %d identities", ErrSessionUnavailable, len(c.identities))
}

func (c *Client) handshake(ctx context.Context, doer Doer, id Identity) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.siteURL, nil)
	if err != nil {
		return fmt.Errorf("creating handshake request: %w", err)
	}
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused for the probe.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // body content is irrelevant
	return nil
}

func (c *Client) probeQuery(
	ctx context.Context,
	doer Doer,
	id Identity,
	unit domain.FetchUnit,
) (int, error) {
	body, err := json.Marshal(buildQuery(unit))
	if err != nil {
		return 0, fmt.Errorf("marshaling probe query: %w", err)
	}

	req, err := c.newGraphQLRequest(ctx, id, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	resp, err := doer.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // status is the verdict

	return resp.StatusCode, nil
}

func (c *Client) newGraphQLRequest(
	ctx context.Context,
	id Identity,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Origin", c.siteOrigin())
	req.Header.Set("Referer", c.siteURL)
	return req, nil
}

// siteOrigin is the scheme+host of the reservation page, for the Origin
// header the upstream expects on page-originated queries.
func (c *Client) siteOrigin() string {
	u, err := url.Parse(c.siteURL)
	if err != nil {
		return c.siteURL
	}
	return u.Scheme + "://" + u.Host
}
