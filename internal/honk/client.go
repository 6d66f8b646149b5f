// Package honk provides a client for the Honk Mobile parking GraphQL API,
// abstracted behind a narrow interface so fetch strategies stay
// interchangeable.
package honk

import (
	"context"
	"errors"

	http "github.com/bogdanfinn/fhttp"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

// Sentinel errors classifying upstream failures.
var (
	// ErrSessionUnavailable means every client identity profile was
	// rejected during session establishment. It blocks all fetches.
	ErrSessionUnavailable = errors.New("no client identity accepted by upstream")

	// ErrSessionExpired marks a connection- or auth-level fetch failure.
	// The caller should re-establish the session before the next cycle,
	// not before the next unit within the same cycle.
	ErrSessionExpired = errors.New("upstream session expired")
)

// Fetcher produces a month of raw availability for one fetch unit, by
// whatever means the upstream will accept. The direct TLS-impersonation
// client is the default strategy; a browser-driven variant can implement
// the same interface.
type Fetcher interface {
	Fetch(ctx context.Context, unit domain.FetchUnit) (domain.RawAvailability, error)
	Reestablish(ctx context.Context) error
}

// Doer abstracts the impersonating HTTP client. tls_client.HttpClient
// satisfies it; tests substitute canned responses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
