package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultNtfyServer is the public ntfy.sh instance.
const DefaultNtfyServer = "https://ntfy.sh"

// NtfyNotifier sends push notifications by POSTing the message body to a
// ntfy topic endpoint.
type NtfyNotifier struct {
	server string
	topic  string
	client *http.Client
}

// NtfyOption configures an NtfyNotifier.
type NtfyOption func(*NtfyNotifier)

// WithNtfyHTTPClient sets a custom HTTP client.
func WithNtfyHTTPClient(c *http.Client) NtfyOption {
	return func(n *NtfyNotifier) { n.client = c }
}

// NewNtfyNotifier creates the push channel. An empty server falls back to
// ntfy.sh; an empty topic makes Send skip with a reason.
func NewNtfyNotifier(server, topic string, opts ...NtfyOption) *NtfyNotifier {
	if server == "" {
		server = DefaultNtfyServer
	}
	n := &NtfyNotifier{
		server: server,
		topic:  topic,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name implements Notifier.
func (n *NtfyNotifier) Name() string { return "ntfy" }

// Send posts the message body to the topic endpoint.
func (n *NtfyNotifier) Send(ctx context.Context, msg Message) error {
	if n.topic == "" {
		return fmt.Errorf("%w: no ntfy topic set (use --ntfy-topic or NTFY_TOPIC)", ErrNotConfigured)
	}

	url := strings.TrimRight(n.server, "/") + "/" + n.topic
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, strings.NewReader(msg.Body),
	)
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", "high")
	req.Header.Set("Tags", "parking_space,ski")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 100))
		if readErr != nil {
			return fmt.Errorf("ntfy returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, body)
	}

	return nil
}
