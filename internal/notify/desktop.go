package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gen2brain/beeep"
)

// DesktopNotifier shows a best-effort native popup with an audible cue.
type DesktopNotifier struct {
	popup func(title, body string) error
	bell  io.Writer
	log   *slog.Logger
}

// NewDesktopNotifier creates the desktop channel.
func NewDesktopNotifier(log *slog.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		popup: func(title, body string) error {
			return beeep.Alert(title, body, "")
		},
		bell: os.Stdout,
		log:  log,
	}
}

// Name implements Notifier.
func (n *DesktopNotifier) Name() string { return "desktop" }

// Send never returns an error: desktop delivery is best-effort, and a
// failed popup degrades to a terminal bell.
func (n *DesktopNotifier) Send(_ context.Context, msg Message) error {
	if err := n.popup(msg.Title, msg.Body); err != nil {
		n.log.Debug("desktop popup failed, falling back to terminal bell", "error", err)
		fmt.Fprint(n.bell, "\a")
	}
	return nil
}
