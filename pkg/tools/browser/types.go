package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserhub/pkg/session"
)

const (
	// ScreenshotPrefix starts the name of every stored screenshot
	ScreenshotPrefix = "screenshot-"

	// ScreenshotMimeType is the format produced by Page.Screenshot
	ScreenshotMimeType = "image/png"

	defaultScreenshotName = "page"
)

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// screenshotName builds "screenshot-<name>-<timestamp>" with a filesystem-safe UTC timestamp.
func screenshotName(name string, at time.Time) string {
	if name == "" {
		name = defaultScreenshotName
	}
	ts := timestampReplacer.Replace(at.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	return ScreenshotPrefix + name + "-" + ts
}

// resolveSession returns the session a tool should act on. An empty id targets
// the active session; only the default session is ever created on demand.
func resolveSession(ctx context.Context, mgr *session.Manager, id string) (*session.Record, error) {
	if id == "" {
		return mgr.Active(ctx)
	}
	return mgr.GetOrCreate(ctx, id, id == mgr.DefaultID())
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
