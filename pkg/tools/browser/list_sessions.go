package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// ListSessionsTool lists all registered browser sessions.
type ListSessionsTool struct {
	manager *session.Manager
	now     func() time.Time
}

// NewListSessionsTool creates a new list sessions tool.
func NewListSessionsTool(manager *session.Manager) *ListSessionsTool {
	return &ListSessionsTool{
		manager: manager,
		now:     time.Now,
	}
}

// Name returns the tool name.
func (t *ListSessionsTool) Name() string {
	return "list_browser_sessions"
}

// Description returns the tool description.
func (t *ListSessionsTool) Description() string {
	return "List all browser sessions with their Browserbase ids, debugger URLs and which one is active."
}

// Schema returns the tool's JSON schema.
func (t *ListSessionsTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{},
		nil,
	)
}

// Execute lists all sessions.
func (t *ListSessionsTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	sessions := t.manager.Sessions()
	metadata := map[string]interface{}{
		"count":     len(sessions),
		"active_id": t.manager.ActiveID(),
	}

	if len(sessions) == 0 {
		return "No active browser sessions.\n\nUse start_browser_session to create a new session.", metadata, nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Browser Sessions: %d\n\n", len(sessions))

	now := t.now()
	for i, s := range sessions {
		var tags []string
		if s.Default {
			tags = append(tags, "default")
		}
		if s.Active {
			tags = append(tags, "active")
		}
		label := s.ID
		if len(tags) > 0 {
			label += " (" + strings.Join(tags, ", ") + ")"
		}

		fmt.Fprintf(&result, `%d. %s
   Browserbase Session: %s
   Live Debugger: %s
   Age: %s

`,
			i+1,
			label,
			s.RemoteID,
			debugURLOrNone(s.DebugURL),
			formatDuration(now.Sub(s.CreatedAt)),
		)
	}

	result.WriteString("Use set_active_browser_session to switch sessions and close_browser_session to close one.")
	return result.String(), metadata, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *ListSessionsTool) IsLoopBreaking() bool {
	return false
}
