package browser

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// StartSessionTool creates a named browser session, or brings up the default one.
type StartSessionTool struct {
	manager *session.Manager
}

// NewStartSessionTool creates a new start session tool.
func NewStartSessionTool(manager *session.Manager) *StartSessionTool {
	return &StartSessionTool{
		manager: manager,
	}
}

// Name returns the tool name.
func (t *StartSessionTool) Name() string {
	return "start_browser_session"
}

// Description returns the tool description.
func (t *StartSessionTool) Description() string {
	return "Create a new remote browser session, or resume an existing Browserbase session by its id. Without a name the default session is started. The new session becomes the active one."
}

// Schema returns the tool's JSON schema.
func (t *StartSessionTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Unique name for the browser session (e.g., 'research', 'checkout'). Omit to use the default session.",
			},
			"resume_session_id": map[string]interface{}{
				"type":        "string",
				"description": "Browserbase session id to attach to instead of creating a new remote session",
			},
		},
		nil,
	)
}

// StartSessionInput defines the input parameters for starting a browser session.
type StartSessionInput struct {
	XMLName         xml.Name `xml:"arguments"`
	Name            string   `xml:"name"`
	ResumeSessionID string   `xml:"resume_session_id"`
}

// Execute starts the session.
func (t *StartSessionTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input StartSessionInput
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}
	name := strings.TrimSpace(input.Name)
	resume := strings.TrimSpace(input.ResumeSessionID)

	var (
		rec *session.Record
		err error
	)
	if name == "" || name == t.manager.DefaultID() {
		if resume != "" {
			return "", nil, fmt.Errorf("resume_session_id requires a session name")
		}
		rec, err = t.manager.GetOrCreate(ctx, t.manager.DefaultID(), true)
	} else {
		rec, err = t.manager.Create(ctx, name, session.CreateOptions{ResumeRemoteID: resume})
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to start session: %w", err)
	}

	metadata := map[string]interface{}{
		"session_id":             rec.ID,
		"browserbase_session_id": rec.RemoteID,
		"debug_url":              rec.DebugURL,
	}

	verb := "created"
	if resume != "" {
		verb = "resumed"
	}
	result := fmt.Sprintf(`Browser session %s successfully

Session Details:
- Name: %s
- Browserbase Session: %s
- Live Debugger: %s
- Status: Ready

The session is now active. Use browser_screenshot to capture the current page and close_browser_session when finished.`,
		verb,
		rec.ID,
		rec.RemoteID,
		debugURLOrNone(rec.DebugURL),
	)
	return result, metadata, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *StartSessionTool) IsLoopBreaking() bool {
	return false
}

func debugURLOrNone(u string) string {
	if u == "" {
		return "(none)"
	}
	return u
}
