package browser

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// SetActiveSessionTool switches the session targeted by tools that name none.
type SetActiveSessionTool struct {
	manager *session.Manager
}

// NewSetActiveSessionTool creates a new set active session tool.
func NewSetActiveSessionTool(manager *session.Manager) *SetActiveSessionTool {
	return &SetActiveSessionTool{
		manager: manager,
	}
}

// Name returns the tool name.
func (t *SetActiveSessionTool) Name() string {
	return "set_active_browser_session"
}

// Description returns the tool description.
func (t *SetActiveSessionTool) Description() string {
	return "Make an existing browser session the active one. Tools that are not given a session act on the active session."
}

// Schema returns the tool's JSON schema.
func (t *SetActiveSessionTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session": map[string]interface{}{
				"type":        "string",
				"description": "Name of the browser session to activate",
			},
		},
		[]string{"session"},
	)
}

// SetActiveSessionInput represents the parameters for switching sessions.
type SetActiveSessionInput struct {
	XMLName xml.Name `xml:"arguments"`
	Session string   `xml:"session"`
}

// Execute switches the active session.
func (t *SetActiveSessionTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input SetActiveSessionInput
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}

	id := strings.TrimSpace(input.Session)
	if id == "" {
		return "", nil, fmt.Errorf("session name is required")
	}
	if !t.manager.SetActive(id) {
		return "", nil, fmt.Errorf("%w: %s", session.ErrNoSession, id)
	}

	return fmt.Sprintf("Active browser session is now %s", id), map[string]interface{}{"session_id": id}, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *SetActiveSessionTool) IsLoopBreaking() bool {
	return false
}
