package browser

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// CloseSessionTool closes a browser session.
type CloseSessionTool struct {
	manager *session.Manager
}

// NewCloseSessionTool creates a new close session tool.
func NewCloseSessionTool(manager *session.Manager) *CloseSessionTool {
	return &CloseSessionTool{
		manager: manager,
	}
}

// Name returns the tool name.
func (t *CloseSessionTool) Name() string {
	return "close_browser_session"
}

// Description returns the tool description.
func (t *CloseSessionTool) Description() string {
	return "Close a browser session and discard its screenshots. Without a session name the active session is closed."
}

// Schema returns the tool's JSON schema.
func (t *CloseSessionTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session": map[string]interface{}{
				"type":        "string",
				"description": "Name of the browser session to close. Default: the active session",
			},
		},
		nil,
	)
}

// CloseSessionInput represents the parameters for closing a session.
type CloseSessionInput struct {
	XMLName xml.Name `xml:"arguments"`
	Session string   `xml:"session"`
}

// Execute closes a browser session. Closing an unknown session is not an error.
func (t *CloseSessionTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input CloseSessionInput
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}

	id := strings.TrimSpace(input.Session)
	if id == "" {
		id = t.manager.ActiveID()
	}

	t.manager.Cleanup(ctx, id)

	result := fmt.Sprintf(`Session closed

Session: %s

The remote browser has been released and its screenshots were discarded. The active session is now %s.`,
		id,
		t.manager.ActiveID(),
	)
	return result, map[string]interface{}{"session_id": id}, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *CloseSessionTool) IsLoopBreaking() bool {
	return false
}
