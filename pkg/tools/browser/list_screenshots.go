package browser

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/entrhq/browserhub/pkg/artifacts"
	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// ListScreenshotsTool lists the screenshots stored for a session.
type ListScreenshotsTool struct {
	manager *session.Manager
	store   artifacts.Store
}

// NewListScreenshotsTool creates a new list screenshots tool.
func NewListScreenshotsTool(manager *session.Manager, store artifacts.Store) *ListScreenshotsTool {
	return &ListScreenshotsTool{
		manager: manager,
		store:   store,
	}
}

// Name returns the tool name.
func (t *ListScreenshotsTool) Name() string {
	return "list_screenshots"
}

// Description returns the tool description.
func (t *ListScreenshotsTool) Description() string {
	return "List the names of screenshots taken in a browser session, optionally filtered by a glob pattern such as 'screenshot-checkout-*'."
}

// Schema returns the tool's JSON schema.
func (t *ListScreenshotsTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session": map[string]interface{}{
				"type":        "string",
				"description": "Browser session whose screenshots to list. Default: the active session",
			},
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern matched against screenshot names. Default: all screenshots",
			},
		},
		nil,
	)
}

// ListScreenshotsInput defines the input parameters for listing screenshots.
type ListScreenshotsInput struct {
	XMLName xml.Name `xml:"arguments"`
	Session string   `xml:"session"`
	Pattern string   `xml:"pattern"`
}

// Execute lists the screenshots. It never creates a session.
func (t *ListScreenshotsTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input ListScreenshotsInput
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}

	id := strings.TrimSpace(input.Session)
	if id == "" {
		id = t.manager.ActiveID()
	}
	pattern := strings.TrimSpace(input.Pattern)
	if pattern == "" {
		pattern = ScreenshotPrefix + "*"
	}

	names, err := t.store.List(ctx, id, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list screenshots: %w", err)
	}

	metadata := map[string]interface{}{
		"session_id": id,
		"names":      names,
	}
	if len(names) == 0 {
		return fmt.Sprintf("No screenshots for session %s.", id), metadata, nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Screenshots for session %s: %d\n\n", id, len(names))
	for _, name := range names {
		fmt.Fprintf(&result, "- %s\n", name)
	}
	return strings.TrimRight(result.String(), "\n"), metadata, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *ListScreenshotsTool) IsLoopBreaking() bool {
	return false
}
