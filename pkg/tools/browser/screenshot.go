package browser

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserhub/pkg/artifacts"
	"github.com/entrhq/browserhub/pkg/logging"
	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// ScreenshotTool captures the page of a session and stores it as an artifact
// of that session.
type ScreenshotTool struct {
	manager *session.Manager
	store   artifacts.Store
	logger  *logging.Logger
	now     func() time.Time
}

// NewScreenshotTool creates a new screenshot tool.
func NewScreenshotTool(manager *session.Manager, store artifacts.Store, logger *logging.Logger) *ScreenshotTool {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ScreenshotTool{
		manager: manager,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Name returns the tool name.
func (t *ScreenshotTool) Name() string {
	return "browser_screenshot"
}

// Description returns the tool description.
func (t *ScreenshotTool) Description() string {
	return "Take a screenshot of the current page. The image is stored with the session and returned base64-encoded in the tool metadata."
}

// Schema returns the tool's JSON schema.
func (t *ScreenshotTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Short label for the screenshot, used in its stored name",
			},
			"session": map[string]interface{}{
				"type":        "string",
				"description": "Browser session to capture. Default: the active session",
			},
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of the viewport. Default: true",
			},
		},
		nil,
	)
}

// ScreenshotInput defines the input parameters for a screenshot.
type ScreenshotInput struct {
	XMLName  xml.Name `xml:"arguments"`
	Name     string   `xml:"name"`
	Session  string   `xml:"session"`
	FullPage *bool    `xml:"full_page"`
}

// Execute captures and stores the screenshot.
func (t *ScreenshotTool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input ScreenshotInput
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.ContainsAny(input.Name, "/\\") {
		return "", nil, fmt.Errorf("screenshot name must not contain path separators")
	}
	fullPage := true
	if input.FullPage != nil {
		fullPage = *input.FullPage
	}

	rec, err := resolveSession(ctx, t.manager, strings.TrimSpace(input.Session))
	if err != nil {
		return "", nil, fmt.Errorf("failed to get browser session: %w", err)
	}

	data, err := rec.Page.Screenshot(fullPage)
	if err != nil {
		return "", nil, fmt.Errorf("failed to take screenshot: %w", err)
	}

	content, err := rec.Page.Content()
	if err != nil {
		t.logger.Warnf("could not read page content for %s: %v", rec.ID, err)
	}
	meta := readPageMeta(rec.Page.URL(), content)

	at := t.now()
	name := screenshotName(strings.TrimSpace(input.Name), at)
	if err := t.store.Put(ctx, artifacts.Artifact{
		SessionID: rec.ID,
		Name:      name,
		MimeType:  ScreenshotMimeType,
		Data:      data,
		CreatedAt: at,
	}); err != nil {
		return "", nil, fmt.Errorf("failed to store screenshot: %w", err)
	}
	t.logger.Infof("stored screenshot %s for session %s (%d bytes)", name, rec.ID, len(data))

	metadata := map[string]interface{}{
		"session_id":   rec.ID,
		"name":         name,
		"url":          meta.URL,
		"title":        meta.Title,
		"mime_type":    ScreenshotMimeType,
		"size_bytes":   len(data),
		"image_base64": base64.StdEncoding.EncodeToString(data),
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Screenshot taken with name: %s\n\n", name)
	fmt.Fprintf(&result, "Session: %s\nURL: %s\n", rec.ID, meta.URL)
	if meta.Title != "" {
		fmt.Fprintf(&result, "Title: %s\n", meta.Title)
	}
	if meta.Description != "" {
		fmt.Fprintf(&result, "Description: %s\n", meta.Description)
	}
	fmt.Fprintf(&result, "Size: %d bytes", len(data))

	return result.String(), metadata, nil
}

// IsLoopBreaking returns whether this tool breaks the agent loop.
func (t *ScreenshotTool) IsLoopBreaking() bool {
	return false
}
