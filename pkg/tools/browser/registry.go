package browser

import (
	"github.com/entrhq/browserhub/pkg/artifacts"
	"github.com/entrhq/browserhub/pkg/logging"
	"github.com/entrhq/browserhub/pkg/session"
	"github.com/entrhq/browserhub/pkg/tools"
)

// ToolRegistry builds the browser tools around one session manager.
type ToolRegistry struct {
	manager *session.Manager
	store   artifacts.Store
	logger  *logging.Logger
	tools   []tools.Tool
}

// NewToolRegistry creates a new browser tool registry.
func NewToolRegistry(manager *session.Manager, store artifacts.Store, logger *logging.Logger) *ToolRegistry {
	return &ToolRegistry{
		manager: manager,
		store:   store,
		logger:  logger,
	}
}

// RegisterTools creates and returns all browser tools. Repeated calls return
// the same instances.
func (r *ToolRegistry) RegisterTools() []tools.Tool {
	if len(r.tools) > 0 {
		return r.tools
	}

	r.tools = append(r.tools,
		NewStartSessionTool(r.manager),
		NewListSessionsTool(r.manager),
		NewSetActiveSessionTool(r.manager),
		NewCloseSessionTool(r.manager),
		NewScreenshotTool(r.manager, r.store, r.logger),
		NewListScreenshotsTool(r.manager, r.store),
	)
	return r.tools
}

// Set returns the registered tools indexed by name.
func (r *ToolRegistry) Set() *tools.Set {
	return tools.NewSet(r.RegisterTools()...)
}
