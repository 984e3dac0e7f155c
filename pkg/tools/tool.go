// Package tools defines the tool contract exposed to agents and the XML
// argument handling shared by every tool implementation.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool represents a capability that an agent can invoke.
//
// Arguments arrive as an XML <arguments> element:
//
//	<arguments>
//	  <name>checkout</name>
//	  <full_page>true</full_page>
//	</arguments>
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "browser_screenshot")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with the given XML arguments.
	// Returns: (result string, metadata map, error)
	// Metadata is optional and can be nil
	Execute(ctx context.Context, argumentsXML []byte) (string, map[string]interface{}, error)

	// IsLoopBreaking indicates whether this tool should terminate the agent loop
	IsLoopBreaking() bool
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Set is a name-indexed collection of tools.
type Set struct {
	tools map[string]Tool
}

// NewSet builds a set from ts. Later tools replace earlier ones with the same name.
func NewSet(ts ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		s.tools[t.Name()] = t
	}
	return s
}

// Get returns the tool registered under name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool.
func (s *Set) Execute(ctx context.Context, name string, argumentsXML []byte) (string, map[string]interface{}, error) {
	t, ok := s.Get(name)
	if !ok {
		return "", nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(argumentsXML) == 0 {
		argumentsXML = []byte("<arguments></arguments>")
	}
	return t.Execute(ctx, argumentsXML)
}
