package webhook

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ToolHandler executes one tool call with its decoded arguments. Handlers
// report invalid arguments as success=false results; a returned error is a
// handler fault.
type ToolHandler interface {
	Execute(ctx context.Context, args map[string]any, toolCallID string) (ToolResult, error)
}

// HandlerFunc adapts a plain function to ToolHandler.
type HandlerFunc func(ctx context.Context, args map[string]any, toolCallID string) (ToolResult, error)

func (f HandlerFunc) Execute(ctx context.Context, args map[string]any, toolCallID string) (ToolResult, error) {
	return f(ctx, args, toolCallID)
}

// Entry binds a tool name to its handler.
type Entry struct {
	Name    string
	Handler ToolHandler
}

// Registry maps tool names to handlers. It is read-only once built.
type Registry struct {
	handlers map[string]ToolHandler
	names    []string
}

// NewRegistry builds a registry; empty names, nil handlers and duplicates
// are rejected.
func NewRegistry(entries ...Entry) (*Registry, error) {
	handlers := make(map[string]ToolHandler, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if entry.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		if _, exists := handlers[name]; exists {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		handlers[name] = entry.Handler
		names = append(names, name)
	}
	slices.Sort(names)

	return &Registry{handlers: handlers, names: names}, nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (ToolHandler, bool) {
	if r == nil {
		return nil, false
	}
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}
