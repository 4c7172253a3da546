// Package action is the pluggable catalog of named, schema-described
// operations the model may request. Tool failures are data, not control
// flow: they come back as a failed Result so the model can react, never as
// a panic or error through the registry.
package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
)

// Result is the outcome of one tool execution.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds an unsuccessful result from an error.
func Failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// JSON renders the result for feeding back to the model as a tool-result turn.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"unserializable result: %s"}`, err)
	}
	return string(data)
}

// ExecContext carries per-invocation capabilities into a tool. ChatID lets
// tools tag their side effects with the originating conversation.
type ExecContext struct {
	ChatID string
}

// Tool is one registered operation.
type Tool interface {
	// Schema returns the tool's immutable machine-readable description.
	// Names are snake_case and globally unique.
	Schema() chat.ToolSchema

	// Execute runs the tool. Implementations report contract violations as
	// a failed Result rather than an error.
	Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result
}

// Registry resolves tool names to handlers and exposes their schemas.
// Registration happens once at startup; the registry is immutable afterward.
type Registry struct {
	tools map[string]Tool
	order []string
	log   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   log.Sub("action"),
	}
}

// Register adds a tool. A duplicate schema name is a startup error: the
// caller is expected to abort rather than run with a silently shadowed tool.
func (r *Registry) Register(t Tool) error {
	name := t.Schema().Name
	if name == "" {
		return fmt.Errorf("tool has empty schema name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	r.log.Debug().Str("tool", name).Msg("registered tool")
	return nil
}

// MustRegister registers a set of tools, panicking on collision. For use in
// process wiring where a duplicate name is unrecoverable.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Schemas returns registered schemas in registration order. With filter
// names given, only the matching subset is returned.
func (r *Registry) Schemas(filterNames ...string) []chat.ToolSchema {
	var wanted map[string]bool
	if len(filterNames) > 0 {
		wanted = make(map[string]bool, len(filterNames))
		for _, n := range filterNames {
			wanted[n] = true
		}
	}

	out := make([]chat.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		if wanted != nil && !wanted[name] {
			continue
		}
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// Execute runs the named tool. Unknown names, invalid params, and panics
// inside a tool all come back as a failed Result.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage, ec ExecContext) (result Result) {
	tool, ok := r.tools[name]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("tool", name).Any("panic", rec).Msg("tool panicked")
			result = Result{Success: false, Error: fmt.Sprintf("tool %s failed: %v", name, rec)}
		}
	}()

	r.log.Debug().Str("tool", name).Str("chat", ec.ChatID).Msg("executing tool")
	return tool.Execute(ctx, params, ec)
}
