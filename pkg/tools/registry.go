// Package tools implements the Tool Registry & Executor (C4): a synchronous,
// JSON-in/JSON-out tool surface the LLM can call, plus the bounded iterative
// tool-calling loop that drives a single user turn to completion.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"realconsole/pkg/llm"
)

// Handler is a synchronous pure function from JSON-encoded arguments to a
// JSON-or-plain-text result, or an error string surfaced back to the LLM.
type Handler func(argsJSON string) (string, error)

// Spec describes one registrable tool: its LLM-facing schema and the handler
// that actually performs it. Parameters is a JSON-Schema object
// (map[string]any), typically built with ReflectParameters.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry is the process-wide table of available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Spec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Spec)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tools[name]
	return s, ok
}

// List returns every registered tool, sorted by registration is not
// guaranteed — callers that need a stable order should sort by Name.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.tools))
	for _, s := range r.tools {
		out = append(out, s)
	}
	return out
}

// Execute invokes the named tool's handler with argsJSON. An unknown tool
// name is an error, not a panic — callers (the iterative executor) turn this
// into a Tool-role error message rather than aborting the loop.
func (r *Registry) Execute(name, argsJSON string) (string, error) {
	spec, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return spec.Handler(argsJSON)
}

// FunctionSchemas returns the LLM-consumable JSON schema for every
// registered tool (§4.3's get_function_schemas).
func (r *Registry) FunctionSchemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]llm.ToolSchema, 0, len(r.tools))
	for _, s := range r.tools {
		var ts llm.ToolSchema
		ts.Type = "function"
		ts.Function.Name = s.Name
		ts.Function.Description = s.Description
		ts.Function.Parameters = s.Parameters
		out = append(out, ts)
	}
	return out
}

// ReflectParameters derives a JSON schema for a tool's arguments from a Go
// struct (via `json` and `jsonschema` struct tags), so handlers can declare
// their argument shape as a typed struct instead of hand-writing a schema.
func ReflectParameters(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
