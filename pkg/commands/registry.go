// Package commands implements the CommandRegistry collaborator (§6.3):
// dispatching "/name arg" input lines to registered handlers by name or
// alias.
package commands

import "context"

// Quit is the magic string a /quit handler returns; the REPL treats it as
// the signal to exit.
const Quit = "__QUIT__"

// Handler executes one built-in command, given the text after the command
// name (possibly empty).
type Handler func(ctx context.Context, args string) (string, error)

// entry pairs a handler with the help text shown by /help.
type entry struct {
	name    string
	help    string
	handler Handler
}

// Registry maps command names and aliases to handlers. Immutable after
// registration, so reads need no lock (§5's shared-state policy).
type Registry struct {
	entries map[string]*entry
	order   []*entry
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a command under name, with any number of aliases, all
// resolving to the same handler.
func (r *Registry) Register(name, help string, handler Handler, aliases ...string) {
	e := &entry{name: name, help: help, handler: handler}
	r.entries[name] = e
	for _, alias := range aliases {
		r.entries[alias] = e
	}
	r.order = append(r.order, e)
}

// Execute looks up name (or alias) and runs its handler with args. The
// second return value is false when name is not registered.
func (r *Registry) Execute(ctx context.Context, name, args string) (string, bool, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", false, nil
	}
	out, err := e.handler(ctx, args)
	return out, true, err
}

// Names returns every canonical command name (not aliases), in
// registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, e := range r.order {
		names[i] = e.name
	}
	return names
}

// Help returns the help text for one canonical command name.
func (r *Registry) Help(name string) (string, bool) {
	e, ok := r.entries[name]
	if !ok || e.name != name {
		return "", false
	}
	return e.help, true
}
