// Package tools holds the tool registry. Each tool carries an explicit
// classification tag at registration time; consumers must never infer a
// tool's nature from its name.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind classifies a tool for status display and session bookkeeping.
type Kind string

// Tool classification tags.
const (
	KindGeneric  Kind = "generic"  // ordinary request/response tool
	KindResearch Kind = "research" // long-running research/search tool
	KindBrowser  Kind = "browser"  // remote browser automation with a live view
)

// Tool is a registered tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Kind        Kind            `json:"kind"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Registry is an immutable set of registered tools.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry builds a registry from the given tools. Duplicate names are an
// error.
func NewRegistry(ts ...Tool) (*Registry, error) {
	byName := make(map[string]Tool, len(ts))
	for _, t := range ts {
		if t.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, ok := byName[t.Name]; ok {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		if t.Kind == "" {
			t.Kind = KindGeneric
		}
		byName[t.Name] = t
	}
	return &Registry{byName: byName}, nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// KindOf returns the classification of the named tool, KindGeneric for
// unregistered names.
func (r *Registry) KindOf(name string) Kind {
	if t, ok := r.byName[name]; ok {
		return t.Kind
	}
	return KindGeneric
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks that every name is registered.
func (r *Registry) Validate(names []string) error {
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return fmt.Errorf("unknown tool: %s", n)
		}
	}
	return nil
}

// Default returns the built-in tool set.
func Default() *Registry {
	r, err := NewRegistry(
		Tool{
			Name:        "calculator",
			Kind:        KindGeneric,
			Description: "Evaluate arithmetic expressions.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}},"required":["expression"]}`),
		},
		Tool{
			Name:        "web_search",
			Kind:        KindResearch,
			Description: "Search the web and return result snippets.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
		Tool{
			Name:        "browser",
			Kind:        KindBrowser,
			Description: "Drive a remote browser session. Exposes a live view.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"action":{"type":"string"},"url":{"type":"string"}},"required":["action"]}`),
		},
		Tool{
			Name:        "code_interpreter",
			Kind:        KindGeneric,
			Description: "Run short Python snippets in a sandbox.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"code":{"type":"string"}},"required":["code"]}`),
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
