package toolset

import (
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/internal/provider"
)

// Set is an immutable collection of tools assembled for one request.
type Set struct {
	tools map[string]Tool
	order []string
}

// NewSet builds a set from tools, keeping the first tool for any
// duplicated name.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.add(t)
	}
	return s
}

func (s *Set) add(t Tool) bool {
	name := t.Name()
	if name == "" {
		return false
	}
	if _, exists := s.tools[name]; exists {
		return false
	}
	s.tools[name] = t
	s.order = append(s.order, name)
	return true
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (s *Set) Get(name string) (Tool, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Len returns the number of tools in the set.
func (s *Set) Len() int {
	return len(s.order)
}

// Names returns tool names in aggregation order.
func (s *Set) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Definitions renders the set for a model completion request, in
// aggregation order.
func (s *Set) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		schema := t.Schema()
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schema,
		})
	}
	return defs
}
