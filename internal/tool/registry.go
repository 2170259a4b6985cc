package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// Descriptor is the catalog view of a tool embedded in prompts.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Arguments   *jsonschema.Schema `json:"arguments"`
}

// Registry maps tool names to tools and their compiled argument validators.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*model.Validator
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		validators: make(map[string]*model.Validator),
	}
}

func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register tool %s: already registered", name)
	}
	v, err := model.CompileSchema(name, t.ArgumentSchema())
	if err != nil {
		return fmt.Errorf("register tool %s: %w", name, err)
	}
	r.tools[name] = t
	r.validators[name] = v
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Catalog lists tools in registration order.
func (r *Registry) Catalog() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{Name: name, Description: t.Description(), Arguments: t.ArgumentSchema()})
	}
	return out
}

// Schemas returns the argument schema of each tool for building the turn schema.
func (r *Registry) Schemas() []model.NamedSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.NamedSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, model.NamedSchema{Name: name, Schema: r.tools[name].ArgumentSchema()})
	}
	return out
}

// Dispatch runs the named tool with its entry from toolArgs. It never
// panics or returns an error: every failure becomes an error result.
func (r *Registry) Dispatch(ctx context.Context, name string, toolArgs map[string]json.RawMessage) (result model.ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool panicked", "tool", name, "panic", p)
			result = model.ErrorResult(name, "tool %s failed: %v", name, p)
		}
	}()

	r.mu.RLock()
	t, ok := r.tools[name]
	v := r.validators[name]
	r.mu.RUnlock()
	if !ok {
		return model.ErrorResult(name, "tool %q is not registered", name)
	}

	raw, ok := toolArgs[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return model.ErrorResult(name, "tool_args has no entry for %s", name)
	}
	if err := v.Validate(raw); err != nil {
		return model.ErrorResult(name, "invalid arguments for %s: %v", name, err)
	}

	out, err := t.Execute(ctx, raw)
	if err != nil {
		slog.Info("tool returned error", "tool", name, "error", err)
		return model.ErrorResult(name, "%v", err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return model.ErrorResult(name, "encode result of %s: %v", name, err)
	}
	return model.ToolResult{ToolName: name, Result: data}
}
