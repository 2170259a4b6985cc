package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// Reflect derives an inline JSON schema from a Go value's type.
func Reflect(v any) *jsonschema.Schema {
	s := reflector.Reflect(v)
	s.Version = ""
	return s
}

// NamedSchema pairs a tool name with its argument schema.
type NamedSchema struct {
	Name   string
	Schema *jsonschema.Schema
}

// TurnSchema builds the response schema for one agent decision. tool_args
// carries one optional property per registered tool.
func TurnSchema(tools []NamedSchema) *jsonschema.Schema {
	toolProps := jsonschema.NewProperties()
	for _, t := range tools {
		toolProps.Set(t.Name, t.Schema)
	}

	props := jsonschema.NewProperties()
	props.Set("target_type", &jsonschema.Schema{
		Type:        "string",
		Enum:        []any{string(TargetAgent), string(TargetTool)},
		Description: "Whether the next action addresses an agent or a tool.",
	})
	props.Set("recipient", &jsonschema.Schema{
		Type:        "string",
		Description: "Name of the agent or tool the action addresses.",
	})
	props.Set("special_action", &jsonschema.Schema{
		Type:        "string",
		Enum:        []any{string(ActionNone), string(ActionFinalizeRequirements), string(ActionCompleteProject)},
		Description: "Project-level signal. NONE unless the phase must change.",
	})
	props.Set("message", &jsonschema.Schema{
		Type:        "string",
		Description: "Message for the recipient agent. Leave empty when calling a tool.",
	})
	props.Set("tool_args", &jsonschema.Schema{
		Type:        "object",
		Properties:  toolProps,
		Description: "Arguments keyed by tool name. Set only the key equal to recipient when calling a tool.",
	})
	props.Set("thought", &jsonschema.Schema{
		Type:        "string",
		Description: "Reasoning behind this action.",
	})

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"target_type", "recipient", "special_action", "thought"},
	}
}

// Validator checks JSON documents against a compiled schema.
type Validator struct {
	schema *sjsonschema.Schema
}

func CompileSchema(name string, s *jsonschema.Schema) (*Validator, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiled, err := sjsonschema.CompileString(name+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{schema: compiled}, nil
}

func (v *Validator) Validate(doc []byte) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return v.schema.Validate(value)
}
