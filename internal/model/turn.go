package model

import (
	"encoding/json"
	"fmt"
)

// Reserved participant names.
const (
	CoordinatorName = "PM"
	HumanName       = "USER"
	Broadcast       = "ALL"
)

type TargetType string

const (
	TargetAgent TargetType = "AGENT"
	TargetTool  TargetType = "TOOL"
)

type SpecialAction string

const (
	ActionNone                 SpecialAction = "NONE"
	ActionFinalizeRequirements SpecialAction = "FINALIZE_REQUIREMENTS"
	ActionCompleteProject      SpecialAction = "COMPLETE_PROJECT"
)

// UnmarshalJSON accepts the legacy "_" marker and an empty value as NONE.
func (a *SpecialAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "", "_":
		*a = ActionNone
	default:
		*a = SpecialAction(s)
	}
	return nil
}

func (a SpecialAction) Valid() bool {
	switch a {
	case ActionNone, ActionFinalizeRequirements, ActionCompleteProject:
		return true
	}
	return false
}

// Turn is one participant's decision: speak to an agent or invoke a tool.
// Sender is stamped by the scheduler, never by the agent.
type Turn struct {
	Sender        string                     `json:"sender"`
	TargetType    TargetType                 `json:"target_type"`
	Recipient     string                     `json:"recipient"`
	SpecialAction SpecialAction              `json:"special_action"`
	Message       string                     `json:"message,omitempty"`
	ToolArgs      map[string]json.RawMessage `json:"tool_args,omitempty"`
	Thought       string                     `json:"thought"`
}

// Args returns the argument payload addressed to the turn's recipient tool.
func (t Turn) Args() (json.RawMessage, bool) {
	raw, ok := t.ToolArgs[t.Recipient]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (t Turn) clone() Turn {
	c := t
	if t.ToolArgs != nil {
		c.ToolArgs = make(map[string]json.RawMessage, len(t.ToolArgs))
		for k, v := range t.ToolArgs {
			c.ToolArgs[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// ToolResult is the logged outcome of dispatching a TOOL turn.
type ToolResult struct {
	ToolName string          `json:"tool_name"`
	Result   json.RawMessage `json:"result"`
	Error    bool            `json:"error"`
}

// ErrorResult builds a failed result carrying a human-readable message.
func ErrorResult(toolName, format string, args ...any) ToolResult {
	msg, _ := json.Marshal(fmt.Sprintf(format, args...))
	return ToolResult{ToolName: toolName, Result: msg, Error: true}
}

// Text returns the result as a string when the payload is a JSON string,
// otherwise the raw JSON text.
func (r ToolResult) Text() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

func (r ToolResult) clone() ToolResult {
	c := r
	c.Result = append(json.RawMessage(nil), r.Result...)
	return c
}
