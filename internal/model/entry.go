package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type LogType string

const (
	LogTypeTurn       LogType = "turn"
	LogTypeToolResult LogType = "tool_result"
)

// Entry is the unit of persistence: exactly one of Turn or Result is set.
type Entry struct {
	Turn   *Turn
	Result *ToolResult
}

func TurnEntry(t Turn) Entry {
	return Entry{Turn: &t}
}

func ResultEntry(r ToolResult) Entry {
	return Entry{Result: &r}
}

func (e Entry) Type() LogType {
	if e.Turn != nil {
		return LogTypeTurn
	}
	return LogTypeToolResult
}

// Clone returns a deep copy, so redaction never reaches logged history.
func (e Entry) Clone() Entry {
	var c Entry
	if e.Turn != nil {
		t := e.Turn.clone()
		c.Turn = &t
	}
	if e.Result != nil {
		r := e.Result.clone()
		c.Result = &r
	}
	return c
}

// Validate checks the structural shape shared by append and load. Any
// non-empty target_type passes, so protocol violations replay as logged.
func (e Entry) Validate() error {
	switch {
	case e.Turn != nil && e.Result != nil:
		return errors.New("entry holds both a turn and a tool result")
	case e.Turn != nil:
		if e.Turn.Recipient == "" {
			return errors.New("turn has no recipient")
		}
		if e.Turn.TargetType == "" {
			return errors.New("turn has no target_type")
		}
		if !e.Turn.SpecialAction.Valid() {
			return fmt.Errorf("turn has unknown special_action %q", e.Turn.SpecialAction)
		}
	case e.Result != nil:
		if e.Result.ToolName == "" {
			return errors.New("tool result has no tool_name")
		}
	default:
		return errors.New("empty entry")
	}
	return nil
}

type wireEntry struct {
	LogType LogType         `json:"log_type"`
	Data    json.RawMessage `json:"data"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case e.Turn != nil:
		data, err = json.Marshal(e.Turn)
	case e.Result != nil:
		data, err = json.Marshal(e.Result)
	default:
		return nil, errors.New("marshal empty entry")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEntry{LogType: e.Type(), Data: data})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var w wireEntry
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.LogType {
	case LogTypeTurn:
		var t Turn
		if err := json.Unmarshal(w.Data, &t); err != nil {
			return fmt.Errorf("decode turn: %w", err)
		}
		if t.SpecialAction == "" {
			t.SpecialAction = ActionNone
		}
		*e = Entry{Turn: &t}
	case LogTypeToolResult:
		var r ToolResult
		if err := json.Unmarshal(w.Data, &r); err != nil {
			return fmt.Errorf("decode tool result: %w", err)
		}
		*e = Entry{Result: &r}
	default:
		return fmt.Errorf("unknown log_type %q", w.LogType)
	}
	return nil
}
