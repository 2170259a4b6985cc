package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/YumaSeno/AIDeveloper/internal/llm"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

var ErrRetriesExhausted = errors.New("generation retries exhausted")

const (
	DefaultMaxAttempts = 4
	DefaultRetryDelay  = 30 * time.Second
)

// RetryPolicy bounds structured generation. An attempt fails when the
// generator errors or its output does not satisfy the schema.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) sleep(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// generateJSON requests a document for schema and decodes it into out,
// retrying on any failure until the policy is exhausted.
func (p RetryPolicy) generateJSON(ctx context.Context, gen llm.Generator, name string, req llm.Request, out any) error {
	validator, err := model.CompileSchema(name, req.Schema)
	if err != nil {
		return err
	}
	limit := p.attempts()
	for attempt := 1; ; attempt++ {
		err := p.try(ctx, gen, validator, req, out)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= limit {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		slog.Warn("generation failed, retrying",
			"schema", name,
			"attempt", attempt,
			"max_attempts", limit,
			"delay", p.Delay,
			"error", err,
		)
		if err := p.sleep(ctx); err != nil {
			return err
		}
	}
}

func (p RetryPolicy) try(ctx context.Context, gen llm.Generator, v *model.Validator, req llm.Request, out any) error {
	raw, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	doc, err := stripNulls(raw)
	if err != nil {
		return err
	}
	if err := v.Validate(doc); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// stripNulls removes null-valued object members at any depth so optional
// fields the model filled with null read as unset.
func stripNulls(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, errors.New("response is not a JSON object")
	}
	return json.Marshal(dropNulls(v))
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = dropNulls(val)
		}
		return t
	default:
		return v
	}
}

// decideTurn asks the generator for one Turn.
func (p RetryPolicy) decideTurn(ctx context.Context, gen llm.Generator, tools Tools, prompt string, att *llm.Attachment) (model.Turn, error) {
	var schemas []model.NamedSchema
	if tools != nil {
		schemas = tools.Schemas()
	}
	var turn model.Turn
	err := p.generateJSON(ctx, gen, "turn", llm.Request{
		Prompt:     prompt,
		Schema:     model.TurnSchema(schemas),
		Attachment: att,
	}, &turn)
	if err != nil {
		return model.Turn{}, err
	}
	return normalizeTurn(turn), nil
}

// normalizeTurn keeps only the argument entry addressed to the recipient
// tool and clears the sender.
func normalizeTurn(t model.Turn) model.Turn {
	t.Sender = ""
	if t.SpecialAction == "" {
		t.SpecialAction = model.ActionNone
	}
	if t.TargetType != model.TargetTool {
		t.ToolArgs = nil
		return t
	}
	if raw, ok := t.ToolArgs[t.Recipient]; ok {
		t.ToolArgs = map[string]json.RawMessage{t.Recipient: raw}
	} else {
		t.ToolArgs = nil
	}
	return t
}

func planSchema() *jsonschema.Schema {
	return model.Reflect(&model.ProjectPlan{})
}
