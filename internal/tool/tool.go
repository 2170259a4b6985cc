package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// Tool is the capability contract every registered tool honors.
type Tool interface {
	Name() string
	Description() string
	ArgumentSchema() *jsonschema.Schema
	Execute(ctx context.Context, args json.RawMessage) (any, error)
	// OmitArgs and OmitResult degrade stale payloads for prompts.
	OmitArgs(turnsElapsed int, args json.RawMessage) json.RawMessage
	OmitResult(turnsElapsed int, result json.RawMessage) json.RawMessage
}

// Attachment is a binary payload delivered to the generator out-of-band.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// AttachmentTool marks tools whose successful results carry a binary
// attachment. At most one such payload is kept live per prompt.
type AttachmentTool interface {
	Tool
	Attachment(result json.RawMessage) (Attachment, error)
}

// Spec describes a tool with strongly typed arguments and result.
type Spec[A any, R any] struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args A) (R, error)
	OmitArgs    func(turnsElapsed int, args A) A
	OmitResult  func(turnsElapsed int, result R) R
}

type typed[A any, R any] struct {
	spec   Spec[A, R]
	schema *jsonschema.Schema
}

// New wraps a typed spec as a Tool. Missing omit hooks pass payloads through.
func New[A any, R any](spec Spec[A, R]) Tool {
	return &typed[A, R]{spec: spec, schema: model.Reflect(new(A))}
}

func (t *typed[A, R]) Name() string                       { return t.spec.Name }
func (t *typed[A, R]) Description() string                { return t.spec.Description }
func (t *typed[A, R]) ArgumentSchema() *jsonschema.Schema { return t.schema }

func (t *typed[A, R]) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var args A
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return t.spec.Run(ctx, args)
}

func (t *typed[A, R]) OmitArgs(turnsElapsed int, raw json.RawMessage) json.RawMessage {
	if t.spec.OmitArgs == nil {
		return raw
	}
	var args A
	if err := json.Unmarshal(raw, &args); err != nil {
		return raw
	}
	out, err := json.Marshal(t.spec.OmitArgs(turnsElapsed, args))
	if err != nil {
		return raw
	}
	return out
}

func (t *typed[A, R]) OmitResult(turnsElapsed int, raw json.RawMessage) json.RawMessage {
	if t.spec.OmitResult == nil {
		return raw
	}
	var result R
	if err := json.Unmarshal(raw, &result); err != nil {
		return raw
	}
	out, err := json.Marshal(t.spec.OmitResult(turnsElapsed, result))
	if err != nil {
		return raw
	}
	return out
}

type attaching[A any, R any] struct {
	*typed[A, R]
	attach func(result R) (Attachment, error)
}

// NewAttaching wraps a typed spec whose results carry a binary attachment.
func NewAttaching[A any, R any](spec Spec[A, R], attach func(result R) (Attachment, error)) AttachmentTool {
	return &attaching[A, R]{
		typed:  &typed[A, R]{spec: spec, schema: model.Reflect(new(A))},
		attach: attach,
	}
}

func (t *attaching[A, R]) Attachment(raw json.RawMessage) (Attachment, error) {
	var result R
	if err := json.Unmarshal(raw, &result); err != nil {
		return Attachment{}, fmt.Errorf("decode attachment result: %w", err)
	}
	return t.attach(result)
}
