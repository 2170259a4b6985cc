package llm

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Attachment is binary content sent alongside the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request asks for one JSON document conforming to Schema.
type Request struct {
	Prompt     string
	Schema     *jsonschema.Schema
	Attachment *Attachment
}

// Generator turns a prompt into a JSON document. Implementations translate
// the schema into their provider's representation.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}
