package agent

import (
	"context"

	"github.com/YumaSeno/AIDeveloper/internal/history"
	"github.com/YumaSeno/AIDeveloper/internal/llm"
	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
)

// Worker is a generated team member formed at kickoff.
type Worker struct {
	profile model.AgentProfile
	gen     llm.Generator
	retry   RetryPolicy
	window  int
}

func NewWorker(p model.AgentProfile, gen llm.Generator, retry RetryPolicy, window int) *Worker {
	return &Worker{profile: p, gen: gen, retry: retry, window: window}
}

func (w *Worker) Profile() model.AgentProfile { return w.profile }

func (w *Worker) DecideNextAction(ctx context.Context, in TurnInput) (model.Turn, error) {
	return decide(ctx, w.profile, developmentTask, in, w.gen, w.retry, w.window)
}

// decide compacts the personal history, renders the prompt and asks the
// generator for a turn.
func decide(ctx context.Context, p model.AgentProfile, task string, in TurnInput, gen llm.Generator, retry RetryPolicy, window int) (model.Turn, error) {
	c := history.Compactor{Window: window}
	if in.Tools != nil {
		c.Tools = in.Tools
	}
	compacted := c.Compact(in.History)

	prompt := buildTurnPrompt(p, task, in, compacted.Entries)
	return retry.decideTurn(ctx, gen, in.Tools, prompt, llmAttachment(compacted.Attachment))
}

func llmAttachment(a *tool.Attachment) *llm.Attachment {
	if a == nil {
		return nil
	}
	return &llm.Attachment{MIMEType: a.MIMEType, Data: a.Data}
}
