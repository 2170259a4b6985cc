package agent

import (
	"context"
	"fmt"

	"github.com/YumaSeno/AIDeveloper/internal/history"
	"github.com/YumaSeno/AIDeveloper/internal/llm"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// Coordinator gathers requirements until they are finalized, then behaves
// like a worker. It also plans the kickoff.
type Coordinator struct {
	profile model.AgentProfile
	gen     llm.Generator
	retry   RetryPolicy
	window  int
}

func NewCoordinator(p model.AgentProfile, gen llm.Generator, retry RetryPolicy, window int) *Coordinator {
	return &Coordinator{profile: p, gen: gen, retry: retry, window: window}
}

func (c *Coordinator) Profile() model.AgentProfile { return c.profile }

func (c *Coordinator) DecideNextAction(ctx context.Context, in TurnInput) (model.Turn, error) {
	task := requirementsTask
	if requirementsFinalized(in.History) {
		task = developmentTask
	}
	return decide(ctx, c.profile, task, in, c.gen, c.retry, c.window)
}

func requirementsFinalized(entries []model.Entry) bool {
	for _, e := range entries {
		if e.Turn != nil && e.Turn.SpecialAction == model.ActionFinalizeRequirements {
			return true
		}
	}
	return false
}

// PlanKickoff asks for the project plan using the entire log. Only the
// attachment rule is applied; nothing else is redacted.
func (c *Coordinator) PlanKickoff(ctx context.Context, fullLog []model.Entry, team []model.AgentProfile, tools Tools) (model.ProjectPlan, error) {
	comp := history.Compactor{Window: len(fullLog) + 1}
	if tools != nil {
		comp.Tools = tools
	}
	compacted := comp.Compact(fullLog)

	var plan model.ProjectPlan
	err := c.retry.generateJSON(ctx, c.gen, "project_plan", llm.Request{
		Prompt:     buildKickoffPrompt(c.profile, team, compacted.Entries),
		Schema:     planSchema(),
		Attachment: llmAttachment(compacted.Attachment),
	}, &plan)
	if err != nil {
		return model.ProjectPlan{}, fmt.Errorf("plan kickoff: %w", err)
	}
	for i := range plan.Team {
		plan.Team[i].Kind = model.KindWorker
	}
	return plan, nil
}
