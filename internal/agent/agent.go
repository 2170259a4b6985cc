package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/YumaSeno/AIDeveloper/internal/llm"
	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
)

// Tools is the registry view agents need to describe and compact tool use.
type Tools interface {
	Get(name string) (tool.Tool, bool)
	Catalog() []tool.Descriptor
	Schemas() []model.NamedSchema
}

// TurnInput is everything an agent sees when it is asked to act.
type TurnInput struct {
	// History is the agent's personal projection of the log.
	History  []model.Entry
	Project  string
	FileTree string
	Tools    Tools
	Team     []model.AgentProfile
}

// Agent decides the next action for one team member. Implementations leave
// Turn.Sender empty; the scheduler stamps it.
type Agent interface {
	Profile() model.AgentProfile
	DecideNextAction(ctx context.Context, in TurnInput) (model.Turn, error)
}

// KickoffPlanner forms the development team from the full log once
// requirements are finalized.
type KickoffPlanner interface {
	PlanKickoff(ctx context.Context, fullLog []model.Entry, team []model.AgentProfile, tools Tools) (model.ProjectPlan, error)
}

// Team is the ordered, add-only roster of a run.
type Team struct {
	mu      sync.RWMutex
	members map[string]Agent
	order   []string
}

func NewTeam() *Team {
	return &Team{members: make(map[string]Agent)}
}

// Add registers a member. It returns false when the name is already taken;
// the existing member is kept.
func (t *Team) Add(a Agent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	name := a.Profile().Name
	if _, ok := t.members[name]; ok {
		return false
	}
	t.members[name] = a
	t.order = append(t.order, name)
	return true
}

func (t *Team) Get(name string) (Agent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.members[name]
	return a, ok
}

func (t *Team) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

func (t *Team) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Profiles returns member profiles in insertion order.
func (t *Team) Profiles() []model.AgentProfile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.AgentProfile, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.members[name].Profile())
	}
	return out
}

// Factory builds agents from profiles, selecting the behavior by Kind.
type Factory struct {
	Generator llm.Generator
	Prompter  Prompter
	Retry     RetryPolicy
	// Window is the compaction recency window used in prompts.
	Window int
}

func (f Factory) New(p model.AgentProfile) (Agent, error) {
	switch p.Kind {
	case model.KindCoordinator:
		return NewCoordinator(p, f.Generator, f.Retry, f.Window), nil
	case model.KindHuman:
		if f.Prompter == nil {
			return nil, fmt.Errorf("agent %s: no human input source configured", p.Name)
		}
		return NewHumanProxy(p, f.Prompter), nil
	case model.KindWorker, "":
		p.Kind = model.KindWorker
		return NewWorker(p, f.Generator, f.Retry, f.Window), nil
	default:
		return nil, fmt.Errorf("agent %s: unknown kind %q", p.Name, p.Kind)
	}
}

// CoordinatorProfile is the built-in project manager.
func CoordinatorProfile() model.AgentProfile {
	return model.AgentProfile{
		Name:        model.CoordinatorName,
		Role:        "Project manager",
		ProjectRole: "Interviews the client, finalizes requirements, forms the team and drives the project to completion.",
		DetailedInstructions: "Keep the client informed of progress. Assign one concrete task at a time. " +
			"Review deliverables before declaring the project complete.",
		Kind: model.KindCoordinator,
	}
}

// HumanProfile is the seat of the human client.
func HumanProfile() model.AgentProfile {
	return model.AgentProfile{
		Name:        model.HumanName,
		Role:        "Client",
		ProjectRole: "Commissioned the project. Answers questions about requirements and reviews results.",
		Kind:        model.KindHuman,
	}
}
