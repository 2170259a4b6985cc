package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/YumaSeno/AIDeveloper/internal/agent"
	"github.com/YumaSeno/AIDeveloper/internal/eventlog"
	"github.com/YumaSeno/AIDeveloper/internal/history"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// Metadata file names inside the project's meta directory.
const (
	LogFile  = "00_Project_Log.jsonl"
	PlanFile = "01_project_plan.json"
)

const (
	bootstrapKickoff  = "Start the project. Interview " + model.HumanName + " first."
	bootstrapGreeting = "Hello! What application do you want to build?"
)

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrNotEmpty     = errors.New("event log is not empty")
)

// Workspace is the project directory as seen by the scheduler.
type Workspace interface {
	Project() string
	ListFiles() (string, error)
	SaveMeta(name string, data []byte) error
	ReadMeta(name string) ([]byte, error)
	RemoveMeta(name string) error
}

// ToolBox describes and dispatches tools.
type ToolBox interface {
	agent.Tools
	Dispatch(ctx context.Context, name string, toolArgs map[string]json.RawMessage) model.ToolResult
}

// AgentFactory builds a team member from its profile.
type AgentFactory interface {
	New(p model.AgentProfile) (agent.Agent, error)
}

// Observer is told about state changes that are not log entries.
type Observer interface {
	PhaseChanged(from, to Phase)
	MemberAdded(p model.AgentProfile)
}

type Deps struct {
	// RunID identifies this run to observers; empty generates one.
	RunID     string
	Log       *eventlog.Log
	Workspace Workspace
	Tools     ToolBox
	Agents    AgentFactory
	Observers []Observer
	// Tick runs before every loop iteration; nil disables it.
	Tick func(ctx context.Context)
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID   string `json:"run_id"`
	Project string `json:"project"`
	Phase   Phase  `json:"phase"`
	Speaker string `json:"speaker"`
	Team    int    `json:"team"`
	Entries int    `json:"entries"`
}

// Orchestrator owns the log, the team and the active speaker, and drives
// the turn loop.
type Orchestrator struct {
	log       *eventlog.Log
	ws        Workspace
	tools     ToolBox
	agents    AgentFactory
	observers []Observer
	tick      func(ctx context.Context)
	team      *agent.Team
	runID     string

	mu         sync.RWMutex
	phase      Phase
	speaker    string
	kickoffDue bool
}

// New builds an orchestrator whose team holds the coordinator and the
// human proxy.
func New(d Deps) (*Orchestrator, error) {
	if d.Log == nil || d.Workspace == nil || d.Tools == nil || d.Agents == nil {
		return nil, errors.New("orchestrator: log, workspace, tools and agents are required")
	}
	runID := d.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	o := &Orchestrator{
		log:       d.Log,
		ws:        d.Workspace,
		tools:     d.Tools,
		agents:    d.Agents,
		observers: d.Observers,
		tick:      d.Tick,
		team:      agent.NewTeam(),
		runID:     runID,
	}
	for _, p := range []model.AgentProfile{agent.CoordinatorProfile(), agent.HumanProfile()} {
		if _, err := o.addMember(p); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) Team() []model.AgentProfile { return o.team.Profiles() }

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		RunID:   o.runID,
		Project: o.ws.Project(),
		Phase:   o.phase,
		Speaker: o.speaker,
		Team:    o.team.Len(),
		Entries: o.log.Len(),
	}
}

func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

func (o *Orchestrator) Speaker() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.speaker
}

func (o *Orchestrator) setSpeaker(name string) {
	o.mu.Lock()
	o.speaker = name
	o.mu.Unlock()
}

func (o *Orchestrator) setPhase(to Phase) error {
	o.mu.Lock()
	from := o.phase
	if from != "" {
		if err := ValidateTransition(from, to); err != nil {
			o.mu.Unlock()
			return err
		}
	}
	o.phase = to
	o.mu.Unlock()

	slog.Info("phase changed", "run", o.runID, "from", from, "to", to)
	for _, obs := range o.observers {
		obs.PhaseChanged(from, to)
	}
	return nil
}

// addMember instantiates and registers p unless the name is taken. It
// reports whether the member was added.
func (o *Orchestrator) addMember(p model.AgentProfile) (bool, error) {
	if o.team.Has(p.Name) {
		return false, nil
	}
	a, err := o.agents.New(p)
	if err != nil {
		return false, fmt.Errorf("create agent %s: %w", p.Name, err)
	}
	if !o.team.Add(a) {
		return false, nil
	}
	for _, obs := range o.observers {
		obs.MemberAdded(a.Profile())
	}
	return true, nil
}

func (o *Orchestrator) appendTurn(t model.Turn) error {
	if err := o.log.Append(model.TurnEntry(t)); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	slog.Info("turn",
		"sender", t.Sender,
		"target_type", t.TargetType,
		"recipient", t.Recipient,
		"special_action", t.SpecialAction,
	)
	return nil
}

func (o *Orchestrator) appendResult(r model.ToolResult) error {
	if err := o.log.Append(model.ResultEntry(r)); err != nil {
		return fmt.Errorf("append tool result: %w", err)
	}
	return nil
}

// Bootstrap starts a new run on an empty log: the stale plan is removed and
// the two opening turns hand the floor to the human.
func (o *Orchestrator) Bootstrap() error {
	if o.log.Len() != 0 {
		return ErrNotEmpty
	}
	if err := o.ws.RemoveMeta(PlanFile); err != nil {
		return err
	}
	if err := o.setPhase(PhaseGathering); err != nil {
		return err
	}
	opening := []model.Turn{
		{
			TargetType:    model.TargetAgent,
			Recipient:     model.CoordinatorName,
			SpecialAction: model.ActionNone,
			Message:       bootstrapKickoff,
		},
		{
			Sender:        model.CoordinatorName,
			TargetType:    model.TargetAgent,
			Recipient:     model.HumanName,
			SpecialAction: model.ActionNone,
			Message:       bootstrapGreeting,
		},
	}
	for _, t := range opening {
		if err := o.appendTurn(t); err != nil {
			return err
		}
	}
	o.setSpeaker(model.HumanName)
	return nil
}

// Run drives the turn loop until the project is complete or an
// unrecoverable error occurs.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("run started", "run", o.runID, "project", o.ws.Project(), "phase", o.Phase(), "speaker", o.Speaker())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.Phase().Terminal() {
			slog.Info("project complete", "run", o.runID, "entries", o.log.Len())
			return nil
		}
		if o.tick != nil {
			o.tick(ctx)
		}

		if last, ok := o.log.Last(); ok && last.Turn != nil {
			switch last.Turn.SpecialAction {
			case model.ActionCompleteProject:
				if err := o.setPhase(PhaseDone); err != nil {
					return err
				}
				continue
			case model.ActionFinalizeRequirements:
				o.markKickoffDue()
			}
		}
		if o.takeKickoffDue() {
			if err := o.kickoff(ctx); err != nil {
				return err
			}
			continue
		}

		if err := o.step(ctx); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) markKickoffDue() {
	o.mu.Lock()
	if o.phase == PhaseGathering {
		o.kickoffDue = true
	}
	o.mu.Unlock()
}

func (o *Orchestrator) takeKickoffDue() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	due := o.kickoffDue && o.phase == PhaseGathering
	o.kickoffDue = false
	return due
}

// step lets the active speaker act once.
func (o *Orchestrator) step(ctx context.Context) error {
	name := o.Speaker()
	a, ok := o.team.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}

	tree, err := o.ws.ListFiles()
	if err != nil {
		slog.Warn("listing project files failed", "error", err)
	}
	in := agent.TurnInput{
		History:  history.Project(o.log.Entries(), name),
		Project:  o.ws.Project(),
		FileTree: tree,
		Tools:    o.tools,
		Team:     o.team.Profiles(),
	}
	turn, err := a.DecideNextAction(ctx, in)
	if err != nil {
		return fmt.Errorf("agent %s: %w", name, err)
	}
	turn.Sender = name
	if turn.SpecialAction == "" {
		turn.SpecialAction = model.ActionNone
	}
	if err := o.appendTurn(turn); err != nil {
		return err
	}

	switch turn.SpecialAction {
	case model.ActionCompleteProject:
		return o.setPhase(PhaseDone)
	case model.ActionFinalizeRequirements:
		if o.Phase() == PhaseGathering {
			o.markKickoffDue()
		} else {
			slog.Warn("requirements already finalized", "sender", name)
		}
	}

	switch turn.TargetType {
	case model.TargetTool:
		return o.dispatch(ctx, turn)
	case model.TargetAgent:
		if !o.team.Has(turn.Recipient) {
			slog.Error("protocol violation: recipient is not on the team",
				"sender", name,
				"recipient", turn.Recipient,
			)
			o.setSpeaker(model.CoordinatorName)
			return nil
		}
		o.setSpeaker(turn.Recipient)
	default:
		slog.Error("protocol violation: invalid target type",
			"sender", name,
			"target_type", turn.TargetType,
		)
		o.setSpeaker(model.CoordinatorName)
	}
	return nil
}

// dispatch runs a tool turn and logs its result. The speaker stays with the
// caller.
func (o *Orchestrator) dispatch(ctx context.Context, turn model.Turn) error {
	res := o.tools.Dispatch(ctx, turn.Recipient, turn.ToolArgs)
	if res.Error {
		slog.Warn("tool failed", "tool", res.ToolName, "sender", turn.Sender, "error", res.Text())
	}
	if err := o.appendResult(res); err != nil {
		return err
	}
	o.setSpeaker(turn.Sender)
	return nil
}
