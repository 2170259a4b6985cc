package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/YumaSeno/AIDeveloper/internal/agent"
	"github.com/YumaSeno/AIDeveloper/internal/eventlog"
	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

// scriptedAgent replays fixed turns and records what it was shown.
type scriptedAgent struct {
	profile model.AgentProfile
	script  *script
}

func (a *scriptedAgent) Profile() model.AgentProfile { return a.profile }

func (a *scriptedAgent) DecideNextAction(_ context.Context, in agent.TurnInput) (model.Turn, error) {
	return a.script.next(a.profile.Name, in)
}

// scriptedCoordinator also plans the kickoff.
type scriptedCoordinator struct {
	scriptedAgent
	plan    model.ProjectPlan
	planned int
}

func (c *scriptedCoordinator) PlanKickoff(_ context.Context, fullLog []model.Entry, _ []model.AgentProfile, _ agent.Tools) (model.ProjectPlan, error) {
	c.planned++
	return c.plan, nil
}

type step struct {
	agent string
	turn  model.Turn
	err   error
}

type script struct {
	t     *testing.T
	mu    sync.Mutex
	steps []step
	seen  map[string][]agent.TurnInput
}

func (s *script) next(name string, in agent.TurnInput) (model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string][]agent.TurnInput)
	}
	s.seen[name] = append(s.seen[name], in)
	if len(s.steps) == 0 {
		s.t.Fatalf("%s asked to act after the script ended", name)
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.agent != name {
		s.t.Fatalf("expected %s to act, got %s", st.agent, name)
	}
	return st.turn, st.err
}

type fakeFactory struct {
	script *script
	plan   model.ProjectPlan
	pm     *scriptedCoordinator
}

func (f *fakeFactory) New(p model.AgentProfile) (agent.Agent, error) {
	base := scriptedAgent{profile: p, script: f.script}
	if p.Kind == model.KindCoordinator {
		f.pm = &scriptedCoordinator{scriptedAgent: base, plan: f.plan}
		return f.pm, nil
	}
	return &base, nil
}

type recorder struct {
	mu      sync.Mutex
	phases  []Phase
	members []string
}

func (r *recorder) PhaseChanged(_, to Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, to)
}

func (r *recorder) MemberAdded(p model.AgentProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, p.Name)
}

type noteArgs struct {
	Text string `json:"text"`
}

type harness struct {
	orch    *Orchestrator
	log     *eventlog.Log
	ws      *workspace.Workspace
	factory *fakeFactory
	rec     *recorder
	script  *script
	dir     string
}

func newTestHarness(t *testing.T, plan model.ProjectPlan, steps ...step) *harness {
	t.Helper()
	dir := t.TempDir()
	ws, err := workspace.New(dir, "todo")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	log, err := eventlog.Open(ws.MetaPath(LogFile), false)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return buildHarness(t, dir, ws, log, plan, steps...)
}

func buildHarness(t *testing.T, dir string, ws *workspace.Workspace, log *eventlog.Log, plan model.ProjectPlan, steps ...step) *harness {
	t.Helper()
	reg := tool.NewRegistry()
	if err := reg.Register(tool.New(tool.Spec[noteArgs, string]{
		Name:        "NoteTool",
		Description: "Echoes a note.",
		Run: func(_ context.Context, a noteArgs) (string, error) {
			return "noted: " + a.Text, nil
		},
	})); err != nil {
		t.Fatalf("register: %v", err)
	}

	s := &script{t: t, steps: steps}
	f := &fakeFactory{script: s, plan: plan}
	rec := &recorder{}
	orch, err := New(Deps{
		Log:       log,
		Workspace: ws,
		Tools:     reg,
		Agents:    f,
		Observers: []Observer{rec},
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &harness{orch: orch, log: log, ws: ws, factory: f, rec: rec, script: s, dir: dir}
}

func say(recipient, msg string) model.Turn {
	return model.Turn{TargetType: model.TargetAgent, Recipient: recipient, SpecialAction: model.ActionNone, Message: msg, Thought: "t"}
}

func withAction(t model.Turn, a model.SpecialAction) model.Turn {
	t.SpecialAction = a
	return t
}

func note(text string) model.Turn {
	return model.Turn{
		TargetType:    model.TargetTool,
		Recipient:     "NoteTool",
		SpecialAction: model.ActionNone,
		ToolArgs:      map[string]json.RawMessage{"NoteTool": json.RawMessage(fmt.Sprintf(`{"text":%q}`, text))},
		Thought:       "t",
	}
}

var devPlan = model.ProjectPlan{
	Team: []model.AgentProfile{
		{Name: "Dev", Role: "Developer", ProjectRole: "Builds it"},
		{Name: model.CoordinatorName, Role: "impostor"},
	},
	BroadcastMessage: "Welcome to the todo project",
	FirstDirective:   model.FirstDirective{Recipient: "Dev", Message: "Scaffold the app"},
	Thought:          "small team",
}

func TestBootstrap(t *testing.T) {
	h := newTestHarness(t, devPlan)
	if err := h.ws.SaveMeta(PlanFile, []byte(`{"team":[]}`)); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	entries := h.log.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first, second := entries[0].Turn, entries[1].Turn
	if first.Sender != "" || first.Recipient != model.CoordinatorName || first.Message != bootstrapKickoff {
		t.Errorf("first = %+v", first)
	}
	if second.Sender != model.CoordinatorName || second.Recipient != model.HumanName {
		t.Errorf("second = %+v", second)
	}
	if h.orch.Speaker() != model.HumanName || h.orch.Phase() != PhaseGathering {
		t.Errorf("status = %+v", h.orch.Status())
	}
	if _, err := h.ws.ReadMeta(PlanFile); err == nil {
		t.Error("stale plan not removed")
	}
	if err := h.orch.Bootstrap(); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("second bootstrap = %v, want ErrNotEmpty", err)
	}
}

func TestRunFullProject(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: say(model.CoordinatorName, "Build a todo app")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Requirements are final."), model.ActionFinalizeRequirements)},
		step{agent: "Dev", turn: note("scaffolded")},
		step{agent: "Dev", turn: say(model.CoordinatorName, "Done scaffolding")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Your app is ready."), model.ActionCompleteProject)},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(h.script.steps) != 0 {
		t.Errorf("%d scripted steps left", len(h.script.steps))
	}
	want := []Phase{PhaseGathering, PhaseKickoff, PhaseDevelopment, PhaseDone}
	if fmt.Sprint(h.rec.phases) != fmt.Sprint(want) {
		t.Errorf("phases = %v, want %v", h.rec.phases, want)
	}

	entries := h.log.Entries()
	// bootstrap(2) + USER + FINALIZE + broadcast + directive + tool turn + result + report + COMPLETE
	if len(entries) != 10 {
		t.Fatalf("entries = %d, want 10", len(entries))
	}
	broadcast, directive := entries[4].Turn, entries[5].Turn
	if broadcast.Recipient != model.Broadcast || broadcast.Message != devPlan.BroadcastMessage || broadcast.Sender != model.CoordinatorName {
		t.Errorf("broadcast = %+v", broadcast)
	}
	if directive.Recipient != "Dev" || directive.Message != "Scaffold the app" {
		t.Errorf("directive = %+v", directive)
	}
	if entries[6].Turn.Sender != "Dev" || entries[7].Result == nil || entries[7].Result.Text() != "noted: scaffolded" {
		t.Errorf("tool exchange = %+v / %+v", entries[6].Turn, entries[7].Result)
	}
	if last := entries[9].Turn; last.SpecialAction != model.ActionCompleteProject {
		t.Errorf("last entry = %+v", last)
	}

	if h.orch.team.Len() != 3 {
		t.Errorf("team size = %d, want 3", h.orch.team.Len())
	}
	if pm, _ := h.orch.team.Get(model.CoordinatorName); pm.Profile().Role == "impostor" {
		t.Error("existing coordinator was replaced by the plan")
	}
	if h.factory.pm.planned != 1 {
		t.Errorf("planned %d times, want 1", h.factory.pm.planned)
	}
	if _, err := h.ws.ReadMeta(PlanFile); err != nil {
		t.Errorf("plan not persisted: %v", err)
	}
	if strings.Join(h.rec.members, ",") != "PM,USER,Dev" {
		t.Errorf("members = %v", h.rec.members)
	}

	// Dev's second turn sees its own tool outcome.
	devInputs := h.script.seen["Dev"]
	if len(devInputs) != 2 {
		t.Fatalf("Dev acted %d times", len(devInputs))
	}
	lastSeen := devInputs[1].History[len(devInputs[1].History)-1]
	if lastSeen.Result == nil || lastSeen.Result.ToolName != "NoteTool" {
		t.Errorf("Dev did not observe its tool result: %+v", lastSeen)
	}
}

func TestKickoffAppendsExactlyTwoTurns(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: say(model.CoordinatorName, "Build a todo app")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Final."), model.ActionFinalizeRequirements)},
		step{agent: "Dev", err: agent.ErrRetriesExhausted},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	before := h.orch.team.Len()
	err := h.orch.Run(context.Background())
	if !errors.Is(err, agent.ErrRetriesExhausted) {
		t.Fatalf("run error = %v, want ErrRetriesExhausted", err)
	}
	entries := h.log.Entries()
	finalizeAt := 3
	if entries[finalizeAt].Turn.SpecialAction != model.ActionFinalizeRequirements {
		t.Fatalf("entry %d = %+v", finalizeAt, entries[finalizeAt])
	}
	if got := len(entries) - finalizeAt - 1; got != 2 {
		t.Errorf("kickoff appended %d turns, want 2", got)
	}
	if h.orch.team.Len() < before {
		t.Error("team shrank")
	}
}

func TestUnknownRecipientReturnsFloorToCoordinator(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: say("Ghost", "hello?")},
		step{agent: model.CoordinatorName, turn: say(model.Broadcast, "everyone listen")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "bye"), model.ActionCompleteProject)},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.orch.Phase() != PhaseDone {
		t.Errorf("phase = %s", h.orch.Phase())
	}
}

func TestInvalidTargetTypeReturnsFloorToCoordinator(t *testing.T) {
	h := newTestHarness(t, devPlan)
	h.script.steps = []step{{agent: model.HumanName, turn: model.Turn{
		TargetType:    "BOTH",
		Recipient:     model.CoordinatorName,
		SpecialAction: model.ActionNone,
	}}}
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if h.orch.Speaker() != model.CoordinatorName {
		t.Errorf("speaker = %s", h.orch.Speaker())
	}
}

func TestUnknownSpeakerIsFatal(t *testing.T) {
	h := newTestHarness(t, devPlan)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	h.orch.setSpeaker("Ghost")
	if err := h.orch.Run(context.Background()); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("run error = %v, want ErrUnknownAgent", err)
	}
}

func TestUnknownToolIsRecovered(t *testing.T) {
	h := newTestHarness(t, devPlan)
	bad := note("x")
	bad.Recipient = "Foo"
	h.script.steps = []step{{agent: model.HumanName, turn: bad}}
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	last, _ := h.log.Last()
	if last.Result == nil || !last.Result.Error || last.Result.ToolName != "Foo" {
		t.Errorf("last = %+v", last.Result)
	}
	if h.orch.Speaker() != model.HumanName {
		t.Errorf("speaker = %s, want the caller", h.orch.Speaker())
	}
}

func TestDirectiveToUnknownAgent(t *testing.T) {
	plan := devPlan
	plan.FirstDirective = model.FirstDirective{Recipient: "Nobody", Message: "go"}
	h := newTestHarness(t, plan,
		step{agent: model.HumanName, turn: say(model.CoordinatorName, "Build it")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Final."), model.ActionFinalizeRequirements)},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Done."), model.ActionCompleteProject)},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.script.steps) != 0 {
		t.Error("coordinator did not take over after the bad directive")
	}
}

func TestNoTurnAfterComplete(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: withAction(say(model.CoordinatorName, "stop"), model.ActionCompleteProject)},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if h.log.Len() != 3 {
		t.Errorf("entries = %d, want 3", h.log.Len())
	}
}

func TestTickRunsBetweenTurns(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: withAction(say(model.CoordinatorName, "stop"), model.ActionCompleteProject)},
	)
	ticks := 0
	h.orch.tick = func(context.Context) { ticks++ }
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseGathering, PhaseKickoff, true},
		{PhaseKickoff, PhaseDevelopment, true},
		{PhaseDevelopment, PhaseDone, true},
		{PhaseGathering, PhaseDone, true},
		{PhaseGathering, PhaseDevelopment, false},
		{PhaseDevelopment, PhaseGathering, false},
		{PhaseDevelopment, PhaseKickoff, false},
		{PhaseDone, PhaseGathering, false},
		{Phase("LIMBO"), PhaseDone, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.from, tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateTransition(%s, %s) = %v", tt.from, tt.to, err)
			}
			if err != nil && ValidatePhase(tt.from) == nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error %v does not wrap ErrInvalidTransition", err)
			}
		})
	}
}

// reopen simulates a restart: the log is reloaded from disk into a fresh
// orchestrator.
func reopen(t *testing.T, h *harness, steps ...step) *harness {
	t.Helper()
	log, err := eventlog.Open(h.ws.MetaPath(LogFile), true)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	return buildHarness(t, h.dir, h.ws, log, h.factory.plan, steps...)
}

func TestResumeAfterKickoff(t *testing.T) {
	h := newTestHarness(t, devPlan,
		step{agent: model.HumanName, turn: say(model.CoordinatorName, "Build a todo app")},
		step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Final."), model.ActionFinalizeRequirements)},
		step{agent: "Dev", turn: say(model.CoordinatorName, "question")},
		step{agent: model.CoordinatorName, err: errors.New("crash")},
	)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Run(context.Background()); err == nil {
		t.Fatal("expected scripted crash")
	}

	r := reopen(t, h, step{agent: model.CoordinatorName, turn: withAction(say(model.HumanName, "Done."), model.ActionCompleteProject)})
	if err := r.orch.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if r.orch.Phase() != PhaseDevelopment {
		t.Errorf("phase = %s", r.orch.Phase())
	}
	if r.orch.Speaker() != model.CoordinatorName {
		t.Errorf("speaker = %s", r.orch.Speaker())
	}
	if !r.orch.team.Has("Dev") {
		t.Error("Dev not restored from the plan")
	}
	if err := r.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.factory.pm.planned != 0 {
		t.Error("resumed run planned again")
	}
}

func TestResumeReusesPlanWhenFinalizeIsLast(t *testing.T) {
	h := newTestHarness(t, devPlan)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	finalize := withAction(say(model.HumanName, "Final."), model.ActionFinalizeRequirements)
	finalize.Sender = model.CoordinatorName
	if err := h.log.Append(model.TurnEntry(finalize)); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(devPlan)
	if err := h.ws.SaveMeta(PlanFile, data); err != nil {
		t.Fatal(err)
	}

	r := reopen(t, h, step{agent: "Dev", turn: withAction(say(model.CoordinatorName, "stop"), model.ActionCompleteProject)})
	if err := r.orch.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if r.orch.Phase() != PhaseGathering {
		t.Errorf("phase = %s, want GATHERING until kickoff completes", r.orch.Phase())
	}
	if err := r.orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.factory.pm.planned != 0 {
		t.Error("stored plan was not reused")
	}
	if r.log.Len() != 6 {
		t.Errorf("entries = %d, want 6", r.log.Len())
	}
}

func TestResumeDispatchesDanglingToolCall(t *testing.T) {
	h := newTestHarness(t, devPlan)
	if err := h.orch.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	call := note("pending")
	call.Sender = model.CoordinatorName
	if err := h.log.Append(model.TurnEntry(call)); err != nil {
		t.Fatal(err)
	}

	r := reopen(t, h)
	if err := r.orch.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	last, _ := r.log.Last()
	if last.Result == nil || last.Result.Text() != "noted: pending" {
		t.Fatalf("last = %+v", last)
	}
	if r.orch.Speaker() != model.CoordinatorName {
		t.Errorf("speaker = %s", r.orch.Speaker())
	}
}

func TestResumeSpeaker(t *testing.T) {
	result := model.ResultEntry(model.ToolResult{ToolName: "NoteTool", Result: json.RawMessage(`"ok"`)})
	fromUser := say(model.CoordinatorName, "hi")
	fromUser.Sender = model.HumanName
	toUser := say(model.HumanName, "hello")
	toUser.Sender = model.CoordinatorName
	userCall := note("x")
	userCall.Sender = model.HumanName

	tests := []struct {
		name  string
		tail  []model.Entry
		want  string
		phase Phase
	}{
		{"agent turn", []model.Entry{model.TurnEntry(toUser)}, model.HumanName, PhaseGathering},
		{"agent turn to coordinator", []model.Entry{model.TurnEntry(fromUser)}, model.CoordinatorName, PhaseGathering},
		{"tool result", []model.Entry{model.TurnEntry(userCall), result}, model.HumanName, PhaseGathering},
		{"unknown recipient", []model.Entry{model.TurnEntry(say("Ghost", "x"))}, model.CoordinatorName, PhaseGathering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ws, err := workspace.New(dir, "todo")
			if err != nil {
				t.Fatal(err)
			}
			log, err := eventlog.Open(filepath.Join(dir, "log.jsonl"), false)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range tt.tail {
				if err := log.Append(e); err != nil {
					t.Fatal(err)
				}
			}
			h := buildHarness(t, dir, ws, log, devPlan)
			if err := h.orch.Resume(context.Background()); err != nil {
				t.Fatalf("resume: %v", err)
			}
			if h.orch.Speaker() != tt.want || h.orch.Phase() != tt.phase {
				t.Errorf("speaker = %s, phase = %s; want %s, %s", h.orch.Speaker(), h.orch.Phase(), tt.want, tt.phase)
			}
		})
	}
}

func TestResumeEmptyLog(t *testing.T) {
	h := newTestHarness(t, devPlan)
	if err := h.orch.Resume(context.Background()); !errors.Is(err, eventlog.ErrEmptyLog) {
		t.Fatalf("resume = %v, want ErrEmptyLog", err)
	}
}

func TestDerivePhase(t *testing.T) {
	turn := func(a model.SpecialAction) model.Entry {
		return model.TurnEntry(withAction(say(model.HumanName, "x"), a))
	}
	none, fin, done := turn(model.ActionNone), turn(model.ActionFinalizeRequirements), turn(model.ActionCompleteProject)

	tests := []struct {
		name      string
		entries   []model.Entry
		hasPlan   bool
		want      Phase
		finalized bool
	}{
		{"fresh", []model.Entry{none}, false, PhaseGathering, false},
		{"finalize last", []model.Entry{none, fin}, true, PhaseGathering, true},
		{"after kickoff", []model.Entry{none, fin, none}, true, PhaseDevelopment, true},
		{"kickoff never planned", []model.Entry{none, fin, none}, false, PhaseGathering, true},
		{"complete", []model.Entry{none, fin, none, done}, true, PhaseDone, true},
		{"complete early", []model.Entry{none, done}, false, PhaseDone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, finalized := derivePhase(tt.entries, tt.hasPlan)
			if got != tt.want || finalized != tt.finalized {
				t.Errorf("derivePhase = %s, %v; want %s, %v", got, finalized, tt.want, tt.finalized)
			}
		})
	}
}
