package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/YumaSeno/AIDeveloper/internal/agent"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

const directiveThought = "first directive of the project plan"

// kickoff forms the development team once requirements are finalized. A
// stored plan is reused so a resumed run does not plan twice.
func (o *Orchestrator) kickoff(ctx context.Context) error {
	if err := o.setPhase(PhaseKickoff); err != nil {
		return err
	}

	plan, ok, err := o.readPlan()
	if err != nil {
		return err
	}
	if ok {
		slog.Info("reusing stored project plan", "members", len(plan.Team))
	} else {
		plan, err = o.planKickoff(ctx)
		if err != nil {
			return err
		}
		if err := o.savePlan(plan); err != nil {
			return err
		}
	}

	if err := o.addPlanMembers(plan); err != nil {
		return err
	}

	broadcast := model.Turn{
		Sender:        model.CoordinatorName,
		TargetType:    model.TargetAgent,
		Recipient:     model.Broadcast,
		SpecialAction: model.ActionNone,
		Message:       plan.BroadcastMessage,
		Thought:       plan.Thought,
	}
	directive := model.Turn{
		Sender:        model.CoordinatorName,
		TargetType:    model.TargetAgent,
		Recipient:     plan.FirstDirective.Recipient,
		SpecialAction: model.ActionNone,
		Message:       plan.FirstDirective.Message,
		Thought:       directiveThought,
	}
	if directive.Recipient == "" {
		directive.Recipient = model.CoordinatorName
	}
	for _, t := range []model.Turn{broadcast, directive} {
		if err := o.appendTurn(t); err != nil {
			return err
		}
	}

	next := directive.Recipient
	if !o.team.Has(next) {
		slog.Error("protocol violation: first directive names an unknown agent", "recipient", next)
		next = model.CoordinatorName
	}
	o.setSpeaker(next)
	return o.setPhase(PhaseDevelopment)
}

func (o *Orchestrator) planKickoff(ctx context.Context) (model.ProjectPlan, error) {
	a, ok := o.team.Get(model.CoordinatorName)
	if !ok {
		return model.ProjectPlan{}, fmt.Errorf("%w: %q", ErrUnknownAgent, model.CoordinatorName)
	}
	planner, ok := a.(agent.KickoffPlanner)
	if !ok {
		return model.ProjectPlan{}, fmt.Errorf("agent %s cannot plan the kickoff", model.CoordinatorName)
	}
	return planner.PlanKickoff(ctx, o.log.Entries(), o.team.Profiles(), o.tools)
}

// addPlanMembers instantiates every proposed worker whose name is free.
// Reserved names are never taken by workers.
func (o *Orchestrator) addPlanMembers(plan model.ProjectPlan) error {
	for _, p := range plan.Team {
		if p.Name == "" || p.Name == model.Broadcast {
			slog.Warn("skipping plan member with reserved name", "name", p.Name)
			continue
		}
		p.Kind = model.KindWorker
		added, err := o.addMember(p)
		if err != nil {
			return err
		}
		if !added {
			slog.Info("plan member already on the team", "name", p.Name)
			continue
		}
		slog.Info("team member added", "name", p.Name, "role", p.Role)
	}
	return nil
}

func (o *Orchestrator) readPlan() (model.ProjectPlan, bool, error) {
	data, err := o.ws.ReadMeta(PlanFile)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ProjectPlan{}, false, nil
	}
	if err != nil {
		return model.ProjectPlan{}, false, fmt.Errorf("read project plan: %w", err)
	}
	var plan model.ProjectPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return model.ProjectPlan{}, false, fmt.Errorf("decode project plan: %w", err)
	}
	return plan, true, nil
}

func (o *Orchestrator) savePlan(plan model.ProjectPlan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project plan: %w", err)
	}
	if err := o.ws.SaveMeta(PlanFile, data); err != nil {
		return fmt.Errorf("save project plan: %w", err)
	}
	return nil
}
