package orchestrator

import (
	"context"
	"log/slog"

	"github.com/YumaSeno/AIDeveloper/internal/eventlog"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// Resume restores a run from the loaded log and the stored plan: the team
// is rebuilt, the phase derived and the next speaker chosen. A tool call
// left without a result is dispatched now.
func (o *Orchestrator) Resume(ctx context.Context) error {
	entries := o.log.Entries()
	if len(entries) == 0 {
		return eventlog.ErrEmptyLog
	}

	plan, hasPlan, err := o.readPlan()
	if err != nil {
		return err
	}
	if hasPlan {
		if err := o.addPlanMembers(plan); err != nil {
			return err
		}
	}

	phase, finalized := derivePhase(entries, hasPlan)
	if err := o.setPhase(phase); err != nil {
		return err
	}
	if phase == PhaseGathering && finalized {
		o.markKickoffDue()
	}

	last := entries[len(entries)-1]
	next := model.CoordinatorName
	switch {
	case last.Turn != nil && last.Turn.TargetType == model.TargetAgent:
		next = last.Turn.Recipient
	case last.Result != nil:
		if len(entries) > 1 && entries[len(entries)-2].Turn != nil {
			next = entries[len(entries)-2].Turn.Sender
		}
	case last.Turn != nil && last.Turn.TargetType == model.TargetTool && !phase.Terminal():
		slog.Info("dispatching interrupted tool call", "tool", last.Turn.Recipient, "sender", last.Turn.Sender)
		if err := o.dispatch(ctx, *last.Turn); err != nil {
			return err
		}
		next = last.Turn.Sender
	}
	if !o.team.Has(next) {
		slog.Warn("resumed speaker is not on the team", "speaker", next)
		next = model.CoordinatorName
	}
	o.setSpeaker(next)

	slog.Info("run resumed",
		"run", o.runID,
		"entries", len(entries),
		"phase", phase,
		"speaker", next,
		"team", o.team.Len(),
	)
	return nil
}

// derivePhase reports the phase implied by a log and whether requirements
// were finalized in it.
func derivePhase(entries []model.Entry, hasPlan bool) (Phase, bool) {
	finalizeAt := -1
	for i, e := range entries {
		if e.Turn == nil {
			continue
		}
		switch e.Turn.SpecialAction {
		case model.ActionCompleteProject:
			return PhaseDone, finalizeAt >= 0
		case model.ActionFinalizeRequirements:
			if finalizeAt < 0 {
				finalizeAt = i
			}
		}
	}
	if hasPlan && finalizeAt >= 0 && finalizeAt != len(entries)-1 {
		return PhaseDevelopment, true
	}
	return PhaseGathering, finalizeAt >= 0
}
