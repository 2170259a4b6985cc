package orchestrator

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseGathering   Phase = "GATHERING"
	PhaseKickoff     Phase = "KICKOFF"
	PhaseDevelopment Phase = "DEVELOPMENT"
	PhaseDone        Phase = "DONE"
)

var allowedTransitions = map[Phase]map[Phase]struct{}{
	PhaseGathering: {
		PhaseKickoff: {},
		PhaseDone:    {},
	},
	PhaseKickoff: {
		PhaseDevelopment: {},
		PhaseDone:        {},
	},
	PhaseDevelopment: {
		PhaseDone: {},
	},
	PhaseDone: {},
}

var ErrInvalidTransition = errors.New("invalid phase transition")

func ValidatePhase(p Phase) error {
	if _, ok := allowedTransitions[p]; !ok {
		return fmt.Errorf("invalid phase: %q", p)
	}
	return nil
}

func ValidateTransition(from, to Phase) error {
	if err := ValidatePhase(from); err != nil {
		return err
	}
	if err := ValidatePhase(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (p Phase) Terminal() bool {
	return p == PhaseDone
}
