package agent

import (
	"context"
	"fmt"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

const humanThought = "(user input entered directly)"

// Prompter collects one line of input from the human for a message sent
// by from.
type Prompter interface {
	Ask(ctx context.Context, from, message string) (string, error)
}

// HumanProxy occupies the human's seat and replies to whoever spoke last.
type HumanProxy struct {
	profile  model.AgentProfile
	prompter Prompter
}

func NewHumanProxy(p model.AgentProfile, prompter Prompter) *HumanProxy {
	return &HumanProxy{profile: p, prompter: prompter}
}

func (h *HumanProxy) Profile() model.AgentProfile { return h.profile }

func (h *HumanProxy) DecideNextAction(ctx context.Context, in TurnInput) (model.Turn, error) {
	to, message := model.CoordinatorName, ""
	if n := len(in.History); n > 0 {
		if last := in.History[n-1].Turn; last != nil {
			message = last.Message
			if last.Sender != "" && last.Sender != h.profile.Name {
				to = last.Sender
			}
		}
	}

	reply, err := h.prompter.Ask(ctx, to, message)
	if err != nil {
		return model.Turn{}, fmt.Errorf("read human input: %w", err)
	}
	return model.Turn{
		TargetType:    model.TargetAgent,
		Recipient:     to,
		SpecialAction: model.ActionNone,
		Message:       reply,
		Thought:       humanThought,
	}, nil
}
