package history

import "github.com/YumaSeno/AIDeveloper/internal/model"

// Project returns the subsequence of entries visible to agent: turns it
// sent or received, broadcasts, and results of tool calls it issued.
func Project(entries []model.Entry, agent string) []model.Entry {
	var (
		out            []model.Entry
		lastTurnSender string
	)
	for _, e := range entries {
		switch {
		case e.Turn != nil:
			t := e.Turn
			if t.Recipient == agent || t.Sender == agent || t.Recipient == model.Broadcast {
				out = append(out, e)
			}
			lastTurnSender = t.Sender
		case e.Result != nil:
			if lastTurnSender == agent {
				out = append(out, e)
			}
		}
	}
	return out
}
