package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/orchestrator"
)

// Mirror feeds one run's activity into the store. Write failures are logged
// and dropped.
type Mirror struct {
	store   *Store
	runID   string
	project string
}

func NewMirror(s *Store, runID, project string) *Mirror {
	return &Mirror{store: s, runID: runID, project: project}
}

// OnEntry matches eventlog.Listener.
func (m *Mirror) OnEntry(index int, e model.Entry) {
	if err := m.store.SaveEntry(m.runID, m.project, index, e); err != nil {
		slog.Warn("mirror entry failed", "index", index, "error", err)
	}
}

func (m *Mirror) PhaseChanged(from, to orchestrator.Phase) {
	if err := m.store.SavePhaseTransition(m.runID, string(from), string(to)); err != nil {
		slog.Warn("mirror phase failed", "to", to, "error", err)
	}
}

func (m *Mirror) MemberAdded(p model.AgentProfile) {
	if err := m.store.SaveMember(m.runID, p); err != nil {
		slog.Warn("mirror member failed", "name", p.Name, "error", err)
	}
}

// Finish records the run's outcome.
func (m *Mirror) Finish(runErr error) {
	status := RunComplete
	switch {
	case errors.Is(runErr, context.Canceled):
		status = RunStopped
	case runErr != nil:
		status = RunFailed
	}
	if err := m.store.FinishRun(m.runID, status); err != nil {
		slog.Warn("mirror run status failed", "run", m.runID, "error", err)
	}
}
