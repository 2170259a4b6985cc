package store

import (
	"fmt"
	"time"
)

type PhaseTransition struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SavePhaseTransition(runID, from, to string) error {
	_, err := s.db.Exec(`
		INSERT INTO phase_transitions (run_id, from_phase, to_phase)
		VALUES (?, ?, ?)`, runID, from, to)
	if err != nil {
		return fmt.Errorf("save phase transition: %w", err)
	}
	return nil
}

func (s *Store) ListPhaseTransitions(runID string) ([]PhaseTransition, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, COALESCE(from_phase, ''), to_phase, created_at
		FROM phase_transitions
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list phase transitions: %w", err)
	}
	defer rows.Close()

	var out []PhaseTransition
	for rows.Next() {
		var pt PhaseTransition
		if err := rows.Scan(&pt.ID, &pt.RunID, &pt.From, &pt.To, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phase transition: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}
