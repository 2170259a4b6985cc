package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
	RunStopped  = "stopped"
)

type Run struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	Resumed    bool       `json:"resumed"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

const runColumns = `id, project, resumed, status, started_at, finished_at`

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	r := &Run{}
	if err := scanner.Scan(&r.ID, &r.Project, &r.Resumed, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) StartRun(id, project string, resumed bool) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, project, resumed, status)
		VALUES (?, ?, ?, ?)`,
		id, project, resumed, RunRunning)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(id, status string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the project's runs, newest first.
func (s *Store) ListRuns(project string) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE project = ? ORDER BY started_at DESC, rowid DESC`, project)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
