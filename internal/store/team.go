package store

import (
	"database/sql"
	"fmt"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

func (s *Store) SaveMember(runID string, p model.AgentProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO team_members (run_id, name, role, project_role, detailed_instructions, kind)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO NOTHING`,
		runID, p.Name, p.Role, p.ProjectRole, p.DetailedInstructions, string(p.Kind))
	if err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	return nil
}

// ListMembers returns the run's roster in join order.
func (s *Store) ListMembers(runID string) ([]model.AgentProfile, error) {
	rows, err := s.db.Query(`
		SELECT name, role, project_role, detailed_instructions, kind
		FROM team_members
		WHERE run_id = ?
		ORDER BY added_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var team []model.AgentProfile
	for rows.Next() {
		var p model.AgentProfile
		var projectRole, instructions sql.NullString
		var kind string
		if err := rows.Scan(&p.Name, &p.Role, &projectRole, &instructions, &kind); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		p.ProjectRole = projectRole.String
		p.DetailedInstructions = instructions.String
		p.Kind = model.AgentKind(kind)
		team = append(team, p)
	}
	return team, rows.Err()
}
