package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// EntryRecord is one mirrored log entry. Data holds the entry in its JSONL
// wire form.
type EntryRecord struct {
	Index         int             `json:"index"`
	RunID         string          `json:"run_id"`
	Project       string          `json:"project"`
	LogType       string          `json:"log_type"`
	Sender        string          `json:"sender,omitempty"`
	Recipient     string          `json:"recipient,omitempty"`
	TargetType    string          `json:"target_type,omitempty"`
	SpecialAction string          `json:"special_action,omitempty"`
	Error         bool            `json:"error,omitempty"`
	Data          json.RawMessage `json:"data"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Entry decodes the mirrored wire form.
func (r EntryRecord) Entry() (model.Entry, error) {
	var e model.Entry
	if err := json.Unmarshal(r.Data, &e); err != nil {
		return model.Entry{}, fmt.Errorf("decode entry %d: %w", r.Index, err)
	}
	return e, nil
}

// SaveEntry mirrors the entry at index. Re-mirroring an index keeps the
// first copy.
func (s *Store) SaveEntry(runID, project string, index int, e model.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	var sender, recipient, targetType, action string
	var isError bool
	switch {
	case e.Turn != nil:
		sender, recipient = e.Turn.Sender, e.Turn.Recipient
		targetType, action = string(e.Turn.TargetType), string(e.Turn.SpecialAction)
	case e.Result != nil:
		recipient = e.Result.ToolName
		isError = e.Result.Error
	}
	_, err = s.db.Exec(`
		INSERT INTO entries (project, idx, run_id, log_type, sender, recipient, target_type, special_action, is_error, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, idx) DO NOTHING`,
		project, index, runID, string(e.Type()), sender, recipient, targetType, action, isError, string(data))
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// SyncEntries mirrors a loaded log, skipping indexes already present.
func (s *Store) SyncEntries(runID, project string, entries []model.Entry) error {
	for i, e := range entries {
		if err := s.SaveEntry(runID, project, i, e); err != nil {
			return err
		}
	}
	return nil
}

// ResetEntries drops the project's mirrored entries, for a fresh run that
// truncates the log.
func (s *Store) ResetEntries(project string) error {
	if _, err := s.db.Exec(`DELETE FROM entries WHERE project = ?`, project); err != nil {
		return fmt.Errorf("reset entries: %w", err)
	}
	return nil
}

const entryColumns = `idx, run_id, project, log_type, COALESCE(sender, ''), COALESCE(recipient, ''),
	COALESCE(target_type, ''), COALESCE(special_action, ''), is_error, data, created_at`

// GetEntries returns the project's last limit entries in log order. A
// non-positive limit returns all of them.
func (s *Store) GetEntries(project string, limit int) ([]EntryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE project = ?
		ORDER BY idx DESC
		LIMIT ?`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	defer rows.Close()

	var records []EntryRecord
	for rows.Next() {
		var r EntryRecord
		var data string
		if err := rows.Scan(&r.Index, &r.RunID, &r.Project, &r.LogType, &r.Sender, &r.Recipient,
			&r.TargetType, &r.SpecialAction, &r.Error, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		r.Data = json.RawMessage(data)
		records = append(records, r)
	}

	// Reverse to get log order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, rows.Err()
}

// LogEntries returns every mirrored entry of the project decoded, in log
// order.
func (s *Store) LogEntries(project string) ([]model.Entry, error) {
	records, err := s.GetEntries(project, 0)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entry, 0, len(records))
	for _, r := range records {
		e, err := r.Entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type ParticipantStats struct {
	Name     string    `json:"name"`
	Turns    int       `json:"turns"`
	LastTurn time.Time `json:"last_turn"`
}

// GetParticipantStats counts turns per sender.
func (s *Store) GetParticipantStats(project string) (map[string]ParticipantStats, error) {
	rows, err := s.db.Query(`
		SELECT sender, COUNT(*) as cnt, COALESCE(MAX(created_at), '') as last_turn
		FROM entries
		WHERE project = ? AND log_type = 'turn' AND sender != ''
		GROUP BY sender`, project)
	if err != nil {
		return nil, fmt.Errorf("get participant stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]ParticipantStats)
	for rows.Next() {
		var ps ParticipantStats
		var lastTurn string
		if err := rows.Scan(&ps.Name, &ps.Turns, &lastTurn); err != nil {
			return nil, fmt.Errorf("scan participant stats: %w", err)
		}
		if lastTurn != "" {
			ps.LastTurn, _ = time.Parse("2006-01-02 15:04:05", lastTurn)
		}
		stats[ps.Name] = ps
	}
	return stats, rows.Err()
}
