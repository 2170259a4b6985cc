package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/YumaSeno/AIDeveloper/internal/config"
)

// Schedule takes checkpoints of a project directory on a cron expression.
// It is polled between turns, so a due checkpoint waits for the current
// turn to finish.
type Schedule struct {
	expr    string
	dir     string
	project string
	src     string
	now     func() time.Time

	mu   sync.Mutex
	next time.Time
}

func NewSchedule(cfg config.SnapshotConfig, project, srcDir string) (*Schedule, error) {
	if !gronx.New().IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid snapshot schedule %q", cfg.Schedule)
	}
	s := &Schedule{
		expr:    cfg.Schedule,
		dir:     cfg.Dir,
		project: project,
		src:     srcDir,
		now:     time.Now,
	}
	if err := s.advance(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schedule) advance() error {
	next, err := gronx.NextTickAfter(s.expr, s.now(), false)
	if err != nil {
		return fmt.Errorf("next snapshot time: %w", err)
	}
	s.next = next
	return nil
}

// Next reports when the next checkpoint is due.
func (s *Schedule) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Tick writes a checkpoint when one is due. Failures are logged.
func (s *Schedule) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.now().Before(s.next) {
		return
	}

	out := filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", s.project, s.now().UTC().Format("20060102-150405"), Extension))
	size, err := Create(s.src, out)
	if err != nil {
		slog.Warn("scheduled snapshot failed", "project", s.project, "error", err)
	} else {
		slog.Info("snapshot written", "path", out, "size", FormatSize(size))
	}
	if err := s.advance(); err != nil {
		slog.Warn("snapshot schedule stalled", "error", err)
		s.next = s.now().Add(24 * time.Hour)
	}
}
