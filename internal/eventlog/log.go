package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

// ErrEmptyLog is returned when a resumed log holds no valid entries.
var ErrEmptyLog = errors.New("project log is empty")

// Listener observes committed entries. index is the entry's position in the log.
type Listener func(index int, entry model.Entry)

// Log is the append-only transcript of a run, persisted as JSON lines and
// mirrored in memory.
type Log struct {
	path string

	mu           sync.RWMutex
	entries      []model.Entry
	needsNewline bool

	listenerMu sync.RWMutex
	listeners  []Listener
}

// Open prepares the log file at path. A fresh run truncates any previous
// transcript; a resumed run replays it into memory.
func Open(path string, resume bool) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	l := &Log{path: path}
	if !resume {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, fmt.Errorf("truncate log: %w", err)
		}
		return l, nil
	}
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) OnAppend(fn Listener) {
	l.listenerMu.Lock()
	defer l.listenerMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Load rebuilds the in-memory mirror from disk. Lines that fail to parse or
// validate are skipped with a warning.
func (l *Log) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.mu.Lock()
			l.entries = nil
			l.needsNewline = false
			l.mu.Unlock()
			return nil
		}
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var (
		entries  []model.Entry
		lastByte byte
		lineNo   int
	)
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			lastByte = line[len(line)-1]
			lineNo++
			if e, ok := parseLine(line, lineNo); ok {
				entries = append(entries, e)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read log: %w", readErr)
		}
	}

	l.mu.Lock()
	l.entries = entries
	l.needsNewline = lineNo > 0 && lastByte != '\n'
	l.mu.Unlock()

	slog.Debug("project log loaded", "path", l.path, "entries", len(entries))
	return nil
}

func parseLine(line []byte, lineNo int) (model.Entry, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.Entry{}, false
	}
	var e model.Entry
	if err := json.Unmarshal(line, &e); err != nil {
		slog.Warn("skipping unparseable log line", "line", lineNo, "error", err)
		return model.Entry{}, false
	}
	if err := e.Validate(); err != nil {
		slog.Warn("skipping invalid log line", "line", lineNo, "error", err)
		return model.Entry{}, false
	}
	return e, true
}

// Append writes the entry durably and only then exposes it to readers.
func (l *Log) Append(e model.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	l.mu.Lock()
	if l.needsNewline {
		data = append([]byte{'\n'}, data...)
	}
	data = append(data, '\n')
	if err := appendDurable(l.path, data); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("append log: %w", err)
	}
	l.needsNewline = false
	l.entries = append(l.entries, e)
	index := len(l.entries) - 1
	l.mu.Unlock()

	l.listenerMu.RLock()
	listeners := l.listeners
	l.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(index, e)
	}
	return nil
}

func appendDurable(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Last returns the most recent entry, or false when the log is empty.
func (l *Log) Last() (model.Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return model.Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns the full ordered history.
func (l *Log) Entries() []model.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
