package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "_meta", "00_Project_Log.jsonl")
	l, err := Open(path, false)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func agentTurn(sender, recipient, msg string) model.Entry {
	return model.TurnEntry(model.Turn{
		Sender:        sender,
		TargetType:    model.TargetAgent,
		Recipient:     recipient,
		SpecialAction: model.ActionNone,
		Message:       msg,
	})
}

func TestAppendAndQuery(t *testing.T) {
	l := newTestLog(t)

	if _, ok := l.Last(); ok {
		t.Fatal("expected empty log")
	}

	if err := l.Append(agentTurn("PM", "USER", "hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(model.ResultEntry(model.ToolResult{ToolName: "T", Result: json.RawMessage(`"ok"`)})); err != nil {
		t.Fatalf("append result: %v", err)
	}

	if l.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", l.Len())
	}
	last, ok := l.Last()
	if !ok || last.Result == nil || last.Result.ToolName != "T" {
		t.Errorf("unexpected last entry: %+v", last)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines on disk, got %d", len(lines))
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	l := newTestLog(t)
	if err := l.Append(model.TurnEntry(model.Turn{TargetType: model.TargetAgent, SpecialAction: model.ActionNone})); err == nil {
		t.Fatal("expected error for turn without recipient")
	}
	if l.Len() != 0 {
		t.Errorf("invalid entry must not reach memory")
	}
}

func TestReplayMatchesLive(t *testing.T) {
	l := newTestLog(t)
	entries := []model.Entry{
		agentTurn("", "PM", "start"),
		agentTurn("PM", "USER", "what do you want?"),
		agentTurn("USER", "PM", "a todo app"),
		model.TurnEntry(model.Turn{
			Sender:        "PM",
			TargetType:    model.TargetTool,
			Recipient:     "FileWriterTool",
			SpecialAction: model.ActionNone,
			ToolArgs:      map[string]json.RawMessage{"FileWriterTool": json.RawMessage(`{"artifacts":[]}`)},
			Thought:       "write",
		}),
		model.ResultEntry(model.ToolResult{ToolName: "FileWriterTool", Result: json.RawMessage(`"done"`)}),
	}
	for _, e := range entries {
		if err := l.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	reloaded, err := Open(l.Path(), true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	live, _ := json.Marshal(l.Entries())
	replayed, _ := json.Marshal(reloaded.Entries())
	if string(live) != string(replayed) {
		t.Errorf("replay differs\nlive:     %s\nreplayed: %s", live, replayed)
	}
}

func TestLoadSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	content := strings.Join([]string{
		`{"log_type":"turn","data":{"sender":"PM","target_type":"AGENT","recipient":"USER","special_action":"NONE","thought":""}}`,
		`not json at all`,
		`{"log_type":"turn","data":{"sender":"PM","target_type":"AGENT","special_action":"NONE","thought":""}}`,
		``,
		`{"log_type":"tool_result","data":{"tool_name":"T","result":"x","error":false}}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 valid entries, got %d", l.Len())
	}
}

func TestAppendAfterTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	content := `{"log_type":"turn","data":{"sender":"PM","target_type":"AGENT","recipient":"USER","special_action":"NONE","thought":""}}` + "\n" +
		`{"log_type":"turn","data":{"sender":"US`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Append(agentTurn("USER", "PM", "retry")); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded, err := Open(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("expected torn line dropped and new entry kept, got %d entries", reloaded.Len())
	}
	last, _ := reloaded.Last()
	if last.Turn == nil || last.Turn.Message != "retry" {
		t.Errorf("unexpected last entry %+v", last)
	}
}

func TestOpenFreshTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, []byte(`{"log_type":"tool_result","data":{"tool_name":"T","result":1,"error":false}}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("expected empty log after fresh open, got %d", l.Len())
	}
	info, _ := os.Stat(path)
	if info.Size() != 0 {
		t.Errorf("expected truncated file, size %d", info.Size())
	}
}

func TestListenersSeeCommittedEntries(t *testing.T) {
	l := newTestLog(t)
	var seen []int
	l.OnAppend(func(index int, e model.Entry) {
		seen = append(seen, index)
		if l.Len() != index+1 {
			t.Errorf("listener ran before entry was readable")
		}
	})
	_ = l.Append(agentTurn("PM", "USER", "a"))
	_ = l.Append(agentTurn("USER", "PM", "b"))
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("unexpected listener indexes %v", seen)
	}
}
