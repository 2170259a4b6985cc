package natsbus

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/orchestrator"
)

// Envelope wraps every published event.
type Envelope struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Project   string          `json:"project"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EntryEvent struct {
	Index int         `json:"index"`
	Entry model.Entry `json:"entry"`
}

type PhaseEvent struct {
	From orchestrator.Phase `json:"from,omitempty"`
	To   orchestrator.Phase `json:"to"`
}

// Publisher turns run activity into bus events. Publish failures are logged
// and dropped.
type Publisher struct {
	client  *Client
	runID   string
	project string
	now     func() time.Time
}

func NewPublisher(c *Client, runID, project string) *Publisher {
	return &Publisher{client: c, runID: runID, project: project, now: time.Now}
}

// OnEntry matches eventlog.Listener.
func (p *Publisher) OnEntry(index int, e model.Entry) {
	p.publish(EventEntry, EntryEvent{Index: index, Entry: e})
}

func (p *Publisher) PhaseChanged(from, to orchestrator.Phase) {
	p.publish(EventPhase, PhaseEvent{From: from, To: to})
}

func (p *Publisher) MemberAdded(profile model.AgentProfile) {
	p.publish(EventTeam, profile)
}

func (p *Publisher) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encode event failed", "type", event, "error", err)
		return
	}
	env := Envelope{
		Type:      event,
		RunID:     p.runID,
		Project:   p.project,
		Timestamp: p.now().UTC(),
		Data:      data,
	}
	if err := p.client.PublishJSON(TopicProjectEvent(p.project, event), env); err != nil {
		slog.Warn("publish event failed", "type", event, "error", err)
	}
}
