package history

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
)

const DefaultWindow = 20

const attachedPlaceholder = "image attached"

// ToolLookup resolves tools by name for their omit hooks.
type ToolLookup interface {
	Get(name string) (tool.Tool, bool)
}

// Compactor bounds a personal history for prompt embedding.
type Compactor struct {
	// Window is the number of trailing entries passed through unmodified.
	Window int
	Tools  ToolLookup
}

// Compacted is a prompt-ready history plus at most one live attachment.
type Compacted struct {
	Entries    []model.Entry
	Attachment *tool.Attachment
}

// Compact returns redacted copies of history; the input is never modified.
func (c Compactor) Compact(history []model.Entry) Compacted {
	window := c.Window
	if window <= 0 {
		window = DefaultWindow
	}
	n := len(history)
	out := Compacted{Entries: make([]model.Entry, 0, n)}

	for i, orig := range history {
		e := orig.Clone()
		elapsed := n - 1 - i

		if e.Result != nil && !e.Result.Error {
			if at, ok := c.attachmentTool(e.Result.ToolName); ok {
				if i == n-1 {
					out.Attachment = c.surface(at, e.Result)
				} else {
					e.Result.Result = quote(retainedOncePlaceholder(e.Result.ToolName))
				}
				out.Entries = append(out.Entries, e)
				continue
			}
		}

		if i >= n-window {
			out.Entries = append(out.Entries, e)
			continue
		}

		switch {
		case e.Turn != nil && e.Turn.TargetType == model.TargetTool:
			if t, ok := c.lookup(e.Turn.Recipient); ok {
				if raw, ok := e.Turn.Args(); ok {
					e.Turn.ToolArgs[e.Turn.Recipient] = t.OmitArgs(elapsed, raw)
				}
			}
		case e.Result != nil && !e.Result.Error:
			if t, ok := c.lookup(e.Result.ToolName); ok {
				e.Result.Result = t.OmitResult(elapsed, e.Result.Result)
			}
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

func (c Compactor) surface(at tool.AttachmentTool, r *model.ToolResult) *tool.Attachment {
	att, err := at.Attachment(r.Result)
	if err != nil {
		slog.Warn("attachment unreadable", "tool", r.ToolName, "error", err)
		r.Result = quote(fmt.Sprintf("attachment unreadable: %v", err))
		return nil
	}
	r.Result = quote(attachedPlaceholder)
	return &att
}

func (c Compactor) lookup(name string) (tool.Tool, bool) {
	if c.Tools == nil {
		return nil, false
	}
	return c.Tools.Get(name)
}

func (c Compactor) attachmentTool(name string) (tool.AttachmentTool, bool) {
	t, ok := c.lookup(name)
	if !ok {
		return nil, false
	}
	at, ok := t.(tool.AttachmentTool)
	return at, ok
}

func retainedOncePlaceholder(toolName string) string {
	return fmt.Sprintf("image retained only once; call %s again to view it", toolName)
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
