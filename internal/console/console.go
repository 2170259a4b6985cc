package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/YumaSeno/AIDeveloper/internal/model"
)

const (
	maxArgsShown   = 200
	maxResultShown = 300
)

var (
	agentColor  = color.New(color.FgCyan, color.Bold)
	toolColor   = color.New(color.FgMagenta)
	actionColor = color.New(color.FgYellow, color.Bold)
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

type line struct {
	text string
	err  error
}

// Console prints the transcript as it grows and reads the human's replies
// from a line-based input. It implements agent.Prompter.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	mu    sync.Mutex
	once  sync.Once
	lines chan line
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan line),
	}
}

// Stdio binds the console to the process terminal. Colors are disabled
// when stdout is not a terminal.
func Stdio() *Console {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return New(os.Stdin, os.Stdout)
}

func (c *Console) readLines() {
	for {
		text, err := c.in.ReadString('\n')
		c.lines <- line{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// Ask shows who is waiting and reads one non-empty line.
func (c *Console) Ask(ctx context.Context, from, message string) (string, error) {
	c.once.Do(func() { go c.readLines() })

	c.mu.Lock()
	fmt.Fprintf(c.out, "%s %s\n", actionColor.Sprint("Your reply to"), agentColor.Sprint(from))
	c.mu.Unlock()

	for {
		c.mu.Lock()
		fmt.Fprint(c.out, agentColor.Sprint(model.HumanName+"> "))
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case l := <-c.lines:
			text := strings.TrimSpace(l.text)
			if text != "" {
				return text, nil
			}
			if l.err != nil {
				return "", fmt.Errorf("read input: %w", l.err)
			}
		}
	}
}

// Render prints one log entry. Its signature matches eventlog.Listener.
func (c *Console) Render(_ int, e model.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case e.Turn != nil:
		c.renderTurn(e.Turn)
	case e.Result != nil:
		c.renderResult(e.Result)
	}
}

func (c *Console) renderTurn(t *model.Turn) {
	sender := t.Sender
	if sender == "" {
		sender = "system"
	}
	if t.TargetType == model.TargetTool {
		args, _ := t.Args()
		fmt.Fprintf(c.out, "%s %s %s\n",
			agentColor.Sprint(sender),
			toolColor.Sprintf("-> %s", t.Recipient),
			dimColor.Sprint(truncate(compactJSON(args), maxArgsShown)),
		)
		return
	}

	header := fmt.Sprintf("%s -> %s", agentColor.Sprint(sender), agentColor.Sprint(t.Recipient))
	if t.SpecialAction != model.ActionNone && t.SpecialAction != "" {
		header += " " + actionColor.Sprintf("[%s]", t.SpecialAction)
	}
	fmt.Fprintln(c.out, header)
	if t.Message != "" {
		fmt.Fprintln(c.out, indent(t.Message))
	}
	fmt.Fprintln(c.out)
}

func (c *Console) renderResult(r *model.ToolResult) {
	mark, col := "ok", okColor
	if r.Error {
		mark, col = "error", errColor
	}
	fmt.Fprintf(c.out, "%s %s\n%s\n\n",
		toolColor.Sprint(r.ToolName),
		col.Sprint(mark),
		indent(truncate(r.Text(), maxResultShown)),
	)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
