package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YumaSeno/AIDeveloper/internal/sandbox"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
)

const ShellCommandName = "ShellCommandTool"

const omitOutputKeep = 500

// CommandRunner executes shell commands in an isolated environment.
type CommandRunner interface {
	Run(ctx context.Context, command string) (sandbox.Result, error)
	Workdir() string
}

type ShellCommandArgs struct {
	Command string `json:"command" jsonschema_description:"Shell command line, run with sh -c in the project directory."`
}

type ShellResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// ShellCommand runs commands inside the project sandbox with a hard timeout.
func ShellCommand(r CommandRunner, timeout time.Duration, maxOutput int) tool.Tool {
	return tool.New(tool.Spec[ShellCommandArgs, ShellResult]{
		Name: ShellCommandName,
		Description: fmt.Sprintf("Runs a shell command in a Debian container. Project files are mounted at %s. "+
			"Commands are stopped after %s.", r.Workdir(), timeout),
		Run: func(ctx context.Context, args ShellCommandArgs) (ShellResult, error) {
			if args.Command == "" {
				return ShellResult{}, errors.New("command is empty")
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := r.Run(ctx, args.Command)
			if errors.Is(err, sandbox.ErrTimedOut) || errors.Is(err, context.DeadlineExceeded) {
				return ShellResult{}, errors.New("timed out")
			}
			if err != nil {
				return ShellResult{}, err
			}
			return ShellResult{
				ExitCode: res.ExitCode,
				Stdout:   capOutput(res.Stdout, maxOutput),
				Stderr:   capOutput(res.Stderr, maxOutput),
			}, nil
		},
		OmitResult: func(_ int, r ShellResult) ShellResult {
			r.Stdout = keepTail(r.Stdout, omitOutputKeep)
			r.Stderr = keepTail(r.Stderr, omitOutputKeep)
			return r
		},
	})
}

func capOutput(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "\n(truncated)"
}

func keepTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return omitted + " ..." + s[len(s)-n:]
}
