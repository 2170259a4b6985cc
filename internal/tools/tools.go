// Package tools holds the concrete tools agents can invoke.
package tools

import (
	"fmt"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

// Register adds every available tool to reg. The shell tool is skipped
// when runner is nil.
func Register(reg *tool.Registry, ws *workspace.Workspace, cfg config.ToolsConfig, runner CommandRunner) error {
	fetcher := NewFetcher(cfg)
	all := []tool.Tool{
		FileReader(ws),
		FileWriter(ws),
		WebSearch(fetcher, cfg.SearchURL),
		GetHTTPContents(fetcher),
		GetImage(ws),
	}
	if runner != nil {
		all = append(all, ShellCommand(runner, cfg.ShellTimeout, cfg.MaxOutput))
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return nil
}
