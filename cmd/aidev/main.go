package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/snapshot"
	"github.com/YumaSeno/AIDeveloper/internal/web"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

var version = "dev"

var (
	configPath  string
	projectName string
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aidev",
		Short:         "Run a virtual software team on a project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $AIDEV_CONFIG or config/aidev.yaml)")
	root.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project name (overrides project.name)")

	root.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newSnapshotCmd(),
		newRestoreCmd(),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		os.Setenv("AIDEV_CONFIG", configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if projectName != "" {
		cfg.Project.Name = projectName
	}
	if cfg.Project.Name == "" {
		return nil, fmt.Errorf("project name is required (--project or project.name)")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	})))
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a new run, discarding the project's previous log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return reportErr(err)
			}
			return reportErr(runSession(cmd.Context(), cfg, false))
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Continue the project's run from its event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return reportErr(err)
			}
			return reportErr(runSession(cmd.Context(), cfg, true))
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive the project directory as tar.zst",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return reportErr(err)
			}
			ws, err := workspace.New(cfg.Project.WorkspaceBase, cfg.Project.Name)
			if err != nil {
				return reportErr(err)
			}
			if out == "" {
				name := fmt.Sprintf("%s-%s%s", cfg.Project.Name, time.Now().UTC().Format("20060102-150405"), snapshot.Extension)
				out = filepath.Join(cfg.Snapshot.Dir, name)
			}
			size, err := snapshot.Create(ws.Root(), out)
			if err != nil {
				return reportErr(err)
			}
			fmt.Printf("Snapshot complete: %s, %s\n", out, snapshot.FormatSize(size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "output archive (default <snapshot.dir>/<project>-<time>.tar.zst)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var (
		in        string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the project directory from a tar.zst archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return reportErr(err)
			}
			ws, err := workspace.New(cfg.Project.WorkspaceBase, cfg.Project.Name)
			if err != nil {
				return reportErr(err)
			}
			if entries, _ := os.ReadDir(ws.Root()); len(entries) > 0 && !overwrite {
				return reportErr(fmt.Errorf("project %s is not empty, add --overwrite to replace files", cfg.Project.Name))
			}
			if err := snapshot.Restore(in, ws.Root()); err != nil {
				return reportErr(err)
			}
			fmt.Printf("Restore complete: %s\n", ws.Root())
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "file", "f", "", "archive to restore")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files in a non-empty project")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for web.auth",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return reportErr(fmt.Errorf("read password: %w", err))
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return reportErr(fmt.Errorf("password must not be empty"))
			}
			hash, err := web.HashPassword(password)
			if err != nil {
				return reportErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aidev %s\n", version)
		},
	}
}

func reportErr(err error) error {
	if err != nil {
		slog.Error("command failed", "error", err)
	}
	return err
}
