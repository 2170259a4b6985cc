package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/YumaSeno/AIDeveloper/internal/agent"
	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/console"
	"github.com/YumaSeno/AIDeveloper/internal/eventlog"
	"github.com/YumaSeno/AIDeveloper/internal/llm"
	"github.com/YumaSeno/AIDeveloper/internal/natsbus"
	"github.com/YumaSeno/AIDeveloper/internal/orchestrator"
	"github.com/YumaSeno/AIDeveloper/internal/sandbox"
	"github.com/YumaSeno/AIDeveloper/internal/snapshot"
	"github.com/YumaSeno/AIDeveloper/internal/store"
	"github.com/YumaSeno/AIDeveloper/internal/telegram"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
	"github.com/YumaSeno/AIDeveloper/internal/tools"
	"github.com/YumaSeno/AIDeveloper/internal/web"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

// runSession wires the run's components and drives it to completion or
// until interrupted.
func runSession(parent context.Context, cfg *config.Config, resume bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	project := cfg.Project.Name
	runID := uuid.NewString()
	slog.Info("starting aidev", "version", version, "project", project, "run", runID, "resume", resume)

	ws, err := workspace.New(cfg.Project.WorkspaceBase, project)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}

	log, err := eventlog.Open(ws.MetaPath(orchestrator.LogFile), resume)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	// Tools
	reg := tool.NewRegistry()
	var runner tools.CommandRunner
	if cfg.Sandbox.Enabled {
		sb, err := sandbox.New(cfg.Sandbox, project, ws.Root())
		if err != nil {
			return fmt.Errorf("init sandbox: %w", err)
		}
		if err := sb.Start(ctx); err != nil {
			return fmt.Errorf("start sandbox: %w", err)
		}
		defer func() {
			if err := sb.Close(context.Background()); err != nil {
				slog.Warn("sandbox cleanup failed", "error", err)
			}
		}()
		runner = sb
		slog.Info("sandbox started", "image", cfg.Sandbox.Image, "workdir", sb.Workdir())
	} else {
		slog.Warn("sandbox disabled, ShellCommandTool unavailable")
	}
	if err := tools.Register(reg, ws, cfg.Tools, runner); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	gen, err := llm.NewGemini(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	// Human input
	term := console.Stdio()
	log.OnAppend(term.Render)
	var prompter agent.Prompter = term
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err := telegram.NewBot(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				slog.Error("telegram bot error", "error", err)
			}
		}()
		defer bot.Stop()
		prompter = bot
		slog.Info("telegram bot started", "chat", cfg.Telegram.ChatID)
	}

	var observers []orchestrator.Observer

	// SQLite mirror
	db, err := store.New(cfg.Store)
	var mirror *store.Mirror
	if err != nil {
		slog.Warn("store unavailable, mirror disabled", "error", err)
	} else {
		defer db.Close()
		mirror = store.NewMirror(db, runID, project)
		if err := db.StartRun(runID, project, resume); err != nil {
			slog.Warn("mirror run failed", "error", err)
		}
		if resume {
			err = db.SyncEntries(runID, project, log.Entries())
		} else {
			err = db.ResetEntries(project)
		}
		if err != nil {
			slog.Warn("mirror sync failed", "error", err)
		}
		log.OnAppend(mirror.OnEntry)
		observers = append(observers, mirror)
		slog.Info("store initialized", "path", cfg.Store.Path)
	}

	// Embedded NATS
	var bus *natsbus.Bus
	if cfg.NATS.Enabled {
		bus, err = natsbus.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer bus.Close()
		client, err := natsbus.NewClient(bus, "aidev-publisher")
		if err != nil {
			return fmt.Errorf("connect publisher: %w", err)
		}
		defer client.Close()
		pub := natsbus.NewPublisher(client, runID, project)
		log.OnAppend(pub.OnEntry)
		observers = append(observers, pub)
		slog.Info("nats started", "url", bus.ClientURL())
	}

	// Scheduled checkpoints
	var tick func(context.Context)
	if cfg.Snapshot.Schedule != "" {
		sched, err := snapshot.NewSchedule(cfg.Snapshot, project, ws.Root())
		if err != nil {
			return err
		}
		tick = sched.Tick
		slog.Info("snapshot schedule active", "schedule", cfg.Snapshot.Schedule, "next", sched.Next())
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		RunID:     runID,
		Log:       log,
		Workspace: ws,
		Tools:     reg,
		Agents: agent.Factory{
			Generator: gen,
			Prompter:  prompter,
			Retry: agent.RetryPolicy{
				MaxAttempts: cfg.LLM.MaxAttempts,
				Delay:       cfg.LLM.RetryDelay,
			},
			Window: cfg.History.RecentWindow,
		},
		Observers: observers,
		Tick:      tick,
	})
	if err != nil {
		return err
	}

	// Web UI
	if cfg.Web.Enabled && db != nil {
		var client *natsbus.Client
		if bus != nil {
			client, err = natsbus.NewClient(bus, "aidev-web")
			if err != nil {
				return fmt.Errorf("connect web client: %w", err)
			}
			defer client.Close()
		}
		srv, err := web.NewServer(db, client, orch, project, cfg.Web, version)
		if err != nil {
			return fmt.Errorf("init web server: %w", err)
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	if resume {
		err = orch.Resume(ctx)
	} else {
		err = orch.Bootstrap()
	}
	if err != nil {
		finish(mirror, err)
		return err
	}

	err = orch.Run(ctx)
	finish(mirror, err)
	if errors.Is(err, context.Canceled) {
		slog.Info("run interrupted, continue with: aidev resume", "project", project, "entries", log.Len())
		return nil
	}
	return err
}

func finish(m *store.Mirror, err error) {
	if m != nil {
		m.Finish(err)
	}
}
