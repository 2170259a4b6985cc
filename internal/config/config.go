package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	LLM      LLMConfig      `yaml:"llm"`
	History  HistoryConfig  `yaml:"history"`
	Tools    ToolsConfig    `yaml:"tools"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	Web      WebConfig      `yaml:"web"`
	Telegram TelegramConfig `yaml:"telegram"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
}

type ProjectConfig struct {
	Name          string `yaml:"name"`
	WorkspaceBase string `yaml:"workspace_base"`
}

type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type HistoryConfig struct {
	// RecentWindow is the number of trailing personal-history entries that
	// reach a prompt without redaction.
	RecentWindow int `yaml:"recent_window"`
}

type ToolsConfig struct {
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	SearchURL    string        `yaml:"search_url"`
	ShellTimeout time.Duration `yaml:"shell_timeout"`
	MaxOutput    int           `yaml:"max_output"`
}

type SandboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Image   string `yaml:"image"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	ChatID    int64   `yaml:"chat_id"`
	AllowFrom []int64 `yaml:"allow_from"`
}

type SnapshotConfig struct {
	Dir      string `yaml:"dir"`
	Schedule string `yaml:"schedule"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Project: ProjectConfig{
			WorkspaceBase: "workspace",
		},
		LLM: LLMConfig{
			Model:       "gemini-2.5-flash",
			MaxAttempts: 4,
			RetryDelay:  30 * time.Second,
		},
		History: HistoryConfig{
			RecentWindow: 20,
		},
		Tools: ToolsConfig{
			HTTPTimeout:  30 * time.Second,
			MaxBodyBytes: 512 * 1024,
			SearchURL:    "https://html.duckduckgo.com/html",
			ShellTimeout: 120 * time.Second,
			MaxOutput:    64 * 1024,
		},
		Sandbox: SandboxConfig{
			Enabled: true,
			Image:   "debian:bookworm-slim",
		},
		Store: StoreConfig{
			Path: "data/aidev.db",
		},
		NATS: NATSConfig{
			Enabled: true,
			Port:    4222,
			DataDir: "data/nats",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Snapshot: SnapshotConfig{
			Dir: "data/snapshots",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("AIDEV_CONFIG")
	if path == "" {
		path = "config/aidev.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AIDEV_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AIDEV_WORKSPACE"); v != "" {
		cfg.Project.WorkspaceBase = v
	}
	if v := os.Getenv("AIDEV_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("AIDEV_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("AIDEV_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("AIDEV_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("AIDEV_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("AIDEV_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AIDEV_SNAPSHOT_SCHEDULE"); v != "" {
		cfg.Snapshot.Schedule = v
	}
	if v := os.Getenv("AIDEV_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.RetryDelay < 0 {
		return fmt.Errorf("llm.retry_delay must not be negative")
	}
	if c.History.RecentWindow < 1 {
		return fmt.Errorf("history.recent_window must be at least 1, got %d", c.History.RecentWindow)
	}
	if c.Tools.ShellTimeout <= 0 {
		return fmt.Errorf("tools.shell_timeout must be positive")
	}
	return nil
}

// SlogLevel maps the configured level name onto a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
