// Package config provides the configuration schema and loader for voxos.
//
// The configuration is read once at startup and treated as immutable
// afterwards; runtime-mutable values (the auto-confirm flag, the active
// model) live in the conversation store's state snapshot, seeded from here.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the slog level it names. Unknown levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for voxos.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Model        ModelConfig     `yaml:"model"`
	Fallback     *ModelConfig    `yaml:"fallback"`
	Pipeline     PipelineConfig  `yaml:"pipeline"`
	State        StateConfig     `yaml:"state"`
	Capabilities map[string]bool `yaml:"capabilities"`
	Archive      ArchiveConfig   `yaml:"archive"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving the Prometheus /metrics
	// endpoint (e.g. ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ModelConfig selects and tunes one model backend.
type ModelConfig struct {
	// Provider selects the backend implementation. "ollama" uses the native
	// NDJSON streaming client; any other name is resolved through
	// any-llm-go (openai, anthropic, gemini, deepseek, mistral, groq,
	// llamacpp, llamafile).
	Provider string `yaml:"provider"`

	// Name is the model to request (e.g. "mistral", "gpt-4o").
	Name string `yaml:"name"`

	// BaseURL overrides the backend's default endpoint. For ollama the
	// default is http://localhost:11434.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against hosted backends. Unused for local ones.
	APIKey string `yaml:"api_key"`

	// Temperature controls output randomness. Zero means backend default.
	Temperature float64 `yaml:"temperature"`

	// RequestTimeout bounds one completion request. Default: 60s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// PipelineConfig tunes command interpretation.
type PipelineConfig struct {
	// Language selects the interface language for prompts and replies
	// (e.g. "en", "de"). Default: "en".
	Language string `yaml:"language"`

	// AutoConfirm skips the confirmation gate for low-confidence commands.
	AutoConfirm bool `yaml:"auto_confirm"`

	// ConfidenceThreshold is the confidence below which a command requires
	// confirmation. Default: 0.7.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// DefaultConfidence is assumed when the model omits the confidence
	// field. Default: 0.5.
	DefaultConfidence float64 `yaml:"default_confidence"`

	// MaxHistory bounds the conversation history; oldest turns are evicted
	// first. Default: 50.
	MaxHistory int `yaml:"max_history"`

	// HistoryWindow is how many trailing turns are sent to the model.
	// Default: 10.
	HistoryWindow int `yaml:"history_window"`
}

// StateConfig seeds the system state snapshot at startup. The snapshot is
// what the model is told the current brightness and volume are before any
// command has run, so these should match the machine's actual settings.
// Pointers distinguish an explicit 0 from an absent field.
type StateConfig struct {
	// Brightness is the assumed screen brightness percent. Default: 50.
	Brightness *int `yaml:"brightness"`

	// Volume is the assumed audio volume percent. Default: 50.
	Volume *int `yaml:"volume"`
}

// ArchiveConfig holds settings for the SQLite conversation archive.
type ArchiveConfig struct {
	// Path is the SQLite database file. Empty disables archiving.
	Path string `yaml:"path"`
}
