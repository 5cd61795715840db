package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxos-ai/voxos/internal/capability"
)

// ValidProviders lists the known model backend names. Used by [Validate] to
// warn about unrecognised names.
var ValidProviders = []string{
	"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral",
	"groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "ollama"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "mistral"
	}
	if cfg.Model.RequestTimeout <= 0 {
		cfg.Model.RequestTimeout = 60 * time.Second
	}
	if cfg.Pipeline.Language == "" {
		cfg.Pipeline.Language = "en"
	}
	if cfg.Pipeline.ConfidenceThreshold == 0 {
		cfg.Pipeline.ConfidenceThreshold = 0.7
	}
	if cfg.Pipeline.DefaultConfidence == 0 {
		cfg.Pipeline.DefaultConfidence = 0.5
	}
	if cfg.Pipeline.MaxHistory <= 0 {
		cfg.Pipeline.MaxHistory = 50
	}
	if cfg.Pipeline.HistoryWindow <= 0 {
		cfg.Pipeline.HistoryWindow = 10
	}
	if cfg.State.Brightness == nil {
		cfg.State.Brightness = ptr(50)
	}
	if cfg.State.Volume == nil {
		cfg.State.Volume = ptr(50)
	}
}

func ptr[T any](v T) *T { return &v }

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateModel("model", &cfg.Model, &errs)
	if cfg.Fallback != nil {
		validateModel("fallback", cfg.Fallback, &errs)
		if cfg.Fallback.Name == "" {
			errs = append(errs, errors.New("fallback.name is required when a fallback backend is configured"))
		}
	}

	if cfg.Pipeline.ConfidenceThreshold < 0 || cfg.Pipeline.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.confidence_threshold %.2f is out of range [0, 1]", cfg.Pipeline.ConfidenceThreshold))
	}
	if cfg.Pipeline.DefaultConfidence < 0 || cfg.Pipeline.DefaultConfidence > 1 {
		errs = append(errs, fmt.Errorf("pipeline.default_confidence %.2f is out of range [0, 1]", cfg.Pipeline.DefaultConfidence))
	}

	if b := cfg.State.Brightness; b != nil && (*b < 0 || *b > 100) {
		errs = append(errs, fmt.Errorf("state.brightness %d is out of range [0, 100]", *b))
	}
	if v := cfg.State.Volume; v != nil && (*v < 0 || *v > 100) {
		errs = append(errs, fmt.Errorf("state.volume %d is out of range [0, 100]", *v))
	}

	// Unknown capability names are a likely typo, not an error: a config may
	// predate a catalog change.
	known := make(map[string]bool)
	for _, spec := range capability.Builtin(nil) {
		known[spec.Name] = true
	}
	for name := range cfg.Capabilities {
		if !known[name] {
			slog.Warn("capabilities entry does not match any builtin capability",
				"name", name)
		}
	}

	return errors.Join(errs...)
}

// validateModel checks one backend block.
func validateModel(prefix string, mc *ModelConfig, errs *[]error) {
	if mc.Provider != "" && !slices.Contains(ValidProviders, mc.Provider) {
		slog.Warn("unknown model provider, possibly a typo",
			"field", prefix+".provider",
			"name", mc.Provider,
			"known", ValidProviders,
		)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		*errs = append(*errs, fmt.Errorf("%s.temperature %.2f is out of range [0, 2]", prefix, mc.Temperature))
	}
	if mc.RequestTimeout < 0 {
		*errs = append(*errs, fmt.Errorf("%s.request_timeout must not be negative", prefix))
	}
}
