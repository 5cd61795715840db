package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voxos-ai/voxos/internal/agent"
	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/config"
	"github.com/voxos-ai/voxos/internal/convo"
	"github.com/voxos-ai/voxos/internal/dispatch"
	"github.com/voxos-ai/voxos/internal/effector"
	"github.com/voxos-ai/voxos/internal/health"
	"github.com/voxos-ai/voxos/internal/observe"
	"github.com/voxos-ai/voxos/internal/protocol"
	"github.com/voxos-ai/voxos/internal/resilience"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
	"github.com/voxos-ai/voxos/pkg/provider/llm/anyllm"
	"github.com/voxos-ai/voxos/pkg/provider/llm/ollamanative"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive command pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), *configPath)
		},
	}
}

func runPipeline(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("voxos starting",
		"config", configPath,
		"model", cfg.Model.Name,
		"provider", cfg.Model.Provider,
		"log_level", cfg.Server.LogLevel,
	)

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxos",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	var archive *convo.Archive
	if cfg.Archive.Path != "" {
		archive, err = convo.OpenArchive(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		slog.Info("conversation archive enabled", "path", cfg.Archive.Path)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	reg := capability.NewRegistry()
	if err := capability.RegisterBuiltin(reg, cfg.Capabilities); err != nil {
		return fmt.Errorf("register capabilities: %w", err)
	}

	activeModel := cfg.Model.Name
	if archive != nil {
		if pref, err := archive.Preference("active_model"); err != nil {
			slog.Warn("could not restore model preference", "err", err)
		} else if pref != "" {
			activeModel = pref
			slog.Info("restored active model from archive", "model", pref)
		}
	}

	store := convo.NewStore(cfg.Pipeline.MaxHistory, convo.Snapshot{
		Brightness:  *cfg.State.Brightness,
		Volume:      *cfg.State.Volume,
		ActiveModel: activeModel,
		AutoConfirm: cfg.Pipeline.AutoConfirm,
	}, archive)

	effectors := effector.Builtin(nil)
	effectors["set_model"] = effector.ModelSwitch(provider)

	dispatcher := dispatch.New(effectors, store, archive, nil, logger)

	a := agent.New(agent.Options{
		Provider:       provider,
		Encoder:        protocol.NewEncoder(reg, cfg.Pipeline.HistoryWindow, cfg.Pipeline.Language),
		Decoder:        protocol.NewDecoder(cfg.Pipeline.DefaultConfidence),
		Validator:      capability.NewValidator(reg, cfg.Pipeline.ConfidenceThreshold),
		Dispatcher:     dispatcher,
		Store:          store,
		Temperature:    cfg.Model.Temperature,
		RequestTimeout: cfg.Model.RequestTimeout,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	if cfg.Server.MetricsAddr != "" {
		probes := []health.Probe{health.Backend(provider)}
		if archive != nil {
			probes = append(probes, health.Archive(archive))
		}
		checks := health.New(probes...)
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Server.MetricsAddr, checks)
		})
	}

	g.Go(func() error {
		defer slog.Info("goodbye")
		return repl(gctx, a, dispatcher, os.Stdin, os.Stdout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildProvider constructs the model backend from the configuration. The
// primary always runs behind its circuit breaker; a configured fallback
// backend joins the same failover group.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	primary, err := newBackend(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model backend: %w", err)
	}

	group := resilience.NewLLMFallback(primary, cfg.Model.Provider, resilience.FallbackConfig{})
	if cfg.Fallback != nil {
		fallback, err := newBackend(*cfg.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback backend: %w", err)
		}
		group.AddFallback(cfg.Fallback.Provider, fallback)
		slog.Info("model failover enabled",
			"primary", cfg.Model.Provider,
			"fallback", cfg.Fallback.Provider,
		)
	}
	return group, nil
}

// newBackend builds one backend. "ollama" gets the native streaming client;
// everything else goes through any-llm-go.
func newBackend(mc config.ModelConfig) (llm.Provider, error) {
	if mc.Provider == "ollama" {
		return ollamanative.New(mc.BaseURL, mc.Name)
	}

	var opts []anyllmlib.Option
	if mc.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(mc.APIKey))
	}
	if mc.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(mc.BaseURL))
	}
	return anyllm.New(mc.Provider, mc.Name, opts...)
}

// serveMetrics runs the Prometheus scrape endpoint and the health probes
// until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, checks *health.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checks.Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("metrics endpoint listening", "addr", addr)

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}
}

// repl reads utterances line by line and prints replies. Confirmation
// requests from the dispatcher are answered inline with a y/N prompt.
func repl(ctx context.Context, a *agent.Agent, d *dispatch.Dispatcher, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, `voxos ready. Type a command, or "exit" to quit.`)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		type outcome struct {
			reply agent.Reply
			err   error
		}
		replyCh := make(chan outcome, 1)
		go func() {
			r, err := a.Handle(ctx, line)
			replyCh <- outcome{r, err}
		}()

		for waiting := true; waiting; {
			select {
			case req := <-d.Confirmations():
				fmt.Fprintf(out, "Run %s %v? [y/N] ", req.Call.Spec.Name, req.Call.Args)
				accept := false
				if scanner.Scan() {
					ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
					accept = ans == "y" || ans == "yes"
				}
				d.Confirm(req.ID, accept)

			case o := <-replyCh:
				if o.err != nil {
					fmt.Fprintf(out, "error: %v\n", o.err)
				} else {
					fmt.Fprintln(out, o.reply.Text)
				}
				waiting = false

			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
