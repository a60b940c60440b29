package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/streameval/external/audio"
	configloader "github.com/foxseedlab/streameval/external/config"
	"github.com/foxseedlab/streameval/external/discord"
	"github.com/foxseedlab/streameval/external/metrics"
	repositoryimpl "github.com/foxseedlab/streameval/external/repository"
	transcriberimpl "github.com/foxseedlab/streameval/external/transcriber"
	"github.com/foxseedlab/streameval/external/transport/socketio"
	webhookimpl "github.com/foxseedlab/streameval/external/webhook"
	"github.com/foxseedlab/streameval/internal/config"
	"github.com/foxseedlab/streameval/internal/dataset"
	discordpkg "github.com/foxseedlab/streameval/internal/discord"
	"github.com/foxseedlab/streameval/internal/evaluation"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout  = 20 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "model_type", cfg.ModelType)

	seq := mustLoadPipeline(cfg)
	samples := mustLoadManifest(cfg)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg, seq)

	code := run(cfg, injector, samples)
	_ = injector.Shutdown()
	os.Exit(code)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func mustLoadPipeline(cfg *config.Config) *pipeline.TaskSequence {
	seq, err := configloader.LoadPipeline(cfg.PipelineFile)
	if err != nil {
		slog.Error("pipeline definition is invalid", "path", cfg.PipelineFile, "error", err)
		os.Exit(1)
	}
	slog.Info("startup: pipeline loaded", "pipeline", seq.String(), "sampling_rate", seq.SamplingRate(), "audio_format", seq.AudioFormat())
	return seq
}

func mustLoadManifest(cfg *config.Config) []dataset.Sample {
	samples, err := dataset.LoadManifest(cfg.DatasetManifest)
	if err != nil {
		slog.Error("dataset manifest is invalid", "path", cfg.DatasetManifest, "error", err)
		os.Exit(1)
	}
	slog.Info("startup: manifest loaded", "samples", len(samples))
	return samples
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config, seq *pipeline.TaskSequence) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, seq)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	socketio.RegisterDI(injector)
	metrics.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	evaluation.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector, samples []dataset.Sample) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		observer, err := do.Invoke[*metrics.SessionObserver](injector)
		if err != nil {
			slog.Error("failed to resolve metrics observer", "error", err)
			return 1
		}
		shutdown := serveMetrics(cfg.MetricsAddr, observer.Handler())
		defer shutdown()
	}

	if cfg.DiscordToken != "" {
		dc, code := connectDiscord(ctx, injector)
		if code != 0 {
			return code
		}
		defer func() {
			if err := dc.Close(); err != nil {
				slog.Error("discord close failed", "error", err)
			}
		}()
	}

	evaluator, err := do.Invoke[*evaluation.Evaluator](injector)
	if err != nil {
		slog.Error("failed to resolve evaluator", "error", err)
		return 1
	}

	slog.Info("startup: evaluation started")
	summary, err := evaluator.Evaluate(ctx, samples)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		return 1
	}
	if ctx.Err() != nil {
		slog.Info("shutting down", "run_id", summary.Run.ID)
		return 130
	}
	if summary.Run.Failed > 0 {
		return 2
	}
	return 0
}

func connectDiscord(ctx context.Context, injector do.Injector) (discordpkg.Client, int) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		return nil, 1
	}
	connectCtx, cancel := context.WithTimeout(ctx, discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		return nil, 1
	}
	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		return nil, 1
	}
	slog.Info("startup: discord connected", "bot_user_id", botUserID)
	return dc, 0
}

func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("metrics listener shutdown failed", "error", err)
		}
	}
}
