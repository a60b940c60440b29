package evaluation

import (
	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/config"
	"github.com/foxseedlab/streameval/internal/discord"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/repository"
	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/foxseedlab/streameval/internal/transcriber"
	"github.com/foxseedlab/streameval/internal/transport"
	"github.com/foxseedlab/streameval/internal/webhook"
	"github.com/samber/do/v2"
)

// RegisterDI wires the runner registry and the evaluator. Runner factories
// resolve their backends lazily, so an unused backend needs no credentials.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		cfg := do.MustInvoke[*config.Config](i)
		seq := do.MustInvoke[*pipeline.TaskSequence](i)
		registry := NewRegistry()

		if err := registry.Register(config.ModelTypeStreaming, func() (Runner, error) {
			factory, err := do.Invoke[transport.Factory](i)
			if err != nil {
				return nil, err
			}
			observer := do.MustInvoke[streaming.Observer](i)
			return NewStreamingRunner(factory, seq, streaming.Config{
				URL:           cfg.GatewaySocketURL,
				AuthToken:     cfg.GatewayAPIKey,
				ChunkDuration: cfg.ChunkDuration(),
				Timeout:       cfg.SessionTimeout(),
			}, observer), nil
		}); err != nil {
			return nil, err
		}

		if err := registry.Register(config.ModelTypeCloudSpeech, func() (Runner, error) {
			stt, err := do.Invoke[transcriber.Transcriber](i)
			if err != nil {
				return nil, err
			}
			observer := do.MustInvoke[streaming.Observer](i)
			return NewTranscriberRunner(stt, seq, cfg.SessionTimeout(), observer), nil
		}); err != nil {
			return nil, err
		}
		return registry, nil
	})

	do.Provide(injector, func(i do.Injector) (*Evaluator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		registry := do.MustInvoke[*Registry](i)
		runner, err := registry.New(cfg.ModelType)
		if err != nil {
			return nil, err
		}
		return NewEvaluator(
			cfg,
			do.MustInvoke[*pipeline.TaskSequence](i),
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[audio.Loader](i),
			runner,
			do.MustInvoke[discord.Client](i),
			do.MustInvoke[webhook.Sender](i),
		), nil
	})
}
