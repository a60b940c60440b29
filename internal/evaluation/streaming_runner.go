package evaluation

import (
	"context"

	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/foxseedlab/streameval/internal/transport"
)

// StreamingRunner drives each utterance through a fresh gateway session.
type StreamingRunner struct {
	newTransport transport.Factory
	seq          *pipeline.TaskSequence
	cfg          streaming.Config
	observer     streaming.Observer
}

func NewStreamingRunner(newTransport transport.Factory, seq *pipeline.TaskSequence, cfg streaming.Config, observer streaming.Observer) *StreamingRunner {
	if observer == nil {
		observer = streaming.NopObserver()
	}
	return &StreamingRunner{
		newTransport: newTransport,
		seq:          seq,
		cfg:          cfg,
		observer:     observer,
	}
}

func (r *StreamingRunner) Run(ctx context.Context, job Job) (*streaming.Result, error) {
	seq := r.seq.WithLanguages(job.Sample.SourceLanguage, job.Sample.TargetLanguage)
	sess := streaming.NewSession(r.newTransport(), seq, r.cfg, streaming.WithObserver(r.observer))
	return sess.Run(ctx, job.Utterance)
}
