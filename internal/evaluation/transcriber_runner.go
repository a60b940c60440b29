package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/foxseedlab/streameval/internal/transcriber"
	"github.com/google/uuid"
)

// Cloud Speech rejects oversized audio requests, so PCM goes out in short
// frames regardless of the gateway chunk duration.
const speechFrameDuration = 100 * time.Millisecond

// TranscriberRunner evaluates the ASR stage against a hosted speech-to-text
// stream. Only depth 1 is produced.
type TranscriberRunner struct {
	stt      transcriber.Transcriber
	seq      *pipeline.TaskSequence
	timeout  time.Duration
	observer streaming.Observer
}

func NewTranscriberRunner(stt transcriber.Transcriber, seq *pipeline.TaskSequence, timeout time.Duration, observer streaming.Observer) *TranscriberRunner {
	if timeout <= 0 {
		timeout = streaming.DefaultTimeout
	}
	if observer == nil {
		observer = streaming.NopObserver()
	}
	return &TranscriberRunner{stt: stt, seq: seq, timeout: timeout, observer: observer}
}

func (r *TranscriberRunner) Run(ctx context.Context, job Job) (*streaming.Result, error) {
	res := &streaming.Result{
		SessionID:   uuid.NewString(),
		UtteranceID: job.Utterance.ID,
		Pipeline:    string(pipeline.TaskASR),
		StartedAt:   time.Now(),
	}
	logger := slog.With("session_id", res.SessionID, "utterance_id", job.Utterance.ID)
	r.observer.SessionStarted(res.Pipeline)

	streamCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	language := job.Sample.SourceLanguage
	if language == "" {
		language = r.seq.SourceLanguage()
	}
	collector := newSpeechCollector(r.observer)
	writer, err := r.stt.StartStreaming(streamCtx, res.SessionID, transcriber.StreamOptions{
		Language:        language,
		SampleRateHertz: job.Utterance.SampleRate,
		Channels:        1,
	}, collector)
	if err != nil {
		return r.finish(logger, res, collector, streamFailure(ctx, streamCtx, streaming.KindConnectFailed, "connect", "could not open speech stream", err))
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Debug("speech stream close failed", "error", cerr)
		}
	}()

	src, err := audio.NewChunkSource(job.Utterance, speechFrameDuration)
	if err != nil {
		return r.finish(logger, res, collector, err)
	}
	for c, ok := src.Next(); ok; c, ok = src.Next() {
		pcm := audio.EncodePCM(c.Samples)
		if err := writer.Write(pcm); err != nil {
			return r.finish(logger, res, collector, streamFailure(ctx, streamCtx, streaming.KindTransmitFailed, "data", "could not send audio frame", err))
		}
		res.ChunksSent++
		res.AudioBytesSent += len(pcm)
		r.observer.ChunkSent(len(pcm))
	}
	if err := writer.CloseSend(); err != nil {
		return r.finish(logger, res, collector, streamFailure(ctx, streamCtx, streaming.KindTransmitFailed, "end_of_stream", "could not close audio stream", err))
	}

	select {
	case <-collector.done:
	case <-streamCtx.Done():
		return r.finish(logger, res, collector, streamFailure(ctx, streamCtx, streaming.KindTimeout, "stream", "speech stream did not finish", nil))
	}
	if err := collector.failure(); err != nil {
		return r.finish(logger, res, collector, streamFailure(ctx, streamCtx, streaming.KindServerTerminated, "stream", "speech stream failed", err))
	}
	return r.finish(logger, res, collector, nil)
}

func (r *TranscriberRunner) finish(logger *slog.Logger, res *streaming.Result, collector *speechCollector, err error) (*streaming.Result, error) {
	res.Stages, res.Complete = collector.results(err == nil)
	res.Elapsed = time.Since(res.StartedAt)

	outcome := "complete"
	if err != nil {
		outcome = string(streaming.KindOf(err))
		logger.Warn("speech stream ended with error", "error", err, "chunks_sent", res.ChunksSent, "elapsed", res.Elapsed)
	} else {
		if !res.Complete {
			outcome = "incomplete"
		}
		logger.Info("speech stream finished", "complete", res.Complete, "chunks_sent", res.ChunksSent, "elapsed", res.Elapsed)
	}
	r.observer.SessionFinished(outcome, res.Elapsed)
	return res, err
}

// streamFailure classifies a failure, letting cancellation and the deadline
// win over the kind the caller observed.
func streamFailure(parent, streamCtx context.Context, kind streaming.Kind, op, message string, cause error) error {
	switch {
	case parent.Err() != nil:
		return &streaming.SessionError{Kind: streaming.KindCanceled, Op: op, Message: "session canceled", Cause: parent.Err()}
	case errors.Is(streamCtx.Err(), context.DeadlineExceeded):
		return &streaming.SessionError{Kind: streaming.KindTimeout, Op: op, Message: "session deadline reached", Cause: cause}
	default:
		return &streaming.SessionError{Kind: kind, Op: op, Message: message, Cause: cause}
	}
}

type speechCollector struct {
	observer streaming.Observer

	mu      sync.Mutex
	finals  []string
	interim string
	seen    bool
	err     error

	done     chan struct{}
	doneOnce sync.Once
}

func newSpeechCollector(observer streaming.Observer) *speechCollector {
	return &speechCollector{observer: observer, done: make(chan struct{})}
}

func (c *speechCollector) OnResult(_ int, text string, isFinal bool) {
	text = strings.TrimSpace(text)
	c.mu.Lock()
	c.seen = true
	if isFinal {
		if text != "" {
			c.finals = append(c.finals, text)
		}
		c.interim = ""
	} else {
		c.interim = text
	}
	c.mu.Unlock()
	c.observer.ResponseReceived(1, isFinal)
}

func (c *speechCollector) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *speechCollector) OnDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *speechCollector) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// results renders the single ASR depth. A trailing interim hypothesis is
// kept in the text but leaves the stage non-final.
func (c *speechCollector) results(ended bool) ([]streaming.StageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	final := ended && c.err == nil && c.interim == ""
	if !c.seen {
		return []streaming.StageResult{}, false
	}
	parts := append([]string(nil), c.finals...)
	if c.interim != "" {
		parts = append(parts, c.interim)
	}
	return []streaming.StageResult{{
		Depth:    1,
		TaskType: pipeline.TaskASR,
		Text:     strings.Join(parts, " "),
		Final:    final,
	}}, final
}
