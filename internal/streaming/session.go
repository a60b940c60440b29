package streaming

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/transport"
	"github.com/google/uuid"
)

const DefaultTimeout = 60 * time.Second

var ErrAlreadyRun = errors.New("session already run")

type Config struct {
	URL           string
	AuthToken     string
	ChunkDuration time.Duration
	Timeout       time.Duration
}

type Option func(*Session)

func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Result is what a session resolves with. It is returned on every path,
// including failures, and carries whatever the collector had at that point.
type Result struct {
	SessionID      string        `json:"sessionId"`
	UtteranceID    string        `json:"utteranceId"`
	Pipeline       string        `json:"pipeline"`
	Stages         []StageResult `json:"stages"`
	Complete       bool          `json:"complete"`
	ChunksSent     int           `json:"chunksSent"`
	AudioBytesSent int           `json:"audioBytesSent"`
	Violations     int           `json:"violations"`
	StartedAt      time.Time     `json:"startedAt"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Text returns the output text for a 1-based depth, or "" when that stage
// produced nothing.
func (r *Result) Text(depth int) string {
	for _, st := range r.Stages {
		if st.Depth == depth {
			return st.Text
		}
	}
	return ""
}

// Session streams one utterance through one transport. It runs at most once.
type Session struct {
	id       string
	tr       transport.Transport
	seq      *pipeline.TaskSequence
	cfg      Config
	observer Observer

	state      atomic.Int32
	started    atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func NewSession(tr transport.Transport, seq *pipeline.TaskSequence, cfg Config, opts ...Option) *Session {
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = audio.DefaultChunkDuration
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &Session{
		id:       uuid.NewString(),
		tr:       tr,
		seq:      seq,
		cfg:      cfg,
		observer: NopObserver(),
		cancelCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Cancel stops a running session from any goroutine. It is safe to call
// repeatedly and before Run.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

type sessionRun struct {
	s         *Session
	logger    *slog.Logger
	utt       audio.Utterance
	src       *audio.ChunkSource
	collector *ResponseCollector
	res       *Result
	format    string

	ticker     *time.Ticker
	tickC      <-chan time.Time
	connected  bool
	eosSent    bool
	firstChunk bool
}

// Run drives the session to completion and returns the result together with
// a *SessionError when it did not end normally. The result is never nil.
func (s *Session) Run(ctx context.Context, utt audio.Utterance) (*Result, error) {
	res := &Result{
		SessionID:   s.id,
		UtteranceID: utt.ID,
		Pipeline:    s.seq.String(),
		StartedAt:   time.Now(),
	}
	if !s.started.CompareAndSwap(false, true) {
		return res, ErrAlreadyRun
	}

	r := &sessionRun{
		s:          s,
		logger:     slog.With("session_id", s.id, "utterance_id", utt.ID),
		utt:        utt,
		collector:  NewResponseCollector(s.seq),
		res:        res,
		format:     s.seq.AudioFormat(),
		firstChunk: true,
	}
	src, err := audio.NewChunkSource(utt, s.cfg.ChunkDuration)
	if err != nil {
		s.setState(StateTerminated)
		res.Elapsed = time.Since(res.StartedAt)
		return res, err
	}
	r.src = src
	if want := s.seq.SamplingRate(); want > 0 && want != utt.SampleRate {
		r.logger.Warn("utterance sample rate differs from pipeline config", "utterance_rate", utt.SampleRate, "pipeline_rate", want)
	}

	s.observer.SessionStarted(res.Pipeline)
	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()

	if err := r.connect(ctx); err != nil {
		return r.finish(err)
	}
	return r.loop(ctx, deadline.C)
}

func (r *sessionRun) connect(ctx context.Context) error {
	s := r.s
	s.setState(StateConnecting)
	r.logger.Debug("connecting to gateway", "pipeline", r.res.Pipeline, "chunks", r.src.Total())

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	go func() {
		select {
		case <-s.cancelCh:
			cancel()
		case <-connectCtx.Done():
		}
	}()

	if err := s.tr.Connect(connectCtx, s.cfg.URL, s.cfg.AuthToken); err != nil {
		switch {
		case r.canceled(ctx):
			return newError(KindCanceled, "connect", "session canceled while connecting", err)
		case errors.Is(connectCtx.Err(), context.DeadlineExceeded):
			return newError(KindTimeout, "connect", "session deadline reached while connecting", err)
		default:
			return newError(KindConnectFailed, "connect", "could not open gateway connection", err)
		}
	}
	r.connected = true

	if err := s.tr.Emit(transport.EventStart, s.seq); err != nil {
		return newError(KindTransmitFailed, "start", "could not send task sequence", err)
	}
	s.setState(StateAwaitingReady)
	return nil
}

func (r *sessionRun) canceled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-r.s.cancelCh:
		return true
	default:
		return false
	}
}

func (r *sessionRun) loop(ctx context.Context, deadline <-chan time.Time) (*Result, error) {
	s := r.s
	events := s.tr.Events()
	for {
		select {
		case <-ctx.Done():
			r.sendEndOfStreamBestEffort()
			return r.finish(newError(KindCanceled, "stream", "session canceled", ctx.Err()))
		case <-s.cancelCh:
			r.sendEndOfStreamBestEffort()
			return r.finish(newError(KindCanceled, "stream", "session canceled", context.Canceled))
		case <-deadline:
			r.logger.Warn("session deadline reached", "state", s.State().String(), "timeout", s.cfg.Timeout)
			return r.finish(newError(KindTimeout, "stream", "session deadline reached", nil))
		case <-r.tickC:
			if err := r.sendNext(); err != nil {
				return r.finish(err)
			}
			if r.drainedAndComplete() {
				return r.finish(nil)
			}
		case ev, ok := <-events:
			if !ok {
				return r.finish(newError(KindServerTerminated, "stream", "event stream closed without terminate", nil))
			}
			done, err := r.handleEvent(ev)
			if done {
				return r.finish(err)
			}
		}
	}
}

func (r *sessionRun) handleEvent(ev transport.Event) (bool, error) {
	s := r.s
	switch ev.Name {
	case transport.EventReady, transport.EventConnectSuccess:
		if s.State() != StateAwaitingReady {
			r.logger.Debug("ignoring repeated ready event", "event", ev.Name, "state", s.State().String())
			return false, nil
		}
		s.setState(StateStreaming)
		r.logger.Debug("gateway ready, streaming", "event", ev.Name)
		if err := r.sendNext(); err != nil {
			return true, err
		}
		if s.State() == StateStreaming {
			r.ticker = time.NewTicker(s.cfg.ChunkDuration)
			r.tickC = r.ticker.C
		}
		return r.drainedAndComplete(), nil
	case transport.EventResponse:
		r.handleResponse(ev)
		return r.drainedAndComplete(), nil
	case transport.EventTerminate:
		r.collector.OnTerminate()
		r.logger.Debug("gateway terminated session", "state", s.State().String())
		return true, nil
	case transport.EventDisconnected:
		reason := ""
		if len(ev.Args) > 0 {
			reason = string(ev.Args[0])
		}
		r.logger.Warn("gateway disconnected before terminate", "state", s.State().String(), "reason", reason)
		return true, newError(KindServerTerminated, "stream", "gateway disconnected before terminate", nil)
	default:
		r.logger.Debug("ignoring unknown event", "event", ev.Name)
		return false, nil
	}
}

func (r *sessionRun) handleResponse(ev transport.Event) {
	outs, terminal, err := decodeResponse(ev.Args)
	if err != nil {
		r.violation(err)
		return
	}
	for _, o := range outs {
		if err := r.collector.OnResponse(o.depth, o.output, terminal); err != nil {
			r.violation(err)
			continue
		}
		r.s.observer.ResponseReceived(o.depth, terminal)
	}
}

func (r *sessionRun) violation(err error) {
	r.res.Violations++
	r.s.observer.ProtocolViolation()
	r.logger.Warn("discarding inbound response", "kind", KindProtocolViolation, "error", err)
}

func (r *sessionRun) drainedAndComplete() bool {
	return r.s.State() == StateDraining && r.collector.Complete()
}

// sendNext emits the next chunk, or the end-of-stream pair once the source
// is exhausted. The final chunk is followed immediately by end-of-stream.
func (r *sessionRun) sendNext() error {
	c, ok := r.src.Next()
	if !ok {
		return r.drain()
	}
	payload, err := audio.EncodeChunk(c, r.utt.SampleRate, r.format)
	if err != nil {
		return newError(KindTransmitFailed, "data", "could not encode chunk", err)
	}
	input := map[string]any{
		"audio": []map[string]string{{"audioContent": base64.StdEncoding.EncodeToString(payload)}},
	}
	streamingConfig := map[string]int{"response_depth": r.s.seq.IntermediateResponseDepth()}
	if err := r.s.tr.Emit(transport.EventData, input, streamingConfig, r.firstChunk, false); err != nil {
		return newError(KindTransmitFailed, "data", "could not send audio chunk", err)
	}
	r.firstChunk = false
	r.res.ChunksSent++
	r.res.AudioBytesSent += len(payload)
	r.s.observer.ChunkSent(len(payload))
	if c.Final {
		return r.drain()
	}
	return nil
}

func (r *sessionRun) drain() error {
	r.stopTicker()
	if err := r.sendEndOfStream(); err != nil {
		return err
	}
	r.s.setState(StateDraining)
	r.logger.Debug("audio exhausted, draining", "chunks_sent", r.res.ChunksSent)
	return nil
}

func (r *sessionRun) sendEndOfStream() error {
	if r.eosSent {
		return nil
	}
	r.eosSent = true
	if err := r.s.tr.Emit(transport.EventData, nil, nil, true, false); err != nil {
		return newError(KindTransmitFailed, "end_of_stream", "could not send end-of-stream", err)
	}
	if err := r.s.tr.Emit(transport.EventData, nil, nil, true, true); err != nil {
		return newError(KindTransmitFailed, "end_of_stream", "could not send end-of-stream", err)
	}
	return nil
}

func (r *sessionRun) sendEndOfStreamBestEffort() {
	if !r.connected {
		return
	}
	if err := r.sendEndOfStream(); err != nil {
		r.logger.Debug("end-of-stream on cancel failed", "error", err)
	}
}

func (r *sessionRun) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.tickC = nil
}

func (r *sessionRun) finish(err error) (*Result, error) {
	s := r.s
	r.stopTicker()
	s.setState(StateTerminated)
	if cerr := s.tr.Close(); cerr != nil {
		r.logger.Debug("transport close failed", "error", cerr)
	}

	r.res.Stages = r.collector.Results()
	r.res.Complete = r.collector.Complete()
	r.res.Elapsed = time.Since(r.res.StartedAt)

	outcome := "complete"
	if err != nil {
		outcome = string(KindOf(err))
		r.logger.Warn("session ended with error", "error", err, "chunks_sent", r.res.ChunksSent, "elapsed", r.res.Elapsed)
	} else {
		if !r.res.Complete {
			outcome = "incomplete"
		}
		r.logger.Info("session finished", "complete", r.res.Complete, "chunks_sent", r.res.ChunksSent, "elapsed", r.res.Elapsed)
	}
	s.observer.SessionFinished(outcome, r.res.Elapsed)
	return r.res, err
}
