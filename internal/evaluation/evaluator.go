package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/config"
	"github.com/foxseedlab/streameval/internal/dataset"
	"github.com/foxseedlab/streameval/internal/discord"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/repository"
	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/foxseedlab/streameval/internal/webhook"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Error kinds recorded for failures that happen outside a session.
const (
	errorKindLoadFailed = "load_failed"
	errorKindInternal   = "internal"
)

const reportDeliveryTimeout = 30 * time.Second

type Evaluator struct {
	cfg     *config.Config
	seq     *pipeline.TaskSequence
	repo    repository.Repository
	loader  audio.Loader
	runner  Runner
	discord discord.Client
	webhook webhook.Sender
	now     func() time.Time
}

// Outcome is the evaluation of one manifest sample.
type Outcome struct {
	Sample dataset.Sample
	Result *streaming.Result
	Err    error
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil && o.Result.Complete
}

func (o Outcome) ErrorKind() string {
	if o.Err == nil {
		if o.Result != nil && !o.Result.Complete {
			return "incomplete"
		}
		return ""
	}
	if kind := streaming.KindOf(o.Err); kind != "" {
		return string(kind)
	}
	var le *loadError
	if errors.As(o.Err, &le) {
		return errorKindLoadFailed
	}
	return errorKindInternal
}

type Summary struct {
	Run      repository.Run
	Outcomes []Outcome
}

func NewEvaluator(cfg *config.Config, seq *pipeline.TaskSequence, repo repository.Repository, loader audio.Loader, runner Runner, dc discord.Client, wh webhook.Sender) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		seq:     seq,
		repo:    repo,
		loader:  loader,
		runner:  runner,
		discord: dc,
		webhook: wh,
		now:     time.Now,
	}
}

// Evaluate runs every sample, persisting one row per attempted utterance. A
// failing utterance never aborts the run; cancellation stops new utterances
// and marks the run canceled.
func (e *Evaluator) Evaluate(ctx context.Context, samples []dataset.Sample) (*Summary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to evaluate")
	}
	persistCtx := context.WithoutCancel(ctx)
	e.closeOrphanRuns(persistCtx)

	run, err := e.repo.CreateRun(persistCtx, repository.CreateRunInput{
		Pipeline:  e.seq.String(),
		ModelType: e.cfg.ModelType,
		Manifest:  e.cfg.DatasetManifest,
		StartedAt: e.now(),
		Total:     len(samples),
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger := slog.With("run_id", run.ID)
	logger.Info("evaluation run started", "pipeline", run.Pipeline, "model_type", run.ModelType, "samples", len(samples), "concurrency", e.cfg.MaxConcurrentSessions)

	outcomes := e.runAll(ctx, run.ID, samples)

	status := repository.RunStatusCompleted
	if ctx.Err() != nil {
		status = repository.RunStatusCanceled
	}
	succeeded, failed := countOutcomes(outcomes)
	endedAt := e.now()
	if err := e.repo.CompleteRun(persistCtx, repository.CompleteRunInput{
		RunID:     run.ID,
		EndedAt:   endedAt,
		Status:    status,
		Succeeded: succeeded,
		Failed:    failed,
	}); err != nil {
		logger.Error("failed to complete run", "error", err)
	}
	run.EndedAt = &endedAt
	run.Status = status
	run.Succeeded = succeeded
	run.Failed = failed
	logger.Info("evaluation run finished", "status", status, "succeeded", succeeded, "failed", failed, "elapsed", endedAt.Sub(run.StartedAt))

	summary := &Summary{Run: *run, Outcomes: outcomes}
	e.deliverReport(persistCtx, summary)
	return summary, nil
}

func (e *Evaluator) runAll(ctx context.Context, runID string, samples []dataset.Sample) []Outcome {
	outcomes := make([]Outcome, len(samples))
	attempted := make([]bool, len(samples))
	limiter := rate.NewLimiter(rate.Limit(e.cfg.SessionStartRate), 1)

	var g errgroup.Group
	g.SetLimit(max(e.cfg.MaxConcurrentSessions, 1))
	for i, sample := range samples {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			attempted[i] = true
			outcomes[i] = e.evaluateOne(ctx, runID, sample)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Outcome, 0, len(samples))
	for i := range samples {
		if attempted[i] {
			out = append(out, outcomes[i])
		}
	}
	return out
}

func (e *Evaluator) evaluateOne(ctx context.Context, runID string, sample dataset.Sample) Outcome {
	logger := slog.With("run_id", runID, "utterance_id", sample.ID)
	outcome := Outcome{Sample: sample}

	utt, err := e.loader.Load(sample.AudioPath)
	if err != nil {
		outcome.Err = &loadError{path: sample.AudioPath, err: err}
		logger.Warn("failed to load utterance", "path", sample.AudioPath, "error", err)
	} else {
		utt.ID = sample.ID
		outcome.Result, outcome.Err = e.runner.Run(ctx, Job{Sample: sample, Utterance: utt})
	}

	if err := e.repo.InsertUtteranceResult(context.WithoutCancel(ctx), utteranceResultInput(runID, outcome)); err != nil {
		logger.Error("failed to save utterance result", "error", err)
	}
	return outcome
}

func (e *Evaluator) closeOrphanRuns(ctx context.Context) {
	runs, err := e.repo.ListRunningRuns(ctx)
	if err != nil {
		slog.Error("failed to list running runs", "error", err)
		return
	}
	for _, run := range runs {
		slog.Warn("found orphan running run; marking interrupted", "run_id", run.ID, "started_at", run.StartedAt)
		if err := e.repo.CompleteRun(ctx, repository.CompleteRunInput{
			RunID:   run.ID,
			EndedAt: e.now(),
			Status:  repository.RunStatusInterrupted,
		}); err != nil {
			slog.Error("failed to close orphan run", "run_id", run.ID, "error", err)
		}
	}
}

func (e *Evaluator) deliverReport(ctx context.Context, summary *Summary) {
	ctx, cancel := context.WithTimeout(ctx, reportDeliveryTimeout)
	defer cancel()

	loc := e.cfg.ReportLocation()
	if e.cfg.DiscordReportChannelID != "" {
		body := buildReportText(summary, e.cfg.ReportTimezone, loc)
		if err := e.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID:   e.cfg.DiscordReportChannelID,
			Content:     reportMessage(summary),
			Filename:    reportFilename(summary.Run.ID),
			ContentType: "text/plain; charset=utf-8",
			FileBody:    body,
		}); err != nil {
			slog.Error("failed to post report to discord", "run_id", summary.Run.ID, "error", err)
		}
	}
	if err := e.webhook.SendReport(ctx, buildReportPayload(summary, e.cfg.ReportTimezone, loc)); err != nil {
		slog.Error("failed to send report webhook", "run_id", summary.Run.ID, "error", err)
	}
}

func utteranceResultInput(runID string, o Outcome) repository.InsertUtteranceResultInput {
	in := repository.InsertUtteranceResultInput{
		RunID:       runID,
		UtteranceID: o.Sample.ID,
		Reference:   o.Sample.Reference,
		ErrorKind:   o.ErrorKind(),
		StagesJSON:  []byte("[]"),
	}
	if o.Err != nil {
		in.ErrorMessage = o.Err.Error()
	}
	if r := o.Result; r != nil {
		in.SessionID = r.SessionID
		in.Hypothesis = hypothesis(r)
		in.Complete = r.Complete
		in.ChunksSent = r.ChunksSent
		in.AudioBytesSent = r.AudioBytesSent
		in.Violations = r.Violations
		in.LatencyMs = r.Elapsed.Milliseconds()
		if b, err := json.Marshal(stageRows(r.Stages)); err == nil {
			in.StagesJSON = b
		}
	}
	return in
}

// stageRow drops synthesized audio; it is too large to keep per utterance.
type stageRow struct {
	Depth    int               `json:"depth"`
	TaskType pipeline.TaskType `json:"taskType"`
	Text     string            `json:"text"`
	Final    bool              `json:"final"`
}

func stageRows(stages []streaming.StageResult) []stageRow {
	rows := make([]stageRow, 0, len(stages))
	for _, st := range stages {
		rows = append(rows, stageRow{Depth: st.Depth, TaskType: st.TaskType, Text: st.Text, Final: st.Final})
	}
	return rows
}

// hypothesis is the text of the deepest stage that produced any.
func hypothesis(r *streaming.Result) string {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Text != "" {
			return r.Stages[i].Text
		}
	}
	return ""
}

func countOutcomes(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

type loadError struct {
	path string
	err  error
}

func (e *loadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.path, e.err)
}

func (e *loadError) Unwrap() error {
	return e.err
}
