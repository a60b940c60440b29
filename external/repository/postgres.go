package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/streameval/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateRun(ctx context.Context, input repository.CreateRunInput) (*repository.Run, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO evaluation_runs (pipeline, model_type, manifest, started_at, total, status)
		 VALUES ($1, $2, $3, $4, $5, 'running')
		 RETURNING id, pipeline, model_type, manifest, started_at, ended_at, status, total, succeeded, failed`,
		input.Pipeline, input.ModelType, input.Manifest, input.StartedAt, input.Total)
	var run repository.Run
	var endedAt *time.Time
	err := row.Scan(&run.ID, &run.Pipeline, &run.ModelType, &run.Manifest, &run.StartedAt, &endedAt, &run.Status, &run.Total, &run.Succeeded, &run.Failed)
	if err != nil {
		return nil, err
	}
	run.EndedAt = endedAt
	return &run, nil
}

func (r *PostgresRepository) CompleteRun(ctx context.Context, input repository.CompleteRunInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE evaluation_runs SET status = $2, ended_at = $3, succeeded = $4, failed = $5 WHERE id = $1`,
		input.RunID, string(input.Status), input.EndedAt, input.Succeeded, input.Failed)
	return err
}

func (r *PostgresRepository) ListRunningRuns(ctx context.Context) ([]repository.Run, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, pipeline, model_type, manifest, started_at, ended_at, status, total, succeeded, failed
		 FROM evaluation_runs WHERE status = 'running' ORDER BY started_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Run
	for rows.Next() {
		var run repository.Run
		var endedAt *time.Time
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.ModelType, &run.Manifest, &run.StartedAt, &endedAt, &run.Status, &run.Total, &run.Succeeded, &run.Failed); err != nil {
			return nil, err
		}
		run.EndedAt = endedAt
		list = append(list, run)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) InsertUtteranceResult(ctx context.Context, input repository.InsertUtteranceResultInput) error {
	stages := input.StagesJSON
	if len(stages) == 0 {
		stages = []byte("[]")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO utterance_results (
			run_id, utterance_id, session_id, reference, hypothesis, stages, complete,
			error_kind, error_message, chunks_sent, audio_bytes_sent, violations, latency_ms
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (run_id, utterance_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			hypothesis = EXCLUDED.hypothesis,
			stages = EXCLUDED.stages,
			complete = EXCLUDED.complete,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			chunks_sent = EXCLUDED.chunks_sent,
			audio_bytes_sent = EXCLUDED.audio_bytes_sent,
			violations = EXCLUDED.violations,
			latency_ms = EXCLUDED.latency_ms`,
		input.RunID, input.UtteranceID, input.SessionID, input.Reference, input.Hypothesis, string(stages), input.Complete,
		input.ErrorKind, input.ErrorMessage, input.ChunksSent, input.AudioBytesSent, input.Violations, input.LatencyMs)
	return err
}

func (r *PostgresRepository) ListUtteranceResultsByRunID(ctx context.Context, runID string) ([]repository.UtteranceResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, run_id, utterance_id, session_id, reference, hypothesis, stages::text, complete,
		        error_kind, error_message, chunks_sent, audio_bytes_sent, violations, latency_ms, created_at
		 FROM utterance_results WHERE run_id = $1 ORDER BY utterance_id ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.UtteranceResult
	for rows.Next() {
		var res repository.UtteranceResult
		var stages string
		if err := rows.Scan(&res.ID, &res.RunID, &res.UtteranceID, &res.SessionID, &res.Reference, &res.Hypothesis, &stages, &res.Complete,
			&res.ErrorKind, &res.ErrorMessage, &res.ChunksSent, &res.AudioBytesSent, &res.Violations, &res.LatencyMs, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.StagesJSON = []byte(stages)
		list = append(list, res)
	}
	return list, rows.Err()
}
