package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE run_status AS ENUM ('running', 'completed', 'canceled', 'interrupted'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS evaluation_runs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		pipeline TEXT NOT NULL,
		model_type TEXT NOT NULL,
		manifest TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status run_status NOT NULL DEFAULT 'running',
		total INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_runs_running ON evaluation_runs (started_at) WHERE status = 'running'`,
	`CREATE TABLE IF NOT EXISTS utterance_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		run_id UUID NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
		utterance_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		hypothesis TEXT NOT NULL DEFAULT '',
		stages JSONB NOT NULL DEFAULT '[]'::jsonb,
		complete BOOLEAN NOT NULL DEFAULT FALSE,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		chunks_sent INTEGER NOT NULL DEFAULT 0,
		audio_bytes_sent INTEGER NOT NULL DEFAULT 0,
		violations INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(run_id, utterance_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_utterance_results_run ON utterance_results (run_id, utterance_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}
