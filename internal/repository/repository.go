package repository

import (
	"context"
	"time"
)

type CreateRunInput struct {
	Pipeline  string
	ModelType string
	Manifest  string
	StartedAt time.Time
	Total     int
}

type CompleteRunInput struct {
	RunID     string
	EndedAt   time.Time
	Status    RunStatus
	Succeeded int
	Failed    int
}

type InsertUtteranceResultInput struct {
	RunID          string
	UtteranceID    string
	SessionID      string
	Reference      string
	Hypothesis     string
	StagesJSON     []byte
	Complete       bool
	ErrorKind      string
	ErrorMessage   string
	ChunksSent     int
	AudioBytesSent int
	Violations     int
	LatencyMs      int64
}

type RunRepository interface {
	CreateRun(ctx context.Context, input CreateRunInput) (*Run, error)
	CompleteRun(ctx context.Context, input CompleteRunInput) error
	ListRunningRuns(ctx context.Context) ([]Run, error)
}

type ResultRepository interface {
	InsertUtteranceResult(ctx context.Context, input InsertUtteranceResultInput) error
	ListUtteranceResultsByRunID(ctx context.Context, runID string) ([]UtteranceResult, error)
}

type Repository interface {
	RunRepository
	ResultRepository
}
