package repository

import "time"

type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusCanceled    RunStatus = "canceled"
	RunStatusInterrupted RunStatus = "interrupted"
)

type Run struct {
	ID        string
	Pipeline  string
	ModelType string
	Manifest  string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    RunStatus
	Total     int
	Succeeded int
	Failed    int
}

type UtteranceResult struct {
	ID             string
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
	CreatedAt      time.Time
}
