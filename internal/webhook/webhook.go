package webhook

import "context"

const RunReportSchemaVersion = "2026-10-01"

type RunReportPayload struct {
	SchemaVersion   string                   `json:"schema_version"`
	RunID           string                   `json:"run_id"`
	Pipeline        string                   `json:"pipeline"`
	ModelType       string                   `json:"model_type"`
	Manifest        string                   `json:"manifest"`
	Status          string                   `json:"status"`
	StartAt         string                   `json:"start_at"`
	EndAt           string                   `json:"end_at"`
	Timezone        string                   `json:"timezone"`
	DurationSeconds int64                    `json:"duration_seconds"`
	Total           int                      `json:"total"`
	Succeeded       int                      `json:"succeeded"`
	Failed          int                      `json:"failed"`
	Results         []UtteranceReportPayload `json:"results"`
}

type UtteranceReportPayload struct {
	UtteranceID string               `json:"utterance_id"`
	SessionID   string               `json:"session_id"`
	Reference   string               `json:"reference"`
	Hypothesis  string               `json:"hypothesis"`
	Stages      []StageReportPayload `json:"stages"`
	Complete    bool                 `json:"complete"`
	ErrorKind   string               `json:"error_kind,omitempty"`
	ChunksSent  int                  `json:"chunks_sent"`
	LatencyMs   int64                `json:"latency_ms"`
}

type StageReportPayload struct {
	Depth    int    `json:"depth"`
	TaskType string `json:"task_type"`
	Text     string `json:"text"`
	Final    bool   `json:"final"`
}

type Sender interface {
	SendReport(ctx context.Context, payload RunReportPayload) error
}
