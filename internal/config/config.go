package config

import (
	"fmt"
	"time"
)

const (
	ModelTypeStreaming   = "streaming"
	ModelTypeCloudSpeech = "cloud-speech"
)

type Config struct {
	Env                        string
	ModelType                  string
	GatewaySocketURL           string
	GatewaySocketPath          string
	GatewayAPIKey              string
	PipelineFile               string
	DatasetManifest            string
	ChunkDurationMs            int
	SessionTimeoutSec          int
	WriteTimeoutMs             int
	ConnectTimeoutSec          int
	MaxConcurrentSessions      int
	SessionStartRate           float64
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	DiscordToken               string
	DiscordReportChannelID     string
	ReportWebhookURL           string
	ReportTimezone             string
	MetricsAddr                string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.ModelType {
	case ModelTypeStreaming:
		if c.GatewaySocketURL == "" {
			return fmt.Errorf("GATEWAY_SOCKET_URL is required when MODEL_TYPE=%s", ModelTypeStreaming)
		}
		if c.GatewayAPIKey == "" {
			return fmt.Errorf("GATEWAY_API_KEY is required when MODEL_TYPE=%s", ModelTypeStreaming)
		}
	case ModelTypeCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when MODEL_TYPE=%s", ModelTypeCloudSpeech)
		}
	default:
		return fmt.Errorf("MODEL_TYPE must be %q or %q, got %q", ModelTypeStreaming, ModelTypeCloudSpeech, c.ModelType)
	}
	if (c.DiscordToken == "") != (c.DiscordReportChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_REPORT_CHANNEL_ID must be set together")
	}
	for _, p := range c.positiveFieldChecks() {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.SessionStartRate <= 0 {
		return fmt.Errorf("SESSION_START_RATE must be positive, got %v", c.SessionStartRate)
	}
	if c.ReportTimezone == "" {
		return fmt.Errorf("REPORT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "PIPELINE_FILE", value: c.PipelineFile},
		{name: "DATASET_MANIFEST", value: c.DatasetManifest},
		{name: "DATABASE_URL", value: c.DatabaseURL},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "CHUNK_DURATION_MS", value: c.ChunkDurationMs},
		{name: "SESSION_TIMEOUT_SEC", value: c.SessionTimeoutSec},
		{name: "WRITE_TIMEOUT_MS", value: c.WriteTimeoutMs},
		{name: "CONNECT_TIMEOUT_SEC", value: c.ConnectTimeoutSec},
		{name: "MAX_CONCURRENT_SESSIONS", value: c.MaxConcurrentSessions},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

func (c *Config) ReportLocation() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
