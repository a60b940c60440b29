package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/streameval/internal/config"
)

type envConfig struct {
	Env                        string  `env:"ENV" envDefault:"production"`
	ModelType                  string  `env:"MODEL_TYPE" envDefault:"streaming"`
	GatewaySocketURL           string  `env:"GATEWAY_SOCKET_URL"`
	GatewaySocketPath          string  `env:"GATEWAY_SOCKET_PATH" envDefault:"/socket.io/"`
	GatewayAPIKey              string  `env:"GATEWAY_API_KEY"`
	PipelineFile               string  `env:"PIPELINE_FILE,required"`
	DatasetManifest            string  `env:"DATASET_MANIFEST,required"`
	ChunkDurationMs            int     `env:"CHUNK_DURATION_MS" envDefault:"2000"`
	SessionTimeoutSec          int     `env:"SESSION_TIMEOUT_SEC" envDefault:"60"`
	WriteTimeoutMs             int     `env:"WRITE_TIMEOUT_MS" envDefault:"5000"`
	ConnectTimeoutSec          int     `env:"CONNECT_TIMEOUT_SEC" envDefault:"15"`
	MaxConcurrentSessions      int     `env:"MAX_CONCURRENT_SESSIONS" envDefault:"1"`
	SessionStartRate           float64 `env:"SESSION_START_RATE" envDefault:"1"`
	DatabaseURL                string  `env:"DATABASE_URL,required"`
	GoogleCloudProjectID       string  `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string  `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string  `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string  `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	DiscordToken               string  `env:"DISCORD_TOKEN"`
	DiscordReportChannelID     string  `env:"DISCORD_REPORT_CHANNEL_ID"`
	ReportWebhookURL           string  `env:"REPORT_WEBHOOK_URL"`
	ReportTimezone             string  `env:"REPORT_TIMEZONE" envDefault:"UTC"`
	MetricsAddr                string  `env:"METRICS_ADDR"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ModelType:                  raw.ModelType,
		GatewaySocketURL:           raw.GatewaySocketURL,
		GatewaySocketPath:          raw.GatewaySocketPath,
		GatewayAPIKey:              raw.GatewayAPIKey,
		PipelineFile:               raw.PipelineFile,
		DatasetManifest:            raw.DatasetManifest,
		ChunkDurationMs:            raw.ChunkDurationMs,
		SessionTimeoutSec:          raw.SessionTimeoutSec,
		WriteTimeoutMs:             raw.WriteTimeoutMs,
		ConnectTimeoutSec:          raw.ConnectTimeoutSec,
		MaxConcurrentSessions:      raw.MaxConcurrentSessions,
		SessionStartRate:           raw.SessionStartRate,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DiscordToken:               raw.DiscordToken,
		DiscordReportChannelID:     raw.DiscordReportChannelID,
		ReportWebhookURL:           raw.ReportWebhookURL,
		ReportTimezone:             raw.ReportTimezone,
		MetricsAddr:                raw.MetricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
