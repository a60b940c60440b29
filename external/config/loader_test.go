package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("PIPELINE_FILE", "pipeline.yaml")
	t.Setenv("DATASET_MANIFEST", "manifest.jsonl")
	t.Setenv("DATABASE_URL", "postgres://localhost/streameval")
	t.Setenv("GATEWAY_SOCKET_URL", "wss://gateway.example.com")
	t.Setenv("GATEWAY_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelType != "streaming" || cfg.ChunkDurationMs != 2000 || cfg.SessionTimeoutSec != 60 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.GatewaySocketPath != "/socket.io/" || cfg.ReportTimezone != "UTC" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("PIPELINE_FILE", "")
	t.Setenv("DATASET_MANIFEST", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when required variables are missing")
	}
}

func TestLoadPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := `stages:
  - taskType: asr
    config:
      language:
        sourceLanguage: hi
      samplingRate: 16000
      audioFormat: wav
  - taskType: Translation
    config:
      language:
        sourceLanguage: hi
        targetLanguage: en
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	seq, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.Len() != 2 || seq.String() != "asr+translation" {
		t.Fatalf("unexpected sequence %s", seq)
	}
	if seq.SamplingRate() != 16000 {
		t.Fatalf("expected sampling rate 16000, got %d", seq.SamplingRate())
	}
}

func TestParsePipeline_EmptyIsConfigError(t *testing.T) {
	_, err := ParsePipeline([]byte("stages: []\n"))
	var cfgErr *pipeline.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestParsePipeline_UnsupportedAudioFormatIsConfigError(t *testing.T) {
	body := "stages:\n  - taskType: asr\n    config:\n      audioFormat: flac\n"
	_, err := ParsePipeline([]byte(body))
	var cfgErr *pipeline.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestParsePipeline_UnknownField(t *testing.T) {
	if _, err := ParsePipeline([]byte("stage:\n  - taskType: asr\n")); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}
