package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/foxseedlab/streameval/internal/audio"
)

func writeWAV(t *testing.T, dir, name string, samples []int16, rate int) string {
	t.Helper()
	b, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFileLoader_LoadsWAV(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "clip-1.wav", []int16{1, 2, 3, 4}, 16000)

	utt, err := NewFileLoader(16000).Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utt.ID != "clip-1" || utt.SampleRate != 16000 || len(utt.Samples) != 4 {
		t.Fatalf("unexpected utterance %+v", utt)
	}
}

func TestFileLoader_ResamplesToTarget(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "clip.wav", make([]int16, 8000), 8000)

	utt, err := NewFileLoader(16000).Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utt.SampleRate != 16000 || len(utt.Samples) != 16000 {
		t.Fatalf("expected 1s at 16 kHz, got %d samples at %d Hz", len(utt.Samples), utt.SampleRate)
	}
}

func TestFileLoader_RejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewFileLoader(0).Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestFileLoader_MissingFile(t *testing.T) {
	if _, err := NewFileLoader(0).Load(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
