package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/streameval/internal/audio"
)

// FileLoader reads utterances from disk as mono PCM16, resampled to
// TargetSampleRate when it is set.
type FileLoader struct {
	TargetSampleRate int
}

func NewFileLoader(targetSampleRate int) audio.Loader {
	return &FileLoader{TargetSampleRate: targetSampleRate}
}

func (l *FileLoader) Load(path string) (audio.Utterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("open audio: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		samples []int16
		rate    int
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		samples, rate, err = audio.DecodeWAV(f)
	case ".opus", ".ogg":
		samples, rate, err = decodeOggOpus(f)
	default:
		return audio.Utterance{}, fmt.Errorf("unsupported audio file extension %q", ext)
	}
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	if l.TargetSampleRate > 0 && rate != l.TargetSampleRate {
		slog.Debug("resampling utterance", "path", path, "from", rate, "to", l.TargetSampleRate)
		samples = audio.Resample(samples, rate, l.TargetSampleRate)
		rate = l.TargetSampleRate
	}
	return audio.Utterance{
		ID:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:       path,
		Samples:    samples,
		SampleRate: rate,
	}, nil
}
