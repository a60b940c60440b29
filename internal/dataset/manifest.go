package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sample is one manifest line: an utterance on disk and its reference text.
type Sample struct {
	ID             string `json:"id"`
	AudioPath      string `json:"audio_path"`
	Reference      string `json:"reference"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

const maxManifestLine = 1 << 20

// LoadManifest reads a JSONL manifest. Relative audio paths resolve against
// the manifest's directory.
func LoadManifest(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseManifest(f, filepath.Dir(path))
}

func ParseManifest(r io.Reader, baseDir string) ([]Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxManifestLine)

	var samples []Sample
	seen := make(map[string]int)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var s Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		if s.AudioPath == "" {
			return nil, fmt.Errorf("manifest line %d: audio_path is required", lineNo)
		}
		if s.ID == "" {
			s.ID = strings.TrimSuffix(filepath.Base(s.AudioPath), filepath.Ext(s.AudioPath))
		}
		if prev, ok := seen[s.ID]; ok {
			return nil, fmt.Errorf("manifest line %d: duplicate id %q (first on line %d)", lineNo, s.ID, prev)
		}
		seen[s.ID] = lineNo
		if !filepath.IsAbs(s.AudioPath) && baseDir != "" {
			s.AudioPath = filepath.Join(baseDir, s.AudioPath)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("manifest has no samples")
	}
	return samples, nil
}
