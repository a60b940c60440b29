package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type TaskType string

const (
	TaskASR         TaskType = "asr"
	TaskTranslation TaskType = "translation"
	TaskTTS         TaskType = "tts"
)

const (
	AudioFormatWAV = "wav"
	AudioFormatPCM = "pcm"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskASR, TaskTranslation, TaskTTS:
		return true
	default:
		return false
	}
}

type Stage struct {
	TaskType TaskType
	Config   map[string]any
}

type ConfigError struct {
	Stage  int
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Stage < 0 {
		return "invalid task sequence: " + e.Reason
	}
	return fmt.Sprintf("invalid task sequence: stage %d: %s", e.Stage+1, e.Reason)
}

// TaskSequence is the ordered list of stages negotiated once per session.
// Stage order is both the execution dependency and the response depth.
type TaskSequence struct {
	stages []Stage
}

func NewTaskSequence(stages []Stage) (*TaskSequence, error) {
	if len(stages) == 0 {
		return nil, &ConfigError{Stage: -1, Reason: "at least one stage is required"}
	}
	copied := make([]Stage, 0, len(stages))
	for i, st := range stages {
		taskType := TaskType(strings.ToLower(strings.TrimSpace(string(st.TaskType))))
		if !taskType.Valid() {
			return nil, &ConfigError{Stage: i, Reason: fmt.Sprintf("unrecognized task type %q", st.TaskType)}
		}
		copied = append(copied, Stage{TaskType: taskType, Config: cloneMap(st.Config)})
	}
	if err := validateAudioFormat(copied[0].Config); err != nil {
		return nil, err
	}
	return &TaskSequence{stages: copied}, nil
}

// The first stage consumes the streamed audio, so its format must be one the
// chunk encoder can produce.
func validateAudioFormat(cfg map[string]any) error {
	raw, ok := cfg["audioFormat"]
	if !ok || raw == nil {
		return nil
	}
	v, ok := raw.(string)
	if !ok {
		return &ConfigError{Stage: 0, Reason: fmt.Sprintf("audioFormat must be a string, got %T", raw)}
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", AudioFormatWAV, AudioFormatPCM:
		return nil
	default:
		return &ConfigError{Stage: 0, Reason: fmt.Sprintf("unsupported audioFormat %q", v)}
	}
}

func (s *TaskSequence) Len() int {
	return len(s.stages)
}

// IntermediateResponseDepth is the number of stage outputs the gateway sends
// back over the wire, the final stage included.
func (s *TaskSequence) IntermediateResponseDepth() int {
	return len(s.stages)
}

func (s *TaskSequence) Stages() []Stage {
	out := make([]Stage, 0, len(s.stages))
	for _, st := range s.stages {
		out = append(out, Stage{TaskType: st.TaskType, Config: cloneMap(st.Config)})
	}
	return out
}

// StageAt returns the stage for a 1-based depth.
func (s *TaskSequence) StageAt(depth int) (Stage, bool) {
	if depth < 1 || depth > len(s.stages) {
		return Stage{}, false
	}
	st := s.stages[depth-1]
	return Stage{TaskType: st.TaskType, Config: cloneMap(st.Config)}, true
}

func (s *TaskSequence) AudioFormat() string {
	v, ok := s.stages[0].Config["audioFormat"].(string)
	if !ok || v == "" {
		return AudioFormatWAV
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func (s *TaskSequence) SamplingRate() int {
	switch v := s.stages[0].Config["samplingRate"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func (s *TaskSequence) String() string {
	names := make([]string, 0, len(s.stages))
	for _, st := range s.stages {
		names = append(names, string(st.TaskType))
	}
	return strings.Join(names, "+")
}

type stageDescriptor struct {
	TaskType TaskType       `json:"taskType"`
	Config   map[string]any `json:"config"`
}

func (s *TaskSequence) MarshalJSON() ([]byte, error) {
	out := make([]stageDescriptor, 0, len(s.stages))
	for _, st := range s.stages {
		cfg := st.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		out = append(out, stageDescriptor{TaskType: st.TaskType, Config: cfg})
	}
	return json.Marshal(out)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// SourceLanguage is the language the first stage listens for.
func (s *TaskSequence) SourceLanguage() string {
	return stageLanguage(s.stages[0].Config, "sourceLanguage")
}

// WithLanguages returns a copy with the language pair applied to every stage.
// Translation takes both; TTS speaks the target. Empty values leave the
// configured language untouched.
func (s *TaskSequence) WithLanguages(source, target string) *TaskSequence {
	out := &TaskSequence{stages: s.Stages()}
	spoken := source
	for i := range out.stages {
		st := &out.stages[i]
		switch st.TaskType {
		case TaskASR:
			setStageLanguage(st, "sourceLanguage", source)
		case TaskTranslation:
			setStageLanguage(st, "sourceLanguage", spoken)
			setStageLanguage(st, "targetLanguage", target)
			if target != "" {
				spoken = target
			}
		case TaskTTS:
			setStageLanguage(st, "sourceLanguage", spoken)
		}
	}
	return out
}

func stageLanguage(cfg map[string]any, key string) string {
	lang, ok := cfg["language"].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := lang[key].(string)
	return v
}

func setStageLanguage(st *Stage, key, value string) {
	if value == "" {
		return
	}
	if st.Config == nil {
		st.Config = map[string]any{}
	}
	lang, ok := st.Config["language"].(map[string]any)
	if !ok {
		lang = map[string]any{}
		st.Config["language"] = lang
	}
	lang[key] = value
}
