package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

const responseTypePartial = "partial"

type taskResponse struct {
	TaskType string `json:"taskType"`
	Depth    *int   `json:"depth,omitempty"`
	Output   []struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"output"`
	Audio []struct {
		AudioContent string `json:"audioContent"`
	} `json:"audio"`
}

type responsePayload struct {
	PipelineResponse []taskResponse `json:"pipelineResponse"`
}

type decodedOutput struct {
	depth  int
	output StageOutput
}

// decodeResponse turns the arguments of an inbound response event into
// per-depth outputs. A second string argument of "partial" marks the whole
// event as non-terminal.
func decodeResponse(args []json.RawMessage) ([]decodedOutput, bool, error) {
	if len(args) == 0 {
		return nil, false, errors.New("response event has no payload")
	}
	raw := args[0]
	var stringified string
	if err := json.Unmarshal(raw, &stringified); err == nil {
		raw = json.RawMessage(stringified)
	}
	var payload responsePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false, fmt.Errorf("decode response payload: %w", err)
	}
	if len(payload.PipelineResponse) == 0 {
		return nil, false, errors.New("response payload has no pipelineResponse")
	}

	terminal := true
	if len(args) > 1 {
		var kind string
		if err := json.Unmarshal(args[1], &kind); err == nil && strings.EqualFold(kind, responseTypePartial) {
			terminal = false
		}
	}

	outs := make([]decodedOutput, 0, len(payload.PipelineResponse))
	for i, tr := range payload.PipelineResponse {
		depth := i + 1
		if tr.Depth != nil {
			depth = *tr.Depth
		}
		if tr.Output == nil && tr.Audio == nil {
			return nil, false, fmt.Errorf("pipelineResponse[%d] has neither output nor audio", i)
		}
		texts := make([]string, 0, len(tr.Output))
		for _, o := range tr.Output {
			t := o.Target
			if t == "" {
				t = o.Source
			}
			if t = strings.TrimSpace(t); t != "" {
				texts = append(texts, t)
			}
		}
		var audio string
		if len(tr.Audio) > 0 {
			audio = tr.Audio[0].AudioContent
		}
		outs = append(outs, decodedOutput{
			depth: depth,
			output: StageOutput{
				TaskType:     pipeline.TaskType(strings.ToLower(tr.TaskType)),
				Text:         strings.Join(texts, " "),
				AudioContent: audio,
			},
		})
	}
	return outs, terminal, nil
}
