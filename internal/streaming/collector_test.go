package streaming

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

func TestCollector_OutOfOrderArrivalYieldsDepthOrder(t *testing.T) {
	c := NewResponseCollector(newSequence(t, 3))
	for _, d := range []int{3, 1, 2} {
		if err := c.OnResponse(d, StageOutput{Text: string(rune('a' + d - 1))}, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !c.Complete() {
		t.Fatal("expected collector to be complete")
	}
	got := c.Results()
	for i, r := range got {
		if r.Depth != i+1 {
			t.Fatalf("result %d has depth %d", i, r.Depth)
		}
	}
	if got[0].Text != "a" || got[2].TaskType != pipeline.TaskTTS {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestCollector_LatestPayloadWins(t *testing.T) {
	c := NewResponseCollector(newSequence(t, 1))
	_ = c.OnResponse(1, StageOutput{Text: "he"}, false)
	_ = c.OnResponse(1, StageOutput{Text: "hello"}, false)
	if c.Complete() {
		t.Fatal("partial payloads must not complete a depth")
	}
	_ = c.OnResponse(1, StageOutput{Text: "hello world"}, true)
	_ = c.OnResponse(1, StageOutput{Text: "stale partial"}, false)
	if got := c.Results()[0]; got.Text != "hello world" || !got.Final {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestCollector_RejectsOutOfRangeDepth(t *testing.T) {
	c := NewResponseCollector(newSequence(t, 2))
	for _, d := range []int{0, 3, -1} {
		if err := c.OnResponse(d, StageOutput{}, true); !errors.Is(err, ErrDepthOutOfRange) {
			t.Fatalf("depth %d: expected ErrDepthOutOfRange, got %v", d, err)
		}
	}
	if len(c.Results()) != 0 {
		t.Fatal("rejected responses must not be buffered")
	}
}

func TestCollector_IgnoresResponsesAfterTerminate(t *testing.T) {
	c := NewResponseCollector(newSequence(t, 1))
	c.OnTerminate()
	if err := c.OnResponse(1, StageOutput{Text: "late"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Complete() || len(c.Results()) != 0 {
		t.Fatal("responses after terminate must be ignored")
	}
}

func raw(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		out = append(out, json.RawMessage(v))
	}
	return out
}

func TestDecodeResponse(t *testing.T) {
	outs, terminal, err := decodeResponse(raw(`{"pipelineResponse":[
		{"taskType":"asr","output":[{"source":"namaste"},{"source":"duniya"}]},
		{"taskType":"translation","output":[{"source":"namaste duniya","target":"hello world"}]},
		{"taskType":"tts","depth":3,"audio":[{"audioContent":"UklGRg=="}]}
	]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminal {
		t.Fatal("a response without type marker is terminal")
	}
	if len(outs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outs))
	}
	if outs[0].depth != 1 || outs[0].output.Text != "namaste duniya" {
		t.Fatalf("unexpected asr output %+v", outs[0])
	}
	if outs[1].depth != 2 || outs[1].output.Text != "hello world" {
		t.Fatalf("target should win over source: %+v", outs[1])
	}
	if outs[2].depth != 3 || outs[2].output.AudioContent != "UklGRg==" || outs[2].output.TaskType != pipeline.TaskTTS {
		t.Fatalf("unexpected tts output %+v", outs[2])
	}
}

func TestDecodeResponse_PartialAndStringified(t *testing.T) {
	outs, terminal, err := decodeResponse(raw(`"{\"pipelineResponse\":[{\"depth\":2,\"output\":[{\"source\":\"hi\"}]}]}"`, `"partial"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminal {
		t.Fatal("expected partial response")
	}
	if len(outs) != 1 || outs[0].depth != 2 || outs[0].output.Text != "hi" {
		t.Fatalf("unexpected outputs %+v", outs)
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	if _, _, err := decodeResponse(nil); err == nil {
		t.Fatal("expected error for missing payload")
	}
	if _, _, err := decodeResponse(raw(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
	for _, payload := range []string{
		`{}`,
		`{"pipelineResponse":[]}`,
		`{"output":[{"source":"hello"}]}`,
		`{"pipelineResponse":[{"taskType":"asr"}]}`,
		`{"pipelineResponse":[{"taskType":"asr","output":[{"source":"ok"}]},{"taskType":"tts","output":null}]}`,
	} {
		if outs, _, err := decodeResponse(raw(payload)); err == nil {
			t.Fatalf("expected error for %s, got outputs %+v", payload, outs)
		}
	}
}

func TestDecodeResponse_EmptyOutputIsAccepted(t *testing.T) {
	outs, _, err := decodeResponse(raw(`{"pipelineResponse":[{"taskType":"asr","output":[]}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 || outs[0].output.Text != "" {
		t.Fatalf("unexpected outputs %+v", outs)
	}
}
