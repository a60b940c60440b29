package streaming

import (
	"errors"
	"fmt"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

var ErrDepthOutOfRange = errors.New("response depth out of range")

type StageOutput struct {
	TaskType     pipeline.TaskType
	Text         string
	AudioContent string
}

type StageResult struct {
	Depth        int               `json:"depth"`
	TaskType     pipeline.TaskType `json:"taskType"`
	Text         string            `json:"text,omitempty"`
	AudioContent string            `json:"audioContent,omitempty"`
	Final        bool              `json:"final"`
}

type pendingResponse struct {
	output StageOutput
	seen   bool
	final  bool
}

// ResponseCollector buffers stage outputs by depth until every depth has a
// terminal payload. It is owned by a single session goroutine.
type ResponseCollector struct {
	seq        *pipeline.TaskSequence
	pending    []pendingResponse
	terminated bool
}

func NewResponseCollector(seq *pipeline.TaskSequence) *ResponseCollector {
	return &ResponseCollector{
		seq:     seq,
		pending: make([]pendingResponse, seq.IntermediateResponseDepth()),
	}
}

// OnResponse records a payload for a 1-based depth. The latest payload wins,
// except that a partial never replaces a depth that is already final.
func (c *ResponseCollector) OnResponse(depth int, out StageOutput, terminal bool) error {
	if c.terminated {
		return nil
	}
	if depth < 1 || depth > len(c.pending) {
		return fmt.Errorf("%w: got %d, expected 1..%d", ErrDepthOutOfRange, depth, len(c.pending))
	}
	p := &c.pending[depth-1]
	if p.final && !terminal {
		return nil
	}
	if out.TaskType == "" {
		if st, ok := c.seq.StageAt(depth); ok {
			out.TaskType = st.TaskType
		}
	}
	p.output = out
	p.seen = true
	p.final = p.final || terminal
	return nil
}

func (c *ResponseCollector) OnTerminate() {
	c.terminated = true
}

func (c *ResponseCollector) Complete() bool {
	for _, p := range c.pending {
		if !p.final {
			return false
		}
	}
	return true
}

// Results returns every depth that received a payload, in depth order.
func (c *ResponseCollector) Results() []StageResult {
	out := make([]StageResult, 0, len(c.pending))
	for i, p := range c.pending {
		if !p.seen {
			continue
		}
		out = append(out, StageResult{
			Depth:        i + 1,
			TaskType:     p.output.TaskType,
			Text:         p.output.Text,
			AudioContent: p.output.AudioContent,
			Final:        p.final,
		})
	}
	return out
}
