package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/foxseedlab/streameval/internal/transport"
)

type emittedEvent struct {
	name string
	args []any
}

func (e emittedEvent) isAudio() bool {
	return e.name == transport.EventData && e.args[0] != nil
}

func (e emittedEvent) isEndOfStream(inactive bool) bool {
	if e.name != transport.EventData || e.args[0] != nil {
		return false
	}
	clearState, _ := e.args[2].(bool)
	flag, _ := e.args[3].(bool)
	return clearState && flag == inactive
}

// fakeTransport records emits and lets a test script server behaviour from
// inside Emit. It is driven by a single session goroutine.
type fakeTransport struct {
	mu           sync.Mutex
	connectErr   error
	blockConnect bool
	failDataAt   int
	emitted      []emittedEvent
	dataCount    int
	closed       int
	connected    bool
	events       chan transport.Event
	onEmit       func(f *fakeTransport, ev emittedEvent)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 64)}
}

func (f *fakeTransport) Connect(ctx context.Context, url, authToken string) error {
	if f.blockConnect {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", transport.ErrConnectFailed, ctx.Err())
	}
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Emit(event string, args ...any) error {
	ev := emittedEvent{name: event, args: args}
	f.mu.Lock()
	if event == transport.EventData {
		f.dataCount++
		if f.failDataAt > 0 && f.dataCount == f.failDataAt {
			f.mu.Unlock()
			return errors.New("write: broken pipe")
		}
	}
	f.emitted = append(f.emitted, ev)
	hook := f.onEmit
	f.mu.Unlock()
	if hook != nil {
		hook(f, ev)
	}
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) push(name string, args ...string) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		raw = append(raw, json.RawMessage(a))
	}
	f.events <- transport.Event{Name: name, Args: raw}
}

func (f *fakeTransport) snapshot() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emittedEvent(nil), f.emitted...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// stageReply is one element of a pipelineResponse.
type stageReply struct {
	depth int
	text  string
}

func responseArgs(partial bool, replies ...stageReply) []string {
	parts := make([]string, 0, len(replies))
	for _, r := range replies {
		parts = append(parts, fmt.Sprintf(`{"taskType":"","depth":%d,"output":[{"source":%q}]}`, r.depth, r.text))
	}
	payload := `{"pipelineResponse":[` + strings.Join(parts, ",") + `]}`
	if partial {
		return []string{payload, `"partial"`}
	}
	return []string{payload, `"final"`}
}

type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

func newSequence(t fatalHelper, n int) *pipeline.TaskSequence {
	t.Helper()
	all := []pipeline.Stage{
		pipeline.ASRStage(pipeline.ASROptions{SourceLanguage: "hi", SamplingRate: 1000}),
		pipeline.TranslationStage(pipeline.TranslationOptions{SourceLanguage: "hi", TargetLanguage: "en"}),
		pipeline.TTSStage(pipeline.TTSOptions{SourceLanguage: "en"}),
	}
	seq, err := pipeline.NewTaskSequence(all[:n])
	if err != nil {
		t.Fatalf("build sequence: %v", err)
	}
	return seq
}
