package evaluation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foxseedlab/streameval/internal/streaming"
)

type runnerFunc func(ctx context.Context, job Job) (*streaming.Result, error)

func (f runnerFunc) Run(ctx context.Context, job Job) (*streaming.Result, error) {
	return f(ctx, job)
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	registry := NewRegistry()
	called := false
	if err := registry.Register("echo", func() (Runner, error) {
		called = true
		return runnerFunc(func(context.Context, Job) (*streaming.Result, error) { return &streaming.Result{}, nil }), nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if called {
		t.Fatal("factory must not run at registration")
	}
	if _, err := registry.New("echo"); err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if !called {
		t.Fatal("factory was not invoked")
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	registry := NewRegistry()
	factory := func() (Runner, error) { return nil, nil }
	if err := registry.Register("streaming", factory); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register("streaming", factory); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := registry.Register("", factory); err == nil {
		t.Fatal("expected empty name to fail")
	}
}

func TestRegistry_UnknownListsRegistered(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"streaming", "cloud-speech"} {
		if err := registry.Register(name, func() (Runner, error) { return nil, nil }); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	_, err := registry.New("whisper")
	if err == nil {
		t.Fatal("expected unknown runner error")
	}
	if !strings.Contains(err.Error(), "cloud-speech streaming") {
		t.Fatalf("expected sorted names in error, got %v", err)
	}
}

func TestRegistry_FactoryErrorWrapped(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("missing credentials")
	if err := registry.Register("cloud-speech", func() (Runner, error) { return nil, boom }); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := registry.New("cloud-speech"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
}
