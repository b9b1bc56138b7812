package adapters

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/availcache"
)

func TestNewSubprocessAdapterUnknownBackend(t *testing.T) {
	_, err := NewSubprocessAdapter("nonexistent-backend", adapter.DefaultConfig(), availcache.New(time.Minute))
	if err == nil {
		t.Fatal("expected an error for an unregistered backend name")
	}
}

func TestSubprocessAdapterIdentity(t *testing.T) {
	a, err := NewSubprocessAdapter("claude", adapter.DefaultConfig(), availcache.New(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name() != "claude" || a.DisplayName() != "Claude" {
		t.Errorf("unexpected identity: name=%s display=%s", a.Name(), a.DisplayName())
	}
}

func TestSubprocessAdapterUnavailableWhenCommandMissing(t *testing.T) {
	knownSpecs["__test_missing__"] = Spec{
		Name: "__test_missing__", DisplayName: "Missing", Command: "definitely-not-a-real-binary-xyz",
		BuildArgs: func(cfg adapter.Config, prompt string) ([]string, bool) { return nil, false },
	}
	defer delete(knownSpecs, "__test_missing__")

	a, err := NewSubprocessAdapter("__test_missing__", adapter.DefaultConfig(), availcache.New(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.IsAvailable(context.Background()) {
		t.Error("expected adapter to report unavailable for a missing binary")
	}
}

func TestSubprocessAdapterSendUsesEchoBackend(t *testing.T) {
	knownSpecs["__test_echo__"] = Spec{
		Name: "__test_echo__", DisplayName: "Echo", Command: "/bin/echo",
		BuildArgs: func(cfg adapter.Config, prompt string) ([]string, bool) {
			return []string{prompt}, false
		},
	}
	defer delete(knownSpecs, "__test_echo__")

	a, err := NewSubprocessAdapter("__test_echo__", adapter.DefaultConfig(), availcache.New(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sb strings.Builder
	for chunk := range a.Send(context.Background(), "hi there") {
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Text)
	}
	if !strings.Contains(sb.String(), "hi there") {
		t.Errorf("expected echoed prompt in output, got %q", sb.String())
	}
}
