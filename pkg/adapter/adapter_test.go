package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewMessageEstimatesTokens(t *testing.T) {
	m := NewMessage("claude", RoleAgent, "twelve characters", 1)
	want := len("twelve characters") / 4
	if m.TokenCount != want {
		t.Errorf("expected TokenCount %d, got %d", want, m.TokenCount)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

// fakeAdapter is a minimal Adapter for exercising SendAndWait and
// CheckAllParallel without a real backend.
type fakeAdapter struct {
	name      string
	available bool
	chunks    []string
	err       error
	delay     time.Duration
}

func (f *fakeAdapter) Name() string                               { return f.name }
func (f *fakeAdapter) DisplayName() string                        { return f.name }
func (f *fakeAdapter) Icon() string                                { return "" }
func (f *fakeAdapter) Color() string                               { return "" }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool        { return f.available }
func (f *fakeAdapter) GetVersion(ctx context.Context) string       { return "test" }
func (f *fakeAdapter) HealthCheck(ctx context.Context) Status {
	return Status{Name: f.name, Available: f.available}
}

func (f *fakeAdapter) CheckAvailability(ctx context.Context) bool {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false
		}
	}
	return f.available
}

func (f *fakeAdapter) Send(ctx context.Context, prompt string) <-chan Chunk {
	out := make(chan Chunk, len(f.chunks)+1)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			out <- Chunk{Text: c}
		}
		if f.err != nil {
			out <- Chunk{Err: f.err}
		}
	}()
	return out
}

func TestSendAndWaitConcatenatesChunks(t *testing.T) {
	a := &fakeAdapter{name: "a", chunks: []string{"hello ", "world"}}
	resp, err := SendAndWait(context.Background(), a, "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello world" {
		t.Errorf("expected concatenated content, got %q", resp.Content)
	}
}

func TestSendAndWaitPropagatesChunkError(t *testing.T) {
	a := &fakeAdapter{name: "a", chunks: []string{"partial"}, err: errors.New("stream broke")}
	_, err := SendAndWait(context.Background(), a, "prompt")
	if err == nil {
		t.Fatal("expected error from failing chunk")
	}
}

func TestCheckAllParallelFiltersUnavailable(t *testing.T) {
	adapters := []Adapter{
		&fakeAdapter{name: "up", available: true},
		&fakeAdapter{name: "down", available: false},
	}

	got := CheckAllParallel(context.Background(), adapters, time.Second)
	if len(got) != 1 || got[0].Name() != "up" {
		t.Fatalf("expected only the available adapter, got %v", got)
	}
}

func TestCheckAllParallelRespectsDeadline(t *testing.T) {
	adapters := []Adapter{
		&fakeAdapter{name: "slow", available: true, delay: 50 * time.Millisecond},
	}

	got := CheckAllParallel(context.Background(), adapters, 5*time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("expected slow probe to be abandoned, got %v", got)
	}
}
