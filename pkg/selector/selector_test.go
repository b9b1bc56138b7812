package selector

import (
	"context"
	"testing"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/task"
)

type fakeAdapter struct {
	name, displayName string
}

func (f fakeAdapter) Name() string        { return f.name }
func (f fakeAdapter) DisplayName() string { return f.displayName }
func (f fakeAdapter) Icon() string        { return "" }
func (f fakeAdapter) Color() string       { return "" }
func (f fakeAdapter) IsAvailable(ctx context.Context) bool { return true }
func (f fakeAdapter) CheckAvailability(ctx context.Context) bool { return true }
func (f fakeAdapter) GetVersion(ctx context.Context) string { return "1.0" }
func (f fakeAdapter) Send(ctx context.Context, prompt string) <-chan adapter.Chunk {
	ch := make(chan adapter.Chunk)
	close(ch)
	return ch
}
func (f fakeAdapter) HealthCheck(ctx context.Context) adapter.Status {
	return adapter.Status{Name: f.name, DisplayName: f.displayName, Available: true}
}

func newFake(name string) adapter.Adapter {
	return fakeAdapter{name: name, displayName: name}
}

func TestSelectSimpleChatPrefersReasoningAdapter(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("codex"), newFake("claude"), newFake("gemini")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindSimpleChat}, available)

	if len(got) != 1 || got[0].Name() != "claude" {
		t.Fatalf("expected [claude], got %+v", got)
	}
}

func TestSelectSimpleChatFallsBackToFirstAvailable(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("codex"), newFake("gemini")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindSimpleChat}, available)

	if len(got) != 1 || got[0].Name() != "codex" {
		t.Fatalf("expected fallback to first available, got %+v", got)
	}
}

func TestSelectLowComplexityIsSingleAdapter(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("codex"), newFake("claude")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.2}, available)

	if len(got) != 1 {
		t.Fatalf("expected a single adapter for low complexity, got %+v", got)
	}
}

func TestSelectComplexTaskUsesBaseSetOrder(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("gemini"), newFake("codex"), newFake("claude")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.8, SuggestedAICount: 3}, available)

	if len(got) != 3 {
		t.Fatalf("expected all 3 base-set adapters, got %+v", got)
	}
	if got[0].Name() != "claude" || got[1].Name() != "codex" || got[2].Name() != "gemini" {
		t.Errorf("expected fixed base-set order claude,codex,gemini, got %v,%v,%v", got[0].Name(), got[1].Name(), got[2].Name())
	}
}

func TestSelectOmitsUnavailableBaseSetMembers(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("claude")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.8}, available)

	if len(got) != 1 || got[0].Name() != "claude" {
		t.Fatalf("expected only the available base-set member, got %+v", got)
	}
}

func TestSelectAttachesLocalInstancesByComplexity(t *testing.T) {
	var built []LocalProfile
	factory := func(p LocalProfile) adapter.Adapter {
		built = append(built, p)
		return newFake(p.Name)
	}
	s := New(factory)
	available := []adapter.Adapter{newFake("claude"), newFake("ollama")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.85}, available)

	if len(built) != 3 {
		t.Fatalf("expected 3 local instances for complexity > 0.7, got %d", len(built))
	}
	if len(got) != 1+3 {
		t.Fatalf("expected claude + 3 local instances, got %d adapters", len(got))
	}
}

func TestSelectSkipsLocalInstancesWhenBackendUnavailable(t *testing.T) {
	factory := func(p LocalProfile) adapter.Adapter { return newFake(p.Name) }
	s := New(factory)
	available := []adapter.Adapter{newFake("claude")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.85}, available)

	if len(got) != 1 {
		t.Fatalf("expected no local instances without the local backend present, got %+v", got)
	}
}

func TestSelectGuaranteesResearchAdapterWhenAICountAtLeast3(t *testing.T) {
	s := New(nil)
	available := []adapter.Adapter{newFake("claude"), newFake("gemini")}

	got := s.Select(context.Background(), task.Task{Kind: task.KindAnalysis, Complexity: 0.5, SuggestedAICount: 3}, available)

	found := false
	for _, a := range got {
		if a.Name() == "gemini" {
			found = true
		}
	}
	if !found {
		t.Error("expected research-oriented adapter gemini to be present when suggestedAiCount >= 3")
	}
}

func TestScoreAdaptersRanksByKindSpecialty(t *testing.T) {
	scores := ScoreAdapters(task.Task{Kind: task.KindCode, RequiresCode: true}, []adapter.Adapter{newFake("codex"), newFake("gemini")})

	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].Adapter.Name() != "codex" {
		t.Errorf("expected codex to outrank gemini on a code task with RequiresCode, got %v first", scores[0].Adapter.Name())
	}
	for _, s := range scores {
		if s.Value < 0 || s.Value > 1 {
			t.Errorf("score out of bounds: %v", s.Value)
		}
	}
}

func TestExplainListsSelectedAdapters(t *testing.T) {
	out := Explain(task.Task{Kind: task.KindDesign}, []adapter.Adapter{newFake("claude")})
	if out == "" {
		t.Fatal("expected non-empty explanation")
	}
}

func TestSelectEmptyAvailableReturnsNil(t *testing.T) {
	s := New(nil)
	got := s.Select(context.Background(), task.Task{Kind: task.KindCode, Complexity: 0.8}, nil)
	if got != nil {
		t.Errorf("expected nil for no available adapters, got %+v", got)
	}
}
