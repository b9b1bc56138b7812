package sharedcontext

import (
	"strings"
	"testing"
)

func TestAppendTracksRoundAndCounts(t *testing.T) {
	c := New("what should we build?", 8000, 5)

	c.Append("claude", "I think we should start with the schema.", 1)
	c.Append("codex", "- design the schema\n- write the migration", 1)

	if c.CurrentRound() != 1 {
		t.Fatalf("expected current round 1, got %d", c.CurrentRound())
	}
	if len(c.MessagesForRound(1)) != 2 {
		t.Fatalf("expected 2 messages in round 1")
	}
}

func TestExtractKeyPointsFromBulletsAndDigits(t *testing.T) {
	c := New("plan", 8000, 5)
	c.Append("claude", "1. first step\n- second step\n* third step\n• fourth step\nnot a bullet", 1)

	summary := c.Summarize()
	if summary.KeyPointCount != 4 {
		t.Fatalf("expected 4 key points, got %d", summary.KeyPointCount)
	}
}

func TestKeyPointsAreDeduplicated(t *testing.T) {
	c := New("plan", 8000, 5)
	c.Append("claude", "- same point", 1)
	c.Append("codex", "- same point", 1)

	if c.Summarize().KeyPointCount != 1 {
		t.Fatalf("expected deduplicated key points, got %d", c.Summarize().KeyPointCount)
	}
}

func TestKeyPointsAreBoundedAt20(t *testing.T) {
	c := New("plan", 8000, 5)
	for i := 0; i < 25; i++ {
		c.Append("claude", "- point number "+string(rune('a'+i)), i)
	}
	if c.Summarize().KeyPointCount > 20 {
		t.Fatalf("expected at most 20 key points, got %d", c.Summarize().KeyPointCount)
	}
}

func TestBuildPromptFirstRoundHasNoHistory(t *testing.T) {
	c := New("explain goroutines", 8000, 5)
	prompt := c.BuildPrompt("claude", true)

	if !strings.Contains(prompt, "USER'S QUESTION: explain goroutines") {
		t.Error("expected the original question verbatim in the prompt")
	}
	if !strings.Contains(prompt, "first round") {
		t.Error("expected the first-round cue")
	}
	if strings.Contains(prompt, "DISCUSSION SO FAR") {
		t.Error("first-round prompt should not include discussion history")
	}
}

func TestBuildPromptLaterRoundIncludesHistoryAndKeyPoints(t *testing.T) {
	c := New("design a cache", 8000, 5)
	c.Append("claude", "- use an LRU eviction policy", 1)
	c.Append("codex", "I agree with the LRU approach.", 1)

	prompt := c.BuildPrompt("gemini", false)

	if !strings.Contains(prompt, "[CLAUDE]") || !strings.Contains(prompt, "[CODEX]") {
		t.Error("expected bracketed uppercase sender prefixes")
	}
	if !strings.Contains(prompt, "KEY POINTS IDENTIFIED") {
		t.Error("expected key points section")
	}
	if !strings.Contains(prompt, "your turn (gemini)") {
		t.Error("expected closing cue naming the current adapter")
	}
}

func TestAddKeyPointTruncatesWithNoSuffix(t *testing.T) {
	c := New("q", 8000, 5)
	long := strings.Repeat("x", 150)
	c.AddKeyPoint(long)

	points := c.KeyPoints()
	if len(points) != 1 {
		t.Fatalf("expected 1 key point, got %d", len(points))
	}
	if got := []rune(points[0]); len(got) != 100 {
		t.Errorf("expected key point truncated to 100 runes, got %d", len(got))
	}
	if strings.Contains(points[0], "...") {
		t.Errorf("expected no ellipsis suffix on a truncated key point, got %q", points[0])
	}
}

func TestSummarizeTruncatesOriginalPromptWithNoSuffix(t *testing.T) {
	long := strings.Repeat("y", 150)
	c := New(long, 8000, 5)

	got := c.Summarize().OriginalPrompt
	if r := []rune(got); len(r) != 100 {
		t.Errorf("expected original prompt truncated to 100 runes, got %d", len(r))
	}
	if strings.Contains(got, "...") {
		t.Errorf("expected no ellipsis suffix on the truncated original prompt, got %q", got)
	}
}

func TestBuildPromptTruncatesLongMessages(t *testing.T) {
	c := New("q", 8000, 5)
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	c.Append("claude", string(long), 1)

	prompt := c.BuildPrompt("codex", false)
	if !strings.Contains(prompt, "...") {
		t.Error("expected an ellipsis marking truncation of a >500-char message")
	}
}

func TestBuildPromptDoesNotMutateContext(t *testing.T) {
	c := New("q", 8000, 5)
	c.Append("claude", "- a point", 1)

	before := c.Summarize()
	c.BuildPrompt("codex", false)
	after := c.Summarize()

	if before.TotalMessages != after.TotalMessages || before.KeyPointCount != after.KeyPointCount {
		t.Error("expected BuildPrompt to leave the context unmutated")
	}
}

func TestTailForBudgetRespectsHalfTokenBudget(t *testing.T) {
	c := New("q", 40, 5) // budget/2 == 20 tokens == ~80 chars
	c.Append("claude", repeat("a", 200), 1) // ~50 tokens, alone exceeds budget
	c.Append("codex", repeat("b", 20), 2)   // ~5 tokens

	tail := c.tailForBudget()
	if len(tail) != 1 || tail[0].SenderID != "codex" {
		t.Fatalf("expected only the most recent message to fit the budget, got %+v", tail)
	}
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
