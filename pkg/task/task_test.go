package task

import "testing"

func TestAnalyzeEmptyPromptIsSimpleChat(t *testing.T) {
	got := Analyze("")
	if got.Kind != KindSimpleChat {
		t.Fatalf("expected SimpleChat, got %v", got.Kind)
	}
	if got.Complexity != 0.1 {
		t.Errorf("expected complexity 0.1, got %v", got.Complexity)
	}
}

func TestAnalyzeShortPromptIsSimpleChat(t *testing.T) {
	// Exactly 15 characters, no technical cue.
	got := Analyze("hello there pal")
	if got.Kind != KindSimpleChat {
		t.Fatalf("expected SimpleChat for a 15-char prompt, got %v", got.Kind)
	}
}

func TestAnalyzeSimpleChatCueWithTechnicalCueIsNotSimpleChat(t *testing.T) {
	// Contains both a simple-chat cue ("hi") and a technical cue ("bug");
	// the technical cue must gate the simple-chat match (spec §4.5.2).
	got := Analyze("hi, fix bug please!!")
	if got.Kind == KindSimpleChat {
		t.Fatalf("expected not SimpleChat when a technical cue is present, got %v", got.Kind)
	}
}

func TestAnalyzeDesignRequestInKorean(t *testing.T) {
	got := Analyze("대규모 엔터프라이즈 마이크로서비스 아키텍처를 설계해줘")

	if got.Kind != KindDesign {
		t.Fatalf("expected Design, got %v", got.Kind)
	}
	if got.Complexity < 0.7 {
		t.Errorf("expected complexity >= 0.7, got %v", got.Complexity)
	}
	if got.SuggestedRounds < 4 {
		t.Errorf("expected suggestedRounds >= 4, got %v", got.SuggestedRounds)
	}
	if got.SuggestedAICount < 3 {
		t.Errorf("expected suggestedAiCount >= 3, got %v", got.SuggestedAICount)
	}
}

func TestAnalyzeComplexityIsClamped(t *testing.T) {
	for _, prompt := range []string{
		"",
		"complex advanced enterprise integrate complex advanced enterprise integrate complex advanced enterprise integrate",
		"simple basic example",
	} {
		got := Analyze(prompt)
		if got.Complexity < 0 || got.Complexity > 1 {
			t.Errorf("complexity out of bounds for %q: %v", prompt, got.Complexity)
		}
	}
}

func TestAnalyzeDebugPromptDetectsDebugOverCode(t *testing.T) {
	got := Analyze("there is a bug in this function and the code throws an error please fix and debug it")
	if got.Kind != KindDebug {
		t.Fatalf("expected Debug to win priority over Code, got %v", got.Kind)
	}
}

func TestAnalyzeKeywordsAreDeduplicatedAndBounded(t *testing.T) {
	got := Analyze("implement implement implement function function algorithm program script class interface database system extra words here")
	if len(got.Keywords) > 10 {
		t.Errorf("expected at most 10 keywords, got %d", len(got.Keywords))
	}
	seen := map[string]bool{}
	for _, kw := range got.Keywords {
		if seen[kw] {
			t.Errorf("expected deduplicated keywords, found repeat %q", kw)
		}
		seen[kw] = true
	}
}

func TestRequiresMultiAI(t *testing.T) {
	simple := Task{Kind: KindSimpleChat, Complexity: 0.9, SuggestedRounds: 5}
	if simple.RequiresMultiAI() {
		t.Error("simple chat should never require multi-AI")
	}

	lowComplexity := Task{Kind: KindCode, Complexity: 0.1, SuggestedRounds: 5}
	if lowComplexity.RequiresMultiAI() {
		t.Error("low complexity should not require multi-AI")
	}

	singleRound := Task{Kind: KindCode, Complexity: 0.8, SuggestedRounds: 1}
	if singleRound.RequiresMultiAI() {
		t.Error("single-round task should not require multi-AI")
	}

	qualifies := Task{Kind: KindCode, Complexity: 0.8, SuggestedRounds: 4}
	if !qualifies.RequiresMultiAI() {
		t.Error("expected complex multi-round task to require multi-AI")
	}
}
