package session

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewSessionStartsInProgress(t *testing.T) {
	s := New("what's the best database?", "general", []string{"claude", "codex"})
	if s.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %v", s.Status)
	}
	if s.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestAddMessageBumpsUpdatedAt(t *testing.T) {
	s := New("q", "general", nil)
	before := s.UpdatedAt
	msg := s.AddMessage(SenderAI, "claude", "hello", 1, nil)
	if msg.SessionID != s.ID {
		t.Errorf("expected message to reference its session, got %v", msg.SessionID)
	}
	if !s.UpdatedAt.After(before) && s.UpdatedAt != before {
		t.Error("expected UpdatedAt to advance")
	}
	if len(s.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(s.Messages))
	}
}

func TestSetResultCompletesSession(t *testing.T) {
	s := New("q", "general", nil)
	res := s.SetResult("summary text", []string{"point one"}, true, 0.9)
	if s.Status != StatusCompleted {
		t.Errorf("expected completed status, got %v", s.Status)
	}
	if s.Result == nil || s.Result.ID != res.ID {
		t.Error("expected the session to carry the returned result")
	}
}

func TestMarkErrorRecordsSystemMessage(t *testing.T) {
	s := New("q", "general", nil)
	s.MarkError("adapter crashed")
	if s.Status != StatusError {
		t.Errorf("expected error status, got %v", s.Status)
	}
	if len(s.Messages) != 1 || s.Messages[0].SenderType != SenderSystem {
		t.Fatalf("expected a system error message, got %v", s.Messages)
	}
}

func TestSummaryTextTruncatesLongQueries(t *testing.T) {
	longQuery := "this is a very long user query that definitely exceeds fifty characters in length"
	s := New(longQuery, "general", []string{"claude"})
	s.TotalRounds = 3
	got := s.SummaryText()
	if !containsAll(got, "...", "1 AIs", "3 rounds") {
		t.Errorf("unexpected summary text: %q", got)
	}
}

func TestSummaryTextTruncatesMultiByteQueriesOnRuneBoundaries(t *testing.T) {
	// Each rune here is 3 bytes in UTF-8, so 60 runes is 180 bytes —
	// byte-slicing at 50 would land mid-codepoint and produce invalid UTF-8.
	longQuery := strings.Repeat("대", 60)
	s := New(longQuery, "general", []string{"claude"})

	got := s.SummaryText()
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8 summary text, got %q", got)
	}
	wantPrefix := strings.Repeat("대", 50) + "..."
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("expected summary text to start with 50 runes plus ellipsis, got %q", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestStoreSaveGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s := New("roundtrip query", "general", []string{"claude"})
	s.AddMessage(SenderUser, "user", "roundtrip query", 0, nil)
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected the saved session to be found")
	}
	if got.UserQuery != s.UserQuery || len(got.Messages) != 1 {
		t.Errorf("expected the round-tripped session to match, got %+v", got)
	}

	if _, err := Open(filepath.Join(dir, "nested")); err != nil {
		t.Fatalf("Open should create nested directories: %v", err)
	}
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := st.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing session, got %+v", got)
	}
}

func TestStoreRecentOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	st, _ := Open(dir)

	first := New("first", "general", nil)
	st.Save(first)
	second := New("second", "general", nil)
	second.CreatedAt = first.CreatedAt.Add(1)
	st.Save(second)

	recent, err := st.Recent(10, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recent))
	}
	if recent[0].ID != second.ID {
		t.Errorf("expected the newest session first, got %v", recent[0].UserQuery)
	}
}

func TestStoreRecentPaginates(t *testing.T) {
	dir := t.TempDir()
	st, _ := Open(dir)
	for i := 0; i < 5; i++ {
		s := New("q", "general", nil)
		st.Save(s)
	}

	page, err := st.Recent(2, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected a page of 2, got %d", len(page))
	}
}

func TestStoreSearchMatchesMessageContent(t *testing.T) {
	dir := t.TempDir()
	st, _ := Open(dir)

	s := New("unrelated query", "general", []string{"claude"})
	s.AddMessage(SenderAI, "claude", "the answer involves PostgreSQL indexing", 1, nil)
	st.Save(s)

	other := New("also unrelated", "general", nil)
	st.Save(other)

	results, err := st.Search("postgresql", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != s.ID {
		t.Errorf("expected exactly the matching session, got %v", results)
	}
}

func TestStoreDeleteRemovesSession(t *testing.T) {
	dir := t.TempDir()
	st, _ := Open(dir)
	s := New("q", "general", nil)
	st.Save(s)

	ok, err := st.Delete(s.ID)
	if err != nil || !ok {
		t.Fatalf("expected delete to succeed, got ok=%v err=%v", ok, err)
	}

	got, _ := st.Get(s.ID)
	if got != nil {
		t.Error("expected the session to be gone after delete")
	}

	ok, err = st.Delete("already-gone")
	if err != nil || ok {
		t.Errorf("expected deleting a missing session to report false, got ok=%v err=%v", ok, err)
	}
}

func TestOpenRebuildsIndexFromExistingFiles(t *testing.T) {
	dir := t.TempDir()
	st1, _ := Open(dir)
	s := New("persisted across opens", "general", []string{"codex"})
	st1.Save(s)

	st2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := st2.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.UserQuery != s.UserQuery {
		t.Error("expected a fresh Open to rebuild the index from disk")
	}
}

func TestStoreStatsAggregatesAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	st, _ := Open(dir)

	a := New("a", "general", []string{"claude"})
	a.AddMessage(SenderAI, "claude", "x", 1, nil)
	a.SetResult("done", nil, true, 1.0)
	st.Save(a)

	b := New("b", "general", []string{"claude", "codex"})
	st.Save(b)

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSessions != 2 || stats.CompletedSessions != 1 || stats.TotalMessages != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AIUsage["claude"] != 2 || stats.AIUsage["codex"] != 1 {
		t.Errorf("unexpected AI usage: %+v", stats.AIUsage)
	}
}
