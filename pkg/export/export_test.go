package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nyxforge/concord/pkg/session"
)

func testSession() *session.Session {
	s := session.New("what database should we use?", "general", []string{"claude", "codex"})
	s.TotalRounds = 1
	s.AddMessage(session.SenderUser, "user", "what database should we use?", 0, nil)
	s.AddMessage(session.SenderAI, "claude", "I'd go with Postgres.", 1, nil)
	s.AddMessage(session.SenderAI, "codex", "Agreed, Postgres is solid.", 1, nil)
	s.SetResult("Both AIs converged on Postgres.", []string{"Use Postgres"}, true, 0.95)
	return s
}

func TestExportJSONRoundTripsThroughImport(t *testing.T) {
	s := testSession()
	e := NewExporter(Options{Format: FormatJSON, Title: "Test Conversation"})

	var buf bytes.Buffer
	if err := e.Export(s, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.ID != s.ID || got.UserQuery != s.UserQuery {
		t.Errorf("expected the imported session to match the original, got %+v", got)
	}
	if len(got.Messages) != len(s.Messages) {
		t.Fatalf("expected %d messages, got %d", len(s.Messages), len(got.Messages))
	}
	if got.Result == nil || got.Result.Summary != s.Result.Summary {
		t.Errorf("expected the result to round-trip, got %+v", got.Result)
	}
}

func TestImportRejectsDocumentWithoutSession(t *testing.T) {
	_, err := Import(strings.NewReader(`{"title":"x"}`))
	if err == nil {
		t.Error("expected an error for an export document with no session")
	}
}

func TestExportMarkdownIncludesQuestionAndRounds(t *testing.T) {
	s := testSession()
	e := NewExporter(Options{Format: FormatMarkdown, Title: "My Discussion"})

	var buf bytes.Buffer
	if err := e.Export(s, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"# My Discussion", "## Question", s.UserQuery, "### Round 1", "CLAUDE:", "## Result", "Use Postgres"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected markdown output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestExportTextOmitsSystemMessagesAndMarkdownSyntax(t *testing.T) {
	s := testSession()
	s.AddMessage(session.SenderSystem, "system", "internal note", 1, nil)
	e := NewExporter(Options{Format: FormatText, Title: "Discussion"})

	var buf bytes.Buffer
	if err := e.Export(s, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "internal note") {
		t.Error("expected the system message to be omitted from the text export")
	}
	if strings.Contains(out, "#") {
		t.Error("expected no markdown heading syntax in the text export")
	}
	if !strings.Contains(out, "[CLAUDE]") || !strings.Contains(out, "[USER]") {
		t.Errorf("expected bracketed sender tags, got:\n%s", out)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	s := testSession()
	e := NewExporter(Options{Format: "yaml"})
	var buf bytes.Buffer
	if err := e.Export(s, &buf); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
