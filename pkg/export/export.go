// Package export serializes a session to JSON, Markdown, or plain text
// (spec §6's export section, SPEC_FULL.md §C.3), ported from
// original_source's storage/history.py `export_session` and its
// `_export_markdown`/`_export_json`/`_export_txt` helpers. The
// teacher's HTML exporter is dropped in favor of the original's plain
// text format; JSON gained an `Import` counterpart so Export/Import
// round-trips a session (the original's `to_dict`/`from_dict` pair).
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nyxforge/concord/pkg/session"
)

// Format is a supported export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Options configures one Export call.
type Options struct {
	Format            Format
	IncludeTimestamps bool
	Title             string
}

// Exporter writes a session in one configured Format.
type Exporter struct {
	options Options
}

// NewExporter constructs an Exporter with the given options.
func NewExporter(options Options) *Exporter {
	return &Exporter{options: options}
}

// Export writes s in the exporter's configured format.
func (e *Exporter) Export(s *session.Session, w io.Writer) error {
	switch e.options.Format {
	case FormatJSON:
		return e.exportJSON(s, w)
	case FormatMarkdown:
		return e.exportMarkdown(s, w)
	case FormatText:
		return e.exportText(s, w)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

// document is the JSON export envelope; Import reverses it exactly.
type document struct {
	Title      string           `json:"title,omitempty"`
	ExportedAt time.Time        `json:"exported_at"`
	Session    *session.Session `json:"session"`
}

func (e *Exporter) exportJSON(s *session.Session, w io.Writer) error {
	doc := document{Title: e.options.Title, ExportedAt: time.Now(), Session: s}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Import reads a JSON export produced by Export(FormatJSON) and returns
// the session it carries, completing the round-trip law (spec §8):
// Import(Export(s)) reproduces s.
func Import(r io.Reader) (*session.Session, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	if doc.Session == nil {
		return nil, fmt.Errorf("export document carries no session")
	}
	return doc.Session, nil
}

func (e *Exporter) exportMarkdown(s *session.Session, w io.Writer) error {
	var sb strings.Builder

	title := e.options.Title
	if title == "" {
		title = "Discussion"
	}
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("**Date:** " + s.CreatedAt.Format("2006-01-02 15:04:05") + "\n")
	sb.WriteString("**AIs:** " + strings.Join(s.ParticipatingAIs, ", ") + "\n")
	sb.WriteString("**Rounds:** " + strconv.Itoa(s.TotalRounds) + "\n")
	sb.WriteString("**Status:** " + string(s.Status) + "\n\n")

	sb.WriteString("## Question\n\n")
	sb.WriteString(s.UserQuery + "\n\n")

	sb.WriteString("## Discussion\n\n")
	currentRound := -1
	for _, msg := range s.Messages {
		if msg.RoundNum != currentRound {
			currentRound = msg.RoundNum
			sb.WriteString(fmt.Sprintf("### Round %d\n\n", currentRound))
		}

		switch msg.SenderType {
		case session.SenderUser:
			sb.WriteString("**User:** " + msg.Content)
		case session.SenderAI:
			sb.WriteString("**" + strings.ToUpper(msg.SenderID) + ":** " + msg.Content)
		default:
			sb.WriteString("*" + msg.Content + "*")
		}
		if e.options.IncludeTimestamps {
			sb.WriteString(" _(" + msg.CreatedAt.Format("15:04:05") + ")_")
		}
		sb.WriteString("\n\n")
	}

	if s.Result != nil {
		sb.WriteString("## Result\n\n")
		sb.WriteString(s.Result.Summary + "\n\n")
		if len(s.Result.KeyPoints) > 0 {
			sb.WriteString("**Key Points:**\n")
			for _, p := range s.Result.KeyPoints {
				sb.WriteString("- " + p + "\n")
			}
			sb.WriteString("\n")
		}
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}

func (e *Exporter) exportText(s *session.Session, w io.Writer) error {
	var sb strings.Builder
	rule := strings.Repeat("=", 60)
	dash := strings.Repeat("-", 60)

	title := e.options.Title
	if title == "" {
		title = "Discussion"
	}
	sb.WriteString(fmt.Sprintf("%s - %s\n", title, s.CreatedAt.Format("2006-01-02 15:04")))
	sb.WriteString(rule + "\n")
	sb.WriteString("Question: " + s.UserQuery + "\n")
	sb.WriteString("AIs: " + strings.Join(s.ParticipatingAIs, ", ") + "\n")
	sb.WriteString(dash + "\n")

	for _, msg := range s.Messages {
		switch msg.SenderType {
		case session.SenderAI:
			sb.WriteString("[" + strings.ToUpper(msg.SenderID) + "] " + msg.Content + "\n")
		case session.SenderUser:
			sb.WriteString("[USER] " + msg.Content + "\n")
		}
	}

	if s.Result != nil {
		sb.WriteString(dash + "\n")
		sb.WriteString("Result:\n")
		sb.WriteString(s.Result.Summary + "\n")
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}
