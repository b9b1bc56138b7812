// Package synthesis rolls a finished discussion up into a single result:
// key points, agreements, disagreements, recommendations, and a short
// summary (spec §4.10), ported from original_source's
// orchestration/synthesizer.py.
package synthesis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyxforge/concord/pkg/sharedcontext"
)

const defaultMaxSummaryLength = 500

// Result is the outcome of synthesizing a finished discussion.
type Result struct {
	Summary          string
	KeyPoints        []string
	Agreements       []string
	Disagreements    []string
	Recommendations  []string
	Contributions    map[string]int
	TotalMessages    int
	TotalRounds      int
	ConsensusReached bool
}

var numberedLine = regexp.MustCompile(`(?m)^\d+[.)]\s*(.+)$`)

var importantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)중요한[^.]*점[은는]?\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)key point[s]?[:]?\s*(.+)`),
	regexp.MustCompile(`(?i)important(?:ly)?[:]?\s*(.+)`),
}

var agreementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)동의합니다[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)agree[d]?[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)맞습니다[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)좋은 의견입니다[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)build on (?:that|this)[.:]?\s*(.+)`),
}

var disagreementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)동의하지 않[습니다는][.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)disagree[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)다른 의견[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)however[,]?\s*(.+)`),
	regexp.MustCompile(`(?i)but[,]?\s*(.+)`),
	regexp.MustCompile(`(?i)그러나[,]?\s*(.+)`),
}

var recommendationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)추천[합니다하면][.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)recommend(?:s)?[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)제안[합니다하면][.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)suggest(?:s)?[.:]?\s*(.+)`),
	regexp.MustCompile(`(?i)should[:]?\s*(.+)`),
	regexp.MustCompile(`(?i)~해야\s*합니다[.:]?\s*(.+)`),
}

// Synthesizer turns a finished Context into a Result.
type Synthesizer struct {
	MaxSummaryLength int
}

// New constructs a Synthesizer; a zero MaxSummaryLength defaults to 500.
func New(maxSummaryLength int) *Synthesizer {
	if maxSummaryLength <= 0 {
		maxSummaryLength = defaultMaxSummaryLength
	}
	return &Synthesizer{MaxSummaryLength: maxSummaryLength}
}

// Synthesize produces a Result from ctxt's accumulated transcript.
func (s *Synthesizer) Synthesize(ctxt *sharedcontext.Context) Result {
	keyPoints := s.extractKeyPoints(ctxt)
	agreements, disagreements := s.analyzePositions(ctxt)
	recommendations := s.extractRecommendations(ctxt)
	summary := s.createSummary(ctxt, keyPoints, recommendations)

	summarized := ctxt.Summarize()
	contributions := make(map[string]int, len(summarized.Contributions))
	for name, c := range summarized.Contributions {
		contributions[name] = c.MessageCount
	}

	return Result{
		Summary:          summary,
		KeyPoints:        keyPoints,
		Agreements:       agreements,
		Disagreements:    disagreements,
		Recommendations:  recommendations,
		Contributions:    contributions,
		TotalMessages:    summarized.TotalMessages,
		TotalRounds:      summarized.TotalRounds,
		ConsensusReached: summarized.ConsensusReached,
	}
}

func (s *Synthesizer) extractKeyPoints(ctxt *sharedcontext.Context) []string {
	points := append([]string(nil), ctxt.KeyPoints()...)

	for _, msg := range ctxt.AllMessages() {
		for _, m := range numberedLine.FindAllStringSubmatch(msg.Content, -1) {
			item := truncatePlain(strings.TrimSpace(m[1]), 100)
			if item != "" && !contains(points, item) {
				points = append(points, item)
			}
		}
		for _, pattern := range importantPatterns {
			for _, m := range pattern.FindAllStringSubmatch(msg.Content, -1) {
				item := truncatePlain(strings.TrimSpace(m[1]), 100)
				if item != "" && !contains(points, item) {
					points = append(points, item)
				}
			}
		}
	}

	seen := make(map[string]bool, len(points))
	var unique []string
	for _, p := range points {
		key := strings.ToLower(strings.TrimSpace(p))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	if len(unique) > 10 {
		unique = unique[:10]
	}
	return unique
}

func (s *Synthesizer) analyzePositions(ctxt *sharedcontext.Context) (agreements, disagreements []string) {
	for _, msg := range ctxt.AllMessages() {
		for _, pattern := range agreementPatterns {
			for _, m := range pattern.FindAllStringSubmatch(msg.Content, -1) {
				match := truncatePlain(strings.TrimSpace(m[1]), 100)
				if match == "" {
					continue
				}
				entry := fmt.Sprintf("%s: %s", msg.SenderID, match)
				if !contains(agreements, entry) {
					agreements = append(agreements, entry)
				}
			}
		}
		for _, pattern := range disagreementPatterns {
			for _, m := range pattern.FindAllStringSubmatch(msg.Content, -1) {
				match := truncatePlain(strings.TrimSpace(m[1]), 100)
				if match == "" {
					continue
				}
				entry := fmt.Sprintf("%s: %s", msg.SenderID, match)
				if !contains(disagreements, entry) {
					disagreements = append(disagreements, entry)
				}
			}
		}
	}
	if len(agreements) > 5 {
		agreements = agreements[:5]
	}
	if len(disagreements) > 5 {
		disagreements = disagreements[:5]
	}
	return agreements, disagreements
}

func (s *Synthesizer) extractRecommendations(ctxt *sharedcontext.Context) []string {
	var recommendations []string
	for _, msg := range ctxt.AllMessages() {
		for _, pattern := range recommendationPatterns {
			for _, m := range pattern.FindAllStringSubmatch(msg.Content, -1) {
				match := truncatePlain(strings.TrimSpace(m[1]), 100)
				if match != "" && !contains(recommendations, match) {
					recommendations = append(recommendations, match)
				}
			}
		}
	}
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

func (s *Synthesizer) createSummary(ctxt *sharedcontext.Context, keyPoints, recommendations []string) string {
	summarized := ctxt.Summarize()
	var parts []string

	parts = append(parts, fmt.Sprintf("%d개의 AI가 %d라운드에 걸쳐 토론했습니다.", len(summarized.Contributions), summarized.TotalRounds))

	if summarized.ConsensusReached {
		parts = append(parts, "토론 결과 합의에 도달했습니다.")
	} else {
		parts = append(parts, "다양한 관점이 제시되었습니다.")
	}

	if len(keyPoints) > 0 {
		parts = append(parts, "\n주요 포인트:")
		top := keyPoints
		if len(top) > 3 {
			top = top[:3]
		}
		for i, p := range top {
			parts = append(parts, fmt.Sprintf("  %d. %s", i+1, p))
		}
	}

	if len(recommendations) > 0 {
		parts = append(parts, fmt.Sprintf("\n권장 사항: %s", recommendations[0]))
	}

	summary := strings.Join(parts, " ")
	return truncate(summary, s.MaxSummaryLength)
}

// Format renders result as a human-facing report (original's format_result).
func Format(result Result) string {
	var lines []string
	rule := strings.Repeat("=", 60)

	lines = append(lines, rule, "Discussion Summary", rule)
	lines = append(lines, "", result.Summary, "")

	lines = append(lines, "Stats:")
	lines = append(lines, fmt.Sprintf("  - Rounds: %d", result.TotalRounds))
	lines = append(lines, fmt.Sprintf("  - Messages: %d", result.TotalMessages))
	consensus := "no"
	if result.ConsensusReached {
		consensus = "yes"
	}
	lines = append(lines, fmt.Sprintf("  - Consensus reached: %s", consensus))

	if len(result.Contributions) > 0 {
		lines = append(lines, "", "AI contributions:")
		for name, count := range result.Contributions {
			lines = append(lines, fmt.Sprintf("  - %s: %d messages", name, count))
		}
	}

	if len(result.KeyPoints) > 0 {
		lines = append(lines, "", "Key points:")
		top := result.KeyPoints
		if len(top) > 5 {
			top = top[:5]
		}
		for i, p := range top {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, p))
		}
	}

	if len(result.Recommendations) > 0 {
		lines = append(lines, "", "Recommendations:")
		top := result.Recommendations
		if len(top) > 3 {
			top = top[:3]
		}
		for _, r := range top {
			lines = append(lines, fmt.Sprintf("  - %s", r))
		}
	}

	lines = append(lines, "", rule)
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// truncatePlain truncates s to n runes with no suffix, matching the
// original's bare `[:100]` slices for extracted key points, agreements,
// disagreements, and recommendations (synthesizer.py's
// `item.strip()[:100]` and friends) — distinct from truncate, which adds
// the "..." suffix the original only emits for the final summary length
// cap (`summary[:max_summary_length - 3] + "..."`).
func truncatePlain(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

