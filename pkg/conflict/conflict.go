// Package conflict detects and resolves disagreement between adapter
// opinions in a discussion (spec §4.9), ported from original_source's
// orchestration/conflict.py.
package conflict

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/sharedcontext"
	"github.com/nyxforge/concord/pkg/task"
)

// Severity is a conflict's assessed severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ResolutionKind is how a conflict was (or wasn't) resolved.
type ResolutionKind string

const (
	ResolutionAutoResolved ResolutionKind = "auto_resolved"
	ResolutionUserDecision ResolutionKind = "user_decision"
	ResolutionDeferred     ResolutionKind = "deferred"
)

// Opinion is one adapter's extracted position on the discussion topic.
type Opinion struct {
	AdapterName       string
	Position          string
	Confidence        float64
	Reasoning         string
	SupportingPoints  []string
}

// Conflict is a detected disagreement (spec §4.9).
type Conflict struct {
	Topic          string
	Opinions       map[string]Opinion
	Severity       Severity
	RoundDetected  int
	ContextSummary string
}

// VotedOption is one candidate position with its aggregate support.
type VotedOption struct {
	Position    string
	Supporters  []string
	Weight      float64
	Reasoning   string
}

// Resolution is the outcome of weighted-vote conflict resolution.
type Resolution struct {
	Kind        ResolutionKind
	Winner      string
	Options     []VotedOption
	Explanation string
	Confidence  float64
}

// strengths is the per-adapter, per-kind strength table used to weight
// votes (original's AI_STRENGTHS — identical to pkg/selector's
// specialty table; kept separate per spec §4.9's "fixed per-adapter ×
// per-kind table", a distinct named concept from the selector's ranking
// table even though their values coincide in the original).
var strengths = map[string]map[task.Kind]float64{
	"claude": {
		task.KindCode: 0.9, task.KindDesign: 0.95, task.KindAnalysis: 0.9,
		task.KindCreative: 0.85, task.KindResearch: 0.8, task.KindDebug: 0.85,
		task.KindExplain: 0.95, task.KindGeneral: 0.9, task.KindSimpleChat: 0.9,
	},
	"codex": {
		task.KindCode: 0.95, task.KindDesign: 0.85, task.KindAnalysis: 0.8,
		task.KindCreative: 0.7, task.KindResearch: 0.7, task.KindDebug: 0.9,
		task.KindExplain: 0.75, task.KindGeneral: 0.8, task.KindSimpleChat: 0.7,
	},
	"gemini": {
		task.KindCode: 0.85, task.KindDesign: 0.85, task.KindAnalysis: 0.9,
		task.KindCreative: 0.9, task.KindResearch: 0.95, task.KindDebug: 0.8,
		task.KindExplain: 0.9, task.KindGeneral: 0.85, task.KindSimpleChat: 0.85,
	},
	"ollama": {
		task.KindCode: 0.8, task.KindDesign: 0.75, task.KindAnalysis: 0.75,
		task.KindCreative: 0.8, task.KindResearch: 0.7, task.KindDebug: 0.75,
		task.KindExplain: 0.8, task.KindGeneral: 0.8, task.KindSimpleChat: 0.85,
	},
}

var disagreementCues = []string{
	"disagree", "동의하지 않", "다른 의견", "however", "but", "그러나", "반면", "alternatively",
	"instead", "대신", "rather than", "오히려", "on the contrary",
	"not recommend", "추천하지 않", "against", "반대",
	"wrong", "잘못", "incorrect", "틀린", "mistake",
}

var highConfidenceCues = []string{
	"definitely", "certainly", "확실히", "분명히", "strongly",
	"best", "최선", "optimal", "최적",
	"must", "반드시", "should definitely",
}

var lowConfidenceCues = []string{
	"maybe", "아마", "perhaps", "possibly",
	"could", "might", "할 수도",
	"not sure", "확실하지 않", "uncertain",
}

var technicalTopicCues = []string{
	"framework", "프레임워크", "language", "언어", "database", "데이터베이스",
	"architecture", "아키텍처", "approach", "접근", "방법", "library", "라이브러리",
}

var positionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:recommend|suggest|추천|제안)s?[:\s]+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:should use|should be|해야|사용해야)[:\s]+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:best|최선|best option|best choice)[:\s]+([^.!?\n]+)`),
}

var sentenceSplit = regexp.MustCompile(`[.!?]\s+`)
var numberedLine = regexp.MustCompile(`(?m)^\d+[.)]\s*(.+)$`)
var bulletLine = regexp.MustCompile(`(?m)^[-*]\s*(.+)$`)

// Resolver detects and resolves conflicts for a fixed task kind.
type Resolver struct {
	Kind task.Kind
}

// New constructs a Resolver scoped to kind.
func New(kind task.Kind) *Resolver {
	return &Resolver{Kind: kind}
}

// Detect returns a Conflict if the context's latest opinions disagree
// enough to clear the 0.3 threshold, else nil (spec §4.9).
func (r *Resolver) Detect(ctxt *sharedcontext.Context) *Conflict {
	if r.Kind == task.KindSimpleChat {
		return nil
	}

	allMessages := ctxt.AllMessages()
	if len(allMessages) < 2 {
		return nil
	}

	opinions := extractOpinions(allMessages)
	if len(opinions) < 2 {
		return nil
	}

	score := disagreementScore(allMessages, opinions)
	if score < 0.3 {
		return nil
	}

	return &Conflict{
		Topic:          identifyTopic(allMessages, ctxt.OriginalPrompt()),
		Opinions:       opinions,
		Severity:       severityFor(score, opinions),
		RoundDetected:  ctxt.CurrentRound(),
		ContextSummary: contextSummary(ctxt),
	}
}

func extractOpinions(messages []adapter.Message) map[string]Opinion {
	latestByAI := make(map[string]string)
	order := make([]string, 0)
	for _, m := range messages {
		if _, ok := latestByAI[m.SenderID]; !ok {
			order = append(order, m.SenderID)
		}
		latestByAI[m.SenderID] = m.Content
	}

	opinions := make(map[string]Opinion, len(latestByAI))
	for _, name := range order {
		content := latestByAI[name]
		opinions[name] = Opinion{
			AdapterName:      name,
			Position:         extractPosition(content),
			Confidence:       estimateConfidence(content),
			Reasoning:        truncate(content, 200),
			SupportingPoints: extractSupportingPoints(content),
		}
	}
	return opinions
}

func extractPosition(text string) string {
	for _, pat := range positionPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return truncate(strings.TrimSpace(m[1]), 100)
		}
	}
	sentences := sentenceSplit.Split(text, -1)
	if len(sentences) > 0 {
		return truncate(strings.TrimSpace(sentences[0]), 100)
	}
	return truncate(text, 100)
}

func estimateConfidence(text string) float64 {
	confidence := 0.7
	lower := strings.ToLower(text)
	for _, cue := range highConfidenceCues {
		if strings.Contains(lower, cue) {
			confidence += 0.1
		}
	}
	for _, cue := range lowConfidenceCues {
		if strings.Contains(lower, cue) {
			confidence -= 0.1
		}
	}
	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func extractSupportingPoints(text string) []string {
	var points []string
	for _, m := range numberedLine.FindAllStringSubmatch(text, 5) {
		points = append(points, m[1])
	}
	for _, m := range bulletLine.FindAllStringSubmatch(text, 5) {
		points = append(points, m[1])
	}

	var cleaned []string
	for _, p := range points {
		p = strings.TrimSpace(p)
		if len([]rune(p)) > 10 {
			cleaned = append(cleaned, truncate(p, 100))
		}
		if len(cleaned) == 5 {
			break
		}
	}
	return cleaned
}

func disagreementScore(messages []adapter.Message, opinions map[string]Opinion) float64 {
	if len(opinions) < 2 {
		return 0
	}

	disagreeing := 0
	for _, m := range messages {
		lower := strings.ToLower(m.Content)
		for _, cue := range disagreementCues {
			if strings.Contains(lower, cue) {
				disagreeing++
				break
			}
		}
	}

	ratio := float64(disagreeing) / float64(len(messages))
	diversity := positionDiversity(opinions)
	return ratio*0.6 + diversity*0.4
}

// positionDiversity is (unique-leading-triple count - 1) over
// |opinions|-1: 0 when every position matches, 1 when all differ.
func positionDiversity(opinions map[string]Opinion) float64 {
	if len(opinions) < 2 {
		return 0
	}
	seen := make(map[string]bool)
	for _, o := range opinions {
		words := strings.Fields(strings.ToLower(o.Position))
		n := min(len(words), 3)
		seen[strings.Join(words[:n], " ")] = true
	}
	return float64(len(seen)-1) / float64(len(opinions)-1)
}

func severityFor(score float64, opinions map[string]Opinion) Severity {
	var total float64
	for _, o := range opinions {
		total += o.Confidence
	}
	avgConfidence := total / float64(len(opinions))

	severityScore := score * (0.5 + avgConfidence*0.5)
	switch {
	case severityScore < 0.3:
		return SeverityLow
	case severityScore < 0.5:
		return SeverityMedium
	case severityScore < 0.7:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func identifyTopic(messages []adapter.Message, originalPrompt string) string {
	var all strings.Builder
	for _, m := range messages {
		all.WriteString(m.Content)
		all.WriteString(" ")
	}
	lower := strings.ToLower(all.String())

	for _, cue := range technicalTopicCues {
		if strings.Contains(lower, cue) {
			return "Choice of " + cue
		}
	}

	words := strings.Fields(originalPrompt)
	if len(words) >= 5 {
		return strings.Join(words[:5], " ") + "..."
	}
	return originalPrompt
}

func contextSummary(ctxt *sharedcontext.Context) string {
	s := ctxt.Summarize()
	return "Discussion about: " + truncate(s.OriginalPrompt, 100) + "\n" +
		"Rounds completed: " + strconv.Itoa(s.TotalRounds) + "\n" +
		"Messages: " + strconv.Itoa(s.TotalMessages)
}

// Resolve aggregates opinions into weighted votes and decides the
// resolution kind (spec §4.9).
func (r *Resolver) Resolve(c *Conflict) Resolution {
	votesByPosition := make(map[string]*VotedOption)
	var order []string

	for name, opinion := range c.Opinions {
		strength := 0.5
		if table, ok := strengths[strings.ToLower(name)]; ok {
			if v, ok := table[r.Kind]; ok {
				strength = v
			}
		}
		weight := strength * opinion.Confidence

		if v, ok := votesByPosition[opinion.Position]; ok {
			v.Supporters = append(v.Supporters, name)
			v.Weight += weight
		} else {
			votesByPosition[opinion.Position] = &VotedOption{
				Position:   opinion.Position,
				Supporters: []string{name},
				Weight:     weight,
				Reasoning:  opinion.Reasoning,
			}
			order = append(order, opinion.Position)
		}
	}

	options := make([]VotedOption, 0, len(votesByPosition))
	for _, pos := range order {
		options = append(options, *votesByPosition[pos])
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Weight > options[j].Weight })

	if len(options) == 0 {
		return Resolution{Kind: ResolutionDeferred, Explanation: "No clear positions identified"}
	}

	if len(options) >= 2 {
		top, second := options[0], options[1]
		var diff float64
		if top.Weight > 0 {
			diff = (top.Weight - second.Weight) / top.Weight
		}
		if diff < 0.1 {
			return Resolution{
				Kind:        ResolutionUserDecision,
				Options:     options[:2],
				Explanation: "Close vote between top two positions",
				Confidence:  diff,
			}
		}
	}

	winner := options[0]
	var total float64
	for _, o := range options {
		total += o.Weight
	}
	confidence := 0.0
	if total > 0 {
		confidence = winner.Weight / total
	}

	return Resolution{
		Kind:        ResolutionAutoResolved,
		Winner:      winner.Position,
		Options:     options,
		Explanation: "Winner by weighted vote",
		Confidence:  confidence,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

