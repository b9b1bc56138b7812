// Package sharedcontext accumulates a multi-adapter discussion transcript
// and builds the deterministic per-turn prompt (spec §4.7), ported from
// original_source's orchestration/context.py.
package sharedcontext

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/nyxforge/concord/pkg/adapter"
)

const (
	maxKeyPoints     = 20
	recentKeyPoints  = 5
	truncateAt       = 500
	keyPointMaxChars = 100
)

// Context is the shared transcript and key-point buffer a discussion
// walks through round by round. It is not mutated while a prompt is
// being built (spec §4.7: "The context is not mutated during prompt
// construction").
type Context struct {
	mu sync.RWMutex

	originalPrompt string
	maxTokens      int
	maxHistoryPerAI int

	messages      []adapter.Message
	countsByAI    map[string]int
	currentRound  int
	consensusReached bool
	keyPoints     []string
}

// New constructs a Context for originalPrompt with a total token budget
// and a per-adapter history cap.
func New(originalPrompt string, maxTokens, maxHistoryPerAI int) *Context {
	return &Context{
		originalPrompt:  originalPrompt,
		maxTokens:       maxTokens,
		maxHistoryPerAI: maxHistoryPerAI,
		countsByAI:      make(map[string]int),
	}
}

// OriginalPrompt returns the prompt the context was built from.
func (c *Context) OriginalPrompt() string { return c.originalPrompt }

// CurrentRound returns the highest round number appended so far.
func (c *Context) CurrentRound() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentRound
}

// ConsensusReached reports whether consensus has been declared.
func (c *Context) ConsensusReached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consensusReached
}

// SetConsensusReached marks consensus as declared for this discussion.
func (c *Context) SetConsensusReached(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consensusReached = v
}

// Append records a message and updates round/key-point bookkeeping
// (original's add_message).
func (c *Context) Append(senderID, content string, round int) adapter.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := adapter.NewMessage(senderID, adapter.RoleAgent, content, round)
	c.messages = append(c.messages, msg)
	c.countsByAI[senderID]++
	if round > c.currentRound {
		c.currentRound = round
	}
	c.extractKeyPoints(content)
	return msg
}

// AddKeyPoint inserts point directly into the key-point buffer, subject
// to the same 100-char truncation, dedup, and 20-entry cap as the
// heuristic extractor.
func (c *Context) AddKeyPoint(point string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addKeyPoint(point)
}

func (c *Context) addKeyPoint(point string) {
	if point == "" {
		return
	}
	point = truncateRunesPlain(point, keyPointMaxChars)
	for _, p := range c.keyPoints {
		if p == point {
			return
		}
	}
	c.keyPoints = append(c.keyPoints, point)
	if len(c.keyPoints) > maxKeyPoints {
		c.keyPoints = c.keyPoints[1:]
	}
}

// extractKeyPoints lifts lines that look like enumerated or bulleted
// items into the key-point buffer. Bullet leads recognized: "-", "*",
// a leading digit, or the canonical bullet U+2022 (spec Open Question D:
// "Canonicalize to U+2022 as directed").
func (c *Context) extractKeyPoints(content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)[0]
		if unicode.IsDigit(r) || line[0] == '-' || line[0] == '*' || r == '•' {
			c.addKeyPoint(line)
		}
	}
}

// MessagesForRound returns every message appended under round.
func (c *Context) MessagesForRound(round int) []adapter.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []adapter.Message
	for _, m := range c.messages {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// MessagesByAdapter returns every message from senderID, in order.
func (c *Context) MessagesByAdapter(senderID string) []adapter.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []adapter.Message
	for _, m := range c.messages {
		if m.SenderID == senderID {
			out = append(out, m)
		}
	}
	return out
}

// KeyPoints returns a copy of the current key-point buffer, oldest first.
func (c *Context) KeyPoints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.keyPoints...)
}

// AllMessages returns the full transcript in chronological order.
func (c *Context) AllMessages() []adapter.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]adapter.Message(nil), c.messages...)
}

// RecentMessages returns the last count messages, fewer if the
// transcript is shorter.
func (c *Context) RecentMessages(count int) []adapter.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if count >= len(c.messages) {
		return append([]adapter.Message(nil), c.messages...)
	}
	return append([]adapter.Message(nil), c.messages[len(c.messages)-count:]...)
}

// BuildPrompt renders the deterministic per-turn prompt (spec §4.7): a
// fixed system preamble, the verbatim original question, then either a
// first-round cue or the walked-back transcript tail plus key points,
// closed by a cue naming forAdapter.
func (c *Context) BuildPrompt(forAdapter string, isFirstRound bool) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var parts []string
	parts = append(parts,
		"You are participating in a collaborative AI discussion.",
		"Multiple AI assistants are working together to help the user.",
		"Be concise but thorough. Build on others' ideas.",
		"If you agree, say so briefly and add value.",
		"If you disagree, explain why constructively.",
		"",
		fmt.Sprintf("USER'S QUESTION: %s", c.originalPrompt),
		"",
	)

	if isFirstRound {
		parts = append(parts, "This is the first round. Share your initial thoughts.")
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "DISCUSSION SO FAR:", "")

	for _, msg := range c.tailForBudget() {
		prefix := fmt.Sprintf("[%s]", strings.ToUpper(msg.SenderID))
		parts = append(parts, fmt.Sprintf("%s %s", prefix, truncateRunes(msg.Content, truncateAt)), "")
	}

	if len(c.keyPoints) > 0 {
		parts = append(parts, "KEY POINTS IDENTIFIED:")
		for _, p := range lastN(c.keyPoints, recentKeyPoints) {
			parts = append(parts, "  "+p)
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		fmt.Sprintf("Now it's your turn (%s). Respond to the discussion.", forAdapter),
		"Add new insights or build on what others have said.",
	)

	return strings.Join(parts, "\n")
}

// tailForBudget walks messages newest-first, accumulating until the
// cumulative token estimate would exceed half the context budget, then
// returns the surviving tail in chronological order.
func (c *Context) tailForBudget() []adapter.Message {
	var tail []adapter.Message
	tokens := 0
	budget := c.maxTokens / 2

	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if tokens+msg.TokenCount > budget {
			break
		}
		tail = append([]adapter.Message{msg}, tail...)
		tokens += msg.TokenCount
	}
	return tail
}

// AllContent renders the full transcript as one string, grouped by
// round, for export and summary use.
func (c *Context) AllContent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Original Question: %s\n", c.originalPrompt)

	round := 0
	for _, msg := range c.messages {
		if msg.Round != round {
			round = msg.Round
			fmt.Fprintf(&sb, "\n--- Round %d ---\n", round)
		}
		fmt.Fprintf(&sb, "[%s]: %s\n", strings.ToUpper(msg.SenderID), msg.Content)
	}
	return sb.String()
}

// AdapterContribution is one adapter's participation summary.
type AdapterContribution struct {
	MessageCount int
	TotalTokens  int
}

// Summary is the discussion-level rollup (original's get_summary).
type Summary struct {
	OriginalPrompt     string
	TotalMessages      int
	TotalRounds        int
	Contributions      map[string]AdapterContribution
	KeyPointCount      int
	ConsensusReached   bool
}

// Summarize produces a Summary snapshot of the current context state.
func (c *Context) Summarize() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	contributions := make(map[string]AdapterContribution, len(c.countsByAI))
	for name, count := range c.countsByAI {
		var total int
		for _, m := range c.messages {
			if m.SenderID == name {
				total += m.TokenCount
			}
		}
		contributions[name] = AdapterContribution{MessageCount: count, TotalTokens: total}
	}

	return Summary{
		OriginalPrompt:   truncateRunesPlain(c.originalPrompt, keyPointMaxChars),
		TotalMessages:    len(c.messages),
		TotalRounds:      c.currentRound,
		Contributions:    contributions,
		KeyPointCount:    len(c.keyPoints),
		ConsensusReached: c.consensusReached,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// truncateRunesPlain truncates s to n runes with no suffix, matching the
// original's bare `[:n]` slices for key points and the original-prompt
// snapshot (context.py's `line[:100]`, `point[:100]`,
// `self.original_prompt[:100]`) — distinct from truncateRunes, which adds
// the "..." suffix the original only emits for msg.content's 500-char cap.
func truncateRunesPlain(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastN(s []string, n int) []string {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
