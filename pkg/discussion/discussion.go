// Package discussion runs the per-round, per-adapter fan-out loop and
// emits a lazy internal event sequence (spec §4.8), ported from
// original_source's orchestration/discussion.py. The coordinator is the
// sole emitter of externally observable events (spec §2); this package's
// Event stream is an internal building block it consumes and translates.
package discussion

import (
	"context"
	"strings"
	"time"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/metrics"
	"github.com/nyxforge/concord/pkg/sharedcontext"
	"github.com/nyxforge/concord/pkg/task"
)

// Config holds the round loop's tunables (original's DiscussionConfig).
type Config struct {
	MaxRounds            int
	ConsensusThreshold   float64
	TimeoutPerAI         time.Duration
	EnableConsensusCheck bool
}

// DefaultConfig returns spec-default discussion tunables.
func DefaultConfig() Config {
	return Config{
		MaxRounds:            5,
		ConsensusThreshold:   0.7,
		TimeoutPerAI:         60 * time.Second,
		EnableConsensusCheck: true,
	}
}

// EventKind identifies an Event's variant.
type EventKind string

const (
	EventRoundStart     EventKind = "round_start"
	EventAIStart        EventKind = "ai_start"
	EventAIChunk        EventKind = "ai_chunk"
	EventAIEnd          EventKind = "ai_end"
	EventAIError        EventKind = "ai_error"
	EventRoundEnd       EventKind = "round_end"
	EventConsensusCheck EventKind = "consensus_check"
	EventComplete       EventKind = "complete"
)

// Event is the internal discussion-loop event, one struct with only the
// fields relevant to Kind populated (spec §4.8's "lazy event sequence").
type Event struct {
	Kind         EventKind
	RoundNum     int
	MaxRounds    int
	AdapterName  string
	Icon         string
	Color        string
	Chunk        string
	FullResponse string
	Message      string
	Reached      bool
	TotalRounds  int
}

// agreementPhrases is the multilingual consensus cue set (original's
// agreement_phrases).
var agreementPhrases = []string{
	"agree", "동의", "맞습니다", "correct", "좋은 의견", "good point",
	"build on", "추가하면", "덧붙이면", "adding to",
}

// State is the discussion's mutable progress record (original's
// DiscussionState), readable after Run's channel closes.
type State struct {
	CurrentRound     int
	IsComplete       bool
	ConsensusReached bool
	ResponsesByAI    map[string][]string
}

// Manager runs discussion rounds over a shared context and adapter set.
type Manager struct {
	cfg   Config
	state State
}

// New constructs a Manager with cfg (DefaultConfig() if the zero value).
func New(cfg Config) *Manager {
	if cfg.MaxRounds == 0 {
		cfg = DefaultConfig()
	}
	return &Manager{cfg: cfg, state: State{ResponsesByAI: make(map[string][]string)}}
}

// State returns a snapshot of the manager's progress.
func (m *Manager) State() State { return m.state }

// Run drives the round loop for t over adapters against ctxt, emitting
// Events on the returned channel until the discussion completes or ctx is
// cancelled. The channel is closed when the discussion finishes.
func (m *Manager) Run(ctx context.Context, t task.Task, adapters []adapter.Adapter, ctxt *sharedcontext.Context) <-chan Event {
	out := make(chan Event)
	m.state = State{ResponsesByAI: make(map[string][]string)}

	go func() {
		defer close(out)

		endDiscussion := metrics.DiscussionStarted()
		defer endDiscussion()

		maxRounds := t.SuggestedRounds
		if m.cfg.MaxRounds < maxRounds {
			maxRounds = m.cfg.MaxRounds
		}

		for round := 1; round <= maxRounds; round++ {
			select {
			case <-ctx.Done():
				return
			default:
			}

			m.state.CurrentRound = round
			if !send(ctx, out, Event{Kind: EventRoundStart, RoundNum: round, MaxRounds: maxRounds}) {
				return
			}

			for _, a := range adapters {
				if !m.runTurn(ctx, out, a, ctxt, round) {
					return
				}
			}

			if !send(ctx, out, Event{Kind: EventRoundEnd, RoundNum: round}) {
				return
			}
			metrics.RecordDiscussionRound(string(t.Kind))

			if m.cfg.EnableConsensusCheck && round > 1 {
				reached := checkConsensus(ctxt, m.cfg.ConsensusThreshold)
				if !send(ctx, out, Event{Kind: EventConsensusCheck, RoundNum: round, Reached: reached}) {
					return
				}
				if reached {
					m.state.ConsensusReached = true
					ctxt.SetConsensusReached(true)
					break
				}
			}
		}

		m.state.IsComplete = true
		metrics.RecordConsensusOutcome(m.state.ConsensusReached)
		send(ctx, out, Event{
			Kind:        EventComplete,
			TotalRounds: m.state.CurrentRound,
			Reached:     m.state.ConsensusReached,
		})
	}()

	return out
}

// runTurn drives one adapter's turn within a round; returns false if the
// caller should stop (context cancelled mid-emit).
func (m *Manager) runTurn(ctx context.Context, out chan<- Event, a adapter.Adapter, ctxt *sharedcontext.Context, round int) bool {
	name := a.Name()
	isFirstRound := round == 1
	prompt := ctxt.BuildPrompt(name, isFirstRound)

	if !send(ctx, out, Event{Kind: EventAIStart, AdapterName: a.DisplayName(), Icon: a.Icon(), Color: a.Color()}) {
		return false
	}

	turnCtx, cancel := context.WithTimeout(ctx, m.cfg.TimeoutPerAI)
	defer cancel()

	start := time.Now()
	var sb strings.Builder
	for chunk := range a.Send(turnCtx, prompt) {
		if chunk.Err != nil {
			msg := chunk.Err.Error()
			kind := "error"
			if turnCtx.Err() != nil {
				msg = "timeout"
				kind = "timeout"
			}
			metrics.RecordAdapterRequest(name, "error", time.Since(start).Seconds(), 0)
			metrics.RecordAdapterError(name, kind)
			return send(ctx, out, Event{Kind: EventAIError, AdapterName: a.DisplayName(), Message: msg})
		}
		sb.WriteString(chunk.Text)
		if !send(ctx, out, Event{Kind: EventAIChunk, AdapterName: a.DisplayName(), Chunk: chunk.Text}) {
			return false
		}
	}

	full := sb.String()
	ctxt.Append(name, full, round)
	m.state.ResponsesByAI[name] = append(m.state.ResponsesByAI[name], full)

	metrics.RecordAdapterRequest(name, "ok", time.Since(start).Seconds(), len(full)/4)
	metrics.RecordMessageSize(name, len(full))

	return send(ctx, out, Event{Kind: EventAIEnd, AdapterName: a.DisplayName(), FullResponse: full})
}

// checkConsensus is the fixed agreement-phrase heuristic (spec §4.8):
// among the last min(4, len(messages)) messages, the fraction containing
// any agreement phrase must meet threshold; never declared with fewer
// than 2 messages.
func checkConsensus(ctxt *sharedcontext.Context, threshold float64) bool {
	recent := ctxt.RecentMessages(4)
	if len(recent) < 2 {
		return false
	}

	agreements := 0
	for _, msg := range recent {
		lower := strings.ToLower(msg.Content)
		for _, phrase := range agreementPhrases {
			if strings.Contains(lower, phrase) {
				agreements++
				break
			}
		}
	}

	ratio := float64(agreements) / float64(len(recent))
	return ratio >= threshold
}

// send delivers evt on out, honoring context cancellation; reports false
// if ctx was cancelled before delivery.
func send(ctx context.Context, out chan<- Event, evt Event) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
