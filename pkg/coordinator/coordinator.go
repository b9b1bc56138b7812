// Package coordinator is the top-level state machine tying task
// analysis, adapter selection, the discussion engine, conflict
// resolution, and synthesis into one externally observable event
// stream (spec §4.11), ported from original_source's
// orchestration/coordinator.py.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/approval"
	"github.com/nyxforge/concord/pkg/conflict"
	"github.com/nyxforge/concord/pkg/discussion"
	"github.com/nyxforge/concord/pkg/metrics"
	"github.com/nyxforge/concord/pkg/selector"
	"github.com/nyxforge/concord/pkg/sharedcontext"
	"github.com/nyxforge/concord/pkg/synthesis"
	"github.com/nyxforge/concord/pkg/task"
	"github.com/nyxforge/concord/pkg/telemetry"
)

// EventKind is the tag of the consumer-facing event union (spec §6).
type EventKind string

const (
	EventTaskAnalyzed      EventKind = "task_analyzed"
	EventAIsSelected       EventKind = "ais_selected"
	EventRoundStart        EventKind = "round_start"
	EventAIStart           EventKind = "ai_start"
	EventAIChunk           EventKind = "ai_chunk"
	EventAIEnd             EventKind = "ai_end"
	EventAIError           EventKind = "ai_error"
	EventRoundEnd          EventKind = "round_end"
	EventConsensusCheck    EventKind = "consensus_check"
	EventConsensusReached  EventKind = "consensus_reached"
	EventConflictDetected  EventKind = "conflict_detected"
	EventConflictResolved  EventKind = "conflict_resolved"
	EventApprovalRequested EventKind = "approval_requested"
	EventApprovalResult    EventKind = "approval_result"
	EventResult            EventKind = "result"
)

// Event is the tagged union the coordinator emits; only the fields
// relevant to Kind are populated (spec §6's variant/field table).
type Event struct {
	Kind EventKind

	// SessionID identifies one Process call's event stream, for
	// correlating events with the trace spans in SPEC_FULL.md §A.5 and
	// (once persisted) with a pkg/session.Session id.
	SessionID string

	Task        task.Task
	Adapters    []adapter.Adapter
	Explanation string

	RoundNum int
	MaxRounds int

	AdapterName, Icon, Color string
	Chunk, FullResponse      string
	Message                  string
	Reached                  bool

	Conflict   *conflict.Conflict
	Resolution conflict.Resolution
	UserChoice *string

	Action     approval.Action
	Importance approval.ImportanceLevel
	Approval   approval.Result

	Synthesis synthesis.Result
	Context   *sharedcontext.Context
}

// ConflictCallback presents a conflict/resolution to the user and
// returns their choice: one of the resolution's top positions, the
// literal "more", or free-form text of at least 4 characters
// interpreted as a new position (spec §6).
type ConflictCallback func(ctx context.Context, c *conflict.Conflict, r conflict.Resolution) string

// Config holds the coordinator's tunables; all core subsystem configs
// are plain structs constructed directly, per SPEC_FULL.md §A.3 (no
// file-based configuration loader in the core).
type Config struct {
	Discussion              discussion.Config
	EnableConflictDetection bool
	EnableApproval          bool
	ParallelCheckTimeout    time.Duration
	ContextMaxTokens        int
	ContextMaxHistoryPerAI  int
	SynthesisMaxLength      int
}

// DefaultConfig returns the coordinator's default tunables.
func DefaultConfig() Config {
	return Config{
		Discussion:              discussion.DefaultConfig(),
		EnableConflictDetection: true,
		EnableApproval:          true,
		ParallelCheckTimeout:    5 * time.Second,
		ContextMaxTokens:        8000,
		ContextMaxHistoryPerAI:  5,
		SynthesisMaxLength:      500,
	}
}

// Coordinator drives one discussion pipeline end to end.
type Coordinator struct {
	cfg          Config
	selector     *selector.Selector
	allAdapters  []adapter.Adapter
	approval     *approval.Engine
	conflictCB   ConflictCallback

	currentTask     task.Task
	currentAdapters []adapter.Adapter
	currentContext  *sharedcontext.Context
}

// New constructs a Coordinator. allAdapters is the universe probed for
// availability when Process is called without a pre-filtered list.
func New(cfg Config, sel *selector.Selector, allAdapters []adapter.Adapter) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		selector:    sel,
		allAdapters: allAdapters,
		approval:    approval.New(),
	}
}

// SetConflictCallback installs the UI callback invoked when a conflict
// resolves to USER_DECISION.
func (c *Coordinator) SetConflictCallback(cb ConflictCallback) { c.conflictCB = cb }

// SetApprovalCallback installs the UI callback invoked for actions above
// the approval engine's auto-approve threshold.
func (c *Coordinator) SetApprovalCallback(cb approval.Callback) { c.approval.SetCallback(cb) }

// State is a snapshot of the coordinator's most recent run, matching
// the original's get_current_state.
type State struct {
	Task            task.Task
	AdapterNames    []string
	ContextSummary  *sharedcontext.Summary
}

// CurrentState reports the coordinator's state as of its last Process call.
func (c *Coordinator) CurrentState() State {
	names := make([]string, len(c.currentAdapters))
	for i, a := range c.currentAdapters {
		names[i] = a.Name()
	}
	var summary *sharedcontext.Summary
	if c.currentContext != nil {
		s := c.currentContext.Summarize()
		summary = &s
	}
	return State{Task: c.currentTask, AdapterNames: names, ContextSummary: summary}
}

// Process runs the full pipeline for userInput and returns the event
// stream (spec §4.11). available, if non-nil, is used as the
// pre-filtered adapter pool; otherwise every adapter in the
// coordinator's universe is probed in parallel.
func (c *Coordinator) Process(ctx context.Context, userInput string, available []adapter.Adapter) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		t := task.Analyze(userInput)
		c.currentTask = t
		sessionID := uuid.NewString()

		ctx, endSpan := telemetry.StartSpan(ctx, "coordinator.process",
			attribute.String("session.id", sessionID),
			attribute.String("task.kind", string(t.Kind)),
			attribute.Float64("task.complexity", t.Complexity),
		)
		defer endSpan()

		if t.Kind == task.KindSimpleChat || t.Complexity < 0.3 {
			c.fastPath(ctx, out, sessionID, userInput, available)
			return
		}

		if !send(ctx, out, sessionID, Event{Kind: EventTaskAnalyzed, Task: t}) {
			return
		}

		var resolver *conflict.Resolver
		if c.cfg.EnableConflictDetection {
			resolver = conflict.New(t.Kind)
		}

		pool := c.resolveAvailable(ctx, available)
		adapters := c.selector.Select(ctx, t, pool)
		c.currentAdapters = adapters

		if len(adapters) == 0 {
			send(ctx, out, sessionID, Event{Kind: EventAIsSelected, Adapters: nil, Explanation: "No AI adapters available for this task."})
			return
		}

		explanation := selector.Explain(t, adapters)
		if !send(ctx, out, sessionID, Event{Kind: EventAIsSelected, Adapters: adapters, Explanation: explanation}) {
			return
		}

		ctxt := sharedcontext.New(userInput, c.cfg.ContextMaxTokens, c.cfg.ContextMaxHistoryPerAI)
		c.currentContext = ctxt

		mgr := discussion.New(c.cfg.Discussion)
		var detected *conflict.Conflict
		var resolution conflict.Resolution
		var endRoundSpan, endTurnSpan func()

		for dEvt := range mgr.Run(ctx, t, adapters, ctxt) {
			converted, ok := convertDiscussionEvent(dEvt)
			if ok {
				switch converted.Kind {
				case EventRoundStart:
					_, end := telemetry.StartSpan(ctx, "coordinator.round", attribute.Int("round.num", converted.RoundNum))
					endRoundSpan = end
				case EventRoundEnd:
					if endRoundSpan != nil {
						endRoundSpan()
						endRoundSpan = nil
					}
				case EventAIStart:
					_, end := telemetry.StartSpan(ctx, "coordinator.ai_turn", attribute.String("adapter.name", converted.AdapterName))
					endTurnSpan = end
				case EventAIEnd, EventAIError:
					if endTurnSpan != nil {
						endTurnSpan()
						endTurnSpan = nil
					}
				}

				if !send(ctx, out, sessionID, converted) {
					return
				}
			}

			if converted.Kind == EventAIEnd && c.cfg.EnableApproval {
				if !c.runApprovals(ctx, out, sessionID, converted.FullResponse) {
					return
				}
			}

			if dEvt.Kind == discussion.EventRoundEnd && c.cfg.EnableConflictDetection && dEvt.RoundNum >= 2 {
				detected = resolver.Detect(ctxt)
				if detected != nil {
					resolution = resolver.Resolve(detected)
					if !send(ctx, out, sessionID, Event{Kind: EventConflictDetected, Conflict: detected, Resolution: resolution}) {
						return
					}

					if resolution.Kind == conflict.ResolutionUserDecision {
						var userChoice *string
						if c.conflictCB != nil {
							choice := c.conflictCB(ctx, detected, resolution)
							if choice != "" && choice != "more" {
								ctxt.AddKeyPoint(fmt.Sprintf("User chose: %s", choice))
							}
							userChoice = &choice
						}
						if !send(ctx, out, sessionID, Event{Kind: EventConflictResolved, Conflict: detected, Resolution: resolution, UserChoice: userChoice}) {
							return
						}
					}
				}
			}
		}

		if ctx.Err() != nil {
			return
		}

		synth := synthesis.New(c.cfg.SynthesisMaxLength)
		result := synth.Synthesize(ctxt)
		send(ctx, out, sessionID, Event{Kind: EventResult, Synthesis: result, Context: ctxt})
	}()

	return out
}

// resolveAvailable returns available as-is if non-nil, otherwise probes
// the coordinator's full adapter universe in parallel under the
// configured aggregate deadline (spec §4.11 step 2/3, §5 availability
// fan-out/fan-in).
func (c *Coordinator) resolveAvailable(ctx context.Context, available []adapter.Adapter) []adapter.Adapter {
	if available != nil {
		return available
	}
	return adapter.CheckAllParallel(ctx, c.allAdapters, c.cfg.ParallelCheckTimeout)
}

// runApprovals extracts candidate actions from a finished adapter
// response and requests approval for each above the engine's
// auto-approve threshold, blocking discussion progress on the result
// (SPEC_FULL.md §C.1: "invokes the approval callback before the
// coordinator proceeds").
func (c *Coordinator) runApprovals(ctx context.Context, out chan<- Event, sessionID, response string) bool {
	for _, action := range approval.ExtractActions(response) {
		importance := c.approval.CalculateImportance(action)
		autoApproves := (importance == approval.ImportanceLow && c.approval.AutoApproveLow) ||
			(importance == approval.ImportanceMedium && c.approval.AutoApproveMedium)
		if autoApproves {
			continue
		}

		if !send(ctx, out, sessionID, Event{Kind: EventApprovalRequested, Action: action, Importance: importance}) {
			return false
		}
		result := c.approval.RequestApproval(ctx, action)
		if !send(ctx, out, sessionID, Event{Kind: EventApprovalResult, Approval: result}) {
			return false
		}
	}
	return true
}

// fastPath handles SIMPLE_CHAT / low-complexity input with a single
// adapter and no task-analysis display (spec §4.11 step 2).
func (c *Coordinator) fastPath(ctx context.Context, out chan<- Event, sessionID, userInput string, available []adapter.Adapter) {
	pool := c.resolveAvailable(ctx, available)
	if len(pool) == 0 {
		send(ctx, out, sessionID, Event{Kind: EventAIsSelected, Adapters: nil, Explanation: "No AI adapters available."})
		return
	}

	a := pool[0]
	c.currentAdapters = []adapter.Adapter{a}

	if !send(ctx, out, sessionID, Event{
		Kind:        EventAIsSelected,
		Adapters:    []adapter.Adapter{a},
		Explanation: fmt.Sprintf("Quick response from %s", a.DisplayName()),
	}) {
		return
	}

	ctxt := sharedcontext.New(userInput, c.cfg.ContextMaxTokens, c.cfg.ContextMaxHistoryPerAI)
	c.currentContext = ctxt

	ctx, endTurn := telemetry.StartSpan(ctx, "coordinator.ai_turn", attribute.String("adapter.name", a.Name()))
	defer endTurn()

	if !send(ctx, out, sessionID, Event{Kind: EventAIStart, AdapterName: a.DisplayName(), Icon: a.Icon(), Color: a.Color()}) {
		return
	}

	turnStart := time.Now()
	var full string
	for chunk := range a.Send(ctx, userInput) {
		if chunk.Err != nil {
			metrics.RecordAdapterRequest(a.Name(), "error", time.Since(turnStart).Seconds(), 0)
			metrics.RecordAdapterError(a.Name(), "error")
			send(ctx, out, sessionID, Event{Kind: EventAIError, AdapterName: a.DisplayName(), Message: chunk.Err.Error()})
			return
		}
		full += chunk.Text
		if !send(ctx, out, sessionID, Event{Kind: EventAIChunk, AdapterName: a.DisplayName(), Chunk: chunk.Text}) {
			return
		}
	}

	metrics.RecordAdapterRequest(a.Name(), "ok", time.Since(turnStart).Seconds(), len(full)/4)
	metrics.RecordMessageSize(a.Name(), len(full))

	if !send(ctx, out, sessionID, Event{Kind: EventAIEnd, AdapterName: a.DisplayName(), FullResponse: full}) {
		return
	}

	ctxt.Append(a.Name(), full, 1)

	result := synthesis.Result{
		Summary:          truncate(full, 200),
		TotalRounds:      1,
		TotalMessages:    1,
		ConsensusReached: true,
		Contributions:    map[string]int{a.Name(): 1},
	}
	send(ctx, out, sessionID, Event{Kind: EventResult, Synthesis: result, Context: ctxt})
}

// convertDiscussionEvent remaps an internal discussion event into the
// external tagged union (spec §4.11 step 3's explicit remapping rules).
// The second return value is false for the internal-only Complete event,
// which carries no external variant.
func convertDiscussionEvent(e discussion.Event) (Event, bool) {
	switch e.Kind {
	case discussion.EventRoundStart:
		return Event{Kind: EventRoundStart, RoundNum: e.RoundNum, MaxRounds: e.MaxRounds}, true
	case discussion.EventAIStart:
		return Event{Kind: EventAIStart, AdapterName: e.AdapterName, Icon: e.Icon, Color: e.Color}, true
	case discussion.EventAIChunk:
		return Event{Kind: EventAIChunk, AdapterName: e.AdapterName, Chunk: e.Chunk}, true
	case discussion.EventAIEnd:
		return Event{Kind: EventAIEnd, AdapterName: e.AdapterName, FullResponse: e.FullResponse}, true
	case discussion.EventAIError:
		return Event{Kind: EventAIError, AdapterName: e.AdapterName, Message: e.Message}, true
	case discussion.EventRoundEnd:
		return Event{Kind: EventRoundEnd, RoundNum: e.RoundNum}, true
	case discussion.EventConsensusCheck:
		if e.Reached {
			return Event{Kind: EventConsensusReached, RoundNum: e.RoundNum}, true
		}
		return Event{Kind: EventConsensusCheck, RoundNum: e.RoundNum, Reached: e.Reached}, true
	default:
		return Event{}, false
	}
}

func send(ctx context.Context, out chan<- Event, sessionID string, evt Event) bool {
	evt.SessionID = sessionID
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
