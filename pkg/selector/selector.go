// Package selector implements the adapter selection policy (spec §4.6),
// ported from original_source's orchestration/ai_selector.py.
package selector

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/task"
)

// LocalProfile is one local-model specialization for a task kind, e.g. a
// code-tuned model for coding tasks vs. a general model by default.
type LocalProfile struct {
	Model     string
	Name      string
	Specialty string
}

// localProfiles maps a task kind to its ordered local-model profile list,
// carried over from the original's OLLAMA_PROFILES table.
var localProfiles = map[string][]LocalProfile{
	"coding": {
		{Model: "qwen2.5-coder:7b", Name: "Local-Coder", Specialty: "code"},
		{Model: "deepseek-r1:70b", Name: "Local-Reasoner", Specialty: "reasoning"},
	},
	"analysis": {
		{Model: "llama3.1:70b", Name: "Local-Analysis", Specialty: "analysis"},
		{Model: "qwen3:32b", Name: "Local-Logic", Specialty: "logic"},
		{Model: "deepseek-r1:32b", Name: "Local-Deep", Specialty: "deep_thinking"},
	},
	"creative": {
		{Model: "llama3.3:latest", Name: "Local-Creative", Specialty: "creative"},
		{Model: "mistral:7b", Name: "Local-Fast", Specialty: "speed"},
	},
	"default": {
		{Model: "llama3.1:70b", Name: "Local-Main", Specialty: "general"},
	},
}

// baseSet is the fixed, ordered cloud-backend set attached to non-simple
// tasks, filtered by availability (spec §4.6, Open Question D resolution:
// "Deterministic ordered-by-name behavior is retained").
var baseSet = []string{"claude", "codex", "gemini"}

// localBackendName is the single local backend whose adapter is
// specialized per-kind via LocalFactory below, equivalent to the
// original's "ollama" entry in adapter_map.
const localBackendName = "ollama"

// reasoningAdapterName is the adapter preferred for SIMPLE_CHAT /
// low-complexity tasks (the original's hardcoded "claude").
const reasoningAdapterName = "claude"

// researchAdapterName must be present whenever suggestedAiCount >= 3.
const researchAdapterName = "gemini"

// specialties is the per-kind specialty score table (§4.6 "fixed table,
// values ≈ 0.7-0.95"), carried over from AI_SPECIALTIES.
var specialties = map[string]map[task.Kind]float64{
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

var specialtyDescriptions = map[string][]string{
	"claude": {"reasoning", "analysis", "explanation", "design"},
	"codex":  {"code", "implementation", "debugging", "algorithms"},
	"gemini": {"research", "creativity", "multimodal", "current events"},
	"ollama": {"local processing", "privacy", "customization"},
}

// Score is the ranking/explanation output of ScoreAdapters, a secondary
// API not used by Select itself (spec §4.6).
type Score struct {
	Adapter     adapter.Adapter
	Value       float64
	Specialties []string
	Reason      string
}

// LocalFactory builds an adapter instance for a given local-model profile,
// supplied by the embedding application since concrete local-backend
// construction lives in pkg/adapters, which this package does not import.
type LocalFactory func(profile LocalProfile) adapter.Adapter

// Selector selects adapters for a task per spec §4.6.
type Selector struct {
	LocalFactory LocalFactory
}

// New constructs a Selector. localFactory may be nil if the embedding
// application never runs tasks that require local-model specialization.
func New(localFactory LocalFactory) *Selector {
	return &Selector{LocalFactory: localFactory}
}

// Select returns the ordered adapter list for task t, filtered from
// available by the base-set + local-model policy of spec §4.6.
func (s *Selector) Select(ctx context.Context, t task.Task, available []adapter.Adapter) []adapter.Adapter {
	if len(available) == 0 {
		return nil
	}

	if t.Kind == task.KindSimpleChat || t.Complexity < 0.3 {
		return s.selectSingle(available)
	}

	byName := make(map[string]adapter.Adapter, len(available))
	for _, a := range available {
		byName[strings.ToLower(a.Name())] = a
	}

	var selected []adapter.Adapter
	for _, name := range baseSet {
		if a, ok := byName[name]; ok {
			selected = append(selected, a)
		}
	}

	selected = append(selected, s.selectLocalInstances(t, byName[localBackendName])...)

	if t.SuggestedAICount >= 3 {
		if _, present := byName[researchAdapterName]; present {
			hasResearch := false
			for _, a := range selected {
				if strings.ToLower(a.Name()) == researchAdapterName {
					hasResearch = true
					break
				}
			}
			if !hasResearch {
				selected = append(selected, byName[researchAdapterName])
			}
		}
	}

	return selected
}

// selectSingle prefers the reasoning adapter, falling back to the first
// available one (original's _select_single_ai).
func (s *Selector) selectSingle(available []adapter.Adapter) []adapter.Adapter {
	for _, a := range available {
		if strings.ToLower(a.Name()) == reasoningAdapterName {
			return []adapter.Adapter{a}
		}
	}
	return available[:1]
}

// selectLocalInstances builds 1-3 specialized local-model adapters,
// skipped entirely when the local backend is unavailable or no
// LocalFactory was configured (original's _select_ollama_models).
func (s *Selector) selectLocalInstances(t task.Task, localBase adapter.Adapter) []adapter.Adapter {
	if localBase == nil || s.LocalFactory == nil {
		return nil
	}

	profileKey := "default"
	switch t.Kind {
	case task.KindCode, task.KindDebug:
		profileKey = "coding"
	case task.KindAnalysis, task.KindResearch:
		profileKey = "analysis"
	case task.KindCreative:
		profileKey = "creative"
	}

	profiles := localProfiles[profileKey]
	if profiles == nil {
		profiles = localProfiles["default"]
	}

	count := 1
	switch {
	case t.Complexity > 0.7:
		count = min(len(profiles), 3)
	case t.Complexity > 0.5:
		count = min(len(profiles), 2)
	}

	instances := make([]adapter.Adapter, 0, count)
	for _, p := range profiles[:count] {
		instances = append(instances, s.LocalFactory(p))
	}
	return instances
}

// ScoreAdapters ranks available adapters for t, exposed as a secondary
// ranking/explanation API (spec §4.6); Select never calls this.
func ScoreAdapters(t task.Task, available []adapter.Adapter) []Score {
	scores := make([]Score, 0, len(available))
	for _, a := range available {
		scores = append(scores, scoreOne(a, t))
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Value > scores[j].Value })
	return scores
}

func scoreOne(a adapter.Adapter, t task.Task) Score {
	name := strings.ToLower(a.Name())

	base := 0.7
	if table, ok := specialties[name]; ok {
		if v, ok := table[t.Kind]; ok {
			base = v
		}
	}

	var bonus float64
	if t.RequiresCode {
		switch name {
		case "codex":
			bonus += 0.25
		case "claude":
			bonus += 0.1
		}
	}
	if t.Kind == task.KindDebug && name == "codex" {
		bonus += 0.2
	}
	if t.Kind == task.KindCode && name == "codex" {
		bonus += 0.15
	}
	if t.RequiresCreativity && (name == "gemini" || name == "claude") {
		bonus += 0.1
	}
	if t.RequiresAnalysis && (name == "claude" || name == "gemini") {
		bonus += 0.1
	}

	variation := (rand.Float64() - 0.5) * 0.1
	value := base + bonus + variation
	if value > 1.0 {
		value = 1.0
	}

	descs, ok := specialtyDescriptions[name]
	if !ok {
		descs = []string{"general"}
	}
	n := min(len(descs), 2)
	reason := "Good at: " + strings.Join(descs[:n], ", ")

	return Score{Adapter: a, Value: value, Specialties: descs, Reason: reason}
}

// Explain renders a human-readable summary of a selection, matching the
// original's get_selection_explanation.
func Explain(t task.Task, selected []adapter.Adapter) string {
	var sb strings.Builder
	sb.WriteString("Task Kind: ")
	sb.WriteString(string(t.Kind))
	sb.WriteString("\n")
	sb.WriteString("Selected ")
	sb.WriteString(strconv.Itoa(len(selected)))
	sb.WriteString(" adapters:\n")
	for _, a := range selected {
		descs, ok := specialtyDescriptions[strings.ToLower(a.Name())]
		if !ok {
			descs = []string{"general"}
		}
		n := min(len(descs), 2)
		sb.WriteString("  - ")
		sb.WriteString(a.DisplayName())
		sb.WriteString(": ")
		sb.WriteString(strings.Join(descs[:n], ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
