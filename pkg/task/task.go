// Package task implements the deterministic prompt classifier (spec
// §4.5), ported from original_source's orchestration/task_analyzer.py.
// Where the original relies on Python's Unicode-aware \b word boundary
// to match both Latin and Korean keyword patterns, this port uses plain
// case-folded substring matching instead: Go's regexp (RE2) defines \b
// in ASCII terms only, so a \b-anchored pattern around a Korean keyword
// never matches in Go — substring containment is the faithful
// equivalent for a multilingual cue list, not a departure from it.
package task

import (
	"regexp"
	"strings"
)

// Kind is one of the task classifications the analyzer assigns.
type Kind string

const (
	KindCode       Kind = "code"
	KindDesign     Kind = "design"
	KindAnalysis   Kind = "analysis"
	KindCreative   Kind = "creative"
	KindResearch   Kind = "research"
	KindDebug      Kind = "debug"
	KindExplain    Kind = "explain"
	KindGeneral    Kind = "general"
	KindSimpleChat Kind = "simple_chat"
)

// Task is the analyzer's output (spec §3).
type Task struct {
	Prompt              string
	Kind                Kind
	Complexity          float64
	Keywords            []string
	RequiresCode        bool
	RequiresCreativity  bool
	RequiresAnalysis    bool
	SuggestedRounds     int
	SuggestedAICount    int
}

// IsComplex reports complexity > 0.6.
func (t Task) IsComplex() bool { return t.Complexity > 0.6 }

// IsSimple reports complexity < 0.3.
func (t Task) IsSimple() bool { return t.Complexity < 0.3 }

// RequiresMultiAI is the derived predicate from spec §3: false for
// SIMPLE_CHAT, low complexity, or single-round tasks.
func (t Task) RequiresMultiAI() bool {
	if t.Kind == KindSimpleChat {
		return false
	}
	if t.Complexity < 0.3 {
		return false
	}
	if t.SuggestedRounds <= 1 {
		return false
	}
	return true
}

// simpleChatCues is the multilingual greeting/ack cue set (spec §4.5.2).
var simpleChatCues = []string{
	"안녕", "하이", "hi", "hello", "헬로", "방가", "반가",
	"안녕하세요", "good morning", "good night", "잘자",
	"고마워", "감사", "thx", "thanks", "thank you", "thank",
	"응", "네", "예", "아니", "노", "ok", "okay", "yes", "no", "sure",
	"ㅇㅇ", "ㄴㄴ", "그래", "알겠어",
	"ㅎㅎ", "ㅋㅋ", "ㅠㅠ", "ㅜㅜ", "ㅎ", "ㅋ", "ㅠ", "ㅜ",
	"오", "와", "헐", "대박",
	"bye", "잘가", "바이", "굿나잇", "굿모닝",
	"뭐해", "뭐야", "왜", "어때", "좋아", "싫어",
}

// technicalCues override a simple-chat cue match: their presence means
// the prompt is substantive despite also containing a greeting word.
var technicalCues = []string{
	"코드", "code", "함수", "function", "구현", "implement",
	"버그", "bug", "에러", "error", "디버그", "debug",
	"설계", "design", "아키텍처", "architecture",
	"분석", "analyze", "비교", "compare",
	"만들어", "작성", "생성", "create", "make", "build",
}

// kindPriority lists the non-SIMPLE_CHAT kinds scored from kindCues in the
// tie-break priority used by detectKind, from highest to lowest, per spec
// §4.5.3 (DEBUG > CODE > DESIGN > RESEARCH > ANALYSIS > CREATIVE >
// EXPLAIN).
var kindPriority = []Kind{KindDebug, KindCode, KindDesign, KindResearch, KindAnalysis, KindCreative, KindExplain}

var kindCues = map[Kind][]string{
	KindCode: {
		"코드", "code", "implement", "구현", "function", "함수", "class", "클래스",
		"프로그램", "program", "script", "스크립트", "algorithm", "알고리즘",
		"python", "javascript", "typescript", "java", "rust", "go",
	},
	KindDesign: {
		"설계", "design", "architecture", "아키텍처", "structure", "구조",
		"api", "인터페이스", "interface", "schema", "스키마",
		"시스템", "system", "database", "데이터베이스",
	},
	KindAnalysis: {
		"분석", "analyze", "analysis", "평가", "evaluate", "review", "리뷰",
		"비교", "compare", "comparison", "장단점", "pros", "cons",
		"최적화", "optimize", "performance", "성능",
	},
	KindCreative: {
		"아이디어", "idea", "창의", "creative", "brainstorm", "브레인스토밍",
		"새로운", "new", "혁신", "innovative", "unique", "독특",
	},
	KindResearch: {
		"조사", "research", "찾아", "find", "search", "검색",
		"트렌드", "trend", "최신", "latest", "현재", "current",
	},
	KindDebug: {
		"버그", "bug", "에러", "error", "오류", "fix", "수정", "debug", "디버그",
		"안되", "doesn't work", "not working", "문제", "problem", "issue",
	},
	KindExplain: {
		"설명", "explain", "explanation", "뭐야", "what is", "어떻게", "how",
		"이해", "understand", "meaning", "의미",
	},
}

var complexityBoosters = []string{
	"복잡", "complex", "advanced", "고급", "sophisticated",
	"전체", "entire", "complete", "전부", "all", "모든",
	"통합", "integrate", "integration", "연동",
	"대규모", "large-scale", "enterprise", "엔터프라이즈",
}

var complexityReducers = []string{
	"간단", "simple", "basic", "기본", "쉬운", "easy",
	"하나", "one", "single", "단일",
	"예시", "example", "샘플", "sample",
}

// stopwords excludes common function words from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "can": true, "to": true, "of": true, "in": true, "for": true,
	"on": true, "with": true, "at": true, "by": true, "from": true, "as": true, "or": true,
	"and": true, "but": true, "if": true, "then": true, "else": true, "when": true, "where": true,
	"what": true, "which": true, "who": true, "how": true, "why": true, "all": true, "each": true,
	"every": true, "both": true, "few": true, "more": true, "most": true, "other": true,
	"some": true, "such": true, "no": true, "not": true, "only": true, "same": true, "so": true,
	"than": true, "too": true, "very": true, "just": true, "also": true, "now": true, "here": true,
	"there": true, "this": true, "that": true, "these": true, "those": true,
	"해": true, "줘": true, "해줘": true, "주세요": true, "하세요": true, "좀": true, "것": true,
	"거": true, "이": true, "그": true,
}

// wordPattern tokenizes on Unicode letters/numbers rather than \w, since
// Go's regexp defines \w in ASCII terms only — \w+ would silently match
// nothing in Korean text, where the original's Python \w (Unicode-aware
// by default) tokenizes normally.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

const simpleMaxLength = 15

// Analyze classifies prompt into a Task.
func Analyze(prompt string) Task {
	trimmed := strings.ToLower(strings.TrimSpace(prompt))

	if isSimpleChat(trimmed) {
		return Task{
			Prompt:           prompt,
			Kind:             KindSimpleChat,
			Complexity:       0.1,
			Keywords:         nil,
			SuggestedRounds:  1,
			SuggestedAICount: 1,
		}
	}

	kind := detectKind(trimmed)
	keywords := extractKeywords(trimmed)
	complexity := calculateComplexity(trimmed, keywords)

	return Task{
		Prompt:             prompt,
		Kind:               kind,
		Complexity:         complexity,
		Keywords:           keywords,
		RequiresCode:       anyCueMatches(trimmed, kindCues[KindCode]),
		RequiresCreativity: anyCueMatches(trimmed, kindCues[KindCreative]),
		RequiresAnalysis:   anyCueMatches(trimmed, kindCues[KindAnalysis]),
		SuggestedRounds:    suggestRounds(complexity, kind),
		SuggestedAICount:   suggestAICount(complexity),
	}
}

func isSimpleChat(prompt string) bool {
	if prompt == "" {
		return true
	}
	if len([]rune(prompt)) <= simpleMaxLength {
		return true
	}

	for _, cue := range simpleChatCues {
		if strings.Contains(prompt, cue) && len([]rune(prompt)) < 30 && !anyCueMatches(prompt, technicalCues) {
			return true
		}
	}

	if len(strings.Fields(prompt)) <= 3 {
		return true
	}

	return false
}

func anyCueMatches(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

func cueScore(text string, cues []string) int {
	score := 0
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			score++
		}
	}
	return score
}

func detectKind(prompt string) Kind {
	bestKind := KindGeneral
	bestScore := 0

	// Iterate in priority order so ties resolve to the higher-priority
	// kind (first one found with the max score wins).
	for _, kind := range kindPriority {
		score := cueScore(prompt, kindCues[kind])
		if score > bestScore {
			bestScore = score
			bestKind = kind
		}
	}

	if bestScore == 0 {
		return KindGeneral
	}
	return bestKind
}

func extractKeywords(prompt string) []string {
	words := wordPattern.FindAllString(prompt, -1)

	seen := make(map[string]bool, len(words))
	var keywords []string
	for _, w := range words {
		if stopwords[w] || len([]rune(w)) <= 2 {
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}

func calculateComplexity(prompt string, keywords []string) float64 {
	score := 0.5

	wordCount := len(strings.Fields(prompt))
	switch {
	case wordCount > 50:
		score += 0.15
	case wordCount > 20:
		score += 0.08
	case wordCount < 10:
		score -= 0.10
	}

	switch {
	case len(keywords) > 7:
		score += 0.10
	case len(keywords) > 4:
		score += 0.05
	}

	if anyCueMatches(prompt, complexityBoosters) {
		score += 0.20
	}
	if anyCueMatches(prompt, complexityReducers) {
		score -= 0.20
	}

	typeCount := 0
	for _, kind := range []Kind{KindCode, KindDesign, KindAnalysis} {
		if anyCueMatches(prompt, kindCues[kind]) {
			typeCount++
		}
	}
	if typeCount > 1 {
		score += 0.10 * float64(typeCount-1)
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func suggestRounds(complexity float64, kind Kind) int {
	rounds := 3

	switch {
	case complexity > 0.7:
		rounds += 2
	case complexity > 0.4:
		rounds += 1
	}

	switch kind {
	case KindDesign, KindAnalysis:
		rounds++
	case KindExplain, KindGeneral:
		rounds--
	}

	if rounds < 2 {
		rounds = 2
	}
	if rounds > 7 {
		rounds = 7
	}
	return rounds
}

func suggestAICount(complexity float64) int {
	switch {
	case complexity < 0.3:
		return 2
	case complexity < 0.6:
		return 3
	default:
		return 4
	}
}
