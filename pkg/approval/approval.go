// Package approval scores proposed actions for importance and gates
// anything above a threshold behind a user callback (spec §2 "Approval
// engine", SPEC_FULL.md §C.1), ported from original_source's
// orchestration/approval.py.
package approval

import (
	"context"
	"regexp"
	"strings"
)

// ImportanceLevel ranks how much scrutiny an action needs before it runs.
type ImportanceLevel string

const (
	ImportanceLow      ImportanceLevel = "low"
	ImportanceMedium   ImportanceLevel = "medium"
	ImportanceHigh     ImportanceLevel = "high"
	ImportanceCritical ImportanceLevel = "critical"
)

// Status is the outcome of an approval request.
type Status string

const (
	StatusAutoApproved Status = "auto_approved"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusModified     Status = "modified"
	StatusPending      Status = "pending"
)

// ActionKind classifies the operation an Action proposes.
type ActionKind string

const (
	ActionFileCreate     ActionKind = "file_create"
	ActionFileModify     ActionKind = "file_modify"
	ActionFileDelete     ActionKind = "file_delete"
	ActionCommandExecute ActionKind = "command_execute"
	ActionAPICall        ActionKind = "api_call"
	ActionConfigChange   ActionKind = "config_change"
	ActionInstallPackage ActionKind = "install_package"
	ActionSuggestion     ActionKind = "suggestion"
)

// Vote is one adapter's stance on a proposed action.
type Vote struct {
	AdapterName string
	Approves    bool
	Confidence  float64
	Reasoning   string
}

// Action is a proposed operation awaiting approval.
type Action struct {
	Kind        ActionKind
	Description string

	FilesToCreate  []string
	FilesToModify  []string
	FilesToDelete  []string
	Commands       []string

	ModifiesFiles      bool
	ExecutesCommands   bool
	HasDestructiveOp   bool
	Reversible         bool

	Votes []Vote
}

// TotalConfidence averages the confidence of approving votes over all
// votes cast (original's total_confidence: zero with no approving votes).
func (a Action) TotalConfidence() float64 {
	if len(a.Votes) == 0 {
		return 0
	}
	var sum float64
	var approving int
	for _, v := range a.Votes {
		if v.Approves {
			sum += v.Confidence
			approving++
		}
	}
	if approving == 0 {
		return 0
	}
	return sum / float64(len(a.Votes))
}

// ApprovalRatio is the fraction of votes that approve.
func (a Action) ApprovalRatio() float64 {
	if len(a.Votes) == 0 {
		return 0
	}
	var approving int
	for _, v := range a.Votes {
		if v.Approves {
			approving++
		}
	}
	return float64(approving) / float64(len(a.Votes))
}

// Result is the engine's decision for one Action.
type Result struct {
	Status       Status
	Action       Action
	UserFeedback string
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)\brm\s+.*\*`),
	regexp.MustCompile(`(?i)\bsudo\b`),
	regexp.MustCompile(`(?i)\bchmod\s+777\b`),
	regexp.MustCompile(`(?i)\bdrop\s+database\b`),
	regexp.MustCompile(`(?i)\btruncate\b`),
	regexp.MustCompile(`(?i)\bformat\b`),
	regexp.MustCompile(`(?i)\bfdisk\b`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
}

var sensitiveFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.env`),
	regexp.MustCompile(`(?i)\.git/`),
	regexp.MustCompile(`(?i)\.ssh/`),
	regexp.MustCompile(`(?i)credentials`),
	regexp.MustCompile(`(?i)secrets?\.ya?ml`),
	regexp.MustCompile(`(?i)config\.ya?ml`),
	regexp.MustCompile(`(?i)package-lock\.json`),
	regexp.MustCompile(`(?i)yarn\.lock`),
}

// Callback is invoked for actions above the auto-approve threshold.
type Callback func(ctx context.Context, action Action, importance ImportanceLevel) Result

// Engine scores and gates proposed actions (spec §2, SPEC_FULL.md §C.1).
type Engine struct {
	AutoApproveLow    bool
	AutoApproveMedium bool
	Callback          Callback
}

// New constructs an Engine with the original's defaults: low-importance
// actions auto-approve, medium does not.
func New() *Engine {
	return &Engine{AutoApproveLow: true}
}

// SetCallback installs the approval-UI callback.
func (e *Engine) SetCallback(cb Callback) { e.Callback = cb }

// CalculateImportance scores an action from its flags, file/command
// counts, sensitivity hits, and AI-consensus ratio (original's
// calculate_importance, values and thresholds carried over exactly).
func (e *Engine) CalculateImportance(a Action) ImportanceLevel {
	var score float64

	if a.ModifiesFiles {
		score += 2
	}
	if len(a.FilesToCreate) > 0 {
		score += float64(len(a.FilesToCreate)) * 0.5
	}
	if len(a.FilesToModify) > 0 {
		score += float64(len(a.FilesToModify)) * 1
		for _, f := range a.FilesToModify {
			if isSensitiveFile(f) {
				score += 2
			}
		}
	}
	if len(a.FilesToDelete) > 0 {
		score += float64(len(a.FilesToDelete)) * 2
	}

	if a.ExecutesCommands {
		score += 2
		for _, cmd := range a.Commands {
			if isDangerousCommand(cmd) {
				score += 3
			}
		}
	}

	if a.HasDestructiveOp {
		score += 3
	}

	if !a.Reversible {
		score += 2
	}

	if len(a.Votes) > 0 {
		ratio := a.ApprovalRatio()
		switch {
		case ratio < 0.5:
			score += 2
		case ratio < 0.8:
			score += 1
		}
	}

	switch {
	case score <= 1:
		return ImportanceLow
	case score <= 3:
		return ImportanceMedium
	case score <= 5:
		return ImportanceHigh
	default:
		return ImportanceCritical
	}
}

func isSensitiveFile(filepath string) bool {
	lower := strings.ToLower(filepath)
	for _, p := range sensitiveFilePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func isDangerousCommand(command string) bool {
	lower := strings.ToLower(command)
	for _, p := range dangerousPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// RequestApproval scores a, auto-approves at or below the configured
// thresholds, otherwise defers to the callback, and finally falls back
// to auto-approving anything below HIGH (original's request_approval).
func (e *Engine) RequestApproval(ctx context.Context, a Action) Result {
	importance := e.CalculateImportance(a)

	if importance == ImportanceLow && e.AutoApproveLow {
		return Result{Status: StatusAutoApproved, Action: a}
	}
	if importance == ImportanceMedium && e.AutoApproveMedium {
		return Result{Status: StatusAutoApproved, Action: a}
	}

	if e.Callback != nil {
		return e.Callback(ctx, a, importance)
	}

	if importance == ImportanceHigh || importance == ImportanceCritical {
		return Result{Status: StatusPending, Action: a}
	}
	return Result{Status: StatusAutoApproved, Action: a}
}

var (
	fileCreatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)create\s*(?:file|files?)?\s*[:\s]+([^\n]+)`),
		regexp.MustCompile(`생성[:\s]+([^\n]+)`),
	}
	commandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)run[:\s]+` + "`" + `([^` + "`" + `]+)` + "`"),
		regexp.MustCompile(`(?i)execute[:\s]+` + "`" + `([^` + "`" + `]+)` + "`"),
		regexp.MustCompile(`실행[:\s]+` + "`" + `([^` + "`" + `]+)` + "`"),
		regexp.MustCompile("(?is)```(?:bash|sh|shell)\n([^`]+)```"),
	}
	installPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)npm\s+install\s+([^\n]+)`),
		regexp.MustCompile(`(?i)pip\s+install\s+([^\n]+)`),
		regexp.MustCompile(`(?i)yarn\s+add\s+([^\n]+)`),
	}
)

// ExtractActions scans an adapter response for imperative cues (file
// creation, command execution, package installs) and returns the
// corresponding proposed Actions (original's extract_actions_from_response).
func ExtractActions(response string) []Action {
	var actions []Action

	var filesToCreate []string
	for _, p := range fileCreatePatterns {
		for _, m := range p.FindAllStringSubmatch(response, -1) {
			filesToCreate = append(filesToCreate, strings.TrimSpace(m[1]))
		}
	}
	if len(filesToCreate) > 0 {
		if len(filesToCreate) > 10 {
			filesToCreate = filesToCreate[:10]
		}
		actions = append(actions, Action{
			Kind:          ActionFileCreate,
			Description:   "Create files",
			FilesToCreate: filesToCreate,
			ModifiesFiles: true,
			Reversible:    true,
		})
	}

	var commands []string
	for _, p := range commandPatterns {
		for _, m := range p.FindAllStringSubmatch(response, -1) {
			commands = append(commands, strings.TrimSpace(m[1]))
		}
	}
	if len(commands) > 0 {
		if len(commands) > 10 {
			commands = commands[:10]
		}
		action := Action{
			Kind:             ActionCommandExecute,
			Description:      "Execute commands",
			Commands:         commands,
			ExecutesCommands: true,
			Reversible:       false,
		}
		for _, cmd := range commands {
			if isDangerousCommand(cmd) {
				action.HasDestructiveOp = true
				break
			}
		}
		actions = append(actions, action)
	}

	for _, p := range installPatterns {
		matches := p.FindAllStringSubmatch(response, -1)
		if len(matches) == 0 {
			continue
		}
		var packages []string
		for _, m := range matches {
			packages = append(packages, strings.TrimSpace(m[1]))
		}
		if len(packages) > 5 {
			packages = packages[:5]
		}
		var commandList []string
		for _, pkg := range packages {
			commandList = append(commandList, "Install: "+pkg)
		}
		actions = append(actions, Action{
			Kind:             ActionInstallPackage,
			Description:      "Install packages: " + strings.Join(packages, ", "),
			ExecutesCommands: true,
			Reversible:       true,
			Commands:         commandList,
		})
		break
	}

	return actions
}
