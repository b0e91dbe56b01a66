// Package domain defines the core types for the foreman execution governor.
package domain

import "fmt"

// Tier is a cost/capability rung for a generation or review agent,
// ordered cheapest to most expensive.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// tierOrder lists tiers by ascending cost.
var tierOrder = []Tier{TierLow, TierMid, TierHigh}

// Rank returns the tier's position in the cost order (0 = cheapest),
// or -1 for an unknown tier.
func (t Tier) Rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// NextTier returns the next-higher tier, or false at the top.
func NextTier(t Tier) (Tier, bool) {
	r := t.Rank()
	if r < 0 || r >= len(tierOrder)-1 {
		return "", false
	}
	return tierOrder[r+1], true
}

// Tiers returns all tiers in ascending cost order.
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", NewGovernorError(ErrTierUnknown.Code, fmt.Sprintf("unknown tier %q", s))
	}
	return t, nil
}

// SafetyProfile controls which routing entries are visible.
type SafetyProfile string

const (
	// SafetyNormal makes all entries visible.
	SafetyNormal SafetyProfile = "normal"
	// SafetyStrict hides entries that are not safety compatible.
	SafetyStrict SafetyProfile = "strict"
)

// ParseSafetyProfile converts a string into a SafetyProfile.
func ParseSafetyProfile(s string) (SafetyProfile, error) {
	switch SafetyProfile(s) {
	case SafetyNormal:
		return SafetyNormal, nil
	case SafetyStrict:
		return SafetyStrict, nil
	}
	return "", NewGovernorError(ErrConfigInvalid.Code, fmt.Sprintf("unknown safety profile %q", s))
}

// BudgetInputs carries the cap/used pairs for every budget dimension.
// All values are non-negative; a non-positive cap means the dimension
// is unconstrained.
type BudgetInputs struct {
	TokenCap         int64
	TokensUsed       int64
	MaxContextChars  int64
	ContextCharsUsed int64
	MaxSotChars      int64
	SotCharsUsed     int64
}

// PhaseLoopState tracks one phase's attempt cycle. It lives only in the
// run coordinator's memory and is lost on crash by design.
type PhaseLoopState struct {
	PhaseID             string
	IterationsUsed      int
	ConsecutiveFailures int
	EscalationsUsed     int
	ReplanAttempted     bool
}

// StuckReason is the caller-supplied code describing why a phase is stuck.
type StuckReason string

const (
	ReasonBudgetExceeded   StuckReason = "budget_exceeded"
	ReasonOutputTruncation StuckReason = "output_truncation"
	ReasonRepeatedFailures StuckReason = "repeated_failures"
)

// Valid reports whether r is a known stuck reason.
func (r StuckReason) Valid() bool {
	switch r {
	case ReasonBudgetExceeded, ReasonOutputTruncation, ReasonRepeatedFailures:
		return true
	}
	return false
}

// StuckDecision is the policy's verdict for a stuck phase.
type StuckDecision string

const (
	DecisionReplan        StuckDecision = "replan"
	DecisionEscalateModel StuckDecision = "escalate_model"
	DecisionReduceScope   StuckDecision = "reduce_scope"
	DecisionNeedsHuman    StuckDecision = "needs_human"
	DecisionStop          StuckDecision = "stop"
	DecisionContinue      StuckDecision = "continue"
)

// IsTerminal reports whether the decision ends the phase.
func (d StuckDecision) IsTerminal() bool {
	return d == DecisionNeedsHuman || d == DecisionStop
}

// RoutingEntry describes one agent tier available to a run.
type RoutingEntry struct {
	Tier              Tier    `json:"tier"`
	ModelID           string  `json:"model_id"`
	Provider          string  `json:"provider"`
	MaxOutputTokens   int64   `json:"max_output_tokens"`
	MaxContextChars   int64   `json:"max_context_chars"`
	CostPerUnitInput  float64 `json:"cost_per_unit_input"`
	CostPerUnitOutput float64 `json:"cost_per_unit_output"`
	SafetyCompatible  bool    `json:"safety_compatible"`
}

// RoutingSnapshot is the immutable per-run tier catalog. Entries are
// unique per tier and ordered by ascending cost.
type RoutingSnapshot struct {
	SnapshotID    string         `json:"snapshot_id"`
	RunID         string         `json:"run_id"`
	CreatedAtUnix int64          `json:"created_at_unix"`
	ExpiresAtUnix int64          `json:"expires_at_unix,omitempty"`
	Entries       []RoutingEntry `json:"entries"`
	SchemaVersion int            `json:"schema_version"`
}

// ViolationKind classifies a patch quality violation.
type ViolationKind string

const (
	ViolationTruncation           ViolationKind = "truncation"
	ViolationMalformedHunk        ViolationKind = "malformed_hunk"
	ViolationIncompleteDiff       ViolationKind = "incomplete_diff"
	ViolationUnclosedQuote        ViolationKind = "unclosed_quote"
	ViolationConflictMarker       ViolationKind = "merge_conflict_marker"
	ViolationSyntaxError          ViolationKind = "syntax_error"
	ViolationSymbolLoss           ViolationKind = "symbol_loss"
	ViolationStructuralDivergence ViolationKind = "structural_divergence"
)

// PatchViolation is one defect found by the patch quality gate.
// FilePath is empty when the violation is not tied to a single file.
type PatchViolation struct {
	Kind     ViolationKind `json:"kind"`
	Detail   string        `json:"detail"`
	FilePath string        `json:"file_path,omitempty"`
}

func (v PatchViolation) String() string {
	if v.FilePath == "" {
		return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", v.Kind, v.FilePath, v.Detail)
}

// ChangeOp describes what a patch does to one file.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpModify ChangeOp = "modify"
	OpDelete ChangeOp = "delete"
)

// FileChange holds the pre- and post-patch content of one file.
type FileChange struct {
	Path       string
	Op         ChangeOp
	OldContent string
	NewContent string
}

// Patch is a proposed change: the raw unified diff plus the resolved
// per-file contents the gate validates.
type Patch struct {
	RawDiff string
	Files   []FileChange
}

// ChangeSummary records what a phase changed, with bounded detail.
type ChangeSummary struct {
	FilesCreated  int      `json:"files_created"`
	FilesModified int      `json:"files_modified"`
	FilesDeleted  int      `json:"files_deleted"`
	KeyChanges    []string `json:"key_changes,omitempty"`
	Summary       string   `json:"summary"`
}

// VerificationSummary records what a phase verified, with bounded detail.
type VerificationSummary struct {
	TestsPassed       int      `json:"tests_passed"`
	TestsFailed       int      `json:"tests_failed"`
	ProbesExecuted    []string `json:"probes_executed,omitempty"`
	ContractsVerified []string `json:"contracts_verified,omitempty"`
	Summary           string   `json:"summary"`
}

// PhaseProof is the append-once record of one phase's outcome.
// ErrorSummary is non-empty exactly when Success is false.
type PhaseProof struct {
	ProofID         string              `json:"proof_id"`
	RunID           string              `json:"run_id"`
	PhaseID         string              `json:"phase_id"`
	CreatedAtUnix   int64               `json:"created_at_unix"`
	CompletedAtUnix int64               `json:"completed_at_unix"`
	DurationSeconds float64             `json:"duration_seconds"`
	Changes         ChangeSummary       `json:"changes"`
	Verification    VerificationSummary `json:"verification"`
	Success         bool                `json:"success"`
	ErrorSummary    string              `json:"error_summary,omitempty"`
	SchemaVersion   int                 `json:"schema_version"`
}

// ScopeReduction is a reversible proposal to shrink a phase's task list.
// The original list is preserved so the caller can revert.
type ScopeReduction struct {
	PhaseID       string   `json:"phase_id"`
	OriginalTasks []string `json:"original_tasks"`
	ReducedTasks  []string `json:"reduced_tasks"`
	DroppedTasks  []string `json:"dropped_tasks"`
}

// AgentResult is the normalized response from an external agent
// invocation. When a provider does not report the prompt/completion
// split, SplitReported is false and only TokensUsed is meaningful;
// the split is never guessed.
type AgentResult struct {
	PatchContent     string
	TokensUsed       int64
	PromptTokens     int64
	CompletionTokens int64
	SplitReported    bool
	ModelUsed        string
	Success          bool
	ErrorMessage     string
}

// RunStatus is the lifecycle state of a governed run.
type RunStatus string

const (
	RunRunning    RunStatus = "running"
	RunStopped    RunStatus = "stopped"
	RunNeedsHuman RunStatus = "needs_human"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// RunRecord is the durable registry row for one run.
type RunRecord struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	SafetyProfile SafetyProfile `json:"safety_profile"`
	StateVersion  int64         `json:"state_version"`
	CreatedAtUnix int64         `json:"created_at_unix"`
	UpdatedAtUnix int64         `json:"updated_at_unix"`
}

// DecisionRecord is the durable audit row for one policy decision.
type DecisionRecord struct {
	ID                  string        `json:"id"`
	RunID               string        `json:"run_id"`
	PhaseID             string        `json:"phase_id"`
	Decision            StuckDecision `json:"decision"`
	Reason              StuckReason   `json:"reason"`
	BudgetRemaining     float64       `json:"budget_remaining"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	EscalationsUsed     int           `json:"escalations_used"`
	Note                string        `json:"note,omitempty"`
	CreatedAtUnix       int64         `json:"created_at_unix"`
}

// UsageDelta records the token usage of one agent attempt.
type UsageDelta struct {
	ID               int64  `json:"id"`
	RunID            string `json:"run_id"`
	PhaseID          string `json:"phase_id"`
	Tier             Tier   `json:"tier"`
	ModelUsed        string `json:"model_used"`
	TokensUsed       int64  `json:"tokens_used"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	SplitReported    bool   `json:"split_reported"`
	CreatedAtUnix    int64  `json:"created_at_unix"`
}

// PhaseEvent is one entry in the per-run ordered event log.
type PhaseEvent struct {
	ID            int64  `json:"id"`
	RunID         string `json:"run_id"`
	PhaseID       string `json:"phase_id"`
	SeqNo         int64  `json:"seq_no"`
	EventType     string `json:"event_type"`
	PayloadJSON   string `json:"payload_json"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}
