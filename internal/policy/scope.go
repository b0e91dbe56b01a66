package policy

import "github.com/anthropics/foreman/internal/domain"

// ProposeScopeReduction suggests a smaller task list for a phase: the
// first half of the tasks (rounded up, never below one) are kept and the
// rest explicitly dropped. The proposal is reversible; the original list
// rides along and nothing is mutated or persisted here.
func ProposeScopeReduction(phaseID string, tasks []string) domain.ScopeReduction {
	keep := (len(tasks) + 1) / 2

	original := make([]string, len(tasks))
	copy(original, tasks)

	reduction := domain.ScopeReduction{
		PhaseID:       phaseID,
		OriginalTasks: original,
		ReducedTasks:  append([]string(nil), original[:keep]...),
		DroppedTasks:  append([]string(nil), original[keep:]...),
	}
	return reduction
}
