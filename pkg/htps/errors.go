package htps

import "github.com/pkg/errors"

// Sentinel error kinds. Compare with errors.Is; wrap with errors.Wrap /
// errors.Wrapf to attach goal/tactic context without losing comparability.
var (
	// ErrInvalidExpansion: priors don't sum to ~1, log_critic > 0, tactic
	// arity mismatch, or an empty tactic list on a success-variant expansion.
	ErrInvalidExpansion = errors.New("htps: invalid expansion")

	// ErrNoValidTactic: the policy kernel was asked to score a node whose
	// tactics are all masked (killed or invalid).
	ErrNoValidTactic = errors.New("htps: no valid tactic")

	// ErrPropagateInconsistency: a graph invariant check failed —
	// unexplored_theorems is non-empty yet the root has no expandable
	// tactic, a killed tactic is marked expandable, ConsistencyCheck found a
	// wrong solved flag, virtual counts remain after backup, or a backup
	// never reached the root. Always fatal; indicates a bug in the
	// kill/propagate/backup bookkeeping, not a recoverable search state.
	ErrPropagateInconsistency = errors.New("htps: propagate inconsistency")

	// ErrAlreadyStarted: SetRoot called after the search began expanding.
	ErrAlreadyStarted = errors.New("htps: search already started")

	// ErrNotFound: a queried goal has no corresponding node.
	ErrNotFound = errors.New("htps: goal not found")

	// ErrNotSolved: a minimal-proof query was made against an unsolved goal.
	ErrNotSolved = errors.New("htps: goal not solved")

	// ErrNotInProof: a query was made against a node outside the proof tree.
	ErrNotInProof = errors.New("htps: goal not in proof")

	// ErrBadAncestry: a node arriving in add_nodes is already present, or
	// its goal is not reachable from the root through a live ancestor edge.
	ErrBadAncestry = errors.New("htps: bad ancestry")
)

// errorsWrapf wraps a sentinel with formatted context while keeping it
// comparable via errors.Is.
func errorsWrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}
