package htps

import "time"

// Tactic is a single proof step: applying it to a Goal produces zero or more
// child Goals (zero children means the tactic closes the Goal outright).
// Tactics are immutable values; a Node tracks per-tactic mutable state
// (killed, counts, ...) separately.
type Tactic struct {
	UniqueString string
	// IsValid is false for a tactic the expander reports as malformed
	// (failed to parse/typecheck); invalid tactics are killed on sight and
	// never contribute to search.
	IsValid bool
	Duration time.Duration
}

// Expansion is what an external expander returns for one requested Goal:
// either a list of tactics (each with its resulting child goals) or an
// outright failure. An empty child list for a given tactic means that
// tactic solves the goal immediately; an empty tactic list without Error is
// rejected as an invalid expansion.
type Expansion struct {
	Goal *Goal

	// Error, when non-nil, means the expander failed to produce any
	// tactics for this goal (e.g. a timeout or a parser crash upstream).
	// The resulting Node is marked permanently unsolvable (log critic at
	// MinLogValue) rather than retried.
	Error error

	Tactics  []Tactic
	Children [][]*Goal // Children[i] are the child goals of Tactics[i]
	Priors   []float64 // policy prior for Tactics[i], same length as Tactics
	// LogCritic is the model's log-probability that Goal is provable at
	// all, independent of any particular tactic.
	LogCritic float64

	// Effects are the hyper-edges observed while producing this expansion,
	// recorded on Goal's Node for later effect-sample extraction. Defaults
	// to one effect per valid tactic (the tactic's own hyper-edge) when the
	// expander does not supply its own list.
	Effects []EffectSample
}
