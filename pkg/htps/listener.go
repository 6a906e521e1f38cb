package htps

// SearchListener is an observer: a set of optional callbacks invoked at
// well-defined points in the search loop. Every field is nil-checked
// before being invoked, so an embedder only needs to set the callbacks it
// cares about.
type SearchListener struct {
	// OnExpansionBatch fires after every ExpandAndBackup call with the
	// number of expansions just merged.
	OnExpansionBatchFn func(s *Searcher, count int)

	// OnProofFound fires once, the first time the root becomes solved.
	OnProofFoundFn func(s *Searcher)

	// OnDone fires once, at the end of the ExpandAndBackup call after which
	// IsDone first reports true. It does not fire when TheoremsToExpand is
	// what ends the search (no goal left to expand).
	OnDoneFn func(s *Searcher)

	// OnCycleKilled fires whenever find_leaves_to_expand kills a tactic
	// because of a cycle.
	OnCycleKilledFn func(s *Searcher, goalKey string, tacticIdx int)
}

func (l *SearchListener) OnExpansionBatch(s *Searcher, count int) {
	if l != nil && l.OnExpansionBatchFn != nil {
		l.OnExpansionBatchFn(s, count)
	}
}

func (l *SearchListener) OnProofFound(s *Searcher) {
	if l != nil && l.OnProofFoundFn != nil {
		l.OnProofFoundFn(s)
	}
}

func (l *SearchListener) OnDone(s *Searcher) {
	if l != nil && l.OnDoneFn != nil {
		l.OnDoneFn(s)
	}
}

func (l *SearchListener) OnCycleKilled(s *Searcher, goalKey string, tacticIdx int) {
	if l != nil && l.OnCycleKilledFn != nil {
		l.OnCycleKilledFn(s, goalKey, tacticIdx)
	}
}
