package htps

import "math"

// Node is the per-goal state in the hypergraph. Created once by
// Graph.AddNodes and never removed afterward; only its tactics can be
// killed.
type Node struct {
	Goal *Goal

	Tactics           []Tactic
	ChildrenForTactic [][]*Goal
	Priors            []float64

	Killed   map[int]bool
	Solving  map[int]bool
	Expandable []bool

	LogW          []float64
	Counts        []int
	VirtualCounts []int
	resetMask     []bool // true until the tactic's first Update

	LogCriticValue float64
	OldCriticValue float64

	Effects []EffectSample

	Solved       bool
	IsSolvedLeaf bool
	InProofFlag  bool

	InMinimumProof       [3]bool
	MinimumProofSize     [3]float64 // -1 until set; Depth/Size are whole numbers, Time is seconds
	MinimumTactics       [3][]int
	MinimumTacticLength  [3][]float64 // per tactic, -1 until set

	// lastPolicy caches the probability vector from the most recent
	// ComputePolicy call; GetValue's argmax reads from here rather than
	// recomputing (mirrors the original's cached `policy` member).
	lastPolicy []float64
}

// NewNode validates and constructs a Node for a freshly expanded goal.
// Invalid tactics are killed immediately; every valid tactic with an empty
// child list solves the node at once, and a node whose valid tactics all
// have empty child lists is also a solved leaf.
func NewNode(goal *Goal, tactics []Tactic, childrenForTactic [][]*Goal, priors []float64, logCritic float64) (*Node, error) {
	if len(tactics) != len(childrenForTactic) || len(tactics) != len(priors) {
		return nil, errorsWrapf(ErrInvalidExpansion, "tactic/children/prior arity mismatch (%d/%d/%d)",
			len(tactics), len(childrenForTactic), len(priors))
	}
	if logCritic > 0 {
		return nil, errorsWrapf(ErrInvalidExpansion, "log_critic %.6f > 0", logCritic)
	}
	if len(tactics) > 0 {
		sum := 0.0
		for _, p := range priors {
			sum += p
		}
		if sum < 0.99 || sum > 1.01 {
			return nil, errorsWrapf(ErrInvalidExpansion, "priors sum to %.6f, want ~1", sum)
		}
	}

	n := &Node{
		Goal:              goal,
		Tactics:           tactics,
		ChildrenForTactic: childrenForTactic,
		Priors:            priors,
		Killed:            map[int]bool{},
		Solving:           map[int]bool{},
		Expandable:        make([]bool, len(tactics)),
		LogW:              make([]float64, len(tactics)),
		Counts:            make([]int, len(tactics)),
		VirtualCounts:     make([]int, len(tactics)),
		resetMask:         make([]bool, len(tactics)),
		LogCriticValue:    logCritic,
	}
	for i := range tactics {
		n.resetMask[i] = true
	}

	anyValid := false
	allEmptyChildren := len(tactics) > 0
	for i, t := range tactics {
		if !t.IsValid {
			n.Killed[i] = true
			continue
		}
		anyValid = true
		if len(childrenForTactic[i]) != 0 {
			allEmptyChildren = false
		}
	}

	if len(tactics) == 0 {
		// Bad node: no tactics at all (expander error variant).
		n.LogCriticValue = MinLogValue
		return n, nil
	}
	if !anyValid {
		n.OldCriticValue = n.LogCriticValue
		n.LogCriticValue = MinLogValue
		return n, nil
	}
	for i, t := range tactics {
		if t.IsValid && len(childrenForTactic[i]) == 0 {
			n.Solved = true
			n.Solving[i] = true
		}
	}
	n.IsSolvedLeaf = allEmptyChildren
	return n, nil
}

// IsBad reports whether every tactic is killed, or there are no tactics at
// all (the expander-error variant) — either way the node can never be
// solved from here.
func (n *Node) IsBad() bool {
	if len(n.Tactics) == 0 {
		return true
	}
	return len(n.Killed) == len(n.Tactics)
}

// IsTerminal reports whether the node is a leaf for simulation purposes:
// a solved leaf, or a node with no live tactics left.
func (n *Node) IsTerminal() bool {
	return n.IsSolvedLeaf || n.IsBad()
}

// KillTactic marks tactic i killed. Idempotent. Returns true the first time
// this call makes every tactic on the node killed, signalling the caller
// (Graph) to cascade the kill upward.
func (n *Node) KillTactic(i int) bool {
	if n.Killed[i] {
		return false
	}
	n.Killed[i] = true
	n.Expandable[i] = false
	if len(n.Killed) == len(n.Tactics) {
		n.OldCriticValue = n.LogCriticValue
		n.LogCriticValue = MinLogValue
		return true
	}
	return false
}

// SolvedBy records that tactic i solves this node (all its children are
// solved). Returns true the first time the node becomes solved, signalling
// the caller to propagate upward.
func (n *Node) SolvedBy(i int) bool {
	first := !n.Solved
	n.Solving[i] = true
	n.Solved = true
	return first
}

// ComputePolicy builds the q/prior/count vectors and delegates to the
// policy kernel. forceExpansion masks valid-but-non-expandable tactics when
// at least one valid tactic remains expandable (used by the selection path
// to avoid re-entering fully-explored subtrees). The result is cached for
// GetValue's argmax and returned indexed by tactic position (killed/masked
// entries are 0).
func (n *Node) ComputePolicy(pl *policy, params Params, forceExpansion bool) ([]float64, error) {
	k := len(n.Tactics)
	q := make([]float64, k)
	pi := make([]float64, k)
	counts := make([]int, k)

	anyExpandableValid := false
	for i := 0; i < k; i++ {
		if n.Killed[i] {
			continue
		}
		if n.Expandable[i] {
			anyExpandableValid = true
		}
	}

	for i := 0; i < k; i++ {
		pi[i] = n.Priors[i]
		full := n.Counts[i] + n.VirtualCounts[i]
		counts[i] = full

		if n.Killed[i] {
			q[i] = MinLogValue
			continue
		}

		if full > 0 {
			q[i] = n.LogW[i] - math.Log(float64(full))
		} else {
			q[i] = params.TacticInitValue
		}

		if n.Solving[i] {
			q[i] = n.solvedQValue(i, full, params.QValueSolved)
		}

		if forceExpansion && anyExpandableValid && !n.Expandable[i] {
			q[i] = MinLogValue
			counts[i] = 0
		}
	}

	p, err := pl.compute(q, pi, counts)
	if err != nil {
		return nil, err
	}
	n.lastPolicy = p
	return p, nil
}

// solvedQValue implements the QValueSolved enumeration. Each branch is
// explicit and non-fallthrough: a C++ switch with dropped `break`s would
// silently fall three of these cases into the next, which is almost
// certainly a bug rather than intentional fallthrough; this implementation
// gives each enum member its own, independent formula.
func (n *Node) solvedQValue(i, full int, mode QValueSolved) float64 {
	vc := float64(n.VirtualCounts[i])
	counts := float64(n.Counts[i])
	fullF := float64(full)
	switch mode {
	case OneOverCounts:
		return 1 / fullF
	case CountOverCounts:
		return counts / fullF
	case One:
		return 1
	case OneOverVirtualCounts:
		return 1 / (1 + vc)
	case OneOverCountsNoFPU:
		return 1 / math.Max(1, fullF)
	case CountOverCountsNoFPU:
		return math.Max(1, counts) / math.Max(1, fullF)
	default:
		return 1 / fullF
	}
}

// Update applies one backup value v to tactic i.
func (n *Node) Update(i int, v float64) {
	n.Counts[i]++
	if n.resetMask[i] {
		n.LogW[i] = v
		n.resetMask[i] = false
		return
	}
	n.LogW[i] = logaddexpOneSided(n.LogW[i], v)
}

// logaddexpOneSided computes log(exp(a) + exp(b)) in the one-sided form
// a + log1p(exp(b-a)). The form is exact for any a and b, but it is only
// guarded against overflow when a >= b; Update does not enforce that order.
func logaddexpOneSided(a, b float64) float64 {
	if a <= MinLogValue {
		return b
	}
	return a + math.Log1p(math.Exp(b-a))
}

// GetValue returns the node's current log-value estimate.
func (n *Node) GetValue() float64 {
	if n.Solved {
		return 0
	}
	if n.IsBad() {
		return MinLogValue
	}
	visits := 0
	for _, c := range n.Counts {
		visits += c
	}
	if visits == 0 {
		return math.Min(0, n.LogCriticValue)
	}
	if len(n.lastPolicy) == 0 {
		return math.Min(0, n.LogCriticValue)
	}
	best := argmax(n.lastPolicy)
	if n.Counts[best] == 0 {
		return math.Min(0, n.LogCriticValue)
	}
	return math.Min(0, n.LogW[best]-math.Log(float64(n.Counts[best])))
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// AddVirtualCount reserves k virtual visits on tactic i.
func (n *Node) AddVirtualCount(i, k int) {
	n.VirtualCounts[i] += k
}

// SubtractVirtualCount releases k virtual visits reserved on tactic i.
func (n *Node) SubtractVirtualCount(i, k int) {
	n.VirtualCounts[i] -= k
	if n.VirtualCounts[i] < 0 {
		n.VirtualCounts[i] = 0
	}
}

// HasVirtualCounts reports whether any tactic still carries virtual visits
// (invariant I3 checks this is false between public calls).
func (n *Node) HasVirtualCounts() bool {
	for _, vc := range n.VirtualCounts {
		if vc != 0 {
			return true
		}
	}
	return false
}

// RecordEffect appends an observed hyper-edge for later effect-sample
// extraction.
func (n *Node) RecordEffect(tactic Tactic, children []*Goal) {
	n.Effects = append(n.Effects, EffectSample{Goal: n.Goal, Tactic: tactic, Children: children})
}

// shouldSendTacticSample gates tactic-sample emission: solved, or total
// visits at or above the threshold.
func (n *Node) shouldSendTacticSample(threshold int) bool {
	if n.Solved {
		return true
	}
	sum := 0
	for _, c := range n.Counts {
		sum += c
	}
	return sum >= threshold
}

// effectSamples subsamples n.Effects at rate (Bernoulli per effect).
func (n *Node) effectSamples(g *rng, rate float64) []EffectSample {
	var out []EffectSample
	for _, e := range n.Effects {
		if g.bernoulli(rate) {
			out = append(out, e)
		}
	}
	return out
}

// criticSample subsamples a single critic-value observation for this node.
func (n *Node) criticSample(g *rng, rate float64) (CriticSample, bool) {
	if !g.bernoulli(rate) {
		return CriticSample{}, false
	}
	sum := 0
	for _, c := range n.Counts {
		sum += c
	}
	return CriticSample{
		Goal:      n.Goal,
		Value:     math.Exp(n.GetValue()),
		Solved:    n.Solved,
		Bad:       n.IsBad(),
		LogCritic: n.LogCriticValue,
		VisitSum:  sum,
	}, true
}

// tacticSamplesQConditioning implements the q-conditioning sample mode:
// tactics that solve, are invalid, or have enough visits each emit a
// sample with a closed-form q and a -1 target-pi placeholder.
func (n *Node) tacticSamplesQConditioning(threshold int, metric Metric) []TacticSample {
	var out []TacticSample
	for i, t := range n.Tactics {
		full := n.Counts[i] + n.VirtualCounts[i]
		switch {
		case n.Solving[i]:
			out = append(out, n.tacticSample(i, 1.0, -1, metric))
		case n.Killed[i] && !t.IsValid:
			out = append(out, n.tacticSample(i, 0.0, -1, metric))
		case full >= threshold:
			q := 0.0
			if n.resetMask[i] || full == 0 {
				q = 0
			} else {
				q = math.Exp(n.LogW[i]) / float64(full)
			}
			out = append(out, n.tacticSample(i, q, -1, metric))
		}
	}
	return out
}

// tacticSamplesRegular implements the regular (non-q-conditioning) sample
// mode.
func (n *Node) tacticSamplesRegular(params Params) []TacticSample {
	var out []TacticSample
	if !n.Solved {
		if len(n.lastPolicy) == 0 {
			return out
		}
		for i := range n.Tactics {
			if n.lastPolicy[i] > params.TacticPThreshold {
				out = append(out, n.tacticSample(i, n.lastPolicy[i], n.lastPolicy[i], params.Metric))
			}
		}
		return out
	}

	uniform := 1.0 / float64(len(n.Tactics))
	useMinimum := params.OnlyLearnBestTactics || params.NodeMask == MinimalProof
	if useMinimum {
		for _, i := range n.MinimumTactics[params.Metric] {
			out = append(out, n.tacticSample(i, uniform, uniform, params.Metric))
		}
		return out
	}
	for i := range n.Tactics {
		if n.Solving[i] {
			out = append(out, n.tacticSample(i, uniform, uniform, params.Metric))
		}
	}
	return out
}

func (n *Node) tacticSample(i int, q, targetPi float64, metric Metric) TacticSample {
	return TacticSample{
		Goal:     n.Goal,
		Tactic:   n.Tactics[i],
		Children: n.ChildrenForTactic[i],
		Q:        q,
		TargetPi: targetPi,
		InProof:  n.inProofMask(i, metric),
	}
}

// inProofMask reports i's proof-membership status for the single configured
// metric: in_minimum_proof is scoped to that metric only, not "minimizes any
// of the three".
func (n *Node) inProofMask(i int, metric Metric) InProof {
	if n.InMinimumProof[metric] {
		for _, mi := range n.MinimumTactics[metric] {
			if mi == i {
				return InMinimalProof
			}
		}
	}
	if n.InProofFlag {
		return IsInProof
	}
	return NotInProof
}

// TacticSamples dispatches between q-conditioning and regular mode, gated
// by should_send and NodeMask.
func (n *Node) TacticSamples(params Params, mask NodeMask) []TacticSample {
	if !n.shouldSendTacticSample(params.CountThreshold) {
		return nil
	}
	switch mask {
	case Solving:
		if len(n.Solving) == 0 {
			return nil
		}
	case Proof:
		if !n.InProofFlag {
			return nil
		}
	case MinimalProof:
		if !n.InMinimumProof[params.Metric] {
			return nil
		}
	}

	if params.TacticSampleQConditioning {
		return n.tacticSamplesQConditioning(params.CountThreshold, params.Metric)
	}
	return n.tacticSamplesRegular(params)
}
