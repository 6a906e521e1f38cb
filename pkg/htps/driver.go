package htps

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Searcher is the HTPS driver: it owns the graph, the in-flight simulations,
// and the selection/backup loop, and is the only type an embedder
// interacts with directly.
//
// A Searcher is single-threaded cooperative: TheoremsToExpand and
// ExpandAndBackup must never be called concurrently on the same instance.
// Between calls the caller is free to parallelize the external expander.
type Searcher struct {
	RunID uuid.UUID

	params Params
	pl     *policy
	graph  *Graph
	rng    *rng
	log    *zap.Logger
	listener *SearchListener

	simulations           []*Simulation
	simulationsForTheorem map[string][]*Simulation
	currentlyExpanding    map[string]bool
	backedUpHashes        map[string]bool

	expansionCount int
	done           bool
	started        bool
}

// SearcherOption configures optional Searcher fields at construction.
type SearcherOption func(*Searcher)

// WithLogger attaches a zap logger; the default is a no-op logger so the
// core library never forces logging configuration on an embedder.
func WithLogger(l *zap.Logger) SearcherOption {
	return func(s *Searcher) { s.log = l }
}

// WithListener attaches a SearchListener observer.
func WithListener(l *SearchListener) SearcherOption {
	return func(s *Searcher) { s.listener = l }
}

// WithSeed pins the instance-local RNG seed, overriding SEED/OS entropy.
func WithSeed(seed int64) SearcherOption {
	return func(s *Searcher) { s.rng = newRNG(&seed) }
}

// NewSearcher constructs a driver rooted at root with the given parameters.
func NewSearcher(root *Goal, params Params, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		RunID:                 uuid.New(),
		params:                params,
		pl:                    newPolicy(params),
		graph:                 NewGraph(root),
		rng:                   newRNG(nil),
		log:                   zap.NewNop(),
		simulationsForTheorem: map[string][]*Simulation{},
		currentlyExpanding:    map[string]bool{},
		backedUpHashes:        map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("run_id", s.RunID.String()))
	return s
}

// SetRoot replaces the root goal. Fails with ErrAlreadyStarted once any
// expansion has been requested or consumed.
func (s *Searcher) SetRoot(goal *Goal) error {
	if s.started {
		return ErrAlreadyStarted
	}
	s.graph = NewGraph(goal)
	return nil
}

// SetParams replaces the search parameters and rebuilds the policy kernel.
func (s *Searcher) SetParams(params Params) {
	s.params = params
	s.pl = newPolicy(params)
}

// GetParams returns the current search parameters.
func (s *Searcher) GetParams() Params { return s.params }

// IsProven reports whether the root is currently solved.
func (s *Searcher) IsProven() bool { return s.graph.IsProven() }

// DeadRoot reports whether the root can never be solved.
func (s *Searcher) DeadRoot() bool { return s.graph.DeadRoot() }

// IsDone reports whether the search has concluded, by budget, early
// stopping, or a dead root.
func (s *Searcher) IsDone() bool { return s.done || s.graph.DeadRoot() }

// TheoremsToExpand returns the batch of goals the caller must fetch
// expansions for. May be empty; if empty and IsDone(), the search is over.
func (s *Searcher) TheoremsToExpand() ([]*Goal, error) {
	s.started = true
	ignoreSolved := s.params.EarlyStopping ||
		(!s.graph.IsProven() && s.params.EarlyStoppingSolvedIfRootNotProven)

	deduped := map[string]*Goal{}
	for k := 0; k < s.params.SuccExpansions; k++ {
		sim, err := s.findLeavesToExpandWithRetry(ignoreSolved)
		if err != nil {
			return nil, err
		}
		if len(sim.toExpand) == 0 {
			break
		}
		s.simulations = append(s.simulations, sim)
		for _, leaf := range sim.toExpand {
			key := leaf.Key()
			s.currentlyExpanding[key] = true
			deduped[key] = leaf
			s.simulationsForTheorem[key] = append(s.simulationsForTheorem[key], sim)
		}
	}

	if len(deduped) == 0 {
		s.done = true
	}

	out := make([]*Goal, 0, len(deduped))
	for _, g := range deduped {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	s.log.Debug("theorems_to_expand", zap.Int("count", len(out)), zap.Bool("done", s.done))
	return out, nil
}

// findLeavesToExpandWithRetry restarts the selection from scratch for this
// slot whenever it hits a cycle.
func (s *Searcher) findLeavesToExpandWithRetry(ignoreSolved bool) (*Simulation, error) {
	for {
		sim, cyclic, err := s.findLeavesToExpand(ignoreSolved)
		if err != nil {
			return nil, err
		}
		if cyclic {
			continue
		}
		return sim, nil
	}
}

// findLeavesToExpand runs one iterative (non-recursive) BFS trace from the
// root, avoiding deep recursion on long proof chains. Returns cyclic=true
// when a cycle was detected and killed, signalling the caller to retry.
func (s *Searcher) findLeavesToExpand(ignoreSolved bool) (sim *Simulation, cyclic bool, err error) {
	sim = newSimulation(s.graph.rootGoal)
	queue := []string{s.graph.rootGoal.Key()}

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		v := sim.visits[key]

		node, ok := s.graph.nodes[key]
		if !ok {
			sim.markToExpand(v.goal)
			continue
		}
		if node.IsTerminal() {
			sim.markTerminal(v.goal, node.GetValue(), node.Solved)
			continue
		}
		if ignoreSolved && node.Solved {
			sim.markTerminal(v.goal, 0, true)
			continue
		}

		probs, perr := node.ComputePolicy(s.pl, s.params, true)
		if perr != nil {
			return nil, false, perr
		}
		tacticIdx := s.selectTactic(probs)
		if node.Killed[tacticIdx] {
			// An all-zero policy leaves the pick on index 0 whatever its
			// state; fall back to the first live tactic instead.
			for i := range node.Tactics {
				if !node.Killed[i] {
					tacticIdx = i
					break
				}
			}
		}
		children := node.ChildrenForTactic[tacticIdx]

		for _, child := range children {
			if sim.hasSeen(child.Key()) {
				s.graph.KillTactic(node, tacticIdx)
				sim.cleanupVirtualLoss(s.graph.nodes, s.params.VirtualLoss)
				if err := s.graph.FindUnexploredAndPropagateExpandable(true); err != nil {
					return nil, false, err
				}
				s.log.Debug("cycle detected, killed tactic", zap.String("goal", key), zap.Int("tactic", tacticIdx))
				s.listener.OnCycleKilled(s, key, tacticIdx)
				return nil, true, nil
			}
		}

		node.AddVirtualCount(tacticIdx, s.params.VirtualLoss)
		sim.chooseTactic(v.goal, tacticIdx, children, true)
		for _, child := range children {
			sim.visit(child, edge{parentKey: key, tacticIdx: tacticIdx}, v.depth+1)
			queue = append(queue, child.Key())
		}
	}
	return sim, false, nil
}

// selectTactic implements policy_temperature dispatch: 0 means argmax,
// otherwise sample from p^(1/T) normalized.
func (s *Searcher) selectTactic(probs []float64) int {
	if s.params.PolicyTemperature == 0 {
		return argmax(probs)
	}
	weights := make([]float64, len(probs))
	invT := 1 / s.params.PolicyTemperature
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		weights[i] = math.Pow(p, invT)
	}
	return s.rng.discrete(weights)
}

// ExpandAndBackup consumes a batch of expansions, merges them into the
// graph, and backs their values up into every waiting simulation.
func (s *Searcher) ExpandAndBackup(expansions []Expansion) error {
	s.started = true
	wasDone := s.IsDone()
	batch := make([]*Node, 0, len(expansions))
	for _, exp := range expansions {
		node, value, solved, err := s.buildNode(exp)
		if err != nil {
			return err
		}
		batch = append(batch, node)
		s.receiveExpansionForGoal(exp.Goal, value, solved)
		s.expansionCount++
		delete(s.currentlyExpanding, exp.Goal.Key())
	}

	newlySolved, err := s.graph.AddNodes(batch)
	if err != nil {
		return err
	}
	s.graph.PropagateCheckAndSolved(newlySolved)

	if err := s.backup(); err != nil {
		return err
	}

	if s.graph.IsProven() {
		if _, captured := s.graph.InitialMinimumProofSize(); !captured {
			s.graph.BuildInProof()
			s.graph.GetNodeProofSizesAndDepths()
			s.graph.CaptureInitialMinimumProofSize()
			s.graph.ResetMinimumProofStats()
			if s.listener != nil {
				s.listener.OnProofFound(s)
			}
		}
	}

	s.done = s.done ||
		(s.params.EarlyStopping && s.graph.IsProven()) ||
		(s.expansionCount >= s.params.NumExpansions)

	if !wasDone && s.IsDone() && s.listener != nil {
		s.listener.OnDone(s)
	}
	if s.listener != nil {
		s.listener.OnExpansionBatch(s, len(expansions))
	}
	return nil
}

// buildNode dispatches the three expansion variants: error, auto-solved
// (all tactics have empty children), and normal. On success it also seeds
// the node's observed hyper-edges for later effect-sample extraction.
func (s *Searcher) buildNode(exp Expansion) (*Node, float64, bool, error) {
	if exp.Error != nil {
		node, err := NewNode(exp.Goal, nil, nil, nil, MinLogValue)
		return node, MinLogValue, false, err
	}
	if len(exp.Tactics) == 0 {
		return nil, 0, false, errorsWrapf(ErrInvalidExpansion, "goal %q: success expansion with no tactics", exp.Goal.Key())
	}

	allEmpty := true
	for _, c := range exp.Children {
		if len(c) != 0 {
			allEmpty = false
			break
		}
	}
	logCritic := exp.LogCritic
	if allEmpty {
		logCritic = 0
	}
	node, err := NewNode(exp.Goal, exp.Tactics, exp.Children, exp.Priors, logCritic)
	if err != nil {
		return nil, 0, false, err
	}
	recordEffects(node, exp)
	if allEmpty {
		return node, 0, true, nil
	}
	return node, exp.LogCritic, false, nil
}

// recordEffects seeds node.Effects from the expansion: the expander's own
// effect list when supplied, otherwise one hyper-edge per valid tactic.
func recordEffects(node *Node, exp Expansion) {
	if len(exp.Effects) > 0 {
		node.Effects = append(node.Effects, exp.Effects...)
		return
	}
	for i, t := range exp.Tactics {
		if !t.IsValid {
			continue
		}
		node.RecordEffect(t, exp.Children[i])
	}
}

func (s *Searcher) receiveExpansionForGoal(goal *Goal, value float64, solved bool) {
	for _, sim := range s.simulationsForTheorem[goal.Key()] {
		sim.receiveExpansion(goal, value, solved)
	}
	delete(s.simulationsForTheorem, goal.Key())
}

// backup scans s.simulations and backs up every one with no pending
// expansions left, removing it from the in-flight list.
func (s *Searcher) backup() error {
	remaining := s.simulations[:0]
	for _, sim := range s.simulations {
		if sim.pending > 0 {
			remaining = append(remaining, sim)
			continue
		}
		if err := s.backupOne(sim); err != nil {
			return err
		}
	}
	s.simulations = remaining

	for _, n := range s.graph.nodes {
		if n.HasVirtualCounts() {
			return errorsWrapf(ErrPropagateInconsistency, "node %q retains virtual counts after backup", n.Goal.Key())
		}
	}
	return nil
}

// backupOne walks one simulation bottom-up (reverse discovery order always
// places a node's children before the node itself), summing child values
// into each internal node and releasing its reserved virtual loss.
func (s *Searcher) backupOne(sim *Simulation) error {
	hash := sim.Hash()
	onlyValue := false
	if s.params.BackupOnce {
		if s.backedUpHashes[hash] {
			onlyValue = true
		} else {
			s.backedUpHashes[hash] = true
		}
	}

	rootUpdated := false
	for i := len(sim.order) - 1; i >= 0; i-- {
		key := sim.order[i]
		v := sim.visits[key]
		node := s.graph.nodes[key]

		if v.tacticIdx != -1 {
			sum := 0.0
			for _, child := range v.children {
				sum += sim.visits[child.Key()].value
			}
			if node.Solved && s.params.BackupOneForSolved {
				sum = 0
			}
			if s.params.DepthPenalty < 1 {
				sum += math.Log(s.params.DepthPenalty)
			}
			v.value = sum
			v.hasValue = true
			if !onlyValue {
				node.Update(v.tacticIdx, sum)
			}
			if v.virtualAdded {
				node.SubtractVirtualCount(v.tacticIdx, s.params.VirtualLoss)
				v.virtualAdded = false
			}
		}

		if key == sim.Root.Key() {
			rootUpdated = true
		}
	}
	if !rootUpdated {
		return errorsWrapf(ErrPropagateInconsistency, "backup never reached the root")
	}
	return nil
}

// GetResult extracts the full result set: proof tree (if proven), and
// critic/tactic/effect training samples.
func (s *Searcher) GetResult() (*Result, error) {
	if err := s.graph.ConsistencyCheck(); err != nil {
		return nil, err
	}
	for _, n := range s.graph.nodes {
		if n.HasVirtualCounts() {
			return nil, errorsWrapf(ErrPropagateInconsistency, "node %q retains virtual counts", n.Goal.Key())
		}
	}

	s.graph.BuildInProof()
	s.graph.GetNodeProofSizesAndDepths()

	var proof *ProofNode
	if s.graph.IsProven() {
		p, err := s.graph.MinimalProof(s.params.Metric, s.graph.rootGoal)
		if err != nil {
			return nil, err
		}
		proof = p
	}

	result := &Result{Goal: s.graph.rootGoal, Proof: proof, Metric: s.params.Metric}
	mask := s.params.resolvedNodeMask(s.graph.IsProven())
	keys := sortedNodeKeys(s.graph.nodes)

	var solvedCritic, unsolvedCritic []CriticSample
	for _, k := range keys {
		n := s.graph.nodes[k]
		result.EffectSamples = append(result.EffectSamples, n.effectSamples(s.rng, s.params.EffectSubsamplingRate)...)
		if cs, ok := n.criticSample(s.rng, s.params.CriticSubsamplingRate); ok {
			if cs.Solved {
				solvedCritic = append(solvedCritic, cs)
			} else {
				unsolvedCritic = append(unsolvedCritic, cs)
			}
		}
		result.TacticSamples = append(result.TacticSamples, n.TacticSamples(s.params, mask)...)
	}
	result.CriticSamples = append(solvedCritic, unsolvedCritic...)

	if s.graph.IsProven() {
		for _, k := range keys {
			n := s.graph.nodes[k]
			result.ProofSamplesTactics = append(result.ProofSamplesTactics, n.TacticSamples(s.params, MinimalProof)...)
		}
	}
	return result, nil
}

func sortedNodeKeys(nodes map[string]*Node) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
