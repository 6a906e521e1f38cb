package htps

import "container/heap"

// rootPseudoParent is the sentinel ancestry key used for the root's own
// pseudo-ancestor edge: the root is its own pseudo-ancestor with a null
// parent, so it is never mistaken for an orphan when AddNodes checks for a
// live ancestor. The key is a single NUL byte, which is not the key of any
// goal except one whose conclusion is exactly that byte with no hypotheses.
const rootPseudoParent = "\x00"

// Graph is the AND/OR hypergraph of goals (nodes) and tactics (hyper-edges),
// plus the live/permanent ancestry maps that drive kill-cascades and
// solved-propagation.
type Graph struct {
	rootGoal *Goal
	nodes    map[string]*Node
	ancestry *ancestry

	// unexplored holds goals reachable through a live edge that are not
	// yet nodes.
	unexplored map[string]*Goal

	initialMinimumProofSize    [3]float64
	haveInitialMinimumProofSize bool
}

// NewGraph seeds the graph with an (as yet unexpanded) root goal.
func NewGraph(root *Goal) *Graph {
	g := &Graph{
		rootGoal:   root,
		nodes:      map[string]*Node{},
		ancestry:   newAncestry(),
		unexplored: map[string]*Goal{root.Key(): root},
	}
	g.ancestry.addPermanent(root.Key(), edge{parentKey: rootPseudoParent, tacticIdx: -1})
	return g
}

// Node returns the node for a goal key, if expanded.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// IsProven reports whether the root node exists and is solved.
func (g *Graph) IsProven() bool {
	root, ok := g.nodes[g.rootGoal.Key()]
	return ok && root.Solved
}

// DeadRoot reports whether the root node exists and can never be solved.
func (g *Graph) DeadRoot() bool {
	root, ok := g.nodes[g.rootGoal.Key()]
	return ok && root.IsBad()
}

// AddNodes merges a batch of freshly expanded nodes into the graph. Bad
// nodes trigger a kill cascade on every live parent edge; good nodes
// register their hyper-edges as permanent ancestors and
// locally kill any tactic pointing at an already-bad child. Returns the
// nodes that became solved as part of this batch (before upward
// propagation), which the caller feeds to PropagateCheckAndSolved.
func (g *Graph) AddNodes(batch []*Node) ([]*Node, error) {
	for _, n := range batch {
		key := n.Goal.Key()
		if _, exists := g.nodes[key]; exists {
			return nil, errorsWrapf(ErrBadAncestry, "goal %q already has a node", key)
		}
		if g.ancestry.liveCount(key) == 0 {
			return nil, errorsWrapf(ErrBadAncestry, "goal %q has no live ancestor", key)
		}
		g.nodes[key] = n
		delete(g.unexplored, key)
	}

	var newlySolved []*Node
	for _, n := range batch {
		key := n.Goal.Key()
		if n.IsBad() {
			for _, e := range g.ancestry.liveEdges(key) {
				g.killTacticCascade(e.parentKey, e.tacticIdx)
			}
			continue
		}

		for i, children := range n.ChildrenForTactic {
			if n.Killed[i] {
				continue
			}
			for _, child := range children {
				childKey := child.Key()
				e := edge{parentKey: key, tacticIdx: i}
				g.ancestry.addPermanent(childKey, e)
				if childNode, ok := g.nodes[childKey]; ok {
					if childNode.IsBad() {
						g.killTacticCascade(key, i)
					}
				} else {
					g.unexplored[childKey] = child
				}
			}
		}

		if n.Solved {
			newlySolved = append(newlySolved, n)
		}
	}

	return newlySolved, nil
}

// killTacticCascade is the graph-level cascading kill: an explicit deque so
// deep proofs don't recurse. When killing a tactic makes its node fully
// bad, the node's own live-ancestor edges are pushed to the FRONT of the
// queue (LIFO) for locality.
func (g *Graph) killTacticCascade(parentKey string, tacticIdx int) {
	queue := []edge{{parentKey: parentKey, tacticIdx: tacticIdx}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		parent, ok := g.nodes[e.parentKey]
		if !ok {
			continue // root pseudo-parent, or edge into a not-yet-node goal
		}
		if parent.Killed[e.tacticIdx] {
			continue
		}

		for _, child := range parent.ChildrenForTactic[e.tacticIdx] {
			childKey := child.Key()
			g.ancestry.removeLive(childKey, e)
			if g.ancestry.liveCount(childKey) == 0 {
				if _, isNode := g.nodes[childKey]; !isNode {
					delete(g.unexplored, childKey)
				}
			}
		}

		if parent.KillTactic(e.tacticIdx) {
			pending := g.ancestry.liveEdges(e.parentKey)
			queue = append(append([]edge{}, pending...), queue...)
		}
	}
}

// KillTactic is the public entry point for killing one tactic (used by the
// selection path on cycle detection).
func (g *Graph) KillTactic(node *Node, tacticIdx int) {
	g.killTacticCascade(node.Goal.Key(), tacticIdx)
}

// FindUnexplored rebuilds the unexplored set by walking the graph from the
// root, skipping killed tactics (and, if ignoreSolved, solved nodes).
func (g *Graph) FindUnexplored(ignoreSolved bool) {
	unexplored := map[string]*Goal{}
	visited := map[string]bool{g.rootGoal.Key(): true}
	queue := []*Goal{g.rootGoal}

	for len(queue) > 0 {
		goal := queue[0]
		queue = queue[1:]
		key := goal.Key()

		node, ok := g.nodes[key]
		if !ok {
			unexplored[key] = goal
			continue
		}
		if ignoreSolved && node.Solved {
			continue
		}
		for i, children := range node.ChildrenForTactic {
			if node.Killed[i] {
				continue
			}
			for _, child := range children {
				ck := child.Key()
				if visited[ck] {
					continue
				}
				visited[ck] = true
				queue = append(queue, child)
			}
		}
	}
	g.unexplored = unexplored
}

// PropagateExpandable resets every tactic's expandable flag then marks, for
// every goal in the unexplored set, every live ancestor edge (transitively)
// as expandable.
func (g *Graph) PropagateExpandable() {
	for _, n := range g.nodes {
		for i := range n.Expandable {
			n.Expandable[i] = false
		}
	}

	visited := map[edge]bool{}
	queue := make([]string, 0, len(g.unexplored))
	for key := range g.unexplored {
		queue = append(queue, key)
	}

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, e := range g.ancestry.liveEdges(key) {
			if visited[e] {
				continue
			}
			visited[e] = true
			parent, ok := g.nodes[e.parentKey]
			if !ok {
				continue
			}
			if !parent.Killed[e.tacticIdx] {
				parent.Expandable[e.tacticIdx] = true
			}
			queue = append(queue, e.parentKey)
		}
	}
}

// FindUnexploredAndPropagateExpandable runs FindUnexplored then
// PropagateExpandable and checks the resulting invariant: no killed tactic
// is marked expandable, and if goals remain unexplored the root must have
// at least one expandable tactic.
func (g *Graph) FindUnexploredAndPropagateExpandable(ignoreSolved bool) error {
	g.FindUnexplored(ignoreSolved)
	g.PropagateExpandable()

	for _, n := range g.nodes {
		for i := range n.Tactics {
			if n.Killed[i] && n.Expandable[i] {
				return errorsWrapf(ErrPropagateInconsistency, "killed tactic marked expandable")
			}
		}
	}

	if len(g.unexplored) == 0 {
		return nil
	}
	root, ok := g.nodes[g.rootGoal.Key()]
	if !ok {
		return nil // root itself unexplored: nothing inconsistent yet
	}
	for i := range root.Tactics {
		if root.Expandable[i] {
			return nil
		}
	}
	return errorsWrapf(ErrPropagateInconsistency, "unexplored theorems remain but root has no expandable tactic")
}

// PropagateCheckAndSolved walks upward from newly solved nodes via
// permanent ancestors, marking a parent solved whenever one of its valid,
// non-killed tactics has every child solved. Returns every node that became
// solved, including the seed set, in discovery (FIFO) order.
func (g *Graph) PropagateCheckAndSolved(newlySolved []*Node) []*Node {
	queue := append([]*Node{}, newlySolved...)
	all := append([]*Node{}, newlySolved...)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, e := range g.ancestry.permanentEdges(n.Goal.Key()) {
			parent, ok := g.nodes[e.parentKey]
			if !ok || parent.Killed[e.tacticIdx] || parent.Solving[e.tacticIdx] {
				continue
			}
			if !parent.Tactics[e.tacticIdx].IsValid {
				continue
			}
			allSolved := true
			for _, child := range parent.ChildrenForTactic[e.tacticIdx] {
				cn, ok := g.nodes[child.Key()]
				if !ok || !cn.Solved {
					allSolved = false
					break
				}
			}
			if !allSolved {
				continue
			}
			if parent.SolvedBy(e.tacticIdx) {
				queue = append(queue, parent)
				all = append(all, parent)
			}
		}
	}
	return all
}

// ConsistencyCheck validates that every node's solved flag agrees both with
// its own solving-tactic set and with its children's solved state.
func (g *Graph) ConsistencyCheck() error {
	for key, n := range g.nodes {
		if n.Solved != (len(n.Solving) > 0) {
			return errorsWrapf(ErrPropagateInconsistency, "node %q solved=%v but %d solving tactics", key, n.Solved, len(n.Solving))
		}
		hasValidAllSolvedTactic := false
		for i, t := range n.Tactics {
			if n.Killed[i] || !t.IsValid {
				continue
			}
			allSolved := true
			for _, child := range n.ChildrenForTactic[i] {
				cn, ok := g.nodes[child.Key()]
				if !ok || !cn.Solved {
					allSolved = false
					break
				}
			}
			if allSolved {
				hasValidAllSolvedTactic = true
			}
		}
		if n.Solved != hasValidAllSolvedTactic {
			return errorsWrapf(ErrPropagateInconsistency, "node %q solved=%v inconsistent with its tactics", key, n.Solved)
		}
	}
	return nil
}

// BuildInProof marks every node reachable from a solved root via solving
// tactics as in_proof.
func (g *Graph) BuildInProof() {
	for _, n := range g.nodes {
		n.InProofFlag = false
	}
	root, ok := g.nodes[g.rootGoal.Key()]
	if !ok || !root.Solved {
		return
	}
	root.InProofFlag = true
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for i := range n.Solving {
			for _, child := range n.ChildrenForTactic[i] {
				cn, ok := g.nodes[child.Key()]
				if ok && !cn.InProofFlag {
					cn.InProofFlag = true
					queue = append(queue, cn)
				}
			}
		}
	}
}

// pqItem is one entry of the per-metric minimum-proof priority queue.
type pqItem struct {
	priority  float64
	nodeKey   string
	tacticIdx int
	seq       int // insertion order, tie-break for determinism
}

type pqueue []pqItem

func (q pqueue) Len() int { return len(q) }
func (q pqueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q pqueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pqueue) Push(x any)         { *q = append(*q, x.(pqItem)) }
func (q *pqueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// GetNodeProofSizesAndDepths runs a per-metric Dijkstra-like propagation:
// starting from every solving tactic with no children, push each
// permanent-ancestor tactic's
// combined priority (max for
// Depth, sum for Size/Time) until every solved node has a minimal length
// and a minimal-tactic set. Also flags in_minimum_proof via a BFS from the
// root over each node's minimum tactics.
func (g *Graph) GetNodeProofSizesAndDepths() {
	for _, n := range g.nodes {
		n.MinimumProofSize = [3]float64{-1, -1, -1}
		n.MinimumTactics = [3][]int{}
		n.MinimumTacticLength = [3][]float64{}
		for m := 0; m < 3; m++ {
			n.MinimumTacticLength[m] = make([]float64, len(n.Tactics))
			for i := range n.MinimumTacticLength[m] {
				n.MinimumTacticLength[m][i] = -1
			}
		}
		for m := 0; m < 3; m++ {
			n.InMinimumProof[m] = false
		}
	}

	for m := Depth; m <= Time; m++ {
		g.propagateMetric(m)
	}

	for _, n := range g.nodes {
		for m := 0; m < 3; m++ {
			n.InMinimumProof[Metric(m)] = false
		}
	}
	root, ok := g.nodes[g.rootGoal.Key()]
	if !ok || !root.Solved {
		return
	}
	for m := Depth; m <= Time; m++ {
		g.flagMinimumProof(root, m)
	}
}

func (g *Graph) propagateMetric(m Metric) {
	var pq pqueue
	seq := 0

	for _, key := range sortedNodeKeys(g.nodes) {
		n := g.nodes[key]
		if n.Solved {
			for i, t := range n.Tactics {
				if !n.Solving[i] || len(n.ChildrenForTactic[i]) != 0 {
					continue
				}
				base := baseCost(m, t)
				heap.Push(&pq, pqItem{priority: base, nodeKey: key, tacticIdx: i, seq: seq})
				seq++
			}
		}
	}

	minLen := map[string]float64{}
	for pq.Len() > 0 {
		item := heap.Pop(&pq).(pqItem)
		node := g.nodes[item.nodeKey]

		if node.MinimumTacticLength[m][item.tacticIdx] == -1 {
			node.MinimumTacticLength[m][item.tacticIdx] = item.priority
		}

		cur, has := minLen[item.nodeKey]
		if !has {
			minLen[item.nodeKey] = item.priority
			node.MinimumProofSize[m] = item.priority
			cur = item.priority
		}
		if item.priority <= cur {
			node.MinimumTactics[m] = append(node.MinimumTactics[m], item.tacticIdx)
		} else {
			continue
		}

		for _, e := range g.ancestry.permanentEdges(item.nodeKey) {
			parent, ok := g.nodes[e.parentKey]
			if !ok || parent.Killed[e.tacticIdx] || !parent.Tactics[e.tacticIdx].IsValid {
				continue
			}
			combined, ready := combineChildren(g, parent, e.tacticIdx, m)
			if !ready {
				continue
			}
			base := baseCost(m, parent.Tactics[e.tacticIdx])
			heap.Push(&pq, pqItem{priority: base + combined, nodeKey: e.parentKey, tacticIdx: e.tacticIdx, seq: seq})
			seq++
		}
	}
}

func baseCost(m Metric, t Tactic) float64 {
	if m == Time {
		return t.Duration.Seconds()
	}
	return 1
}

// combineChildren reports whether every child of parent's tactic already
// has a minimal length for metric m, and if so the combined cost: max for
// Depth, sum for Size and Time.
func combineChildren(g *Graph, parent *Node, tacticIdx int, m Metric) (float64, bool) {
	children := parent.ChildrenForTactic[tacticIdx]
	if len(children) == 0 {
		return 0, true
	}
	combined := 0.0
	for i, child := range children {
		cn, ok := g.nodes[child.Key()]
		if !ok || cn.MinimumProofSize[m] == -1 {
			return 0, false
		}
		v := cn.MinimumProofSize[m]
		if m == Depth {
			if i == 0 || v > combined {
				combined = v
			}
		} else {
			combined += v
		}
	}
	return combined, true
}

func (g *Graph) flagMinimumProof(n *Node, m Metric) {
	if n.InMinimumProof[m] {
		return
	}
	n.InMinimumProof[m] = true
	for _, i := range n.MinimumTactics[m] {
		for _, child := range n.ChildrenForTactic[i] {
			if cn, ok := g.nodes[child.Key()]; ok {
				g.flagMinimumProof(cn, m)
			}
		}
	}
}

// CaptureInitialMinimumProofSize records the root's minimum-proof sizes the
// first time the root is proven, before ResetMinimumProofStats clears the
// per-node bookkeeping for later re-derivation. A no-op after the first
// call.
func (g *Graph) CaptureInitialMinimumProofSize() {
	if g.haveInitialMinimumProofSize {
		return
	}
	root, ok := g.nodes[g.rootGoal.Key()]
	if !ok {
		return
	}
	g.initialMinimumProofSize = root.MinimumProofSize
	g.haveInitialMinimumProofSize = true
}

// ResetMinimumProofStats wipes per-node minimum-proof bookkeeping so a
// later call to GetNodeProofSizesAndDepths re-derives it from scratch
// (future proofs may be shorter than the one that first solved the root).
func (g *Graph) ResetMinimumProofStats() {
	for _, n := range g.nodes {
		n.MinimumProofSize = [3]float64{-1, -1, -1}
		n.MinimumTactics = [3][]int{}
		for m := range n.InMinimumProof {
			n.InMinimumProof[m] = false
		}
	}
}

// InitialMinimumProofSize returns the minimum-proof sizes captured the
// first time the root was proven, and whether any have been captured yet.
func (g *Graph) InitialMinimumProofSize() ([3]float64, bool) {
	return g.initialMinimumProofSize, g.haveInitialMinimumProofSize
}

// MinimalProof recurses from a solved, in-proof goal via its minimum
// tactics for metric m into a ProofNode tree.
func (g *Graph) MinimalProof(m Metric, goal *Goal) (*ProofNode, error) {
	n, ok := g.nodes[goal.Key()]
	if !ok {
		return nil, errorsWrapf(ErrNotFound, "goal %q", goal.Key())
	}
	if !n.InProofFlag {
		return nil, errorsWrapf(ErrNotInProof, "goal %q", goal.Key())
	}
	if len(n.MinimumTactics[m]) == 0 {
		return nil, errorsWrapf(ErrNotSolved, "goal %q", goal.Key())
	}
	tacticIdx := n.MinimumTactics[m][0]
	children := make([]*ProofNode, 0, len(n.ChildrenForTactic[tacticIdx]))
	for _, child := range n.ChildrenForTactic[tacticIdx] {
		cp, err := g.MinimalProof(m, child)
		if err != nil {
			return nil, err
		}
		children = append(children, cp)
	}
	return &ProofNode{Goal: goal, Tactic: n.Tactics[tacticIdx], Children: children}, nil
}
