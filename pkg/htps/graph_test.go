package htps

import "testing"

func mustNode(t *testing.T, g *Goal, tactics []Tactic, children [][]*Goal, priors []float64, logCritic float64) *Node {
	t.Helper()
	n, err := NewNode(g, tactics, children, priors, logCritic)
	if err != nil {
		t.Fatalf("NewNode(%s): %v", g.Key(), err)
	}
	return n
}

func TestAddNodesRejectsDuplicateGoal(t *testing.T) {
	root := NewGoal("A", nil)
	g := NewGraph(root)

	n := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	if _, err := g.AddNodes([]*Node{n}); err != nil {
		t.Fatalf("first AddNodes: %v", err)
	}
	dup := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	if _, err := g.AddNodes([]*Node{dup}); err == nil {
		t.Fatal("expected error re-adding an existing goal")
	}
}

func TestAddNodesRejectsNodeWithNoLiveAncestor(t *testing.T) {
	root := NewGoal("A", nil)
	g := NewGraph(root)

	orphan := NewGoal("orphan", nil)
	n := mustNode(t, orphan, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	if _, err := g.AddNodes([]*Node{n}); err == nil {
		t.Fatal("expected error for a goal with no live ancestor")
	}
}

// TestBadChildKillsParentCascade exercises the kill cascade: a bad child
// (every tactic killed) removes its incoming edge, and once a parent's last
// live tactic goes bad it too becomes bad, cascading toward the root.
func TestBadChildKillsParentCascade(t *testing.T) {
	root := NewGoal("A", nil)
	b := NewGoal("B", nil)
	g := NewGraph(root)

	rootNode := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.1)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes(root): %v", err)
	}

	// B has no valid tactics at all: it's bad on construction.
	bNode := mustNode(t, b, nil, nil, nil, MinLogValue)
	if !bNode.IsBad() {
		t.Fatal("node with zero tactics should be bad")
	}
	if _, err := g.AddNodes([]*Node{bNode}); err != nil {
		t.Fatalf("AddNodes(b): %v", err)
	}

	if !rootNode.Killed[0] {
		t.Fatal("root's only tactic should be killed after its child went bad")
	}
	if !g.DeadRoot() {
		t.Fatal("root should be dead once its only tactic is killed")
	}
}

// TestSiblingConvergenceDedup mirrors a two-path merge into the same goal:
// T0 from the root reaches B1 and B2, and both B1 and B2 have a tactic
// leading to the same grandchild C. C must end up with two permanent
// ancestor edges, one live edge from each parent.
func TestSiblingConvergenceDedup(t *testing.T) {
	root := NewGoal("A", nil)
	b1 := NewGoal("B1", nil)
	b2 := NewGoal("B2", nil)
	c := NewGoal("C", nil)
	g := NewGraph(root)

	rootNode := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b1, b2}}, []float64{1.0}, -0.1)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes(root): %v", err)
	}

	b1Node := mustNode(t, b1, []Tactic{{UniqueString: "t1", IsValid: true}}, [][]*Goal{{c}}, []float64{1.0}, -0.1)
	b2Node := mustNode(t, b2, []Tactic{{UniqueString: "t2", IsValid: true}}, [][]*Goal{{c}}, []float64{1.0}, -0.1)
	if _, err := g.AddNodes([]*Node{b1Node, b2Node}); err != nil {
		t.Fatalf("AddNodes(b1, b2): %v", err)
	}

	if got := len(g.ancestry.permanentEdges(c.Key())); got != 2 {
		t.Fatalf("C should have 2 permanent ancestor edges, got %d", got)
	}
	if got := g.ancestry.liveCount(c.Key()); got != 2 {
		t.Fatalf("C should have 2 live ancestor edges, got %d", got)
	}

	cNode := mustNode(t, c, []Tactic{{UniqueString: "t3", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	newlySolved, err := g.AddNodes([]*Node{cNode})
	if err != nil {
		t.Fatalf("AddNodes(c): %v", err)
	}
	if len(newlySolved) != 1 {
		t.Fatalf("expected C itself to be newly solved, got %d", len(newlySolved))
	}

	solved := g.PropagateCheckAndSolved(newlySolved)
	solvedKeys := map[string]bool{}
	for _, n := range solved {
		solvedKeys[n.Goal.Key()] = true
	}
	for _, want := range []string{c.Key(), b1.Key(), b2.Key(), root.Key()} {
		if !solvedKeys[want] {
			t.Fatalf("expected %q to become solved, solved set: %v", want, solvedKeys)
		}
	}
	if !g.IsProven() {
		t.Fatal("root should be proven once both branches into C resolve")
	}
}

func TestKillTacticCascadeStopsAtStillLiveParent(t *testing.T) {
	root := NewGoal("A", nil)
	b := NewGoal("B", nil)
	c := NewGoal("C", nil)
	g := NewGraph(root)

	rootNode := mustNode(t, root,
		[]Tactic{{UniqueString: "t0", IsValid: true}, {UniqueString: "t1", IsValid: true}},
		[][]*Goal{{b}, {c}}, []float64{0.5, 0.5}, -0.1)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}

	g.KillTactic(rootNode, 0)
	if !rootNode.Killed[0] {
		t.Fatal("tactic 0 should be killed")
	}
	if rootNode.IsBad() {
		t.Fatal("root should still be alive via tactic 1")
	}
	if g.ancestry.liveCount(b.Key()) != 0 {
		t.Fatal("B should lose its only live ancestor edge once tactic 0 is killed")
	}
}

func TestFindUnexploredAndPropagateExpandable(t *testing.T) {
	root := NewGoal("A", nil)
	b := NewGoal("B", nil)
	g := NewGraph(root)

	rootNode := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.1)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}

	if err := g.FindUnexploredAndPropagateExpandable(true); err != nil {
		t.Fatalf("FindUnexploredAndPropagateExpandable: %v", err)
	}
	if _, ok := g.unexplored[b.Key()]; !ok {
		t.Fatal("B should be unexplored")
	}
	if !rootNode.Expandable[0] {
		t.Fatal("root's tactic toward the unexplored B should be marked expandable")
	}
}

func TestConsistencyCheckRejectsMismatchedSolvedFlag(t *testing.T) {
	root := NewGoal("A", nil)
	g := NewGraph(root)
	rootNode := mustNode(t, root, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	if err := g.ConsistencyCheck(); err != nil {
		t.Fatalf("consistent graph reported inconsistent: %v", err)
	}

	rootNode.Solved = false
	if err := g.ConsistencyCheck(); err == nil {
		t.Fatal("expected ConsistencyCheck to catch the hand-corrupted solved flag")
	}
}

func TestMinimalProofPrefersShallowerTacticForDepth(t *testing.T) {
	root := NewGoal("A", nil)
	b := NewGoal("B", nil)
	g := NewGraph(root)

	rootNode := mustNode(t, root,
		[]Tactic{{UniqueString: "direct", IsValid: true}, {UniqueString: "via_b", IsValid: true}},
		[][]*Goal{{}, {b}}, []float64{0.5, 0.5}, -0.1)
	if _, err := g.AddNodes([]*Node{rootNode}); err != nil {
		t.Fatalf("AddNodes(root): %v", err)
	}
	if !rootNode.Solved {
		t.Fatal("root's empty-children tactic should auto-solve it")
	}

	g.BuildInProof()
	g.GetNodeProofSizesAndDepths()

	proof, err := g.MinimalProof(Depth, root)
	if err != nil {
		t.Fatalf("MinimalProof: %v", err)
	}
	if proof.Tactic.UniqueString != "direct" {
		t.Fatalf("expected the zero-depth tactic, got %q", proof.Tactic.UniqueString)
	}
	if len(proof.Children) != 0 {
		t.Fatalf("expected no children for the direct proof, got %d", len(proof.Children))
	}
}
