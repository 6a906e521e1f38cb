package htps

import (
	"errors"
	"math"
	"testing"
)

func TestNewNodeRejectsBadPriors(t *testing.T) {
	g := NewGoal("A", nil)
	_, err := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{0.5}, 0)
	if !errors.Is(err, ErrInvalidExpansion) {
		t.Fatalf("got %v, want ErrInvalidExpansion", err)
	}
}

func TestNewNodeRejectsPositiveLogCritic(t *testing.T) {
	g := NewGoal("A", nil)
	_, err := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0.5)
	if !errors.Is(err, ErrInvalidExpansion) {
		t.Fatalf("got %v, want ErrInvalidExpansion", err)
	}
}

func TestNewNodeKillsInvalidTacticsImmediately(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	n, err := NewNode(g,
		[]Tactic{{UniqueString: "t0", IsValid: false}, {UniqueString: "t1", IsValid: true}},
		[][]*Goal{{}, {b}},
		[]float64{0.5, 0.5}, -0.1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if !n.Killed[0] {
		t.Fatal("invalid tactic not killed at construction")
	}
	if n.Killed[1] {
		t.Fatal("valid tactic killed at construction")
	}
}

func TestNewNodeAllEmptyChildrenSolvesLeaf(t *testing.T) {
	g := NewGoal("A", nil)
	n, err := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if !n.Solved || !n.IsSolvedLeaf {
		t.Fatal("all-empty-children node should be a solved leaf")
	}
	if !n.Solving[0] {
		t.Fatal("its only tactic should be in solving_tactics")
	}
}

func TestKillTacticAllKilledSetsLogCriticToMinusInf(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	n, err := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.2)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	allKilled := n.KillTactic(0)
	if !allKilled {
		t.Fatal("expected KillTactic to report all-killed")
	}
	if n.LogCriticValue != MinLogValue {
		t.Fatalf("log critic = %v, want %v", n.LogCriticValue, MinLogValue)
	}
	if n.OldCriticValue != -0.2 {
		t.Fatalf("old critic = %v, want -0.2", n.OldCriticValue)
	}
	if !n.IsBad() {
		t.Fatal("node with every tactic killed should be bad")
	}
}

func TestKillTacticIdempotent(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	c := NewGoal("C", nil)
	n, _ := NewNode(g,
		[]Tactic{{UniqueString: "t0", IsValid: true}, {UniqueString: "t1", IsValid: true}},
		[][]*Goal{{b}, {c}}, []float64{0.5, 0.5}, -0.1)
	if n.KillTactic(0) {
		t.Fatal("first kill should not report all-killed (t1 still live)")
	}
	if n.KillTactic(0) {
		t.Fatal("second kill of the same tactic should still report not-all-killed")
	}
}

func TestUpdateLogaddexp(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	n, _ := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.1)

	n.Update(0, -0.5)
	if n.LogW[0] != -0.5 {
		t.Fatalf("first update should set log_w directly, got %v", n.LogW[0])
	}
	if n.Counts[0] != 1 {
		t.Fatalf("counts = %d, want 1", n.Counts[0])
	}

	n.Update(0, -0.6)
	want := logaddexpOneSided(-0.5, -0.6)
	if math.Abs(n.LogW[0]-want) > 1e-12 {
		t.Fatalf("log_w = %v, want %v", n.LogW[0], want)
	}
	if n.Counts[0] != 2 {
		t.Fatalf("counts = %d, want 2", n.Counts[0])
	}
}

func TestGetValueNoVisitsUsesLogCritic(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	n, _ := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.3)
	if v := n.GetValue(); v != -0.3 {
		t.Fatalf("GetValue = %v, want -0.3", v)
	}
}

func TestGetValueSolvedIsZero(t *testing.T) {
	g := NewGoal("A", nil)
	n, _ := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, -0.1)
	if v := n.GetValue(); v != 0 {
		t.Fatalf("GetValue = %v, want 0 for solved node", v)
	}
}

func TestVirtualCountBalance(t *testing.T) {
	g := NewGoal("A", nil)
	b := NewGoal("B", nil)
	n, _ := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{b}}, []float64{1.0}, -0.1)

	n.AddVirtualCount(0, 3)
	if !n.HasVirtualCounts() {
		t.Fatal("expected virtual counts after AddVirtualCount")
	}
	n.SubtractVirtualCount(0, 3)
	if n.HasVirtualCounts() {
		t.Fatal("virtual counts should be zero after balanced subtract")
	}
}

// TestInProofMaskScopedToSingleMetric covers a tactic that minimizes one
// metric but not another: inProofMask must only consult the metric it was
// asked about, never treat "minimizes some metric" as "minimizes this one".
func TestInProofMaskScopedToSingleMetric(t *testing.T) {
	g := NewGoal("A", nil)
	b, c := NewGoal("B", nil), NewGoal("C", nil)
	n, err := NewNode(g,
		[]Tactic{{UniqueString: "t0", IsValid: true}, {UniqueString: "t1", IsValid: true}},
		[][]*Goal{{b}, {c}}, []float64{0.5, 0.5}, -0.1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	// t0 minimizes Depth only; t1 minimizes Size only.
	n.InMinimumProof[Depth] = true
	n.MinimumTactics[Depth] = []int{0}
	n.InMinimumProof[Size] = true
	n.MinimumTactics[Size] = []int{1}

	if got := n.inProofMask(0, Depth); got != InMinimalProof {
		t.Fatalf("t0 under Depth: got %v, want InMinimalProof", got)
	}
	if got := n.inProofMask(1, Depth); got == InMinimalProof {
		t.Fatal("t1 minimizes Size, not Depth: inProofMask(Depth) must not report InMinimalProof")
	}
	if got := n.inProofMask(1, Size); got != InMinimalProof {
		t.Fatalf("t1 under Size: got %v, want InMinimalProof", got)
	}
	if got := n.inProofMask(0, Size); got == InMinimalProof {
		t.Fatal("t0 minimizes Depth, not Size: inProofMask(Size) must not report InMinimalProof")
	}
}

// TestTacticSamplesMinimalProofMaskAllInMinimalProof mirrors a count-threshold
// filtered emission where every emitted tactic sample must be InMinimalProof:
// a solved node with NodeMask==MinimalProof restricts tacticSamplesRegular to
// exactly MinimumTactics[metric], so every sample it emits should carry
// InProof == InMinimalProof for the configured metric.
func TestTacticSamplesMinimalProofMaskAllInMinimalProof(t *testing.T) {
	g := NewGoal("A", nil)
	b, c, d := NewGoal("B", nil), NewGoal("C", nil), NewGoal("D", nil)
	n, err := NewNode(g,
		[]Tactic{{UniqueString: "t0", IsValid: true}, {UniqueString: "t1", IsValid: true}, {UniqueString: "t2", IsValid: true}},
		[][]*Goal{{b}, {c}, {d}}, []float64{0.34, 0.33, 0.33}, -0.1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	n.Solved = true
	n.Solving[0] = true
	n.Solving[1] = true
	n.Solving[2] = true
	// Only t0 and t2 minimize Depth; t1 solves but is not on the minimum
	// proof for this metric.
	n.InMinimumProof[Depth] = true
	n.MinimumTactics[Depth] = []int{0, 2}

	params := DefaultParams()
	params.Metric = Depth
	params.NodeMask = MinimalProof
	params.CountThreshold = 1000 // well above any visit count: only Solved forces emission

	samples := n.TacticSamples(params, MinimalProof)
	if len(samples) != 2 {
		t.Fatalf("expected 2 tactic samples (t0, t2), got %d", len(samples))
	}
	for _, ts := range samples {
		if ts.InProof != InMinimalProof {
			t.Fatalf("tactic %q: InProof = %v, want InMinimalProof", ts.Tactic.UniqueString, ts.InProof)
		}
		if ts.Tactic.UniqueString == "t1" {
			t.Fatal("t1 is not on the minimum proof for Depth and should not have been emitted")
		}
	}
}

func TestSolvedQValueNonFallthrough(t *testing.T) {
	g := NewGoal("A", nil)
	n, _ := NewNode(g, []Tactic{{UniqueString: "t0", IsValid: true}}, [][]*Goal{{}}, []float64{1.0}, 0)
	n.Counts[0] = 2
	n.VirtualCounts[0] = 1

	cases := []struct {
		mode QValueSolved
		want float64
	}{
		{OneOverVirtualCounts, 1.0 / 2.0},
		{OneOverCountsNoFPU, 1.0 / 3.0},
		{CountOverCountsNoFPU, 2.0 / 3.0},
	}
	for _, c := range cases {
		got := n.solvedQValue(0, 3, c.mode)
		if math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("mode %v: got %v, want %v", c.mode, got, c.want)
		}
	}
}
