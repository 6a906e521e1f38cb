package htps

import (
	"fmt"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	SetSeedGeneratorFn(func() int64 { return 42 })
	fmt.Printf("using seed 42\n")
	os.Exit(m.Run())
}

func TestGoalKeyInvariantToHypothesisOrder(t *testing.T) {
	h1 := Hypothesis{Identifier: "h1", Type: "Nat"}
	h2 := Hypothesis{Identifier: "h2", Type: "Bool"}

	a := NewGoal("P x", []Hypothesis{h1, h2})
	b := NewGoal("P x", []Hypothesis{h2, h1})

	if a.Key() != b.Key() {
		t.Fatalf("permuting hypotheses changed identity: %q vs %q", a.Key(), b.Key())
	}
	if !a.Equal(b) {
		t.Fatal("Equal should hold for permuted hypotheses")
	}
}

func TestGoalKeyDistinguishesConclusion(t *testing.T) {
	a := NewGoal("P x", nil)
	b := NewGoal("Q x", nil)
	if a.Key() == b.Key() {
		t.Fatal("distinct conclusions produced the same key")
	}
}

func TestGoalKeyDistinguishesHypotheses(t *testing.T) {
	a := NewGoal("P x", []Hypothesis{{Identifier: "h1", Type: "Nat"}})
	b := NewGoal("P x", []Hypothesis{{Identifier: "h1", Type: "Bool"}})
	if a.Key() == b.Key() {
		t.Fatal("distinct hypothesis types produced the same key")
	}
}
