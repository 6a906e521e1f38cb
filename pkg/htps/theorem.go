package htps

import (
	"sort"
	"strings"
)

// Hypothesis is a single named assumption available to a Goal. Identifier
// ordering never affects a Goal's identity (see Key).
type Hypothesis struct {
	Identifier string
	Type       string
}

// Context carries opaque namespace strings that accompany a Goal but never
// participate in its identity (mirrors the Lean-specific `context` struct of
// the original source, kept domain-opaque here).
type Context struct {
	Namespaces []string
}

// Goal is a proof obligation (a "theorem" in the original HTPS terminology).
// Its payload (conclusion, hypotheses, context, past tactics, metadata) is
// opaque to the core search: only Key is ever compared or hashed.
type Goal struct {
	Conclusion  string
	Hypotheses  []Hypothesis
	Context     *Context
	PastTactics []Tactic
	// Metadata is caller-owned and returned verbatim; the core never
	// interprets it.
	Metadata any

	key string
}

// NewGoal builds a Goal and derives its canonical key from the conclusion
// and hypotheses. Hypothesis order never changes the resulting key.
func NewGoal(conclusion string, hypotheses []Hypothesis) *Goal {
	g := &Goal{Conclusion: conclusion, Hypotheses: hypotheses}
	g.key = canonicalKey(conclusion, hypotheses)
	return g
}

// WithContext attaches a Context and returns the Goal for chaining.
func (g *Goal) WithContext(ctx *Context) *Goal {
	g.Context = ctx
	return g
}

// WithMetadata attaches opaque caller metadata and returns the Goal for chaining.
func (g *Goal) WithMetadata(metadata any) *Goal {
	g.Metadata = metadata
	return g
}

// WithPastTactics records the tactic history that produced this Goal.
func (g *Goal) WithPastTactics(tactics []Tactic) *Goal {
	g.PastTactics = tactics
	return g
}

// Key returns the canonical, hypothesis-order-invariant identity of the Goal.
// Two Goals with the same conclusion and the same hypothesis set (in any
// order) always return the same Key.
func (g *Goal) Key() string {
	if g.key == "" {
		g.key = canonicalKey(g.Conclusion, g.Hypotheses)
	}
	return g.key
}

// Equal reports whether two Goals share the same identity.
func (g *Goal) Equal(other *Goal) bool {
	if g == nil || other == nil {
		return g == other
	}
	return g.Key() == other.Key()
}

// canonicalKey derives a stable identity string from a conclusion and an
// unordered hypothesis list: hypotheses are sorted by identifier so that
// permuting them never changes the result.
func canonicalKey(conclusion string, hypotheses []Hypothesis) string {
	sorted := make([]Hypothesis, len(hypotheses))
	copy(sorted, hypotheses)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Identifier < sorted[j].Identifier
	})

	var b strings.Builder
	b.WriteString(conclusion)
	for _, h := range sorted {
		b.WriteByte('\x1f')
		b.WriteString(h.Identifier)
		b.WriteByte('\x1e')
		b.WriteString(h.Type)
	}
	return b.String()
}
