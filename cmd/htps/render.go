package main

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/proofsearch/htps/pkg/htps"
)

var (
	profile    = termenv.ColorProfile()
	solvedStyle = termenv.Style{}.Foreground(profile.Color("2")).Bold()
	deadStyle   = termenv.Style{}.Foreground(profile.Color("1")).Bold()
	dimStyle    = termenv.Style{}.Faint()
)

// renderResult prints the run's outcome and, when proven, the proof tree.
func renderResult(s *htps.Searcher, result *htps.Result) {
	fmt.Println(dimStyle.Styled(fmt.Sprintf("run %s", s.RunID)))

	switch {
	case s.IsProven():
		fmt.Println(solvedStyle.Styled("PROVEN"))
		renderProof(result.Proof, 0)
	case s.DeadRoot():
		fmt.Println(deadStyle.Styled("DEAD ROOT — no proof possible"))
	default:
		fmt.Println(dimStyle.Styled("search budget exhausted without a proof"))
	}

	fmt.Printf("critic samples: %d  tactic samples: %d  effect samples: %d  proof tactic samples: %d\n",
		len(result.CriticSamples), len(result.TacticSamples), len(result.EffectSamples), len(result.ProofSamplesTactics))
}

func renderProof(p *htps.ProofNode, depth int) {
	if p == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s  [%s]\n", indent, p.Goal.Conclusion, p.Tactic.UniqueString)
	for _, c := range p.Children {
		renderProof(c, depth+1)
	}
}
