package main

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/proofsearch/htps/pkg/htps"
)

// runSearch drives the TheoremsToExpand / ExpandAndBackup loop to
// completion against the dummy expander, then prints the result.
func runSearch(ctx context.Context, logger *zap.Logger, root *htps.Goal, params htps.Params, maxWorkers int) error {
	searcher := htps.NewSearcher(root, params, htps.WithLogger(logger))

	for !searcher.IsDone() {
		goals, err := searcher.TheoremsToExpand()
		if err != nil {
			return err
		}
		if len(goals) == 0 {
			break
		}

		expansions, err := expandBatch(ctx, goals, maxWorkers)
		if err != nil {
			return err
		}
		if err := searcher.ExpandAndBackup(expansions); err != nil {
			return err
		}
	}

	result, err := searcher.GetResult()
	if err != nil {
		return err
	}
	renderResult(searcher, result)
	return nil
}

// expandBatch fetches a dummy expansion for every goal concurrently; the
// caller is free to parallelize the external expander between Searcher
// calls, so this exercises that.
func expandBatch(ctx context.Context, goals []*htps.Goal, maxWorkers int) ([]htps.Expansion, error) {
	expansions := make([]htps.Expansion, len(goals))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, goal := range goals {
		i, goal := i, goal
		g.Go(func() error {
			expansions[i] = dummyExpand(goal)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return expansions, nil
}

/// dummyExpand is NOT a theorem prover: it rewrites the opaque conclusion
// string with three fixed, depth-decreasing rules so a search against it
// terminates. A real neural expander is out of scope here.
func dummyExpand(goal *htps.Goal) htps.Expansion {
	conclusion := goal.Conclusion

	if conclusion == "" {
		return htps.Expansion{
			Goal:      goal,
			Tactics:   []htps.Tactic{{UniqueString: "qed", IsValid: true}},
			Children:  [][]*htps.Goal{{}},
			Priors:    []float64{1.0},
			LogCritic: 0,
		}
	}

	if idx := strings.IndexByte(conclusion, '&'); idx >= 0 {
		left := strings.TrimSpace(conclusion[:idx])
		right := strings.TrimSpace(conclusion[idx+1:])
		return htps.Expansion{
			Goal:    goal,
			Tactics: []htps.Tactic{{UniqueString: "split_and", IsValid: true}},
			Children: [][]*htps.Goal{{
				htps.NewGoal(left, goal.Hypotheses),
				htps.NewGoal(right, goal.Hypotheses),
			}},
			Priors:    []float64{1.0},
			LogCritic: 0,
		}
	}

	reduced := strings.TrimSpace(conclusion[1:])
	return htps.Expansion{
		Goal:      goal,
		Tactics:   []htps.Tactic{{UniqueString: "reduce", IsValid: true}},
		Children:  [][]*htps.Goal{{htps.NewGoal(reduced, goal.Hypotheses)}},
		Priors:    []float64{1.0},
		LogCritic: 0,
	}
}
