package htps

import "sort"

// edge identifies one hyper-edge endpoint: the parent goal and which of its
// tactics produced the child this edge points at.
type edge struct {
	parentKey string
	tacticIdx int
}

// sortEdges orders edges by (tacticIdx, parentKey) so callers that derive a
// tie-break or a "first" pick from edge iteration order get the same result
// on every run, independent of Go's randomized map iteration order.
func sortEdges(edges []edge) []edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].tacticIdx != edges[j].tacticIdx {
			return edges[i].tacticIdx < edges[j].tacticIdx
		}
		return edges[i].parentKey < edges[j].parentKey
	})
	return edges
}

// ancestry tracks, per goal key, the set of edges that currently (live) or
// ever (permanent) point at it. Live shrinks as tactics are killed;
// permanent never shrinks.
type ancestry struct {
	live      map[string]map[edge]bool
	permanent map[string]map[edge]bool
}

func newAncestry() *ancestry {
	return &ancestry{
		live:      map[string]map[edge]bool{},
		permanent: map[string]map[edge]bool{},
	}
}

func (a *ancestry) addLive(childKey string, e edge) {
	if a.live[childKey] == nil {
		a.live[childKey] = map[edge]bool{}
	}
	a.live[childKey][e] = true
}

func (a *ancestry) addPermanent(childKey string, e edge) {
	if a.permanent[childKey] == nil {
		a.permanent[childKey] = map[edge]bool{}
	}
	a.permanent[childKey][e] = true
	a.addLive(childKey, e)
}

func (a *ancestry) removeLive(childKey string, e edge) {
	if m, ok := a.live[childKey]; ok {
		delete(m, e)
		if len(m) == 0 {
			delete(a.live, childKey)
		}
	}
}

func (a *ancestry) liveCount(childKey string) int {
	return len(a.live[childKey])
}

func (a *ancestry) liveEdges(childKey string) []edge {
	m := a.live[childKey]
	out := make([]edge, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	return sortEdges(out)
}

func (a *ancestry) permanentEdges(childKey string) []edge {
	m := a.permanent[childKey]
	out := make([]edge, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	return sortEdges(out)
}
