package htps

import (
	"sort"
	"strconv"
	"strings"
)

// visit is one goal's recorded state within a single Simulation.
type visit struct {
	goal *Goal

	parent    edge // which (parent goal key, tactic idx) led here; tacticIdx -1 for root
	depth     int
	tacticIdx int // -1 until this goal's own tactic choice is made (leaf: never set)

	children []*Goal // children of the chosen tactic, once chosen

	value      float64
	solved     bool
	hasValue   bool
	virtualAdded bool
}

// Simulation is one top-down root-to-leaf trace: it remembers, per visited
// goal, the chosen tactic, depth, whether virtual loss was reserved on its
// own chosen tactic, and a per-path seen-set for cycle detection. Backup
// walks it bottom-up once every leaf's value is known.
type Simulation struct {
	Root *Goal

	visits map[string]*visit
	order  []string // discovery order, root first; backup walks this in reverse

	seen map[string]bool

	// toExpand are leaf goals with no node yet; terminal are leaves whose
	// value is already known (solved-leaf / bad / early-stopping cutoff).
	toExpand []*Goal
	terminal []*Goal

	pending int // count of toExpand leaves not yet resolved by receiveExpansion
}

func newSimulation(root *Goal) *Simulation {
	s := &Simulation{
		Root:   root,
		visits: map[string]*visit{},
		seen:   map[string]bool{},
	}
	s.visit(root, edge{parentKey: rootPseudoParent, tacticIdx: -1}, 0)
	return s
}

func (s *Simulation) visit(goal *Goal, parent edge, depth int) *visit {
	key := goal.Key()
	if v, ok := s.visits[key]; ok {
		return v
	}
	v := &visit{goal: goal, parent: parent, depth: depth, tacticIdx: -1}
	s.visits[key] = v
	s.order = append(s.order, key)
	s.seen[key] = true
	return v
}

func (s *Simulation) markToExpand(goal *Goal) {
	s.toExpand = append(s.toExpand, goal)
	s.pending++
}

func (s *Simulation) markTerminal(goal *Goal, value float64, solved bool) {
	v := s.visit(goal, s.visits[goal.Key()].parent, s.visits[goal.Key()].depth)
	v.value = value
	v.solved = solved
	v.hasValue = true
	s.terminal = append(s.terminal, goal)
}

func (s *Simulation) chooseTactic(goal *Goal, tacticIdx int, children []*Goal, virtualAdded bool) {
	v := s.visits[goal.Key()]
	v.tacticIdx = tacticIdx
	v.children = children
	v.virtualAdded = virtualAdded
}

func (s *Simulation) hasSeen(goalKey string) bool {
	return s.seen[goalKey]
}

// Leaves returns the goals this simulation ended its traversal on and that
// still need an expansion from the caller.
func (s *Simulation) Leaves() []*Goal {
	return s.toExpand
}

// LeaveCount is the number of leaves spanning terminal + to_expand.
func (s *Simulation) LeaveCount() int {
	return len(s.terminal) + len(s.toExpand)
}

// receiveExpansion records an expansion's resulting value for every pending
// leaf matching goal.
func (s *Simulation) receiveExpansion(goal *Goal, value float64, solved bool) {
	key := goal.Key()
	v, ok := s.visits[key]
	if !ok {
		return
	}
	v.value = value
	v.solved = solved
	v.hasValue = true
	s.pending--
}

// Hash returns a deterministic string identity used for backup_once
// deduplication: two simulations hash equal iff they share a root and, for
// every goal visited, chose the same tactic over the same ordered children.
func (s *Simulation) Hash() string {
	keys := make([]string, 0, len(s.visits))
	for k := range s.visits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Root.Key())
	for _, k := range keys {
		v := s.visits[k]
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(v.tacticIdx))
		for _, c := range v.children {
			b.WriteByte(',')
			b.WriteString(c.Key())
		}
	}
	return b.String()
}

// cleanupVirtualLoss undoes every virtual-loss reservation this simulation
// made on its own chosen tactics: for every visited goal that chose a tactic
// and reserved virtual loss on it, release that reservation on the goal's
// own node.
func (s *Simulation) cleanupVirtualLoss(nodes map[string]*Node, virtualLoss int) {
	for _, key := range s.order {
		v := s.visits[key]
		if !v.virtualAdded {
			continue
		}
		if node, ok := nodes[key]; ok {
			node.SubtractVirtualCount(v.tacticIdx, virtualLoss)
		}
		v.virtualAdded = false
	}
}
