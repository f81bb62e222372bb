// Package octree implements an adaptive octree over RGB color space that
// buckets the colors of an image into a bounded set of representative colors.
//
// Each level of the tree consumes one bit of every channel, most significant
// first, giving an 8-way branch. Colors are accumulated in the leaves. Once the
// number of leaves exceeds the configured budget, leaves at the deepest level
// are merged into their parent, so the finest color distinctions are dropped
// before the coarser ones.
package octree

import (
	"errors"
	"fmt"
	"log/slog"

	"picquant/palette"
)

// LeafLevel is the depth at which leaves are created by Insert. Only the top
// LeafLevel bits of each channel select a bucket.
const LeafLevel = 5

// ErrInvalidBudget is returned when the leaf budget is not positive.
var ErrInvalidBudget = errors.New("octree: leaf budget must be positive")

type nodeID int32

// noNode marks an absent child. The root is node 0 and is never a child.
const noNode nodeID = 0

type node struct {
	children [8]nodeID
	parent   nodeID
	level    uint8
	leaf     bool
	count    uint64
	r, g, b  uint64
	index    int
}

func (n *node) hasChildren() bool {
	for _, c := range n.children {
		if c != noNode {
			return true
		}
	}
	return false
}

// Tree accumulates colors into an octree. The zero value is not usable, call
// New.
type Tree struct {
	nodes  []node
	free   []nodeID
	levels [LeafLevel + 1]map[nodeID]struct{}
	leaves int
	budget int

	palette   palette.Palette
	finalized bool

	logger *slog.Logger
}

// New creates an empty tree that keeps at most budget leaves.
func New(budget int) (*Tree, error) {
	if budget < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBudget, budget)
	}

	t := &Tree{
		nodes:  make([]node, 1, 64),
		budget: budget,
		logger: slog.Default(),
	}
	for i := range t.levels {
		t.levels[i] = make(map[nodeID]struct{})
	}

	return t, nil
}

// SetLogger replaces the logger used for debug output.
func (t *Tree) SetLogger(logger *slog.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Budget returns the maximum number of leaves the tree keeps.
func (t *Tree) Budget() int {
	return t.budget
}

// Leaves returns the current number of leaves.
func (t *Tree) Leaves() int {
	return t.leaves
}

// Stats returns the number of leaves registered at each level.
func (t *Tree) Stats() [LeafLevel + 1]int {
	var res [LeafLevel + 1]int
	for i, set := range t.levels {
		res[i] = len(set)
	}
	return res
}

// LogValue logs the tree as a group of its sizes.
func (t *Tree) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("leaves", t.leaves),
		slog.Int("budget", t.budget),
		slog.Int("nodes", len(t.nodes)-len(t.free)),
		slog.Bool("finalized", t.finalized),
	)
}

// childIndex selects the child slot for c at the given level from bit
// 7-level of each channel.
func childIndex(c palette.Color, level uint8) int {
	shift := 7 - level
	return int((c.R>>shift)&1)<<2 | int((c.G>>shift)&1)<<1 | int((c.B>>shift)&1)
}

func (t *Tree) newNode(parent nodeID, level uint8) nodeID {
	n := node{parent: parent, level: level, leaf: level == LeafLevel}

	var id nodeID
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
	} else {
		id = nodeID(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}

	if n.leaf {
		t.register(id)
	}
	return id
}

func (t *Tree) register(id nodeID) {
	t.levels[t.nodes[id].level][id] = struct{}{}
	t.leaves++
}

func (t *Tree) unregister(id nodeID) {
	set := t.levels[t.nodes[id].level]
	if _, ok := set[id]; !ok {
		panic(fmt.Sprintf("octree: leaf %d missing from level %d", id, t.nodes[id].level))
	}
	delete(set, id)
	t.leaves--
}

func (t *Tree) release(id nodeID) {
	t.nodes[id] = node{}
	t.free = append(t.free, id)
}

// Insert adds one pixel of color c to the tree, reducing it when the leaf
// budget is exceeded.
func (t *Tree) Insert(c palette.Color) {
	if t.finalized {
		t.finalized = false
		t.palette = nil
	}

	id := noNode
	for !t.nodes[id].leaf {
		n := &t.nodes[id]
		slot := childIndex(c, n.level)
		child := n.children[slot]
		if child == noNode {
			level := n.level + 1
			child = t.newNode(id, level)
			// newNode may grow the arena, so n is stale here
			t.nodes[id].children[slot] = child
		}
		id = child
	}

	n := &t.nodes[id]
	n.count++
	n.r += uint64(c.R)
	n.g += uint64(c.G)
	n.b += uint64(c.B)

	if t.leaves > t.budget {
		t.Reduce()
	}
}

// Reduce merges leaves into their parents until the tree is within budget.
// The deepest level is always merged first; within it, the parent whose
// leaves hold the fewest pixels goes first.
func (t *Tree) Reduce() {
	before := t.leaves
	for t.leaves > t.budget {
		t.reduceOnce()
	}
	if before != t.leaves {
		t.logger.Debug("reduced octree", "from", before, "to", t.leaves, "stats", t.Stats())
	}
}

func (t *Tree) deepestLevel() int {
	for level := LeafLevel; level >= 0; level-- {
		if len(t.levels[level]) > 0 {
			return level
		}
	}
	return -1
}

func (t *Tree) reduceOnce() {
	level := t.deepestLevel()
	if level <= 0 {
		// a single root leaf can not exceed a positive budget
		panic(fmt.Sprintf("octree: nothing to reduce with %d leaves over budget %d", t.leaves, t.budget))
	}

	populations := make(map[nodeID]uint64)
	for id := range t.levels[level] {
		populations[t.nodes[id].parent] += t.nodes[id].count
	}

	var (
		target nodeID
		best   uint64
		found  bool
	)
	for parent, count := range populations {
		if !found || count < best || (count == best && parent < target) {
			target, best, found = parent, count, true
		}
	}

	t.merge(target)
}

func (t *Tree) merge(id nodeID) {
	p := &t.nodes[id]
	for slot, child := range p.children {
		if child == noNode {
			continue
		}

		c := &t.nodes[child]
		if !c.leaf {
			panic(fmt.Sprintf("octree: merging non-leaf node %d at level %d", child, c.level))
		}

		p.count += c.count
		p.r += c.r
		p.g += c.g
		p.b += c.b
		p.children[slot] = noNode

		t.unregister(child)
		t.release(child)
	}

	p.leaf = true
	t.register(id)
}
