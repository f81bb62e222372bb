package octree

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"go.viam.com/test"

	"picquant/palette"
)

func randomColors(seed uint64, n int) []palette.Color {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	res := make([]palette.Color, n)
	for i := range res {
		v := rng.Uint32()
		res[i] = palette.Color{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}
	}
	return res
}

func build(t *testing.T, budget int, colors []palette.Color) *Tree {
	t.Helper()
	tree, err := New(budget)
	test.That(t, err, test.ShouldBeNil)
	for _, c := range colors {
		tree.Insert(c)
	}
	return tree
}

// checkRegistry verifies that every leaf is registered exactly once at its
// own level and nothing else is registered.
func checkRegistry(t *testing.T, tree *Tree) {
	t.Helper()
	seen := 0
	if tree.nodes[noNode].leaf || tree.nodes[noNode].hasChildren() {
		tree.walk(noNode, func(id nodeID) {
			n := tree.nodes[id]
			test.That(t, n.hasChildren(), test.ShouldBeFalse)
			_, ok := tree.levels[n.level][id]
			test.That(t, ok, test.ShouldBeTrue)
			seen++
		})
	}

	registered := 0
	for _, set := range tree.levels {
		registered += len(set)
	}
	test.That(t, registered, test.ShouldEqual, seen)
	test.That(t, tree.Leaves(), test.ShouldEqual, seen)
}

func leafLevel(tree *Tree, c palette.Color) uint8 {
	id := noNode
	for !tree.nodes[id].leaf {
		id = tree.nodes[id].children[childIndex(c, tree.nodes[id].level)]
	}
	return tree.nodes[id].level
}

func TestNew(t *testing.T) {
	_, err := New(0)
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrInvalidBudget.Error())

	_, err = New(-3)
	test.That(t, err, test.ShouldNotBeNil)

	tree, err := New(16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Budget(), test.ShouldEqual, 16)
	test.That(t, tree.Leaves(), test.ShouldEqual, 0)
}

func TestChildIndex(t *testing.T) {
	c := palette.Color{R: 0x80, G: 0x40, B: 0xff}
	test.That(t, childIndex(c, 0), test.ShouldEqual, 0b101)
	test.That(t, childIndex(c, 1), test.ShouldEqual, 0b011)
	test.That(t, childIndex(c, 2), test.ShouldEqual, 0b001)
	test.That(t, childIndex(palette.Color{}, 4), test.ShouldEqual, 0)
	test.That(t, childIndex(palette.Color{R: 255, G: 255, B: 255}, 7), test.ShouldEqual, 7)
}

func TestEmptyTree(t *testing.T) {
	tree := build(t, 4, nil)
	test.That(t, tree.Lookup(palette.Color{}), test.ShouldEqual, -1)
	pal := tree.Finalize()
	test.That(t, pal, test.ShouldHaveLength, 0)
	test.That(t, tree.Lookup(palette.Color{R: 1}), test.ShouldEqual, -1)
}

func TestSolidColor(t *testing.T) {
	c := palette.Color{R: 17, G: 201, B: 99}
	colors := make([]palette.Color, 1000)
	for i := range colors {
		colors[i] = c
	}

	tree := build(t, 8, colors)
	pal := tree.Finalize()
	test.That(t, pal, test.ShouldResemble, palette.Palette{c})
	test.That(t, tree.Lookup(c), test.ShouldEqual, 0)
	checkRegistry(t, tree)
}

func TestBlackAndWhite(t *testing.T) {
	black := palette.Color{}
	white := palette.Color{R: 255, G: 255, B: 255}
	var colors []palette.Color
	for i := range 64 {
		if i%2 == 0 {
			colors = append(colors, black)
		} else {
			colors = append(colors, white)
		}
	}

	t.Run("two colors", func(t *testing.T) {
		tree := build(t, 2, colors)
		pal := tree.Finalize()
		test.That(t, pal, test.ShouldResemble, palette.Palette{black, white})
		test.That(t, tree.Lookup(black), test.ShouldEqual, 0)
		test.That(t, tree.Lookup(white), test.ShouldEqual, 1)
		// never inserted, resolved to the closest leaf
		test.That(t, tree.Lookup(palette.Color{R: 10, G: 200, B: 30}), test.ShouldEqual, 0)
	})

	t.Run("single color", func(t *testing.T) {
		tree := build(t, 1, colors)
		pal := tree.Finalize()
		test.That(t, pal, test.ShouldResemble, palette.Palette{{R: 128, G: 128, B: 128}})
		test.That(t, tree.Stats()[0], test.ShouldEqual, 1)
		test.That(t, tree.Lookup(black), test.ShouldEqual, 0)
		test.That(t, tree.Lookup(white), test.ShouldEqual, 0)
		checkRegistry(t, tree)
	})
}

func TestBudget(t *testing.T) {
	colors := randomColors(1, 20000)
	for _, budget := range []int{1, 2, 3, 8, 16, 64, 255, 256} {
		tree := build(t, budget, colors)
		test.That(t, tree.Leaves(), test.ShouldBeLessThanOrEqualTo, budget)
		pal := tree.Finalize()
		test.That(t, len(pal), test.ShouldBeLessThanOrEqualTo, budget)
		test.That(t, len(pal), test.ShouldEqual, tree.Leaves())
		checkRegistry(t, tree)
	}
}

func TestLookupInsertedColors(t *testing.T) {
	colors := randomColors(2, 5000)
	tree := build(t, 64, colors)
	pal := tree.Finalize()

	for _, c := range colors {
		idx := tree.Lookup(c)
		test.That(t, idx, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, idx, test.ShouldBeLessThan, len(pal))

		// the representative color lies in the cube of the leaf c belongs to
		shift := 8 - leafLevel(tree, c)
		rep := pal[idx]
		test.That(t, rep.R>>shift, test.ShouldEqual, c.R>>shift)
		test.That(t, rep.G>>shift, test.ShouldEqual, c.G>>shift)
		test.That(t, rep.B>>shift, test.ShouldEqual, c.B>>shift)
	}
}

func TestReduceMonotonic(t *testing.T) {
	tree := build(t, 256, randomColors(3, 10000))
	checkRegistry(t, tree)

	for _, budget := range []int{200, 100, 37, 5, 1} {
		before := tree.Leaves()
		tree.budget = budget
		tree.Reduce()
		test.That(t, tree.Leaves(), test.ShouldBeLessThan, before)
		test.That(t, tree.Leaves(), test.ShouldBeLessThanOrEqualTo, budget)
		checkRegistry(t, tree)
	}

	// already within budget
	before := tree.Leaves()
	tree.Reduce()
	test.That(t, tree.Leaves(), test.ShouldEqual, before)
}

func TestReduceDeepestFirst(t *testing.T) {
	tree := build(t, 256, []palette.Color{
		{R: 0, G: 0, B: 0},
		{R: 8, G: 0, B: 0},
		{R: 255, G: 255, B: 255},
	})
	test.That(t, tree.Stats()[LeafLevel], test.ShouldEqual, 3)

	// the lone white leaf is the least populated and moves up first, then the
	// two dark leaves are merged
	tree.budget = 2
	tree.Reduce()
	stats := tree.Stats()
	test.That(t, stats[LeafLevel], test.ShouldEqual, 0)
	test.That(t, stats[LeafLevel-1], test.ShouldEqual, 2)

	pal := tree.Finalize()
	test.That(t, pal, test.ShouldResemble, palette.Palette{{R: 4}, {R: 255, G: 255, B: 255}})
}

func TestFinalizeDeterministic(t *testing.T) {
	colors := randomColors(4, 8000)

	first := build(t, 32, colors)
	pal := first.Finalize()
	test.That(t, first.Finalize(), test.ShouldResemble, pal)

	second := build(t, 32, colors)
	test.That(t, second.Finalize(), test.ShouldResemble, pal)
}

func TestInsertAfterFinalize(t *testing.T) {
	tree := build(t, 4, []palette.Color{{R: 1}})
	test.That(t, tree.Finalize(), test.ShouldHaveLength, 1)

	tree.Insert(palette.Color{B: 250})
	test.That(t, tree.Lookup(palette.Color{R: 1}), test.ShouldEqual, -1)
	test.That(t, tree.Finalize(), test.ShouldHaveLength, 2)
	test.That(t, tree.Index(palette.Color{B: 250}), test.ShouldEqual, 1)
}

func TestArenaReuse(t *testing.T) {
	tree := build(t, 8, randomColors(5, 3000))
	test.That(t, len(tree.free), test.ShouldBeGreaterThan, 0)

	live := len(tree.nodes) - len(tree.free)
	tree.Insert(palette.Color{R: 3, G: 3, B: 3})
	test.That(t, len(tree.nodes)-len(tree.free), test.ShouldBeGreaterThanOrEqualTo, live)
	checkRegistry(t, tree)
}

func TestReduceCorruptedTree(t *testing.T) {
	tree := build(t, 4, nil)
	tree.leaves = 10
	test.That(t, func() { tree.Reduce() }, test.ShouldPanic)
}

func TestReduceCorruptedRegistry(t *testing.T) {
	tree := build(t, 4, []palette.Color{{}, {R: 8}})
	test.That(t, tree.Stats()[LeafLevel], test.ShouldEqual, 2)

	var lost nodeID
	for id := range tree.levels[LeafLevel] {
		lost = id
		break
	}
	delete(tree.levels[LeafLevel], lost)

	tree.budget = 1
	msg := fmt.Sprintf("octree: leaf %d missing from level %d", lost, LeafLevel)
	test.That(t, func() { tree.Reduce() }, test.ShouldPanicWith, msg)
}

func TestLookupStaysInSubtree(t *testing.T) {
	red := palette.Color{R: 128}
	tree := build(t, 8, []palette.Color{{}, red})
	pal := tree.Finalize()
	test.That(t, pal, test.ShouldResemble, palette.Palette{{}, red})

	c := palette.Color{R: 127}
	test.That(t, tree.Lookup(c), test.ShouldEqual, 0)
	test.That(t, pal.Index(c), test.ShouldEqual, 1)
}

func TestLogValue(t *testing.T) {
	tree := build(t, 4, []palette.Color{{}, {R: 8}})
	attrs := tree.LogValue().Group()
	test.That(t, attrs, test.ShouldHaveLength, 4)
	test.That(t, attrs[0].String(), test.ShouldEqual, "leaves=2")
	test.That(t, attrs[1].String(), test.ShouldEqual, "budget=4")
	test.That(t, attrs[2].String(), test.ShouldEqual, "nodes=7")
	test.That(t, attrs[3].String(), test.ShouldEqual, "finalized=false")
}
