package octree

import (
	"picquant/palette"
)

// Finalize assigns a palette index to every leaf and returns the palette of
// their mean colors, in depth first child-slot order. It can be called again
// and yields the same palette as long as no color was inserted in between.
func (t *Tree) Finalize() palette.Palette {
	if t.finalized {
		return t.palette
	}

	pal := make(palette.Palette, 0, t.leaves)
	if t.nodes[noNode].leaf || t.nodes[noNode].hasChildren() {
		t.walk(noNode, func(id nodeID) {
			n := &t.nodes[id]
			n.index = len(pal)
			pal = append(pal, mean(n))
		})
	}

	t.palette = pal
	t.finalized = true
	t.logger.Debug("finalized octree palette", "colors", len(pal))

	return pal
}

func mean(n *node) palette.Color {
	if n.count == 0 {
		return palette.Color{}
	}
	half := n.count / 2
	return palette.Color{
		R: uint8((n.r + half) / n.count),
		G: uint8((n.g + half) / n.count),
		B: uint8((n.b + half) / n.count),
	}
}

// walk calls fn for every leaf below id.
func (t *Tree) walk(id nodeID, fn func(nodeID)) {
	if t.nodes[id].leaf {
		fn(id)
		return
	}
	for _, child := range t.nodes[id].children {
		if child != noNode {
			t.walk(child, fn)
		}
	}
}

// Lookup returns the palette index of the leaf c falls into. When the descent
// for c leaves the tree, the closest palette color among the leaves of the
// last visited subtree is returned. That search does not cross the subtree,
// so a closer leaf on the other side of a bit boundary is missed: with leaves
// for {0, 0, 0} and {128, 0, 0}, {127, 0, 0} maps to black. Use
// palette.Palette.Index on the finalized palette for an exact nearest match.
// It returns -1 if the tree has not been finalized or holds no colors.
func (t *Tree) Lookup(c palette.Color) int {
	if !t.finalized || len(t.palette) == 0 {
		return -1
	}

	id := noNode
	for {
		n := &t.nodes[id]
		if n.leaf {
			return n.index
		}

		child := n.children[childIndex(c, n.level)]
		if child == noNode {
			return t.nearest(id, c)
		}
		id = child
	}
}

func (t *Tree) nearest(id nodeID, c palette.Color) int {
	ret, best := -1, 0
	t.walk(id, func(leaf nodeID) {
		idx := t.nodes[leaf].index
		d := palette.Distance(c, t.palette[idx])
		if ret < 0 || d < best {
			ret, best = idx, d
		}
	})
	return ret
}

// Index makes the tree usable wherever a nearest color index is needed.
func (t *Tree) Index(c palette.Color) int {
	return t.Lookup(c)
}
