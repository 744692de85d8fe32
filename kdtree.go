package img2map

import (
	"sort"
)

// colorNode is a node in a 4-dimensional k-d tree over palette colours.
// Index is the entry's position in the palette and settles distance ties.
type colorNode struct {
	Color       Color
	Index       int
	Left, Right *colorNode
	SplitAxis   int
}

type indexedColor struct {
	color Color
	index int
}

// buildKDTree constructs a k-d tree from the palette colours. Each level
// splits on the channel with the largest variance at the median.
func buildKDTree(colors []indexedColor) *colorNode {
	if len(colors) == 0 {
		return nil
	}

	axis := chooseSplitAxis(colors)

	// Stable on insertion index, so equal channel values keep palette order
	// and the tree shape is reproducible.
	sort.SliceStable(colors, func(i, j int) bool {
		ci, cj := colors[i].color.channel(axis), colors[j].color.channel(axis)
		if ci != cj {
			return ci < cj
		}
		return colors[i].index < colors[j].index
	})

	median := len(colors) / 2
	return &colorNode{
		Color:     colors[median].color,
		Index:     colors[median].index,
		Left:      buildKDTree(colors[:median]),
		Right:     buildKDTree(colors[median+1:]),
		SplitAxis: axis,
	}
}

// chooseSplitAxis returns the channel (0=R, 1=G, 2=B, 3=A) with the largest
// variance, preferring the lower axis on equal variance.
func chooseSplitAxis(colors []indexedColor) int {
	var mean, variance [4]float64
	for _, c := range colors {
		for axis := 0; axis < 4; axis++ {
			mean[axis] += float64(c.color.channel(axis))
		}
	}
	for axis := range mean {
		mean[axis] /= float64(len(colors))
	}
	for _, c := range colors {
		for axis := 0; axis < 4; axis++ {
			d := float64(c.color.channel(axis)) - mean[axis]
			variance[axis] += d * d
		}
	}

	best := 0
	for axis := 1; axis < 4; axis++ {
		if variance[axis] > variance[best] {
			best = axis
		}
	}
	return best
}

// nearestNeighbor searches the subtree for the colour closest to target.
// best and bestDist carry the current candidate (-1 for none). A node
// replaces the candidate when it is strictly closer, or equally close with a
// lower palette index.
func (node *colorNode) nearestNeighbor(
	target Color, best *colorNode, bestDist int) (*colorNode, int) {
	if node == nil {
		return best, bestDist
	}

	dist := sqDist(node.Color, target)
	if best == nil || dist < bestDist || (dist == bestDist && node.Index < best.Index) {
		best = node
		bestDist = dist
	}

	axisDist := int(target.channel(node.SplitAxis)) - int(node.Color.channel(node.SplitAxis))
	next, other := node.Right, node.Left
	if axisDist < 0 {
		next, other = node.Left, node.Right
	}

	best, bestDist = next.nearestNeighbor(target, best, bestDist)

	// The far side can still hold an equally distant entry with a lower
	// index, so it is pruned only when strictly farther away.
	if axisDist*axisDist <= bestDist {
		best, bestDist = other.nearestNeighbor(target, best, bestDist)
	}

	return best, bestDist
}
