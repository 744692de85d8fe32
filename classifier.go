package img2map

import (
	"fmt"
	"strings"
)

// Classifier turns a pixel colour into a tile class. Implementations are
// immutable once built and safe for concurrent use.
type Classifier interface {
	Classify(c Color) TileClass
}

// MatchMode selects the classification strategy.
type MatchMode int

const (
	// MatchExact requires a literal colour match; anything else is Empty.
	MatchExact MatchMode = iota
	// MatchNearest picks the closest palette colour.
	MatchNearest
)

func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchNearest:
		return "nearest"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// ParseMatchMode parses "exact" or "nearest".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "exact":
		return MatchExact, nil
	case "nearest":
		return MatchNearest, nil
	}
	return 0, fmt.Errorf("invalid match mode %q, options are exact or nearest", s)
}

// NewClassifier builds the classifier for mode over the palette.
func NewClassifier(p Palette, mode MatchMode) (Classifier, error) {
	switch mode {
	case MatchExact:
		return NewExactClassifier(p), nil
	case MatchNearest:
		return NewNearestClassifier(p), nil
	}
	return nil, fmt.Errorf("invalid match mode %v", mode)
}

// ExactClassifier looks colours up in a hash table.
type ExactClassifier struct {
	table map[Color]TileClass
}

// NewExactClassifier indexes the palette. Later entries overwrite earlier
// ones with the same colour.
func NewExactClassifier(p Palette) *ExactClassifier {
	table := make(map[Color]TileClass, len(p))
	for _, e := range p {
		table[e.Color] = e.Class
	}
	return &ExactClassifier{table: table}
}

// Classify returns the class listed for c, or Empty.
func (e *ExactClassifier) Classify(c Color) TileClass {
	if class, ok := e.table[c]; ok {
		return class
	}
	return Empty
}

// NearestClassifier answers with the palette entry closest to the queried
// colour, using a k-d tree built once over the palette.
type NearestClassifier struct {
	palette Palette
	tree    *colorNode
}

// NewNearestClassifier builds the k-d tree over all palette colours.
func NewNearestClassifier(p Palette) *NearestClassifier {
	colors := make([]indexedColor, len(p))
	for i, e := range p {
		colors[i] = indexedColor{color: e.Color, index: i}
	}
	return &NearestClassifier{
		palette: append(Palette(nil), p...),
		tree:    buildKDTree(colors),
	}
}

// Nearest returns the closest entry and its palette index. Among equally
// close entries the one inserted first wins. ok is false for an empty
// palette.
func (n *NearestClassifier) Nearest(c Color) (e Entry, index int, ok bool) {
	best, _ := n.tree.nearestNeighbor(c, nil, -1)
	if best == nil {
		return Entry{}, -1, false
	}
	return n.palette[best.Index], best.Index, true
}

// Classify returns the class of the nearest entry, or Empty for an empty
// palette.
func (n *NearestClassifier) Classify(c Color) TileClass {
	e, _, ok := n.Nearest(c)
	if !ok {
		return Empty
	}
	return e.Class
}
