package img2map

import (
	"image"
	"image/color"
	"sort"

	"github.com/ericpauley/go-quantize/quantize"
)

// SuggestPalette reduces img to at most n representative colours with a
// median cut and returns them as a palette of Empty entries, most common
// colour first. It is a starting point for writing mappings by hand.
func SuggestPalette(img image.Image, n int) Palette {
	if n < 1 || img.Bounds().Empty() {
		return nil
	}

	q := quantize.MedianCutQuantizer{}
	quantized := q.Quantize(make(color.Palette, 0, n), img)

	// Deduplicate after conversion to non-premultiplied keys.
	var colors []Color
	seen := make(map[Color]bool)
	var p color.Palette
	for _, qc := range quantized {
		c := ColorOf(qc)
		if seen[c] {
			continue
		}
		seen[c] = true
		colors = append(colors, c)
		p = append(p, c)
	}
	if len(colors) == 0 {
		return nil
	}

	counts := make([]int, len(colors))
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[p.Index(img.At(x, y))]++
		}
	}

	order := make([]int, len(colors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	out := make(Palette, len(order))
	for i, idx := range order {
		out[i] = Entry{Color: colors[idx], Class: Empty}
	}
	return out
}
