package img2map

import (
	"image"
	"image/color"
)

// TileGrid holds one game tile index per processed pixel, row-major.
type TileGrid struct {
	Width, Height int
	Tiles         []uint8
}

// NewTileGrid returns an all-empty grid.
func NewTileGrid(width, height int) *TileGrid {
	return &TileGrid{
		Width:  width,
		Height: height,
		Tiles:  make([]uint8, width*height),
	}
}

// At returns the tile index at (x, y).
func (g *TileGrid) At(x, y int) uint8 {
	return g.Tiles[y*g.Width+x]
}

// Set stores the tile index at (x, y).
func (g *TileGrid) Set(x, y int, id uint8) {
	g.Tiles[y*g.Width+x] = id
}

// Rows returns the grid as one slice per row, sharing the grid's storage.
func (g *TileGrid) Rows() [][]uint8 {
	rows := make([][]uint8, g.Height)
	for y := range rows {
		rows[y] = g.Tiles[y*g.Width : (y+1)*g.Width]
	}
	return rows
}

// BuildGrid classifies every pixel of img in row-major order. The grid has
// the image's dimensions and its origin at the image's Bounds().Min.
func BuildGrid(img image.Image, c Classifier) *TileGrid {
	b := img.Bounds()
	grid := NewTileGrid(b.Dx(), b.Dy())

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < grid.Height; y++ {
			off := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < grid.Width; x++ {
				p := nrgba.Pix[off+x*4 : off+x*4+4 : off+x*4+4]
				grid.Set(x, y, c.Classify(Color{R: p[0], G: p[1], B: p[2], A: p[3]}).ID())
			}
		}
		return grid
	}

	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			grid.Set(x, y, c.Classify(Color{R: n.R, G: n.G, B: n.B, A: n.A}).ID())
		}
	}
	return grid
}
