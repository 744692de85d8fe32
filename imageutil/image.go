// Package imageutil loads, converts and resamples images ahead of tile
// classification.
package imageutil

import (
	"image"
	"image/color"
)

// ToNRGBA converts any image.Image to an origin-aligned *image.NRGBA.
// Images that already are one are returned as is. Pixels are converted one
// by one through color.NRGBAModel, so a decoder that reports straight
// colours (paletted PNGs, NRGBA) keeps the colour of transparent pixels.
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) {
		return n
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < bounds.Dy(); y++ {
			off := n.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], n.Pix[off:off+4*bounds.Dx()])
		}
		return dst
	}

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}
