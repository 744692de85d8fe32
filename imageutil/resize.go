package imageutil

import (
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Filter specifies the resampling filter used when downscaling.
type Filter int

const (
	// FilterNearest uses nearest-neighbor sampling.
	FilterNearest Filter = iota

	// FilterTriangle uses a linear (tent) kernel.
	FilterTriangle

	// FilterCatmullRom uses the Catmull-Rom cubic kernel.
	FilterCatmullRom

	// FilterGaussian uses a Gaussian kernel with sigma 0.5.
	FilterGaussian

	// FilterLanczos3 uses a Lanczos kernel with window 3.
	FilterLanczos3
)

var filterNames = [...]string{
	FilterNearest:    "nearest",
	FilterTriangle:   "triangle",
	FilterCatmullRom: "catmull-rom",
	FilterGaussian:   "gaussian",
	FilterLanczos3:   "lanczos3",
}

// Filters returns the names accepted by ParseFilter, in declaration order.
func Filters() []string {
	return append([]string(nil), filterNames[:]...)
}

// ParseFilter parses a filter name such as "catmull-rom".
func ParseFilter(s string) (Filter, error) {
	name := strings.ToLower(s)
	for f, n := range filterNames {
		if n == name {
			return Filter(f), nil
		}
	}
	return 0, fmt.Errorf("invalid resize filter %q, options are %s",
		s, strings.Join(filterNames[:], ", "))
}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("Filter(%d)", int(f))
	}
	return filterNames[f]
}

var (
	gaussianKernel = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		// sigma = 0.5; the scaler normalises weights, so the constant
		// factor is dropped.
		return math.Exp(-2 * t * t)
	}}

	lanczos3Kernel = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		return sinc(t) * sinc(t/3)
	}}
)

func sinc(t float64) float64 {
	if t == 0 {
		return 1
	}
	x := math.Pi * t
	return math.Sin(x) / x
}

func (f Filter) scaler() draw.Scaler {
	switch f {
	case FilterTriangle:
		return draw.BiLinear
	case FilterCatmullRom:
		return draw.CatmullRom
	case FilterGaussian:
		return gaussianKernel
	case FilterLanczos3:
		return lanczos3Kernel
	default:
		return draw.NearestNeighbor
	}
}

// Resize resamples img to width x height with the given filter.
//
// Each channel, alpha included, is resampled as its own opaque plane, so
// colour values are never premultiplied. A transparent pixel keeps the
// colour it was authored with.
func Resize(img image.Image, width, height int, f Filter) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return dst
	}

	src := ToNRGBA(img)
	sb := src.Bounds()
	scaler := f.scaler()
	in := image.NewGray(sb)
	out := image.NewGray(dst.Bounds())
	for ch := 0; ch < 4; ch++ {
		for y := 0; y < sb.Dy(); y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < sb.Dx(); x++ {
				in.Pix[y*in.Stride+x] = row[x*4+ch]
			}
		}
		scaler.Scale(out, out.Bounds(), in, in.Bounds(), draw.Src, nil)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dst.Pix[y*dst.Stride+x*4+ch] = out.Pix[y*out.Stride+x]
			}
		}
	}
	return dst
}

// Downscale shrinks img by an integer tile size so that every tileSize x
// tileSize block of source pixels becomes one pixel. The new dimensions are
// truncated, so trailing rows and columns that do not fill a whole tile are
// dropped. A tileSize of 1 or less returns the image unchanged.
func Downscale(img image.Image, tileSize int, f Filter) image.Image {
	if tileSize <= 1 {
		return img
	}
	b := img.Bounds()
	return Resize(img, b.Dx()/tileSize, b.Dy()/tileSize, f)
}
