package img2map

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is a palette key: four non-premultiplied 8-bit channels. Alpha is
// part of the key, so a fully transparent pixel never matches an opaque one.
type Color struct {
	R, G, B, A uint8
}

// ColorOf converts any color.Color to a non-premultiplied Color.
func ColorOf(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// channel returns the value on the given axis: 0=R, 1=G, 2=B, 3=A.
func (c Color) channel(axis int) uint8 {
	switch axis {
	case 0:
		return c.R
	case 1:
		return c.G
	case 2:
		return c.B
	default:
		return c.A
	}
}

// sqDist returns the squared Euclidean distance between two colours over all
// four channels. Normalising every channel to [0,1] divides all distances by
// the same constant, so comparisons are unchanged and ties stay exact.
func sqDist(a, b Color) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	da := int(a.A) - int(b.A)
	return dr*dr + dg*dg + db*db + da*da
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// parseHexColor parses "#rrggbb" (opaque) or "#rrggbbaa".
func parseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return Color{}, fmt.Errorf("color %q must be #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("error parsing color %q: %v", s, err)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MarshalYAML writes the colour as a flow list [r, g, b, a].
func (c Color) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range [4]uint8{c.R, c.G, c.B, c.A} {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: strconv.Itoa(int(v)),
		})
	}
	return node, nil
}

// UnmarshalYAML accepts [r, g, b, a] or a hex string.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := parseHexColor(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %v", value.Line, err)
		}
		*c = parsed
		return nil
	case yaml.SequenceNode:
		var ch []int
		if err := value.Decode(&ch); err != nil {
			return err
		}
		if len(ch) != 4 {
			return fmt.Errorf("line %d: color needs 4 channels, got %d", value.Line, len(ch))
		}
		var out [4]uint8
		for i, v := range ch {
			if v < 0 || v > 255 {
				return fmt.Errorf("line %d: channel value %d out of range", value.Line, v)
			}
			out[i] = uint8(v)
		}
		*c = Color{R: out[0], G: out[1], B: out[2], A: out[3]}
		return nil
	}
	return fmt.Errorf("line %d: color must be a list or a hex string", value.Line)
}
