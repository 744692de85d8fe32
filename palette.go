package img2map

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultMappings is the built-in palette configuration. It is printed
// verbatim by export-mappings so users can copy and edit it.
//
//go:embed colordata/default.yaml
var DefaultMappings string

// Entry associates one palette colour with the tile it produces.
type Entry struct {
	Color Color     `yaml:"color"`
	Class TileClass `yaml:"tile"`
}

// Palette is an ordered list of entries. Order matters: the nearest
// classifier breaks distance ties in favour of the earlier entry. Duplicate
// colours are allowed.
type Palette []Entry

type paletteDoc struct {
	Mappings Palette `yaml:"mappings"`
}

var defaultPalette = sync.OnceValues(func() (Palette, error) {
	return ParsePalette(bytes.NewReader([]byte(DefaultMappings)))
})

// DefaultPalette returns the parsed built-in palette. The returned slice is
// a copy and may be modified.
func DefaultPalette() (Palette, error) {
	p, err := defaultPalette()
	if err != nil {
		return nil, err
	}
	return append(Palette(nil), p...), nil
}

// ParsePalette reads palette configuration text. Unknown keys are rejected.
func ParsePalette(r io.Reader) (Palette, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc paletteDoc
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty configuration")
		}
		return nil, newError(ErrConfig, "", err)
	}
	if doc.Mappings == nil {
		return nil, newError(ErrConfig, "", errors.New(`missing "mappings" list`))
	}
	return doc.Mappings, nil
}

// LoadPalette loads the palette at path, or the built-in default when path
// is empty.
func LoadPalette(path string) (Palette, error) {
	if path == "" {
		return DefaultPalette()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrConfig, path, err)
	}
	defer f.Close()

	p, err := ParsePalette(f)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Path = path
		}
		return nil, err
	}
	return p, nil
}

// Encode writes the palette in the same text format ParsePalette reads.
func (p Palette) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(paletteDoc{Mappings: p}); err != nil {
		return fmt.Errorf("error encoding palette: %w", err)
	}
	return enc.Close()
}
