package img2map

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by a TileClass.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindHookable
	KindUnhookable
	KindFreeze
	KindSpawn
	KindStart
	KindFinish
	KindCustom
)

var kindNames = [...]string{
	KindEmpty:      "empty",
	KindHookable:   "hookable",
	KindUnhookable: "unhookable",
	KindFreeze:     "freeze",
	KindSpawn:      "spawn",
	KindStart:      "start",
	KindFinish:     "finish",
	KindCustom:     "custom",
}

// Game tile indices. These values are read by the game engine and must not
// change.
var kindIDs = [...]uint8{
	KindEmpty:      0,
	KindHookable:   1,
	KindUnhookable: 2,
	KindFreeze:     9,
	KindSpawn:      192,
	KindStart:      33,
	KindFinish:     34,
}

// TileClass is what a palette colour turns into: one of the fixed game tiles
// or a Custom tile carrying its own index. TileClass values are comparable.
type TileClass struct {
	kind Kind
	id   uint8
}

// The fixed game tiles.
var (
	// Empty is air; unmatched colours become Empty.
	Empty      = TileClass{kind: KindEmpty}
	Hookable   = TileClass{kind: KindHookable}
	Unhookable = TileClass{kind: KindUnhookable}
	Freeze     = TileClass{kind: KindFreeze}
	Spawn      = TileClass{kind: KindSpawn}
	Start      = TileClass{kind: KindStart}
	Finish     = TileClass{kind: KindFinish}
)

// Custom returns a tile class that emits the given game tile index verbatim.
func Custom(id uint8) TileClass {
	return TileClass{kind: KindCustom, id: id}
}

// Kind returns the variant tag.
func (t TileClass) Kind() Kind { return t.kind }

// ID returns the numeric game tile index for the class.
func (t TileClass) ID() uint8 {
	if t.kind == KindCustom {
		return t.id
	}
	return kindIDs[t.kind]
}

func (t TileClass) String() string {
	if t.kind == KindCustom {
		return fmt.Sprintf("custom(%d)", t.id)
	}
	return kindNames[t.kind]
}

// ParseTileClass accepts a tile name ("hookable"), a bare game index ("42")
// or the String form of a custom class ("custom(42)").
func ParseTileClass(s string) (TileClass, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if Kind(k) != KindCustom && n == name {
			return TileClass{kind: Kind(k)}, nil
		}
	}
	if inner, ok := strings.CutPrefix(name, "custom("); ok {
		if name, ok = strings.CutSuffix(inner, ")"); !ok {
			return Empty, fmt.Errorf("unknown tile class %q", s)
		}
	}
	id, err := parseTileID(name)
	if err != nil {
		return Empty, fmt.Errorf("unknown tile class %q", s)
	}
	return Custom(id), nil
}

func parseTileID(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}

// MarshalYAML writes fixed classes by name and custom classes as their
// bare index.
func (t TileClass) MarshalYAML() (interface{}, error) {
	if t.kind == KindCustom {
		return int(t.id), nil
	}
	return kindNames[t.kind], nil
}

// UnmarshalYAML accepts a name, a bare integer, or a {custom: n} mapping.
func (t *TileClass) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		c, err := ParseTileClass(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %v", value.Line, err)
		}
		*t = c
		return nil
	case yaml.MappingNode:
		var m struct {
			Custom *int `yaml:"custom"`
		}
		if err := value.Decode(&m); err != nil {
			return err
		}
		if m.Custom == nil || *m.Custom < 0 || *m.Custom > 255 {
			return fmt.Errorf("line %d: custom tile needs an index in 0..255", value.Line)
		}
		*t = Custom(uint8(*m.Custom))
		return nil
	}
	return fmt.Errorf("line %d: tile class must be a name or an index", value.Line)
}
