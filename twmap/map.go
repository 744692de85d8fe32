package twmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Map item types.
const (
	ItemTypeVersion  uint16 = 0
	ItemTypeInfo     uint16 = 1
	ItemTypeImage    uint16 = 2
	ItemTypeEnvelope uint16 = 3
	ItemTypeGroup    uint16 = 4
	ItemTypeLayer    uint16 = 5
)

const (
	layerTypeTiles = 2
	tilesFlagGame  = 1

	tilemapVersion = 3
)

// Offsets into a tile layer item's values.
const (
	layerType       = 1
	tilemapVersionI = 3
	tilemapWidth    = 4
	tilemapHeight   = 5
	tilemapFlags    = 6
	tilemapData     = 14
	tilemapMinLen   = 18
)

// ErrNoGameLayer is returned for a map without a game tile layer.
var ErrNoGameLayer = errors.New("twmap: map has no game layer")

// Tile is one cell of a tile layer as stored on disk.
type Tile struct {
	Index    uint8
	Flags    uint8
	Skip     uint8
	Reserved uint8
}

// Map is a decoded map file.
type Map struct {
	df *DataFile
}

// Decode reads a map and checks that it has a game layer.
func Decode(r io.Reader) (*Map, error) {
	df, err := ReadDataFile(r)
	if err != nil {
		return nil, err
	}
	if _, ok := df.Find(ItemTypeVersion, 0); !ok {
		return nil, fmt.Errorf("%w: missing version item", ErrCorrupt)
	}
	m := &Map{df: df}
	if _, err := m.gameLayer(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode writes the map.
func (m *Map) Encode(w io.Writer) error {
	_, err := m.df.WriteTo(w)
	return err
}

// Save writes the map to path.
func (m *Map) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := m.Encode(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Map) gameLayer() (*Item, error) {
	for _, item := range m.df.ItemsOfType(ItemTypeLayer) {
		if len(item.Data) < tilemapMinLen {
			continue
		}
		if item.Data[layerType] == layerTypeTiles && item.Data[tilemapFlags]&tilesFlagGame != 0 {
			idx := item.Data[tilemapData]
			if idx < 0 || int(idx) >= len(m.df.Data) {
				return nil, fmt.Errorf("%w: game layer data index %d", ErrCorrupt, idx)
			}
			return item, nil
		}
	}
	return nil, ErrNoGameLayer
}

// GameLayer returns the dimensions and tiles of the game layer.
func (m *Map) GameLayer() (width, height int, tiles []Tile, err error) {
	item, err := m.gameLayer()
	if err != nil {
		return 0, 0, nil, err
	}
	width, height = int(item.Data[tilemapWidth]), int(item.Data[tilemapHeight])
	blob := m.df.Data[item.Data[tilemapData]]
	if width < 0 || height < 0 || len(blob) != width*height*4 {
		return 0, 0, nil, fmt.Errorf("%w: game layer is %dx%d but holds %d bytes",
			ErrCorrupt, width, height, len(blob))
	}

	tiles = make([]Tile, width*height)
	for i := range tiles {
		tiles[i] = Tile{blob[i*4], blob[i*4+1], blob[i*4+2], blob[i*4+3]}
	}
	return width, height, tiles, nil
}

// SetGameLayer replaces the game layer's size and contents. tiles is
// row-major and must hold exactly width*height cells.
func (m *Map) SetGameLayer(width, height int, tiles []Tile) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("twmap: game layer must be at least 1x1, got %dx%d", width, height)
	}
	if len(tiles) != width*height {
		return fmt.Errorf("twmap: %d tiles do not fill a %dx%d layer", len(tiles), width, height)
	}
	item, err := m.gameLayer()
	if err != nil {
		return err
	}

	blob := make([]byte, 4*len(tiles))
	for i, t := range tiles {
		blob[i*4] = t.Index
		blob[i*4+1] = t.Flags
		blob[i*4+2] = t.Skip
		blob[i*4+3] = t.Reserved
	}

	item.Data[tilemapVersionI] = tilemapVersion
	item.Data[tilemapWidth] = int32(width)
	item.Data[tilemapHeight] = int32(height)
	m.df.Data[item.Data[tilemapData]] = blob
	return nil
}
