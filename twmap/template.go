package twmap

import (
	"bytes"
	"sync"
)

// strToInts packs a name the way map items store it: n big-endian ints of
// four bytes each, every byte offset by 128, the final byte a terminator.
func strToInts(s string, n int) []int32 {
	buf := make([]byte, n*4)
	copy(buf[:len(buf)-1], s)

	out := make([]int32, n)
	for i := range out {
		b := buf[i*4 : i*4+4]
		out[i] = int32(uint32(b[0]+128)<<24 | uint32(b[1]+128)<<16 | uint32(b[2]+128)<<8 | uint32(b[3]+128))
	}
	out[n-1] = int32(uint32(out[n-1]) & 0xffffff00)
	return out
}

// intsToStr reverses strToInts.
func intsToStr(ints []int32) string {
	buf := make([]byte, 0, len(ints)*4)
	for _, v := range ints {
		u := uint32(v)
		buf = append(buf, byte(u>>24)-128, byte(u>>16)-128, byte(u>>8)-128, byte(u)-128)
	}
	if len(buf) > 0 {
		buf[len(buf)-1] = 0
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// emptyMap is the built-in template: one "Game" group holding a single 1x1
// "Game" tile layer.
func emptyMap() *DataFile {
	group := []int32{
		3,          // version
		0, 0,       // offset
		100, 100,   // parallax
		0, 1,       // start layer, layer count
		0,          // clipping
		0, 0, 0, 0, // clip rectangle
	}
	group = append(group, strToInts("Game", 3)...)

	layer := []int32{
		0, layerTypeTiles, 0, // layer header: version, type, flags
		tilemapVersion,
		1, 1, // width, height
		tilesFlagGame,
		255, 255, 255, 255, // colour
		-1, 0, // colour envelope, offset
		-1, // image
		0,  // data index
	}
	layer = append(layer, strToInts("Game", 3)...)
	layer = append(layer, -1, -1, -1, -1, -1) // tele, speedup, front, switch, tune

	return &DataFile{
		Items: []Item{
			{Type: ItemTypeVersion, ID: 0, Data: []int32{1}},
			{Type: ItemTypeInfo, ID: 0, Data: []int32{1, -1, -1, -1, -1}},
			{Type: ItemTypeGroup, ID: 0, Data: group},
			{Type: ItemTypeLayer, ID: 0, Data: layer},
		},
		Data: [][]byte{make([]byte, 4)},
	}
}

var templateBytes = sync.OnceValues(func() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := emptyMap().WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
})

// Template returns a fresh copy of the built-in empty map, ready to have its
// game layer replaced.
func Template() (*Map, error) {
	b, err := templateBytes()
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(b))
}
