package twmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	m, err := Template()
	require.NoError(t, err)

	w, h, tiles, err := m.GameLayer()
	require.NoError(t, err)
	require.Equal(t, 1, w)
	require.Equal(t, 1, h)
	require.Equal(t, []Tile{{}}, tiles)

	// Each call decodes its own copy.
	require.NoError(t, m.SetGameLayer(2, 1, []Tile{{Index: 1}, {Index: 9}}))
	fresh, err := Template()
	require.NoError(t, err)
	w, _, _, err = fresh.GameLayer()
	require.NoError(t, err)
	require.Equal(t, 1, w)
}

func TestSetGameLayerRoundTrip(t *testing.T) {
	m, err := Template()
	require.NoError(t, err)

	tiles := []Tile{
		{Index: 1}, {Index: 0}, {Index: 9},
		{Index: 192}, {Index: 33}, {Index: 34},
	}
	require.NoError(t, m.SetGameLayer(3, 2, tiles))

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	w, h, got, err := decoded.GameLayer()
	require.NoError(t, err)
	require.Equal(t, 3, w)
	require.Equal(t, 2, h)
	if diff := cmp.Diff(tiles, got); diff != "" {
		t.Errorf("game layer mismatch (-want +got):\n%s", diff)
	}
}

func TestSetGameLayerErrors(t *testing.T) {
	m, err := Template()
	require.NoError(t, err)

	require.Error(t, m.SetGameLayer(2, 2, make([]Tile, 3)))
	require.Error(t, m.SetGameLayer(0, 2, nil))
}

func TestSave(t *testing.T) {
	m, err := Template()
	require.NoError(t, err)
	require.NoError(t, m.SetGameLayer(1, 2, []Tile{{Index: 2}, {Index: 1}}))

	path := filepath.Join(t.TempDir(), "out.map")
	require.NoError(t, m.Save(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	loaded, err := Decode(f)
	require.NoError(t, err)
	_, _, tiles, err := loaded.GameLayer()
	require.NoError(t, err)
	require.Equal(t, []Tile{{Index: 2}, {Index: 1}}, tiles)
}

func TestDataFileRoundTrip(t *testing.T) {
	df := &DataFile{
		Items: []Item{
			{Type: 5, ID: 1, Data: []int32{7, -1}},
			{Type: 0, ID: 0, Data: []int32{1}},
			{Type: 5, ID: 0, Data: []int32{3}},
			{Type: 2, ID: 0},
		},
		Data: [][]byte{
			[]byte("hello hello hello"),
			{},
			bytes.Repeat([]byte{1, 2, 3, 4}, 100),
		},
	}

	var buf bytes.Buffer
	_, err := df.WriteTo(&buf)
	require.NoError(t, err)

	var h header
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, &h))
	require.Equal(t, int32(buf.Len()-16), h.Size)
	require.Equal(t, int32(3), h.NumItemTypes)

	got, err := ReadDataFile(&buf)
	require.NoError(t, err)

	want := &DataFile{
		Items: []Item{
			{Type: 0, ID: 0, Data: []int32{1}},
			{Type: 2, ID: 0, Data: []int32{}},
			{Type: 5, ID: 1, Data: []int32{7, -1}},
			{Type: 5, ID: 0, Data: []int32{3}},
		},
		Data: df.Data,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("datafile mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDataFileErrors(t *testing.T) {
	_, err := ReadDataFile(bytes.NewReader(nil))
	require.True(t, errors.Is(err, ErrInvalidHeader), "%v", err)

	_, err = ReadDataFile(bytes.NewReader(bytes.Repeat([]byte{'X'}, headerSize)))
	require.True(t, errors.Is(err, ErrInvalidHeader), "%v", err)

	var buf bytes.Buffer
	_, err = emptyMap().WriteTo(&buf)
	require.NoError(t, err)
	b := buf.Bytes()

	v3 := append([]byte(nil), b...)
	binary.LittleEndian.PutUint32(v3[4:], 3)
	_, err = ReadDataFile(bytes.NewReader(v3))
	require.True(t, errors.Is(err, ErrUnsupportedVersion), "%v", err)

	_, err = ReadDataFile(bytes.NewReader(b[:len(b)-3]))
	require.True(t, errors.Is(err, ErrCorrupt), "%v", err)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "%v", err)
}

func TestDecodeWithoutGameLayer(t *testing.T) {
	df := &DataFile{Items: []Item{{Type: ItemTypeVersion, Data: []int32{1}}}}
	var buf bytes.Buffer
	_, err := df.WriteTo(&buf)
	require.NoError(t, err)

	_, err = Decode(&buf)
	require.ErrorIs(t, err, ErrNoGameLayer)
}

func TestStrToInts(t *testing.T) {
	for _, s := range []string{"", "Game", "Tiles", "eleven char"} {
		require.Equal(t, s, intsToStr(strToInts(s, 3)))
	}
	// The last byte is always the terminator.
	require.Equal(t, "twelve chars!", intsToStr(strToInts("twelve chars!", 4)))
	require.Equal(t, "twelve char", intsToStr(strToInts("twelve chars", 3)))
}
