/*
Package twmap reads and writes Teeworlds/DDNet map files.

A map is a version 4 "datafile": a header, a table of item types, offset
tables, a block of items (each a type, an id and a run of little-endian
int32 values) and a block of zlib-compressed data blobs that items refer to
by index. This package models only what is needed to swap the game layer of
an existing map; every other item and blob is carried through untouched.
*/
package twmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
)

const (
	headerSize     = 36
	itemHeaderSize = 8
	maxFileSize    = 1 << 30
)

// Errors returned by ReadDataFile, wrapped with detail.
var (
	// ErrInvalidHeader means the input is not a datafile.
	ErrInvalidHeader      = errors.New("twmap: invalid datafile header")
	// ErrUnsupportedVersion means a datafile version other than 4.
	ErrUnsupportedVersion = errors.New("twmap: unsupported datafile version")
	// ErrCorrupt means the tables or data blobs do not fit together.
	ErrCorrupt            = errors.New("twmap: corrupt datafile")
)

var magic = [4]byte{'D', 'A', 'T', 'A'}

type header struct {
	Magic        [4]byte
	Version      int32
	Size         int32
	Swaplen      int32
	NumItemTypes int32
	NumItems     int32
	NumData      int32
	ItemSize     int32
	DataSize     int32
}

type itemType struct {
	Type  int32
	Start int32
	Num   int32
}

// Item is one datafile item.
type Item struct {
	Type uint16
	ID   uint16
	Data []int32
}

// DataFile is a decoded datafile. Data holds the uncompressed blobs.
type DataFile struct {
	Items []Item
	Data  [][]byte
}

// Find returns the first item with the given type and id.
func (df *DataFile) Find(typ, id uint16) (*Item, bool) {
	for i := range df.Items {
		if df.Items[i].Type == typ && df.Items[i].ID == id {
			return &df.Items[i], true
		}
	}
	return nil, false
}

// ItemsOfType returns the items of one type in file order.
func (df *DataFile) ItemsOfType(typ uint16) []*Item {
	var out []*Item
	for i := range df.Items {
		if df.Items[i].Type == typ {
			out = append(out, &df.Items[i])
		}
	}
	return out
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func readInt32s(r io.Reader, n int) ([]int32, error) {
	out := make([]int32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return out, nil
}

// ReadDataFile decodes a version 4 datafile.
func ReadDataFile(r io.Reader) (*DataFile, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, h.Magic[:])
	}
	if h.Version != 4 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.NumItemTypes < 0 || h.NumItems < 0 || h.NumData < 0 ||
		h.ItemSize < 0 || h.DataSize < 0 || h.Size < 0 || h.Size > maxFileSize {
		return nil, fmt.Errorf("%w: negative or oversized counts", ErrInvalidHeader)
	}
	body := 12*int64(h.NumItemTypes) + 4*int64(h.NumItems) + 8*int64(h.NumData) +
		int64(h.ItemSize) + int64(h.DataSize)
	if body > int64(h.Size) {
		return nil, fmt.Errorf("%w: tables exceed declared size", ErrInvalidHeader)
	}

	types := make([]itemType, h.NumItemTypes)
	if err := binary.Read(r, binary.LittleEndian, types); err != nil {
		return nil, fmt.Errorf("%w: item types: %w", ErrCorrupt, err)
	}
	itemOffsets, err := readInt32s(r, int(h.NumItems))
	if err != nil {
		return nil, fmt.Errorf("%w: item offsets: %w", ErrCorrupt, err)
	}
	dataOffsets, err := readInt32s(r, int(h.NumData))
	if err != nil {
		return nil, fmt.Errorf("%w: data offsets: %w", ErrCorrupt, err)
	}
	dataSizes, err := readInt32s(r, int(h.NumData))
	if err != nil {
		return nil, fmt.Errorf("%w: data sizes: %w", ErrCorrupt, err)
	}

	items := make([]byte, h.ItemSize)
	if err := readFull(r, items); err != nil {
		return nil, fmt.Errorf("%w: items: %w", ErrCorrupt, err)
	}
	data := make([]byte, h.DataSize)
	if err := readFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrCorrupt, err)
	}

	df := &DataFile{
		Items: make([]Item, 0, h.NumItems),
		Data:  make([][]byte, 0, h.NumData),
	}

	for i, off := range itemOffsets {
		if off < 0 || int(off)+itemHeaderSize > len(items) {
			return nil, fmt.Errorf("%w: item %d offset out of range", ErrCorrupt, i)
		}
		typeAndID := binary.LittleEndian.Uint32(items[off:])
		size := int32(binary.LittleEndian.Uint32(items[off+4:]))
		start := int(off) + itemHeaderSize
		if size < 0 || size%4 != 0 || start+int(size) > len(items) {
			return nil, fmt.Errorf("%w: item %d size %d", ErrCorrupt, i, size)
		}
		values := make([]int32, size/4)
		for j := range values {
			values[j] = int32(binary.LittleEndian.Uint32(items[start+j*4:]))
		}
		df.Items = append(df.Items, Item{
			Type: uint16(typeAndID >> 16),
			ID:   uint16(typeAndID),
			Data: values,
		})
	}

	for i, off := range dataOffsets {
		end := len(data)
		if i+1 < len(dataOffsets) {
			end = int(dataOffsets[i+1])
		}
		if off < 0 || int(off) > end || end > len(data) {
			return nil, fmt.Errorf("%w: data %d offset out of range", ErrCorrupt, i)
		}
		if dataSizes[i] < 0 || dataSizes[i] > maxFileSize {
			return nil, fmt.Errorf("%w: data %d size %d", ErrCorrupt, i, dataSizes[i])
		}
		blob, err := inflate(data[off:end], int(dataSizes[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: data %d: %w", ErrCorrupt, i, err)
		}
		df.Data = append(df.Data, blob)
	}

	return df, nil
}

func inflate(compressed []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, size)
	if err := readFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

func deflate(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(blob); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo encodes the datafile. Items are grouped by type in ascending
// order; items of the same type keep their relative order.
func (df *DataFile) WriteTo(w io.Writer) (int64, error) {
	items := append([]Item(nil), df.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Type < items[j].Type
	})

	var types []itemType
	for i, item := range items {
		if len(types) == 0 || types[len(types)-1].Type != int32(item.Type) {
			types = append(types, itemType{Type: int32(item.Type), Start: int32(i)})
		}
		types[len(types)-1].Num++
	}

	itemOffsets := make([]int32, len(items))
	var itemSize int32
	for i, item := range items {
		itemOffsets[i] = itemSize
		itemSize += int32(itemHeaderSize + 4*len(item.Data))
	}

	compressed := make([][]byte, len(df.Data))
	dataOffsets := make([]int32, len(df.Data))
	dataSizes := make([]int32, len(df.Data))
	var dataSize int32
	for i, blob := range df.Data {
		c, err := deflate(blob)
		if err != nil {
			return 0, err
		}
		compressed[i] = c
		dataOffsets[i] = dataSize
		dataSizes[i] = int32(len(blob))
		dataSize += int32(len(c))
	}

	typesSize := int32(12 * len(types))
	offsetSize := int32(4 * (len(items) + 2*len(df.Data)))
	fileSize := headerSize + typesSize + offsetSize + itemSize + dataSize
	swapSize := fileSize - dataSize

	h := header{
		Magic:        magic,
		Version:      4,
		Size:         fileSize - 16,
		Swaplen:      swapSize - 16,
		NumItemTypes: int32(len(types)),
		NumItems:     int32(len(items)),
		NumData:      int32(len(df.Data)),
		ItemSize:     itemSize,
		DataSize:     dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, fileSize))
	binary.Write(buf, binary.LittleEndian, h)
	binary.Write(buf, binary.LittleEndian, types)
	binary.Write(buf, binary.LittleEndian, itemOffsets)
	binary.Write(buf, binary.LittleEndian, dataOffsets)
	binary.Write(buf, binary.LittleEndian, dataSizes)
	for _, item := range items {
		binary.Write(buf, binary.LittleEndian, uint32(item.Type)<<16|uint32(item.ID))
		binary.Write(buf, binary.LittleEndian, int32(4*len(item.Data)))
		binary.Write(buf, binary.LittleEndian, item.Data)
	}
	for _, c := range compressed {
		buf.Write(c)
	}

	return buf.WriteTo(w)
}
