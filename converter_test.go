package img2map

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/img2map/imageutil"
	"github.com/wbrown/img2map/twmap"
)

var testPalette = Palette{
	{Color{255, 0, 0, 255}, Hookable},
	{Color{0, 0, 0, 0}, Freeze},
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, imageutil.SavePNG(img, path))
}

func readGameLayer(t *testing.T, path string) (int, int, []uint8) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := twmap.Decode(f)
	require.NoError(t, err)
	w, h, tiles, err := m.GameLayer()
	require.NoError(t, err)

	ids := make([]uint8, len(tiles))
	for i, tile := range tiles {
		require.Zero(t, tile.Flags)
		ids[i] = tile.Index
	}
	return w, h, ids
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "level.png")
	writePNG(t, input, scenarioImage())

	for _, tc := range []struct {
		mode MatchMode
		want []uint8
	}{
		{MatchExact, []uint8{1, 0, 0, 0}},
		{MatchNearest, []uint8{1, 9, 9, 9}},
	} {
		c, err := NewConverter(WithPalette(testPalette), WithMatchMode(tc.mode))
		require.NoError(t, err)

		require.NoError(t, c.Convert(input, ""))
		w, h, tiles := readGameLayer(t, filepath.Join(dir, "level.map"))
		assert.Equal(t, 2, w)
		assert.Equal(t, 2, h)
		if diff := cmp.Diff(tc.want, tiles); diff != "" {
			t.Errorf("%v: tiles mismatch (-want +got):\n%s", tc.mode, diff)
		}
	}
}

func TestConvertIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	writePNG(t, input, imageutil.CreateGradientImage(33, 17))

	c, err := NewConverter(WithMatchMode(MatchNearest), WithTileSize(2), WithFilter(imageutil.FilterLanczos3))
	require.NoError(t, err)

	first := filepath.Join(dir, "first.map")
	second := filepath.Join(dir, "second.map")
	require.NoError(t, c.Convert(input, first))
	require.NoError(t, c.Convert(input, second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGridTileSize(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	writePNG(t, input, imageutil.CreateGradientImage(10, 7))

	for _, tc := range []struct {
		tileSize      int
		width, height int
	}{
		{1, 10, 7},
		{2, 5, 3},
		{3, 3, 2},
		{7, 1, 1},
	} {
		c, err := NewConverter(WithTileSize(tc.tileSize), WithFilter(imageutil.FilterGaussian))
		require.NoError(t, err)
		grid, err := c.Grid(input)
		require.NoError(t, err)
		assert.Equal(t, tc.width, grid.Width, "t=%d", tc.tileSize)
		assert.Equal(t, tc.height, grid.Height, "t=%d", tc.tileSize)
		assert.Len(t, grid.Tiles, tc.width*tc.height)
	}

	c, err := NewConverter(WithTileSize(8))
	require.NoError(t, err)
	_, err = c.Grid(input)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestGridTileSizeClassifiesBlocks(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	red := color.NRGBA{R: 255, A: 255}
	writePNG(t, input, imageutil.CreateCheckerboardImage(8, 4, 4, red, color.NRGBA{}))

	c, err := NewConverter(WithPalette(testPalette), WithTileSize(4))
	require.NoError(t, err)
	grid, err := c.Grid(input)
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{{1, 9}}, grid.Rows())
}

func TestNewConverterErrors(t *testing.T) {
	_, err := NewConverter(WithTileSize(0))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewConverter(WithWorkers(0))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewConverter(WithMatchMode(MatchMode(5)))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	c, err := NewConverter()
	require.NoError(t, err)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	err = c.Convert(bad, "")
	assert.ErrorIs(t, err, ErrImageDecode)
	assert.False(t, IsFatal(err))

	good := filepath.Join(dir, "good.png")
	writePNG(t, good, scenarioImage())
	err = c.Convert(good, filepath.Join(dir, "missing", "out.map"))
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, IsFatal(err))
}

func TestConvertDirectory(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "nested", "maps")

	writePNG(t, filepath.Join(in, "a.png"), scenarioImage())
	writePNG(t, filepath.Join(in, "b.PNG"), imageutil.CreateSolidImage(3, 1, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, os.WriteFile(filepath.Join(in, "c.png"), []byte("corrupt"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(in, "sub.png"), 0o755))

	var mu sync.Mutex
	var seen []string
	c, err := NewConverter(
		WithPalette(testPalette),
		WithMatchMode(MatchNearest),
		WithWorkers(3),
		WithProgress(func(r FileResult) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, filepath.Base(r.Input))
		}),
	)
	require.NoError(t, err)

	results, err := c.ConvertDirectory(in, out)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.ElementsMatch(t, []string{"a.png", "b.PNG", "c.png"}, seen)

	assert.Equal(t, filepath.Join(in, "a.png"), results[0].Input)
	assert.Equal(t, filepath.Join(out, "a.map"), results[0].Output)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, ErrImageDecode)

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, filepath.Join(in, "c.png"), failed[0].Input)

	w, h, tiles := readGameLayer(t, filepath.Join(out, "a.map"))
	assert.Equal(t, []int{2, 2}, []int{w, h})
	assert.Equal(t, []uint8{1, 9, 9, 9}, tiles)

	w, h, tiles = readGameLayer(t, filepath.Join(out, "b.map"))
	assert.Equal(t, []int{3, 1}, []int{w, h})
	assert.Equal(t, []uint8{1, 1, 1}, tiles)

	_, err = os.Stat(filepath.Join(out, "c.map"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConvertDirectoryDefaultsToInput(t *testing.T) {
	in := t.TempDir()
	writePNG(t, filepath.Join(in, "only.png"), scenarioImage())

	c, err := NewConverter(WithPalette(testPalette))
	require.NoError(t, err)
	results, err := c.ConvertDirectory(in, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.FileExists(t, filepath.Join(in, "only.map"))
}

func TestConvertDirectoryFatalErrors(t *testing.T) {
	c, err := NewConverter()
	require.NoError(t, err)

	_, err = c.ConvertDirectory(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorIs(t, err, ErrDirectory)
	assert.True(t, IsFatal(err))

	// An output "directory" that is a regular file cannot be created.
	in := t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"), scenarioImage())
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = c.ConvertDirectory(in, blocker)
	assert.ErrorIs(t, err, ErrDirectory)

	// A template that stops loading aborts the whole batch.
	c.template = func() (*twmap.Map, error) { return nil, twmap.ErrNoGameLayer }
	writePNG(t, filepath.Join(in, "b.png"), scenarioImage())
	results, err := c.ConvertDirectory(in, "")
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrTemplate)
	assert.True(t, IsFatal(err))
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.webp", "a.png", "c.JPG", "d.map", "e"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	paths, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.webp"),
		filepath.Join(dir, "c.JPG"),
	}, paths)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "maps/level.map", OutputPath("maps/level.png"))
	assert.Equal(t, "level.v2.map", OutputPath("level.v2.jpeg"))
	assert.Equal(t, "noext.map", OutputPath("noext"))
}

func TestConvertDirectoryNameCollision(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	// Decoders sniff the content, so PNG bytes under .jpg still decode.
	writePNG(t, filepath.Join(in, "a.jpg"), scenarioImage())
	writePNG(t, filepath.Join(in, "a.png"), imageutil.CreateSolidImage(1, 1, color.NRGBA{R: 255, A: 255}))

	c, err := NewConverter(WithPalette(testPalette), WithWorkers(2))
	require.NoError(t, err)
	results, err := c.ConvertDirectory(in, out)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrWrite)
	assert.Contains(t, results[1].Err.Error(), "a.jpg")
	assert.Equal(t, results[0].Output, results[1].Output)

	// The map holds the first input, untouched by the second.
	w, h, tiles := readGameLayer(t, filepath.Join(out, "a.map"))
	assert.Equal(t, []int{2, 2}, []int{w, h})
	assert.Equal(t, []uint8{1, 0, 0, 0}, tiles)
}

func TestGridTransparentColourKeys(t *testing.T) {
	// Editors often store transparent pixels with a colour; downscaling must
	// not change which key they match.
	clearRed := color.NRGBA{R: 255}
	faint := color.NRGBA{R: 201, G: 99, B: 51, A: 3}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetNRGBA(x, y, clearRed)
			} else {
				img.SetNRGBA(x, y, faint)
			}
		}
	}
	input := filepath.Join(t.TempDir(), "clear.png")
	writePNG(t, input, img)

	p := Palette{
		{Color{255, 0, 0, 0}, Hookable},
		{Color{201, 99, 51, 3}, Freeze},
	}
	for _, tc := range []struct {
		tileSize int
		want     []uint8
	}{
		{1, []uint8{1, 1, 9, 9, 1, 1, 9, 9}},
		{2, []uint8{1, 9}},
	} {
		c, err := NewConverter(WithPalette(p), WithMatchMode(MatchNearest), WithTileSize(tc.tileSize))
		require.NoError(t, err)
		grid, err := c.Grid(input)
		require.NoError(t, err)
		assert.Equal(t, tc.want, grid.Tiles, "t=%d", tc.tileSize)

		// The colour cache lives per image, not on the converter.
		assert.IsType(t, &NearestClassifier{}, c.Classifier())
	}
}
