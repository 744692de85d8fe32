package img2map

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wbrown/img2map/imageutil"
	"github.com/wbrown/img2map/twmap"
)

// MapExtension is the extension given to generated map files.
const MapExtension = ".map"

// maxCachedColors bounds the per-image nearest-match cache.
const maxCachedColors = 1 << 16

// Converter turns images into map files. It is configured once and may
// convert any number of images, concurrently if asked to.
type Converter struct {
	palette    Palette
	mode       MatchMode
	tileSize   int
	filter     imageutil.Filter
	workers    int
	logger     *slog.Logger
	onProgress func(FileResult)

	classifier Classifier
	template   func() (*twmap.Map, error)
}

// ConverterOption is a functional option for configuring a Converter.
type ConverterOption func(*Converter)

// WithPalette sets the palette. The default is DefaultPalette.
func WithPalette(p Palette) ConverterOption {
	return func(c *Converter) {
		c.palette = p
	}
}

// WithMatchMode selects exact or nearest colour matching.
func WithMatchMode(mode MatchMode) ConverterOption {
	return func(c *Converter) {
		c.mode = mode
	}
}

// WithTileSize sets how many source pixels along each axis make up one
// tile. The default is 1.
func WithTileSize(n int) ConverterOption {
	return func(c *Converter) {
		c.tileSize = n
	}
}

// WithFilter sets the resampling filter used when the tile size is above 1.
func WithFilter(f imageutil.Filter) ConverterOption {
	return func(c *Converter) {
		c.filter = f
	}
}

// WithWorkers sets how many files a batch converts at once. The default
// of 1 converts files one after another.
func WithWorkers(n int) ConverterOption {
	return func(c *Converter) {
		c.workers = n
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) ConverterOption {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithProgress registers a callback run after every file of a batch,
// successful or not. Calls are serialised with the batch's own logging.
func WithProgress(fn func(FileResult)) ConverterOption {
	return func(c *Converter) {
		c.onProgress = fn
	}
}

// NewConverter applies the options, builds the classifier and checks that
// the map template loads.
func NewConverter(opts ...ConverterOption) (*Converter, error) {
	c := &Converter{
		mode:     MatchExact,
		tileSize: 1,
		filter:   imageutil.FilterNearest,
		workers:  1,
		logger:   slog.New(slog.DiscardHandler),
		template: twmap.Template,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tileSize < 1 {
		return nil, newError(ErrConfig, "", fmt.Errorf("tile size must be at least 1, got %d", c.tileSize))
	}
	if c.workers < 1 {
		return nil, newError(ErrConfig, "", fmt.Errorf("worker count must be at least 1, got %d", c.workers))
	}
	if c.palette == nil {
		p, err := DefaultPalette()
		if err != nil {
			return nil, err
		}
		c.palette = p
	}

	classifier, err := NewClassifier(c.palette, c.mode)
	if err != nil {
		return nil, newError(ErrConfig, "", err)
	}
	c.classifier = classifier

	if _, err := c.template(); err != nil {
		return nil, newError(ErrTemplate, "", err)
	}

	c.logger.Debug("converter ready",
		"mappings", len(c.palette),
		"match", c.mode,
		"tile_size", c.tileSize,
		"filter", c.filter)
	return c, nil
}

// Classifier returns the classifier built from the palette.
func (c *Converter) Classifier() Classifier {
	return c.classifier
}

// Grid decodes the image at path, downscales it by the tile size and
// classifies every pixel.
func (c *Converter) Grid(path string) (*TileGrid, error) {
	img, err := imageutil.LoadImage(path)
	if err != nil {
		return nil, newError(ErrImageDecode, path, err)
	}
	b := img.Bounds()
	if b.Dx() < c.tileSize || b.Dy() < c.tileSize {
		return nil, newError(ErrImageDecode, path,
			fmt.Errorf("image is %dx%d, smaller than one %dx%d tile", b.Dx(), b.Dy(), c.tileSize, c.tileSize))
	}
	small := imageutil.Downscale(img, c.tileSize, c.filter)
	if c.mode != MatchNearest {
		return BuildGrid(small, c.classifier), nil
	}

	// One cache per image keeps memory bounded across a batch.
	cache := NewCachingClassifier(c.classifier, maxCachedColors)
	grid := BuildGrid(small, cache)
	hits, misses := cache.Stats()
	c.logger.Debug("colour cache", "path", path, "hits", hits, "misses", misses)
	return grid, nil
}

// OutputPath returns input with its extension replaced by MapExtension.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + MapExtension
}

// Convert converts one image into a map file. An empty output writes next
// to the input.
func (c *Converter) Convert(input, output string) error {
	if output == "" {
		output = OutputPath(input)
	}

	grid, err := c.Grid(input)
	if err != nil {
		return err
	}
	return c.writeMap(grid, output)
}

func (c *Converter) writeMap(grid *TileGrid, path string) error {
	m, err := c.template()
	if err != nil {
		return newError(ErrTemplate, "", err)
	}

	tiles := make([]twmap.Tile, len(grid.Tiles))
	for i, id := range grid.Tiles {
		tiles[i] = twmap.Tile{Index: id}
	}
	if err := m.SetGameLayer(grid.Width, grid.Height, tiles); err != nil {
		return newError(ErrWrite, path, err)
	}

	c.logger.Info("exporting map", "path", path, "width", grid.Width, "height", grid.Height)
	if err := m.Save(path); err != nil {
		return newError(ErrWrite, path, err)
	}
	return nil
}

// FileResult reports the outcome of one file in a batch.
type FileResult struct {
	Input  string
	Output string
	Err    error
}

// ListImages returns the files in dir with a recognised image extension,
// sorted by name. Subdirectories are not descended into.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, newError(ErrDirectory, dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !imageutil.IsImagePath(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ConvertDirectory converts every image in inDir into outDir, which
// defaults to inDir and is created if missing.
func (c *Converter) ConvertDirectory(inDir, outDir string) ([]FileResult, error) {
	paths, err := ListImages(inDir)
	if err != nil {
		return nil, err
	}
	if outDir == "" {
		outDir = inDir
	}
	return c.ConvertFiles(paths, outDir)
}

// ConvertFiles converts each input into outDir. A file that fails to decode
// or write is reported in its FileResult and the batch carries on; errors
// that would hit every file (see IsFatal) stop the batch and are returned.
// Inputs whose map name was already taken by an earlier input, such as
// a.png and a.jpg, fail with ErrWrite instead of overwriting it. Results are
// in input order.
func (c *Converter) ConvertFiles(inputs []string, outDir string) ([]FileResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, newError(ErrDirectory, outDir, err)
	}

	results := make([]FileResult, len(inputs))
	var mu sync.Mutex
	record := func(i int, r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Err != nil {
			c.logger.Warn("skipping file", "input", r.Input, "err", r.Err)
		}
		results[i] = r
		if c.onProgress != nil {
			c.onProgress(r)
		}
	}

	claimed := make(map[string]string, len(inputs))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(c.workers)
	for i, input := range inputs {
		output := filepath.Join(outDir, OutputPath(filepath.Base(input)))
		if prev, ok := claimed[output]; ok {
			err := newError(ErrWrite, output, fmt.Errorf("map name already used by %s", prev))
			record(i, FileResult{Input: input, Output: output, Err: err})
			continue
		}
		claimed[output] = input

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			err := c.Convert(input, output)
			if IsFatal(err) {
				return err
			}
			record(i, FileResult{Input: input, Output: output, Err: err})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Failed returns the results that carry an error.
func Failed(results []FileResult) []FileResult {
	var out []FileResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
