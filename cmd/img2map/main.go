package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/wbrown/img2map"
	"github.com/wbrown/img2map/imageutil"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

// newApp builds the command tree writing to stdout and stderr. Errors are
// returned from Run rather than exiting the process.
func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "img2map",
		Usage:     "Convert images into DDNet maps",
		Version:   "1.0.0",
		Writer:    stdout,
		ErrWriter: &lockedWriter{w: stderr},
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "increase verbosity",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "export-mappings",
				Usage:  "Print the default colour mappings",
				Action: exportMappings,
			},
			{
				Name:      "convert",
				Usage:     "Convert a single image into a map",
				ArgsUsage: "IMAGE",
				Flags: append(conversionFlags(), &cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "map file to write, defaults to IMAGE with a .map extension",
				}),
				Action: convert,
			},
			{
				Name:      "convert-directory",
				Usage:     "Convert every image in a directory",
				ArgsUsage: "DIRECTORY",
				Flags: append(conversionFlags(),
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "directory for map files, defaults to DIRECTORY",
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Value:   1,
						Usage:   "number of images to convert at once",
					},
				),
				Action: convertDirectory,
			},
			{
				Name:      "watch-directory",
				Usage:     "Convert a directory, then keep converting images as they change",
				ArgsUsage: "DIRECTORY",
				Flags: append(conversionFlags(), &cli.StringFlag{
					Name:    "output-dir",
					Aliases: []string{"o"},
					Usage:   "directory for map files, defaults to DIRECTORY",
				}),
				Action: watchDirectory,
			},
			{
				Name:      "suggest-mappings",
				Usage:     "Print a mappings file listing the dominant colours of an image",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "colors",
						Aliases: []string{"n"},
						Value:   8,
						Usage:   "maximum number of colours",
					},
				},
				Action: suggestMappings,
			},
		},
	}
}

// lockedWriter serialises writes from the logger and the progress bar,
// which run on different goroutines during a batch.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func conversionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mappings",
			Aliases: []string{"m"},
			EnvVars: []string{"IMG2MAP_MAPPINGS"},
			Usage:   "colour mappings file, defaults to the built-in mappings",
		},
		&cli.IntFlag{
			Name:    "tile-size",
			Aliases: []string{"t"},
			Value:   1,
			Usage:   "source pixels per tile along each axis",
		},
		&cli.StringFlag{
			Name:    "resize-filter",
			Aliases: []string{"r"},
			Value:   imageutil.FilterNearest.String(),
			Usage:   fmt.Sprintf("resampling filter: %v", imageutil.Filters()),
		},
		&cli.StringFlag{
			Name:    "match",
			EnvVars: []string{"IMG2MAP_MATCH"},
			Value:   img2map.MatchExact.String(),
			Usage:   "colour matching: exact or nearest",
		},
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(c.App.ErrWriter, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// converterOptions turns the shared conversion flags into converter
// options. Flag errors come back as exit errors.
func converterOptions(c *cli.Context, logger *slog.Logger) ([]img2map.ConverterOption, error) {
	palette, err := img2map.LoadPalette(c.String("mappings"))
	if err != nil {
		return nil, cli.Exit(err, 1)
	}
	mode, err := img2map.ParseMatchMode(c.String("match"))
	if err != nil {
		return nil, cli.Exit(err, 1)
	}
	filter, err := imageutil.ParseFilter(c.String("resize-filter"))
	if err != nil {
		return nil, cli.Exit(err, 1)
	}

	return []img2map.ConverterOption{
		img2map.WithPalette(palette),
		img2map.WithMatchMode(mode),
		img2map.WithTileSize(c.Int("tile-size")),
		img2map.WithFilter(filter),
		img2map.WithLogger(logger),
	}, nil
}

// requireArg returns the first positional argument, or prints the command
// help and an exit error naming the missing argument.
func requireArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		cli.ShowSubcommandHelp(c)
		return "", cli.Exit(fmt.Sprintf("missing %s argument", c.Command.ArgsUsage), 1)
	}
	return c.Args().First(), nil
}

func exportMappings(c *cli.Context) error {
	_, err := fmt.Fprint(c.App.Writer, img2map.DefaultMappings)
	return err
}

func convert(c *cli.Context) error {
	input, err := requireArg(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)

	opts, err := converterOptions(c, logger)
	if err != nil {
		return err
	}
	conv, err := img2map.NewConverter(opts...)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := conv.Convert(input, c.String("output")); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func convertDirectory(c *cli.Context) error {
	dir, err := requireArg(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)

	opts, err := converterOptions(c, logger)
	if err != nil {
		return err
	}

	inputs, err := img2map.ListImages(dir)
	if err != nil {
		return cli.Exit(err, 1)
	}

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetWriter(c.App.ErrWriter),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionShowCount(),
	)
	opts = append(opts,
		img2map.WithWorkers(c.Int("jobs")),
		img2map.WithProgress(func(img2map.FileResult) {
			bar.Add(1)
		}),
	)

	conv, err := img2map.NewConverter(opts...)
	if err != nil {
		return cli.Exit(err, 1)
	}

	outDir := c.String("output-dir")
	if outDir == "" {
		outDir = dir
	}
	results, err := conv.ConvertFiles(inputs, outDir)
	bar.Finish()
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err, 1)
	}

	failed := img2map.Failed(results)
	for _, r := range failed {
		logger.Error("conversion failed", "input", r.Input, "err", r.Err)
	}
	logger.Info("done", "converted", len(results)-len(failed), "failed", len(failed))
	if len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d images failed to convert", len(failed), len(results)), 1)
	}
	return nil
}

func watchDirectory(c *cli.Context) error {
	dir, err := requireArg(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)

	opts, err := converterOptions(c, logger)
	if err != nil {
		return err
	}
	conv, err := img2map.NewConverter(opts...)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conv.Watch(ctx, dir, c.String("output-dir")); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func suggestMappings(c *cli.Context) error {
	input, err := requireArg(c)
	if err != nil {
		return err
	}

	img, err := imageutil.LoadImage(input)
	if err != nil {
		return cli.Exit(err, 1)
	}
	palette := img2map.SuggestPalette(img, c.Int("colors"))
	if len(palette) == 0 {
		return cli.Exit("no colours found", 1)
	}
	return palette.Encode(c.App.Writer)
}
