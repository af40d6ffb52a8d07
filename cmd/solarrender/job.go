package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/solarlayers/internal/config"
	"github.com/pspoerri/solarlayers/internal/encode"
	"github.com/pspoerri/solarlayers/internal/layer"
	"github.com/pspoerri/solarlayers/internal/palette"
	"github.com/pspoerri/solarlayers/internal/raster"
	"github.com/pspoerri/solarlayers/internal/source"
	"github.com/pspoerri/solarlayers/internal/watch"
)

// LegendFile is the name of the legend written next to the frames.
const LegendFile = "legend.json"

// job is one fully resolved render: inputs, styles and output settings.
type job struct {
	kind     layer.Kind
	mask     string
	data     []string
	opts     layer.Options
	styles   layer.Styles
	encoder  encode.Encoder
	outDir   string
	width    int
	debounce time.Duration
	loader   *source.Loader
	logger   *slog.Logger
	progress bool
}

func newJob(f *LayerFlags, configPath string, logger *slog.Logger) (*job, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	f.merge(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kind, err := layer.ParseKind(f.Layer)
	if err != nil {
		return nil, err
	}
	styles, err := cfg.Styles()
	if err != nil {
		return nil, err
	}
	enc, err := encode.NewEncoder(cfg.Output.Format, encode.Options{
		Quality:  cfg.Output.Quality,
		Lossless: cfg.Output.Lossless,
	})
	if err != nil {
		return nil, err
	}
	loader, err := source.New(source.Config{
		APIKey:      cfg.Loader.APIKey,
		CacheSize:   cfg.Loader.CacheSize,
		Concurrency: cfg.Loader.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &job{
		kind:     kind,
		mask:     f.Mask,
		data:     f.Data,
		opts:     layer.Options{RoofOnly: f.RoofOnly, Month: f.Month, Day: f.Day},
		styles:   styles,
		encoder:  enc,
		outDir:   cfg.Output.Dir,
		width:    cfg.Output.Width,
		debounce: cfg.Watch.DebounceDuration(),
		loader:   loader,
		logger:   logger.With("layer", kind.String()),
	}, nil
}

// locations lists the mask followed by the data inputs.
func (j *job) locations() []string {
	return append([]string{j.mask}, j.data...)
}

// legendDoc is the JSON written to LegendFile.
type legendDoc struct {
	Layer  string         `json:"layer"`
	Legend palette.Legend `json:"legend"`
	Bounds *boundsDoc     `json:"bounds,omitempty"`
	Frames []string       `json:"frames"`
}

type boundsDoc struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// run loads every input, renders the layer and writes one file per frame.
// Frames are only written once all inputs have loaded.
func (j *job) run(ctx context.Context) error {
	start := time.Now()
	sets, err := j.loader.LoadAll(ctx, j.locations())
	if err != nil {
		return err
	}
	j.logger.Debug("inputs loaded", "count", len(sets), "elapsed", time.Since(start).Round(time.Millisecond))

	l, err := layer.New(j.kind, layer.Inputs{Mask: sets[0], Data: sets[1:]}, j.styles)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	frames, err := l.Render(j.opts)
	if err != nil {
		return err
	}
	defer layer.ReleaseFrames(frames)

	names, err := j.writeFrames(ctx, frames)
	if err != nil {
		return err
	}
	if legend, ok := l.Legend(); ok {
		if err := j.writeLegend(legend, l.Bounds(), names); err != nil {
			return err
		}
	}

	j.logger.Info("layer rendered",
		"frames", len(frames),
		"dir", j.outDir,
		"format", j.encoder.Format(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (j *job) writeFrames(ctx context.Context, frames []layer.Frame) ([]string, error) {
	if err := os.MkdirAll(j.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var pb *frameProgress
	if j.progress && len(frames) > 1 {
		pb = newFrameProgress(os.Stderr, j.kind.String(), len(frames))
	}

	names := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range frames {
		names[i] = f.Label + j.encoder.FileExtension()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(j.outDir, names[i])
			err := writeImage(path, j.encoder, scaleToWidth(f.Image, j.width))
			if pb != nil {
				pb.frameDone(err)
			}
			if err != nil {
				return fmt.Errorf("frame %s: %w", f.Label, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if pb != nil {
		pb.finish()
	}
	return names, err
}

func (j *job) writeLegend(legend palette.Legend, b raster.Bounds, frames []string) error {
	doc := legendDoc{Layer: j.kind.String(), Legend: legend, Frames: frames}
	if !b.IsZero() {
		doc.Bounds = &boundsDoc{North: b.North, South: b.South, East: b.East, West: b.West}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(j.outDir, LegendFile), func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}

// scaleToWidth resizes img to width pixels wide, keeping the aspect ratio.
// A zero width or a width equal to the image's returns img unchanged.
func scaleToWidth(img *image.RGBA, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width == b.Dx() || b.Dx() == 0 {
		return img
	}
	height := max(1, (b.Dy()*width+b.Dx()/2)/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writeImage(path string, enc encode.Encoder, img image.Image) error {
	data, err := enc.Encode(img)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// writeFileAtomic writes through a temporary file in the same directory and
// renames it over path, so readers never see a partial file.
func writeFileAtomic(path string, write func(f *os.File) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// watchJob renders j whenever one of its local inputs changes.
func watchJob(ctx context.Context, j *job, debounce time.Duration) error {
	paths := localInputs(j.locations())
	if len(paths) == 0 {
		return fmt.Errorf("--layer %s: %w", j.kind, watch.ErrNothingToWatch)
	}
	if skipped := len(j.locations()) - len(paths); skipped > 0 {
		j.logger.Info("remote inputs are loaded once and not watched", "count", skipped)
	}
	err := watch.Run(ctx, watch.Config{
		Paths:    paths,
		Debounce: debounce,
		Render:   j.run,
		Logger:   j.logger,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
