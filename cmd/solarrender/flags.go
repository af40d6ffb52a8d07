package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/pspoerri/solarlayers/internal/config"
	"github.com/pspoerri/solarlayers/internal/encode"
	"github.com/pspoerri/solarlayers/internal/layer"
	"github.com/pspoerri/solarlayers/internal/source"
)

// LayerFlags select the layer, its inputs and the output. Zero-valued output
// flags fall back to the config file.
type LayerFlags struct {
	Layer    string   `short:"l" required:"" enum:"mask,dsm,rgb,annualFlux,monthlyFlux,hourlyShade" help:"Layer to render (${enum})."`
	Mask     string   `required:"" help:"Roof mask GeoTIFF, path or URL."`
	Data     []string `sep:"none" help:"Data GeoTIFF, path or URL. Repeat for hourlyShade: 12 files, one per month, or a single file."`
	Month    int      `default:"0" help:"Month 0-11 (hourlyShade)."`
	Day      int      `default:"1" help:"Day of month 1-31 (hourlyShade)."`
	RoofOnly bool     `name:"roof-only" help:"Use the roof mask as alpha."`
	Format   string   `help:"Output format: png, jpeg, webp, tiff."`
	Quality  int      `help:"JPEG/WebP quality 1-100."`
	Lossless bool     `help:"Encode WebP losslessly."`
	Out      string   `short:"o" help:"Output directory." type:"path"`
	Width    int      `help:"Scale frames to this width, keeping the aspect ratio."`
	APIKey   string   `name:"api-key" env:"GOOGLE_MAPS_API_KEY" help:"API key for solar.googleapis.com URLs."`
}

func (f *LayerFlags) validate() error {
	kind, err := layer.ParseKind(f.Layer)
	if err != nil {
		return err
	}
	want := kind.DataCount()
	switch got := len(f.Data); {
	case kind == layer.HourlyShade && got != 1 && got != want:
		return fmt.Errorf("--layer %s needs 1 or %d --data files, got %d", kind, want, got)
	case kind != layer.HourlyShade && got != want:
		return fmt.Errorf("--layer %s needs %d --data file(s), got %d", kind, want, got)
	}
	if f.Month < 0 || f.Month > 11 {
		return fmt.Errorf("--month %d out of range [0, 11]", f.Month)
	}
	if f.Day < 1 || f.Day > 31 {
		return fmt.Errorf("--day %d out of range [1, 31]", f.Day)
	}
	if f.Quality < 0 || f.Quality > 100 {
		return fmt.Errorf("--quality %d out of range [1, 100]", f.Quality)
	}
	if f.Width < 0 {
		return fmt.Errorf("--width must not be negative")
	}
	if f.Format != "" {
		if _, err := encode.NewEncoder(f.Format, encode.Options{}); err != nil {
			return err
		}
	}
	return nil
}

// merge applies the flags over cfg.
func (f *LayerFlags) merge(cfg *config.Config) {
	if f.Format != "" {
		cfg.Output.Format = f.Format
	}
	if f.Quality != 0 {
		cfg.Output.Quality = f.Quality
	}
	if f.Lossless {
		cfg.Output.Lossless = true
	}
	if f.Out != "" {
		cfg.Output.Dir = f.Out
	}
	if f.Width != 0 {
		cfg.Output.Width = f.Width
	}
	if f.APIKey != "" {
		cfg.Loader.APIKey = f.APIKey
	}
}

type RenderCmd struct {
	LayerFlags `embed:""`

	Progress bool `help:"Show a progress bar while writing frames."`
}

func (c *RenderCmd) Validate(kctx *kong.Context) error {
	return c.validate()
}

func (c *RenderCmd) Run(e *env) error {
	j, err := newJob(&c.LayerFlags, e.configPath, e.logger)
	if err != nil {
		return err
	}
	j.progress = c.Progress
	return j.run(e.ctx)
}

type WatchCmd struct {
	LayerFlags `embed:""`

	Debounce time.Duration `help:"Quiet period after a change before re-rendering (default from config, 300ms)."`
}

func (c *WatchCmd) Validate(kctx *kong.Context) error {
	if c.Debounce < 0 {
		return fmt.Errorf("--debounce must not be negative")
	}
	return c.validate()
}

func (c *WatchCmd) Run(e *env) error {
	j, err := newJob(&c.LayerFlags, e.configPath, e.logger)
	if err != nil {
		return err
	}
	debounce := c.Debounce
	if debounce == 0 {
		debounce = j.debounce
	}
	return watchJob(e.ctx, j, debounce)
}

// localInputs returns the file paths among the job's input locations.
func localInputs(locations []string) []string {
	var paths []string
	for _, loc := range locations {
		if !source.IsRemote(loc) {
			paths = append(paths, source.LocalPath(loc))
		}
	}
	return paths
}
