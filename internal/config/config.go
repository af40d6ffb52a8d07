// Package config reads the solarrender TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pspoerri/solarlayers/internal/encode"
	"github.com/pspoerri/solarlayers/internal/layer"
	"github.com/pspoerri/solarlayers/internal/palette"
	"github.com/pspoerri/solarlayers/internal/watch"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "solarrender.toml"

type OutputConfig struct {
	Format   string `toml:"format"`
	Quality  int    `toml:"quality"`
	Lossless bool   `toml:"lossless"`
	Width    int    `toml:"width"` // 0 keeps the mask resolution
	Dir      string `toml:"dir"`
}

type LoaderConfig struct {
	APIKey      string `toml:"api_key"`
	CacheSize   int    `toml:"cache_size"`
	Concurrency int    `toml:"concurrency"`
}

type WatchConfig struct {
	Debounce int `toml:"debounce_ms"` // milliseconds, 0 = watch.DefaultDebounce
}

func (w WatchConfig) DebounceDuration() time.Duration {
	if w.Debounce > 0 {
		return time.Duration(w.Debounce) * time.Millisecond
	}
	return watch.DefaultDebounce
}

// LayerConfig overrides the style of one layer kind. Colors take precedence
// over Palette; unset fields keep the defaults.
type LayerConfig struct {
	Palette  string   `toml:"palette"`
	Colors   []string `toml:"colors"`
	Min      *float64 `toml:"min"`
	Max      *float64 `toml:"max"`
	MinLabel string   `toml:"min_label"`
	MaxLabel string   `toml:"max_label"`
}

type Config struct {
	Output OutputConfig           `toml:"output"`
	Loader LoaderConfig           `toml:"loader"`
	Watch  WatchConfig            `toml:"watch"`
	Layers map[string]LayerConfig `toml:"layers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Format:  "png",
			Quality: encode.DefaultQuality,
			Dir:     ".",
		},
		Layers: map[string]LayerConfig{},
	}
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the output settings and every layer override.
func (c *Config) Validate() error {
	if _, err := encode.NewEncoder(c.Output.Format, encode.Options{Quality: c.Output.Quality}); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Output.Quality < 0 {
		return fmt.Errorf("output: quality %d out of range [1, 100]", c.Output.Quality)
	}
	if c.Output.Width < 0 {
		return fmt.Errorf("output: negative width %d", c.Output.Width)
	}
	if c.Loader.CacheSize < 0 || c.Loader.Concurrency < 0 {
		return fmt.Errorf("loader: cache_size and concurrency must not be negative")
	}
	_, err := c.Styles()
	return err
}

// Styles returns the default layer styles with the configured overrides
// applied.
func (c *Config) Styles() (layer.Styles, error) {
	styles := layer.DefaultStyles()

	for _, name := range c.LayerNames() {
		lc := c.Layers[name]
		kind, err := layer.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("layers: %w", err)
		}
		st, err := lc.apply(kind, styles[kind])
		if err != nil {
			return nil, fmt.Errorf("layers.%s: %w", name, err)
		}
		styles[kind] = st
	}
	return styles, nil
}

func (lc LayerConfig) apply(kind layer.Kind, st layer.Style) (layer.Style, error) {
	hasPalette := lc.Palette != "" || len(lc.Colors) > 0 || lc.Min != nil || lc.Max != nil
	if kind == layer.RGB && hasPalette {
		return st, fmt.Errorf("the rgb layer has no palette")
	}

	p := st.Palette
	switch {
	case len(lc.Colors) > 0:
		custom, err := palette.New(kind.String(), lc.Colors, p.Min, p.Max)
		if err != nil {
			return st, err
		}
		p = custom
	case lc.Palette != "":
		named, err := palette.Named(lc.Palette)
		if err != nil {
			return st, err
		}
		named.Min, named.Max = p.Min, p.Max
		p = named
	}

	if kind == layer.DSM && (lc.Min == nil) != (lc.Max == nil) {
		return st, fmt.Errorf("a fixed dsm domain needs both min and max")
	}
	if lc.Min != nil || lc.Max != nil {
		lo, hi := p.Min, p.Max
		if lc.Min != nil {
			lo = *lc.Min
		}
		if lc.Max != nil {
			hi = *lc.Max
		}
		if lo == hi {
			return st, fmt.Errorf("empty domain [%g, %g]", lo, hi)
		}
		p = p.WithDomain(lo, hi)
		st.FixedDomain = true
	}

	st.Palette = p
	if lc.MinLabel != "" {
		st.MinLabel = lc.MinLabel
	}
	if lc.MaxLabel != "" {
		st.MaxLabel = lc.MaxLabel
	}
	return st, nil
}

// LayerNames returns the configured layer sections in sorted order.
func (c *Config) LayerNames() []string {
	names := make([]string, 0, len(c.Layers))
	for name := range c.Layers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
