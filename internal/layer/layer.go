// Package layer turns decoded solar data rasters into displayable frames.
//
// Each layer kind is its own type carrying only the parameters it needs;
// New picks the variant for a Kind.
package layer

import (
	"errors"
	"fmt"
	"image"

	"github.com/pspoerri/solarlayers/internal/palette"
	"github.com/pspoerri/solarlayers/internal/raster"
	"github.com/pspoerri/solarlayers/internal/render"
)

// ErrOption is returned for out-of-range render options.
var ErrOption = errors.New("invalid render option")

// Options select what to render.
type Options struct {
	RoofOnly bool // use the roof mask as alpha
	Month    int  // 0-11, hourly shade only
	Day      int  // 1-31, hourly shade only
}

// Frame is one rendered image of a layer.
type Frame struct {
	Label string
	Image *image.RGBA
}

// Layer renders one kind of solar data.
type Layer interface {
	Kind() Kind
	Bounds() raster.Bounds
	// Legend returns the color scale, if the layer has one.
	Legend() (palette.Legend, bool)
	Render(opts Options) ([]Frame, error)
}

// Inputs holds the decoded rasters of a layer. Data is empty for the mask
// layer, holds one raster for dsm, rgb and the flux layers, and either 12
// (one per month) or 1 raster for hourly shade.
type Inputs struct {
	Mask raster.Set
	Data []raster.Set
}

// New builds the layer variant for kind.
func New(kind Kind, in Inputs, styles Styles) (Layer, error) {
	if err := in.Mask.Validate(); err != nil {
		return nil, fmt.Errorf("%s: mask: %w", kind, err)
	}
	if len(in.Mask.Bands) == 0 {
		return nil, fmt.Errorf("%s: mask: %w: no bands", kind, raster.ErrMalformed)
	}
	want := kind.DataCount()
	got := len(in.Data)
	if got != want && !(kind == HourlyShade && got == 1) {
		return nil, fmt.Errorf("%s: need %d data raster(s), got %d", kind, want, got)
	}
	for i, d := range in.Data {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%s: data %d: %w", kind, i, err)
		}
	}
	style := styles.For(kind)
	base := base{kind: kind, mask: in.Mask}

	switch kind {
	case Mask:
		return &maskLayer{base: base, palette: style.Palette, legend: style.legend()}, nil
	case DSM:
		return newDSM(base, in.Data[0], style)
	case RGB:
		if n := len(in.Data[0].Bands); n < 3 {
			return nil, fmt.Errorf("%s: %w: need 3 bands, got %d", kind, raster.ErrMalformed, n)
		}
		return &rgbLayer{base: base, data: in.Data[0]}, nil
	case AnnualFlux:
		return &fluxLayer{base: base, data: in.Data[0], palette: style.Palette, legend: style.legend(), frames: 1}, nil
	case MonthlyFlux:
		if n := len(in.Data[0].Bands); n < 12 {
			return nil, fmt.Errorf("%s: %w: need 12 bands, got %d", kind, raster.ErrMalformed, n)
		}
		return &fluxLayer{base: base, data: in.Data[0], palette: style.Palette, legend: style.legend(), frames: 12}, nil
	case HourlyShade:
		for i, d := range in.Data {
			if n := len(d.Bands); n < 24 {
				return nil, fmt.Errorf("%s: data %d: %w: need 24 bands, got %d", kind, i, raster.ErrMalformed, n)
			}
		}
		return &shadeLayer{base: base, months: in.Data, palette: style.Palette, legend: style.legend()}, nil
	default:
		return nil, fmt.Errorf("unsupported layer kind %v", kind)
	}
}

type base struct {
	kind Kind
	mask raster.Set
}

func (b *base) Kind() Kind            { return b.kind }
func (b *base) Bounds() raster.Bounds { return b.mask.Bounds }

func (b *base) alpha(opts Options) *raster.Set {
	if !opts.RoofOnly {
		return nil
	}
	return &b.mask
}

type maskLayer struct {
	base
	palette palette.Palette
	legend  palette.Legend
}

func (l *maskLayer) Legend() (palette.Legend, bool) { return l.legend, true }

func (l *maskLayer) Render(opts Options) ([]Frame, error) {
	img, err := render.CompositePalette(l.mask, 0, l.alpha(opts), l.palette)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.kind, err)
	}
	return []Frame{{Label: l.kind.String(), Image: img}}, nil
}

type dsmLayer struct {
	base
	data    raster.Set
	palette palette.Palette
	labels  [2]string // configured legend labels, "" means metres
}

// newDSM fixes the elevation domain to the data range unless the style
// pins it.
func newDSM(b base, data raster.Set, style Style) (*dsmLayer, error) {
	if len(data.Bands) == 0 {
		return nil, fmt.Errorf("%s: %w: no bands", b.kind, raster.ErrMalformed)
	}
	p := style.Palette
	if !style.FixedDomain {
		lo, hi := raster.MinMax(data.Bands[0])
		p = p.WithDomain(lo, hi)
	}
	return &dsmLayer{base: b, data: data, palette: p, labels: [2]string{style.MinLabel, style.MaxLabel}}, nil
}

func (l *dsmLayer) Legend() (palette.Legend, bool) {
	lo, hi := l.labels[0], l.labels[1]
	if lo == "" {
		lo = fmt.Sprintf("%.1f m", l.palette.Min)
	}
	if hi == "" {
		hi = fmt.Sprintf("%.1f m", l.palette.Max)
	}
	return l.palette.Legend(lo, hi), true
}

func (l *dsmLayer) Render(opts Options) ([]Frame, error) {
	img, err := render.CompositePalette(l.data, 0, l.alpha(opts), l.palette)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.kind, err)
	}
	return []Frame{{Label: l.kind.String(), Image: img}}, nil
}

type rgbLayer struct {
	base
	data raster.Set
}

func (l *rgbLayer) Legend() (palette.Legend, bool) { return palette.Legend{}, false }

func (l *rgbLayer) Render(opts Options) ([]Frame, error) {
	img, err := render.CompositeRGB(l.data, l.alpha(opts))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.kind, err)
	}
	return []Frame{{Label: l.kind.String(), Image: img}}, nil
}

// fluxLayer covers annual flux (one frame) and monthly flux (one frame per
// month band).
type fluxLayer struct {
	base
	data    raster.Set
	palette palette.Palette
	legend  palette.Legend
	frames  int
}

func (l *fluxLayer) Legend() (palette.Legend, bool) { return l.legend, true }

func (l *fluxLayer) Render(opts Options) ([]Frame, error) {
	frames := make([]Frame, 0, l.frames)
	for band := range l.frames {
		img, err := render.CompositePalette(l.data, band, l.alpha(opts), l.palette)
		if err != nil {
			ReleaseFrames(frames)
			return nil, fmt.Errorf("%s: band %d: %w", l.kind, band, err)
		}
		label := l.kind.String()
		if l.frames > 1 {
			label = fmt.Sprintf("%s_m%02d", l.kind, band+1)
		}
		frames = append(frames, Frame{Label: label, Image: img})
	}
	return frames, nil
}

type shadeLayer struct {
	base
	months  []raster.Set
	palette palette.Palette
	legend  palette.Legend
}

func (l *shadeLayer) Legend() (palette.Legend, bool) { return l.legend, true }

func (l *shadeLayer) Render(opts Options) ([]Frame, error) {
	if opts.Month < 0 || opts.Month > 11 {
		return nil, fmt.Errorf("%s: %w: month %d out of range [0, 11]", l.kind, ErrOption, opts.Month)
	}
	if opts.Day < 1 || opts.Day > 31 {
		return nil, fmt.Errorf("%s: %w: day %d out of range [1, 31]", l.kind, ErrOption, opts.Day)
	}
	src := l.months[0]
	if len(l.months) > 1 {
		src = l.months[opts.Month]
	}
	day, err := raster.DayBit(src, opts.Day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.kind, err)
	}
	frames := make([]Frame, 0, 24)
	for hour := range 24 {
		img, err := render.CompositePalette(day, hour, l.alpha(opts), l.palette)
		if err != nil {
			ReleaseFrames(frames)
			return nil, fmt.Errorf("%s: hour %d: %w", l.kind, hour, err)
		}
		frames = append(frames, Frame{Label: fmt.Sprintf("%s_h%02d", l.kind, hour), Image: img})
	}
	return frames, nil
}

// ReleaseFrames hands frame buffers back to the render pool once the caller
// is done with them.
func ReleaseFrames(frames []Frame) {
	for _, f := range frames {
		render.PutRGBA(f.Image)
	}
}
