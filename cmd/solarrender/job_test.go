package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/image/tiff"

	"github.com/pspoerri/solarlayers/internal/config"
	"github.com/pspoerri/solarlayers/internal/encode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeGray writes an 8-bit single-band TIFF with the given samples.
func writeGray(t *testing.T, dir, name string, w, h int, pix ...uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readLegend(t *testing.T, dir string) legendDoc {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, LegendFile))
	if err != nil {
		t.Fatal(err)
	}
	var doc legendDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func decodeOutput(t *testing.T, path, format string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := encode.DecodeImage(data, format)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestLayerFlags_Validate(t *testing.T) {
	twelve := make([]string, 12)
	tests := []struct {
		name    string
		flags   LayerFlags
		wantErr string
	}{
		{"mask", LayerFlags{Layer: "mask", Day: 1}, ""},
		{"dsm", LayerFlags{Layer: "dsm", Data: []string{"d"}, Day: 1}, ""},
		{"dsm without data", LayerFlags{Layer: "dsm", Day: 1}, "needs 1 --data"},
		{"mask with data", LayerFlags{Layer: "mask", Data: []string{"d"}, Day: 1}, "needs 0 --data"},
		{"shade 12", LayerFlags{Layer: "hourlyShade", Data: twelve, Day: 1}, ""},
		{"shade 1", LayerFlags{Layer: "hourlyShade", Data: []string{"s"}, Day: 31}, ""},
		{"shade 2", LayerFlags{Layer: "hourlyShade", Data: []string{"a", "b"}, Day: 1}, "needs 1 or 12"},
		{"month", LayerFlags{Layer: "mask", Month: 12, Day: 1}, "--month 12"},
		{"day", LayerFlags{Layer: "mask", Day: 0}, "--day 0"},
		{"quality", LayerFlags{Layer: "mask", Day: 1, Quality: 101}, "--quality"},
		{"width", LayerFlags{Layer: "mask", Day: 1, Width: -2}, "--width"},
		{"format", LayerFlags{Layer: "mask", Day: 1, Format: "gif"}, "unsupported image format"},
		{"kind", LayerFlags{Layer: "solar", Day: 1}, "unknown layer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestCLI_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, cliVars("test"))
	if err != nil {
		t.Fatal(err)
	}

	kctx, err := parser.Parse([]string{"render", "--layer", "dsm", "--mask", "m.tif", "--data", "https://x/a,b.tif", "--roof-only", "--width", "64"})
	if err != nil {
		t.Fatal(err)
	}
	if kctx.Command() != "render" {
		t.Errorf("command = %q", kctx.Command())
	}
	f := cli.Render.LayerFlags
	if f.Layer != "dsm" || f.Mask != "m.tif" || !f.RoofOnly || f.Width != 64 || f.Day != 1 {
		t.Errorf("flags = %+v", f)
	}
	if len(f.Data) != 1 || f.Data[0] != "https://x/a,b.tif" {
		t.Errorf("data = %q", f.Data)
	}
	if filepath.Base(cli.Config) != config.DefaultPath {
		t.Errorf("config default = %q, want %q", cli.Config, config.DefaultPath)
	}

	if _, err := parser.Parse([]string{"render", "--layer", "dsm", "--mask", "m.tif"}); err == nil {
		t.Error("expected validation error for missing --data")
	}
	if _, err := parser.Parse([]string{"watch", "--layer", "mask", "--mask", "m.tif", "--debounce", "-1s"}); err == nil {
		t.Error("expected validation error for negative debounce")
	}
	if _, err := parser.Parse([]string{"render", "--layer", "flux", "--mask", "m.tif"}); err == nil {
		t.Error("expected enum error for unknown layer")
	}
}

func TestMerge_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "solarrender.toml")
	body := "[output]\nformat = \"jpeg\"\nquality = 60\nwidth = 10\ndir = \"from-config\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := newJob(&LayerFlags{Layer: "mask", Mask: "m.tif", Day: 1, Format: "png", Out: "from-flag"}, cfgPath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if j.encoder.Format() != "png" || j.outDir != "from-flag" || j.width != 10 {
		t.Errorf("job = format %s dir %s width %d", j.encoder.Format(), j.outDir, j.width)
	}

	j, err = newJob(&LayerFlags{Layer: "mask", Mask: "m.tif", Day: 1}, cfgPath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if j.encoder.Format() != "jpeg" || j.outDir != "from-config" {
		t.Errorf("job = format %s dir %s", j.encoder.Format(), j.outDir)
	}
}

func TestJob_RenderDSM(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "frames")
	mask := writeGray(t, in, "mask.tif", 2, 2, 1, 1, 0, 1)
	dsm := writeGray(t, in, "dsm.tif", 2, 2, 10, 20, 30, 40)

	j, err := newJob(&LayerFlags{Layer: "dsm", Mask: mask, Data: []string{dsm}, Day: 1, RoofOnly: true, Out: out}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.run(context.Background()); err != nil {
		t.Fatal(err)
	}

	img := decodeOutput(t, filepath.Join(out, "dsm.png"), "png")
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("frame size = %v", b)
	}
	if _, _, _, a := img.At(0, 1).RGBA(); a != 0 {
		t.Errorf("pixel outside the roof has alpha %d", a>>8)
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a>>8 != 255 {
		t.Errorf("roof pixel alpha = %d", a>>8)
	}

	doc := readLegend(t, out)
	if doc.Layer != "dsm" || len(doc.Frames) != 1 || doc.Frames[0] != "dsm.png" {
		t.Errorf("legend = %+v", doc)
	}
	if doc.Legend.MinLabel != "10.0 m" || doc.Legend.MaxLabel != "40.0 m" {
		t.Errorf("legend labels = %q, %q", doc.Legend.MinLabel, doc.Legend.MaxLabel)
	}
	if doc.Bounds != nil {
		t.Errorf("bounds = %+v, want none for an ungeoreferenced input", doc.Bounds)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestJob_RenderScaled(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	mask := writeGray(t, in, "mask.tif", 4, 2, 1, 1, 1, 1, 1, 1, 1, 1)
	flux := writeGray(t, in, "flux.tif", 4, 2, 0, 50, 100, 150, 200, 250, 255, 255)

	j, err := newJob(&LayerFlags{Layer: "annualFlux", Mask: mask, Data: []string{flux}, Day: 1, Out: out, Width: 2, Format: "tiff"}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.run(context.Background()); err != nil {
		t.Fatal(err)
	}
	img := decodeOutput(t, filepath.Join(out, "annualFlux.tif"), "tiff")
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
		t.Errorf("scaled frame = %v, want 2x1", b)
	}
	if doc := readLegend(t, out); doc.Legend.MinLabel != "Shady" || doc.Legend.MaxLabel != "Sunny" {
		t.Errorf("legend = %+v", doc.Legend)
	}
}

func TestJob_RGBHasNoLegend(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	mask := writeGray(t, in, "mask.tif", 1, 1, 1)

	rgb := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	copy(rgb.Pix, []uint8{200, 100, 50, 255})
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, rgb, nil); err != nil {
		t.Fatal(err)
	}
	rgbPath := filepath.Join(in, "rgb.tif")
	if err := os.WriteFile(rgbPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := newJob(&LayerFlags{Layer: "rgb", Mask: mask, Data: []string{rgbPath}, Day: 1, Out: out}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.run(context.Background()); err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decodeOutput(t, filepath.Join(out, "rgb.png"), "png").At(0, 0).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("rgb pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if _, err := os.Stat(filepath.Join(out, LegendFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("legend written for rgb layer: %v", err)
	}
}

func TestJob_FailedLoadWritesNothing(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "frames")
	mask := writeGray(t, in, "mask.tif", 1, 1, 1)

	j, err := newJob(&LayerFlags{Layer: "dsm", Mask: mask, Data: []string{filepath.Join(in, "missing.tif")}, Day: 1, Out: out}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.run(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output directory created after a failed load")
	}
}

func TestJob_ShadeNeedsHourBands(t *testing.T) {
	in := t.TempDir()
	mask := writeGray(t, in, "mask.tif", 1, 1, 1)
	shade := writeGray(t, in, "shade.tif", 1, 1, 5)

	j, err := newJob(&LayerFlags{Layer: "hourlyShade", Mask: mask, Data: []string{shade}, Day: 1, Out: t.TempDir()}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	err = j.run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "need 24 bands") {
		t.Errorf("err = %v", err)
	}
}

func TestJob_Canceled(t *testing.T) {
	in := t.TempDir()
	mask := writeGray(t, in, "mask.tif", 1, 1, 1)
	j, err := newJob(&LayerFlags{Layer: "mask", Mask: mask, Day: 1, Out: t.TempDir()}, "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestScaleToWidth(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 4))
	tests := []struct {
		width int
		wantW int
		wantH int
	}{
		{0, 10, 4},
		{10, 10, 4},
		{5, 5, 2},
		{20, 20, 8},
		{1, 1, 1},
	}
	for _, tt := range tests {
		b := scaleToWidth(src, tt.width).Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("scaleToWidth(%d) = %dx%d, want %dx%d", tt.width, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestWriteFileAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	boom := errors.New("boom")
	err := writeFileAtomic(path, func(f *os.File) error {
		f.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("files left behind: %v", entries)
	}
}

func TestLocalInputs(t *testing.T) {
	got := localInputs([]string{"/data/mask.tif", "file:///data/dsm.tif", "https://solar.googleapis.com/v1/geoTiff:get?id=1"})
	if len(got) != 2 || got[0] != "/data/mask.tif" || got[1] != "/data/dsm.tif" {
		t.Errorf("localInputs = %q", got)
	}
}

func TestFrameProgress(t *testing.T) {
	var buf bytes.Buffer
	p := newFrameProgress(&buf, "monthlyFlux", 4)
	p.frameDone(nil)
	p.frameDone(errors.New("disk full"))
	p.frameDone(nil)
	p.frameDone(nil)
	p.finish()

	out := buf.String()
	last := out[strings.LastIndex(out, "\r")+1:]
	for _, want := range []string{"monthlyFlux", "[########################]", "4/4 frames", "1 failed"} {
		if !strings.Contains(last, want) {
			t.Errorf("final line %q lacks %q", last, want)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("output does not end the line: %q", out)
	}
	if !strings.Contains(out, "0/4 frames") {
		t.Errorf("initial state not drawn: %q", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0s", "0s"},
		{"45.9s", "45s"},
		{"83s", "1m23s"},
		{"61m", "61m00s"},
	}
	for _, tt := range tests {
		d, err := time.ParseDuration(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := formatDuration(d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
