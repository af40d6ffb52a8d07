// Command solarrender renders solar data layers from GeoTIFF files into
// image frames.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/pspoerri/solarlayers/internal/config"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type CLI struct {
	Verbose    bool             `short:"v" help:"Enable debug logging."`
	Config     string           `help:"TOML config file. A missing file means built-in defaults." default:"${config_path}" type:"path"`
	CPUProfile string           `name:"cpuprofile" help:"Write CPU profile to file." type:"path"`
	MemProfile string           `name:"memprofile" help:"Write memory profile to file." type:"path"`
	Version    kong.VersionFlag `help:"Print version and exit."`

	Render RenderCmd `cmd:"" help:"Render a layer to image files."`
	Watch  WatchCmd  `cmd:"" help:"Render a layer and re-render it whenever a local input file changes."`
}

// env is bound into every command's Run.
type env struct {
	ctx        context.Context
	logger     *slog.Logger
	configPath string
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("solarrender"),
		kong.Description("Render solar data layers (mask, dsm, rgb, annualFlux, monthlyFlux, hourlyShade) from GeoTIFFs."),
		kong.UsageOnError(),
		cliVars(fmt.Sprintf("solarrender %s (commit %s, built %s)", version, commit, buildDate)),
	)

	logger := newLogger(cli.Verbose)
	slog.SetDefault(logger)

	if err := run(kctx, &cli, logger); err != nil {
		logger.Error("solarrender failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func cliVars(versionText string) kong.Vars {
	return kong.Vars{"version": versionText, "config_path": config.DefaultPath}
}

func run(kctx *kong.Context, cli *CLI, logger *slog.Logger) error {
	if cli.CPUProfile != "" {
		f, err := os.Create(cli.CPUProfile)
		if err != nil {
			return fmt.Errorf("creating CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		logger.Debug("CPU profiling enabled", "path", cli.CPUProfile)
	}
	if cli.MemProfile != "" {
		defer func() {
			f, err := os.Create(cli.MemProfile)
			if err != nil {
				logger.Error("creating memory profile", "error", err)
				return
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				logger.Error("writing memory profile", "error", err)
				return
			}
			logger.Debug("memory profile written", "path", cli.MemProfile)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return kctx.Run(&env{ctx: ctx, logger: logger, configPath: cli.Config})
}
