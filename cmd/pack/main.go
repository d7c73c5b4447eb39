package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/best-candidate/internal/logging"
	"github.com/eugenenazirov/best-candidate/internal/packer"
	"github.com/eugenenazirov/best-candidate/internal/render"
	"github.com/eugenenazirov/best-candidate/internal/runner"
	"github.com/eugenenazirov/best-candidate/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pack: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	cfg      packer.Config
	seed     *uint64
	format   string
	output   string
	logLevel string
	timeout  time.Duration
	render   render.Options
}

func parseArgs(args []string) (options, error) {
	defaults := storage.DefaultParams()
	style := render.DefaultOptions()

	app := kingpin.New("pack", "Pack a rectangle with non-overlapping circles using best-candidate sampling")
	width := app.Flag("width", "Canvas width").Default(fmt.Sprint(defaults.Width)).Float64()
	height := app.Flag("height", "Canvas height").Default(fmt.Sprint(defaults.Height)).Float64()
	minRadius := app.Flag("min-radius", "Smallest radius placed before stopping").Default(fmt.Sprint(defaults.MinRadius)).Float64()
	maxRadius := app.Flag("max-radius", "Radius of the first level").Default(fmt.Sprint(defaults.MaxRadius)).Float64()
	sampleSize := app.Flag("sample-size", "Valid candidates compared per circle").Default(fmt.Sprint(defaults.SampleSize)).Int()
	perLevel := app.Flag("circles-per-level", "Circles placed before the radius shrinks").Default(fmt.Sprint(defaults.CirclesPerLevel)).Int()
	var seedSet bool
	seed := app.Flag("seed", "Seed for reproducible output").IsSetByUser(&seedSet).Uint64()
	format := app.Flag("format", "Output format").Default("svg").Enum("svg", "png", "json", "text")
	output := app.Flag("output", "Output file (default stdout)").Short('o').String()
	logLevel := app.Flag("log-level", "Log level written to stderr").Default("warn").String()
	timeout := app.Flag("timeout", "Stop the run after this long (0 disables)").Default("0s").Duration()
	stroke := app.Flag("stroke", "Stroke colour").Default(style.Stroke).String()
	fill := app.Flag("fill", "Fill colour (empty for none)").Default(style.Fill).String()
	background := app.Flag("background", "Background colour (empty for transparent)").String()
	strokeWidth := app.Flag("stroke-width", "Stroke width").Default(fmt.Sprint(style.StrokeWidth)).Float64()

	if _, err := app.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		cfg: packer.Config{
			Width:           *width,
			Height:          *height,
			MinRadius:       *minRadius,
			MaxRadius:       *maxRadius,
			SampleSize:      *sampleSize,
			CirclesPerLevel: *perLevel,
		},
		format:   *format,
		output:   *output,
		logLevel: *logLevel,
		timeout:  *timeout,
		render: render.Options{
			Stroke:      *stroke,
			Fill:        *fill,
			Background:  *background,
			StrokeWidth: *strokeWidth,
		},
	}
	if seedSet {
		opts.seed = seed
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if err := opts.cfg.Validate(); err != nil {
		return err
	}
	if err := opts.render.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var packOpts []packer.Option
	if opts.seed != nil {
		packOpts = append(packOpts, packer.WithSeed(*opts.seed))
	}

	result, err := runner.New(logger, nil).Run(ctx, opts.cfg, packOpts...)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		logger.Warn("packing stopped early", zap.Error(err), zap.Int("circles", len(result.Circles)))
	}

	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := write(out, opts, result); err != nil {
		return fmt.Errorf("write %s: %w", opts.format, err)
	}
	return nil
}

type jsonResult struct {
	Config   packer.Config   `json:"config"`
	Seed     *uint64         `json:"seed,omitempty"`
	Circles  []packer.Circle `json:"circles"`
	Count    int             `json:"count"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	Levels   int             `json:"levels"`
}

func write(w io.Writer, opts options, result runner.Result) error {
	switch opts.format {
	case "png":
		return render.PNG(w, opts.cfg.Width, opts.cfg.Height, result.Circles, opts.render)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonResult{
			Config:   result.Config,
			Seed:     opts.seed,
			Circles:  result.Circles,
			Count:    len(result.Circles),
			Reason:   result.Reason,
			Attempts: result.Attempts,
			Levels:   result.Levels,
		})
	case "text":
		return render.Text(w, result.Circles)
	default:
		return render.SVG(w, opts.cfg.Width, opts.cfg.Height, result.Circles, opts.render)
	}
}
