// Package runner drives a packer until it is exhausted, logging its events
// and recording metrics along the way.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/best-candidate/internal/packer"
)

// Termination reasons reported in Result.Reason.
const (
	ReasonCapReached = "cap_reached"
	ReasonNoRoom     = "no_room"
	ReasonCanceled   = "canceled"
)

// Result summarises a finished (or canceled) packing run.
type Result struct {
	Config   packer.Config
	Circles  []packer.Circle
	Reason   string
	Attempts int
	Levels   int
	Elapsed  time.Duration
}

// Runner executes packing runs. It is safe for concurrent use; each run owns its packer.
type Runner struct {
	logger  *zap.Logger
	metrics *Metrics
	clock   func() time.Time
}

// New creates a Runner. A nil logger discards logs and nil metrics record nothing.
func New(logger *zap.Logger, metrics *Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:  logger,
		metrics: metrics,
		clock:   time.Now,
	}
}

// Run builds a packer from cfg and pulls circles until it is exhausted or ctx
// is done. On cancellation the partial result is returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, cfg packer.Config, opts ...packer.Option) (Result, error) {
	logger := r.logger.With(
		zap.Float64("width", cfg.Width),
		zap.Float64("height", cfg.Height),
		zap.Float64("min_radius", cfg.MinRadius),
		zap.Float64("max_radius", cfg.MaxRadius),
	)

	observer := packer.WithObserver(func(e packer.Event) {
		switch e.Kind {
		case packer.EventPlaced:
			r.metrics.placed()
		case packer.EventLevelAdvance:
			r.metrics.levelAdvanced()
		}
		if ce := logger.Check(zap.DebugLevel, "packer event"); ce != nil {
			ce.Write(
				zap.String("event", string(e.Kind)),
				zap.Int("circle_index", e.CircleIndex),
				zap.Float64("radius", e.Radius),
				zap.Float64("sample_size", e.SampleSize),
			)
		}
	})

	p, err := packer.New(cfg, append(opts[:len(opts):len(opts)], observer)...)
	if err != nil {
		return Result{}, err
	}

	start := r.clock()
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if _, err := p.Next(); err != nil {
			if !errors.Is(err, packer.ErrExhausted) {
				return Result{}, fmt.Errorf("produce circle: %w", err)
			}
			runErr = err
			break
		}
	}

	stats := p.Stats()
	result := Result{
		Config:   cfg,
		Circles:  p.Circles(),
		Reason:   reasonFor(runErr),
		Attempts: stats.Attempts,
		Levels:   stats.Levels,
		Elapsed:  r.clock().Sub(start),
	}
	r.metrics.finished(result.Reason, result.Elapsed.Seconds())

	logger.Info("packing run finished",
		zap.Int("circles", len(result.Circles)),
		zap.String("reason", result.Reason),
		zap.Int("levels", result.Levels),
		zap.Duration("elapsed", result.Elapsed),
	)

	if result.Reason == ReasonCanceled {
		return result, runErr
	}
	return result, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, packer.ErrCapReached):
		return ReasonCapReached
	case errors.Is(err, packer.ErrNoRoom):
		return ReasonNoRoom
	default:
		return ReasonCanceled
	}
}
