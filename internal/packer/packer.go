package packer

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	// MaxTotalCircles caps the number of production attempts across a run.
	MaxTotalCircles = 2500
	// MaxTrialsPerCandidate is the number of consecutive overlapping samples
	// tolerated before the current radius level is considered exhausted.
	MaxTrialsPerCandidate = 5000
	// RadiusDecay shrinks the radius on every level advance.
	RadiusDecay = 0.98
	// SampleGrowth grows the candidate sample size on every level advance.
	SampleGrowth = 1.01
)

// overlap is reported by distanceToNearest when a candidate intersects a placed circle.
const overlap = -1.0

type limits struct {
	maxTotal  int
	maxTrials int
}

// Option configures a BestCandidate packer.
type Option func(*BestCandidate)

// WithSeed makes the x and y sources deterministic.
func WithSeed(seed uint64) Option {
	return func(p *BestCandidate) {
		p.xRand = rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
		p.yRand = rand.New(rand.NewPCG(seed, 0xbf58476d1ce4e5b9))
	}
}

// WithSources injects the random sources used for x and y coordinates.
// The same source may be passed twice.
func WithSources(x, y Source) Option {
	return func(p *BestCandidate) {
		if x != nil {
			p.xRand = x
		}
		if y != nil {
			p.yRand = y
		}
	}
}

// WithObserver registers a callback receiving placement and level events.
func WithObserver(fn func(Event)) Option {
	return func(p *BestCandidate) {
		p.observer = fn
	}
}

func withLimits(maxTotal, maxTrials int) Option {
	return func(p *BestCandidate) {
		p.limits = limits{maxTotal: maxTotal, maxTrials: maxTrials}
	}
}

// BestCandidate places circles one at a time using best-of-k candidate
// selection. It is not safe for concurrent use.
type BestCandidate struct {
	cfg    Config
	limits limits

	xRand    Source
	yRand    Source
	observer func(Event)

	circles        []Circle
	radius         float64
	sampleSize     float64
	levelCount     int
	attempts       int
	levels         int
	exhaustedError error
}

// New validates cfg and returns a packer ready to produce its first circle.
func New(cfg Config, opts ...Option) (*BestCandidate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &BestCandidate{
		cfg:        cfg,
		limits:     limits{maxTotal: MaxTotalCircles, maxTrials: MaxTrialsPerCandidate},
		xRand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		yRand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		radius:     cfg.MaxRadius,
		sampleSize: float64(cfg.SampleSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.xRand == nil || p.yRand == nil {
		return nil, fmt.Errorf("%w: random source must not be nil", ErrInvalidConfig)
	}
	return p, nil
}

// Next returns the next non-overlapping circle or an error wrapping
// ErrExhausted. Exhaustion is final: later calls return the same error.
func (p *BestCandidate) Next() (Circle, error) {
	if p.exhaustedError != nil {
		return Circle{}, p.exhaustedError
	}

	if p.levelCount > p.cfg.CirclesPerLevel {
		p.advanceLevel()
		if p.radius < p.cfg.MinRadius {
			return p.exhaust(ErrNoRoom)
		}
	}

	for {
		p.attempts++
		if p.attempts > p.limits.maxTotal {
			return p.exhaust(ErrCapReached)
		}

		c, ok := p.bestOfK()
		if !ok {
			p.advanceLevel()
			if p.radius < p.cfg.MinRadius {
				return p.exhaust(ErrNoRoom)
			}
			continue
		}

		p.circles = append(p.circles, c)
		p.levelCount++
		p.emit(EventPlaced, len(p.circles)-1)
		return c, nil
	}
}

// Circles returns a copy of the placed circles in placement order.
func (p *BestCandidate) Circles() []Circle {
	out := make([]Circle, len(p.circles))
	copy(out, p.circles)
	return out
}

// Stats returns a snapshot of the current state.
func (p *BestCandidate) Stats() Stats {
	return Stats{
		Placed:     len(p.circles),
		Attempts:   p.attempts,
		Levels:     p.levels,
		Radius:     p.radius,
		SampleSize: p.sampleSize,
	}
}

// Config returns the configuration the packer was built with.
func (p *BestCandidate) Config() Config {
	return p.cfg
}

func (p *BestCandidate) exhaust(err error) (Circle, error) {
	p.exhaustedError = err
	return Circle{}, err
}

func (p *BestCandidate) advanceLevel() {
	p.sampleSize *= SampleGrowth
	p.radius *= RadiusDecay
	p.levelCount = 0
	p.levels++
	p.emit(EventLevelAdvance, len(p.circles))
}

func (p *BestCandidate) emit(kind EventKind, index int) {
	if p.observer == nil {
		return
	}
	p.observer(Event{
		Kind:        kind,
		CircleIndex: index,
		Radius:      p.radius,
		SampleSize:  p.sampleSize,
	})
}

// bestOfK samples candidates at the current radius until sampleSize of them
// are valid and returns the one with the largest clearance. It fails when
// maxTrials consecutive samples overlap.
func (p *BestCandidate) bestOfK() (Circle, bool) {
	var (
		best         Circle
		found        bool
		bestDistance float64
		valid        int
		trials       int
	)

	for float64(valid) < p.sampleSize {
		c := Circle{
			X:      p.cfg.Width * p.xRand.Float64(),
			Y:      p.cfg.Height * p.yRand.Float64(),
			Radius: p.radius,
		}

		trials++
		if trials > p.limits.maxTrials {
			return Circle{}, false
		}

		d := distanceToNearest(c, p.circles)
		if d < 0 {
			continue
		}

		trials = 0
		valid++
		// Strict comparison: a zero-clearance candidate never seeds best.
		if d > bestDistance {
			bestDistance = d
			best = c
			found = true
		}
	}

	return best, found
}

// distanceToNearest returns the gap between c and its nearest placed circle,
// overlap if c intersects any of them, or math.MaxFloat64 when none are placed.
func distanceToNearest(c Circle, placed []Circle) float64 {
	nearest := math.MaxFloat64
	for _, other := range placed {
		d := gap(c, other)
		if d < 0 {
			return overlap
		}
		if d < nearest {
			nearest = d
		}
	}
	return nearest
}

func gap(a, b Circle) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y) - (a.Radius + b.Radius)
}

var _ Generator = (*BestCandidate)(nil)
