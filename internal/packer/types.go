package packer

import (
	"fmt"
	"math"
)

// Circle is a placed circle. Values are never mutated after creation.
type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

func (c Circle) String() string {
	return fmt.Sprintf("(%6.1f, %6.1f) : %7.2f", c.X, c.Y, c.Radius)
}

// Config holds the immutable parameters of one packing run.
// Centers are sampled in [0, Width) x [0, Height); circles may extend past the edges.
type Config struct {
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	MinRadius       float64 `json:"minRadius"`
	MaxRadius       float64 `json:"maxRadius"`
	SampleSize      int     `json:"sampleSize"`
	CirclesPerLevel int     `json:"circlesPerLevel"`
}

// Validate reports whether the configuration can start a run. Values are never clamped.
func (c Config) Validate() error {
	bounds := []struct {
		name  string
		value float64
	}{
		{"width", c.Width},
		{"height", c.Height},
		{"min radius", c.MinRadius},
		{"max radius", c.MaxRadius},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) || b.value <= 0 {
			return fmt.Errorf("%w: %s must be a positive finite number, got %v", ErrInvalidConfig, b.name, b.value)
		}
	}
	if c.MinRadius > c.MaxRadius {
		return fmt.Errorf("%w: min radius %v exceeds max radius %v", ErrInvalidConfig, c.MinRadius, c.MaxRadius)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("%w: sample size must be positive, got %d", ErrInvalidConfig, c.SampleSize)
	}
	if c.CirclesPerLevel <= 0 {
		return fmt.Errorf("%w: circles per level must be positive, got %d", ErrInvalidConfig, c.CirclesPerLevel)
	}
	return nil
}

// Source is a uniform random source over [0, 1). *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// EventKind identifies an observational event emitted by the packer.
type EventKind string

const (
	EventPlaced       EventKind = "placed"
	EventLevelAdvance EventKind = "levelAdvance"
)

// Event is advisory; observers never influence packer state.
type Event struct {
	Kind        EventKind
	CircleIndex int
	Radius      float64
	SampleSize  float64
}

// Stats is a point-in-time snapshot of the packer state.
type Stats struct {
	Placed     int
	Attempts   int
	Levels     int
	Radius     float64
	SampleSize float64
}

// Generator describes anything that yields circles until exhaustion.
type Generator interface {
	Next() (Circle, error)
	Circles() []Circle
	Stats() Stats
}
