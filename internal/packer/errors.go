package packer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by New when the configuration cannot start a run.
	ErrInvalidConfig = errors.New("invalid packing configuration")
	// ErrExhausted signals that no further circle will be produced.
	ErrExhausted = errors.New("packing exhausted")
	// ErrCapReached is returned once MaxTotalCircles attempts have been made.
	ErrCapReached = fmt.Errorf("%w: total circle cap reached", ErrExhausted)
	// ErrNoRoom is returned when no radius down to the minimum admits another circle.
	ErrNoRoom = fmt.Errorf("%w: no room left at any radius", ErrExhausted)
)
