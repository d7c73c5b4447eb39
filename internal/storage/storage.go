package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/best-candidate/internal/packer"
)

// DefaultMaxRuns bounds the number of runs kept in memory.
const DefaultMaxRuns = 100

var (
	// ErrInvalidDefaults indicates the provided default parameters cannot start a run.
	ErrInvalidDefaults = errors.New("default packing parameters are invalid")
	// ErrRunNotFound is returned when no run is stored under the requested ID.
	ErrRunNotFound = errors.New("packing run not found")
)

// defaultParams apply until SetDefaults replaces them.
var defaultParams = packer.Config{
	Width:           320,
	Height:          540,
	MinRadius:       1,
	MaxRadius:       30,
	SampleSize:      30,
	CirclesPerLevel: 20,
}

// Run is a completed packing kept for later retrieval and rendering.
type Run struct {
	ID        string          `json:"id"`
	Config    packer.Config   `json:"config"`
	Seed      *uint64         `json:"seed,omitempty"`
	Circles   []packer.Circle `json:"circles"`
	Reason    string          `json:"reason"`
	Attempts  int             `json:"attempts"`
	Levels    int             `json:"levels"`
	Elapsed   time.Duration   `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RunSummary describes a stored run without its circles.
type RunSummary struct {
	ID        string        `json:"id"`
	Config    packer.Config `json:"config"`
	Count     int           `json:"count"`
	Reason    string        `json:"reason"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Storage provides access to default packing parameters and completed runs.
type Storage interface {
	GetDefaults() (packer.Config, error)
	SetDefaults(cfg packer.Config) error
	SaveRun(run Run) (string, error)
	GetRun(id string) (Run, error)
	ListRuns() ([]RunSummary, error)
}

// MemoryStorage keeps defaults and runs in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	defaults packer.Config
	runs     map[string]Run
	order    []string
	maxRuns  int
}

// NewMemoryStorage initialises storage with the default parameters and room for maxRuns runs.
// A non-positive maxRuns falls back to DefaultMaxRuns.
func NewMemoryStorage(maxRuns int) *MemoryStorage {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &MemoryStorage{
		defaults: defaultParams,
		runs:     make(map[string]Run),
		maxRuns:  maxRuns,
	}
}

// DefaultParams returns the built-in packing parameters.
func DefaultParams() packer.Config {
	return defaultParams
}

// GetDefaults returns the currently configured default parameters.
func (s *MemoryStorage) GetDefaults() (packer.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.defaults, nil
}

// SetDefaults validates and stores the provided default parameters.
func (s *MemoryStorage) SetDefaults(cfg packer.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}

	s.mu.Lock()
	s.defaults = cfg
	s.mu.Unlock()

	return nil
}

// SaveRun stores a copy of run, assigning an ID and creation time when missing,
// and evicts the oldest run once the capacity is exceeded.
func (s *MemoryStorage) SaveRun(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Circles = cloneCircles(run.Circles)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run

	for len(s.order) > s.maxRuns {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}

	return run.ID, nil
}

// GetRun returns a copy of the run stored under id.
func (s *MemoryStorage) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	run.Circles = cloneCircles(run.Circles)
	return run, nil
}

// ListRuns returns summaries of all stored runs, most recently saved first.
func (s *MemoryStorage) ListRuns() ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		out = append(out, RunSummary{
			ID:        run.ID,
			Config:    run.Config,
			Count:     len(run.Circles),
			Reason:    run.Reason,
			CreatedAt: run.CreatedAt,
		})
	}
	return out, nil
}

func cloneCircles(src []packer.Circle) []packer.Circle {
	if len(src) == 0 {
		return []packer.Circle{}
	}

	out := make([]packer.Circle, len(src))
	copy(out, src)
	return out
}
