package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/eugenenazirov/best-candidate/internal/packer"
)

func TestNewMemoryStorageReturnsDefaults(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(0)

	got, err := store.GetDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultParams() {
		t.Fatalf("expected defaults %+v, got %+v", DefaultParams(), got)
	}
	if store.maxRuns != DefaultMaxRuns {
		t.Fatalf("expected max runs %d, got %d", DefaultMaxRuns, store.maxRuns)
	}
}

func TestSetDefaultsUpdatesState(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(10)
	want := packer.Config{Width: 100, Height: 50, MinRadius: 2, MaxRadius: 10, SampleSize: 5, CirclesPerLevel: 3}
	if err := store.SetDefaults(want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSetDefaultsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	valid := DefaultParams()
	testCases := []packer.Config{
		{},
		func() packer.Config { c := valid; c.MinRadius = c.MaxRadius + 1; return c }(),
		func() packer.Config { c := valid; c.Width = -1; return c }(),
		func() packer.Config { c := valid; c.SampleSize = 0; return c }(),
	}

	for idx, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage(10)
			err := store.SetDefaults(tc)
			if !errors.Is(err, ErrInvalidDefaults) {
				t.Fatalf("expected ErrInvalidDefaults for %+v, got %v", tc, err)
			}
			if got, _ := store.GetDefaults(); got != valid {
				t.Fatalf("defaults changed after rejected update: %+v", got)
			}
		})
	}
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(10)
	circles := []packer.Circle{{X: 1, Y: 2, Radius: 3}, {X: 10, Y: 20, Radius: 2}}

	id, err := store.SaveRun(Run{Config: DefaultParams(), Circles: circles, Reason: "no_room"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated run ID")
	}

	// ensure mutation safety
	circles[0].X = 999

	run, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID != id || run.Reason != "no_room" || run.CreatedAt.IsZero() {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(run.Circles) != 2 || run.Circles[0].X != 1 {
		t.Fatalf("expected defensive copy of circles, got %v", run.Circles)
	}

	run.Circles[1].Y = -1
	again, _ := store.GetRun(id)
	if again.Circles[1].Y != 20 {
		t.Fatalf("expected stored run to be unaffected by caller mutation")
	}
}

func TestGetRunUnknownID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(10)
	if _, err := store.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSaveRunEvictsOldest(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(2)
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := store.SaveRun(Run{Config: DefaultParams()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, id)
	}

	if _, err := store.GetRun(ids[0]); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected oldest run to be evicted, got %v", err)
	}

	summaries, err := store.ListRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != ids[2] || summaries[1].ID != ids[1] {
		t.Fatalf("expected most recent first, got %s, %s", summaries[0].ID, summaries[1].ID)
	}
}

func TestSaveRunKeepsExplicitID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage(10)
	for i := 0; i < 2; i++ {
		if _, err := store.SaveRun(Run{ID: "fixed", Reason: fmt.Sprint(i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	summaries, _ := store.ListRuns()
	if len(summaries) != 1 || summaries[0].Reason != "1" {
		t.Fatalf("expected overwrite of run with same ID, got %+v", summaries)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage(16)
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(3)

		go func(offset int) {
			defer wg.Done()
			cfg := DefaultParams()
			cfg.Width += float64(offset)
			if err := store.SetDefaults(cfg); err != nil {
				t.Errorf("SetDefaults failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.SaveRun(Run{Circles: []packer.Circle{{X: 1, Y: 1, Radius: 1}}}); err != nil {
				t.Errorf("SaveRun failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if _, err := store.ListRuns(); err != nil {
				t.Errorf("ListRuns failed: %v", err)
			}
		}()
	}

	wg.Wait()

	summaries, err := store.ListRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 16 {
		t.Fatalf("expected capacity to be respected, got %d", len(summaries))
	}
}
