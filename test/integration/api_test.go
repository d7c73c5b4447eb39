package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/best-candidate/internal/api"
	"github.com/eugenenazirov/best-candidate/internal/packer"
	"github.com/eugenenazirov/best-candidate/internal/runner"
	"github.com/eugenenazirov/best-candidate/internal/storage"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStorage(storage.DefaultMaxRuns)
	handler := api.NewHandler(runner.New(logger, nil), store)
	return api.NewRouter(handler, logger)
}

func performRequest(t *testing.T, handler http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIntegrationFlow(t *testing.T) {
	handler := newRouter(t)
	jsonHeaders := map[string]string{"Content-Type": "application/json"}

	rec := performRequest(t, handler, http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}

	defaults := packer.Config{Width: 160, Height: 90, MinRadius: 3, MaxRadius: 12, SampleSize: 6, CirclesPerLevel: 4}
	payload, _ := json.Marshal(defaults)
	rec = performRequest(t, handler, http.MethodPut, "/api/defaults", payload, jsonHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from defaults update, got %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]any{"seed": 2021})
	rec = performRequest(t, handler, http.MethodPost, "/api/packings", body, jsonHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from packing, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID      string          `json:"id"`
		Config  packer.Config   `json:"config"`
		Circles []packer.Circle `json:"circles"`
		Count   int             `json:"count"`
		Reason  string          `json:"reason"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Config != defaults {
		t.Fatalf("expected packing to use stored defaults, got %+v", created.Config)
	}
	if created.Count == 0 || created.Reason != runner.ReasonNoRoom {
		t.Fatalf("unexpected packing outcome: count=%d reason=%s", created.Count, created.Reason)
	}
	for i, c := range created.Circles {
		if c.Radius < defaults.MinRadius || c.Radius > defaults.MaxRadius {
			t.Fatalf("circle %d radius %v out of range", i, c.Radius)
		}
		if c.X < 0 || c.X > defaults.Width || c.Y < 0 || c.Y > defaults.Height {
			t.Fatalf("circle %d centre (%v, %v) outside canvas", i, c.X, c.Y)
		}
	}

	location := rec.Header().Get("Location")
	rec = performRequest(t, handler, http.MethodGet, location, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from %s, got %d", location, rec.Code)
	}

	rec = performRequest(t, handler, http.MethodGet, location+"/svg", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from svg render, got %d", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), "<circle "); got != created.Count {
		t.Fatalf("expected %d circles in SVG, got %d", created.Count, got)
	}

	rec = performRequest(t, handler, http.MethodGet, "/api/packings", nil, nil)
	var list struct {
		Packings []storage.RunSummary `json:"packings"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Packings) != 1 || list.Packings[0].ID != created.ID {
		t.Fatalf("unexpected packing list %+v", list.Packings)
	}
}
