package runner

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/best-candidate/internal/packer"
)

func testConfig() packer.Config {
	return packer.Config{
		Width:           150,
		Height:          150,
		MinRadius:       3,
		MaxRadius:       15,
		SampleSize:      8,
		CirclesPerLevel: 4,
	}
}

func TestRunUntilExhausted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := New(zaptest.NewLogger(t), metrics)

	result, err := r.Run(context.Background(), testConfig(), packer.WithSeed(42))
	require.NoError(t, err)
	require.Equal(t, ReasonNoRoom, result.Reason)
	require.NotEmpty(t, result.Circles)
	require.Equal(t, testConfig(), result.Config)
	require.Positive(t, result.Levels)
	require.GreaterOrEqual(t, result.Attempts, len(result.Circles))

	require.Equal(t, float64(len(result.Circles)), testutil.ToFloat64(metrics.circlesPlaced))
	require.Equal(t, float64(result.Levels), testutil.ToFloat64(metrics.levelAdvances))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(ReasonNoRoom)))
}

func TestRunIsDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	first, err := r.Run(context.Background(), testConfig(), packer.WithSeed(9))
	require.NoError(t, err)
	second, err := r.Run(context.Background(), testConfig(), packer.WithSeed(9))
	require.NoError(t, err)

	require.Equal(t, first.Circles, second.Circles)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxRadius = 1

	_, err := New(nil, nil).Run(context.Background(), cfg)
	require.ErrorIs(t, err, packer.ErrInvalidConfig)
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	result, err := New(nil, metrics).Run(ctx, testConfig())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, ReasonCanceled, result.Reason)
	require.Empty(t, result.Circles)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(ReasonCanceled)))
}

func TestRunLogsPackerEventsAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	result, err := New(zap.New(core), nil).Run(context.Background(), testConfig(), packer.WithSeed(1))
	require.NoError(t, err)

	placed := logs.FilterMessage("packer event").FilterField(zap.String("event", string(packer.EventPlaced)))
	require.Equal(t, len(result.Circles), placed.Len())
	require.Equal(t, 1, logs.FilterMessage("packing run finished").Len())
}

func TestReasonFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, ReasonCapReached, reasonFor(packer.ErrCapReached))
	require.Equal(t, ReasonNoRoom, reasonFor(packer.ErrNoRoom))
	require.Equal(t, ReasonCanceled, reasonFor(context.DeadlineExceeded))
}
