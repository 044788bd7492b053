package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fieldgate/pkg/domain-errors"
	"fieldgate/pkg/platform/sentinel"
)

// fakeSource scripts the position backend for tests.
type fakeSource struct {
	currentFix Fix
	currentErr error

	watchFixes []Fix
	watchErr   error
	stopped    bool
}

func (f *fakeSource) Current(_ context.Context, _ bool) (Fix, error) {
	return f.currentFix, f.currentErr
}

func (f *fakeSource) Watch(_ context.Context) (<-chan Fix, func(), error) {
	if f.watchErr != nil {
		return nil, nil, f.watchErr
	}
	ch := make(chan Fix, len(f.watchFixes))
	for _, fix := range f.watchFixes {
		ch <- fix
	}
	close(ch)
	return ch, func() { f.stopped = true }, nil
}

func TestRequestFixUsesOneShotRead(t *testing.T) {
	source := &fakeSource{currentFix: Fix{Latitude: -3.45, Longitude: 114.83, Accuracy: 8}}
	provider := NewProvider(source)

	fix, err := provider.RequestFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceDevice, fix.Source)
	assert.InDelta(t, -3.45, fix.Latitude, 1e-9)
	assert.False(t, fix.Timestamp.IsZero())
}

func TestRequestFixFallsBackToWatch(t *testing.T) {
	source := &fakeSource{
		currentErr: errors.New("position unavailable"),
		watchFixes: []Fix{{Latitude: -3.31, Longitude: 115.80, Accuracy: 14}},
	}
	provider := NewProvider(source)

	fix, err := provider.RequestFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceWatch, fix.Source)
	assert.InDelta(t, 14, fix.Accuracy, 1e-9)
	assert.True(t, source.stopped, "watch must be stopped after the first fix")
}

func TestRequestFixSurfacesPermissionDenial(t *testing.T) {
	source := &fakeSource{currentErr: sentinel.ErrPermissionDenied}
	provider := NewProvider(source)

	_, err := provider.RequestFix(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestRequestFixTimesOutWhenWatchIsSilent(t *testing.T) {
	source := &fakeSource{
		currentErr: errors.New("position unavailable"),
		watchErr:   nil,
	}
	// Empty watchFixes: the channel closes immediately without a reading.
	provider := NewProvider(source, WithTimeouts(50*time.Millisecond, 10*time.Millisecond))

	_, err := provider.RequestFix(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
}

func TestBypassFixCarriesSentinelAccuracy(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	provider := NewProvider(&fakeSource{}, WithClock(func() time.Time { return fixed }))

	fix := provider.BypassFix()
	assert.Equal(t, SourceBypass, fix.Source)
	assert.InDelta(t, -3.33, fix.Latitude, 1e-9)
	assert.InDelta(t, 115.79, fix.Longitude, 1e-9)
	assert.InDelta(t, float64(BypassAccuracy), fix.Accuracy, 1e-9)
	assert.Equal(t, fixed, fix.Timestamp)

	// A bypassed fix must never grade above the weakest real signal.
	assert.Equal(t, 1, SignalStrength(fix.Accuracy))
}

func TestSignalStrengthBuckets(t *testing.T) {
	cases := []struct {
		accuracy float64
		want     int
	}{
		{1, 5},
		{5, 5},
		{5.1, 4},
		{10, 4},
		{10.1, 3},
		{20, 3},
		{20.1, 2},
		{50, 2},
		{50.1, 1},
		{999, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SignalStrength(tc.accuracy), "accuracy %.1f", tc.accuracy)
	}

	// Monotonic: improving accuracy never lowers the grade.
	prev := SignalStrength(1000)
	for acc := 999.0; acc >= 0; acc -= 0.5 {
		got := SignalStrength(acc)
		require.GreaterOrEqual(t, got, prev, "accuracy %.1f", acc)
		prev = got
	}
}
