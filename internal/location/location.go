// Package location acquires a device position fix for the verification flow
// and grades its quality. Acquisition is bounded: a device that cannot
// produce a fix inside the window surfaces a timeout the flow can react to,
// instead of hanging the participant on the location step.
package location

import (
	"context"
	"errors"
	"time"

	dErrors "fieldgate/pkg/domain-errors"
	"fieldgate/pkg/platform/sentinel"
)

// FixSource names how a fix was obtained.
type FixSource string

const (
	SourceDevice FixSource = "device"
	SourceWatch  FixSource = "watch"
	SourceBypass FixSource = "bypass"
)

// Fix is a single position reading.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"` // meters, lower is better
	Source    FixSource `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Bypass fix constants. The accuracy is a sentinel far above any real
// reading, so a bypassed fix is always distinguishable downstream.
const (
	bypassLatitude  = -3.33
	bypassLongitude = 115.79
	BypassAccuracy  = 999
)

// Source is the device position backend: a one-shot read plus a continuous
// watch stream for devices whose one-shot reads are unreliable.
type Source interface {
	// Current returns one position reading. highAccuracy requests the
	// device's precise mode (GPS rather than network positioning).
	Current(ctx context.Context, highAccuracy bool) (Fix, error)
	// Watch streams readings until stop is called. The channel is closed
	// after stop.
	Watch(ctx context.Context) (fixes <-chan Fix, stop func(), err error)
}

// Provider wraps a Source with the flow's acquisition policy.
type Provider struct {
	source      Source
	fixTimeout  time.Duration
	quickWindow time.Duration
	now         func() time.Time
}

type Option func(*Provider)

// WithTimeouts overrides the full-fix and quick-fix acquisition windows.
func WithTimeouts(fix, quick time.Duration) Option {
	return func(p *Provider) {
		p.fixTimeout = fix
		p.quickWindow = quick
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func NewProvider(source Source, opts ...Option) *Provider {
	p := &Provider{
		source:      source,
		fixTimeout:  15 * time.Second,
		quickWindow: 3 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestFix acquires a high-accuracy fix. A failed or slow one-shot read
// falls back to the watch stream and takes the first reading it produces.
// Permission refusal from the source is surfaced as CodeUnauthorized so the
// flow can offer the bypass affordance; exhaustion of the window is
// CodeUnavailable.
func (p *Provider) RequestFix(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, p.fixTimeout)
	defer cancel()

	fix, err := p.source.Current(ctx, true)
	if err == nil {
		fix.Source = SourceDevice
		return p.stamp(fix), nil
	}
	if isPermissionDenied(err) {
		return Fix{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "location permission denied")
	}

	fixes, stop, err := p.source.Watch(ctx)
	if err != nil {
		if isPermissionDenied(err) {
			return Fix{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "location permission denied")
		}
		return Fix{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "location watch failed")
	}
	defer stop()

	select {
	case fix, ok := <-fixes:
		if !ok {
			return Fix{}, dErrors.New(dErrors.CodeUnavailable, "location watch ended without a fix")
		}
		fix.Source = SourceWatch
		return p.stamp(fix), nil
	case <-ctx.Done():
		return Fix{}, dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "no location fix within the window")
	}
}

// RequestQuickFix acquires a coarse fix inside a short window. It is used to
// refresh a held position without re-running the full acquisition.
func (p *Provider) RequestQuickFix(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, p.quickWindow)
	defer cancel()

	fix, err := p.source.Current(ctx, false)
	if err != nil {
		if isPermissionDenied(err) {
			return Fix{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "location permission denied")
		}
		return Fix{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "quick fix failed")
	}
	fix.Source = SourceDevice
	return p.stamp(fix), nil
}

// BypassFix returns the fixed fallback position used when a device cannot
// produce a real fix. Its sentinel accuracy keeps it distinguishable from any
// genuine reading.
func (p *Provider) BypassFix() Fix {
	return Fix{
		Latitude:  bypassLatitude,
		Longitude: bypassLongitude,
		Accuracy:  BypassAccuracy,
		Source:    SourceBypass,
		Timestamp: p.now().UTC(),
	}
}

func (p *Provider) stamp(fix Fix) Fix {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = p.now().UTC()
	}
	return fix
}

func isPermissionDenied(err error) bool {
	return err != nil && (dErrors.Is(err, dErrors.CodeUnauthorized) ||
		errors.Is(err, sentinel.ErrPermissionDenied))
}

// SignalStrength grades a fix's accuracy into a 1..5 bar count. The grade is
// monotonic in accuracy: a tighter reading never scores lower.
func SignalStrength(accuracyMeters float64) int {
	switch {
	case accuracyMeters <= 5:
		return 5
	case accuracyMeters <= 10:
		return 4
	case accuracyMeters <= 20:
		return 3
	case accuracyMeters <= 50:
		return 2
	default:
		return 1
	}
}
