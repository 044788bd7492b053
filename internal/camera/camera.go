// Package camera manages the device camera for the face-capture step. The
// provider owns stream lifetime: every exit path from the capture step goes
// through Stop, so a finished, cancelled, or abandoned capture never leaves a
// live track holding the device indicator on.
package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"

	dErrors "fieldgate/pkg/domain-errors"
	"fieldgate/pkg/platform/sentinel"
)

// Facing selects which device camera to open.
type Facing string

const (
	FacingFront Facing = "front"
	FacingRear  Facing = "rear"
)

// FrameSource is the device camera backend.
type FrameSource interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is a live camera track.
type Stream interface {
	// Frame returns the current frame.
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Provider wraps a FrameSource with stream accounting and capture encoding.
type Provider struct {
	source FrameSource

	mu      sync.Mutex
	stream  Stream
	facing  Facing
	quality int
}

type Option func(*Provider)

// WithJPEGQuality overrides the capture encoding quality (1..100).
func WithJPEGQuality(quality int) Option {
	return func(p *Provider) {
		p.quality = quality
	}
}

func NewProvider(source FrameSource, opts ...Option) *Provider {
	p := &Provider{
		source:  source,
		quality: 85,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens a stream on the given camera. Starting while a stream is live
// switches cameras: the old stream is closed first, so at most one track is
// ever active. Permission refusal is surfaced as CodeUnauthorized so the flow
// can fall back to a bypassed capture.
func (p *Provider) Start(ctx context.Context, facing Facing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		if p.facing == facing {
			return nil
		}
		_ = p.stream.Close()
		p.stream = nil
	}

	stream, err := p.source.Open(ctx, facing)
	if err != nil {
		if errors.Is(err, sentinel.ErrPermissionDenied) {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "camera permission denied")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "camera unavailable")
	}
	p.stream = stream
	p.facing = facing
	return nil
}

// Switch flips between the front and rear camera, keeping exactly one track.
func (p *Provider) Switch(ctx context.Context) error {
	p.mu.Lock()
	facing := p.facing
	live := p.stream != nil
	p.mu.Unlock()

	if !live {
		return dErrors.New(dErrors.CodeInvalidState, "camera is not running")
	}
	next := FacingFront
	if facing == FacingFront {
		next = FacingRear
	}
	return p.Start(ctx, next)
}

// CaptureFrame grabs the current frame and encodes it as JPEG. Frames from
// the front camera are mirrored horizontally first, undoing the selfie-style
// preview flip so the stored photo reads the right way around.
func (p *Provider) CaptureFrame(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	stream := p.stream
	facing := p.facing
	p.mu.Unlock()

	if stream == nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, "camera is not running")
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "frame capture failed")
	}
	if facing == FacingFront {
		frame = mirrorHorizontal(frame)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode capture")
	}
	return buf.Bytes(), nil
}

// Stop closes the live stream if any. It is idempotent and safe on every
// exit path.
func (p *Provider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		_ = p.stream.Close()
		p.stream = nil
	}
}

// ActiveTracks reports the number of live camera tracks (0 or 1).
func (p *Provider) ActiveTracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return 1
	}
	return 0
}

// Facing reports which camera the live stream uses; meaningful only while a
// stream is active.
func (p *Provider) Facing() Facing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.facing
}

func mirrorHorizontal(src image.Image) image.Image {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(bounds.Max.X-1-(x-bounds.Min.X), y, src.At(x, y))
		}
	}
	return dst
}
