package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// SimulatedFrameSource renders synthetic frames for deployments without a
// real camera feed. Frames carry a facing-dependent tint so captures from the
// two cameras are tellable apart in development.
type SimulatedFrameSource struct{}

func NewSimulatedFrameSource() *SimulatedFrameSource {
	return &SimulatedFrameSource{}
}

func (s *SimulatedFrameSource) Open(ctx context.Context, facing Facing) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &simulatedStream{facing: facing}, nil
}

type simulatedStream struct {
	mu     sync.Mutex
	facing Facing
	closed bool
	frames int
}

func (s *simulatedStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	tint := uint8(64)
	if s.facing == FacingRear {
		tint = 160
	}
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: tint,
				A: 255,
			})
		}
	}
	return img, nil
}

func (s *simulatedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
