package location

import (
	"context"
	"math/rand/v2"
	"time"
)

// SimulatedSource produces plausible readings around a base point. It backs
// deployments without a real position feed (development, demos) the same way
// the face scan is simulated.
type SimulatedSource struct {
	Base     Fix
	Interval time.Duration
}

// NewSimulatedSource seeds the source with a base point in the South
// Kalimantan planting area.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		Base:     Fix{Latitude: -3.45, Longitude: 114.83, Accuracy: 12},
		Interval: time.Second,
	}
}

func (s *SimulatedSource) Current(ctx context.Context, highAccuracy bool) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	return s.reading(highAccuracy), nil
}

func (s *SimulatedSource) Watch(ctx context.Context) (<-chan Fix, func(), error) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}

	watchCtx, cancel := context.WithCancel(ctx)
	fixes := make(chan Fix, 1)
	go func() {
		defer close(fixes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				select {
				case fixes <- s.reading(true):
				default:
				}
			}
		}
	}()
	return fixes, cancel, nil
}

func (s *SimulatedSource) reading(highAccuracy bool) Fix {
	// Roughly ±50 m of wander around the base point.
	fix := s.Base
	fix.Latitude += (rand.Float64() - 0.5) * 0.001
	fix.Longitude += (rand.Float64() - 0.5) * 0.001
	if highAccuracy {
		fix.Accuracy = 4 + rand.Float64()*12
	} else {
		fix.Accuracy = 20 + rand.Float64()*40
	}
	fix.Timestamp = time.Now().UTC()
	return fix
}
