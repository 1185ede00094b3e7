package vision

import (
	"sync"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// simulatedDetector produces a deterministic sequence of pad detections
// without touching any hardware: a pad center detection that drifts
// toward the frame center over successive ticks. It exists so the
// control loop, stages and status API can all be exercised in local dev
// and in tests without a camera attached.
type simulatedDetector struct {
	mu    sync.Mutex
	tick  int
	tape  *VideoTape
	cfg   ModelConfig
}

func newSimulatedDetector(cfg ModelConfig, tape *VideoTape) *simulatedDetector {
	return &simulatedDetector{cfg: cfg, tape: tape}
}

// Tick implements Detector. The simulated pad starts off-center and
// converges toward (0.5, 0.5) by a tenth of the remaining offset each
// tick, never quite reaching dead center.
func (s *simulatedDetector) Tick() ([]landingmodel.PixelDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++

	offset := 1.0
	for i := 0; i < s.tick; i++ {
		offset *= 0.9
	}

	return []landingmodel.PixelDetection{
		{
			PadType:          landingmodel.PadCenter,
			NormalizedCoords: landingmodel.PixelCoords{X: 0.5 + 0.3*offset, Y: 0.5 - 0.2*offset},
			Confidence:       0.9,
		},
	}, nil
}

func (s *simulatedDetector) UpdateVideoTape() error {
	return s.tape.Write(nil)
}

func (s *simulatedDetector) Close() error {
	return s.tape.Close()
}
