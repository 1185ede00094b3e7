//go:build tflite

package vision

// hardwareFrameSource is the board-specific camera capture backend. Wiring
// an actual V4L2/CSI capture pipeline is outside this controller's scope
// (see design notes); this returns no frames until wired to one, so a
// tflite build degrades to "no detections" rather than failing to start.
type hardwareFrameSource struct{}

func newHardwareFrameSource(cfg ModelConfig) FrameSource {
	return &hardwareFrameSource{}
}

func (h *hardwareFrameSource) NextFrame() ([]byte, error)      { return nil, nil }
func (h *hardwareFrameSource) NextVideoChunk() ([]byte, error) { return nil, nil }
func (h *hardwareFrameSource) Close() error                    { return nil }
