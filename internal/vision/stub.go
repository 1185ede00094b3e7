//go:build !tflite

package vision

import (
	"context"
)

// newDetector builds the simulated detector when the tflite backend
// wasn't compiled in. Keeping the same constructor signature as the
// tflite-tagged build means callers never branch on the build tag
// themselves.
func newDetector(ctx context.Context, cfg ModelConfig, videoTapePath string) (Detector, error) {
	tape, err := NewVideoTape(videoTapePath)
	if err != nil {
		return nil, err
	}
	return newSimulatedDetector(cfg, tape), nil
}
