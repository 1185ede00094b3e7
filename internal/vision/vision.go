// Package vision is the Detector port: it turns camera frames into pad
// detections and optionally tees raw encoded video to disk for later
// review. A TFLite-backed implementation runs on hardware with the NN
// accelerator; builds without it fall back to a deterministic simulated
// source so the rest of the controller can be exercised without a camera.
package vision

import (
	"context"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// ModelConfig mirrors the pipeline configuration the detector build was
// trained against: a YOLO-family detector with 7 classes and 3 output
// scales.
type ModelConfig struct {
	ModelPath          string
	InputWidth         int
	InputHeight        int
	ConfidenceThreshold float64
	IOUThreshold       float64
	NumClasses         int
	Anchors            []float64
	AnchorMasks        map[string][]int
	NumThreads         int
}

// DefaultModelConfig matches the original detection_model.blob training
// configuration: 416x416 input, 7 pad classes, 3 YOLO output scales.
func DefaultModelConfig(modelPath string) ModelConfig {
	return ModelConfig{
		ModelPath:           modelPath,
		InputWidth:          416,
		InputHeight:         416,
		ConfidenceThreshold: 0.5,
		IOUThreshold:        0.5,
		NumClasses:          7,
		Anchors: []float64{
			10, 13, 16, 30, 33, 23,
			30, 61, 62, 45, 59, 119,
			116, 90, 156, 198, 373, 326,
		},
		AnchorMasks: map[string][]int{
			"side52": {0, 1, 2},
			"side26": {3, 4, 5},
			"side13": {6, 7, 8},
		},
		NumThreads: 2,
	}
}

// Detector is the port the landing stages pull pad detections through. A
// single call to Tick should never block on I/O: it returns the freshest
// available frame's detections, or nil if nothing new has arrived since
// the last call.
type Detector interface {
	// Tick returns the latest batch of detections, nil if no new frame
	// is available yet.
	Tick() ([]landingmodel.PixelDetection, error)

	// UpdateVideoTape drains any buffered encoded video frames to the
	// configured sink. A no-op if no video tape was configured.
	UpdateVideoTape() error

	// Close releases the underlying device/model.
	Close() error
}

// New constructs the build-appropriate Detector: a TFLite-backed one
// under `-tags tflite`, a simulated one otherwise. videoTapePath may be
// empty to disable video taping.
func New(ctx context.Context, cfg ModelConfig, videoTapePath string) (Detector, error) {
	return newDetector(ctx, cfg, videoTapePath)
}
