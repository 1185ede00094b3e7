// Package conductor accumulates geo-referenced pad detections across many
// ticks and clusters nearby ones of the same pad type into a single
// running estimate, so a single noisy frame never redirects the vehicle.
package conductor

import (
	"fmt"

	"github.com/open-uav/precision-lander/internal/geometry"
	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// BlobbingDistance is how close two detections of the same pad type must
// be, in metres, before they are merged into one.
const BlobbingDistance = 8.0

// Conductor holds the evidence accumulated for the current descent.
// It is owned by exactly one stage at a time and handed off as a pointer
// at stage transitions.
type Conductor struct {
	Detections []*landingmodel.LocationDetection
	Optimistic bool
}

// New returns an empty Conductor.
func New() *Conductor {
	return &Conductor{}
}

// DetectionString renders a LocationDetection for status logging, nil
// included.
func DetectionString(d *landingmodel.LocationDetection) string {
	if d == nil {
		return "<none>"
	}
	return fmt.Sprintf("{%.2f; lat %f; lon %f}", d.Confidence, d.Location.Lat, d.Location.Lon)
}

// AddDetections folds a batch of fresh detections into the accumulator.
// A new detection is merged into an existing one of the same pad type if
// they are within BlobbingDistance of each other; merging averages the
// two positions and sums the confidences. This running average biases
// toward whichever detection arrives later — see the design notes on the
// blobbing bias, which is intentionally preserved rather than replaced
// with a true running mean.
func (c *Conductor) AddDetections(fresh []landingmodel.LocationDetection) {
	for i := range fresh {
		detNew := fresh[i]
		blobbed := false
		for _, det := range c.Detections {
			if detNew.PadType == det.PadType && geometry.Dist(detNew.Location, det.Location) <= BlobbingDistance {
				det.Location.Lat = (det.Location.Lat + detNew.Location.Lat) / 2
				det.Location.Lon = (det.Location.Lon + detNew.Location.Lon) / 2
				det.Confidence += detNew.Confidence
				blobbed = true
				break
			}
		}
		if !blobbed {
			d := detNew
			c.Detections = append(c.Detections, &d)
		}
	}
}

// GetBestGuess returns the highest-confidence detection of the given pad
// type, or nil if none has been seen yet. Once the Conductor has become
// Optimistic, it ignores pad type and returns the highest-confidence
// detection of any type.
func (c *Conductor) GetBestGuess(padType landingmodel.PadType) *landingmodel.LocationDetection {
	var best *landingmodel.LocationDetection
	for _, det := range c.Detections {
		if (c.Optimistic || det.PadType == padType) && (best == nil || det.Confidence > best.Confidence) {
			best = det
		}
	}
	return best
}
