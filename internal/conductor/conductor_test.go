package conductor

import (
	"testing"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

func loc(lat, lon float64) landingmodel.GeoLocation {
	return landingmodel.GeoLocation{Lat: lat, Lon: lon, Alt: 20}
}

// Two detections of the same pad type within BlobbingDistance of each
// other merge into one: the accumulator grows by zero entries and the
// surviving entry's position is the average of the two and its
// confidence the sum.
func TestAddDetections_BlobsNearbySameType(t *testing.T) {
	c := New()
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.0, -122.0), Confidence: 0.6},
	})
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.00001, -122.00001), Confidence: 0.7},
	})

	if len(c.Detections) != 1 {
		t.Fatalf("len(Detections) = %d, want 1 (should have blobbed)", len(c.Detections))
	}
	got := c.Detections[0]
	if !approxEqual(got.Confidence, 1.3, 1e-9) {
		t.Errorf("Confidence = %v, want 1.3 (summed)", got.Confidence)
	}
	wantLat := (37.0 + 37.00001) / 2
	wantLon := (-122.0 + -122.00001) / 2
	if !approxEqual(got.Location.Lat, wantLat, 1e-9) {
		t.Errorf("Lat = %v, want %v (averaged)", got.Location.Lat, wantLat)
	}
	if !approxEqual(got.Location.Lon, wantLon, 1e-9) {
		t.Errorf("Lon = %v, want %v (averaged)", got.Location.Lon, wantLon)
	}
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// A detection of a different pad type at the same location never blobs
// with an existing one, no matter how close.
func TestAddDetections_DifferentPadTypeNeverBlobs(t *testing.T) {
	c := New()
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.0, -122.0), Confidence: 0.5},
	})
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadBottleDropoff, Location: loc(37.0, -122.0), Confidence: 0.5},
	})

	if len(c.Detections) != 2 {
		t.Fatalf("len(Detections) = %d, want 2 (different pad types never blob)", len(c.Detections))
	}
}

// Two detections of the same pad type farther apart than BlobbingDistance
// stay separate entries.
func TestAddDetections_FarApartSameTypeStaysSeparate(t *testing.T) {
	c := New()
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadSmoresPickup, Location: loc(37.0, -122.0), Confidence: 0.5},
	})
	// Roughly 1km north, well past BlobbingDistance (8m).
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadSmoresPickup, Location: loc(37.009, -122.0), Confidence: 0.5},
	})

	if len(c.Detections) != 2 {
		t.Fatalf("len(Detections) = %d, want 2 (too far apart to blob)", len(c.Detections))
	}
}

// GetBestGuess returns the highest-confidence detection of the requested
// pad type, ignoring higher-confidence detections of other types.
func TestGetBestGuess_PicksHighestConfidenceOfRequestedType(t *testing.T) {
	c := New()
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.0, -122.0), Confidence: 0.4},
		{PadType: landingmodel.PadBottleDropoff, Location: loc(38.0, -123.0), Confidence: 0.99},
	})
	// Second medkit detection far enough away not to blob with the first.
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.009, -122.0), Confidence: 0.8},
	})

	best := c.GetBestGuess(landingmodel.PadMedkitDropoff)
	if best == nil {
		t.Fatal("GetBestGuess returned nil")
	}
	if best.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8 (the higher-confidence medkit detection)", best.Confidence)
	}

	if got := c.GetBestGuess(landingmodel.PadSmoresDropoff); got != nil {
		t.Errorf("GetBestGuess for unseen pad type = %v, want nil", got)
	}
}

// Once Optimistic is set, GetBestGuess ignores pad type entirely and
// returns the highest-confidence detection seen so far, of any type.
func TestGetBestGuess_OptimisticIgnoresPadType(t *testing.T) {
	c := New()
	c.Optimistic = true
	c.AddDetections([]landingmodel.LocationDetection{
		{PadType: landingmodel.PadMedkitDropoff, Location: loc(37.0, -122.0), Confidence: 0.4},
		{PadType: landingmodel.PadBottleDropoff, Location: loc(38.0, -123.0), Confidence: 0.99},
	})

	best := c.GetBestGuess(landingmodel.PadSmoresPickup)
	if best == nil {
		t.Fatal("GetBestGuess returned nil")
	}
	if best.PadType != landingmodel.PadBottleDropoff {
		t.Errorf("PadType = %v, want %v (highest confidence regardless of requested type)", best.PadType, landingmodel.PadBottleDropoff)
	}
}

func TestDetectionString_Nil(t *testing.T) {
	if got := DetectionString(nil); got != "<none>" {
		t.Errorf("DetectionString(nil) = %q, want %q", got, "<none>")
	}
}
