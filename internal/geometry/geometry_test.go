package geometry

import (
	"math"
	"testing"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// A detection at the exact frame center should project to zero offset
// regardless of altitude or yaw.
func TestRelativeDistance_CentersToZero(t *testing.T) {
	for _, alt := range []float64{1, 10, 50, 120} {
		for _, yaw := range []float64{0, 45, 90, 180, 270} {
			east, north := RelativeDistance(alt, landingmodel.PixelCoords{X: 0.5, Y: 0.5}, yaw)
			if !approxEqual(east, 0, 1e-9) || !approxEqual(north, 0, 1e-9) {
				t.Errorf("alt=%v yaw=%v: got (east=%v, north=%v), want (0, 0)", alt, yaw, east, north)
			}
		}
	}
}

// With yaw held at zero, a pixel above frame center should read as a
// positive north offset and zero east, below as negative north and
// zero east, and so on through all four quadrants: the detector's
// Y axis is image-space (down-positive), but RelativeDistance flips it
// to world-space (north-positive) before projecting.
func TestRelativeDistance_QuadrantSigns(t *testing.T) {
	const alt = 20.0
	cases := []struct {
		name      string
		coords    landingmodel.PixelCoords
		wantEast  float64 // sign only: -1, 0, +1
		wantNorth float64
	}{
		{"right-of-center", landingmodel.PixelCoords{X: 0.75, Y: 0.5}, 1, 0},
		{"left-of-center", landingmodel.PixelCoords{X: 0.25, Y: 0.5}, -1, 0},
		{"above-center", landingmodel.PixelCoords{X: 0.5, Y: 0.25}, 0, 1},
		{"below-center", landingmodel.PixelCoords{X: 0.5, Y: 0.75}, 0, -1},
		{"upper-right", landingmodel.PixelCoords{X: 0.9, Y: 0.1}, 1, 1},
		{"upper-left", landingmodel.PixelCoords{X: 0.1, Y: 0.1}, -1, 1},
		{"lower-right", landingmodel.PixelCoords{X: 0.9, Y: 0.9}, 1, -1},
		{"lower-left", landingmodel.PixelCoords{X: 0.1, Y: 0.9}, -1, -1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			east, north := RelativeDistance(alt, c.coords, 0)
			if sign(east) != c.wantEast {
				t.Errorf("east = %v, want sign %v", east, c.wantEast)
			}
			if sign(north) != c.wantNorth {
				t.Errorf("north = %v, want sign %v", north, c.wantNorth)
			}
		})
	}
}

func sign(v float64) float64 {
	switch {
	case v > 1e-9:
		return 1
	case v < -1e-9:
		return -1
	default:
		return 0
	}
}

// Rotating yaw by 90 degrees should rotate the resulting offset vector
// by 90 degrees too: a detection that reads as pure-east at yaw 0 should
// read as pure-north at yaw 90.
func TestRelativeDistance_Yaw90RotatesOffset(t *testing.T) {
	const alt = 15.0
	coords := landingmodel.PixelCoords{X: 0.9, Y: 0.5} // pure right-of-center

	east0, north0 := RelativeDistance(alt, coords, 0)
	east90, north90 := RelativeDistance(alt, coords, 90)

	mag0 := math.Hypot(east0, north0)
	mag90 := math.Hypot(east90, north90)
	if !approxEqual(mag0, mag90, 1e-6) {
		t.Fatalf("magnitude changed under rotation: %v vs %v", mag0, mag90)
	}

	if !approxEqual(east0, north90, 1e-6) {
		t.Errorf("east at yaw 0 (%v) should equal north at yaw 90 (%v)", east0, north90)
	}
	if !approxEqual(north0, -east90, 1e-6) {
		t.Errorf("north at yaw 0 (%v) should equal -east at yaw 90 (%v)", north0, -east90)
	}
}

// Zero altitude collapses the viewport to nothing, so every pixel — on
// or off center — projects to a zero offset.
func TestRelativeDistance_ZeroAltitudeDegenerates(t *testing.T) {
	coords := []landingmodel.PixelCoords{
		{X: 0.5, Y: 0.5},
		{X: 0.0, Y: 0.0},
		{X: 1.0, Y: 1.0},
		{X: 0.9, Y: 0.1},
	}
	for _, c := range coords {
		east, north := RelativeDistance(0, c, 37)
		if east != 0 || north != 0 {
			t.Errorf("coords=%v: got (east=%v, north=%v), want (0, 0) at zero altitude", c, east, north)
		}
	}
}

// Projecting a pixel offset to a GeoLocation and back through the
// inverse angle math should recover the same bearing the offset implies,
// closing the loop between RelativeDistance/DistanceToLocation (pixel
// to world) and IndividualDist/AngleDiff (world back to angle).
func TestOffsetRoundTrip(t *testing.T) {
	origin := landingmodel.GeoLocation{Lat: 37.4275, Lon: -122.1697, Alt: 30}
	const altDiff = 30.0

	cases := []struct {
		east, north float64
	}{
		{10, 0},
		{0, 10},
		{-8, 6},
		{5, -12},
		{20, 20},
	}

	for _, c := range cases {
		loc := DistanceToLocation(origin, c.east, c.north)
		gotNorth, gotEast := IndividualDist(origin, loc)

		if !approxEqual(gotEast, math.Abs(c.east), 1e-3) {
			t.Errorf("east=%v north=%v: round-tripped |east| = %v, want %v", c.east, c.north, gotEast, math.Abs(c.east))
		}
		if !approxEqual(gotNorth, math.Abs(c.north), 1e-3) {
			t.Errorf("east=%v north=%v: round-tripped |north| = %v, want %v", c.east, c.north, gotNorth, math.Abs(c.north))
		}

		wantNorthAngle := degrees(math.Atan2(c.north, altDiff))
		wantEastAngle := degrees(math.Atan2(c.east, altDiff))
		gotNorthAngle, gotEastAngle := AngleDiff(c.east, c.north, altDiff)
		if !approxEqual(gotNorthAngle, wantNorthAngle, 1e-6) {
			t.Errorf("north angle = %v, want %v", gotNorthAngle, wantNorthAngle)
		}
		if !approxEqual(gotEastAngle, wantEastAngle, 1e-6) {
			t.Errorf("east angle = %v, want %v", gotEastAngle, wantEastAngle)
		}
	}
}

func TestChangeMagnitude(t *testing.T) {
	x, y := ChangeMagnitude(3, 4, 10)
	if !approxEqual(math.Hypot(x, y), 10, 1e-9) {
		t.Errorf("magnitude = %v, want 10", math.Hypot(x, y))
	}
	if !approxEqual(math.Atan2(y, x), math.Atan2(4, 3), 1e-9) {
		t.Errorf("direction changed: got atan2=%v, want %v", math.Atan2(y, x), math.Atan2(4, 3))
	}

	zx, zy := ChangeMagnitude(0, 0, 5)
	if zx != 0 || zy != 0 {
		t.Errorf("zero vector should stay zero, got (%v, %v)", zx, zy)
	}
}
