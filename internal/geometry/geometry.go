// Package geometry implements the pixel-to-world projection and local
// distance math the landing controller uses to turn a detector's
// normalized frame coordinates into a GPS position, and back into a
// heading the vehicle can fly.
//
// The approximations here are the same equirectangular ones ArduPilot's
// own test code uses: accurate over short distances, not meant for
// anything approaching a degree of latitude.
package geometry

import (
	"math"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// Camera field of view, in degrees, of the detector's source frame.
const (
	HeightFOV = 55.0
	WidthFOV  = 69.0
)

// degreeMetres is the ArduPilot approximation factor converting a degree
// of lat/lon difference into metres. It does not hold near the poles.
const degreeMetres = 1.113195e5

// Dist returns the approximate ground distance in metres between two
// locations, ignoring altitude.
func Dist(a, b landingmodel.GeoLocation) float64 {
	dlat := b.Lat - a.Lat
	dlon := b.Lon - a.Lon
	return math.Sqrt(dlat*dlat+dlon*dlon) * degreeMetres
}

// IndividualDist returns the north/south and east/west components of the
// distance between two locations separately, instead of combined. The
// east/west component is scaled by the cosine of the mean latitude, so it
// inverts DistanceToLocation; Dist applies no such scaling.
func IndividualDist(a, b landingmodel.GeoLocation) (dNorth, dEast float64) {
	dNorth = math.Sqrt((b.Lat-a.Lat)*(b.Lat-a.Lat)) * degreeMetres
	dEast = math.Sqrt((b.Lon-a.Lon)*(b.Lon-a.Lon)) * degreeMetres * math.Cos(radians((a.Lat+b.Lat)/2))
	return dNorth, dEast
}

// RelativeDistance converts a normalized pixel coordinate into a relative
// horizontal offset (east, north) in metres from the vehicle, given its
// altitude above the pad and its current yaw in degrees. Yaw is the only
// orientation this accounts for.
func RelativeDistance(altitude float64, coords landingmodel.PixelCoords, yawDeg float64) (east, north float64) {
	viewportWidth := 2.0 * (math.Tan(radians(WidthFOV/2.0)) * altitude)
	viewportHeight := 2.0 * (math.Tan(radians(HeightFOV/2.0)) * altitude)

	shiftedX := coords.X - 0.5
	shiftedY := (1.0 - coords.Y) - 0.5

	vx := shiftedX * viewportWidth
	vy := shiftedY * viewportHeight

	magnitude := math.Sqrt(vx*vx + vy*vy)
	angle := math.Atan2(vy, vx)
	angle += radians(yawDeg)

	return magnitude * math.Cos(angle), magnitude * math.Sin(angle)
}

// AngleDiff returns the angular error, in degrees, between the vehicle and
// an object offset by (east, north) at altDiff metres below it. The
// return order is (north-angle, east-angle) — swapped from the input
// order, matching the original implementation.
func AngleDiff(east, north, altDiff float64) (northAngle, eastAngle float64) {
	x := degrees(math.Atan2(east, altDiff))
	y := degrees(math.Atan2(north, altDiff))
	return y, x
}

// earthRadius is the spherical earth radius, in metres, used for the
// local offset-by-metres approximation below.
const earthRadius = 6378137.0

// DistanceToLocation returns the GeoLocation reached by moving (east,
// north) metres from origin. The returned altitude is unchanged from
// origin. Accurate to within centimetres over tens of metres, drifting
// with distance and latitude.
func DistanceToLocation(origin landingmodel.GeoLocation, east, north float64) landingmodel.GeoLocation {
	dLat := north / earthRadius
	dLon := east / (earthRadius * math.Cos(math.Pi*origin.Lat/180))

	return landingmodel.GeoLocation{
		Lat: origin.Lat + dLat*180/math.Pi,
		Lon: origin.Lon + dLon*180/math.Pi,
		Alt: origin.Alt,
	}
}

// ChangeMagnitude rescales a 2D vector to the given magnitude, preserving
// its direction. The zero vector is returned unchanged.
func ChangeMagnitude(x, y, mag float64) (float64, float64) {
	if x == 0 && y == 0 {
		return 0, 0
	}
	angle := math.Atan2(y, x)
	return mag * math.Cos(angle), mag * math.Sin(angle)
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }
func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }
