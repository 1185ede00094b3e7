// Package landingmodel holds the flat data types shared across the
// landing controller: pixel-space detections, geo-referenced detections,
// and the per-tick Resolve command a stage hands back to the control loop.
package landingmodel

// PadType identifies the class of landing pad a detection belongs to.
type PadType string

const (
	PadBottleDropoff PadType = "bottle dropoff"
	PadBottlePickup  PadType = "bottle pickup"
	PadMedkitDropoff PadType = "medkit dropoff"
	PadMedkitPickup  PadType = "medkit pickup"
	PadSmoresDropoff PadType = "smores dropoff"
	PadSmoresPickup  PadType = "smores pickup"
	PadCenter        PadType = "pad center"
)

// padTypesByLabel mirrors the detector model's label ordering (0-6).
var padTypesByLabel = []PadType{
	PadBottleDropoff,
	PadBottlePickup,
	PadMedkitDropoff,
	PadMedkitPickup,
	PadSmoresDropoff,
	PadSmoresPickup,
	PadCenter,
}

// PadTypeFromLabel maps a raw model class label to a PadType. ok is false
// for any label outside the trained class range.
func PadTypeFromLabel(label int) (pt PadType, ok bool) {
	if label < 0 || label >= len(padTypesByLabel) {
		return "", false
	}
	return padTypesByLabel[label], true
}

// PixelCoords is a normalized image-space coordinate, 0.0-1.0 on both axes,
// with the origin at the top left of the frame.
type PixelCoords struct {
	X float64
	Y float64
}

// PixelDetection is a single detector output before it has been projected
// into world coordinates.
type PixelDetection struct {
	PadType         PadType
	NormalizedCoords PixelCoords
	Confidence      float64
}

// GeoLocation is a WGS84 point with an altitude in meters relative to home.
type GeoLocation struct {
	Lat float64
	Lon float64
	Alt float64
}

// LocationDetection is a PixelDetection that has been projected onto the
// ground plane and expressed as a GeoLocation.
type LocationDetection struct {
	PadType    PadType
	Location   GeoLocation
	Confidence float64
}

// StageName identifies which stage of the landing state machine is active.
type StageName string

const (
	StageIdle      StageName = "Idle"
	StageDescent   StageName = "Descending"
	StageAlign     StageName = "Aligning"
	StageTouchdown StageName = "Touching down"
)

// AllStageNames lists every stage name, in machine order. Used to reset
// per-stage gauges before setting the currently active one.
var AllStageNames = []StageName{StageIdle, StageDescent, StageAlign, StageTouchdown}

// Velocity is a commanded NED velocity vector in m/s. A positive Z is down.
type Velocity struct {
	North float64
	East  float64
	Down  float64
}

// Resolve is the output of a stage's Tick: the vehicle commands the
// control loop should apply this tick, plus whether the stage wants to
// transition and which pad type it has locked onto, if any.
type Resolve struct {
	Yaw                  *int
	Position             *GeoLocation
	Velocity             *Velocity
	TransitionAvailable  bool
	PadType              *PadType

	// Detections carries this tick's raw detector output, when the stage
	// pulled a frame, so observers can count detections by pad type
	// without re-running the detector themselves. Nil on ticks that don't
	// touch the detector (Idle).
	Detections []PixelDetection
}
