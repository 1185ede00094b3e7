// Package vehicle implements the southbound MAVLink link to the flight
// controller: it tracks the vehicle's current telemetry and exposes the
// small set of reads and writes the landing state machine needs, without
// exposing raw MAVLink frames to the rest of the controller.
package vehicle

import (
	"context"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// Mode is a unified flight-mode name, independent of vehicle firmware.
type Mode string

const (
	ModeUnknown  Mode = "UNKNOWN"
	ModeStabilize Mode = "STABILIZE"
	ModeAltHold  Mode = "ALT_HOLD"
	ModeLoiter   Mode = "LOITER"
	ModeAuto     Mode = "AUTO"
	ModeGuided   Mode = "GUIDED"
	ModeRTL      Mode = "RTL"
	ModeLand     Mode = "LAND"
	ModeTakeoff  Mode = "TAKEOFF"
)

// MissionCommand is one waypoint/command in the downloaded mission, as
// far as the landing controller needs to know about it.
type MissionCommand struct {
	ID      int
	Command int // MAVLink command ID, e.g. 92 for MAV_CMD_NAV_GUIDED_ENABLE
	Param7  int // z param, used by this mission to encode the pad type index
}

// Telemetry is a snapshot of the vehicle state the stages read each tick.
type Telemetry struct {
	Location        landingmodel.GeoLocation
	RelativeAlt     float64 // altitude above home, metres
	RangefinderDist float64 // 0 if no rangefinder reading is current
	HasRangefinder  bool
	Yaw             float64 // degrees, 0-360
	Airspeed        float64
	Armed           bool
	Mode            Mode
	IsArmable       bool
}

// Vehicle is the port the landing controller uses to read telemetry from,
// and send commands to, the flight controller. MAVLinkVehicle is the only
// implementation in this package; local dev runs it against SITL over UDP,
// and the tests use their own in-memory fakes.
type Vehicle interface {
	// Telemetry returns the most recently received vehicle state.
	Telemetry() Telemetry

	// NextCommand returns the mission command the vehicle will execute
	// next, and the one before it — Idle needs both, since ArduPilot
	// silently advances `next` past a GUIDED_ENABLE waypoint once it is
	// reached.
	NextCommand() (current MissionCommand, previous MissionCommand, hasPrevious bool)

	// DownloadMission re-fetches the mission from the vehicle, blocking
	// until ready or ctx is done.
	DownloadMission(ctx context.Context) error

	// SetMode commands a flight mode change.
	SetMode(mode Mode) error

	// Arm arms the vehicle, blocking until armed or ctx is done.
	Arm(ctx context.Context) error

	// SimpleGoto commands the vehicle to fly to a position at the given
	// airspeed, used only while in GUIDED mode.
	SimpleGoto(ctx context.Context, pos landingmodel.GeoLocation, airspeed float64) error

	// SendVelocityNED commands a NED-frame velocity vector, m/s, positive
	// Z down.
	SendVelocityNED(v landingmodel.Velocity) error

	// SendConditionYaw commands an absolute or relative yaw, degrees.
	SendConditionYaw(headingDeg int, relative bool) error

	// SendMissionStart resumes mission execution from the given command
	// index.
	SendMissionStart(ctx context.Context, fromCommand int) error

	// Close releases the underlying link.
	Close() error
}

// GetAGL returns the best altitude-above-ground-level estimate available:
// the rangefinder when one is present, within range, and the vehicle is
// low enough for it to be trustworthy, falling back to GPS-relative
// altitude otherwise.
func GetAGL(t Telemetry) float64 {
	if t.HasRangefinder && t.RangefinderDist != 0.0 && t.RelativeAlt <= 2.0 {
		return t.RangefinderDist
	}
	return t.RelativeAlt
}
