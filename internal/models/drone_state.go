// Package models holds the few wire-agnostic types shared across
// protocol boundaries. FlightMode is ArduPilot's fixed contract: whatever
// the vehicle link decodes a custom mode number into, it arrives here
// before the rest of the controller gets to see it.
package models

// FlightMode represents unified flight modes across different protocols
type FlightMode string

const (
	FlightModeUnknown   FlightMode = "UNKNOWN"
	FlightModeManual    FlightMode = "MANUAL"
	FlightModeStabilize FlightMode = "STABILIZE"
	FlightModeAltHold   FlightMode = "ALT_HOLD"
	FlightModeLoiter    FlightMode = "LOITER"  // Position hold
	FlightModeAuto      FlightMode = "AUTO"    // Autonomous mission
	FlightModeGuided    FlightMode = "GUIDED"  // External control
	FlightModeRTL       FlightMode = "RTL"     // Return to launch
	FlightModeLand      FlightMode = "LAND"    // Landing
	FlightModeTakeoff   FlightMode = "TAKEOFF" // Taking off
	FlightModeEmergency FlightMode = "EMERGENCY"
)
