package models

import "testing"

func TestFlightModeConstants(t *testing.T) {
	modes := []FlightMode{
		FlightModeUnknown,
		FlightModeManual,
		FlightModeStabilize,
		FlightModeAltHold,
		FlightModeLoiter,
		FlightModeAuto,
		FlightModeGuided,
		FlightModeRTL,
		FlightModeLand,
		FlightModeTakeoff,
		FlightModeEmergency,
	}

	for _, mode := range modes {
		if mode == "" {
			t.Errorf("FlightMode should not be empty")
		}
	}
}
