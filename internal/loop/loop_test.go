package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/stages"
	"github.com/open-uav/precision-lander/internal/vehicle"
)

type fakeVehicle struct {
	telemetry    vehicle.Telemetry
	current      vehicle.MissionCommand
	downloads    int
	modesSet     []vehicle.Mode
	gotoCalls    int
	velocityCalls int
}

func (f *fakeVehicle) Telemetry() vehicle.Telemetry { return f.telemetry }
func (f *fakeVehicle) NextCommand() (vehicle.MissionCommand, vehicle.MissionCommand, bool) {
	return f.current, vehicle.MissionCommand{}, false
}
func (f *fakeVehicle) DownloadMission(ctx context.Context) error {
	f.downloads++
	return nil
}
func (f *fakeVehicle) SetMode(mode vehicle.Mode) error {
	f.modesSet = append(f.modesSet, mode)
	f.telemetry.Mode = mode
	return nil
}
func (f *fakeVehicle) Arm(ctx context.Context) error { f.telemetry.Armed = true; return nil }
func (f *fakeVehicle) SimpleGoto(ctx context.Context, pos landingmodel.GeoLocation, airspeed float64) error {
	f.gotoCalls++
	return nil
}
func (f *fakeVehicle) SendVelocityNED(v landingmodel.Velocity) error {
	f.velocityCalls++
	return nil
}
func (f *fakeVehicle) SendConditionYaw(headingDeg int, relative bool) error { return nil }
func (f *fakeVehicle) SendMissionStart(ctx context.Context, fromCommand int) error { return nil }
func (f *fakeVehicle) Close() error { return nil }

type fakeDetector struct {
	tapeUpdates int
	tapeErr     error
}

func (d *fakeDetector) Tick() ([]landingmodel.PixelDetection, error) { return nil, nil }
func (d *fakeDetector) UpdateVideoTape() error {
	d.tapeUpdates++
	return d.tapeErr
}
func (d *fakeDetector) Close() error { return nil }

func testTunables() config.TunablesConfig {
	return config.TunablesConfig{
		TPS:               100, // fast tick for tests
		MaxFailures:       3,
		MinAltForFlight:   5,
		StatusUpdateFreqS: 1,
		AlignAlt:          3,
		LandedAltLidar:    0.5,
		AlignTimeS:        25,
		OptimismTimeS:     999,
		MaxAngleDiff:      25,
		Airspeed:          0.8,
		TouchdownSpeed:    0.3,
		AlignAirspeed:     0.3,
		DescentSpeed:      1.0,
	}
}

func TestController_ForcesIdleWhenDisarmed(t *testing.T) {
	fv := &fakeVehicle{
		telemetry: vehicle.Telemetry{RelativeAlt: 10, Armed: true, Mode: vehicle.ModeAuto},
		current:   vehicle.MissionCommand{ID: 1, Command: 92, Param7: 0},
	}
	fd := &fakeDetector{}
	c := New(fv, fd, testTunables(), Hooks{})

	if err := c.tick(context.Background()); err != nil {
		t.Fatalf("tick returned error: %v", err)
	}
	if _, ok := c.Machine().State().(*stages.Descent); !ok {
		t.Fatalf("state = %T, want *stages.Descent after entering guided descent", c.Machine().State())
	}

	fv.telemetry.Armed = false
	if err := c.tick(context.Background()); err != nil {
		t.Fatalf("tick returned error: %v", err)
	}
	if _, ok := c.Machine().State().(*stages.Idle); !ok {
		t.Errorf("state = %T, want *stages.Idle once disarmed", c.Machine().State())
	}
}

func TestController_TripsCircuitBreakerAfterMaxFailures(t *testing.T) {
	fv := &fakeVehicle{telemetry: vehicle.Telemetry{Armed: true, Mode: vehicle.ModeAuto}}
	fd := &fakeDetector{tapeErr: errors.New("disk full")}
	tunables := testTunables()
	tunables.MaxFailures = 2
	c := New(fv, fd, tunables, Hooks{})

	var lastErr error
	for i := 0; i < 5; i++ {
		if err := c.tick(context.Background()); err != nil {
			lastErr = err
			break
		}
	}

	if lastErr == nil {
		t.Fatal("expected circuit breaker to trip")
	}
	found := false
	for _, m := range fv.modesSet {
		if m == vehicle.ModeRTL {
			found = true
		}
	}
	if !found {
		t.Error("expected RTL to have been commanded")
	}
}

func TestController_DownloadsMissionOnIdleCadence(t *testing.T) {
	fv := &fakeVehicle{telemetry: vehicle.Telemetry{Armed: false}}
	fd := &fakeDetector{}
	c := New(fv, fd, testTunables(), Hooks{})
	c.sinceMissionPull = time.Now().Add(-10 * time.Second)

	if err := c.tick(context.Background()); err != nil {
		t.Fatalf("tick returned error: %v", err)
	}
	if fv.downloads != 1 {
		t.Errorf("downloads = %d, want 1", fv.downloads)
	}
}

func TestController_CallsHooksOnTransition(t *testing.T) {
	fv := &fakeVehicle{
		telemetry: vehicle.Telemetry{RelativeAlt: 10, Armed: true, Mode: vehicle.ModeAuto},
		current:   vehicle.MissionCommand{ID: 1, Command: 92, Param7: 0},
	}
	fd := &fakeDetector{}

	var transitions int
	hooks := Hooks{OnTransition: func(from, to landingmodel.StageName, cycleID string) { transitions++ }}
	c := New(fv, fd, testTunables(), hooks)

	if err := c.tick(context.Background()); err != nil {
		t.Fatalf("tick returned error: %v", err)
	}
	if transitions != 1 {
		t.Errorf("transitions = %d, want 1", transitions)
	}
	if _, ok := c.Machine().State().(*stages.Descent); !ok {
		t.Errorf("state = %T, want *stages.Descent", c.Machine().State())
	}
}
