package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/loop"
	"github.com/open-uav/precision-lander/internal/vehicle"
)

type fakeVehicle struct {
	telemetry vehicle.Telemetry
}

func (f *fakeVehicle) Telemetry() vehicle.Telemetry { return f.telemetry }
func (f *fakeVehicle) NextCommand() (vehicle.MissionCommand, vehicle.MissionCommand, bool) {
	return vehicle.MissionCommand{}, vehicle.MissionCommand{}, false
}
func (f *fakeVehicle) DownloadMission(ctx context.Context) error { return nil }
func (f *fakeVehicle) SetMode(mode vehicle.Mode) error            { return nil }
func (f *fakeVehicle) Arm(ctx context.Context) error              { return nil }
func (f *fakeVehicle) SimpleGoto(ctx context.Context, pos landingmodel.GeoLocation, airspeed float64) error {
	return nil
}
func (f *fakeVehicle) SendVelocityNED(v landingmodel.Velocity) error              { return nil }
func (f *fakeVehicle) SendConditionYaw(headingDeg int, relative bool) error       { return nil }
func (f *fakeVehicle) SendMissionStart(ctx context.Context, fromCommand int) error { return nil }
func (f *fakeVehicle) Close() error                                               { return nil }

type fakeDetector struct{}

func (d *fakeDetector) Tick() ([]landingmodel.PixelDetection, error) { return nil, nil }
func (d *fakeDetector) UpdateVideoTape() error                       { return nil }
func (d *fakeDetector) Close() error                                 { return nil }

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Address:         "127.0.0.1:0",
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
		ThrottleHz:      1000,
		TrackMaxPoints:  100,
		TrackSampleMs:   0,
	}
}

func newTestServer() (*Server, *loop.Controller) {
	fv := &fakeVehicle{telemetry: vehicle.Telemetry{}}
	fd := &fakeDetector{}
	tunables := config.TunablesConfig{TPS: 100, MaxFailures: 30}
	c := loop.New(fv, fd, tunables, loop.Hooks{})
	s := New(testAPIConfig(), c, "test")
	return s, c
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stage != string(landingmodel.StageIdle) {
		t.Errorf("stage = %q, want %q", body.Stage, landingmodel.StageIdle)
	}
}

func TestHandleTrack_RecordAndRetrieve(t *testing.T) {
	s, _ := newTestServer()

	s.onTick(landingmodel.StageDescent, "cycle-1", 0)
	s.onTick(landingmodel.StageDescent, "cycle-1", 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/track", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestHandleDeleteTrack(t *testing.T) {
	s, _ := newTestServer()
	s.onTick(landingmodel.StageDescent, "cycle-1", 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/track", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if s.track.Size() != 0 {
		t.Errorf("track size = %d, want 0 after delete", s.track.Size())
	}
}

func TestHooksWireIntoController(t *testing.T) {
	s, _ := newTestServer()
	hooks := s.Hooks()
	if hooks.OnTick == nil || hooks.OnTransition == nil {
		t.Fatal("expected both OnTick and OnTransition hooks set")
	}
}
