package statusapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/open-uav/precision-lander/internal/vehicle"
)

// statusResponse is the /api/v1/status and broadcast payload shape.
type statusResponse struct {
	Stage       string  `json:"stage"`
	PadType     *string `json:"pad_type,omitempty"`
	CycleID     string  `json:"cycle_id,omitempty"`
	Armed       bool    `json:"armed"`
	Mode        string  `json:"mode"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	RelativeAlt float64 `json:"relative_alt"`
	AGL         float64 `json:"agl"`
	Yaw         float64 `json:"yaw"`
	Airspeed    float64 `json:"airspeed"`
	Failures    int     `json:"failures"`
	Timestamp   int64   `json:"timestamp"`
}

func (s *Server) statusSnapshot() statusResponse {
	t := s.controller.Vehicle().Telemetry()
	machine := s.controller.Machine()

	var padType *string
	if pt := machine.PadType(); pt != nil {
		v := string(*pt)
		padType = &v
	}

	s.mu.RLock()
	cycleID := s.lastCycleID
	s.mu.RUnlock()

	return statusResponse{
		Stage:       string(machine.State().Name()),
		PadType:     padType,
		CycleID:     cycleID,
		Armed:       t.Armed,
		Mode:        string(t.Mode),
		Lat:         t.Location.Lat,
		Lon:         t.Location.Lon,
		RelativeAlt: t.RelativeAlt,
		AGL:         vehicle.GetAGL(t),
		Yaw:         t.Yaw,
		Airspeed:    t.Airspeed,
		Failures:    s.controller.Failures(),
		Timestamp:   time.Now().UnixMilli(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusSnapshot())
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)

	var points []TrackPoint
	if since > 0 {
		points = s.track.GetSince(since)
		if limit > 0 && len(points) > limit {
			points = points[len(points)-limit:]
		}
	} else {
		points = s.track.GetLast(limit)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	s.track.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
