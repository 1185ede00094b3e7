// Package statusapi serves a small read-only HTTP and WebSocket API over
// the landing controller's live state: current stage, vehicle telemetry,
// and recent ground track. It observes the control loop through
// loop.Hooks rather than driving it, the same bridge pattern the
// teacher's WebSocket hub used to mirror device state out of the
// adapter/engine layer.
package statusapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/loop"
	"github.com/open-uav/precision-lander/internal/metrics"
	"github.com/open-uav/precision-lander/internal/vehicle"
)

// Server is the status API's HTTP and WebSocket front end.
type Server struct {
	cfg        config.APIConfig
	controller *loop.Controller
	version    string

	router  *chi.Mux
	http    *http.Server
	hub     *hub
	track   *trackRing
	throt   *throttler
	cancel  context.CancelFunc

	mu          sync.RWMutex
	lastCycleID string
}

// New constructs a Server bound to an already-built Controller. Register
// the fields of Hooks() into the Hooks fan-out the controller was built
// with, as cmd/lander does, so the server gets notified as the controller
// ticks; call Start to begin serving.
func New(cfg config.APIConfig, controller *loop.Controller, version string) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		version:    version,
		hub:        newHub(),
		track:      newTrackRing(cfg.TrackMaxPoints, cfg.TrackSampleMs),
		throt:      newThrottler(cfg.ThrottleHz),
	}
	s.setupRouter()
	return s
}

// Hooks returns the loop.Hooks this server needs wired into the
// controller to receive tick and transition notifications.
func (s *Server) Hooks() loop.Hooks {
	return loop.Hooks{
		OnTick: func(stage landingmodel.StageName, resolve landingmodel.Resolve, cycleID string, duration time.Duration) {
			s.onTick(stage, cycleID, duration)
		},
		OnTransition: func(from, to landingmodel.StageName, cycleID string) {
			log.Printf("[StatusAPI] [cycle %s] stage transition: %s -> %s", cycleID, from, to)
			s.hub.broadcastTyped(wsMessageTypeTransition, map[string]string{
				"from":     string(from),
				"to":       string(to),
				"cycle_id": cycleID,
			})
		},
	}
}

func (s *Server) onTick(stage landingmodel.StageName, cycleID string, duration time.Duration) {
	s.mu.Lock()
	s.lastCycleID = cycleID
	s.mu.Unlock()

	t := s.controller.Vehicle().Telemetry()

	now := time.Now().UnixMilli()
	s.track.Record(TrackPoint{
		Timestamp: now,
		Lat:       t.Location.Lat,
		Lon:       t.Location.Lon,
		Alt:       t.Location.Alt,
		Heading:   t.Yaw,
		Stage:     string(stage),
	})

	m := metrics.Get()
	m.AltitudeAGL.Set(vehicle.GetAGL(t))
	m.Airspeed.Set(t.Airspeed)
	if t.Armed {
		m.VehicleArmed.Set(1)
	} else {
		m.VehicleArmed.Set(0)
	}

	if !s.throt.Allow() {
		return
	}
	s.hub.broadcastTyped(wsMessageTypeStatus, s.statusSnapshot())
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if s.cfg.MetricsEnabled {
		r.Use(metrics.HTTPMiddleware)
	}

	if s.cfg.RateLimitPerSec > 0 {
		limiter := newIPRateLimiter(s.cfg.RateLimitPerSec, s.cfg.RateLimitBurst)
		r.Use(rateLimitMiddleware(limiter))
	}

	if s.cfg.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.serveWs)

	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/track", s.handleGetTrack)
		r.Delete("/track", s.handleDeleteTrack)
	})

	s.router = r
}

// Start begins serving on cfg.Address until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.hub.Run()

	s.http = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("[StatusAPI] shutdown error: %v", err)
		}
	}()

	log.Printf("[StatusAPI] listening on %s", s.cfg.Address)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop cancels the server's context, triggering a graceful shutdown.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
