// Package loop runs the fixed-rate control loop that drives the landing
// state machine: it ticks the current stage, applies whatever it resolves
// to the vehicle, and trips a circuit breaker into RTL once the total
// failure count over the process lifetime reaches MaxFailures; successful
// ticks do not reset it.
package loop

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/stages"
	"github.com/open-uav/precision-lander/internal/vehicle"
	"github.com/open-uav/precision-lander/internal/vision"
)

// missionRedownloadInterval is how often the loop re-pulls the mission
// from the vehicle while sitting in Idle, so a mission uploaded mid-flight
// is picked up without requiring a restart.
const missionRedownloadInterval = 5 * time.Second

// Hooks lets callers (the status API, the MQTT publisher, metrics) observe
// the loop without the loop depending on any of them. Every field is
// optional. cycleID identifies the current landing cycle (empty while
// Idle), the same id attached to every lifecycle event and log line a
// cycle produces, so a ground operator can follow one attempt end to end
// across the status API, MQTT, and the logs.
type Hooks struct {
	// OnTick is called once per tick with the active stage name, the
	// resolve it produced, the current cycle id, and how long the tick
	// took to compute.
	OnTick func(stage landingmodel.StageName, resolve landingmodel.Resolve, cycleID string, duration time.Duration)
	// OnTransition is called whenever the state machine changes stage.
	OnTransition func(from, to landingmodel.StageName, cycleID string)
	// OnFailure is called every time a tick errors, with the running
	// failure count.
	OnFailure func(stage landingmodel.StageName, err error, failures int, cycleID string)
}

// Controller owns the state machine and drives it at a fixed tick rate.
type Controller struct {
	vehicle  vehicle.Vehicle
	detector vision.Detector
	machine  *stages.Machine
	tunables config.TunablesConfig
	hooks    Hooks

	failures          int
	sinceMissionPull  time.Time
	cycleID           string
}

// New constructs a Controller.
func New(v vehicle.Vehicle, d vision.Detector, tunables config.TunablesConfig, hooks Hooks) *Controller {
	return &Controller{
		vehicle:          v,
		detector:         d,
		machine:          stages.New(v, d, tunables),
		tunables:         tunables,
		hooks:            hooks,
		sinceMissionPull: time.Now(),
	}
}

// Machine exposes the underlying state machine, for read-only inspection
// by the status API.
func (c *Controller) Machine() *stages.Machine { return c.machine }

// Vehicle exposes the underlying vehicle link, for read-only telemetry
// inspection by the status API.
func (c *Controller) Vehicle() vehicle.Vehicle { return c.vehicle }

// Failures returns the total number of failures counted so far; it is
// never reset.
func (c *Controller) Failures() int { return c.failures }

// CycleID returns the id of the landing cycle currently in progress, or
// the empty string while Idle.
func (c *Controller) CycleID() string { return c.cycleID }

// Run drives the control loop until ctx is done or the failure budget is
// exhausted, in which case it commands RTL and returns an error.
func (c *Controller) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / c.tunables.TPS)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) tick(ctx context.Context) error {
	if c.failures >= c.tunables.MaxFailures {
		log.Printf("[Controller] We have reached the maximum failures!")
		if err := c.vehicle.SetMode(vehicle.ModeRTL); err != nil {
			log.Printf("[Controller] failed to command RTL: %v", err)
		}
		return fmt.Errorf("maximum failures (%d) reached, commanded RTL", c.tunables.MaxFailures)
	}

	if _, isIdle := c.machine.State().(*stages.Idle); isIdle && time.Since(c.sinceMissionPull) >= missionRedownloadInterval {
		log.Printf("[Controller] Downloading mission...")
		dlCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.vehicle.DownloadMission(dlCtx); err != nil {
			log.Printf("[Controller] Failed downloading mission: %v", err)
		}
		cancel()
		c.sinceMissionPull = time.Now()
	}

	t := c.vehicle.Telemetry()
	if !t.Armed || (t.Mode != vehicle.ModeAuto && t.Mode != vehicle.ModeGuided) {
		if _, isIdle := c.machine.State().(*stages.Idle); !isIdle {
			log.Printf("[Controller] [cycle %s] Current mode: %s", c.cycleID, t.Mode)
			log.Printf("[Controller] [cycle %s] Killing! Going back into Idle.", c.cycleID)
			from := c.machine.State().Name()
			c.machine.Idle()
			endedCycle := c.cycleID
			c.cycleID = ""
			if c.hooks.OnTransition != nil {
				c.hooks.OnTransition(from, c.machine.State().Name(), endedCycle)
			}
		}
	}

	stageName := c.machine.State().Name()
	tickStart := time.Now()
	resolve, err := c.machine.Tick()
	duration := time.Since(tickStart)
	if err != nil {
		c.failures++
		log.Printf("[Controller] [cycle %s] An error occurred while in %s stage: %v", c.cycleID, stageName, err)
		if c.hooks.OnFailure != nil {
			c.hooks.OnFailure(stageName, err, c.failures, c.cycleID)
		}
	} else {
		if c.hooks.OnTick != nil {
			c.hooks.OnTick(stageName, resolve, c.cycleID, duration)
		}

		if resolve.TransitionAvailable {
			c.machine.Transition(ctx)
			toName := c.machine.State().Name()
			if stageName == landingmodel.StageIdle && toName != landingmodel.StageIdle {
				c.cycleID = uuid.New().String()
				log.Printf("[Controller] [cycle %s] New landing cycle started", c.cycleID)
			}
			cycleID := c.cycleID
			if toName == landingmodel.StageIdle {
				c.cycleID = ""
			}
			if c.hooks.OnTransition != nil {
				c.hooks.OnTransition(stageName, toName, cycleID)
			}
		}

		if resolve.Position != nil {
			if err := c.vehicle.SimpleGoto(ctx, *resolve.Position, c.tunables.Airspeed); err != nil {
				log.Printf("[Controller] simple goto failed: %v", err)
			}
		}
		if resolve.Velocity != nil {
			if err := c.vehicle.SendVelocityNED(*resolve.Velocity); err != nil {
				log.Printf("[Controller] send velocity failed: %v", err)
			}
		}
		// Yaw control is deliberately left uncommanded: the original field
		// controller commented this call out after finding it fought the
		// velocity controller, and that decision is preserved here.
	}

	if err := c.detector.UpdateVideoTape(); err != nil {
		c.failures++
		log.Printf("[Controller] Saving video file failed this tick: %v", err)
	}

	return nil
}
