// Package stages implements the landing state machine: Idle, Descent,
// Align and Touchdown, each a Stage that inspects current telemetry and
// detections and resolves into the vehicle commands the control loop
// should apply this tick.
package stages

import (
	"context"
	"log"
	"time"

	"github.com/open-uav/precision-lander/internal/conductor"
	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/geometry"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/vehicle"
	"github.com/open-uav/precision-lander/internal/vision"
)

// guidedEnableCommand is MAV_CMD_DO_GUIDED_LIMITS' cousin in the mission
// plan: the waypoint command ID that hands control to this controller.
// Mirrors MAV_CMD_NAV_GUIDED_ENABLE's numeric value.
const guidedEnableCommand = 92

// Stage is one state of the landing state machine.
type Stage interface {
	Name() landingmodel.StageName
	Tick() (landingmodel.Resolve, error)
}

// Idle is the resting stage: the controller stays out of the way of
// whatever mission or manual flight is underway until the vehicle reaches
// a GUIDED_ENABLE waypoint while flying an AUTO mission above the minimum
// handoff altitude.
type Idle struct {
	vehicle           vehicle.Vehicle
	tunables          config.TunablesConfig
	sinceStatusUpdate time.Time
}

// NewIdle constructs an Idle stage.
func NewIdle(v vehicle.Vehicle, tunables config.TunablesConfig) *Idle {
	return &Idle{vehicle: v, tunables: tunables, sinceStatusUpdate: time.Now()}
}

func (s *Idle) Name() landingmodel.StageName { return landingmodel.StageIdle }

func (s *Idle) Tick() (landingmodel.Resolve, error) {
	t := s.vehicle.Telemetry()
	inAir := t.RelativeAlt >= s.tunables.MinAltForFlight
	armed := t.Armed
	auto := t.Mode == vehicle.ModeAuto

	current, previous, hasPrevious := s.vehicle.NextCommand()
	active := current
	if hasPrevious {
		// ArduPilot silently advances `next` past a GUIDED_ENABLE waypoint
		// once reached; the previous command tells us we are still in it.
		active = previous
	}

	padType, validParam := landingmodel.PadTypeFromLabel(active.Param7)
	guided := active.Command == guidedEnableCommand

	if time.Since(s.sinceStatusUpdate) >= time.Duration(s.tunables.StatusUpdateFreqS)*time.Second {
		log.Printf("Vehicle is idling.")
		log.Printf("inAir: %v, armed: %v, auto: %v, alt: %.2f, command: %d",
			inAir, armed, auto, t.RelativeAlt, active.Command)
		s.sinceStatusUpdate = time.Now()
	}

	if inAir && armed && auto && guided && validParam {
		pt := padType
		return landingmodel.Resolve{TransitionAvailable: true, PadType: &pt}, nil
	}
	return landingmodel.Resolve{}, nil
}

// Descent is the stage that flies the vehicle down toward a blobbed
// best-guess pad location, until it is low enough to align precisely.
type Descent struct {
	vehicle   vehicle.Vehicle
	detector  vision.Detector
	conductor *conductor.Conductor
	tunables  config.TunablesConfig
	padType   *landingmodel.PadType
	commandID int

	sinceStatusUpdate time.Time
	sinceEnter        time.Time
}

// NewDescent constructs a Descent stage. commandID is the mission command
// index active when Descent was entered, carried through to Touchdown so
// the mission can resume from the right waypoint after landing.
func NewDescent(v vehicle.Vehicle, d vision.Detector, c *conductor.Conductor, padType *landingmodel.PadType, commandID int, tunables config.TunablesConfig) *Descent {
	return &Descent{
		vehicle:           v,
		detector:          d,
		conductor:         c,
		tunables:          tunables,
		padType:           padType,
		commandID:         commandID,
		sinceStatusUpdate: time.Now(),
		sinceEnter:        time.Now(),
	}
}

func (s *Descent) Name() landingmodel.StageName { return landingmodel.StageDescent }

func (s *Descent) Tick() (landingmodel.Resolve, error) {
	t := s.vehicle.Telemetry()
	altGuess := vehicle.GetAGL(t)

	pixelDetects, err := s.detector.Tick()
	if err != nil {
		return landingmodel.Resolve{}, err
	}
	var locationDetects []landingmodel.LocationDetection
	for _, d := range pixelDetects {
		east, north := geometry.RelativeDistance(altGuess, d.NormalizedCoords, t.Yaw)
		loc := geometry.DistanceToLocation(t.Location, east, north)
		locationDetects = append(locationDetects, landingmodel.LocationDetection{
			PadType:    d.PadType,
			Location:   loc,
			Confidence: d.Confidence,
		})
	}
	s.conductor.AddDetections(locationDetects)

	lookFor := landingmodel.PadBottlePickup
	if s.padType != nil {
		lookFor = *s.padType
	}
	bestGuess := s.conductor.GetBestGuess(lookFor)

	if time.Since(s.sinceStatusUpdate) >= time.Duration(s.tunables.StatusUpdateFreqS)*time.Second {
		log.Printf("Vehicle is descending! cacheSize: %d, guess: %s, airspeed: %.2f",
			len(s.conductor.Detections), conductor.DetectionString(bestGuess), t.Airspeed)
		s.sinceStatusUpdate = time.Now()
	}

	if altGuess <= s.tunables.AlignAlt {
		return landingmodel.Resolve{TransitionAvailable: true, Detections: pixelDetects}, nil
	}

	if bestGuess != nil {
		dNorth, dEast := geometry.IndividualDist(bestGuess.Location, t.Location)
		northAngle, eastAngle := geometry.AngleDiff(dEast, dNorth, altGuess)

		if northAngle <= s.tunables.MaxAngleDiff && eastAngle <= s.tunables.MaxAngleDiff {
			pos := landingmodel.GeoLocation{
				Lat: bestGuess.Location.Lat,
				Lon: bestGuess.Location.Lon,
				Alt: t.Location.Alt - s.tunables.DescentSpeed,
			}
			return landingmodel.Resolve{Position: &pos, Detections: pixelDetects}, nil
		}
		pos := bestGuess.Location
		return landingmodel.Resolve{Position: &pos, Detections: pixelDetects}, nil
	} else if time.Since(s.sinceEnter) >= time.Duration(s.tunables.OptimismTimeS)*time.Second && !s.conductor.Optimistic {
		s.conductor.Optimistic = true
		log.Printf("Conductor became optimistic!")
	}

	return landingmodel.Resolve{Detections: pixelDetects}, nil
}

// Align is the stage that levels out horizontal drift once the vehicle is
// close enough to the pad that a single locked-on frame can be trusted
// more than the accumulated best guess.
type Align struct {
	vehicle    vehicle.Vehicle
	detector   vision.Detector
	conductor  *conductor.Conductor
	tunables   config.TunablesConfig
	commandID  int
	sinceEnter time.Time
}

// NewAlign constructs an Align stage.
func NewAlign(v vehicle.Vehicle, d vision.Detector, c *conductor.Conductor, commandID int, tunables config.TunablesConfig) *Align {
	return &Align{vehicle: v, detector: d, conductor: c, tunables: tunables, commandID: commandID, sinceEnter: time.Now()}
}

func (s *Align) Name() landingmodel.StageName { return landingmodel.StageAlign }

func (s *Align) Tick() (landingmodel.Resolve, error) {
	if time.Since(s.sinceEnter) >= time.Duration(s.tunables.AlignTimeS)*time.Second {
		return landingmodel.Resolve{TransitionAvailable: true}, nil
	}

	t := s.vehicle.Telemetry()
	altGuess := vehicle.GetAGL(t)

	pixelDetects, err := s.detector.Tick()
	if err != nil {
		return landingmodel.Resolve{}, err
	}
	// Only the first detection of the frame is ever used to compute an
	// alignment nudge; the rest are ignored this tick, matching the
	// original's early-return inside the detection loop.
	for _, d := range pixelDetects {
		east, north := geometry.RelativeDistance(altGuess, d.NormalizedCoords, t.Yaw)
		ce, cn := geometry.ChangeMagnitude(east, north, s.tunables.AlignAirspeed)
		return landingmodel.Resolve{Velocity: &landingmodel.Velocity{East: ce, North: cn, Down: 0.0}, Detections: pixelDetects}, nil
	}

	return landingmodel.Resolve{Velocity: &landingmodel.Velocity{East: 0.0, North: 0.0, Down: 0.0}, Detections: pixelDetects}, nil
}

// Touchdown is the final stage: it commands a constant descent speed,
// nudging toward a pad-center detection when one is visible, until the
// rangefinder reports ground contact.
type Touchdown struct {
	vehicle   vehicle.Vehicle
	detector  vision.Detector
	tunables  config.TunablesConfig
	commandID int
}

// NewTouchdown constructs a Touchdown stage.
func NewTouchdown(v vehicle.Vehicle, d vision.Detector, commandID int, tunables config.TunablesConfig) *Touchdown {
	return &Touchdown{vehicle: v, detector: d, commandID: commandID, tunables: tunables}
}

func (s *Touchdown) Name() landingmodel.StageName { return landingmodel.StageTouchdown }

func (s *Touchdown) Tick() (landingmodel.Resolve, error) {
	t := s.vehicle.Telemetry()
	altGuess := vehicle.GetAGL(t)

	if altGuess <= s.tunables.LandedAltLidar {
		return landingmodel.Resolve{TransitionAvailable: true}, nil
	}

	pixelDetects, err := s.detector.Tick()
	if err != nil {
		return landingmodel.Resolve{}, err
	}
	for _, d := range pixelDetects {
		if d.PadType != landingmodel.PadCenter {
			continue
		}
		east, north := geometry.RelativeDistance(altGuess, d.NormalizedCoords, t.Yaw)
		ce, cn := geometry.ChangeMagnitude(east, north, s.tunables.Airspeed)
		return landingmodel.Resolve{Velocity: &landingmodel.Velocity{East: ce, North: cn, Down: s.tunables.TouchdownSpeed}, Detections: pixelDetects}, nil
	}

	return landingmodel.Resolve{Velocity: &landingmodel.Velocity{East: 0, North: 0, Down: s.tunables.TouchdownSpeed}, Detections: pixelDetects}, nil
}

// Machine owns the current Stage and walks it Idle -> Descent -> Align ->
// Touchdown -> Idle, rearming and resuming the mission after touchdown.
type Machine struct {
	vehicle  vehicle.Vehicle
	detector vision.Detector
	tunables config.TunablesConfig
	state    Stage
	padType  *landingmodel.PadType
}

// New constructs a Machine starting in Idle.
func New(v vehicle.Vehicle, d vision.Detector, tunables config.TunablesConfig) *Machine {
	return &Machine{
		vehicle:  v,
		detector: d,
		tunables: tunables,
		state:    NewIdle(v, tunables),
	}
}

// State returns the currently active stage.
func (m *Machine) State() Stage { return m.state }

// PadType returns the pad type the machine has locked onto, if any.
func (m *Machine) PadType() *landingmodel.PadType { return m.padType }

// ConductorCacheSize returns the number of blobbed detections the active
// stage's conductor is tracking, or 0 outside Descent/Align.
func (m *Machine) ConductorCacheSize() int {
	switch s := m.state.(type) {
	case *Descent:
		return len(s.conductor.Detections)
	case *Align:
		return len(s.conductor.Detections)
	}
	return 0
}

// ConductorOptimistic reports whether the active stage's conductor has
// become optimistic (ignoring pad type), or false outside Descent/Align.
func (m *Machine) ConductorOptimistic() bool {
	switch s := m.state.(type) {
	case *Descent:
		return s.conductor.Optimistic
	case *Align:
		return s.conductor.Optimistic
	}
	return false
}

// Idle forces an immediate transition back to Idle, used when the loop
// detects the vehicle has been disarmed or flown out of AUTO/GUIDED.
func (m *Machine) Idle() {
	m.state = NewIdle(m.vehicle, m.tunables)
}

// Tick advances the current stage by one tick, folding in any pad type
// the stage has resolved.
func (m *Machine) Tick() (landingmodel.Resolve, error) {
	resolve, err := m.state.Tick()
	if err != nil {
		return resolve, err
	}
	if resolve.PadType != nil {
		m.padType = resolve.PadType
	}
	return resolve, nil
}

// Transition moves the state machine to its next stage. Called by the
// control loop when the current stage's Resolve sets TransitionAvailable.
func (m *Machine) Transition(ctx context.Context) {
	switch cur := m.state.(type) {
	case *Idle:
		log.Printf("Transition into Descent...")
		if m.padType != nil {
			log.Printf("Tracking a %s", *m.padType)
		}
		current, _, _ := m.vehicle.NextCommand()
		m.state = NewDescent(m.vehicle, m.detector, conductor.New(), m.padType, current.ID, m.tunables)

	case *Descent:
		t := m.vehicle.Telemetry()
		log.Printf("Transition into Align. Alt: %.2f", vehicle.GetAGL(t))
		m.state = NewAlign(m.vehicle, m.detector, cur.conductor, cur.commandID, m.tunables)

	case *Align:
		log.Printf("Transition into Touchdown...")
		m.state = NewTouchdown(m.vehicle, m.detector, cur.commandID, m.tunables)

	case *Touchdown:
		log.Printf("Touchdown finished!")
		m.finishTouchdown(ctx, cur.commandID)
		m.state = NewIdle(m.vehicle, m.tunables)
	}
}

// finishTouchdown runs the post-landing handoff sequence: descend
// straight down under LAND, wait for disarm, switch to LOITER (LAND is
// not armable), wait for the vehicle to become armable again, arm, switch
// to AUTO and resume the mission from the waypoint after the one this
// descent started from.
func (m *Machine) finishTouchdown(ctx context.Context, commandID int) {
	if err := m.vehicle.SetMode(vehicle.ModeLand); err != nil {
		log.Printf("failed to set LAND mode: %v", err)
	}

	for m.vehicle.Telemetry().Armed {
		time.Sleep(100 * time.Millisecond)
		if ctx.Err() != nil {
			return
		}
	}
	log.Printf("Vehicle disarmed!")

	if err := m.vehicle.SetMode(vehicle.ModeLoiter); err != nil {
		log.Printf("failed to set LOITER mode: %v", err)
	}

	for !m.vehicle.Telemetry().IsArmable {
		log.Printf("Waiting for vehicle to become armable...")
		time.Sleep(500 * time.Millisecond)
		if ctx.Err() != nil {
			return
		}
	}
	// The flight controller needs a moment after reporting armable before
	// it will actually accept an arm command.
	time.Sleep(1500 * time.Millisecond)

	if err := m.vehicle.Arm(ctx); err != nil {
		log.Printf("failed to arm: %v", err)
	}
	if err := m.vehicle.SetMode(vehicle.ModeAuto); err != nil {
		log.Printf("failed to set AUTO mode: %v", err)
	}
	if err := m.vehicle.SendMissionStart(ctx, commandID+1); err != nil {
		log.Printf("failed to resume mission: %v", err)
	}
}
