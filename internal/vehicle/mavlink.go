package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/frame"

	"github.com/open-uav/precision-lander/internal/adapters/mavlink"
	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// copter custom_mode values this controller commands. ArduCopter's mode
// table is large; we only ever request these from the landing loop.
const (
	copterModeLoiter = 5
	copterModeAuto   = 3
	copterModeLand   = 9
	copterModeRTL    = 6
)

func customModeFor(m Mode) (uint32, bool) {
	switch m {
	case ModeLoiter:
		return copterModeLoiter, true
	case ModeAuto:
		return copterModeAuto, true
	case ModeLand:
		return copterModeLand, true
	case ModeRTL:
		return copterModeRTL, true
	default:
		return 0, false
	}
}

// MAVLinkVehicle is the production Vehicle port, speaking MAVLink v2 over
// the ardupilotmega dialect to a single ArduCopter system. It is built on
// the same gomavlib.Node/endpoint construction as the telemetry adapter
// this module grew out of, but also writes commands back to the vehicle.
type MAVLinkVehicle struct {
	cfg config.MAVLinkConfig

	node     *gomavlib.Node
	targetID uint8 // system ID of the vehicle once its first heartbeat arrives

	mu        sync.RWMutex
	telemetry Telemetry
	mission   []MissionCommand
	nextCmd   int

	done chan struct{}
}

// Dial opens a MAVLink link per cfg and begins tracking vehicle state. It
// does not block waiting for the first heartbeat; callers needing that
// should poll Telemetry().
func Dial(cfg config.MAVLinkConfig) (*MAVLinkVehicle, error) {
	endpoints, err := buildEndpoints(cfg)
	if err != nil {
		return nil, fmt.Errorf("building mavlink endpoints: %w", err)
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   endpoints,
		Dialect:     ardupilotmega.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: 255,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mavlink node: %w", err)
	}

	v := &MAVLinkVehicle{
		cfg:  cfg,
		node: node,
		done: make(chan struct{}),
	}
	go v.receiveLoop()
	return v, nil
}

func buildEndpoints(cfg config.MAVLinkConfig) ([]gomavlib.EndpointConf, error) {
	switch cfg.ConnectionType {
	case "udp":
		return []gomavlib.EndpointConf{gomavlib.EndpointUDPClient{Address: cfg.Address}}, nil
	case "tcp":
		return []gomavlib.EndpointConf{gomavlib.EndpointTCPClient{Address: cfg.Address}}, nil
	case "serial":
		return []gomavlib.EndpointConf{gomavlib.EndpointSerial{Device: cfg.SerialPort, Baud: cfg.SerialBaud}}, nil
	default:
		return nil, fmt.Errorf("unknown connection type: %s", cfg.ConnectionType)
	}
}

func (v *MAVLinkVehicle) receiveLoop() {
	for {
		select {
		case <-v.done:
			return
		case evt := <-v.node.Events():
			if frm, ok := evt.(*gomavlib.EventFrame); ok {
				v.handleFrame(frm.Frame)
			}
		}
	}
}

func (v *MAVLinkVehicle) handleFrame(frm frame.Frame) {
	sysID := frm.GetSystemID()

	v.mu.Lock()
	if v.targetID == 0 {
		v.targetID = sysID
	}
	if sysID != v.targetID {
		v.mu.Unlock()
		return
	}

	switch msg := frm.GetMessage().(type) {
	case *ardupilotmega.MessageHeartbeat:
		v.telemetry.Armed = (msg.BaseMode & ardupilotmega.MAV_MODE_FLAG_SAFETY_ARMED) != 0
		v.telemetry.Mode = unifyMode(string(mavlink.MapFlightMode(msg.CustomMode, msg.Type)))
	case *ardupilotmega.MessageGlobalPositionInt:
		v.telemetry.Location.Lat = float64(msg.Lat) / 1e7
		v.telemetry.Location.Lon = float64(msg.Lon) / 1e7
		v.telemetry.Location.Alt = float64(msg.Alt) / 1000.0
		v.telemetry.RelativeAlt = float64(msg.RelativeAlt) / 1000.0
	case *ardupilotmega.MessageAttitude:
		yawDeg := float64(msg.Yaw) * 180.0 / 3.14159265359
		if yawDeg < 0 {
			yawDeg += 360.0
		}
		v.telemetry.Yaw = yawDeg
	case *ardupilotmega.MessageVfrHud:
		v.telemetry.Airspeed = float64(msg.Airspeed)
	case *ardupilotmega.MessageDistanceSensor:
		v.telemetry.RangefinderDist = float64(msg.CurrentDistance) / 100.0
		v.telemetry.HasRangefinder = true
	case *ardupilotmega.MessageSysStatus:
		v.telemetry.IsArmable = (msg.OnboardControlSensorsHealth & ardupilotmega.MAV_SYS_STATUS_SENSOR_GPS) != 0
	case *ardupilotmega.MessageMissionCurrent:
		v.nextCmd = int(msg.Seq)
	case *ardupilotmega.MessageMissionItemInt:
		cmd := MissionCommand{ID: int(msg.Seq), Command: int(msg.Command), Param7: int(msg.Z)}
		v.setMissionItem(cmd)
	}
	v.mu.Unlock()
}

func unifyMode(raw string) Mode {
	switch raw {
	case "STABILIZE":
		return ModeStabilize
	case "ALT_HOLD":
		return ModeAltHold
	case "LOITER":
		return ModeLoiter
	case "AUTO":
		return ModeAuto
	case "GUIDED":
		return ModeGuided
	case "RTL":
		return ModeRTL
	case "LAND":
		return ModeLand
	case "TAKEOFF":
		return ModeTakeoff
	default:
		return ModeUnknown
	}
}

// setMissionItem records a mission item received while holding v.mu. Must
// be called with v.mu already locked.
func (v *MAVLinkVehicle) setMissionItem(cmd MissionCommand) {
	for i, existing := range v.mission {
		if existing.ID == cmd.ID {
			v.mission[i] = cmd
			return
		}
	}
	v.mission = append(v.mission, cmd)
}

// Telemetry implements Vehicle.
func (v *MAVLinkVehicle) Telemetry() Telemetry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.telemetry
}

// NextCommand implements Vehicle. It mirrors the dronekit quirk this
// controller was ported from: once a GUIDED_ENABLE waypoint is reached,
// the autopilot silently advances `next` to the waypoint after it, so the
// only way to tell we are inside that waypoint is to look at the one
// before `next`.
func (v *MAVLinkVehicle) NextCommand() (current, previous MissionCommand, hasPrevious bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idx := v.nextCmd
	current = v.commandAt(idx)
	if idx == 0 {
		return current, MissionCommand{}, false
	}
	previous = v.commandAt(idx - 1)
	return current, previous, true
}

func (v *MAVLinkVehicle) commandAt(idx int) MissionCommand {
	for _, c := range v.mission {
		if c.ID == idx {
			return c
		}
	}
	return MissionCommand{}
}

// DownloadMission implements Vehicle.
func (v *MAVLinkVehicle) DownloadMission(ctx context.Context) error {
	err := v.node.WriteMessageAll(&ardupilotmega.MessageMissionRequestList{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
	})
	if err != nil {
		return fmt.Errorf("requesting mission list: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// SetMode implements Vehicle.
func (v *MAVLinkVehicle) SetMode(mode Mode) error {
	customMode, ok := customModeFor(mode)
	if !ok {
		return fmt.Errorf("mode %s has no ArduCopter custom_mode mapping", mode)
	}
	return v.node.WriteMessageAll(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Command:         ardupilotmega.MAV_CMD_DO_SET_MODE,
		Param1:          float32(ardupilotmega.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
		Param2:          float32(customMode),
	})
}

// Arm implements Vehicle.
func (v *MAVLinkVehicle) Arm(ctx context.Context) error {
	err := v.node.WriteMessageAll(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Command:         ardupilotmega.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:          1,
	})
	if err != nil {
		return fmt.Errorf("sending arm command: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if v.Telemetry().Armed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SimpleGoto implements Vehicle, commanding a global position target.
func (v *MAVLinkVehicle) SimpleGoto(ctx context.Context, pos landingmodel.GeoLocation, airspeed float64) error {
	typeMask := ardupilotmega.POSITION_TARGET_TYPEMASK_VX_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_VY_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_AX_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_AY_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_YAW_IGNORE |
		ardupilotmega.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE
	err := v.node.WriteMessageAll(&ardupilotmega.MessageSetPositionTargetGlobalInt{
		TimeBootMs:      uint32(time.Now().UnixMilli()),
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		CoordinateFrame: ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
		TypeMask:        typeMask,
		LatInt:          int32(pos.Lat * 1e7),
		LonInt:          int32(pos.Lon * 1e7),
		Alt:             float32(pos.Alt),
	})
	if err != nil {
		return fmt.Errorf("sending position target: %w", err)
	}
	return v.node.WriteMessageAll(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Command:         ardupilotmega.MAV_CMD_DO_CHANGE_SPEED,
		Param1:          1, // airspeed
		Param2:          float32(airspeed),
	})
}

// SendVelocityNED implements Vehicle.
func (v *MAVLinkVehicle) SendVelocityNED(vel landingmodel.Velocity) error {
	const typeMask = uint16(0b0000_1111_1100_0111) // only speeds enabled
	return v.node.WriteMessageAll(&ardupilotmega.MessageSetPositionTargetLocalNed{
		TimeBootMs:      0,
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		CoordinateFrame: ardupilotmega.MAV_FRAME_LOCAL_NED,
		TypeMask:        ardupilotmega.POSITION_TARGET_TYPEMASK(typeMask),
		Vx:              float32(vel.North),
		Vy:              float32(vel.East),
		Vz:              float32(vel.Down),
	})
}

// SendConditionYaw implements Vehicle.
func (v *MAVLinkVehicle) SendConditionYaw(headingDeg int, relative bool) error {
	isRelative := float32(0)
	if relative {
		isRelative = 1
	}
	return v.node.WriteMessageAll(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Command:         ardupilotmega.MAV_CMD_CONDITION_YAW,
		Param1:          float32(headingDeg),
		Param2:          0,
		Param3:          1,
		Param4:          isRelative,
	})
}

// SendMissionStart implements Vehicle.
func (v *MAVLinkVehicle) SendMissionStart(ctx context.Context, fromCommand int) error {
	if err := v.node.WriteMessageAll(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Command:         ardupilotmega.MAV_CMD_MISSION_START,
	}); err != nil {
		return fmt.Errorf("sending mission start: %w", err)
	}

	v.mu.Lock()
	v.nextCmd = fromCommand
	v.mu.Unlock()

	return v.node.WriteMessageAll(&ardupilotmega.MessageMissionSetCurrent{
		TargetSystem:    v.targetID,
		TargetComponent: 1,
		Seq:             uint16(fromCommand),
	})
}

// Close implements Vehicle.
func (v *MAVLinkVehicle) Close() error {
	close(v.done)
	v.node.Close()
	return nil
}
