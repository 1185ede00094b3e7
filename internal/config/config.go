// Package config loads the landing controller's YAML configuration file
// and fills in defaults, the same Load()-plus-default-filling shape the
// rest of this codebase's config has always used.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the landing controller.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Vehicle  MAVLinkConfig  `yaml:"vehicle"`
	Vision   VisionConfig   `yaml:"vision"`
	Tunables TunablesConfig `yaml:"tunables"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel         string `yaml:"log_level"`
	DevelopmentMode  bool   `yaml:"development_mode"` // SITL UDP instead of onboard serial, stdout-only logging instead of the per-run log file
}

// MAVLinkConfig contains the vehicle link settings. Named MAVLinkConfig,
// not VehicleConfig, to keep the name the teacher's adapters already use.
type MAVLinkConfig struct {
	ConnectionType string `yaml:"connection_type"` // udp, tcp, serial
	Address        string `yaml:"address"`         // for udp/tcp: "host:port"
	SerialPort     string `yaml:"serial_port"`
	SerialBaud     int    `yaml:"serial_baud"`
}

// VisionConfig contains pad-detector settings.
type VisionConfig struct {
	ModelPath           string             `yaml:"model_path"`
	InputWidth          int                `yaml:"input_width"`
	InputHeight         int                `yaml:"input_height"`
	ConfidenceThreshold float64            `yaml:"confidence_threshold"`
	IOUThreshold        float64            `yaml:"iou_threshold"`
	NumClasses          int                `yaml:"num_classes"`
	Anchors             []float64          `yaml:"anchors"`
	AnchorMasks         map[string][]int   `yaml:"anchor_masks"`
	NumThreads          int                `yaml:"num_threads"`
	VideoTapePath       string             `yaml:"video_tape_path"` // empty disables taping
}

// TunablesConfig carries every numeric constant the landing algorithm
// was tuned against. Field names mirror the original constant names so
// the mapping to spec.md's tunable table is obvious at a glance.
type TunablesConfig struct {
	TPS               float64 `yaml:"tps"`
	MaxFailures       int     `yaml:"max_failures"`
	PadBlobbingDist   float64 `yaml:"pad_blobbing_dist"`
	DescentSpeed      float64 `yaml:"descent_speed"`
	TouchdownSpeed    float64 `yaml:"touchdown_speed"`
	AlignAirspeed     float64 `yaml:"align_airspeed"`
	Airspeed          float64 `yaml:"airspeed"`
	MinAltForFlight   float64 `yaml:"min_alt_for_flight"`
	StatusUpdateFreqS int     `yaml:"status_update_freq_s"`
	AlignTimeS        int     `yaml:"align_time_s"`
	AlignAlt          float64 `yaml:"align_alt"`
	OptimismTimeS     int     `yaml:"optimism_time_s"`
	MaxAngleDiff      float64 `yaml:"max_angle_diff"`
	LandedAltLidar    float64 `yaml:"landed_alt_lidar"`
}

// MQTTConfig contains landing-event publisher settings.
type MQTTConfig struct {
	Enabled     bool      `yaml:"enabled"`
	Broker      string    `yaml:"broker"`
	ClientID    string    `yaml:"client_id"`
	TopicPrefix string    `yaml:"topic_prefix"`
	QoS         int       `yaml:"qos"`
	Username    string    `yaml:"username"`
	Password    string    `yaml:"password"`
	LWT         LWTConfig `yaml:"lwt"`
}

// LWTConfig contains Last Will and Testament settings.
type LWTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
}

// APIConfig contains the optional local read-only status server settings.
type APIConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Address           string   `yaml:"address"`
	CORSEnabled       bool     `yaml:"cors_enabled"`
	CORSOrigins       []string `yaml:"cors_origins"`
	RateLimitPerSec   float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int      `yaml:"rate_limit_burst"`
	ThrottleHz        float64  `yaml:"throttle_hz"`
	TrackMaxPoints    int      `yaml:"track_max_points"`
	TrackSampleMs     int64    `yaml:"track_sample_ms"`
	MetricsEnabled    bool     `yaml:"metrics_enabled"`
}

// LoggingConfig contains ring-buffer and on-disk logging settings.
type LoggingConfig struct {
	LogsDirectory string `yaml:"logs_directory"`
	BufferSize    int    `yaml:"buffer_size"`
}

// Load reads configuration from a YAML file and fills in every documented
// default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}

	if cfg.Vehicle.ConnectionType == "" {
		if cfg.Server.DevelopmentMode {
			cfg.Vehicle.ConnectionType = "udp"
			cfg.Vehicle.Address = "127.0.0.1:14550"
		} else {
			cfg.Vehicle.ConnectionType = "serial"
			cfg.Vehicle.SerialPort = "/dev/ttyAMA1"
			cfg.Vehicle.SerialBaud = 115200
		}
	}

	if cfg.Vision.ModelPath == "" {
		cfg.Vision.ModelPath = "assets/detection_model.tflite"
	}
	if cfg.Vision.InputWidth == 0 {
		cfg.Vision.InputWidth = 416
	}
	if cfg.Vision.InputHeight == 0 {
		cfg.Vision.InputHeight = 416
	}
	if cfg.Vision.ConfidenceThreshold == 0 {
		cfg.Vision.ConfidenceThreshold = 0.5
	}
	if cfg.Vision.IOUThreshold == 0 {
		cfg.Vision.IOUThreshold = 0.5
	}
	if cfg.Vision.NumClasses == 0 {
		cfg.Vision.NumClasses = 7
	}
	if cfg.Vision.NumThreads == 0 {
		cfg.Vision.NumThreads = 2
	}

	t := &cfg.Tunables
	if t.TPS == 0 {
		t.TPS = 15
	}
	if t.MaxFailures == 0 {
		t.MaxFailures = 30
	}
	if t.PadBlobbingDist == 0 {
		t.PadBlobbingDist = 8
	}
	if t.DescentSpeed == 0 {
		t.DescentSpeed = 1.0
	}
	if t.TouchdownSpeed == 0 {
		t.TouchdownSpeed = 0.3
	}
	if t.AlignAirspeed == 0 {
		t.AlignAirspeed = 0.3
	}
	if t.Airspeed == 0 {
		t.Airspeed = 0.8
	}
	if t.MinAltForFlight == 0 {
		t.MinAltForFlight = 5
	}
	if t.StatusUpdateFreqS == 0 {
		t.StatusUpdateFreqS = 1
	}
	if t.AlignTimeS == 0 {
		t.AlignTimeS = 25
	}
	if t.AlignAlt == 0 {
		t.AlignAlt = 3
	}
	if t.OptimismTimeS == 0 {
		t.OptimismTimeS = 999
	}
	if t.MaxAngleDiff == 0 {
		t.MaxAngleDiff = 25
	}
	if t.LandedAltLidar == 0 {
		t.LandedAltLidar = 0.5
	}

	if cfg.API.Address == "" {
		cfg.API.Address = "0.0.0.0:8080"
	}
	if cfg.API.RateLimitPerSec == 0 {
		cfg.API.RateLimitPerSec = 5
	}
	if cfg.API.RateLimitBurst == 0 {
		cfg.API.RateLimitBurst = 10
	}
	if cfg.API.ThrottleHz == 0 {
		cfg.API.ThrottleHz = 5
	}
	if cfg.API.TrackMaxPoints == 0 {
		cfg.API.TrackMaxPoints = 10000
	}
	if cfg.API.TrackSampleMs == 0 {
		cfg.API.TrackSampleMs = 1000
	}

	if cfg.Logging.LogsDirectory == "" {
		cfg.Logging.LogsDirectory = "/home/pi/flight_logs"
	}
	if cfg.Logging.BufferSize == 0 {
		cfg.Logging.BufferSize = 1000
	}
}
