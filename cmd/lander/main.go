package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/loop"
	"github.com/open-uav/precision-lander/internal/metrics"
	"github.com/open-uav/precision-lander/internal/publishers/mqtt"
	"github.com/open-uav/precision-lander/internal/runlog"
	"github.com/open-uav/precision-lander/internal/statusapi"
	"github.com/open-uav/precision-lander/internal/vehicle"
	"github.com/open-uav/precision-lander/internal/vision"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

// run carries out the whole process lifecycle and returns the process
// exit code: 0 for a clean shutdown (signal received), 1 if the control
// loop exited on its own (failure budget exhausted, vehicle commanded
// into RTL) or setup failed.
func run() int {
	fmt.Printf("precision-lander v%s\n", version)
	fmt.Println("Autonomous precision-landing controller")
	fmt.Println()

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		return 1
	}

	buffer := runlog.New(cfg.Logging.BufferSize)
	var runPaths runlog.RunPaths
	if cfg.Server.DevelopmentMode {
		// Development mode logs to stdout only: no run directory, no
		// venus.log, and no default camera.h265 path.
		runlog.SetupGlobalLogger(buffer, os.Stdout)
	} else {
		runPaths, err = runlog.NewRunDir(cfg.Logging.LogsDirectory)
		if err != nil {
			log.Printf("Failed to create run log directory: %v", err)
			return 1
		}
		logFile, err := os.Create(runPaths.LogPath)
		if err != nil {
			log.Printf("Failed to create run log file: %v", err)
			return 1
		}
		defer logFile.Close()
		runlog.SetupGlobalLogger(buffer, os.Stdout, logFile)
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("Configuration loaded from %s", configPath)
	if runPaths.Dir != "" {
		log.Printf("Run log directory: %s", runPaths.Dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := vehicle.Dial(cfg.Vehicle)
	if err != nil {
		log.Printf("Failed to connect to vehicle (%s %s): %v", cfg.Vehicle.ConnectionType, cfg.Vehicle.Address, err)
		return 1
	}
	defer v.Close()
	log.Printf("Vehicle link established (%s: %s)", cfg.Vehicle.ConnectionType, cfg.Vehicle.Address)

	modelCfg := vision.ModelConfig{
		ModelPath:           cfg.Vision.ModelPath,
		InputWidth:          cfg.Vision.InputWidth,
		InputHeight:         cfg.Vision.InputHeight,
		ConfidenceThreshold: cfg.Vision.ConfidenceThreshold,
		IOUThreshold:        cfg.Vision.IOUThreshold,
		NumClasses:          cfg.Vision.NumClasses,
		Anchors:             cfg.Vision.Anchors,
		AnchorMasks:         cfg.Vision.AnchorMasks,
		NumThreads:          cfg.Vision.NumThreads,
	}
	videoTapePath := cfg.Vision.VideoTapePath
	if videoTapePath == "" {
		videoTapePath = runPaths.VideoTapePath
	}
	detector, err := vision.New(ctx, modelCfg, videoTapePath)
	if err != nil {
		log.Printf("Failed to initialize detector: %v", err)
		return 1
	}
	defer detector.Close()
	log.Printf("Detector initialized (model: %s, %dx%d)", cfg.Vision.ModelPath, cfg.Vision.InputWidth, cfg.Vision.InputHeight)

	// The status API and MQTT publisher each want their own loop.Hooks,
	// but both need a *loop.Controller to read from, and the controller
	// needs its Hooks at construction time. A small fan-out multiplexer
	// breaks that cycle: the controller is built once against these
	// forwarding funcs, and observers register into the slices below
	// after they've been constructed from the controller.
	var onTickFns []func(landingmodel.StageName, landingmodel.Resolve, string, time.Duration)
	var onTransitionFns []func(landingmodel.StageName, landingmodel.StageName, string)
	var onFailureFns []func(landingmodel.StageName, error, int, string)

	hooks := loop.Hooks{
		OnTick: func(stage landingmodel.StageName, resolve landingmodel.Resolve, cycleID string, duration time.Duration) {
			for _, fn := range onTickFns {
				fn(stage, resolve, cycleID, duration)
			}
		},
		OnTransition: func(from, to landingmodel.StageName, cycleID string) {
			for _, fn := range onTransitionFns {
				fn(from, to, cycleID)
			}
		},
		OnFailure: func(stage landingmodel.StageName, err error, failures int, cycleID string) {
			for _, fn := range onFailureFns {
				fn(stage, err, failures, cycleID)
			}
		},
	}

	controller := loop.New(v, detector, cfg.Tunables, hooks)

	// Metrics are collected unconditionally, independent of whether the
	// status API or MQTT are turned on. They are scraped through /metrics,
	// which only the status API serves, and only with metrics_enabled set.
	metricsHooks := metrics.Hooks(controller.Machine())
	if metricsHooks.OnTick != nil {
		onTickFns = append(onTickFns, metricsHooks.OnTick)
	}
	if metricsHooks.OnTransition != nil {
		onTransitionFns = append(onTransitionFns, metricsHooks.OnTransition)
	}
	if metricsHooks.OnFailure != nil {
		onFailureFns = append(onFailureFns, metricsHooks.OnFailure)
	}

	var statusSrv *statusapi.Server
	if cfg.API.Enabled {
		statusSrv = statusapi.New(cfg.API, controller, version)
		h := statusSrv.Hooks()
		if h.OnTick != nil {
			onTickFns = append(onTickFns, h.OnTick)
		}
		if h.OnTransition != nil {
			onTransitionFns = append(onTransitionFns, h.OnTransition)
		}
		go func() {
			if err := statusSrv.Start(ctx); err != nil {
				log.Printf("Status API server error: %v", err)
			}
		}()
		defer statusSrv.Stop()
		log.Printf("Status API listening on %s", cfg.API.Address)
	}

	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPub = mqtt.New(cfg.MQTT)
		if err := mqttPub.Start(ctx); err != nil {
			log.Printf("MQTT publisher failed to connect, continuing without it: %v", err)
			mqttPub = nil
		} else {
			h := mqttPub.Hooks()
			if h.OnTransition != nil {
				onTransitionFns = append(onTransitionFns, h.OnTransition)
			}
			defer mqttPub.Stop()
			log.Printf("MQTT publisher connected (broker: %s)", cfg.MQTT.Broker)
		}
	}

	// The vehicle starts in whatever mode the pilot leaves it in; commanding
	// LOITER on connect gives the controller a known, safe starting mode
	// rather than assuming the ground crew already set one.
	if err := v.SetMode(vehicle.ModeLoiter); err != nil {
		log.Printf("Failed to set initial LOITER mode: %v", err)
	}

	log.Println("Landing controller running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- controller.Run(ctx)
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
		<-runErr
	case err := <-runErr:
		cancel()
		if err != nil {
			log.Printf("Control loop exited: %v", err)
			if mqttPub != nil {
				mqttPub.PublishAbort()
			}
			exitCode = 1
		}
	}

	log.Println("Shutdown complete")
	return exitCode
}
