package metrics

import (
	"time"

	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/loop"
	"github.com/open-uav/precision-lander/internal/stages"
)

// Hooks returns the loop.Hooks that keep every control-loop metric
// current. machine is the same *stages.Machine the Controller driving
// these hooks owns, read for state the tick/transition callbacks alone
// don't carry: conductor cache size and optimism.
func Hooks(machine *stages.Machine) loop.Hooks {
	m := Get()
	return loop.Hooks{
		OnTick: func(stage landingmodel.StageName, resolve landingmodel.Resolve, cycleID string, duration time.Duration) {
			m.TicksTotal.WithLabelValues(string(stage)).Inc()
			m.TickDuration.Observe(duration.Seconds())

			for _, name := range landingmodel.AllStageNames {
				if name == stage {
					m.ActiveStage.WithLabelValues(string(name)).Set(1)
				} else {
					m.ActiveStage.WithLabelValues(string(name)).Set(0)
				}
			}

			for _, d := range resolve.Detections {
				m.DetectionsTotal.WithLabelValues(string(d.PadType)).Inc()
			}

			m.ConductorCacheSize.Set(float64(machine.ConductorCacheSize()))
			if machine.ConductorOptimistic() {
				m.ConductorOptimistic.Set(1)
			} else {
				m.ConductorOptimistic.Set(0)
			}
		},
		OnTransition: func(from, to landingmodel.StageName, cycleID string) {
			m.StageTransitions.WithLabelValues(string(from), string(to)).Inc()
			if from == landingmodel.StageTouchdown && to == landingmodel.StageIdle {
				m.TouchdownsTotal.Inc()
			}
		},
		OnFailure: func(stage landingmodel.StageName, err error, failures int, cycleID string) {
			m.TickFailures.WithLabelValues(string(stage)).Inc()
		},
	}
}
