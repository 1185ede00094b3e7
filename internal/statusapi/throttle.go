package statusapi

import (
	"sync"
	"time"
)

// throttler gates how often status snapshots get pushed to WebSocket
// clients, independent of the control loop's own tick rate. The teacher's
// Throttler keyed its last-publish time per device; there's one vehicle
// here, so it collapses to a single interval.
type throttler struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newThrottler(rateHz float64) *throttler {
	if rateHz <= 0 {
		rateHz = 1.0
	}
	return &throttler{interval: time.Duration(float64(time.Second) / rateHz)}
}

// Allow reports whether enough time has passed since the last publish,
// and if so, marks now as the new last-publish time.
func (t *throttler) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.last) >= t.interval {
		t.last = now
		return true
	}
	return false
}
