package game

import (
	"sync"
	"time"

	"github.com/cb-v4s/ghoulies/internal/iso"
)

// moveDebouncer rate-limits outbound position updates. Every Schedule call
// records the newest target and rearms the timer; only the target that
// survives a quiet window is sent. Drag-style input therefore costs one
// network send, carrying the final tile.
type moveDebouncer struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
	latest iso.Tile
	send   func(iso.Tile)
}

func newMoveDebouncer(window time.Duration, send func(iso.Tile)) *moveDebouncer {
	return &moveDebouncer{window: window, send: send}
}

// Schedule records t as the pending movement target. An earlier pending
// target that has not fired yet is superseded, never queued.
func (d *moveDebouncer) Schedule(t iso.Tile) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = t
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *moveDebouncer) fire() {
	d.mu.Lock()
	if d.timer == nil {
		// Cancelled between the timer firing and us taking the lock.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	t := d.latest
	d.mu.Unlock()

	d.send(t)
}

// Cancel drops any pending target. Safe to call repeatedly.
func (d *moveDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
