package stratumd

import (
	"sync/atomic"
	"time"
)

// ClockQuality is the synchronization state reported with every reading.
type ClockQuality uint8

const (
	Unsynchronized ClockQuality = iota
	GpsLocked
	ManualSync
)

func (q ClockQuality) String() string {
	switch q {
	case GpsLocked:
		return "gps-locked"
	case ManualSync:
		return "manual"
	case Unsynchronized:
		return "unsynchronized"
	default:
		return "unknown"
	}
}

// LeapFor maps a quality to the leap indicator put on the wire. No leap
// second schedule is known, so only NoLeap and NotSync are produced.
func LeapFor(q ClockQuality) uint8 {
	switch q {
	case GpsLocked, ManualSync:
		return NoLeap
	default:
		return NotSync
	}
}

// ClockSource supplies the current NTP time of the reference clock.
type ClockSource interface {
	Read() (seconds, fraction uint32, q ClockQuality)
}

// SyncFlags is implemented by clocks whose quality depends on the gps and
// manual settings. The responder pushes them on every config change.
type SyncFlags interface {
	SetGPSEnabled(bool)
	SetManual(bool)
}

// Ticker is a monotonic counter used only for local intervals.
type Ticker interface {
	Ticks() time.Duration
}

type MonotonicTicker struct {
	start time.Time
}

func NewMonotonicTicker() *MonotonicTicker {
	return &MonotonicTicker{start: time.Now()}
}

func (m *MonotonicTicker) Ticks() time.Duration {
	return time.Since(m.start)
}

// DeviceClock is a clock disciplined by an attached GPS receiver or set by
// hand. The flags are updated from other goroutines (GPS driver, config
// reload) while the responder reads them.
type DeviceClock struct {
	now       func() time.Time
	gps       atomic.Bool
	gpsFailed atomic.Bool
	manual    atomic.Bool
}

func NewDeviceClock(now func() time.Time, gps, manual bool) *DeviceClock {
	if now == nil {
		now = time.Now
	}
	c := &DeviceClock{now: now}
	c.gps.Store(gps)
	c.manual.Store(manual)
	return c
}

func (c *DeviceClock) SetGPSEnabled(v bool) { c.gps.Store(v) }
func (c *DeviceClock) SetManual(v bool)     { c.manual.Store(v) }

// SetGPSFailed records the result of the last receiver sync. The GPS driver
// owning the receiver calls it after every fix attempt; with no driver the
// flag stays false and an enabled GPS counts as locked.
func (c *DeviceClock) SetGPSFailed(v bool) { c.gpsFailed.Store(v) }

func (c *DeviceClock) Quality() ClockQuality {
	if c.gps.Load() && !c.gpsFailed.Load() {
		return GpsLocked
	}
	if c.manual.Load() {
		return ManualSync
	}
	return Unsynchronized
}

func (c *DeviceClock) Read() (seconds, fraction uint32, q ClockQuality) {
	ts := TimestampOf(c.now())
	return ts.Seconds, ts.Fraction, c.Quality()
}

var (
	RefGPS   = [4]byte{'G', 'P', 'S', 0}
	RefLocal = [4]byte{'L', 'O', 'C', 'L'}
)
