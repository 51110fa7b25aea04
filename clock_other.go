//go:build !linux

package stratumd

import (
	"sync/atomic"
	"time"
)

// KernelClock falls back to the wall clock where adjtimex is missing; the
// kernel discipline state is unknown, so GPS means locked.
type KernelClock struct {
	gps atomic.Bool
}

func NewKernelClock(gps bool) *KernelClock {
	k := &KernelClock{}
	k.gps.Store(gps)
	return k
}

func (k *KernelClock) SetGPSEnabled(v bool) { k.gps.Store(v) }
func (k *KernelClock) SetManual(bool)       {}

func (k *KernelClock) Read() (seconds, fraction uint32, q ClockQuality) {
	t := TimestampOf(time.Now())
	if k.gps.Load() {
		return t.Seconds, t.Fraction, GpsLocked
	}
	return t.Seconds, t.Fraction, ManualSync
}
