package stratumd

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

const (
	staUNSYNC = 0x0040 /* clock unsynchronized (rw) */
	timeERROR = 5      /* clock not synchronized */
)

// KernelClock reads CLOCK_REALTIME and trusts the kernel discipline state
// for quality. It fits hosts where gpsd/chrony already steer the clock.
type KernelClock struct {
	gps atomic.Bool
}

func NewKernelClock(gps bool) *KernelClock {
	k := &KernelClock{}
	k.gps.Store(gps)
	return k
}

func (k *KernelClock) SetGPSEnabled(v bool) { k.gps.Store(v) }

// SetManual is a no-op: the kernel status already says whether the clock
// was set.
func (k *KernelClock) SetManual(bool) {}

func (k *KernelClock) Read() (seconds, fraction uint32, q ClockQuality) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		logger.WithError(err).Error("clock_gettime failed")
		return 0, 0, Unsynchronized
	}
	sec, nsec := ts.Unix()
	t := TimestampOf(time.Unix(sec, nsec))
	return t.Seconds, t.Fraction, k.quality()
}

func (k *KernelClock) quality() ClockQuality {
	tmx := &unix.Timex{}
	rc, err := unix.Adjtimex(tmx)
	if err != nil || rc == timeERROR || tmx.Status&staUNSYNC != 0 {
		return Unsynchronized
	}
	if k.gps.Load() {
		return GpsLocked
	}
	return ManualSync
}
