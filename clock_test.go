package stratumd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeapFor(t *testing.T) {
	assert.Equal(t, NoLeap, LeapFor(GpsLocked))
	assert.Equal(t, NoLeap, LeapFor(ManualSync))
	assert.Equal(t, NotSync, LeapFor(Unsynchronized))
	assert.Equal(t, NotSync, LeapFor(ClockQuality(42)))
}

func TestDeviceClockQuality(t *testing.T) {
	gold := []struct {
		gps, failed, manual bool
		q                   ClockQuality
	}{
		{true, false, false, GpsLocked},
		{true, false, true, GpsLocked},
		{true, true, true, ManualSync},
		{true, true, false, Unsynchronized},
		{false, false, true, ManualSync},
		{false, false, false, Unsynchronized},
	}
	for _, g := range gold {
		c := NewDeviceClock(nil, g.gps, g.manual)
		c.SetGPSFailed(g.failed)
		assert.Equal(t, g.q, c.Quality(), "%+v", g)
	}
}

func TestDeviceClockRead(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	c := NewDeviceClock(func() time.Time { return now }, true, false)
	sec, frac, q := c.Read()
	want := TimestampOf(now)
	assert.Equal(t, want.Seconds, sec)
	assert.Equal(t, want.Fraction, frac)
	assert.Equal(t, GpsLocked, q)

	c.SetGPSEnabled(false)
	_, _, q = c.Read()
	assert.Equal(t, Unsynchronized, q)
	c.SetManual(true)
	_, _, q = c.Read()
	assert.Equal(t, ManualSync, q)
}

func TestClockQualityString(t *testing.T) {
	assert.Equal(t, "gps-locked", GpsLocked.String())
	assert.Equal(t, "manual", ManualSync.String())
	assert.Equal(t, "unsynchronized", Unsynchronized.String())
}

func TestMonotonicTicker(t *testing.T) {
	tk := NewMonotonicTicker()
	a := tk.Ticks()
	time.Sleep(time.Millisecond)
	if b := tk.Ticks(); b <= a {
		t.Errorf("ticks went backwards %s <= %s", b, a)
	}
}

func TestKernelClockRead(t *testing.T) {
	sec, _, q := NewKernelClock(true).Read()
	now := TimestampOf(time.Now()).Seconds
	if sec+5 < now || sec > now+5 {
		t.Errorf("kernel clock %d far from %d", sec, now)
	}
	switch q {
	case GpsLocked, Unsynchronized:
	default:
		t.Errorf("unexpected quality %s", q)
	}
}
