package stratumd

import (
	"net"
	"time"
)

// secondLimitter answers a source at most once per interval. Tick values
// come from the responder's monotonic Ticker.
type secondLimitter struct {
	interval time.Duration
	seen     *lru
}

func newLimitter(interval int, size int) *secondLimitter {
	return &secondLimitter{
		interval: time.Duration(interval) * time.Second,
		seen:     newLRU(size),
	}
}

func (s *secondLimitter) allow(ip net.IP, now time.Duration) bool {
	if s == nil {
		return true
	}
	if last, ok := s.seen.Get(ip); ok && now-last < s.interval {
		return false
	}
	s.seen.Add(ip, now)
	return true
}
