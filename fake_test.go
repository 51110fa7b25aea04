package stratumd

import (
	"errors"
	"net"
	"time"
)

var errFake = errors.New("fake transport failure")

type reading struct {
	sec, frac uint32
	q         ClockQuality
}

// fakeClock returns queued readings in order and repeats the last one.
type fakeClock struct {
	readings []reading
	reads    int
}

func (c *fakeClock) Read() (uint32, uint32, ClockQuality) {
	i := c.reads
	if i >= len(c.readings) {
		i = len(c.readings) - 1
	}
	c.reads++
	r := c.readings[i]
	return r.sec, r.frac, r.q
}

type fakeTicker struct {
	now time.Duration
	// step is added after every call.
	step time.Duration
}

func (f *fakeTicker) Ticks() time.Duration {
	t := f.now
	f.now += f.step
	return t
}

type datagram struct {
	data []byte
	addr net.Addr
}

type fakeEndpoint struct {
	open    bool
	bindErr error
	sendErr error
	bound   string
	inbox   []datagram
	sent    []datagram
	closed  int
}

func (e *fakeEndpoint) Bind(addr string) error {
	if e.bindErr != nil {
		return e.bindErr
	}
	e.bound = addr
	return nil
}

func (e *fakeEndpoint) PollReceive(p []byte) (int, net.Addr, bool) {
	if len(e.inbox) == 0 {
		return 0, nil, false
	}
	d := e.inbox[0]
	e.inbox = e.inbox[1:]
	return copy(p, d.data), d.addr, true
}

func (e *fakeEndpoint) SendTo(p []byte, to net.Addr) error {
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent = append(e.sent, datagram{append([]byte(nil), p...), to})
	return nil
}

func (e *fakeEndpoint) IsOpen() bool { return e.open }

func (e *fakeEndpoint) LocalAddr() net.Addr {
	addr, _ := net.ResolveUDPAddr("udp4", e.bound)
	return addr
}

func (e *fakeEndpoint) Close() error {
	e.open = false
	e.closed++
	return nil
}

// fakeTransport fails while createErr is set and records every endpoint.
type fakeTransport struct {
	createErr error
	bindErr   error
	created   []*fakeEndpoint
}

func (t *fakeTransport) Create() (Endpoint, error) {
	if t.createErr != nil {
		return nil, t.createErr
	}
	ep := &fakeEndpoint{open: true, bindErr: t.bindErr}
	t.created = append(t.created, ep)
	return ep, nil
}

func (t *fakeTransport) last() *fakeEndpoint {
	return t.created[len(t.created)-1]
}

var clientAddr = &net.UDPAddr{IP: net.IPv4(203, 0, 113, 7), Port: 40123}

func requestBytes(mode uint8, transmit Timestamp) []byte {
	p := &Packet{Version: 4, Mode: mode, Transmit: transmit}
	return p.Encode()
}
