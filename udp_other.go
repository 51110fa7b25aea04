//go:build !unix

package stratumd

import (
	"errors"
	"net"
	"time"
)

// UDPTransport uses the net package where raw descriptors are not
// available. Creating the socket is deferred until Bind.
type UDPTransport struct{}

func NewUDPTransport() *UDPTransport {
	return &UDPTransport{}
}

func (t *UDPTransport) Create() (Endpoint, error) {
	return &udpEndpoint{open: true}, nil
}

type udpEndpoint struct {
	conn *net.UDPConn
	open bool
}

func (e *udpEndpoint) Bind(addr string) (err error) {
	if !e.open {
		return errEndpointClosed
	}
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return
	}
	e.conn, err = net.ListenUDP("udp4", ua)
	return
}

func (e *udpEndpoint) PollReceive(p []byte) (n int, from net.Addr, ok bool) {
	if e.conn == nil {
		return
	}
	e.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, ua, err := e.conn.ReadFromUDP(p)
	if err != nil {
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			logger.WithError(err).Debug("read udp")
		}
		return 0, nil, false
	}
	return n, ua, true
}

func (e *udpEndpoint) SendTo(p []byte, to net.Addr) (err error) {
	if e.conn == nil {
		return errEndpointClosed
	}
	_, err = e.conn.WriteTo(p, to)
	return
}

func (e *udpEndpoint) IsOpen() bool {
	return e.open
}

func (e *udpEndpoint) LocalAddr() net.Addr {
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr()
}

func (e *udpEndpoint) Close() (err error) {
	e.open = false
	if e.conn != nil {
		err = e.conn.Close()
		e.conn = nil
	}
	return
}
