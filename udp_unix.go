//go:build unix

package stratumd

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// UDPTransport creates non-blocking IPv4 UDP sockets.
type UDPTransport struct{}

func NewUDPTransport() *UDPTransport {
	return &UDPTransport{}
}

func (t *UDPTransport) Create() (Endpoint, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return &udpEndpoint{fd: fd}, nil
}

type udpEndpoint struct {
	fd    int
	local *net.UDPAddr
}

func (e *udpEndpoint) Bind(addr string) (err error) {
	if e.fd < 0 {
		return errEndpointClosed
	}
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return
	}
	sa := &unix.SockaddrInet4{Port: ua.Port}
	if ip4 := ua.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err = unix.Bind(e.fd, sa); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	e.local = ua
	if bound, err := unix.Getsockname(e.fd); err == nil {
		if in4, ok := bound.(*unix.SockaddrInet4); ok {
			e.local = &net.UDPAddr{IP: net.IP(append([]byte(nil), in4.Addr[:]...)), Port: in4.Port}
		}
	}
	return nil
}

func (e *udpEndpoint) PollReceive(p []byte) (n int, from net.Addr, ok bool) {
	if e.fd < 0 {
		return
	}
	n, sa, err := unix.Recvfrom(e.fd, p, 0)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EWOULDBLOCK) {
			logger.WithError(err).Debug("recvfrom")
		}
		return 0, nil, false
	}
	in4, isIn4 := sa.(*unix.SockaddrInet4)
	if !isIn4 {
		return 0, nil, false
	}
	from = &net.UDPAddr{IP: net.IP(append([]byte(nil), in4.Addr[:]...)), Port: in4.Port}
	return n, from, true
}

func (e *udpEndpoint) SendTo(p []byte, to net.Addr) error {
	if e.fd < 0 {
		return errEndpointClosed
	}
	ua, ok := to.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("unsupported address %T", to)
	}
	ip4 := ua.IP.To4()
	if ip4 == nil {
		return fmt.Errorf("not an ipv4 address: %s", ua)
	}
	sa := &unix.SockaddrInet4{Port: ua.Port}
	copy(sa.Addr[:], ip4)
	return unix.Sendto(e.fd, p, 0, sa)
}

// IsOpen also asks the kernel, so a descriptor closed behind our back is
// noticed.
func (e *udpEndpoint) IsOpen() bool {
	if e.fd < 0 {
		return false
	}
	_, err := unix.GetsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_TYPE)
	return err == nil
}

func (e *udpEndpoint) LocalAddr() net.Addr {
	if e.local == nil {
		return nil
	}
	return e.local
}

func (e *udpEndpoint) Close() (err error) {
	if e.fd < 0 {
		return nil
	}
	err = unix.Close(e.fd)
	e.fd = -1
	return
}
