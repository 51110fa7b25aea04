package stratumd

import (
	"errors"
	"net"
)

var errEndpointClosed = errors.New("endpoint closed")

// Transport hands out datagram endpoints. Create must not block.
type Transport interface {
	Create() (Endpoint, error)
}

// Endpoint is a single datagram socket driven by polling. None of its
// methods block.
type Endpoint interface {
	// Bind attaches the endpoint to addr ("host:port"). An empty host
	// accepts datagrams from any source.
	Bind(addr string) error
	// PollReceive copies one pending datagram into p. ok is false when
	// nothing is waiting.
	PollReceive(p []byte) (n int, from net.Addr, ok bool)
	SendTo(p []byte, to net.Addr) error
	IsOpen() bool
	LocalAddr() net.Addr
	Close() error
}
