//go:build unix

package stratumd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPEndpointLifecycle(t *testing.T) {
	ep, err := NewUDPTransport().Create()
	require.NoError(t, err)
	assert.True(t, ep.IsOpen())
	assert.Nil(t, ep.LocalAddr())

	require.NoError(t, ep.Bind("127.0.0.1:0"))
	la, ok := ep.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)
	assert.NotZero(t, la.Port)

	buf := make([]byte, rxBufferSize)
	_, _, ok = ep.PollReceive(buf)
	assert.False(t, ok, "empty socket must not block or report data")

	c, err := net.DialUDP("udp4", nil, la)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(make([]byte, 47))
	require.NoError(t, err)

	var n int
	var from net.Addr
	require.Eventually(t, func() bool {
		n, from, ok = ep.PollReceive(buf)
		return ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, 47, n)
	assert.Equal(t, c.LocalAddr().String(), from.String())

	require.NoError(t, ep.SendTo([]byte("pong"), from))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	got := make([]byte, 16)
	n, err = c.Read(got)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got[:n]))

	require.NoError(t, ep.Close())
	assert.False(t, ep.IsOpen())
	assert.ErrorIs(t, ep.SendTo([]byte("x"), from), errEndpointClosed)
	assert.ErrorIs(t, ep.Bind("127.0.0.1:0"), errEndpointClosed)
}

func TestUDPEndpointPortInUse(t *testing.T) {
	tr := NewUDPTransport()
	first, err := tr.Create()
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Bind("127.0.0.1:0"))

	second, err := tr.Create()
	require.NoError(t, err)
	defer second.Close()
	assert.Error(t, second.Bind(first.LocalAddr().String()), "a second responder must not share the port")
}

func TestUDPEndToEnd(t *testing.T) {
	store := NewConfigStore(&Config{Listen: "127.0.0.1:0", GPS: true, PollInterval: time.Millisecond})
	r := NewResponder(store, NewUDPTransport(), NewDeviceClock(time.Now, true, false))
	for i := 0; i < 10 && r.State() != Listening; i++ {
		r.Step()
	}
	require.Equal(t, Listening, r.State())
	addr := r.LocalAddr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	resp, err := ntp.QueryWithOptions(addr, ntp.QueryOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), resp.Stratum)
	assert.Equal(t, uint32(0x47505300), resp.ReferenceID)
	assert.Equal(t, ntp.LeapNoWarning, resp.Leap)
	assert.Less(t, absDuration(resp.ClockOffset), time.Second)
	assert.Less(t, resp.RootDelay, time.Second)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
