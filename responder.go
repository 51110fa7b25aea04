package stratumd

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	replyStratum   = 1
	replyVersion   = 3
	replyPoll      = 6
	replyPrecision = -9

	// rxBufferSize lets oversized datagrams show their real length.
	rxBufferSize = 1500
)

// rootDispersion is the RTC aging error budget, 0x11/16%100 fractional
// units in the device firmware. It does not depend on runtime state.
var rootDispersion = ShortTime{Seconds: 0, Fraction: 0x11 / 16 % 100}

// request is the state of one exchange, from arrival to reply.
type request struct {
	packet  *Packet
	from    net.Addr
	receive Timestamp
	arrival time.Duration
}

// Responder answers NTP requests on a single endpoint. It is driven by
// repeated calls to Step and must be owned by one goroutine.
type Responder struct {
	// Ticker measures local processing delay. Defaults to a
	// MonotonicTicker.
	Ticker Ticker
	// Stats is optional.
	Stats *Statistic

	transport Transport
	clock     ClockSource
	config    *ConfigStore

	applied *Config
	refID   [4]byte
	acl     *dropTable
	limiter *secondLimitter

	state     State
	ep        Endpoint
	boundAddr string
	buf       []byte
	candidate *request
	pending   *request
	lastSend  time.Duration
}

func NewResponder(cfg *ConfigStore, t Transport, clock ClockSource) *Responder {
	return &Responder{
		Ticker:    NewMonotonicTicker(),
		transport: t,
		clock:     clock,
		config:    cfg,
		refID:     RefGPS,
		state:     CreatingSocket,
		buf:       make([]byte, rxBufferSize),
	}
}

func (r *Responder) State() State {
	return r.state
}

// LocalAddr is the bound address, nil until the endpoint is bound.
func (r *Responder) LocalAddr() net.Addr {
	if r.ep == nil || r.state < Listening {
		return nil
	}
	return r.ep.LocalAddr()
}

// Restart abandons all work and starts over from CreatingSocket.
func (r *Responder) Restart() {
	r.apply(effRestart)
	r.setState(CreatingSocket)
}

// Close releases the endpoint. A later Step starts from CreatingSocket.
func (r *Responder) Close() error {
	r.setState(CreatingSocket)
	r.pending = nil
	r.candidate = nil
	if r.ep == nil {
		return nil
	}
	err := r.ep.Close()
	r.ep = nil
	return err
}

// Step performs the work of the current state once and never blocks.
func (r *Responder) Step() State {
	cfg := r.config.Load()
	if cfg != r.applied {
		r.applyConfig(cfg)
	}

	ev := r.poll(cfg)
	s, eff := next(r.state, ev)
	r.apply(eff)
	r.setState(s)
	return s
}

func (r *Responder) setState(s State) {
	if s == r.state {
		return
	}
	logger.WithFields(logrus.Fields{
		"from": r.state,
		"to":   s,
	}).Debug("state change")
	r.state = s
	r.Stats.state(s)
}

func (r *Responder) applyConfig(cfg *Config) {
	r.applied = cfg
	if id, err := parseRefID(cfg.RefID); err == nil {
		r.refID = id
	} else {
		logger.WithError(err).Warnf("keep refid %q", r.refID[:])
	}

	acl, err := newDropTable(cfg.DropCIDR)
	if err != nil {
		logger.WithError(err).Warn("drop table disabled")
	}
	r.acl = acl

	r.limiter = nil
	if cfg.RateSec > 0 {
		r.limiter = newLimitter(cfg.RateSec, cfg.CacheSize)
	}

	if f, ok := r.clock.(SyncFlags); ok {
		f.SetGPSEnabled(cfg.GPS)
		f.SetManual(cfg.Manual)
	}
}

// poll does the I/O of the current state and reports what happened.
func (r *Responder) poll(cfg *Config) event {
	switch r.state {
	case CreatingSocket:
		return r.create(cfg)
	case Binding:
		return r.bind(cfg)
	case Listening:
		return r.listen(cfg)
	case Answering:
		return r.answer()
	}
	return evIdle
}

func (r *Responder) create(cfg *Config) event {
	ep, err := r.transport.Create()
	if err != nil || ep == nil {
		logger.WithError(err).Debug("create endpoint")
		return evCreateFailed
	}
	r.ep = ep
	r.boundAddr = cfg.Listen
	return evCreated
}

func (r *Responder) bind(cfg *Config) event {
	if !r.ep.IsOpen() {
		return evClosed
	}
	if cfg.Listen != r.boundAddr {
		return evAddrChanged
	}
	if err := r.ep.Bind(r.boundAddr); err != nil {
		logger.WithError(err).Warnf("bind %s", r.boundAddr)
		return evBindFailed
	}
	logger.Infof("start listen:%s", r.boundAddr)
	return evBound
}

func (r *Responder) listen(cfg *Config) event {
	if !r.ep.IsOpen() {
		return evClosed
	}
	if cfg.Listen != r.boundAddr {
		logger.Infof("listen address changed %s -> %s", r.boundAddr, cfg.Listen)
		return evAddrChanged
	}

	n, from, ok := r.ep.PollReceive(r.buf)
	if !ok {
		return evIdle
	}
	r.Stats.request()

	pkt, err := Decode(r.buf[:n])
	if err != nil {
		logger.Debugf("%s get small packet %d", from, n)
		r.Stats.drop(dropSmall)
		return evMalformed
	}

	var ip net.IP
	if ua, ok := from.(*net.UDPAddr); ok {
		ip = ua.IP
	}
	if ip != nil && r.acl.contains(ip) {
		logger.Debugf("%s in drop table", from)
		r.Stats.drop(dropACL)
		return evDropped
	}
	arrival := r.Ticker.Ticks()
	if ip != nil && !r.limiter.allow(ip, arrival) {
		logger.Debugf("get limitted ip %s", from)
		r.Stats.drop(dropRate)
		return evDropped
	}

	sec, frac, _ := r.clock.Read()
	r.candidate = &request{
		packet:  pkt,
		from:    from,
		receive: Timestamp{Seconds: sec, Fraction: frac},
		arrival: arrival,
	}
	return evRequest
}

func (r *Responder) answer() event {
	if !r.ep.IsOpen() {
		return evClosed
	}
	reply := buildReply(r.pending, r.refID, r.clock, r.Ticker)
	if err := r.ep.SendTo(reply.Encode(), r.pending.from); err != nil {
		logger.WithError(err).Warnf("%s write failed", r.pending.from)
		r.Stats.sendFailed()
		return evSendFailed
	}
	r.Stats.reply(r.pending.from, reply)
	return evSent
}

func (r *Responder) apply(eff effect) {
	switch eff {
	case effRestart:
		if r.ep != nil {
			r.ep.Close()
		}
		r.ep = nil
		r.pending = nil
		r.candidate = nil
		r.Stats.restart()
		logger.Warnf("restart responder in %s", r.state)
	case effAccept:
		r.pending = r.candidate
		r.candidate = nil
	case effSent:
		r.lastSend = r.Ticker.Ticks()
		logger.Debugf("answered %s in %s", r.pending.from, r.lastSend-r.pending.arrival)
		r.pending = nil
	}
}

// buildReply assembles the server packet for req. The transmit timestamp
// is read last, and its quality is the one put into the leap indicator.
func buildReply(req *request, refID [4]byte, clock ClockSource, ticker Ticker) *Packet {
	p := &Packet{
		Version:     replyVersion,
		Mode:        ModeServer,
		Stratum:     replyStratum,
		Poll:        replyPoll,
		Precision:   replyPrecision,
		ReferenceID: refID,
	}

	sec, frac, _ := clock.Read()
	p.Reference = Timestamp{Seconds: sec, Fraction: frac}
	p.Originate = req.packet.Transmit
	p.Receive = req.receive

	sec, frac, q := clock.Read()
	p.Transmit = Timestamp{Seconds: sec, Fraction: frac}
	p.Leap = LeapFor(q)

	p.RootDelay = ShortTimeOf(ticker.Ticks() - req.arrival)
	p.RootDispersion = rootDispersion
	return p
}

// Serve calls Step until ctx is done. A request is answered and the next
// datagram polled without waiting; every other step waits poll_interval.
func (r *Responder) Serve(ctx context.Context) error {
	defer r.Close()

	interval := r.config.Load().PollInterval
	timer := time.NewTicker(interval)
	defer timer.Stop()

	for {
		before := r.state
		after := r.Step()
		if err := ctx.Err(); err != nil {
			return err
		}
		if after != before && (after == Answering || before == Answering) {
			continue
		}

		if iv := r.config.Load().PollInterval; iv != interval {
			interval = iv
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
