package stratumd

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	nanoPerSec = 1e9

	// PacketSize is the only accepted datagram length.
	PacketSize = 48
)

const (
	ModeReserved uint8 = iota
	ModeSymmetricActive
	ModeSymmetricPassive
	ModeClient
	ModeServer
	ModeBroadcast
	ModeControlMessage
	ModeReservedPrivate
)

const (
	NoLeap uint8 = iota
	LeapIns
	LeapDel
	NotSync
)

const (
	LiVnModePos = iota
	StratumPos
	PollPos
	ClockPrecisionPos
)

const (
	RootDelayPos = iota*4 + 4
	RootDispersionPos
	ReferIDPos
)

const (
	ReferenceTimeStamp = iota*8 + 16
	OriginTimeStamp
	ReceiveTimeStamp
	TransmitTimeStamp
)

// ErrMalformedPacket is returned by Decode for any buffer that is not
// exactly PacketSize bytes long.
var ErrMalformedPacket = errors.New("malformed ntp packet")

var ntpEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Timestamp is a 64-bit NTP timestamp split into its two wire words.
type Timestamp struct {
	Seconds  uint32
	Fraction uint32
}

// TimestampOf converts t to NTP era 0.
func TimestampOf(t time.Time) Timestamp {
	nsec := uint64(t.Sub(ntpEpoch))
	sec := nsec / nanoPerSec
	frac := (nsec - sec*nanoPerSec) << 32 / nanoPerSec
	return Timestamp{Seconds: uint32(sec), Fraction: uint32(frac)}
}

func (t Timestamp) Time() time.Time {
	nsec := uint64(t.Fraction) * nanoPerSec >> 32
	return ntpEpoch.Add(time.Duration(t.Seconds)*time.Second + time.Duration(nsec))
}

// ShortTime is the 16.16 fixed point format of root delay and dispersion.
type ShortTime struct {
	Seconds  uint16
	Fraction uint16
}

// maxShortTime is the largest 16.16 value; longer durations saturate.
var maxShortTime = ShortTime{Seconds: 0xffff, Fraction: 0xffff}

func ShortTimeOf(d time.Duration) ShortTime {
	if d < 0 {
		d = 0
	}
	if d >= 1<<16*nanoPerSec {
		return maxShortTime
	}
	sec := d / nanoPerSec
	frac := (d - sec*nanoPerSec) << 16 / nanoPerSec
	return ShortTime{Seconds: uint16(sec), Fraction: uint16(frac)}
}

func (s ShortTime) Duration() time.Duration {
	return time.Duration(s.Seconds)*time.Second +
		time.Duration(uint64(s.Fraction)*nanoPerSec>>16)
}

func (s ShortTime) uint32() uint32 {
	return uint32(s.Seconds)<<16 | uint32(s.Fraction)
}

func shortTimeFrom(v uint32) ShortTime {
	return ShortTime{Seconds: uint16(v >> 16), Fraction: uint16(v)}
}

// Packet is the host side view of the 48 byte NTP header.
// Leap, Version and Mode only use their low 2, 3 and 3 bits.
type Packet struct {
	Leap    uint8
	Version uint8
	Mode    uint8

	Stratum   uint8
	Poll      int8
	Precision int8

	RootDelay      ShortTime
	RootDispersion ShortTime
	ReferenceID    [4]byte

	Reference Timestamp
	Originate Timestamp
	Receive   Timestamp
	Transmit  Timestamp
}

// Decode parses a datagram. Only the length is validated, the protocol has
// nothing else to check.
func Decode(m []byte) (p *Packet, err error) {
	if len(m) != PacketSize {
		return nil, ErrMalformedPacket
	}
	p = &Packet{
		Leap:      m[LiVnModePos] >> 6,
		Version:   (m[LiVnModePos] >> 3) & 0x07,
		Mode:      m[LiVnModePos] & 0x07,
		Stratum:   m[StratumPos],
		Poll:      int8(m[PollPos]),
		Precision: int8(m[ClockPrecisionPos]),

		RootDelay:      shortTimeFrom(getUint32(m, RootDelayPos)),
		RootDispersion: shortTimeFrom(getUint32(m, RootDispersionPos)),

		Reference: getTimestamp(m, ReferenceTimeStamp),
		Originate: getTimestamp(m, OriginTimeStamp),
		Receive:   getTimestamp(m, ReceiveTimeStamp),
		Transmit:  getTimestamp(m, TransmitTimeStamp),
	}
	copy(p.ReferenceID[:], m[ReferIDPos:ReferIDPos+4])
	return
}

// Encode returns a freshly allocated wire copy of p.
func (p *Packet) Encode() []byte {
	m := make([]byte, PacketSize)
	p.EncodeTo(m)
	return m
}

// EncodeTo writes p into m, which must hold at least PacketSize bytes.
func (p *Packet) EncodeTo(m []byte) {
	_ = m[PacketSize-1]
	m[LiVnModePos] = 0
	SetLi(m, p.Leap)
	SetVersion(m, p.Version)
	SetMode(m, p.Mode)
	m[StratumPos] = p.Stratum
	SetInt8(m, PollPos, p.Poll)
	SetInt8(m, ClockPrecisionPos, p.Precision)

	putUint32(m, RootDelayPos, p.RootDelay.uint32())
	putUint32(m, RootDispersionPos, p.RootDispersion.uint32())
	copy(m[ReferIDPos:ReferIDPos+4], p.ReferenceID[:])

	putTimestamp(m, ReferenceTimeStamp, p.Reference)
	putTimestamp(m, OriginTimeStamp, p.Originate)
	putTimestamp(m, ReceiveTimeStamp, p.Receive)
	putTimestamp(m, TransmitTimeStamp, p.Transmit)
}

func SetLi(m []byte, li uint8) {
	m[0] = (m[0] & 0x3f) | (li&0x03)<<6
}

func SetMode(m []byte, mode uint8) {
	m[0] = (m[0] & 0xf8) | mode&0x07
}

func GetMode(m []byte) uint8 {
	return m[0] &^ 0xf8
}

func SetVersion(m []byte, v uint8) {
	m[0] = (m[0] & 0xc7) | (v&0x07)<<3
}

func SetInt8(m []byte, index int, value int8) {
	m[index] = byte(value)
}

// swap32 reverses the byte order of x: 0<->3, 1<->2.
func swap32(x uint32) uint32 {
	return x>>24 | (x>>8)&0xff00 | (x<<8)&0xff0000 | x<<24
}

// Wire words are big endian. They are loaded in little endian order and
// reversed, which gives the same result on any host.
func getUint32(m []byte, index int) uint32 {
	return swap32(binary.LittleEndian.Uint32(m[index:]))
}

func putUint32(m []byte, index int, value uint32) {
	binary.LittleEndian.PutUint32(m[index:], swap32(value))
}

func getTimestamp(m []byte, index int) Timestamp {
	return Timestamp{
		Seconds:  getUint32(m, index),
		Fraction: getUint32(m, index+4),
	}
}

func putTimestamp(m []byte, index int, t Timestamp) {
	putUint32(m, index, t.Seconds)
	putUint32(m, index+4, t.Fraction)
}
