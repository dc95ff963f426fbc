// ABOUTME: NTP wire format helpers
// ABOUTME: 48-byte client packet build/parse and 1900-epoch timestamp conversion
package ntp

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	packetSize = 48

	// LI=0, VN=3, Mode=3 (client)
	clientModeByte = 0x1B

	// Seconds between the NTP epoch (1900-01-01) and the Unix epoch.
	ntpEpochOffset = 2208988800
)

// toNTPTime converts a wall-clock instant into NTP seconds plus 32-bit
// binary fraction.
func toNTPTime(t time.Time) (secs, frac uint32) {
	nanos := t.UnixNano()
	s := nanos / 1e9
	n := nanos % 1e9
	secs = uint32(s + ntpEpochOffset)
	frac = uint32((n << 32) / 1e9)
	return secs, frac
}

// ntpToUnixMs converts an NTP timestamp to total Unix milliseconds,
// rounding the fraction to the nearest millisecond.
func ntpToUnixMs(secs, frac uint32) int64 {
	ms := int64(math.Round(float64(frac) * 1000 / (1 << 32)))
	return (int64(secs)-ntpEpochOffset)*1000 + ms
}

// buildRequest fills a client-mode packet carrying t1 in the transmit field.
func buildRequest(buf []byte, t1 time.Time) {
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = clientModeByte
	secs, frac := toNTPTime(t1)
	binary.BigEndian.PutUint32(buf[40:44], secs)
	binary.BigEndian.PutUint32(buf[44:48], frac)
}

// reply is the subset of a server packet the client cares about.
type reply struct {
	stratum    uint8
	mode       uint8
	originSecs uint32
	originFrac uint32
	recvSecs   uint32 // t2
	recvFrac   uint32
	xmitSecs   uint32 // t3
	xmitFrac   uint32
}

// parseReply validates length, mode and stratum of a server packet.
func parseReply(buf []byte) (reply, error) {
	var r reply
	if len(buf) < packetSize {
		return r, ErrInvalidReply
	}

	r.mode = buf[0] & 0x07
	if r.mode != 4 && r.mode != 2 { // server or symmetric passive
		return r, ErrInvalidReply
	}

	r.stratum = buf[1]
	if r.stratum == 0 { // kiss-of-death
		return r, ErrInvalidReply
	}

	r.originSecs = binary.BigEndian.Uint32(buf[24:28])
	r.originFrac = binary.BigEndian.Uint32(buf[28:32])
	r.recvSecs = binary.BigEndian.Uint32(buf[32:36])
	r.recvFrac = binary.BigEndian.Uint32(buf[36:40])
	r.xmitSecs = binary.BigEndian.Uint32(buf[40:44])
	r.xmitFrac = binary.BigEndian.Uint32(buf[44:48])

	if r.xmitSecs == 0 && r.xmitFrac == 0 {
		return r, ErrInvalidReply
	}
	return r, nil
}
