// ABOUTME: NTP client with best-sample selection
// ABOUTME: UDP exchanges per server, four-timestamp offset/latency math, offset normalization
package ntp

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"time"
)

// Typed failures reported by the client.
var (
	ErrTimeout      = errors.New("ntp: attempt timed out")
	ErrNoServers    = errors.New("ntp: no server produced a usable sample")
	ErrInvalidReply = errors.New("ntp: invalid server reply")
)

const minAttempts = 3

// Sample is one candidate measurement from a server exchange.
type Sample struct {
	Server       string
	LatencyMs    int64   // round-trip latency, signed: may go negative under skew
	OffsetMs     float64 // clock offset, signed
	EpochS       int64   // resulting UTC epoch seconds
	FractionalMs float64 // sub-second part of the server instant
	ReceiptTick  int64   // local monotonic tick at packet receipt (ms)

	// Emergency marks a sample whose offset exceeded the configured ceiling:
	// the local clock is wildly wrong and the epoch must be applied directly,
	// skipping best-of selection.
	Emergency bool
}

// Client performs NTP exchanges against an ordered server list.
type Client struct {
	// Attempts per server; floored at 3.
	Attempts int
	// MaxOffsetMs is the emergency-step ceiling.
	MaxOffsetMs int64
	// Timeout bounds a single exchange. Defaults to 2s.
	Timeout time.Duration

	// Feed is called at every suspension point so the watchdog stays fed.
	Feed func(label string)
	// Now and Tick exist for tests; nil means real clocks.
	Now  func() time.Time
	Tick func() int64
}

func (c *Client) attempts() int {
	if c.Attempts < minAttempts {
		return minAttempts
	}
	return c.Attempts
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) tick() int64 {
	if c.Tick != nil {
		return c.Tick()
	}
	return time.Now().UnixMilli()
}

func (c *Client) feed(label string) {
	if c.Feed != nil {
		c.Feed(label)
	}
}

// Query walks the servers in order and returns the best sample from the first
// server that yields any, or an emergency sample as soon as one appears.
// servers maps hostname to a resolved "ip:port" address; hostnames missing
// from the map are skipped. On total failure the previous time base must be
// left untouched by the caller.
func (c *Client) Query(order []string, servers map[string]string) (Sample, error) {
	var lastErr error

	for _, host := range order {
		c.feed("ntp-server")

		addr, ok := servers[host]
		if !ok {
			continue
		}

		samples, err := c.queryServer(host, addr)
		if err != nil {
			lastErr = err
			continue
		}
		if len(samples) == 0 {
			continue
		}
		if samples[0].Emergency {
			return samples[0], nil
		}

		best := Select(samples)
		best.EpochS, best.OffsetMs = Normalize(best.EpochS, best.OffsetMs)
		log.Printf("[NTP] best sample from %s: latency=%dms offset=%.1fms",
			best.Server, best.LatencyMs, best.OffsetMs)
		return best, nil
	}

	if lastErr != nil {
		return Sample{}, fmt.Errorf("%w (last: %v)", ErrNoServers, lastErr)
	}
	return Sample{}, ErrNoServers
}

// queryServer runs the attempt loop against one server. An emergency sample
// short-circuits and is returned alone.
func (c *Client) queryServer(host, addr string) ([]Sample, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ntp: dialing %s: %w", host, err)
	}
	defer conn.Close()

	var samples []Sample
	var lastErr error

	for attempt := 0; attempt < c.attempts(); attempt++ {
		c.feed("ntp-attempt")

		s, err := c.exchange(conn, host)
		if err != nil {
			lastErr = err
			log.Printf("[NTP] %s attempt %d/%d failed: %v", host, attempt+1, c.attempts(), err)
			continue
		}
		if s.Emergency {
			return []Sample{s}, nil
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return samples, nil
}

// exchange performs one request/reply round and computes the sample.
func (c *Client) exchange(conn net.Conn, host string) (Sample, error) {
	buf := make([]byte, packetSize)

	t1 := c.now()
	buildRequest(buf, t1)

	if err := conn.SetDeadline(time.Now().Add(c.timeout())); err != nil {
		return Sample{}, fmt.Errorf("ntp: deadline: %w", err)
	}
	if _, err := conn.Write(buf); err != nil {
		return Sample{}, fmt.Errorf("ntp: send: %w", err)
	}

	resp := make([]byte, packetSize)
	n, err := conn.Read(resp)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Sample{}, fmt.Errorf("%w: %s", ErrTimeout, host)
		}
		return Sample{}, fmt.Errorf("ntp: recv: %w", err)
	}

	// t4: wall clock and monotonic tick captured at the same instant
	t4 := c.now()
	tick := c.tick()

	r, err := parseReply(resp[:n])
	if err != nil {
		return Sample{}, fmt.Errorf("%w: from %s", err, host)
	}

	// A reply must echo our transmit timestamp as its originate field.
	wantSecs, wantFrac := toNTPTime(t1)
	if r.originSecs != 0 && (r.originSecs != wantSecs || r.originFrac != wantFrac) {
		return Sample{}, fmt.Errorf("%w: originate mismatch from %s", ErrInvalidReply, host)
	}

	return c.computeSample(host, t1, t4, tick, r), nil
}

// computeSample applies the standard four-timestamp NTP formulas.
func (c *Client) computeSample(host string, t1, t4 time.Time, tick int64, r reply) Sample {
	t1ms := t1.UnixMilli()
	t4ms := t4.UnixMilli()
	t2ms := ntpToUnixMs(r.recvSecs, r.recvFrac)
	t3ms := ntpToUnixMs(r.xmitSecs, r.xmitFrac)

	latencyMs := (t4ms - t1ms) - (t3ms - t2ms)
	offsetMs := (float64(t2ms-t1ms) + float64(t3ms-t4ms)) / 2

	// The server transmit instant is the ground truth; add half the
	// round-trip to land on "now" at receipt.
	serverS := int64(r.xmitSecs) - ntpEpochOffset
	serverFracMs := math.Round(float64(r.xmitFrac) * 1000 / (1 << 32))
	epochMs := serverFracMs + float64(latencyMs)/2
	epochS := serverS + int64(math.Floor(epochMs/1000))
	fractMs := epochMs - math.Floor(epochMs/1000)*1000

	s := Sample{
		Server:       host,
		LatencyMs:    latencyMs,
		OffsetMs:     offsetMs,
		EpochS:       epochS,
		FractionalMs: fractMs,
		ReceiptTick:  tick,
	}

	if c.MaxOffsetMs > 0 && math.Abs(offsetMs) > float64(c.MaxOffsetMs) {
		// Local clock is wildly wrong (first boot): one-shot step, no
		// best-of filtering, a huge jump must not lose to latency.
		s.Emergency = true
	}
	return s
}

// Select returns the sample with the smallest |latency|; ties resolve to the
// first encountered.
func Select(samples []Sample) Sample {
	best := samples[0]
	for _, s := range samples[1:] {
		if abs64(s.LatencyMs) < abs64(best.LatencyMs) {
			best = s
		}
	}
	return best
}

// Normalize folds whole seconds of the offset into the epoch so that the
// remaining offset sits in [-500, 500] ms. The fold amount is exactly
// cancelled by the epoch adjustment.
func Normalize(epochS int64, offsetMs float64) (int64, float64) {
	if math.Abs(offsetMs) >= 1000 {
		deltaS := int64(math.Floor(offsetMs / 1000))
		epochS += deltaS
		offsetMs -= float64(deltaS) * 1000
	}
	if offsetMs > 500 {
		epochS++
		offsetMs -= 1000
	} else if offsetMs < -500 {
		epochS--
		offsetMs += 1000
	}
	return epochS, offsetMs
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
