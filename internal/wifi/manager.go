// ABOUTME: WiFi connectivity manager with credential priority and open fallback
// ABOUTME: Bounded association polling, tx-power tiers, blocking and single-pass modes
package wifi

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/InkClock-Project/inkclock-go/internal/config"
)

// Typed connectivity failures.
var (
	ErrAssociationFailed = errors.New("wifi: association failed")
	ErrNoCredentials     = errors.New("wifi: no credentials configured")
)

// Network is one scan result.
type Network struct {
	SSID string
	RSSI int // dBm, negative
	Open bool
}

// Radio is the capability set of the wireless hardware.
type Radio interface {
	Reset() error
	Connect(ssid, password string) error // starts association, non-blocking
	IsConnected() bool
	Disconnect() error
	RSSI() (int, error)
	SetTxPower(dbm int) error
	MaxTxPower() int
	Scan() ([]Network, error)
}

const (
	assocTimeout  = 10 * time.Second
	assocPoll     = 20 * time.Millisecond
	blockingTries = 5
	openFallbackN = 3
	powerRounds   = 4
)

// Manager walks the credential list and keeps the link usable at the lowest
// workable transmit power.
type Manager struct {
	radio Radio
	creds []config.Credential
	open  bool // open-network fallback permitted

	feed    func(label string)
	sleep   func(time.Duration)
	timeout time.Duration

	connectedSSID string
}

// NewManager builds a Manager. creds must already be sorted priority
// ascending; feed may be nil.
func NewManager(radio Radio, creds []config.Credential, openFallback bool, feed func(string)) *Manager {
	if feed == nil {
		feed = func(string) {}
	}
	return &Manager{
		radio:   radio,
		creds:   creds,
		open:    openFallback,
		feed:    feed,
		sleep:   time.Sleep,
		timeout: assocTimeout,
	}
}

// ConnectedSSID reports the network joined by the last successful Connect.
func (m *Manager) ConnectedSSID() string { return m.connectedSSID }

// IsUp reports whether the radio currently holds an association.
func (m *Manager) IsUp() bool { return m.radio.IsConnected() }

// Connect brings the link up. In blocking mode the whole credential and
// open-network pass repeats up to 5 times, with max transmit power raised
// before the second pass. In non-blocking mode exactly one pass runs and
// failure comes back without touching power, so the caller's loop is never
// starved.
func (m *Manager) Connect(blocking bool) (string, error) {
	passes := 1
	if blocking {
		passes = blockingTries
	}

	var lastErr error
	for p := 0; p < passes; p++ {
		m.feed("wifi-pass")
		if blocking && p == 1 {
			// A failed first pass may be a range problem. Go loud.
			if err := m.radio.SetTxPower(m.radio.MaxTxPower()); err != nil {
				log.Printf("[WIFI] raise tx power: %v", err)
			}
		}

		ssid, err := m.onePass()
		if err == nil {
			m.connectedSSID = ssid
			m.optimizeTxPower()
			return ssid, nil
		}
		lastErr = err
		log.Printf("[WIFI] pass %d/%d failed: %v", p+1, passes, err)
	}
	return "", lastErr
}

// onePass tries every credential in priority order, then the strongest open
// networks if fallback is permitted.
func (m *Manager) onePass() (string, error) {
	if len(m.creds) == 0 && !m.open {
		return "", ErrNoCredentials
	}

	for _, c := range m.creds {
		if err := m.associate(c.SSID, c.Password); err == nil {
			return c.SSID, nil
		}
	}

	if m.open {
		if ssid, err := m.tryOpenNetworks(); err == nil {
			return ssid, nil
		}
	}
	return "", fmt.Errorf("%w: all credentials exhausted", ErrAssociationFailed)
}

// associate resets the radio, starts association and polls for the result
// with a bounded timeout, feeding the watchdog fast enough to stay alive.
func (m *Manager) associate(ssid, password string) error {
	if err := m.radio.Reset(); err != nil {
		return fmt.Errorf("wifi: radio reset: %w", err)
	}
	if err := m.radio.Connect(ssid, password); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrAssociationFailed, ssid, err)
	}

	deadline := time.Now().Add(m.timeout)
	for time.Now().Before(deadline) {
		if m.radio.IsConnected() {
			log.Printf("[WIFI] connected to %q", ssid)
			return nil
		}
		m.feed("wifi-assoc")
		m.sleep(assocPoll)
	}
	m.radio.Disconnect()
	return fmt.Errorf("%w: %q: timeout", ErrAssociationFailed, ssid)
}

// tryOpenNetworks scans and attempts the strongest open networks.
func (m *Manager) tryOpenNetworks() (string, error) {
	nets, err := m.radio.Scan()
	if err != nil {
		return "", fmt.Errorf("wifi: scan: %w", err)
	}
	var open []Network
	for _, n := range nets {
		if n.Open && n.SSID != "" {
			open = append(open, n)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].RSSI > open[j].RSSI })
	if len(open) > openFallbackN {
		open = open[:openFallbackN]
	}

	for _, n := range open {
		if err := m.associate(n.SSID, ""); err == nil {
			return n.SSID, nil
		}
	}
	return "", fmt.Errorf("%w: no open network usable", ErrAssociationFailed)
}

// powerForRSSI is the tier table: the stronger the signal the less power the
// link needs.
func powerForRSSI(rssi int) int {
	switch {
	case rssi > -60:
		return 5
	case rssi > -70:
		return 10
	case rssi > -80:
		return 15
	default:
		return 20
	}
}

// optimizeTxPower steps the transmit power down to the tier matching the
// measured signal, re-checking the link after each adjustment.
func (m *Manager) optimizeTxPower() {
	for i := 0; i < powerRounds; i++ {
		rssi, err := m.radio.RSSI()
		if err != nil {
			log.Printf("[WIFI] rssi read: %v", err)
			return
		}
		want := powerForRSSI(rssi)
		if err := m.radio.SetTxPower(want); err != nil {
			log.Printf("[WIFI] set tx power %ddBm: %v", want, err)
			return
		}
		m.feed("wifi-power")
		m.sleep(assocPoll)
		if !m.radio.IsConnected() {
			// Dropped the link at this tier. Back to full power and stop.
			m.radio.SetTxPower(m.radio.MaxTxPower())
			log.Printf("[WIFI] link lost at %ddBm, restored max power", want)
			return
		}
	}
}

// Disable tears the link down before deep sleep.
func (m *Manager) Disable() {
	if err := m.radio.Disconnect(); err != nil {
		log.Printf("[WIFI] disconnect: %v", err)
	}
	m.connectedSSID = ""
}
