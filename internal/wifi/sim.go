// ABOUTME: In-memory radio simulator for tests and the desktop build
// ABOUTME: Scriptable association outcomes, scan results and signal strength
package wifi

import (
	"errors"
	"sync"
)

// SimRadio is a Radio backed by a scripted environment.
type SimRadio struct {
	mu sync.Mutex

	// Passwords maps SSID -> password for joinable networks. An empty
	// password marks an open network.
	Passwords map[string]string
	Networks  []Network
	Signal    int // reported RSSI once connected

	// FailConnects makes the next N association attempts fail outright.
	FailConnects int

	connected bool
	ssid      string
	txPower   int
	resets    int
}

// NewSimRadio starts a simulator with no joinable networks.
func NewSimRadio() *SimRadio {
	return &SimRadio{Passwords: map[string]string{}, Signal: -55, txPower: 20}
}

func (r *SimRadio) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	r.ssid = ""
	r.resets++
	return nil
}

func (r *SimRadio) Connect(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailConnects > 0 {
		r.FailConnects--
		return errors.New("sim: association refused")
	}
	want, ok := r.Passwords[ssid]
	if !ok || want != password {
		// Association starts but never completes, like real hardware.
		return nil
	}
	r.connected = true
	r.ssid = ssid
	return nil
}

func (r *SimRadio) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *SimRadio) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	r.ssid = ""
	return nil
}

func (r *SimRadio) RSSI() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return 0, errors.New("sim: not connected")
	}
	return r.Signal, nil
}

func (r *SimRadio) SetTxPower(dbm int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txPower = dbm
	return nil
}

func (r *SimRadio) MaxTxPower() int { return 20 }

func (r *SimRadio) Scan() ([]Network, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Network, len(r.Networks))
	copy(out, r.Networks)
	return out, nil
}

// TxPower reports the last power setting, for assertions.
func (r *SimRadio) TxPower() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txPower
}

// Resets reports how many times the radio was reset.
func (r *SimRadio) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}
