// ABOUTME: Tests for credential walking, open fallback, power tiers, pass modes
// ABOUTME: Uses the scripted radio simulator with a shrunk association timeout
package wifi

import (
	"errors"
	"testing"
	"time"

	"github.com/InkClock-Project/inkclock-go/internal/config"
)

func newTestManager(r *SimRadio, creds []config.Credential, open bool) *Manager {
	m := NewManager(r, creds, open, nil)
	m.timeout = 50 * time.Millisecond
	m.sleep = func(time.Duration) {}
	return m
}

func TestConnectFirstCredentialWins(t *testing.T) {
	r := NewSimRadio()
	r.Passwords["home"] = "hunter2"
	creds := []config.Credential{
		{SSID: "home", Password: "hunter2", Priority: 0},
		{SSID: "office", Password: "secret", Priority: 1},
	}
	m := newTestManager(r, creds, false)

	ssid, err := m.Connect(false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ssid != "home" {
		t.Errorf("connected to %q, want home", ssid)
	}
}

func TestConnectFallsThroughToLowerPriority(t *testing.T) {
	r := NewSimRadio()
	r.Passwords["office"] = "secret"
	creds := []config.Credential{
		{SSID: "home", Password: "wrong", Priority: 0},
		{SSID: "office", Password: "secret", Priority: 1},
	}
	m := newTestManager(r, creds, false)

	ssid, err := m.Connect(false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ssid != "office" {
		t.Errorf("connected to %q, want office", ssid)
	}
}

func TestNonBlockingSinglePassFails(t *testing.T) {
	r := NewSimRadio()
	creds := []config.Credential{{SSID: "home", Password: "nope"}}
	m := newTestManager(r, creds, false)

	if _, err := m.Connect(false); !errors.Is(err, ErrAssociationFailed) {
		t.Fatalf("error = %v, want ErrAssociationFailed", err)
	}
	if r.TxPower() != 20 {
		t.Errorf("tx power changed to %d in non-blocking mode", r.TxPower())
	}
	// A single pass resets the radio once per credential.
	if r.Resets() != 1 {
		t.Errorf("resets = %d, want 1", r.Resets())
	}
}

func TestBlockingRetriesAllPasses(t *testing.T) {
	r := NewSimRadio()
	creds := []config.Credential{{SSID: "home", Password: "nope"}}
	m := newTestManager(r, creds, false)

	if _, err := m.Connect(true); err == nil {
		t.Fatal("expected failure")
	}
	if r.Resets() != blockingTries {
		t.Errorf("resets = %d, want %d", r.Resets(), blockingTries)
	}
}

func TestOpenFallbackPicksStrongest(t *testing.T) {
	r := NewSimRadio()
	r.Passwords["cafe"] = "" // open and joinable
	r.Networks = []Network{
		{SSID: "weak", RSSI: -85, Open: true},
		{SSID: "cafe", RSSI: -50, Open: true},
		{SSID: "locked", RSSI: -40, Open: false},
	}
	m := newTestManager(r, nil, true)

	ssid, err := m.Connect(false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ssid != "cafe" {
		t.Errorf("connected to %q, want cafe", ssid)
	}
}

func TestNoCredentialsNoFallback(t *testing.T) {
	m := newTestManager(NewSimRadio(), nil, false)
	if _, err := m.Connect(false); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("error = %v, want ErrNoCredentials", err)
	}
}

func TestPowerForRSSI(t *testing.T) {
	cases := []struct{ rssi, want int }{
		{-40, 5}, {-59, 5}, {-60, 10}, {-69, 10},
		{-70, 15}, {-79, 15}, {-80, 20}, {-95, 20},
	}
	for _, c := range cases {
		if got := powerForRSSI(c.rssi); got != c.want {
			t.Errorf("powerForRSSI(%d) = %d, want %d", c.rssi, got, c.want)
		}
	}
}

func TestTxPowerLoweredOnStrongSignal(t *testing.T) {
	r := NewSimRadio()
	r.Passwords["home"] = "pw"
	r.Signal = -50
	m := newTestManager(r, []config.Credential{{SSID: "home", Password: "pw"}}, false)

	if _, err := m.Connect(false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if r.TxPower() != 5 {
		t.Errorf("tx power = %d, want tier 5 for -50dBm", r.TxPower())
	}
}

func TestDisableDropsLink(t *testing.T) {
	r := NewSimRadio()
	r.Passwords["home"] = "pw"
	m := newTestManager(r, []config.Credential{{SSID: "home", Password: "pw"}}, false)
	if _, err := m.Connect(false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	m.Disable()
	if r.IsConnected() {
		t.Error("radio still connected after Disable")
	}
	if m.ConnectedSSID() != "" {
		t.Errorf("ConnectedSSID = %q, want empty", m.ConnectedSSID())
	}
}
