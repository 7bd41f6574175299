package config

import (
	"strings"
	"testing"
	"time"

	"github.com/wrenhall/dchwatch/internal/hnap"
)

const sampleConfig = `
version: 1
devices:
  hallway:
    host: 10.1.1.1
    pin: "123456"
    update_interval: 2.5
    backoff: 45
    sensitivity: 80
    nick_name: Hallway
  basement:
    host: 10.1.1.2
    pin: "654321"
    enabled: false
    time:
      tz_offset: -6
      tz_dst: true
`

func TestParseRegistry(t *testing.T) {
	registry, err := ParseRegistry([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseRegistry() error = %v", err)
	}

	if registry.Version != 1 {
		t.Errorf("Version = %d, want 1", registry.Version)
	}
	if len(registry.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(registry.Devices))
	}

	hallway := registry.GetDevice("hallway")
	if hallway == nil {
		t.Fatal("hallway device missing")
	}
	if hallway.Host != "10.1.1.1" {
		t.Errorf("Host = %s, want 10.1.1.1", hallway.Host)
	}
	if hallway.PIN != "123456" {
		t.Errorf("PIN = %s, want 123456", hallway.PIN)
	}
	if hallway.Interval() != 2500*time.Millisecond {
		t.Errorf("Interval() = %v, want 2.5s", hallway.Interval())
	}
	if !hallway.IsEnabled() {
		t.Error("hallway should default to enabled")
	}

	if registry.GetDevice("basement").IsEnabled() {
		t.Error("basement is explicitly disabled")
	}
	if registry.GetDevice("nonexistent") != nil {
		t.Error("unknown device should return nil")
	}
}

func TestParseRegistry_UnsupportedVersion(t *testing.T) {
	_, err := ParseRegistry([]byte("version: 2\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("ParseRegistry() error = %v, want version error", err)
	}
}

func TestParseRegistry_InvalidYAML(t *testing.T) {
	_, err := ParseRegistry([]byte("version: 1\ndevices: [not a map"))
	if err == nil {
		t.Error("ParseRegistry() should fail on invalid YAML")
	}
}

func TestEnsureDevice(t *testing.T) {
	registry := NewRegistry()

	device := registry.EnsureDevice("hallway")
	if device == nil {
		t.Fatal("EnsureDevice returned nil")
	}
	device.Host = "10.1.1.1"

	if registry.EnsureDevice("hallway") != device {
		t.Error("EnsureDevice should return the existing entry")
	}

	// Works on a zero-value registry too
	var bare Registry
	if bare.EnsureDevice("x") == nil {
		t.Error("EnsureDevice should create the devices map on demand")
	}
}

func TestDevice_Defaults(t *testing.T) {
	device := &Device{Host: "10.1.1.1", PIN: "123456"}

	if device.Interval() != time.Second {
		t.Errorf("Interval() = %v, want 1s", device.Interval())
	}
	if device.BackoffSeconds() != hnap.DefaultBackoffSeconds {
		t.Errorf("BackoffSeconds() = %d, want %d", device.BackoffSeconds(), hnap.DefaultBackoffSeconds)
	}
	if !device.IsEnabled() {
		t.Error("devices default to enabled")
	}
}

func TestDevice_DetectionSettings(t *testing.T) {
	// No backoff configured: don't touch the detector at all
	device := &Device{Host: "10.1.1.1"}
	if device.DetectionSettings() != nil {
		t.Error("DetectionSettings() should be nil without a backoff")
	}

	off := false
	device = &Device{
		Host:     "10.1.1.1",
		Backoff:  45,
		NickName: "Hallway",
		OpStatus: &off,
	}
	ds := device.DetectionSettings()
	if ds == nil {
		t.Fatal("DetectionSettings() = nil, want settings")
	}
	if ds.Backoff != 45 {
		t.Errorf("Backoff = %d, want 45", ds.Backoff)
	}
	if ds.Sensitivity != hnap.DefaultSensitivity {
		t.Errorf("Sensitivity = %d, want the default %d", ds.Sensitivity, hnap.DefaultSensitivity)
	}
	if ds.OPStatus {
		t.Error("OPStatus should follow the explicit false")
	}
	if ds.NickName != "Hallway" {
		t.Errorf("NickName = %q, want Hallway", ds.NickName)
	}
}

func TestDevice_TimeSettings(t *testing.T) {
	device := &Device{Host: "10.1.1.1"}
	if device.TimeSettings() != nil {
		t.Error("TimeSettings() should be nil without a time section")
	}

	device.Time = &TimeConfig{TZOffset: 1, DST: false}
	ts := device.TimeSettings()
	if ts == nil {
		t.Fatal("TimeSettings() = nil, want settings")
	}
	if ts.TZOffset != 1 {
		t.Errorf("TZOffset = %v, want 1", ts.TZOffset)
	}
	if ts.DST {
		t.Error("DST should follow the config")
	}
	// Unset fields fall back to working defaults
	if ts.NTPServer != hnap.DefaultNTPServer {
		t.Errorf("NTPServer = %q, want %q", ts.NTPServer, hnap.DefaultNTPServer)
	}
	if ts.DSTStartMonth != 3 {
		t.Errorf("DSTStartMonth = %d, want the default 3", ts.DSTStartMonth)
	}

	// Explicit DST rules override the defaults as a block
	device.Time.DSTStartMonth = 4
	device.Time.DSTStartWeek = 1
	device.Time.DSTStartDayOfWeek = 6
	device.Time.DSTStartTime = "3:00AM"
	ts = device.TimeSettings()
	if ts.DSTStartMonth != 4 || ts.DSTStartWeek != 1 || ts.DSTStartDayOfWeek != 6 || ts.DSTStartTime != "3:00AM" {
		t.Errorf("DST start rule not taken from config: %+v", ts)
	}
}
