package hnap

import (
	"strconv"
	"time"
)

const (
	// DefaultUsername is the login name every DCH-S1x0 firmware accepts
	DefaultUsername = "Admin"

	// ModelMotion is the model identifier of the motion sensor
	ModelMotion = "DCH-S150"

	// ModelWater is the model identifier of the water-leak sensor
	ModelWater = "DCH-S160"

	// DefaultSOAPTimeout is the timeout for ordinary calls
	DefaultSOAPTimeout = 10 * time.Second

	// RebootSOAPTimeout is the timeout for the Reboot call; the device is
	// unresponsive while it restarts
	RebootSOAPTimeout = 60 * time.Second

	// RebootGracePeriod is how long after issuing a reboot the device is
	// assumed unreachable before a reconnect is attempted
	RebootGracePeriod = 40 * time.Second

	// DefaultRebootHour is the local hour-of-day for the scheduled nightly
	// reboot. The firmware degrades over long uptimes; a nightly reboot
	// keeps it honest.
	DefaultRebootHour = 3

	// DefaultSensitivity is the default motion detection sensitivity (0-100)
	DefaultSensitivity = 90

	// DefaultBackoffSeconds is the default detection backoff in seconds
	DefaultBackoffSeconds = 30

	// DefaultNTPServer replaces the firmware default of ntp1.dlink.com,
	// which no longer exists
	DefaultNTPServer = "time.google.com"
)

// TimeSettings carries the clock and DST rule configuration pushed to the
// device with SetTimeSettings. The DST fields are all required together;
// the firmware rejects partial rules.
type TimeSettings struct {
	NTPServer string
	TZOffset  float64 // UTC offset in hours, fractional offsets allowed
	DST       bool

	DSTStartMonth     int
	DSTStartWeek      int // week-of-month
	DSTStartDayOfWeek int // 0 = Sunday
	DSTStartTime      string

	DSTEndMonth     int
	DSTEndWeek      int
	DSTEndDayOfWeek int
	DSTEndTime      string
}

// DefaultTimeSettings returns US-central-style defaults with a working NTP
// server, matching what the devices shipped with (minus the dead hostname).
func DefaultTimeSettings() *TimeSettings {
	return &TimeSettings{
		NTPServer:         DefaultNTPServer,
		TZOffset:          -6,
		DST:               true,
		DSTStartMonth:     3,
		DSTStartWeek:      2,
		DSTStartDayOfWeek: 0,
		DSTStartTime:      "2:00AM",
		DSTEndMonth:       11,
		DSTEndWeek:        1,
		DSTEndDayOfWeek:   0,
		DSTEndTime:        "2:00AM",
	}
}

// DetectionSettings carries the detector configuration pushed to the device.
// Sensitivity and Backoff apply only to the motion model; the water model
// ignores them.
type DetectionSettings struct {
	NickName    string
	Description string
	Sensitivity int
	OPStatus    bool // detector on/off
	Backoff     int  // seconds
}

// DefaultDetectionSettings returns the factory-equivalent detector settings
func DefaultDetectionSettings() *DetectionSettings {
	return &DetectionSettings{
		Sensitivity: DefaultSensitivity,
		OPStatus:    true,
		Backoff:     DefaultBackoffSeconds,
	}
}

// Snapshot is the per-poll data view consumed by presentation layers
type Snapshot struct {
	LastDetection   time.Time
	MACAddress      string
	ModelName       string
	FirmwareVersion string
	HardwareVersion string
	DeviceName      string
	VendorName      string
}

// LatestDetection is the result of a GetLatestDetection call.
//
// Unknown is set when the device omitted LatestDetectTime or returned it in
// a non-numeric form; Time then holds a fixed sentinel far in the past and
// consumers must treat it as "no known detection", not as a real event.
type LatestDetection struct {
	Time    time.Time
	Unknown bool
}

// detectionSentinel is returned when the device cannot report a usable
// detection time. Kept as a magic past date for compatibility with existing
// consumers that compare timestamps.
func detectionSentinel() time.Time {
	return time.Date(2020, time.January, 1, 0, 1, 1, 0, time.Local)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func floatString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
