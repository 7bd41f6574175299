package config

import (
	"time"

	"github.com/wrenhall/dchwatch/internal/hnap"
)

// Registry represents the entire user configuration file.
// This stores the connection and desired-settings entries for each sensor.
type Registry struct {
	Version int                `yaml:"version"`
	Devices map[string]*Device `yaml:"devices,omitempty"` // Keyed by a user-chosen device name
}

// Device represents the configuration for a single DCH sensor: how to reach
// it, how to poll it, and which settings to push down on connect.
type Device struct {
	Host string `yaml:"host"`
	PIN  string `yaml:"pin"` // 6-digit PIN from the label on the back

	// Polling
	UpdateInterval float64 `yaml:"update_interval,omitempty"` // seconds, default 1
	Enabled        *bool   `yaml:"enabled,omitempty"`

	// Detector settings to push. Pushed only when backoff is set, matching
	// how the configuration form gates the rest of these fields.
	Backoff     int    `yaml:"backoff,omitempty"` // seconds
	Sensitivity int    `yaml:"sensitivity,omitempty"`
	OpStatus    *bool  `yaml:"op_status,omitempty"`
	NickName    string `yaml:"nick_name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Clock settings to push. Nil means leave the device clock alone.
	Time *TimeConfig `yaml:"time,omitempty"`

	// Scheduled reboot hour override (local time)
	RebootHour *int `yaml:"reboot_hour,omitempty"`
}

// TimeConfig mirrors the device's SetTimeSettings fields. Unset fields fall
// back to defaults that at least point the device at a live NTP server.
type TimeConfig struct {
	NTPServer         string  `yaml:"ntp_server,omitempty"`
	TZOffset          float64 `yaml:"tz_offset"`
	DST               bool    `yaml:"tz_dst"`
	DSTStartMonth     int     `yaml:"tz_dst_start_month,omitempty"`
	DSTStartWeek      int     `yaml:"tz_dst_start_week,omitempty"`
	DSTStartDayOfWeek int     `yaml:"tz_dst_start_day_of_week,omitempty"`
	DSTStartTime      string  `yaml:"tz_dst_start_time,omitempty"`
	DSTEndMonth       int     `yaml:"tz_dst_end_month,omitempty"`
	DSTEndWeek        int     `yaml:"tz_dst_end_week,omitempty"`
	DSTEndDayOfWeek   int     `yaml:"tz_dst_end_day_of_week,omitempty"`
	DSTEndTime        string  `yaml:"tz_dst_end_time,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
	}
}

// GetDevice retrieves a device entry by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the entry (existing or newly created).
func (r *Registry) EnsureDevice(name string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if device, exists := r.Devices[name]; exists {
		return device
	}
	device := &Device{}
	r.Devices[name] = device
	return device
}

// Interval returns the configured poll interval, defaulting to one second
// (the devices report detections with second-level granularity).
func (d *Device) Interval() time.Duration {
	if d.UpdateInterval <= 0 {
		return time.Second
	}
	return time.Duration(d.UpdateInterval * float64(time.Second))
}

// BackoffSeconds returns the detection backoff used for on/off derivation
func (d *Device) BackoffSeconds() int {
	if d.Backoff <= 0 {
		return hnap.DefaultBackoffSeconds
	}
	return d.Backoff
}

// IsEnabled reports whether the device should be polled at all
func (d *Device) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// DetectionSettings builds the detector configuration to push to the device,
// or nil when no backoff is configured (meaning: don't touch the detector).
func (d *Device) DetectionSettings() *hnap.DetectionSettings {
	if d.Backoff <= 0 {
		return nil
	}
	ds := hnap.DefaultDetectionSettings()
	ds.Backoff = d.Backoff
	if d.Sensitivity > 0 {
		ds.Sensitivity = d.Sensitivity
	}
	if d.OpStatus != nil {
		ds.OPStatus = *d.OpStatus
	}
	ds.NickName = d.NickName
	ds.Description = d.Description
	return ds
}

// TimeSettings builds the clock configuration to push to the device, or nil
// when none is configured.
func (d *Device) TimeSettings() *hnap.TimeSettings {
	if d.Time == nil {
		return nil
	}
	ts := hnap.DefaultTimeSettings()
	ts.TZOffset = d.Time.TZOffset
	ts.DST = d.Time.DST
	if d.Time.NTPServer != "" {
		ts.NTPServer = d.Time.NTPServer
	}
	if d.Time.DSTStartMonth > 0 {
		ts.DSTStartMonth = d.Time.DSTStartMonth
		ts.DSTStartWeek = d.Time.DSTStartWeek
		ts.DSTStartDayOfWeek = d.Time.DSTStartDayOfWeek
		ts.DSTStartTime = d.Time.DSTStartTime
	}
	if d.Time.DSTEndMonth > 0 {
		ts.DSTEndMonth = d.Time.DSTEndMonth
		ts.DSTEndWeek = d.Time.DSTEndWeek
		ts.DSTEndDayOfWeek = d.Time.DSTEndDayOfWeek
		ts.DSTEndTime = d.Time.DSTEndTime
	}
	return ts
}

// NewClient builds a session client for this device entry with its desired
// settings attached.
func (d *Device) NewClient() *hnap.Client {
	client := hnap.NewClient(d.Host, d.PIN)
	client.SetTimeSettings(d.TimeSettings())
	client.SetDetectionSettings(d.DetectionSettings())
	if d.RebootHour != nil {
		client.SetRebootHour(*d.RebootHour)
	}
	return client
}
