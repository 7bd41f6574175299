package hnap

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wrenhall/dchwatch/internal/logging"
	"github.com/wrenhall/dchwatch/internal/soap"
)

// Typed wrappers around the individual HNAP methods. Each is a single SOAP
// call through the session pipeline; state resolution and authentication
// happen inside call().

// Call invokes an arbitrary HNAP method through the session pipeline. Most
// callers want the typed wrappers below; provisioning needs methods outside
// the polling surface (SetAPClientSettings and friends).
func (c *Client) Call(ctx context.Context, method string, params []soap.Param) (soap.Response, error) {
	return c.call(ctx, method, DefaultSOAPTimeout, params)
}

// GetDeviceSettings reads the device identity and capability block
func (c *Client) GetDeviceSettings(ctx context.Context) (soap.Response, error) {
	return c.call(ctx, "GetDeviceSettings", DefaultSOAPTimeout, nil)
}

// GetTimeSettings reads the device clock configuration
func (c *Client) GetTimeSettings(ctx context.Context) (soap.Response, error) {
	return c.call(ctx, "GetTimeSettings", DefaultSOAPTimeout, nil)
}

// GetDetectorSettings reads the detector configuration. The method name
// depends on the model: water sensors answer GetWaterDetectorSettings,
// everything else answers GetMotionDetectorSettings.
func (c *Client) GetDetectorSettings(ctx context.Context) (soap.Response, error) {
	method := "GetMotionDetectorSettings"
	if c.modelName == ModelWater {
		method = "GetWaterDetectorSettings"
	}
	return c.call(ctx, method, DefaultSOAPTimeout, []soap.Param{
		{Name: "ModuleID", Value: "1"},
	})
}

// DeviceActions lists the SOAP actions the device advertises, stripped to
// bare method names.
func (c *Client) DeviceActions(ctx context.Context) ([]string, error) {
	resp, err := c.GetDeviceSettings(ctx)
	if err != nil {
		return nil, err
	}
	var actions []string
	for _, raw := range strings.Split(resp["SOAPActions"], "\n") {
		if raw == "" {
			continue
		}
		actions = append(actions, raw[strings.LastIndex(raw, "/")+1:])
	}
	return actions, nil
}

// GetLatestDetection reads the most recent detection timestamp.
//
// The device sometimes omits LatestDetectTime or returns it in a non-numeric
// form; in that case a fixed past sentinel is substituted instead of failing,
// and Unknown is set. Each read is compared against the stored value and the
// previous/last pair is advanced only on change, so edge-triggered consumers
// can tell a new event from a repeat of the old one.
func (c *Client) GetLatestDetection(ctx context.Context) (LatestDetection, error) {
	resp, err := c.call(ctx, "GetLatestDetection", DefaultSOAPTimeout, []soap.Param{
		{Name: "ModuleID", Value: "1"},
	})
	if err != nil {
		return LatestDetection{}, err
	}

	result := LatestDetection{}
	raw, present := resp["LatestDetectTime"]
	if !present {
		result.Time = detectionSentinel()
		result.Unknown = true
	} else if seconds, err := strconv.ParseFloat(raw, 64); err != nil {
		result.Time = detectionSentinel()
		result.Unknown = true
	} else {
		sec := int64(seconds)
		nsec := int64((seconds - float64(sec)) * 1e9)
		result.Time = time.Unix(sec, nsec).Local()
	}

	if c.lastDetection.IsZero() || !result.Time.Equal(c.lastDetection) {
		logging.Debug("New detection",
			zap.String("host", c.Name()),
			zap.Time("was", c.lastDetection),
			zap.Time("now", result.Time),
		)
		c.prevDetection = c.lastDetection
		c.lastDetection = result.Time
	}

	return result, nil
}

// ApplyTimeSettings pushes the configured clock and DST rules to the device.
// A nil configuration is a no-op.
func (c *Client) ApplyTimeSettings(ctx context.Context) error {
	ts := c.timeSettings
	if ts == nil {
		return nil
	}
	logging.Debug("Setting time settings on device", zap.String("host", c.Name()))
	_, err := c.call(ctx, "SetTimeSettings", DefaultSOAPTimeout, []soap.Param{
		{Name: "NTP", Value: "true"},
		{Name: "NTPServer", Value: ts.NTPServer},
		{Name: "TimeZone", Value: floatString(ts.TZOffset)},
		{Name: "DaylightSaving", Value: boolString(ts.DST)},
		{Name: "DSTStartMonth", Value: strconv.Itoa(ts.DSTStartMonth)},
		{Name: "DSTStartWeek", Value: strconv.Itoa(ts.DSTStartWeek)},
		{Name: "DSTStartDayOfWeek", Value: strconv.Itoa(ts.DSTStartDayOfWeek)},
		{Name: "DSTStartTime", Value: ts.DSTStartTime},
		{Name: "DSTEndMonth", Value: strconv.Itoa(ts.DSTEndMonth)},
		{Name: "DSTEndWeek", Value: strconv.Itoa(ts.DSTEndWeek)},
		{Name: "DSTEndDayOfWeek", Value: strconv.Itoa(ts.DSTEndDayOfWeek)},
		{Name: "DSTEndTime", Value: ts.DSTEndTime},
	})
	if err != nil {
		return err
	}

	if logging.DebugEnabled() {
		if current, err := c.GetTimeSettings(ctx); err == nil {
			logging.Debug("Current time settings on the device", zap.Any("settings", current))
		}
	}
	return nil
}

// ApplyDetectionSettings pushes the configured detector settings using the
// model-specific method: motion sensors take sensitivity and backoff, water
// sensors take neither. Any other model identifier fails before a call is
// made. A nil configuration is a no-op.
func (c *Client) ApplyDetectionSettings(ctx context.Context) error {
	ds := c.detectionSettings
	if ds == nil {
		return nil
	}
	logging.Debug("Setting detector settings on device",
		zap.String("host", c.Name()),
		zap.String("model", c.modelName),
		zap.String("nickname", ds.NickName),
		zap.Int("sensitivity", ds.Sensitivity),
		zap.Bool("enabled", ds.OPStatus),
		zap.Int("backoff", ds.Backoff),
	)

	var err error
	switch c.modelName {
	case ModelMotion:
		_, err = c.call(ctx, "SetMotionDetectorSettings", DefaultSOAPTimeout, []soap.Param{
			{Name: "ModuleID", Value: "1"},
			{Name: "NickName", Value: ds.NickName},
			{Name: "Description", Value: ds.Description},
			{Name: "Sensitivity", Value: strconv.Itoa(ds.Sensitivity)},
			{Name: "OPStatus", Value: boolString(ds.OPStatus)},
			{Name: "Backoff", Value: strconv.Itoa(ds.Backoff)},
		})
	case ModelWater:
		_, err = c.call(ctx, "SetWaterDetectorSettings", DefaultSOAPTimeout, []soap.Param{
			{Name: "ModuleID", Value: "1"},
			{Name: "NickName", Value: ds.NickName},
			{Name: "Description", Value: ds.Description},
			{Name: "OPStatus", Value: boolString(ds.OPStatus)},
		})
	default:
		return newError(ErrTypeUnsupportedDevice,
			"device model "+c.modelName+" is not a supported type", nil)
	}
	if err != nil {
		return err
	}

	if logging.DebugEnabled() {
		if current, err := c.GetDetectorSettings(ctx); err == nil {
			logging.Debug("Current detector settings on the device", zap.Any("settings", current))
		}
	}
	return nil
}

// Data fetches the latest detection and returns it together with the
// session's identity fields as one snapshot for presentation layers.
func (c *Client) Data(ctx context.Context) (Snapshot, error) {
	detection, err := c.GetLatestDetection(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		LastDetection:   detection.Time,
		MACAddress:      c.macAddress,
		ModelName:       c.modelName,
		FirmwareVersion: c.firmwareVersion,
		HardwareVersion: c.hardwareVersion,
		DeviceName:      c.deviceName,
		VendorName:      c.vendorName,
	}, nil
}
