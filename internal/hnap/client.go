package hnap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wrenhall/dchwatch/internal/logging"
	"github.com/wrenhall/dchwatch/internal/soap"
)

// Client is an authenticated HNAP session with one physical device.
//
// A Client owns all per-session mutable state: credentials, device status,
// the reboot schedule, the one-time identity fields, and the detection-time
// edge tracker. It is designed for one cooperative caller issuing one call
// at a time (a poll loop); calls on the same Client must not be interleaved.
// Separate devices get separate Clients and share nothing.
type Client struct {
	soap     *soap.Client
	username string
	pin      string

	// Desired configuration pushed during one-time initialization.
	// Either may be nil, meaning "leave the device as it is".
	timeSettings      *TimeSettings
	detectionSettings *DetectionSettings

	// Session credentials. Empty privateKey means not authenticated.
	// authToken/authTimestamp are recomputed before every authenticated
	// call and never outlive one request's headers.
	privateKey    string
	cookie        string
	authToken     string
	authTimestamp int64

	status       DeviceStatus
	rebootHour   int
	rebootGrace  time.Duration
	nextRebootAt time.Time
	rebootedAt   time.Time

	// Identity fields, populated once after the first successful settings
	// read and never overwritten for the life of the session.
	ranInit         bool
	macAddress      string
	modelName       string
	firmwareVersion string
	hardwareVersion string
	deviceName      string
	vendorName      string

	lastDetection time.Time
	prevDetection time.Time

	// now is replaceable for tests
	now func() time.Time
}

// NewClient creates a session client for the device at the given host,
// authenticating with the 6-digit PIN from the label on the device.
func NewClient(host, pin string) *Client {
	return newClient(soap.NewClient(host), pin)
}

// NewClientURL creates a session client against a full base URL. Used by
// tests to target a local mock device.
func NewClientURL(baseURL, pin string) *Client {
	return newClient(soap.NewClientURL(baseURL), pin)
}

func newClient(transport *soap.Client, pin string) *Client {
	c := &Client{
		soap:        transport,
		username:    DefaultUsername,
		pin:         pin,
		status:      StatusUnknown,
		rebootHour:  DefaultRebootHour,
		rebootGrace: RebootGracePeriod,
		now:         time.Now,
	}
	c.scheduleNextReboot()
	return c
}

// SetTimeSettings sets the clock/DST configuration to push to the device
// during initialization. Pass nil to leave the device clock alone.
func (c *Client) SetTimeSettings(ts *TimeSettings) {
	c.timeSettings = ts
}

// SetDetectionSettings sets the detector configuration to push to the device
// during initialization. Pass nil to leave the detector settings alone.
func (c *Client) SetDetectionSettings(ds *DetectionSettings) {
	c.detectionSettings = ds
}

// SetRebootHour overrides the local hour-of-day for the scheduled nightly
// reboot and recomputes the next reboot time.
func (c *Client) SetRebootHour(hour int) {
	c.rebootHour = hour
	c.scheduleNextReboot()
}

// Name returns something that identifies the device in logs and errors
func (c *Client) Name() string {
	return c.soap.Address
}

// Status returns the current device status as tracked by the state machine
func (c *Client) Status() DeviceStatus {
	return c.status
}

// PrivateKey returns the session private key, or empty when not
// authenticated. Provisioning needs it to encode Wi-Fi keys.
func (c *Client) PrivateKey() string {
	return c.privateKey
}

// ModelName returns the device model identifier (empty before the first
// successful initialization)
func (c *Client) ModelName() string {
	return c.modelName
}

// DeviceName returns the device's configured name (empty before the first
// successful initialization)
func (c *Client) DeviceName() string {
	return c.deviceName
}

// LastDetection returns the most recent detection time read from the device
func (c *Client) LastDetection() time.Time {
	return c.lastDetection
}

// PreviousDetection returns the detection time before the most recent
// change, for edge-triggered consumers
func (c *Client) PreviousDetection() time.Time {
	return c.prevDetection
}

// NextRebootAt returns the next scheduled device self-reboot time
func (c *Client) NextRebootAt() time.Time {
	return c.nextRebootAt
}

func (c *Client) setStatus(s DeviceStatus) {
	if s != c.status {
		logging.LogStatusChange(c.Name(), c.status.String(), s.String())
	}
	c.status = s
}

// scheduleNextReboot sets the next reboot to the next occurrence of the
// configured local hour. The result is always in the future.
func (c *Client) scheduleNextReboot() {
	now := c.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), c.rebootHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	c.nextRebootAt = next
	logging.Debug("Next reboot scheduled", zap.String("host", c.Name()), zap.Time("at", next))
}

// Login authenticates with the device using the HNAP challenge-response
// handshake and, on first success for this session, runs the one-time
// initialization sequence (identity read plus settings push).
//
// All stale credentials are discarded before the attempt, so a failed
// re-login never leaves the session half-authenticated.
func (c *Client) Login(ctx context.Context) error {
	logging.Debug("Logging into device", zap.String("host", c.Name()))
	c.privateKey = ""
	c.cookie = ""
	c.authToken = ""
	c.authTimestamp = 0

	c.setStatus(StatusInitializing)

	if err := c.handshake(ctx); err != nil {
		if _, ok := errType(err); ok {
			return err
		}
		// Anything unexpected during the handshake is an authentication
		// failure from the caller's point of view
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeAuthentication, "unknown error trying to connect to device", err)
	}

	c.setStatus(StatusOnline)

	return c.runInitialization(ctx)
}

// handshake performs the two-phase HNAP login exchange
func (c *Client) handshake(ctx context.Context) error {
	resp, err := c.call(ctx, "Login", DefaultSOAPTimeout, []soap.Param{
		{Name: "Action", Value: "request"},
		{Name: "Username", Value: c.username},
		{Name: "LoginPassword", Value: ""},
		{Name: "Captcha", Value: ""},
	})
	if err != nil {
		return err
	}

	challenge := resp["Challenge"]
	publicKey := resp["PublicKey"]
	// The cookie must be stored before phase two; the device checks it
	c.cookie = resp["Cookie"]
	c.privateKey = ComputePrivateKey(publicKey, c.pin, challenge)

	resp, err = c.call(ctx, "Login", DefaultSOAPTimeout, []soap.Param{
		{Name: "Action", Value: "login"},
		{Name: "Username", Value: c.username},
		{Name: "LoginPassword", Value: ComputeLoginHash(c.privateKey, challenge)},
		{Name: "Captcha", Value: ""},
	})
	if err != nil {
		return err
	}

	if !strings.EqualFold(resp["LoginResult"], "success") {
		c.setStatus(StatusInvalidPin)
		return newError(ErrTypeAuthentication,
			"incorrect PIN supplied - be sure to use the 6-digit PIN from the back of the device", nil)
	}
	return nil
}

// runInitialization runs exactly once per authenticated session: reads the
// device identity and pushes the desired time and detection settings.
func (c *Client) runInitialization(ctx context.Context) error {
	if c.ranInit {
		return nil
	}
	logging.Debug("Running initialization", zap.String("host", c.Name()))

	settings, err := c.GetDeviceSettings(ctx)
	if err != nil {
		return err
	}
	c.macAddress = settings["DeviceMacId"]
	c.modelName = settings["ModelName"]
	c.firmwareVersion = settings["FirmwareVersion"]
	c.hardwareVersion = settings["HardwareVersion"]
	c.deviceName = settings["DeviceName"]
	c.vendorName = settings["VendorName"]

	if err := c.ApplyTimeSettings(ctx); err != nil {
		return err
	}
	if err := c.ApplyDetectionSettings(ctx); err != nil {
		return err
	}

	c.ranInit = true
	return nil
}

// resolveState decides what has to happen before a normal call can proceed:
// (re)authenticate, trigger the scheduled reboot, block while rebooting, or
// nothing. Every path leaves the session in a defined status.
func (c *Client) resolveState(ctx context.Context) error {
	// The reboot schedule wins over everything else
	if !c.nextRebootAt.IsZero() && c.now().After(c.nextRebootAt) && c.status == StatusOnline {
		c.setStatus(StatusNeedsReboot)
	}

	switch c.status {
	case StatusUnknown, StatusDisconnected, StatusCommunicationError, StatusInternalError, StatusInvalidPin:
		return c.Login(ctx)

	case StatusInitializing:
		// A call arrived while the login handshake owns the session;
		// that is a caller bug, not a device condition
		c.setStatus(StatusUnknown)
		return newError(ErrTypeInvalidState, "device status is Initializing - no calls should be issued", nil)

	case StatusOnline:
		return nil

	case StatusNeedsReboot:
		if err := c.Reboot(ctx); err != nil {
			return err
		}
		return newError(ErrTypeRebooting, "device needs reboot - deferring call", nil)

	case StatusRebooting:
		if elapsed := c.now().Sub(c.rebootedAt); elapsed >= c.rebootGrace {
			logging.Debug("Reboot grace period elapsed",
				zap.String("host", c.Name()),
				zap.Duration("elapsed", elapsed))
			c.setStatus(StatusDisconnected)
			return c.Login(ctx)
		}
		return newError(ErrTypeRebooting, "device is rebooting - deferring call", nil)

	default:
		c.setStatus(StatusUnknown)
		return newError(ErrTypeInvalidState,
			fmt.Sprintf("device status %v is not a recognized state", c.status), nil)
	}
}

// Reboot issues a reboot to the device and advances the reboot schedule.
// The device will be unreachable for the grace period afterwards.
func (c *Client) Reboot(ctx context.Context) error {
	logging.Info("Rebooting device", zap.String("host", c.Name()))
	c.rebootedAt = c.now()
	c.scheduleNextReboot()
	c.setStatus(StatusRebooting)
	_, err := c.call(ctx, "Reboot", RebootSOAPTimeout, nil)
	return err
}

// call runs one HNAP method through the full pipeline: state resolution
// (except for Login and Reboot, which are themselves part of resolution),
// per-request auth token, transport, device-error check, and failure
// classification.
func (c *Client) call(ctx context.Context, method string, timeout time.Duration, params []soap.Param) (soap.Response, error) {
	if method != "Login" && method != "Reboot" {
		if err := c.resolveState(ctx); err != nil {
			return nil, err
		}
	}

	c.updateAuthToken(method)

	resp, err := c.soap.Call(ctx, method, timeout, params, c.authHeaders())
	if err != nil {
		return nil, c.classify(err)
	}

	if _, ok := resp["ERROR"]; ok {
		c.setStatus(StatusInternalError)
		return nil, newError(ErrTypeDeviceReturned,
			fmt.Sprintf("device %s returned a server error", c.Name()), nil)
	}

	return resp, nil
}

// updateAuthToken recomputes the per-request auth token. Without a private
// key (the unauthenticated first login phase) no token is produced and no
// auth headers are sent.
func (c *Client) updateAuthToken(method string) {
	if c.privateKey == "" {
		return
	}
	c.authTimestamp = c.now().Unix()
	c.authToken = ComputeAuthToken(c.privateKey, method, c.authTimestamp)
}

func (c *Client) authHeaders() map[string]string {
	headers := map[string]string{}
	if c.cookie != "" {
		headers["Cookie"] = "uid=" + c.cookie
	}
	if c.authToken != "" {
		headers["HNAP_AUTH"] = fmt.Sprintf("%s %d", c.authToken, c.authTimestamp)
	}
	return headers
}

// classify turns a transport or decode failure into one of the typed errors
// and records the matching status, so the next call can react without
// re-deriving context. Priority order matters and mirrors how the device
// actually fails.
func (c *Client) classify(err error) error {
	// Already one of ours: re-raise unchanged. A general communication
	// error still forces the status over; a rebooting error leaves the
	// status alone.
	if t, ok := errType(err); ok {
		if t == ErrTypeGeneralCommunication {
			c.setStatus(StatusCommunicationError)
		}
		return err
	}

	var syntaxErr *xml.SyntaxError

	switch {
	case errors.Is(err, soap.ErrNoEnvelope), errors.Is(err, soap.ErrNoResponseElement):
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeGeneralCommunication, "received a bad response from the device", err)

	case isDisconnect(err):
		c.setStatus(StatusDisconnected)
		return newError(ErrTypeGeneralCommunication, "device dropped the connection", err)

	case errors.As(err, &syntaxErr):
		c.setStatus(StatusInternalError)
		return newError(ErrTypeGeneralCommunication,
			"invalid response received from device - perhaps not a DCH-S1x0?", err)

	case isDNSFailure(err):
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeResolveHost,
			"unable to resolve hostname via DNS - please check for misspellings", err)

	case isConnectionRefused(err):
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeConnect, fmt.Sprintf("unable to connect to device: %v", err), err)

	case os.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeConnect, "timeout trying to connect to the supplied host/IP", err)

	default:
		c.setStatus(StatusCommunicationError)
		return newError(ErrTypeGeneralCommunication,
			fmt.Sprintf("communication error from %s: %v", c.Name(), err), err)
	}
}
