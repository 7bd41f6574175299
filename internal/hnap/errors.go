package hnap

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Error types for HNAP device communication

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeAuthentication indicates the PIN was rejected or the login
	// sequence failed unexpectedly
	ErrTypeAuthentication ErrorType = iota
	// ErrTypeGeneralCommunication indicates a malformed or unexpected
	// response shape, a dropped connection, or an uncategorized failure
	ErrTypeGeneralCommunication
	// ErrTypeDeviceReturned indicates the device answered with an explicit
	// ERROR marker in an otherwise valid response
	ErrTypeDeviceReturned
	// ErrTypeRebooting indicates the device is mid-reboot or was just told
	// to reboot; calls must be deferred
	ErrTypeRebooting
	// ErrTypeResolveHost indicates DNS resolution failed for the host
	ErrTypeResolveHost
	// ErrTypeConnect indicates the connection was refused or timed out
	ErrTypeConnect
	// ErrTypeInvalidState indicates state-machine inconsistency the design
	// does not otherwise expect
	ErrTypeInvalidState
	// ErrTypeUnsupportedDevice indicates a model identifier that is not
	// recognized
	ErrTypeUnsupportedDevice
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeAuthentication:
		return "Authentication Error"
	case ErrTypeGeneralCommunication:
		return "Communication Error"
	case ErrTypeDeviceReturned:
		return "Device Returned Error"
	case ErrTypeRebooting:
		return "Rebooting"
	case ErrTypeResolveHost:
		return "Unable To Resolve Host"
	case ErrTypeConnect:
		return "Unable To Connect"
	case ErrTypeInvalidState:
		return "Invalid Device State"
	case ErrTypeUnsupportedDevice:
		return "Unsupported Device Type"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents a failure while talking to an HNAP device
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

func errType(err error) (ErrorType, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he.Type, true
	}
	return 0, false
}

// IsAuthenticationError checks if an error is a login/PIN failure
func IsAuthenticationError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeAuthentication
}

// IsGeneralCommunicationError checks if an error is a transport or
// response-shape failure
func IsGeneralCommunicationError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeGeneralCommunication
}

// IsDeviceReturnedError checks if an error is an explicit device ERROR reply
func IsDeviceReturnedError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeDeviceReturned
}

// IsRebootingError checks if an error means the device is mid-reboot and the
// call should simply be retried on a later cycle
func IsRebootingError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeRebooting
}

// IsResolveHostError checks if an error is a DNS resolution failure
func IsResolveHostError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeResolveHost
}

// IsConnectError checks if an error is a refused or timed-out connection
func IsConnectError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeConnect
}

// IsInvalidStateError checks if an error is a state-machine guard failure
func IsInvalidStateError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeInvalidState
}

// IsUnsupportedDeviceError checks if an error means the device model is not
// one of the recognized identifiers
func IsUnsupportedDeviceError(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrTypeUnsupportedDevice
}

// isDisconnect reports whether a transport error looks like the device
// dropped an established connection (it does this when it reboots itself).
func isDisconnect(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.EPIPE)
	}
	return false
}

// isDNSFailure reports whether a transport error is a name-resolution failure
func isDNSFailure(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefused reports whether the device actively refused the
// connection (typical for the first ~40s of a reboot)
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
