package hnap

import "fmt"

// DeviceStatus tracks device reachability and health across calls, as far as
// the client can tell. Exactly one value is held per session; it is mutated
// only by the status machine in resolveState and the error classifier.
type DeviceStatus int

const (
	// StatusUnknown means no call has been made yet
	StatusUnknown DeviceStatus = iota
	// StatusDisconnected means the transport dropped the connection
	StatusDisconnected
	// StatusInitializing means a login handshake is in flight
	StatusInitializing
	// StatusOnline means the session is authenticated and usable
	StatusOnline
	// StatusCommunicationError means the last call failed at the transport
	StatusCommunicationError
	// StatusNeedsReboot means the scheduled reboot time has passed
	StatusNeedsReboot
	// StatusRebooting means a reboot was issued and the grace period is running
	StatusRebooting
	// StatusInternalError means the device answered with an error or garbage
	StatusInternalError
	// StatusInvalidPin means the device rejected the login PIN
	StatusInvalidPin
)

// String returns a human-readable name for the status
func (s DeviceStatus) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusDisconnected:
		return "Disconnected"
	case StatusInitializing:
		return "Initializing"
	case StatusOnline:
		return "Online"
	case StatusCommunicationError:
		return "Communication Error"
	case StatusNeedsReboot:
		return "Needs Reboot"
	case StatusRebooting:
		return "Rebooting"
	case StatusInternalError:
		return "Internal Error"
	case StatusInvalidPin:
		return "Invalid PIN"
	default:
		return fmt.Sprintf("DeviceStatus(%d)", s)
	}
}
