// Package hnap implements an authenticated client session for the HNAP
// protocol spoken by D-Link DCH-S150 motion and DCH-S160 water-leak sensors.
//
// The package has four cooperating pieces:
//
//   - a challenge-response authenticator implementing the two-phase HNAP
//     login (request a challenge, answer with an HMAC-MD5 keyed hash derived
//     from the device PIN)
//   - a per-request token generator that signs every authenticated call with
//     a timestamped HMAC-MD5 token in the HNAP_AUTH header
//   - a device status state machine that decides, before each call, whether
//     to (re)authenticate, trigger the scheduled nightly reboot, block while
//     a reboot is in progress, or proceed
//   - typed operations wrapping the individual HNAP methods (device
//     settings, detector settings, time settings, latest detection, reboot)
//
// # Failure handling
//
// These devices are unstable by design: they reboot themselves nightly, drop
// sessions, and return malformed XML under load. Every transport or decode
// failure is classified into one of a closed set of typed errors, and each
// classification also records a device status so the next call can react
// without re-deriving context. Nothing is retried internally; a failed call
// surfaces its typed error to the caller, who retries on the next poll.
//
// # Usage
//
//	client := hnap.NewClient("10.1.1.1", "123456")
//	client.SetTimeSettings(hnap.DefaultTimeSettings())
//
//	snapshot, err := client.Data(ctx)
//	if err != nil {
//	    if hnap.IsRebootingError(err) {
//	        // device is mid-reboot; just poll again later
//	    }
//	    ...
//	}
//
// The first call on a session authenticates automatically and runs a
// one-time initialization: the device identity is captured and the desired
// time and detector settings are pushed.
//
// # Concurrency
//
// A Client serves one cooperative caller. Calls on the same Client must be
// serialized (one poll in flight at a time); the state machine has no
// internal locking because no two transitions may interleave for the same
// device. Separate devices are fully independent.
package hnap
