package hnap

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wrenhall/dchwatch/internal/soap"
)

// The HNAP handshake signs everything with HMAC-MD5 and exchanges the digests
// as uppercase hex. MD5 is what the firmware implements; there is no
// negotiating with it.

func hmacMD5Hex(key, message string) string {
	mac := hmac.New(md5.New, []byte(key))
	mac.Write([]byte(message))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// ComputePrivateKey derives the session private key from the login
// challenge: HMAC-MD5 keyed with PublicKey+PIN over the challenge string.
func ComputePrivateKey(publicKey, pin, challenge string) string {
	return hmacMD5Hex(publicKey+pin, challenge)
}

// ComputeLoginHash derives the password submitted in the second login phase:
// HMAC-MD5 keyed with the private key over the same challenge.
func ComputeLoginHash(privateKey, challenge string) string {
	return hmacMD5Hex(privateKey, challenge)
}

// ComputeAuthToken derives the per-request HNAP_AUTH token for a method call
// at the given Unix timestamp.
func ComputeAuthToken(privateKey, method string, timestamp int64) string {
	return hmacMD5Hex(privateKey, fmt.Sprintf(`%d"%s%s"`, timestamp, soap.ActionNamespace, method))
}
