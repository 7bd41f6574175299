// Package provision pushes Wi-Fi client settings to a factory-fresh sensor.
//
// With the vendor cloud gone there is no supported way to join one of these
// sensors to a network. The device still exposes its setup surface over
// HNAP while acting as an access point: connect to its hotspot, log in with
// the PIN from the label, and push SetAPClientSettings. This package reuses
// the regular session core for that one-off flow.
package provision

import (
	"context"
	"crypto/aes"
	"encoding/hex"
	"fmt"

	"github.com/wrenhall/dchwatch/internal/hnap"
	"github.com/wrenhall/dchwatch/internal/soap"
)

// SupportedSecurity structures, pushed as raw XML parameter values (the one
// place the protocol nests structures inside a parameter).
const (
	securityNone = "<SecurityInfo><SecurityType>NONE</SecurityType><Encryptions><string>NONE</string></Encryptions></SecurityInfo>"
	securityWPA2 = "<SecurityInfo><SecurityType>WPA2-PSK</SecurityType><Encryptions><string>AES</string></Encryptions></SecurityInfo>"
)

// APSettings describes the access point the sensor should join.
type APSettings struct {
	SSID       string
	DeviceMAC  string // MAC address from the label on the back of the device
	Passphrase string // empty means an open network
}

// EncodeWiFiKey encodes a Wi-Fi passphrase the way the device's setup
// JavaScript does: AES-ECB with a key built from the first 32 hex characters
// of the session private key (decoded and zero-padded to 32 bytes), over the
// passphrase zero-padded to 64 bytes. Returns lowercase hex.
func EncodeWiFiKey(privateKey, passphrase string) (string, error) {
	if privateKey == "" {
		return "", fmt.Errorf("no private key; login first")
	}
	if len(privateKey) > 32 {
		privateKey = privateKey[:32]
	}
	keyBytes, err := hex.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("private key is not hex: %w", err)
	}
	key := make([]byte, 32)
	copy(key, keyBytes)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	if len(passphrase) > 64 {
		return "", fmt.Errorf("passphrase longer than 64 bytes")
	}
	plain := make([]byte, 64)
	copy(plain, passphrase)

	// ECB, block by block; the firmware offers nothing better
	encoded := make([]byte, len(plain))
	for i := 0; i < len(plain); i += aes.BlockSize {
		block.Encrypt(encoded[i:i+aes.BlockSize], plain[i:i+aes.BlockSize])
	}
	return hex.EncodeToString(encoded), nil
}

// Configure logs in to the sensor and pushes the access point settings.
// The returned response is whatever the device answered with; the firmware
// is not consistent about acknowledging this call before it switches
// networks.
func Configure(ctx context.Context, client *hnap.Client, ap APSettings) (soap.Response, error) {
	if err := client.Login(ctx); err != nil {
		return nil, err
	}

	security := securityWPA2
	passphrase := ap.Passphrase
	if passphrase == "" {
		security = securityNone
		// The firmware requires a key even on open networks
		passphrase = "x"
	}

	key, err := EncodeWiFiKey(client.PrivateKey(), passphrase)
	if err != nil {
		return nil, err
	}

	return client.Call(ctx, "SetAPClientSettings", []soap.Param{
		{Name: "RadioID", Value: "RADIO_2.4GHz"},
		{Name: "Enabled", Value: "true"},
		{Name: "SSID", Value: ap.SSID},
		{Name: "ChannelWidth", Value: "1"},
		{Name: "MacAddress", Value: ap.DeviceMAC},
		{Name: "Key", Value: key},
		{Name: "SupportedSecurity", Value: security},
	})
}
