package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/wrenhall/dchwatch/internal/hnap"
)

const (
	testPIN        = "123456"
	testChallenge  = "453409S0A6EBBDER"
	testPublicKey  = "2F3A8C0E9D41B765"
	testCookie     = "50610A925EC5"
	testPrivateKey = "AE865C7E382AB6E3AD7802B41C7C2362"
)

// Vectors computed independently: AES-256-ECB, key = first 16 bytes of the
// decoded private key zero-padded to 32, plaintext = passphrase zero-padded
// to 64 bytes.
const (
	encodedPlaceholderKey = "b115d3fe28f8df914572ed503549fbd1a820c2bb6b11c3202c45aa0d05e71571a820c2bb6b11c3202c45aa0d05e71571a820c2bb6b11c3202c45aa0d05e71571"
	encodedHunter2Key     = "061af487e838f458295240bb2db73351a820c2bb6b11c3202c45aa0d05e71571a820c2bb6b11c3202c45aa0d05e71571a820c2bb6b11c3202c45aa0d05e71571"
)

func TestEncodeWiFiKey(t *testing.T) {
	got, err := EncodeWiFiKey(testPrivateKey, "hunter2")
	if err != nil {
		t.Fatalf("EncodeWiFiKey() error = %v", err)
	}
	if got != encodedHunter2Key {
		t.Errorf("EncodeWiFiKey() = %s, want %s", got, encodedHunter2Key)
	}

	// 64 plaintext bytes encode to 128 hex characters, always lowercase
	if len(got) != 128 {
		t.Errorf("encoded key length = %d, want 128", len(got))
	}
	if got != strings.ToLower(got) {
		t.Errorf("encoded key not lowercase: %s", got)
	}
}

func TestEncodeWiFiKey_Errors(t *testing.T) {
	if _, err := EncodeWiFiKey("", "secret"); err == nil {
		t.Error("empty private key should fail")
	}
	if _, err := EncodeWiFiKey("not-hex!", "secret"); err == nil {
		t.Error("non-hex private key should fail")
	}
	if _, err := EncodeWiFiKey(testPrivateKey, strings.Repeat("a", 65)); err == nil {
		t.Error("over-long passphrase should fail")
	}
}

var loginPasswordRe = regexp.MustCompile(`<LoginPassword>(.*?)</LoginPassword>`)

// startSetupDevice runs a mock sensor in its out-of-the-box state: login
// handshake, identity read, and SetAPClientSettings. The returned pointer
// captures the raw SetAPClientSettings request body.
func startSetupDevice(t *testing.T) (*httptest.Server, *string) {
	var apBody string

	respond := func(w http.ResponseWriter, method, inner string) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+
			`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`+
			`<soap:Body><%sResponse xmlns="http://purenetworks.com/HNAP1/">%s</%sResponse></soap:Body>`+
			`</soap:Envelope>`, method, inner, method)
	}
	wantHash := hnap.ComputeLoginHash(testPrivateKey, testChallenge)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)

		switch action := r.Header.Get("SOAPAction"); {
		case action == `"http://purenetworks.com/HNAP1/Login"`:
			if match := loginPasswordRe.FindStringSubmatch(body); match != nil && match[1] == wantHash {
				respond(w, "Login", "<LoginResult>success</LoginResult>")
			} else {
				respond(w, "Login",
					"<Challenge>"+testChallenge+"</Challenge>"+
						"<Cookie>"+testCookie+"</Cookie>"+
						"<PublicKey>"+testPublicKey+"</PublicKey>")
			}
		case action == `"http://purenetworks.com/HNAP1/GetDeviceSettings"`:
			respond(w, "GetDeviceSettings", "<ModelName>DCH-S150</ModelName>")
		case action == `"http://purenetworks.com/HNAP1/SetAPClientSettings"`:
			apBody = body
			respond(w, "SetAPClientSettings", "<SetAPClientSettingsResult>OK</SetAPClientSettingsResult>")
		default:
			respond(w, "Unknown", "")
		}
	}))
	t.Cleanup(server.Close)
	return server, &apBody
}

func TestConfigure(t *testing.T) {
	server, apBody := startSetupDevice(t)

	client := hnap.NewClientURL(server.URL, testPIN)
	resp, err := Configure(context.Background(), client, APSettings{
		SSID:       "HomeNet",
		DeviceMAC:  "C4:12:F5:D8:78:7E",
		Passphrase: "hunter2",
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if resp["SetAPClientSettingsResult"] != "OK" {
		t.Errorf("result = %q, want OK", resp["SetAPClientSettingsResult"])
	}

	if *apBody == "" {
		t.Fatal("SetAPClientSettings never reached the device")
	}
	for _, want := range []string{
		"<SSID>HomeNet</SSID>",
		"<MacAddress>C4:12:F5:D8:78:7E</MacAddress>",
		"<Key>" + encodedHunter2Key + "</Key>",
		// The security structure goes over the wire as raw nested XML
		"<SupportedSecurity><SecurityInfo><SecurityType>WPA2-PSK</SecurityType>",
	} {
		if !strings.Contains(*apBody, want) {
			t.Errorf("request body missing %s:\n%s", want, *apBody)
		}
	}
}

func TestConfigure_OpenNetwork(t *testing.T) {
	server, apBody := startSetupDevice(t)

	client := hnap.NewClientURL(server.URL, testPIN)
	_, err := Configure(context.Background(), client, APSettings{
		SSID:      "CoffeeShop",
		DeviceMAC: "C4:12:F5:D8:78:7E",
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	// Open network: NONE security, and the firmware's mandatory dummy key
	if !strings.Contains(*apBody, "<SecurityType>NONE</SecurityType>") {
		t.Errorf("open network should use NONE security:\n%s", *apBody)
	}
	if !strings.Contains(*apBody, "<Key>"+encodedPlaceholderKey+"</Key>") {
		t.Errorf("open network should carry the encoded placeholder key:\n%s", *apBody)
	}
}
