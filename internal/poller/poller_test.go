package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/wrenhall/dchwatch/internal/hnap"
)

const (
	testPIN       = "123456"
	testChallenge = "453409S0A6EBBDER"
	testPublicKey = "2F3A8C0E9D41B765"
	testCookie    = "50610A925EC5"
)

var loginPasswordRe = regexp.MustCompile(`<LoginPassword>(.*?)</LoginPassword>`)

// startDevice runs a minimal mock sensor: real login handshake plus the two
// methods a poll cycle needs.
func startDevice(t *testing.T, detectTime string) *httptest.Server {
	respond := func(w http.ResponseWriter, method, inner string) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+
			`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`+
			`<soap:Body><%sResponse xmlns="http://purenetworks.com/HNAP1/">%s</%sResponse></soap:Body>`+
			`</soap:Envelope>`, method, inner, method)
	}

	wantHash := hnap.ComputeLoginHash(hnap.ComputePrivateKey(testPublicKey, testPIN, testChallenge), testChallenge)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		switch action := r.Header.Get("SOAPAction"); {
		case action == `"http://purenetworks.com/HNAP1/Login"`:
			if match := loginPasswordRe.FindSubmatch(body); match != nil && string(match[1]) == wantHash {
				respond(w, "Login", "<LoginResult>success</LoginResult>")
			} else {
				respond(w, "Login",
					"<Challenge>"+testChallenge+"</Challenge>"+
						"<Cookie>"+testCookie+"</Cookie>"+
						"<PublicKey>"+testPublicKey+"</PublicKey>")
			}
		case action == `"http://purenetworks.com/HNAP1/GetDeviceSettings"`:
			respond(w, "GetDeviceSettings",
				"<ModelName>DCH-S150</ModelName><DeviceName>Hallway sensor</DeviceName>")
		case action == `"http://purenetworks.com/HNAP1/GetLatestDetection"`:
			respond(w, "GetLatestDetection", "<LatestDetectTime>"+detectTime+"</LatestDetectTime>")
		default:
			respond(w, "Unknown", "")
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRefresh_Success(t *testing.T) {
	server := startDevice(t, "1700000000")
	client := hnap.NewClientURL(server.URL, testPIN)
	p := New(client, time.Second, 30)

	var updates []Update
	p.AddListener(func(u Update) { updates = append(updates, u) })

	update := p.Refresh(context.Background())
	if update.Err != nil {
		t.Fatalf("Refresh() error = %v", update.Err)
	}
	if !update.Data.LastDetection.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("LastDetection = %v, want %v", update.Data.LastDetection, time.Unix(1700000000, 0))
	}
	if update.Data.ModelName != "DCH-S150" {
		t.Errorf("ModelName = %q, want DCH-S150", update.Data.ModelName)
	}

	data, ok := p.Data()
	if !ok {
		t.Fatal("Data() should report a snapshot after a successful poll")
	}
	if data.DeviceName != "Hallway sensor" {
		t.Errorf("DeviceName = %q", data.DeviceName)
	}
	if !p.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after a successful poll")
	}
	if p.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", p.LastError())
	}
	if len(updates) != 1 {
		t.Errorf("listener called %d times, want 1", len(updates))
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	server := startDevice(t, "1700000000")
	client := hnap.NewClientURL(server.URL, testPIN)
	p := New(client, time.Second, 30)
	ctx := context.Background()

	if update := p.Refresh(ctx); update.Err != nil {
		t.Fatalf("Refresh() error = %v", update.Err)
	}

	// Device goes away mid-session; the old snapshot must survive
	server.Close()
	update := p.Refresh(ctx)
	if update.Err == nil {
		t.Fatal("Refresh() should fail after the device is gone")
	}
	if update.Data.ModelName != "DCH-S150" {
		t.Error("failed update should carry the previous snapshot")
	}

	if _, ok := p.Data(); !ok {
		t.Error("Data() should keep reporting the last good snapshot")
	}
	if p.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after a failed poll")
	}
	if p.LastError() == nil {
		t.Error("LastError() = nil after a failed poll")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	server := startDevice(t, "1700000000")
	client := hnap.NewClientURL(server.URL, testPIN)
	p := New(client, 10*time.Millisecond, 30)

	polls := 0
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	p.AddListener(func(Update) {
		polls++
		if polls >= 3 {
			cancel()
		}
	})

	go func() {
		defer close(done)
		if err := p.Run(ctx); err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if polls < 3 {
		t.Errorf("saw %d polls, want at least 3", polls)
	}
}

func TestTriggered(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	backoff := 30 * time.Second

	tests := []struct {
		name          string
		lastDetection time.Time
		want          bool
	}{
		{"just detected", now.Add(-time.Second), true},
		{"inside the window", now.Add(-29 * time.Second), true},
		{"window expired", now.Add(-31 * time.Second), false},
		{"exactly at the deadline", now.Add(-30 * time.Second), false},
		{"no known detection", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Triggered(tt.lastDetection, backoff, now); got != tt.want {
				t.Errorf("Triggered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPoller_Triggered(t *testing.T) {
	server := startDevice(t, "1700000000")
	client := hnap.NewClientURL(server.URL, testPIN)
	p := New(client, time.Second, 30)

	// No snapshot yet: never triggered
	if p.Triggered(time.Now()) {
		t.Error("Triggered() = true before the first poll")
	}

	if update := p.Refresh(context.Background()); update.Err != nil {
		t.Fatalf("Refresh() error = %v", update.Err)
	}

	detected := time.Unix(1700000000, 0)
	if !p.Triggered(detected.Add(10 * time.Second)) {
		t.Error("Triggered() = false inside the backoff window")
	}
	if p.Triggered(detected.Add(60 * time.Second)) {
		t.Error("Triggered() = true after the backoff window")
	}
}
