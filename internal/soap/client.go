// Package soap implements the HNAP SOAP envelope codec and the HTTP
// transport that carries it.
//
// HNAP is a SOAP 1.1-style protocol: every call is an HTTP POST to
// http://<host>/HNAP1 with a SOAPAction header naming the method and an
// envelope whose body holds one element per parameter. The codec is
// deliberately forgiving on decode because the devices emit malformed
// responses while rebooting or under load.
package soap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wrenhall/dchwatch/internal/logging"
)

const endpointPath = "/HNAP1"

// Client is a minimal SOAP transport bound to one device endpoint.
//
// The client is stateless: authentication headers are supplied per call by
// the session layer that owns the credentials. One instance may be shared by
// every operation against the same device.
type Client struct {
	// Address is the full endpoint URL (e.g. "http://10.1.1.1/HNAP1")
	Address string

	// HTTPClient is the underlying HTTP client. Timeouts are applied per
	// call via context, not on the client, because reboot calls need a
	// much longer deadline than ordinary calls on the same session.
	HTTPClient *http.Client
}

// NewClient creates a transport for the device at the given host (IP or
// hostname, optionally with port).
func NewClient(host string) *Client {
	return &Client{
		Address:    fmt.Sprintf("http://%s%s", host, endpointPath),
		HTTPClient: &http.Client{},
	}
}

// NewClientURL creates a transport from a full base URL. Used by tests to
// point the transport at a local mock device.
func NewClientURL(baseURL string) *Client {
	return &Client{
		Address:    baseURL + endpointPath,
		HTTPClient: &http.Client{},
	}
}

// Call performs one HNAP method call and decodes the response.
//
// The extra headers carry the session cookie and per-request auth token when
// the caller has them. Transport errors are returned unwrapped so the session
// layer can classify them (DNS failure, refused connection, timeout, and so
// on are all handled differently by the status machine).
func (c *Client) Call(ctx context.Context, method string, timeout time.Duration, params []Param, headers map[string]string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Address, strings.NewReader(EncodeRequest(method, params)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+ActionNamespace+method+`"`)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	logging.LogSOAPCall(c.Address, method, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// The device does not use HTTP status codes consistently; error pages
	// fail envelope decoding instead.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return DecodeResponse(body, method)
}
