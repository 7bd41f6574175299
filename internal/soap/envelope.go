package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ActionNamespace is the HNAP action namespace. The SOAPAction header for a
// method is this literal plus the method name, wrapped in double quotes.
const ActionNamespace = "http://purenetworks.com/HNAP1/"

// ErrNoEnvelope indicates the response body could not be interpreted as a
// SOAP envelope at all (non-XML body, HTML error page, or empty response).
var ErrNoEnvelope = errors.New("response contains no SOAP envelope")

// ErrNoResponseElement indicates the envelope parsed but did not contain the
// expected <Method>Response element inside the body.
var ErrNoResponseElement = errors.New("response element not found in SOAP body")

// Param is a single named request parameter. Parameters are kept in a slice
// rather than a map so they reach the wire in the order the caller supplied.
type Param struct {
	Name  string
	Value string
}

// Response is the flat tag-to-value mapping decoded from a SOAP response.
// A child element that itself contains elements (the SOAPActions list is the
// only known case) flattens to its leaf text values joined by newlines.
type Response map[string]string

const requestTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope
 xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
 xmlns:xsd="http://www.w3.org/2001/XMLSchema"
 xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
 soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <soap:Body>
    <%s xmlns="http://purenetworks.com/HNAP1/">%s</%s>
  </soap:Body>
</soap:Envelope>
`

// EncodeRequest builds the request body for an HNAP method call.
//
// Parameter values are inserted verbatim, with no XML escaping. This is the
// documented protocol escape hatch: a value beginning with '<' is raw XML
// (device provisioning relies on it for the SupportedSecurity structure).
// Callers must pre-escape any value that could contain markup characters.
func EncodeRequest(method string, params []Param) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString("<")
		b.WriteString(p.Name)
		b.WriteString(">")
		b.WriteString(p.Value)
		b.WriteString("</")
		b.WriteString(p.Name)
		b.WriteString(">")
	}
	return fmt.Sprintf(requestTemplate, method, b.String(), method)
}

// DecodeResponse parses a SOAP response body and returns the mapping found at
// Envelope/Body/<method>Response.
//
// A body with no envelope element returns ErrNoEnvelope. A body that starts
// as XML but is malformed returns the underlying *xml.SyntaxError, which the
// caller classifies separately (the device is known to emit truncated XML
// while misbehaving).
func DecodeResponse(body []byte, method string) (Response, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	root, err := nextStart(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoEnvelope
		}
		return nil, err
	}
	if root.Name.Local != "Envelope" {
		return nil, ErrNoEnvelope
	}

	if err := seekElement(dec, "Body"); err != nil {
		return nil, err
	}
	if err := seekElement(dec, method+"Response"); err != nil {
		return nil, err
	}

	res := Response{}
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoResponseElement
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := elementText(dec)
			if err != nil {
				return nil, err
			}
			res[t.Name.Local] = val
		case xml.EndElement:
			// End of the response element
			return res, nil
		}
	}
}

// nextStart advances the decoder to the next start element.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// seekElement advances the decoder until a start element with the given local
// name is consumed. Namespace prefixes vary across firmware revisions, so
// only local names are compared.
func seekElement(dec *xml.Decoder, local string) error {
	for {
		start, err := nextStart(dec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrNoResponseElement
			}
			return err
		}
		if start.Name.Local == local {
			return nil
		}
		if err := dec.Skip(); err != nil {
			return err
		}
	}
}

// elementText consumes the current element to its end tag and returns its
// text content. Leaf text of nested elements is joined with newlines.
func elementText(dec *xml.Decoder) (string, error) {
	var leaves []string
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				leaves = append(leaves, s)
			}
		}
	}
	return strings.Join(leaves, "\n"), nil
}
