// Package gateway wraps the external XML signing engine.  The engine is
// a stateless request/response collaborator: every call carries the PIN,
// and each invocation signs exactly one payload.  The client translates
// engine responses into two distinct outcomes callers must be able to
// tell apart — a rejected credential (ErrPinInvalid, retry with the
// correct PIN) and a broken engine (ErrUnavailable, abort and alert).
package gateway

import (
    "bytes"
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"
)

// ErrPinInvalid is returned when the engine rejects the supplied PIN.
var ErrPinInvalid = errors.New("signing engine rejected pin")

// ErrUnavailable is returned when the engine cannot be reached or
// answers with a server fault.
var ErrUnavailable = errors.New("signing engine unavailable")

// Client calls the signing engine over HTTP.
type Client struct {
    baseURL string
    http    *http.Client
}

// New returns a Client for the engine at baseURL.  The timeout bounds
// every call, including the body read.
func New(baseURL string, timeout time.Duration) *Client {
    if timeout <= 0 {
        timeout = 30 * time.Second
    }
    return &Client{
        baseURL: strings.TrimRight(baseURL, "/"),
        http:    &http.Client{Timeout: timeout},
    }
}

type signRequest struct {
    Pin       string `json:"pin"`
    XMLBase64 string `json:"xml_base64,omitempty"`
    CheckOnly bool   `json:"check_only,omitempty"`
}

type signResponse struct {
    SignedXMLBase64 string `json:"signed_xml_base64"`
}

func (c *Client) post(ctx context.Context, req signRequest) (*http.Response, error) {
    body, err := json.Marshal(req)
    if err != nil {
        return nil, err
    }
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sign/xml", bytes.NewReader(body))
    if err != nil {
        return nil, err
    }
    httpReq.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(httpReq)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
    }
    return resp, nil
}

// CheckPin validates the PIN against the engine without signing
// anything.  Returns nil when the PIN is accepted.
func (c *Client) CheckPin(ctx context.Context, pin string) error {
    resp, err := c.post(ctx, signRequest{Pin: pin, CheckOnly: true})
    if err != nil {
        return err
    }
    defer resp.Body.Close()
    switch {
    case resp.StatusCode == http.StatusOK:
        return nil
    case resp.StatusCode == http.StatusUnauthorized:
        return ErrPinInvalid
    default:
        return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
    }
}

// SignXML submits one XML payload for signing and returns the signed
// bytes.  The engine signs one payload per invocation; batches are the
// orchestrator's concern.
func (c *Client) SignXML(ctx context.Context, pin string, xml []byte) ([]byte, error) {
    resp, err := c.post(ctx, signRequest{Pin: pin, XMLBase64: base64.StdEncoding.EncodeToString(xml)})
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()
    switch {
    case resp.StatusCode == http.StatusOK:
        // fall through to decode
    case resp.StatusCode == http.StatusUnauthorized:
        return nil, ErrPinInvalid
    default:
        return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
    }
    var out signResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
    }
    signed, err := base64.StdEncoding.DecodeString(out.SignedXMLBase64)
    if err != nil {
        return nil, fmt.Errorf("%w: malformed signed payload: %v", ErrUnavailable, err)
    }
    if len(signed) == 0 {
        return nil, fmt.Errorf("%w: empty signed payload", ErrUnavailable)
    }
    return signed, nil
}
