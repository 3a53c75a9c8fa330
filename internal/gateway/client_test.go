package gateway

import (
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"
)

// fakeEngine signs by prefixing the payload and accepts a single PIN.
func fakeEngine(t *testing.T, pin string) *httptest.Server {
    t.Helper()
    return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/sign/xml" || r.Method != http.MethodPost {
            http.NotFound(w, r)
            return
        }
        var req struct {
            Pin       string `json:"pin"`
            XMLBase64 string `json:"xml_base64"`
            CheckOnly bool   `json:"check_only"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            w.WriteHeader(http.StatusBadRequest)
            return
        }
        if req.Pin != pin {
            w.WriteHeader(http.StatusUnauthorized)
            return
        }
        if req.CheckOnly {
            w.WriteHeader(http.StatusOK)
            return
        }
        xml, err := base64.StdEncoding.DecodeString(req.XMLBase64)
        if err != nil {
            w.WriteHeader(http.StatusBadRequest)
            return
        }
        signed := append([]byte("<signed>"), xml...)
        _ = json.NewEncoder(w).Encode(map[string]string{
            "signed_xml_base64": base64.StdEncoding.EncodeToString(signed),
        })
    }))
}

func TestCheckPin(t *testing.T) {
    srv := fakeEngine(t, "1234")
    defer srv.Close()
    c := New(srv.URL, 5*time.Second)

    if err := c.CheckPin(context.Background(), "1234"); err != nil {
        t.Fatalf("valid pin: %v", err)
    }
    if err := c.CheckPin(context.Background(), "0000"); !errors.Is(err, ErrPinInvalid) {
        t.Fatalf("invalid pin: got %v, want ErrPinInvalid", err)
    }
}

func TestSignXML(t *testing.T) {
    srv := fakeEngine(t, "1234")
    defer srv.Close()
    c := New(srv.URL, 5*time.Second)

    signed, err := c.SignXML(context.Background(), "1234", []byte("<invoice/>"))
    if err != nil {
        t.Fatalf("SignXML: %v", err)
    }
    if string(signed) != "<signed><invoice/>" {
        t.Errorf("signed = %q", signed)
    }

    if _, err := c.SignXML(context.Background(), "0000", []byte("<invoice/>")); !errors.Is(err, ErrPinInvalid) {
        t.Fatalf("wrong pin: got %v, want ErrPinInvalid", err)
    }
}

func TestEngineUnavailable(t *testing.T) {
    broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusInternalServerError)
    }))
    defer broken.Close()
    c := New(broken.URL, 5*time.Second)

    if err := c.CheckPin(context.Background(), "1234"); !errors.Is(err, ErrUnavailable) {
        t.Fatalf("5xx check: got %v, want ErrUnavailable", err)
    }
    if _, err := c.SignXML(context.Background(), "1234", []byte("<x/>")); !errors.Is(err, ErrUnavailable) {
        t.Fatalf("5xx sign: got %v, want ErrUnavailable", err)
    }

    // Unreachable engine must also map to ErrUnavailable, not a bare
    // transport error.
    dead := New("http://127.0.0.1:1", time.Second)
    if err := dead.CheckPin(context.Background(), "1234"); !errors.Is(err, ErrUnavailable) {
        t.Fatalf("dial failure: got %v, want ErrUnavailable", err)
    }
}
