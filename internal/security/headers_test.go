package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(mw gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(mw)
	r.Handle(method, "/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(method, "/test", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHeadersMiddleware(t *testing.T) {
	w := serve(HeadersMiddleware(), http.MethodGet, "")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantOrigin  bool
		credentials string
	}{
		{"listed origin", []string{"https://app.example.com/"}, "https://app.example.com", true, "true"},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", false, ""},
		{"wildcard", []string{"*"}, "https://anything.example", true, ""},
		{"no origin", []string{"*"}, "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(CORSMiddleware(tt.allowed), http.MethodGet, tt.origin)
			require.Equal(t, http.StatusOK, w.Code)
			if tt.wantOrigin {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Sender-ID")
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
			assert.Equal(t, tt.credentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	w := serve(CORSMiddleware([]string{"*"}), http.MethodOptions, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

type fakeResolver map[string][]string

func (f fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]netip.Addr, len(ips))
	for i, s := range ips {
		out[i] = netip.MustParseAddr(s)
	}
	return out, nil
}

func TestValidateUpstreamURL(t *testing.T) {
	dns := fakeResolver{
		"api.exchangerate-api.com": {"104.21.3.4"},
		"rates.internal.corp":      {"10.0.0.7"},
		"mixed.example.com":        {"93.184.216.34", "::ffff:127.0.0.1"},
	}

	tests := []struct {
		url     string
		wantErr string
	}{
		{"https://api.exchangerate-api.com/v4/latest/", ""},
		{"http://api.exchangerate-api.com/v4/latest/", "https"},
		{"https://localhost:8443/", "not allowed"},
		{"https://127.0.0.1/", "loopback"},
		{"https://[fe80::1]/", "link-local"},
		{"https://169.254.169.254/latest", "link-local"},
		{"https://rates.internal.corp/", "private"},
		{"https://mixed.example.com/", "loopback"},
		{"https://unknown.example.com/", "cannot resolve"},
		{"https:///nohost", "must have a host"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateUpstreamURL(context.Background(), tt.url, dns)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
