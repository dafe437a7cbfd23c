package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sendrec/askvideo/internal/httputil"
)

func TestSecurityHeaders_CSPContainsNonce(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	var capturedNonce string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedNonce = httputil.Nonce(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-"+capturedNonce+"'") {
		t.Errorf("CSP should contain nonce, got: %s", csp)
	}
	if capturedNonce == "" {
		t.Error("expected non-empty nonce in context")
	}
}

func TestSecurityHeaders_CSPOmitsUnsafeInline(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	csp := rec.Header().Get("Content-Security-Policy")
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_CSPConnectsOnlyToSelf(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self';") {
		t.Errorf("CSP connect-src should be just 'self', got: %s", csp)
	}
}

func TestSecurityHeaders_FrameOptionsDroppedForExtensionAncestor(t *testing.T) {
	handler := securityHeaders(SecurityConfig{
		BaseURL:               "http://localhost:8080",
		AllowedFrameAncestors: "chrome-extension://abcdefghijklmnop",
	})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	if xfo := rec.Header().Get("X-Frame-Options"); xfo != "" {
		t.Errorf("X-Frame-Options would block the extension frame, got: %s", xfo)
	}
}

func TestSecurityHeaders_FrameOptionsSameOriginByDefault(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "http://localhost:8080"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	if xfo := rec.Header().Get("X-Frame-Options"); xfo != "SAMEORIGIN" {
		t.Errorf("expected X-Frame-Options SAMEORIGIN, got: %q", xfo)
	}
}

func TestSecurityHeaders_NonceInContext(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	var nonce string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = httputil.Nonce(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	if nonce == "" {
		t.Error("expected non-empty nonce in request context")
	}
}

func TestSecurityHeaders_UniqueNoncePerRequest(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	var nonces []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonces = append(nonces, httputil.Nonce(r.Context()))
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		handler(inner).ServeHTTP(rec, req)
	}

	if nonces[0] == nonces[1] || nonces[1] == nonces[2] {
		t.Errorf("expected unique nonces per request, got %v", nonces)
	}
}

func TestSecurityHeaders_PermissionsPolicyAllowsMicrophone(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	pp := rec.Header().Get("Permissions-Policy")
	if !strings.Contains(pp, "microphone=(self)") {
		t.Errorf("Permissions-Policy should allow microphone=(self), got: %s", pp)
	}
	if !strings.Contains(pp, "camera=()") {
		t.Errorf("Permissions-Policy should deny the camera, got: %s", pp)
	}
}

func TestSecurityHeaders_HSTSOnHTTPS(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	hsts := rec.Header().Get("Strict-Transport-Security")
	if hsts == "" {
		t.Error("expected HSTS header for HTTPS base URL")
	}
}

func TestSecurityHeaders_NoHSTSOnHTTP(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "http://localhost:8080"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)

	hsts := rec.Header().Get("Strict-Transport-Security")
	if hsts != "" {
		t.Errorf("expected no HSTS for HTTP base URL, got: %s", hsts)
	}
}

func TestSecurityHeaders_FrameAncestorsDefault(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self'") {
		t.Errorf("CSP should contain frame-ancestors 'self', got: %s", csp)
	}
}

func TestSecurityHeaders_FrameAncestorsCustom(t *testing.T) {
	handler := securityHeaders(SecurityConfig{
		BaseURL:               "https://app.test",
		AllowedFrameAncestors: "chrome-extension://abcdefghijklmnop moz-extension://1234",
	})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(inner).ServeHTTP(rec, req)
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self' chrome-extension://abcdefghijklmnop moz-extension://1234") {
		t.Errorf("CSP should contain custom frame-ancestors, got: %s", csp)
	}
}
