package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendrec/askvideo/internal/httputil"
)

type SecurityConfig struct {
	BaseURL string
	// AllowedFrameAncestors is a space-separated list of origins allowed to
	// embed the panel, typically the extension's own origin.
	AllowedFrameAncestors string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := cfg.BaseURL != "" && hasHTTPS(cfg.BaseURL)

	frameAncestors := "'self'"
	if extra := strings.TrimSpace(cfg.AllowedFrameAncestors); extra != "" {
		frameAncestors += " " + extra
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			nonce, err := httputil.NewNonce()
			if err != nil {
				slog.Error("security: nonce generation failed", "error", err)
			} else {
				ctx = httputil.WithNonce(ctx, nonce)
			}

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			if frameAncestors == "'self'" {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			}
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(self), geolocation=(), screen-wake-lock=(), display-capture=()")

			csp := httputil.Policy{Nonce: nonce, FrameAncestors: frameAncestors}
			w.Header().Set("Content-Security-Policy", csp.String())

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}
