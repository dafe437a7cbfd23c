package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

type nonceCtxKey struct{}

// NewNonce returns 16 random bytes in unpadded base64url.
func NewNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceCtxKey{}, nonce)
}

// Nonce is the request's CSP nonce, or "" when none was issued.
func Nonce(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceCtxKey{}).(string)
	return nonce
}

// Policy assembles a Content-Security-Policy header value. An empty nonce
// leaves inline scripts and styles blocked.
type Policy struct {
	Nonce         string
	ScriptSources []string
	StyleSources  []string
	FontSources   []string
	// InlineStyles allows style attributes injected at runtime. Browsers
	// ignore 'unsafe-inline' next to a nonce, so the nonce is left out of
	// style-src.
	InlineStyles   bool
	FrameAncestors string
}

func (p Policy) String() string {
	script := append([]string{"'self'"}, p.ScriptSources...)
	style := append([]string{"'self'"}, p.StyleSources...)
	if p.Nonce != "" {
		script = append(script, "'nonce-"+p.Nonce+"'")
	}
	switch {
	case p.InlineStyles:
		style = append(style, "'unsafe-inline'")
	case p.Nonce != "":
		style = append(style, "'nonce-"+p.Nonce+"'")
	}
	ancestors := p.FrameAncestors
	if ancestors == "" {
		ancestors = "'self'"
	}

	var b strings.Builder
	b.WriteString("default-src 'self'; img-src 'self' data:; ")
	fmt.Fprintf(&b, "script-src %s; style-src %s; ", strings.Join(script, " "), strings.Join(style, " "))
	if len(p.FontSources) > 0 {
		fmt.Fprintf(&b, "font-src 'self' %s; ", strings.Join(p.FontSources, " "))
	}
	fmt.Fprintf(&b, "connect-src 'self'; frame-ancestors %s;", ancestors)
	return b.String()
}
