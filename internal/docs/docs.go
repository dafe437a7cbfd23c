// Package docs serves the OpenAPI description of the panel API and a Scalar
// reference page for it.
package docs

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sendrec/askvideo/internal/httputil"
)

const (
	specPath  = "/api/docs/openapi.yaml"
	scalarCDN = "https://cdn.jsdelivr.net"
)

//go:embed openapi.yaml
var specYAML []byte

func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(specYAML)
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en"><head>
  <title>Ask Video API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="{{.SpecURL}}"></script>
  <script src="{{.ScriptURL}}"{{with .Nonce}} nonce="{{.}}"{{end}}></script>
</body></html>`))

// HandleDocs replaces the panel policy: Scalar loads from the CDN and styles
// itself at runtime.
func HandleDocs(w http.ResponseWriter, r *http.Request) {
	nonce := httputil.Nonce(r.Context())
	csp := httputil.Policy{
		Nonce:         nonce,
		ScriptSources: []string{scalarCDN},
		StyleSources:  []string{scalarCDN},
		FontSources:   []string{scalarCDN, "data:"},
		InlineStyles:  true,
	}
	w.Header().Set("Content-Security-Policy", csp.String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := docsPage.Execute(w, struct {
		SpecURL   string
		ScriptURL string
		Nonce     string
	}{specPath, scalarCDN + "/npm/@scalar/api-reference", nonce})
	if err != nil {
		slog.Error("docs: render page failed", "error", err)
	}
}
