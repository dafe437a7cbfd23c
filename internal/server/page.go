package server

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sendrec/askvideo/internal/httputil"
	"github.com/sendrec/askvideo/internal/panel"
	"github.com/sendrec/askvideo/internal/validate"
)

type panelPageData struct {
	Nonce       string
	DarkMode    bool
	Suggestions []string
	MaxQuestion int
}

var panelPageTemplate = template.Must(template.New("panel").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Ask about this video</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            font-size: 14px;
            background: #ffffff;
            color: #0f172a;
            display: flex;
            flex-direction: column;
            height: 100vh;
        }
        body.dark { background: #0f172a; color: #e2e8f0; }
        header {
            display: flex;
            align-items: center;
            justify-content: space-between;
            padding: 8px 12px;
            border-bottom: 1px solid #cbd5e1;
        }
        #status { font-size: 12px; color: #64748b; }
        #status.error { color: #dc2626; }
        #messages { flex: 1; overflow-y: auto; padding: 12px; }
        .message { margin-bottom: 10px; line-height: 1.4; white-space: pre-wrap; }
        .message.user { text-align: right; color: #2563eb; }
        .timestamp { color: #2563eb; cursor: pointer; text-decoration: underline; }
        .suggestions { display: flex; flex-wrap: wrap; gap: 6px; padding: 0 12px 8px; }
        .suggestions button, header button {
            border: 1px solid #cbd5e1;
            background: transparent;
            color: inherit;
            border-radius: 12px;
            padding: 2px 10px;
            cursor: pointer;
        }
        form { display: flex; gap: 6px; padding: 8px 12px; border-top: 1px solid #cbd5e1; }
        form input { flex: 1; padding: 6px 8px; }
        #mic.listening { background: #dc2626; color: #ffffff; }
    </style>
</head>
<body{{if .DarkMode}} class="dark"{{end}}>
    <header>
        <span id="status">Connecting...</span>
        <span>
            <button type="button" id="clear-cache">Clear cache</button>
            <button type="button" id="theme">Theme</button>
        </span>
    </header>
    <div id="messages"></div>
    <div class="suggestions">
        {{range .Suggestions}}<button type="button" data-suggestion="{{.}}">{{.}}</button>{{end}}
    </div>
    <form id="ask">
        <input id="question" maxlength="{{.MaxQuestion}}" placeholder="Ask a question about this video" disabled>
        <button type="button" id="mic" disabled>Mic</button>
        <button type="submit" id="send" disabled>Send</button>
    </form>
    <script nonce="{{.Nonce}}">
        (function() {
            var messages = document.getElementById('messages');
            var status = document.getElementById('status');
            var input = document.getElementById('question');
            var mic = document.getElementById('mic');
            var send = document.getElementById('send');
            var rendered = -1;

            function call(method, path, body) {
                var opts = { method: method, headers: {} };
                if (body !== undefined) {
                    opts.headers['Content-Type'] = 'application/json';
                    opts.body = JSON.stringify(body);
                }
                return fetch(path, opts).then(function(r) {
                    return r.json().catch(function() { return {}; });
                });
            }

            function render(view) {
                if (!view || !view.status) return;
                status.textContent = view.status.text;
                status.className = view.status.state === 'error' ? 'error' : '';
                input.disabled = send.disabled = !view.inputEnabled;
                mic.disabled = !view.inputEnabled || !view.voice.supported;
                mic.className = view.voice.state === 'listening' ? 'listening' : '';
                document.body.className = view.preferences.darkMode ? 'dark' : '';
                if (view.messages.length === rendered) return;
                messages.innerHTML = '';
                view.messages.forEach(function(m) {
                    var div = document.createElement('div');
                    div.className = 'message ' + m.role;
                    div.innerHTML = m.html;
                    messages.appendChild(div);
                });
                rendered = view.messages.length;
                messages.scrollTop = messages.scrollHeight;
            }

            function refresh() { call('GET', '/api/panel').then(render); }

            function ask(question) {
                question = question.trim();
                if (!question) return;
                input.value = '';
                call('POST', '/api/panel/ask', { question: question }).then(render);
                setTimeout(refresh, 100);
            }

            messages.addEventListener('click', function(e) {
                var span = e.target.closest('[data-seek]');
                if (!span) return;
                call('POST', '/api/panel/messages/' + span.dataset.message +
                    '/markers/' + span.dataset.marker + '/activate').then(render);
            });
            document.querySelector('.suggestions').addEventListener('click', function(e) {
                var b = e.target.closest('[data-suggestion]');
                if (b && !input.disabled) ask(b.dataset.suggestion);
            });
            document.getElementById('ask').addEventListener('submit', function(e) {
                e.preventDefault();
                ask(input.value);
            });
            mic.addEventListener('click', function() {
                call('POST', '/api/panel/voice').then(render);
            });
            document.getElementById('clear-cache').addEventListener('click', function() {
                call('POST', '/api/panel/clear-cache').then(render);
            });
            document.getElementById('theme').addEventListener('click', function() {
                call('GET', '/api/preferences').then(function(p) {
                    p.darkMode = !p.darkMode;
                    return call('PUT', '/api/preferences', p);
                }).then(refresh);
            });

            call('POST', '/api/panel').then(render);
            setInterval(refresh, 1000);
        })();
    </script>
</body>
</html>`))

// handlePanelPage serves the panel shell. All state is fetched from the JSON
// API; markers are activated through one delegated click listener.
func (s *Server) handlePanelPage(w http.ResponseWriter, r *http.Request) {
	data := panelPageData{
		Nonce:       httputil.Nonce(r.Context()),
		DarkMode:    s.panels.Preferences(r.Context()).DarkMode,
		Suggestions: panel.Suggestions,
		MaxQuestion: validate.MaxQuestionLength,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := panelPageTemplate.Execute(w, data); err != nil {
		slog.Error("panel: render page failed", "error", err)
	}
}
