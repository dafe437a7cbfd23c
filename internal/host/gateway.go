// Package host connects the daemon to the browser through a small extension
// shim. The shim dials /ws/host with a pairing token and then answers
// requests for tab, page, microphone and speech operations while pushing
// navigation and speech events.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sendrec/askvideo/internal/auth"
	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/httputil"
	"github.com/sendrec/askvideo/internal/pageagent"
	"github.com/sendrec/askvideo/internal/session"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("host: no browser connected")
	ErrDisconnected = errors.New("host: browser disconnected")
)

type Gateway struct {
	secret  string
	bus     *bridge.Bus
	timeout time.Duration

	upgrader    websocket.Upgrader
	navigations chan session.NavigationEvent

	mu              sync.Mutex
	conn            *conn
	userAgent       string
	speechSupported bool
	pages           map[int]*bridge.Endpoint
	captures        map[string]*capture
}

func NewGateway(secret string, bus *bridge.Bus, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		secret:  secret,
		bus:     bus,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The shim connects from an extension origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		navigations: make(chan session.NavigationEvent, 64),
		pages:       make(map[int]*bridge.Endpoint),
		captures:    make(map[string]*capture),
	}
}

// Navigations delivers tabs.updated events for the session tracker.
func (g *Gateway) Navigations() <-chan session.NavigationEvent {
	return g.navigations
}

// Status describes the connected browser, if any.
type Status struct {
	Connected       bool   `json:"connected"`
	UserAgent       string `json:"userAgent,omitempty"`
	SpeechSupported bool   `json:"speechSupported"`
}

func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return Status{}
	}
	return Status{Connected: true, UserAgent: g.userAgent, SpeechSupported: g.speechSupported}
}

// ServeHTTP authenticates the shim and runs its connection until it closes.
// A new connection replaces the previous one.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := auth.ValidateHostToken(g.secret, token)
	if err != nil {
		slog.Warn("host: rejected connection", "remote_addr", r.RemoteAddr, "error", err)
		httputil.WriteError(w, http.StatusUnauthorized, "invalid host token")
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("host: upgrade failed", "error", err)
		return
	}

	c := newConn(ws)
	g.mu.Lock()
	previous := g.conn
	g.conn = c
	g.mu.Unlock()
	if previous != nil {
		previous.close()
	}

	slog.Info("host: browser connected", "shim_id", claims.ShimID, "remote_addr", r.RemoteAddr)
	g.readLoop(c)
	g.disconnect(c)
	slog.Info("host: browser disconnected", "shim_id", claims.ShimID)
}

// Close drops the current connection.
func (g *Gateway) Close() {
	g.mu.Lock()
	c := g.conn
	g.mu.Unlock()
	if c != nil {
		c.close()
	}
}

func (g *Gateway) readLoop(c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("host: read ended", "error", err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("host: malformed frame", "error", err)
			continue
		}

		switch f.Type {
		case FrameResponse:
			c.resolve(f)
		case FrameEvent:
			g.handleEvent(c, f)
		case FrameRequest:
			_ = c.write(Frame{Type: FrameResponse, ID: f.ID, Error: "unsupported method " + f.Method})
		default:
			slog.Warn("host: unknown frame type", "type", f.Type)
		}
	}
}

func (g *Gateway) disconnect(c *conn) {
	c.close()

	g.mu.Lock()
	if g.conn != c {
		g.mu.Unlock()
		return
	}
	g.conn = nil
	g.userAgent = ""
	g.speechSupported = false
	pages := g.pages
	g.pages = make(map[int]*bridge.Endpoint)
	captures := g.captures
	g.captures = make(map[string]*capture)
	g.mu.Unlock()

	for _, ep := range pages {
		ep.Close()
	}
	for _, cp := range captures {
		cp.finish()
	}
}

// request sends one request frame and waits for its response. A nil out
// discards the reply payload.
func (g *Gateway) request(ctx context.Context, method string, payload, out any) error {
	g.mu.Lock()
	c := g.conn
	g.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", method, err)
		}
		raw = b
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	id := uuid.NewString()
	respCh := c.register(id)
	defer c.unregister(id)

	if err := c.write(Frame{Type: FrameRequest, ID: id, Method: method, Payload: raw}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	var resp Frame
	select {
	case resp = <-respCh:
	case <-c.done:
		return ErrDisconnected
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}

	if !resp.OK {
		return &RemoteError{Method: method, Message: resp.Error}
	}
	if out != nil && len(resp.Payload) > 0 && string(resp.Payload) != "null" {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return fmt.Errorf("decode %s: %w", method, err)
		}
	}
	return nil
}

func (g *Gateway) handleEvent(c *conn, f Frame) {
	switch f.Method {
	case EventHello:
		var p helloPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			slog.Warn("host: malformed hello", "error", err)
			return
		}
		supported := SpeechSupported(p.UserAgent)
		if p.SpeechSupported != nil {
			supported = *p.SpeechSupported
		}
		g.mu.Lock()
		g.userAgent = p.UserAgent
		g.speechSupported = supported
		g.mu.Unlock()
		slog.Info("host: browser identified", "user_agent", p.UserAgent, "speech", supported)

	case EventTabsUpdated:
		var p tabPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil || p.TabID == 0 {
			slog.Warn("host: malformed tab update", "error", err)
			return
		}
		g.attachPage(p.TabID)
		select {
		case g.navigations <- session.NavigationEvent{TabID: p.TabID, URL: p.URL}:
		case <-c.done:
		}

	case EventTabsRemoved:
		var p tabPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return
		}
		g.detachPage(p.TabID)

	case EventSpeechStarted, EventSpeechResult, EventSpeechError, EventSpeechEnded:
		g.routeSpeech(f)

	default:
		slog.Debug("host: ignored event", "method", f.Method)
	}
}

// attachPage gives tabID a page agent on the bus, backed by this connection.
func (g *Gateway) attachPage(tabID int) {
	if g.bus == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pages[tabID]; ok {
		return
	}
	ep, err := pageagent.Attach(g.bus, tabID, &pageDocument{gateway: g, tabID: tabID})
	if err != nil {
		slog.Warn("host: attach page agent", "tab_id", tabID, "error", err)
		return
	}
	g.pages[tabID] = ep
}

func (g *Gateway) detachPage(tabID int) {
	g.mu.Lock()
	ep, ok := g.pages[tabID]
	delete(g.pages, tabID)
	g.mu.Unlock()
	if ok {
		ep.Close()
	}
}

// ActiveTab asks the browser for the focused tab.
func (g *Gateway) ActiveTab(ctx context.Context) (session.Tab, error) {
	var p tabPayload
	if err := g.request(ctx, MethodTabsActive, nil, &p); err != nil {
		return session.Tab{}, err
	}
	if p.TabID == 0 {
		return session.Tab{}, session.ErrNoActiveTab
	}
	g.attachPage(p.TabID)
	return session.Tab{ID: p.TabID, URL: p.URL}, nil
}

type conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Frame

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:      ws,
		pending: make(map[string]chan Frame),
		done:    make(chan struct{}),
	}
}

func (c *conn) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) register(id string) <-chan Frame {
	ch := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	return ch
}

func (c *conn) unregister(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *conn) resolve(f Frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	c.pendingMu.Unlock()
	if !ok {
		slog.Debug("host: response for unknown request", "id", f.ID)
		return
	}
	select {
	case ch <- f:
	default:
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}
