package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sendrec/askvideo/internal/voice"
)

// pageDocument reaches a tab's content through the shim.
type pageDocument struct {
	gateway *Gateway
	tabID   int
}

func (d *pageDocument) Location(ctx context.Context) (string, error) {
	var p tabPayload
	if err := d.gateway.request(ctx, MethodPageURL, tabPayload{TabID: d.tabID}, &p); err != nil {
		return "", err
	}
	return p.URL, nil
}

func (d *pageDocument) Seek(ctx context.Context, seconds int) (bool, error) {
	var reply seekReply
	if err := d.gateway.request(ctx, MethodPageSeek, seekPayload{TabID: d.tabID, Time: seconds}, &reply); err != nil {
		return false, err
	}
	return reply.Success, nil
}

// Acquire asks the browser for a microphone stream. The returned handle
// releases it.
func (g *Gateway) Acquire(ctx context.Context) (io.Closer, error) {
	var reply micReply
	if err := g.request(ctx, MethodMicAcquire, nil, &reply); err != nil {
		return nil, err
	}
	return &micHandle{gateway: g, id: reply.HandleID}, nil
}

type micHandle struct {
	gateway *Gateway
	id      string
	once    sync.Once
}

func (h *micHandle) Close() error {
	var err error
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = h.gateway.request(ctx, MethodMicRelease, micReply{HandleID: h.id}, nil)
	})
	return err
}

// Supported reports whether a connected browser can recognize speech.
func (g *Gateway) Supported() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil && g.speechSupported
}

func (g *Gateway) Start(ctx context.Context, opts voice.Options) (voice.Capture, error) {
	cp := &capture{
		gateway: g,
		id:      uuid.NewString(),
		events:  make(chan voice.Event, 8),
	}
	g.mu.Lock()
	g.captures[cp.id] = cp
	g.mu.Unlock()

	err := g.request(ctx, MethodSpeechStart, speechStartPayload{
		CaptureID:      cp.id,
		Lang:           opts.Lang,
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
	}, nil)
	if err != nil {
		g.dropCapture(cp.id)
		return nil, err
	}
	return cp, nil
}

func (g *Gateway) dropCapture(id string) {
	g.mu.Lock()
	delete(g.captures, id)
	g.mu.Unlock()
}

func (g *Gateway) routeSpeech(f Frame) {
	var p speechEventPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		slog.Warn("host: malformed speech event", "error", err)
		return
	}
	g.mu.Lock()
	cp, ok := g.captures[p.CaptureID]
	g.mu.Unlock()
	if !ok {
		return
	}

	switch f.Method {
	case EventSpeechStarted:
		cp.emit(voice.Event{Kind: voice.EventStarted})
	case EventSpeechResult:
		cp.emit(voice.Event{Kind: voice.EventResult, Transcripts: p.Transcripts})
	case EventSpeechError:
		cp.emit(voice.Event{Kind: voice.EventError, Code: p.Code})
	case EventSpeechEnded:
		g.dropCapture(cp.id)
		cp.emit(voice.Event{Kind: voice.EventEnd})
		cp.finish()
	}
}

// capture is one speech.start session; its events arrive on the socket.
type capture struct {
	gateway *Gateway
	id      string

	mu     sync.Mutex
	events chan voice.Event
	closed bool
}

func (c *capture) Events() <-chan voice.Event { return c.events }

// Stop ends the session on the host. Once the host has stopped it, or is
// gone, the events channel is closed.
func (c *capture) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.gateway.request(ctx, MethodSpeechStop, speechEventPayload{CaptureID: c.id}, nil)
	if err != nil && !errors.Is(err, ErrNotConnected) && !errors.Is(err, ErrDisconnected) {
		return err
	}
	c.gateway.dropCapture(c.id)
	c.finish()
	return nil
}

func (c *capture) emit(ev voice.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		slog.Warn("host: speech event dropped", "capture_id", c.id, "kind", ev.Kind)
	}
}

func (c *capture) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}
