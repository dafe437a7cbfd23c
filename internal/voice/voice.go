// Package voice captures a single spoken question and feeds it to the
// pipeline. Speech recognition and the microphone belong to the host; the
// controller only sequences them.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	MessageUnsupported      = "Voice input is not supported in your browser"
	MessagePermissionDenied = "Please allow microphone access in Chrome settings to use voice input"
	MessageStartFailed      = "Error starting voice recognition"
)

var (
	ErrUnsupported      = errors.New("voice: speech recognition not supported")
	ErrPermissionDenied = errors.New("voice: microphone permission denied")
	ErrInputDisabled    = errors.New("voice: input is disabled")
)

type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateErrored   State = "errored"
)

// Microphone grants a capture handle. Holding the handle proves permission.
type Microphone interface {
	Acquire(ctx context.Context) (io.Closer, error)
}

type Options struct {
	Lang           string
	Continuous     bool
	InterimResults bool
}

// Recognizer starts speech captures on the host.
type Recognizer interface {
	Supported() bool
	Start(ctx context.Context, opts Options) (Capture, error)
}

// Capture is one running recognition session. Events is closed when the
// session is gone.
type Capture interface {
	Events() <-chan Event
	Stop() error
}

// Pipeline is the part of the query pipeline the controller drives.
type Pipeline interface {
	Ask(ctx context.Context, question string) error
	Notice(text string)
	SetListening()
	ClearListening()
	InputEnabled() bool
}

type Controller struct {
	mic  Microphone
	rec  Recognizer
	pipe Pipeline
	opts Options

	mu      sync.Mutex
	state   State
	reason  string
	capture Capture
	gen     uint64
}

func NewController(mic Microphone, rec Recognizer, pipe Pipeline, lang string) *Controller {
	if lang == "" {
		lang = "en-US"
	}
	return &Controller{
		mic:   mic,
		rec:   rec,
		pipe:  pipe,
		opts:  Options{Lang: lang},
		state: StateIdle,
	}
}

// State returns the current state and, for StateErrored, the failure code.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason
}

// Toggle starts a capture, or stops the running one. While a start is still
// pending it does nothing, so a double activation yields one capture. No
// capture starts while the pipeline refuses input.
func (c *Controller) Toggle(ctx context.Context) error {
	if !c.rec.Supported() {
		c.pipe.Notice(MessageUnsupported)
		return ErrUnsupported
	}

	c.mu.Lock()
	switch c.state {
	case StateStarting:
		c.mu.Unlock()
		return nil
	case StateListening:
		capture := c.capture
		c.resetLocked(StateIdle, "")
		c.mu.Unlock()
		c.stop(capture)
		return nil
	}
	if !c.pipe.InputEnabled() {
		c.mu.Unlock()
		return ErrInputDisabled
	}
	c.gen++
	gen := c.gen
	c.state = StateStarting
	c.reason = ""
	c.mu.Unlock()

	if err := c.checkMicrophone(ctx); err != nil {
		slog.Info("voice: microphone unavailable", "error", err)
		c.pipe.Notice(MessagePermissionDenied)
		c.abort(gen)
		return err
	}

	capture, err := c.rec.Start(ctx, c.opts)
	if err != nil {
		slog.Warn("voice: start recognition failed", "error", err)
		c.pipe.Notice(MessageStartFailed)
		c.abort(gen)
		return fmt.Errorf("start recognition: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stopped or toggled off while the host was starting.
		c.mu.Unlock()
		if err := capture.Stop(); err != nil {
			slog.Warn("voice: stop superseded capture", "error", err)
		}
		return nil
	}
	c.capture = capture
	c.mu.Unlock()

	go c.watch(gen, capture)
	return nil
}

// Stop ends any capture and returns to idle. Events from the stopped capture
// are ignored.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle && c.capture == nil {
		c.gen++
		c.mu.Unlock()
		return
	}
	capture := c.capture
	c.resetLocked(StateIdle, "")
	c.mu.Unlock()
	c.stop(capture)
}

// checkMicrophone acquires the microphone and releases it straight away.
func (c *Controller) checkMicrophone(ctx context.Context) error {
	handle, err := c.mic.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			slog.Warn("voice: release microphone", "error", err)
		}
	}()
	return nil
}

func (c *Controller) watch(gen uint64, capture Capture) {
	for ev := range capture.Events() {
		c.handle(gen, capture, ev)
	}
	// A capture that vanished without an end event still counts as ended.
	c.handle(gen, capture, Event{Kind: EventEnd})
}

func (c *Controller) handle(gen uint64, capture Capture, ev Event) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case EventStarted:
		if c.state != StateStarting {
			c.mu.Unlock()
			return
		}
		c.state = StateListening
		c.mu.Unlock()
		c.pipe.SetListening()

	case EventResult:
		c.resetLocked(StateIdle, "")
		c.mu.Unlock()
		c.stop(capture)

		transcript := ev.Transcript()
		if transcript == "" {
			return
		}
		slog.Info("voice: transcript received", "length", len(transcript))
		if err := c.pipe.Ask(context.Background(), transcript); err != nil {
			slog.Warn("voice: ask failed", "error", err)
		}

	case EventError:
		c.resetLocked(StateErrored, ev.Code)
		c.mu.Unlock()
		c.stop(capture)
		slog.Info("voice: capture error", "code", ev.Code)
		c.pipe.Notice(ErrorMessage(ev.Code))

	case EventEnd:
		c.resetLocked(StateIdle, "")
		c.mu.Unlock()
		c.pipe.ClearListening()

	default:
		c.mu.Unlock()
	}
}

// stop ends the capture and drops the listening indicator.
func (c *Controller) stop(capture Capture) {
	if capture != nil {
		if err := capture.Stop(); err != nil {
			slog.Warn("voice: stop capture", "error", err)
		}
	}
	c.pipe.ClearListening()
}

func (c *Controller) abort(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.resetLocked(StateIdle, "")
	}
}

// resetLocked moves to a resting state and invalidates events from the
// previous capture.
func (c *Controller) resetLocked(state State, reason string) {
	c.gen++
	c.state = state
	c.reason = reason
	c.capture = nil
}

// ErrorMessage maps a recognizer failure code to the text shown in the chat.
func ErrorMessage(code string) string {
	switch strings.TrimSpace(code) {
	case "not-allowed":
		return "Microphone access denied. Please allow microphone access in Chrome settings."
	case "no-speech":
		return "No speech detected. Please try again."
	case "audio-capture":
		return "Audio capture error. Please check your microphone."
	default:
		return "Error: " + code
	}
}
