// Package pipeline drives the panel: it resolves the current video, asks the
// backend to process it, runs questions one at a time and keeps the
// conversation the panel renders.
package pipeline

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/sendrec/askvideo/internal/backend"
	"github.com/sendrec/askvideo/internal/timestamp"
	"github.com/sendrec/askvideo/internal/validate"
)

const (
	MessageAnalyzed      = "I've analyzed this video. Ask me anything about it!"
	MessageQueryFailed   = "Failed to get response from server."
	StatusNotOnVideo     = "Not on YouTube video"
	StatusConnectionLost = "Connection failed"
)

var (
	ErrBusy           = errors.New("pipeline: a request is already in flight")
	ErrInputDisabled  = errors.New("pipeline: input is disabled")
	ErrNotReady       = errors.New("pipeline: no video has been processed")
	ErrAlreadyStarted = errors.New("pipeline: already started")
	ErrMarkerNotFound = errors.New("pipeline: timestamp marker not found")
)

// Backend processes videos and answers questions about them.
type Backend interface {
	Process(ctx context.Context, videoID string) error
	Query(ctx context.Context, videoID, question string) (string, error)
}

// VideoSource resolves the video the panel was opened on.
type VideoSource interface {
	CurrentVideoID(ctx context.Context) (string, bool)
}

// Seeker moves playback of the active tab.
type Seeker interface {
	SeekTo(ctx context.Context, seconds int) error
}

type Pipeline struct {
	backend Backend
	seeker  Seeker

	mu           sync.Mutex
	status       Status
	inputEnabled bool
	inFlight     bool
	started      bool
	videoID      string
	messages     []Message
	subs         map[int]func(Snapshot)
	nextSub      int
}

func New(b Backend, s Seeker) *Pipeline {
	return &Pipeline{
		backend:      b,
		seeker:       s,
		status:       statusUninitialized,
		inputEnabled: true,
		subs:         make(map[int]func(Snapshot)),
	}
}

// Start resolves the current video and processes it. Without a video the
// panel ends in a terminal error with input disabled.
func (p *Pipeline) Start(ctx context.Context, src VideoSource) error {
	p.mu.Lock()
	if p.started || p.status.State != StateUninitialized || p.inFlight {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	videoID, ok := src.CurrentVideoID(ctx)
	if !ok {
		p.update(func() {
			p.status = errorStatus(StatusNotOnVideo, true)
			p.inputEnabled = false
		})
		slog.Info("pipeline: no video in active tab")
		return nil
	}

	return p.ProcessVideo(ctx, videoID)
}

// ProcessVideo asks the backend to prepare videoID. A structured backend error
// is terminal; a transport failure is not.
func (p *Pipeline) ProcessVideo(ctx context.Context, videoID string) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrBusy
	}
	if !p.inputEnabled {
		p.mu.Unlock()
		return ErrInputDisabled
	}
	p.inFlight = true
	p.videoID = videoID
	p.status = statusProcessing
	p.mu.Unlock()
	p.notify()

	err := p.backend.Process(ctx, videoID)

	var apiErr *backend.APIError
	p.update(func() {
		p.inFlight = false
		switch {
		case errors.As(err, &apiErr):
			p.status = errorStatus("Error: "+apiErr.Message, true)
			p.inputEnabled = false
		case err != nil:
			p.status = errorStatus(StatusConnectionLost, false)
		default:
			p.status = statusReady
			p.appendLocked(RoleAssistant, MessageAnalyzed)
		}
	})

	if err != nil {
		slog.Warn("pipeline: processing failed", "video_id", videoID, "error", err)
	} else {
		slog.Info("pipeline: video ready", "video_id", videoID)
	}
	return nil
}

// Ask submits a question. Blank questions are ignored. Only one question runs
// at a time; a second one is rejected with ErrBusy rather than queued. The
// conversation keeps the full question even when the backend gets a
// truncated one.
func (p *Pipeline) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}

	p.mu.Lock()
	switch {
	case !p.inputEnabled:
		p.mu.Unlock()
		return ErrInputDisabled
	case p.inFlight:
		p.mu.Unlock()
		return ErrBusy
	case p.videoID == "":
		p.mu.Unlock()
		return ErrNotReady
	}
	p.appendLocked(RoleUser, question)
	p.status = statusThinking
	p.inFlight = true
	videoID := p.videoID
	p.mu.Unlock()
	p.notify()

	// The backend reads at most MaxQuestionLength characters.
	answer, err := p.backend.Query(ctx, videoID, validate.TruncateQuestion(question))

	var apiErr *backend.APIError
	p.update(func() {
		p.inFlight = false
		switch {
		case errors.As(err, &apiErr):
			p.appendLocked(RoleAssistant, "Error: "+apiErr.Message)
			p.status = errorStatus("Error", false)
		case err != nil:
			p.appendLocked(RoleAssistant, MessageQueryFailed)
			p.status = errorStatus("Error", false)
		default:
			p.appendLocked(RoleAssistant, answer)
			p.status = statusReady
		}
	})

	if err != nil {
		slog.Warn("pipeline: query failed", "video_id", videoID, "error", err)
	}
	return nil
}

// ActivateMarker seeks to the timestamp marker markerIndex of message
// messageIndex. A failed seek is reported in the conversation.
func (p *Pipeline) ActivateMarker(ctx context.Context, messageIndex, markerIndex int) error {
	p.mu.Lock()
	if messageIndex < 0 || messageIndex >= len(p.messages) {
		p.mu.Unlock()
		return ErrMarkerNotFound
	}
	markers := p.messages[messageIndex].Markers
	if markerIndex < 0 || markerIndex >= len(markers) {
		p.mu.Unlock()
		return ErrMarkerNotFound
	}
	marker := markers[markerIndex]
	p.mu.Unlock()

	if err := p.seeker.SeekTo(ctx, marker.Offset()); err != nil {
		slog.Warn("pipeline: seek failed", "seconds", marker.Offset(), "error", err)
		p.Notice("Couldn't move the video to " + timestamp.Format(marker.Offset()) + ".")
		return err
	}
	return nil
}

// Notice appends an assistant message without touching the status.
func (p *Pipeline) Notice(text string) {
	p.update(func() { p.appendLocked(RoleAssistant, text) })
}

// SetListening shows the transient listening indicator.
func (p *Pipeline) SetListening() {
	p.update(func() {
		if !p.status.Terminal && !p.inFlight {
			p.status = statusListening
		}
	})
}

// ClearListening returns to Ready if the listening indicator is still shown.
func (p *Pipeline) ClearListening() {
	p.update(func() {
		if p.status.State == StateListening {
			p.status = statusReady
		}
	})
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) InputEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputEnabled
}

func (p *Pipeline) VideoID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoID
}

func (p *Pipeline) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change.
func (p *Pipeline) Subscribe(fn func(Snapshot)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Pipeline) snapshotLocked() Snapshot {
	views := make([]MessageView, len(p.messages))
	for i, m := range p.messages {
		views[i] = renderMessage(m, i)
	}
	return Snapshot{
		Status:       p.status,
		InputEnabled: p.inputEnabled,
		VideoID:      p.videoID,
		Messages:     views,
	}
}

func renderMessage(m Message, index int) MessageView {
	if m.Role != RoleAssistant {
		return MessageView{
			Role:     m.Role,
			Text:     m.Text,
			Segments: []timestamp.Segment{{Text: m.Text}},
			HTML:     html.EscapeString(m.Text),
		}
	}
	return MessageView{
		Role:     m.Role,
		Text:     m.Text,
		Segments: timestamp.Segments(m.Text),
		HTML:     timestamp.HTML(m.Text, index),
	}
}

func (p *Pipeline) appendLocked(role Role, text string) {
	msg := Message{Role: role, Text: text}
	if role == RoleAssistant {
		msg.Markers = timestamp.Find(text)
	}
	p.messages = append(p.messages, msg)
}

func (p *Pipeline) update(fn func()) {
	p.mu.Lock()
	fn()
	p.mu.Unlock()
	p.notify()
}

func (p *Pipeline) notify() {
	p.mu.Lock()
	if len(p.subs) == 0 {
		p.mu.Unlock()
		return
	}
	snap := p.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
