// Package panel is the question panel opened over a video tab. It owns one
// bridge endpoint, one pipeline and one voice controller, and lives until it
// is closed.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sendrec/askvideo/internal/backend"
	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/pipeline"
	"github.com/sendrec/askvideo/internal/playback"
	"github.com/sendrec/askvideo/internal/prefs"
	"github.com/sendrec/askvideo/internal/validate"
	"github.com/sendrec/askvideo/internal/voice"
)

var (
	ErrNotOpen           = errors.New("panel: not open")
	ErrInvalidPreference = errors.New("panel: invalid preference")
)

// Suggestions are the canned questions offered under the input.
var Suggestions = []string{
	"Summarize this video",
	"What are the key takeaways?",
	"Explain the main topic in simple terms",
}

type Config struct {
	Bus        *bridge.Bus
	Backend    *backend.Client
	Prefs      prefs.Store
	Microphone voice.Microphone
	Recognizer voice.Recognizer
	SpeechLang string
}

type Panel struct {
	cfg      Config
	ep       *bridge.Endpoint
	pipeline *pipeline.Pipeline
	voice    *voice.Controller

	mu    sync.Mutex
	prefs prefs.Preferences

	started chan struct{}
}

// View is everything the panel page renders.
type View struct {
	pipeline.Snapshot
	Voice       VoiceView         `json:"voice"`
	Preferences prefs.Preferences `json:"preferences"`
	Suggestions []string          `json:"suggestions"`
	Limits      map[string]int    `json:"limits"`
}

type VoiceView struct {
	State     voice.State `json:"state"`
	Reason    string      `json:"reason,omitempty"`
	Supported bool        `json:"supported"`
}

func open(ctx context.Context, cfg Config) (*Panel, error) {
	ep, err := cfg.Bus.Open(bridge.Panel)
	if err != nil {
		return nil, fmt.Errorf("open panel endpoint: %w", err)
	}

	p := &Panel{cfg: cfg, ep: ep, prefs: prefs.Defaults(), started: make(chan struct{})}

	loaded, err := cfg.Prefs.Load(ctx)
	if err != nil {
		slog.Warn("panel: load preferences failed, using defaults", "error", err)
	} else {
		p.prefs = loaded
	}
	cfg.Backend.SetBaseURL(p.prefs.BackendURL)

	p.pipeline = pipeline.New(cfg.Backend, playback.NewSeeker(ep))
	p.voice = voice.NewController(cfg.Microphone, cfg.Recognizer, p.pipeline, cfg.SpeechLang)
	return p, nil
}

// start resolves the video and processes it in the background.
func (p *Panel) start(ctx context.Context) {
	go func() {
		defer close(p.started)
		if err := p.pipeline.Start(ctx, p); err != nil {
			slog.Warn("panel: start failed", "error", err)
		}
	}()
}

// Started is closed once the initial processing attempt has finished.
func (p *Panel) Started() <-chan struct{} { return p.started }

func (p *Panel) close() {
	p.voice.Stop()
	p.ep.Close()
}

// CurrentVideoID asks the background for the active tab's video.
func (p *Panel) CurrentVideoID(ctx context.Context) (string, bool) {
	reply, err := bridge.Call[bridge.VideoIDReply](ctx, p.ep, bridge.Background, bridge.ActionGetVideoID, nil)
	if err != nil {
		slog.Warn("panel: getVideoId failed", "error", err)
		return "", false
	}
	return reply.VideoID, reply.VideoID != ""
}

// Ask runs question to completion. The backend call is not tied to the
// caller's cancellation.
func (p *Panel) Ask(ctx context.Context, question string) error {
	return p.pipeline.Ask(context.WithoutCancel(ctx), question)
}

// ToggleVoice returns voice.ErrInputDisabled when the panel no longer takes
// questions.
func (p *Panel) ToggleVoice(ctx context.Context) error {
	err := p.voice.Toggle(context.WithoutCancel(ctx))
	if errors.Is(err, voice.ErrUnsupported) || errors.Is(err, voice.ErrPermissionDenied) {
		// Already reported in the conversation.
		return nil
	}
	return err
}

func (p *Panel) ActivateMarker(ctx context.Context, messageIndex, markerIndex int) error {
	return p.pipeline.ActivateMarker(ctx, messageIndex, markerIndex)
}

// ClearCache asks the background to drop the backend's cache for the current
// video without waiting for the outcome.
func (p *Panel) ClearCache(ctx context.Context) error {
	return bridge.Send(ctx, p.ep, bridge.Background, bridge.ActionClearCache,
		bridge.ClearCacheRequest{VideoID: p.pipeline.VideoID()})
}

func (p *Panel) Preferences() prefs.Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

func (p *Panel) setPreferences(next prefs.Preferences) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs = next
}

func (p *Panel) View() View {
	state, reason := p.voice.State()
	return View{
		Snapshot: p.pipeline.Snapshot(),
		Voice: VoiceView{
			State:     state,
			Reason:    reason,
			Supported: p.cfg.Recognizer.Supported(),
		},
		Preferences: p.Preferences(),
		Suggestions: Suggestions,
		Limits:      validate.FieldLimits(),
	}
}
