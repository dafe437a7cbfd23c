package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sendrec/askvideo/internal/prefs"
	"github.com/sendrec/askvideo/internal/validate"
)

// Manager holds at most one open panel.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	panel *Panel
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Open returns the open panel, creating and starting one if needed.
func (m *Manager) Open(ctx context.Context) (*Panel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel != nil {
		return m.panel, false, nil
	}

	p, err := open(ctx, m.cfg)
	if err != nil {
		return nil, false, err
	}
	p.start(context.WithoutCancel(ctx))
	m.panel = p
	slog.Info("panel: opened")
	return p, true, nil
}

func (m *Manager) Current() (*Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel == nil {
		return nil, ErrNotOpen
	}
	return m.panel, nil
}

// Close discards the open panel and its conversation.
func (m *Manager) Close() {
	m.mu.Lock()
	p := m.panel
	m.panel = nil
	m.mu.Unlock()
	if p != nil {
		p.close()
		slog.Info("panel: closed")
	}
}

// Preferences returns the stored preferences, or the defaults when the store
// cannot be read.
func (m *Manager) Preferences(ctx context.Context) prefs.Preferences {
	loaded, err := m.cfg.Prefs.Load(ctx)
	if err != nil {
		slog.Warn("panel: load preferences failed", "error", err)
		return prefs.Defaults()
	}
	return loaded
}

// UpdatePreferences validates and stores next. The new backend address
// applies from the next backend call.
func (m *Manager) UpdatePreferences(ctx context.Context, next prefs.Preferences) error {
	if msg := validate.BackendURL(next.BackendURL); msg != "" {
		return fmt.Errorf("%w: %s", ErrInvalidPreference, msg)
	}
	if err := m.cfg.Prefs.Save(ctx, next); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	m.cfg.Backend.SetBaseURL(next.BackendURL)

	m.mu.Lock()
	p := m.panel
	m.mu.Unlock()
	if p != nil {
		p.setPreferences(next)
	}
	slog.Info("panel: preferences updated", "backend_url", next.BackendURL, "dark_mode", next.DarkMode)
	return nil
}
