// Package prefs persists the two panel preferences: the backend address and
// the dark mode toggle.
package prefs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

const DefaultBackendURL = "http://localhost:5000"

const (
	keyBackendURL = "backendUrl"
	keyDarkMode   = "darkMode"
)

type Preferences struct {
	BackendURL string `json:"backendUrl"`
	DarkMode   bool   `json:"darkMode"`
}

func Defaults() Preferences {
	return Preferences{BackendURL: DefaultBackendURL}
}

type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// fromValues builds preferences from stored key/value pairs. Missing keys keep
// their defaults.
func fromValues(values map[string]string, defaults Preferences) (Preferences, error) {
	p := defaults
	if v, ok := values[keyBackendURL]; ok && v != "" {
		p.BackendURL = v
	}
	if v, ok := values[keyDarkMode]; ok {
		dark, err := strconv.ParseBool(v)
		if err != nil {
			return Preferences{}, fmt.Errorf("parse %s: %w", keyDarkMode, err)
		}
		p.DarkMode = dark
	}
	return p, nil
}

func toValues(p Preferences) [][2]string {
	return [][2]string{
		{keyBackendURL, p.BackendURL},
		{keyDarkMode, strconv.FormatBool(p.DarkMode)},
	}
}

type MemoryStore struct {
	mu    sync.Mutex
	prefs Preferences
}

func NewMemoryStore(defaults Preferences) *MemoryStore {
	return &MemoryStore{prefs: defaults}
}

func (s *MemoryStore) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *MemoryStore) Save(ctx context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	return nil
}
