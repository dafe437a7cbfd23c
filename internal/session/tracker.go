// Package session tracks which video the user is currently discussing,
// independently of whether the panel is open.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrNoActiveTab = errors.New("session: no active tab")

const clearCacheTimeout = 10 * time.Second

type Tab struct {
	ID  int    `json:"tabId"`
	URL string `json:"url"`
}

// TabHost looks up the tab the user is looking at.
type TabHost interface {
	ActiveTab(ctx context.Context) (Tab, error)
}

// CacheClearer forwards cache invalidation to the answering backend.
type CacheClearer interface {
	ClearCache(ctx context.Context, videoID string) error
}

// NavigationEvent is emitted by the host whenever a tab's address changes.
type NavigationEvent struct {
	TabID int
	URL   string
}

type Tracker struct {
	cell  *Cell
	tabs  TabHost
	cache CacheClearer
}

func NewTracker(tabs TabHost, cache CacheClearer) *Tracker {
	return &Tracker{
		cell:  newCell(),
		tabs:  tabs,
		cache: cache,
	}
}

// Session exposes the read-only view of the current video.
func (t *Tracker) Session() View {
	return t.cell
}

// CurrentVideoID resolves the video shown in the active tab. A non-watch page
// or a failed tab lookup yields absent and leaves the stored session alone.
func (t *Tracker) CurrentVideoID(ctx context.Context) (string, bool) {
	tab, err := t.tabs.ActiveTab(ctx)
	if err != nil {
		slog.Debug("session: active tab lookup failed", "error", err)
		return "", false
	}

	id, ok := VideoIDFromURL(tab.URL)
	if !ok {
		return "", false
	}

	t.store(id, "request")
	return id, true
}

// Navigated applies a tab navigation. Watch addresses overwrite the session
// unconditionally, in event-arrival order.
func (t *Tracker) Navigated(rawURL string) {
	id, ok := VideoIDFromURL(rawURL)
	if !ok {
		return
	}
	t.store(id, "navigation")
}

// Watch consumes navigation events until ctx is done or the channel closes.
func (t *Tracker) Watch(ctx context.Context, events <-chan NavigationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Navigated(ev.URL)
		}
	}
}

// ClearCache asks the backend to drop its cache for videoID without waiting
// for the outcome. An empty id falls back to the current session; when there
// is no video at all nothing is sent. It reports whether a request was issued.
func (t *Tracker) ClearCache(ctx context.Context, videoID string) bool {
	if videoID == "" {
		videoID, _ = t.cell.Get()
	}
	if videoID == "" {
		slog.Info("session: clear cache skipped, no video")
		return false
	}

	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearCacheTimeout)
	go func() {
		defer cancel()
		if err := t.cache.ClearCache(clearCtx, videoID); err != nil {
			slog.Warn("session: clear cache failed", "video_id", videoID, "error", err)
		}
	}()
	return true
}

func (t *Tracker) store(videoID, source string) {
	if t.cell.set(videoID) {
		slog.Info("session: video changed", "video_id", videoID, "source", source)
	}
}
