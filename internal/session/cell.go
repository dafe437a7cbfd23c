package session

import "sync"

// View is the read-only side of the current video session.
type View interface {
	Get() (string, bool)
	OnChange(fn func(videoID string)) (cancel func())
}

// Cell holds the single VideoSession value. Only the Tracker writes to it.
type Cell struct {
	mu      sync.RWMutex
	videoID string
	subs    map[int]func(string)
	nextSub int
}

func newCell() *Cell {
	return &Cell{subs: make(map[int]func(string))}
}

func (c *Cell) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoID, c.videoID != ""
}

// OnChange registers fn to run whenever the stored video id changes.
func (c *Cell) OnChange(fn func(videoID string)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// set overwrites the value and reports whether it changed. Subscribers run
// outside the lock, in registration-independent order.
func (c *Cell) set(videoID string) bool {
	c.mu.Lock()
	if c.videoID == videoID {
		c.mu.Unlock()
		return false
	}
	c.videoID = videoID
	fns := make([]func(string), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(videoID)
	}
	return true
}
