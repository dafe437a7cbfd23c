// Package playback moves video playback in the active tab from the panel.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/timestamp"
)

var (
	ErrInvalidTimestamp = errors.New("playback: invalid timestamp")
	ErrNoVideoElement   = errors.New("playback: no video element on page")
)

// ParseSeek converts the minutes and seconds of a marker into a seek target.
// Both parts must be plain non-negative integers and seconds must stay below
// a minute.
func ParseSeek(minutes, seconds string) (int, error) {
	m, err := parseUnsigned(minutes)
	if err != nil {
		return 0, fmt.Errorf("%w: minutes %q", ErrInvalidTimestamp, minutes)
	}
	s, err := parseUnsigned(seconds)
	if err != nil || s > timestamp.MaxSeconds {
		return 0, fmt.Errorf("%w: seconds %q", ErrInvalidTimestamp, seconds)
	}
	return m*60 + s, nil
}

func parseUnsigned(v string) (int, error) {
	if v == "" || len(v) > 6 {
		return 0, strconv.ErrSyntax
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(v)
}

// Seeker sends seek commands from the panel through the background context,
// which relays them to the page agent of the active tab.
type Seeker struct {
	ep *bridge.Endpoint
}

func NewSeeker(ep *bridge.Endpoint) *Seeker {
	return &Seeker{ep: ep}
}

func (s *Seeker) SeekTo(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %d seconds", ErrInvalidTimestamp, seconds)
	}

	reply, err := bridge.Call[bridge.SeekReply](ctx, s.ep, bridge.Background, bridge.ActionSeekTo, bridge.SeekRequest{Time: seconds})
	if err != nil {
		return fmt.Errorf("seek to %d: %w", seconds, err)
	}
	if !reply.Success {
		return ErrNoVideoElement
	}
	return nil
}
