// Package pageagent is the agent embedded in a video page. It answers
// questions about the page's own address and controls its video element.
package pageagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/session"
)

// Document is the page the agent lives in.
type Document interface {
	// Location returns the page's current address.
	Location(ctx context.Context) (string, error)
	// Seek moves the page's video element to seconds. It reports false when
	// the page has no video element.
	Seek(ctx context.Context, seconds int) (bool, error)
}

// Attach opens the page context for tabID on the bus and registers the
// agent's handlers. Both handlers reply synchronously on the page's loop.
func Attach(bus *bridge.Bus, tabID int, doc Document) (*bridge.Endpoint, error) {
	ep, err := bus.Open(bridge.Page(tabID))
	if err != nil {
		return nil, fmt.Errorf("attach page agent: %w", err)
	}

	ep.Handle(bridge.ActionGetVideoID, func(ctx context.Context, msg bridge.Message) bridge.Result {
		location, err := doc.Location(ctx)
		if err != nil {
			return bridge.Fail(fmt.Errorf("read page location: %w", err))
		}
		id, _ := session.VideoIDFromURL(location)
		return bridge.Reply(bridge.VideoIDReply{VideoID: id})
	})

	ep.Handle(bridge.ActionSeekTo, func(ctx context.Context, msg bridge.Message) bridge.Result {
		var req bridge.SeekRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		ok, err := doc.Seek(ctx, req.Time)
		if err != nil {
			slog.Warn("pageagent: seek failed", "tab_id", tabID, "time", req.Time, "error", err)
			return bridge.Reply(bridge.SeekReply{Success: false})
		}
		return bridge.Reply(bridge.SeekReply{Success: ok})
	})

	slog.Debug("pageagent: attached", "tab_id", tabID)
	return ep, nil
}
