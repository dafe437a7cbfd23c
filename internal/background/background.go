// Package background is the long-lived privileged context. It owns the
// Session Tracker and relays playback commands to page agents.
package background

import (
	"context"
	"fmt"

	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/session"
)

// Register opens the background context and wires its handlers.
func Register(bus *bridge.Bus, tracker *session.Tracker, tabs session.TabHost) (*bridge.Endpoint, error) {
	ep, err := bus.Open(bridge.Background)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}

	// Resolving the video means querying the active tab, so the reply is
	// declared asynchronous up front.
	ep.Handle(bridge.ActionGetVideoID, func(ctx context.Context, msg bridge.Message) bridge.Result {
		return bridge.Defer(func(ctx context.Context) (any, error) {
			id, _ := tracker.CurrentVideoID(ctx)
			return bridge.VideoIDReply{VideoID: id}, nil
		})
	})

	ep.Handle(bridge.ActionClearCache, func(ctx context.Context, msg bridge.Message) bridge.Result {
		var req bridge.ClearCacheRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		tracker.ClearCache(ctx, req.VideoID)
		return bridge.Reply(nil)
	})

	ep.Handle(bridge.ActionSeekTo, func(ctx context.Context, msg bridge.Message) bridge.Result {
		var req bridge.SeekRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		return bridge.Defer(func(ctx context.Context) (any, error) {
			tab, err := tabs.ActiveTab(ctx)
			if err != nil {
				return nil, fmt.Errorf("resolve active tab: %w", err)
			}
			return bridge.Call[bridge.SeekReply](ctx, ep, bridge.Page(tab.ID), bridge.ActionSeekTo, req)
		})
	})

	return ep, nil
}
