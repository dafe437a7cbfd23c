package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Endpoint is one isolated context on the bus.
type Endpoint struct {
	name      Context
	bus       *Bus
	mu        sync.RWMutex
	handlers  map[string]Handler
	inbox     chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

func (e *Endpoint) Name() Context { return e.name }

// Handle registers the handler for an action, replacing any previous one.
func (e *Endpoint) Handle(action string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = h
}

// Close removes the endpoint from the bus. Requests already queued are
// answered with ErrUnreachable.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.bus.remove(e)
		close(e.done)
	})
}

// Done is closed once the endpoint has been closed.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

func (e *Endpoint) run() {
	for {
		select {
		case env := <-e.inbox:
			e.dispatch(env)
		case <-e.done:
			e.drain()
			return
		}
	}
}

func (e *Endpoint) drain() {
	for {
		select {
		case env := <-e.inbox:
			finish(env, outcome{err: fmt.Errorf("%w: %s", ErrUnreachable, e.name)})
		default:
			return
		}
	}
}

func (e *Endpoint) dispatch(env envelope) {
	e.mu.RLock()
	h, ok := e.handlers[env.msg.Action]
	e.mu.RUnlock()

	if !ok {
		slog.Warn("bridge: no handler", "context", e.name, "action", env.msg.Action, "from", env.msg.From)
		finish(env, outcome{err: fmt.Errorf("%w: %s on %s", ErrNoHandler, env.msg.Action, e.name)})
		return
	}

	res := e.invoke(h, env)
	if res.deferred == nil {
		finish(env, encode(env.msg.Action, res.value, res.err))
		return
	}

	go func() {
		v, err := runDeferred(env, res.deferred)
		finish(env, encode(env.msg.Action, v, err))
	}()
}

func (e *Endpoint) invoke(h Handler, env envelope) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bridge: handler panicked", "context", e.name, "action", env.msg.Action, "panic", r)
			res = Fail(fmt.Errorf("bridge: handler for %s panicked", env.msg.Action))
		}
	}()
	return h(env.ctx, env.msg)
}

func runDeferred(env envelope, fn func(ctx context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bridge: deferred reply panicked", "action", env.msg.Action, "panic", r)
			err = fmt.Errorf("bridge: deferred reply for %s panicked", env.msg.Action)
		}
	}()
	return fn(env.ctx)
}

func encode(action string, v any, err error) outcome {
	if err != nil {
		return outcome{err: err}
	}
	if v == nil {
		return outcome{}
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		return outcome{err: fmt.Errorf("marshal %s reply: %w", action, merr)}
	}
	return outcome{payload: data}
}

// finish delivers the single reply for a request. The reply channel has room
// for exactly one value, so it never blocks.
func finish(env envelope, out outcome) {
	if env.reply != nil {
		env.reply <- out
	} else if out.err != nil {
		slog.Warn("bridge: one-way request failed", "action", env.msg.Action, "from", env.msg.From, "error", out.err)
	}
	if env.cancel != nil {
		env.cancel()
	}
}
