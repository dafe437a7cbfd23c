// Package bridge connects the isolated contexts of the assistant (background,
// page agents and the panel) with a request/response protocol. Each context is
// an Endpoint that processes its inbox on a single goroutine, in arrival order.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrTimeout     = errors.New("bridge: no reply before timeout")
	ErrNoHandler   = errors.New("bridge: no handler for action")
	ErrUnreachable = errors.New("bridge: context unreachable")
	ErrDuplicate   = errors.New("bridge: context already open")
)

// Context names an isolated execution context.
type Context string

const (
	Background Context = "background"
	Panel      Context = "panel"
)

// Page names the page agent embedded in a browser tab.
func Page(tabID int) Context {
	return Context(fmt.Sprintf("page:%d", tabID))
}

type Message struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	From    Context         `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Action, err)
	}
	return nil
}

// Result is what a handler produces for a request: an immediate value, an
// error, or a deferred computation whose outcome is delivered later.
type Result struct {
	value    any
	err      error
	deferred func(ctx context.Context) (any, error)
}

func Reply(v any) Result { return Result{value: v} }

func Fail(err error) Result { return Result{err: err} }

// Defer declares that the reply arrives asynchronously. fn runs off the
// endpoint's loop and its outcome is delivered exactly once.
func Defer(fn func(ctx context.Context) (any, error)) Result {
	return Result{deferred: fn}
}

type Handler func(ctx context.Context, msg Message) Result

type outcome struct {
	payload json.RawMessage
	err     error
}

type envelope struct {
	ctx    context.Context
	cancel context.CancelFunc
	msg    Message
	reply  chan outcome
}

// Bus owns the set of open endpoints.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[Context]*Endpoint
	timeout   time.Duration
}

func NewBus(timeout time.Duration) *Bus {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bus{
		endpoints: make(map[Context]*Endpoint),
		timeout:   timeout,
	}
}

// Open registers a new endpoint and starts its loop.
func (b *Bus) Open(name Context) (*Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.endpoints[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	ep := &Endpoint{
		name:     name,
		bus:      b,
		handlers: make(map[string]Handler),
		inbox:    make(chan envelope, 32),
		done:     make(chan struct{}),
	}
	b.endpoints[name] = ep
	go ep.run()
	return ep, nil
}

// Lookup reports whether an endpoint with the given name is open.
func (b *Bus) Lookup(name Context) (*Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[name]
	return ep, ok
}

// Close shuts down every endpoint.
func (b *Bus) Close() {
	b.mu.Lock()
	eps := make([]*Endpoint, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		eps = append(eps, ep)
	}
	b.mu.Unlock()

	for _, ep := range eps {
		ep.Close()
	}
}

func (b *Bus) remove(ep *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.endpoints[ep.name]; ok && current == ep {
		delete(b.endpoints, ep.name)
	}
}

func (b *Bus) deliver(ctx context.Context, from *Endpoint, to Context, action string, payload any, reply chan outcome, cancel context.CancelFunc) error {
	target, ok := b.Lookup(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnreachable, to)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", action, err)
		}
		raw = data
	}

	env := envelope{
		ctx:    ctx,
		cancel: cancel,
		msg: Message{
			ID:      uuid.NewString(),
			Action:  action,
			From:    from.name,
			Payload: raw,
		},
		reply: reply,
	}

	select {
	case target.inbox <- env:
		return nil
	case <-target.done:
		return fmt.Errorf("%w: %s", ErrUnreachable, to)
	case <-ctx.Done():
		return waitError(ctx, action, to)
	}
}

// Call sends a request from one endpoint to another context and waits for its
// single reply. Every call is bounded by the bus timeout even if ctx carries no
// deadline.
func Call[T any](ctx context.Context, from *Endpoint, to Context, action string, payload any) (T, error) {
	var zero T
	b := from.bus

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	reply := make(chan outcome, 1)
	if err := b.deliver(callCtx, from, to, action, payload, reply, nil); err != nil {
		return zero, err
	}

	select {
	case out := <-reply:
		if out.err != nil {
			return zero, out.err
		}
		var v T
		if len(out.payload) == 0 || string(out.payload) == "null" {
			return v, nil
		}
		if err := json.Unmarshal(out.payload, &v); err != nil {
			return zero, fmt.Errorf("decode %s reply: %w", action, err)
		}
		return v, nil
	case <-callCtx.Done():
		return zero, waitError(callCtx, action, to)
	}
}

// Send delivers a request without waiting for a reply. The handler runs with
// its own timeout, detached from the caller's cancellation.
func Send(ctx context.Context, from *Endpoint, to Context, action string, payload any) error {
	b := from.bus
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	if err := b.deliver(handlerCtx, from, to, action, payload, nil, cancel); err != nil {
		cancel()
		return err
	}
	return nil
}

func waitError(ctx context.Context, action string, to Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s to %s", ErrTimeout, action, to)
	}
	return ctx.Err()
}
