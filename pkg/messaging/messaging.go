// Copyright 2025 Tradeledger Authors
//
// Messaging collaborator: topic- and session-tagged send/receive.
// Transport is explicitly out of scope for the core; this package defines
// the interface every protocol depends on and a reference in-process Bus
// so the resolver and trade protocols are exercisable without a network.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoPeer is returned by Bus.Send when no party is registered under the
// destination name.
var ErrNoPeer = errors.New("messaging: no such peer")

// Envelope is a single message on the wire: a topic (selects the handler
// on the recipient side), a session id (correlates request/response pairs
// within one protocol run),
// and an opaque payload the caller encodes and decodes itself.
type Envelope struct {
	Topic     string
	SessionID int64
	Payload   []byte
}

// Messenger is the collaborator every protocol (resolver, trade) depends
// on. It never owns protocol semantics — only delivery.
type Messenger interface {
	// Send delivers env to the named party and returns once accepted by
	// the transport (not necessarily once processed).
	Send(ctx context.Context, to string, env Envelope) error
	// Receive blocks until an envelope for sessionID arrives, or ctx is
	// done.
	Receive(ctx context.Context, sessionID int64) (Envelope, error)
}

// Bus is an in-memory Messenger connecting named parties within one
// process, used by tests and by single-process demo wiring. Each party
// gets its own inbox per session id.
type Bus struct {
	mu      sync.Mutex
	parties map[string]*partyInbox
}

type partyInbox struct {
	mu       sync.Mutex
	sessions map[int64]chan Envelope
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{parties: make(map[string]*partyInbox)}
}

// Register creates an inbox for name, returning a Messenger scoped to
// that party's point of view.
func (b *Bus) Register(name string) Messenger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.parties[name]; !exists {
		b.parties[name] = &partyInbox{sessions: make(map[int64]chan Envelope)}
	}
	return &busHandle{bus: b, self: name}
}

func (b *Bus) inboxFor(name string) (*partyInbox, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inbox, ok := b.parties[name]
	return inbox, ok
}

func (inbox *partyInbox) channelFor(sessionID int64) chan Envelope {
	inbox.mu.Lock()
	defer inbox.mu.Unlock()
	ch, ok := inbox.sessions[sessionID]
	if !ok {
		ch = make(chan Envelope, 16)
		inbox.sessions[sessionID] = ch
	}
	return ch
}

// busHandle is the Messenger a single registered party uses to send to
// others and receive on its own inboxes.
type busHandle struct {
	bus  *Bus
	self string
}

func (h *busHandle) Send(ctx context.Context, to string, env Envelope) error {
	inbox, ok := h.bus.inboxFor(to)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoPeer, to)
	}
	ch := inbox.channelFor(env.SessionID)
	select {
	case ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *busHandle) Receive(ctx context.Context, sessionID int64) (Envelope, error) {
	inbox, ok := h.bus.inboxFor(h.self)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrNoPeer, h.self)
	}
	ch := inbox.channelFor(sessionID)
	select {
	case env := <-ch:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}
