// Copyright 2025 Tradeledger Authors
package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversBySessionID(t *testing.T) {
	bus := NewBus()
	alice := bus.Register("alice")
	bob := bus.Register("bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, alice.Send(ctx, "bob", Envelope{Topic: "greeting", SessionID: 42, Payload: []byte("hi")}))

	env, err := bob.Receive(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "greeting", env.Topic)
	require.Equal(t, []byte("hi"), env.Payload)
}

func TestSendToUnknownPeerFails(t *testing.T) {
	bus := NewBus()
	alice := bus.Register("alice")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := alice.Send(ctx, "ghost", Envelope{SessionID: 1})
	require.ErrorIs(t, err, ErrNoPeer)
}

func TestReceiveRespectsContextCancellation(t *testing.T) {
	bus := NewBus()
	alice := bus.Register("alice")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := alice.Receive(ctx, 99)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
