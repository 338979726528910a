// Copyright 2025 Tradeledger Authors
package tsa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func buildTimestampedWire(t *testing.T, after, before time.Time) model.WireTransaction {
	t.Helper()
	return model.WireTransaction{
		Commands: []model.Command{
			{Data: contract.TimestampCommand{After: &after, Before: &before}},
		},
	}
}

func TestSignSucceedsWithinWindow(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	identity := crypto.Party{Name: "tsa-1", Key: pub}

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	wire := buildTimestampedWire(t, now.Add(-time.Hour), now.Add(time.Hour))

	authority := New(identity, priv, fixedClock{t: now})
	sig, err := authority.Sign(wire.Encode())
	require.NoError(t, err)
	require.True(t, sig.Verify(wire.Encode()))
	require.True(t, sig.Signer.Equal(identity))
}

func TestSignRejectsOutsideWindow(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	identity := crypto.Party{Name: "tsa-1", Key: pub}

	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	wire := buildTimestampedWire(t, windowStart, windowEnd)

	tooLate := windowEnd.Add(time.Hour)
	authority := New(identity, priv, fixedClock{t: tooLate})
	_, err = authority.Sign(wire.Encode())
	require.ErrorIs(t, err, ErrTimestampOutsideWindow)
}

func TestSignRejectsMissingTimestampCommand(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	identity := crypto.Party{Name: "tsa-1", Key: pub}

	wire := model.WireTransaction{}
	authority := New(identity, priv, fixedClock{t: time.Now()})
	_, err = authority.Sign(wire.Encode())
	require.ErrorIs(t, err, ErrNoTimestampCommand)
}
