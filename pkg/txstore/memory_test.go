// Copyright 2025 Tradeledger Authors
package txstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

func sampleTransaction(t *testing.T) model.SignedTransaction {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	wire := model.WireTransaction{}
	sig := crypto.Sign(priv, wire.Encode())
	_ = pub
	return model.SignedTransaction{Wire: wire, Signatures: []crypto.Signature{sig}}
}

func TestMemoryStorePutThenGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tx := sampleTransaction(t)

	require.NoError(t, store.PutBatch(ctx, []model.SignedTransaction{tx}))

	got, err := store.Get(ctx, tx.ID())
	require.NoError(t, err)
	require.Equal(t, tx.ID(), got.ID())

	has, err := store.Has(ctx, tx.ID())
	require.NoError(t, err)
	require.True(t, has)
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, crypto.SHA256([]byte("absent")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePutBatchIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tx := sampleTransaction(t)

	require.NoError(t, store.PutBatch(ctx, []model.SignedTransaction{tx}))
	require.NoError(t, store.PutBatch(ctx, []model.SignedTransaction{tx}))

	got, err := store.Get(ctx, tx.ID())
	require.NoError(t, err)
	require.Equal(t, tx.ID(), got.ID())
}
