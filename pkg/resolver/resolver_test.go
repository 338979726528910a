// Copyright 2025 Tradeledger Authors
package resolver

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/attachment"
	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

type fixtureState struct{ Label string }

func (s fixtureState) Tag() string           { return "resolver-test-state" }
func (s fixtureState) Encode(w *canon.Writer) { w.WriteString(s.Label) }

type fixtureCommand struct{}

func (fixtureCommand) Tag() string            { return "resolver-test-command" }
func (fixtureCommand) Encode(w *canon.Writer) {}

type acceptingContract struct{ hash crypto.SecureHash }

func (c acceptingContract) Hash() crypto.SecureHash { return c.hash }
func (c acceptingContract) Verify(contract.TransactionForVerification) error { return nil }

// fakePeer serves transactions and attachments out of fixed in-memory maps.
type fakePeer struct {
	txs         map[crypto.SecureHash]model.SignedTransaction
	attachments map[crypto.SecureHash][]byte
}

func (p *fakePeer) FetchTransactions(_ context.Context, ids []crypto.SecureHash) ([]model.SignedTransaction, error) {
	out := make([]model.SignedTransaction, 0, len(ids))
	for _, id := range ids {
		tx, ok := p.txs[id]
		if !ok {
			return out, nil // deliberately short: simulates a peer that doesn't have it
		}
		out = append(out, tx)
	}
	return out, nil
}

func (p *fakePeer) FetchAttachment(_ context.Context, hash crypto.SecureHash) (io.ReadCloser, error) {
	data, ok := p.attachments[hash]
	if !ok {
		return nil, errors.New("fakePeer: no such attachment")
	}
	return io.NopCloser(newByteReader(data)), nil
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func sign(t *testing.T, priv crypto.PrivateKey, wire model.WireTransaction) model.SignedTransaction {
	t.Helper()
	return model.SignedTransaction{Wire: wire, Signatures: []crypto.Signature{crypto.Sign(priv, wire.Encode())}}
}

func TestResolveFetchesTransitiveAncestorFromPeer(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	contractHash := crypto.SHA256([]byte("resolver-test-contract"))
	registry := contract.NewRegistry()
	registry.Register(acceptingContract{hash: contractHash})
	group := validator.NewGroup(registry)

	rootWire := model.WireTransaction{
		Outputs: []model.State{
			{Contract: contractHash, Owner: &pub, Payload: fixtureState{Label: "root"}},
		},
		Commands: []model.Command{{Data: fixtureCommand{}, Signers: []crypto.PublicKey{pub}}},
	}
	root := sign(t, priv, rootWire)

	childWire := model.WireTransaction{
		Inputs: []model.StateRef{{TxID: root.ID(), Index: 0}},
		Outputs: []model.State{
			{Contract: contractHash, Owner: &pub, Payload: fixtureState{Label: "child"}},
		},
		Commands: []model.Command{{Data: fixtureCommand{}, Signers: []crypto.PublicKey{pub}}},
	}
	child := sign(t, priv, childWire)

	peer := &fakePeer{
		txs: map[crypto.SecureHash]model.SignedTransaction{
			root.ID():  root,
			child.ID(): child,
		},
	}

	store := txstore.NewMemoryStore()
	attachments, err := attachment.NewFileStore(t.TempDir())
	require.NoError(t, err)

	r := New(store, attachments, group)
	ctx := context.Background()
	err = r.Resolve(ctx, "peer-a", peer, []crypto.SecureHash{child.ID()})
	require.NoError(t, err)

	has, err := store.Has(ctx, root.ID())
	require.NoError(t, err)
	require.True(t, has, "ancestor root transaction should have been recorded")

	has, err = store.Has(ctx, child.ID())
	require.NoError(t, err)
	require.True(t, has)
}

func TestResolveFailsOnIncompletePeerResponse(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	contractHash := crypto.SHA256([]byte("resolver-test-contract"))
	registry := contract.NewRegistry()
	registry.Register(acceptingContract{hash: contractHash})
	group := validator.NewGroup(registry)

	wire := model.WireTransaction{
		Outputs: []model.State{
			{Contract: contractHash, Owner: &pub, Payload: fixtureState{Label: "orphan"}},
		},
		Commands: []model.Command{{Data: fixtureCommand{}, Signers: []crypto.PublicKey{pub}}},
	}
	tx := sign(t, priv, wire)

	peer := &fakePeer{txs: map[crypto.SecureHash]model.SignedTransaction{}} // peer has nothing
	store := txstore.NewMemoryStore()
	attachments, err := attachment.NewFileStore(t.TempDir())
	require.NoError(t, err)

	r := New(store, attachments, group)
	err = r.Resolve(context.Background(), "peer-a", peer, []crypto.SecureHash{tx.ID()})
	require.ErrorIs(t, err, ErrPeerResponseIncomplete)
}
