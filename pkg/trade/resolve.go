// Copyright 2025 Tradeledger Authors
package trade

import (
	"context"
	"fmt"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/txstore"
)

// resolveInputStates loads, from store, the output state each of wire's
// inputs refers to. It assumes every referenced ancestor transaction is
// already present locally — callers run the resolver over wire's inputs
// first to guarantee that.
func resolveInputStates(ctx context.Context, store txstore.Store, wire model.WireTransaction) ([]model.State, error) {
	states := make([]model.State, 0, len(wire.Inputs))
	cache := make(map[model.StateRef]model.State)
	for _, ref := range wire.Inputs {
		if st, ok := cache[ref]; ok {
			states = append(states, st)
			continue
		}
		ancestor, err := store.Get(ctx, ref.TxID)
		if err != nil {
			return nil, fmt.Errorf("trade: resolve input %s: %w", ref, err)
		}
		if int(ref.Index) >= len(ancestor.Wire.Outputs) {
			return nil, fmt.Errorf("trade: resolve input %s: output index out of range", ref)
		}
		st := ancestor.Wire.Outputs[ref.Index]
		cache[ref] = st
		states = append(states, st)
	}
	return states, nil
}

// ledgerTransactionFor builds a LedgerTransaction for signed by resolving
// its inputs against store.
func ledgerTransactionFor(ctx context.Context, store txstore.Store, signed model.SignedTransaction) (model.LedgerTransaction, error) {
	inputStates, err := resolveInputStates(ctx, store, signed.Wire)
	if err != nil {
		return model.LedgerTransaction{}, err
	}
	return model.LedgerTransaction{
		ID:          signed.ID(),
		Wire:        signed.Wire,
		Signatures:  signed.Signatures,
		InputStates: inputStates,
	}, nil
}

// seedsFor returns the distinct ancestor transaction ids wire's inputs
// refer to, suitable as Resolver.Resolve seeds.
func seedsFor(wire model.WireTransaction) []crypto.SecureHash {
	seen := make(map[crypto.SecureHash]bool)
	var out []crypto.SecureHash
	for _, ref := range wire.Inputs {
		if !seen[ref.TxID] {
			seen[ref.TxID] = true
			out = append(out, ref.TxID)
		}
	}
	return out
}
