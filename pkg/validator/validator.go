// Copyright 2025 Tradeledger Authors
//
// Transaction-group validator: enforces the single-input-spend
// invariant across a batch of transactions and runs contract verification
// over the resolved group. This is consensus-critical code: a bug here
// lets invalid value propagate. The algorithm below takes no shortcuts.
package validator

import (
	"fmt"
	"sort"

	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// UnresolvedReferenceError is returned when a transaction's input names a
// StateRef absent from both NEW and ROOTS.
type UnresolvedReferenceError struct {
	TxHash crypto.SecureHash
	Input  model.StateRef
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("validator: unresolved reference %s required by transaction %s", e.Input, e.TxHash)
}

// DoubleSpendError is returned when two transactions — or one transaction
// twice — consume the same state reference.
type DoubleSpendError struct {
	ConflictRef model.StateRef
	First       crypto.SecureHash
	Second      crypto.SecureHash
}

func (e *DoubleSpendError) Error() string {
	if e.First == e.Second {
		return fmt.Sprintf("validator: double-spend, transaction %s consumes %s more than once", e.First, e.ConflictRef)
	}
	return fmt.Sprintf("validator: double-spend on %s between transactions %s and %s", e.ConflictRef, e.First, e.Second)
}

// ContractRejectedError wraps the *contract.RejectionError returned by a
// failing Verify call with the transaction it was raised against.
type ContractRejectedError struct {
	TxID  crypto.SecureHash
	Cause error
}

func (e *ContractRejectedError) Error() string {
	return fmt.Sprintf("validator: transaction %s rejected: %v", e.TxID, e.Cause)
}

func (e *ContractRejectedError) Unwrap() error { return e.Cause }

// MissingSignatureError is returned when a required signer has no matching
// signature on the wire transaction.
type MissingSignatureError struct {
	TxID crypto.SecureHash
	Keys []crypto.PublicKey
}

func (e *MissingSignatureError) Error() string {
	return fmt.Sprintf("validator: transaction %s is missing %d required signature(s)", e.TxID, len(e.Keys))
}

// Group validates sets of ledger transactions against each other and
// against contracts resolved through a Registry.
type Group struct {
	contracts *contract.Registry
}

// NewGroup returns a validator backed by the given contract registry.
func NewGroup(contracts *contract.Registry) *Group {
	return &Group{contracts: contracts}
}

// Validate runs the full group validation over new (the transactions being
// admitted) given roots (previously validated transactions whose outputs
// may be consumed). It returns nil only if every transaction in new is
// fully accepted.
func (g *Group) Validate(new, roots []model.LedgerTransaction) error {
	ordered, _, err := g.checkStatesAndContracts(new, roots)
	if err != nil {
		return err
	}

	for _, t := range ordered {
		signed := model.SignedTransaction{Wire: t.Wire, Signatures: t.Signatures}
		if err := signed.VerifySignatures(false); err != nil {
			if missing := signed.MissingSigners(); len(missing) > 0 {
				return &MissingSignatureError{TxID: t.ID, Keys: missing}
			}
			return fmt.Errorf("validator: transaction %s: %w", t.ID, err)
		}
	}

	return nil
}

// VerifyContractsOnly runs the unresolved-reference, double-spend, and
// contract-verification phases of Validate for a single proposed
// transaction against roots, without requiring any signature to be
// present yet. The two-party trade protocol uses this to check a
// counterparty's proposal before either side has fully signed it.
func (g *Group) VerifyContractsOnly(t model.LedgerTransaction, roots []model.LedgerTransaction) error {
	_, _, err := g.checkStatesAndContracts([]model.LedgerTransaction{t}, roots)
	return err
}

func (g *Group) checkStatesAndContracts(new, roots []model.LedgerTransaction) ([]model.LedgerTransaction, map[model.StateRef]model.State, error) {
	ordered := make([]model.LedgerTransaction, len(new))
	copy(ordered, new)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	outputs := make(map[model.StateRef]model.State)
	for _, t := range roots {
		for i, out := range t.Outputs() {
			outputs[t.StateRefForOutput(i)] = out
		}
	}
	for _, t := range ordered {
		for i, out := range t.Outputs() {
			outputs[t.StateRefForOutput(i)] = out
		}
	}

	// A ledger transaction carries the resolved state for each of its
	// inputs; those states are outputs of already-validated ancestors and
	// stand in for transactions not present in new or roots. A transaction
	// whose inputs were never resolved (empty InputStates) gets no such
	// credit and still fails the unresolved-reference check below.
	for _, t := range ordered {
		if len(t.InputStates) != len(t.Wire.Inputs) {
			continue
		}
		for i, ref := range t.Wire.Inputs {
			if _, ok := outputs[ref]; !ok {
				outputs[ref] = t.InputStates[i]
			}
		}
	}

	consumedBy := make(map[model.StateRef]crypto.SecureHash)
	for _, t := range ordered {
		for _, ref := range t.Wire.Inputs {
			if _, ok := outputs[ref]; !ok {
				return nil, nil, &UnresolvedReferenceError{TxHash: t.ID, Input: ref}
			}
			if prior, ok := consumedBy[ref]; ok {
				return nil, nil, &DoubleSpendError{ConflictRef: ref, First: prior, Second: t.ID}
			}
			consumedBy[ref] = t.ID
		}
	}

	for _, t := range ordered {
		tfv, err := g.buildTransactionForVerification(t, outputs)
		if err != nil {
			return nil, nil, err
		}
		for _, h := range contractsMentionedBy(tfv) {
			c, ok := g.contracts.Lookup(h)
			if !ok {
				return nil, nil, &ContractRejectedError{TxID: t.ID, Cause: fmt.Errorf("no contract registered for hash %s", h)}
			}
			if err := c.Verify(tfv); err != nil {
				return nil, nil, &ContractRejectedError{TxID: t.ID, Cause: err}
			}
		}
	}

	return ordered, outputs, nil
}

func (g *Group) buildTransactionForVerification(t model.LedgerTransaction, outputs map[model.StateRef]model.State) (contract.TransactionForVerification, error) {
	inputs := make([]model.State, 0, len(t.Wire.Inputs))
	for _, ref := range t.Wire.Inputs {
		st, ok := outputs[ref]
		if !ok {
			return contract.TransactionForVerification{}, &UnresolvedReferenceError{TxHash: t.ID, Input: ref}
		}
		inputs = append(inputs, st)
	}

	resolved := make([]model.ResolvedCommand, 0, len(t.Wire.Commands))
	for _, cmd := range t.Wire.Commands {
		signers := make([]model.ResolvedSigner, 0, len(cmd.Signers))
		for _, k := range cmd.Signers {
			signers = append(signers, model.ResolvedSigner{Key: k})
		}
		resolved = append(resolved, model.ResolvedCommand{Data: cmd.Data, Signers: signers})
	}

	return contract.TransactionForVerification{
		ID:          t.ID,
		Inputs:      inputs,
		Outputs:     t.Outputs(),
		Commands:    resolved,
		Attachments: t.Attachments,
	}, nil
}

// contractsMentionedBy returns the deduplicated set of contract hashes
// referenced by either an input or an output state, in first-seen order.
// Contracts with no state transition of their own are still invoked.
func contractsMentionedBy(tfv contract.TransactionForVerification) []crypto.SecureHash {
	seen := make(map[crypto.SecureHash]bool)
	var out []crypto.SecureHash
	add := func(h crypto.SecureHash) {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, st := range tfv.Inputs {
		add(st.Contract)
	}
	for _, st := range tfv.Outputs {
		add(st.Contract)
	}
	return out
}
