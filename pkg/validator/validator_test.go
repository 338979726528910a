// Copyright 2025 Tradeledger Authors
package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// testState is a minimal ContractStateData used only by this test suite.
type testState struct {
	Label string
}

func (s testState) Tag() string { return "validator-test-state" }
func (s testState) Encode(w *canon.Writer) {
	w.WriteString(s.Label)
}

// testCommand is a minimal CommandData used only by this test suite.
type testCommand struct{}

func (testCommand) Tag() string            { return "validator-test-command" }
func (testCommand) Encode(w *canon.Writer) {}

// acceptingContract always accepts; rejectingContract always rejects.
type acceptingContract struct{ hash crypto.SecureHash }

func (c acceptingContract) Hash() crypto.SecureHash { return c.hash }
func (c acceptingContract) Verify(contract.TransactionForVerification) error { return nil }

type rejectingContract struct{ hash crypto.SecureHash }

func (c rejectingContract) Hash() crypto.SecureHash { return c.hash }
func (c rejectingContract) Verify(tx contract.TransactionForVerification) error {
	return contract.Reject(c.hash, "rejectingContract always rejects")
}

func buildIssuance(t *testing.T, contractHash crypto.SecureHash, owner crypto.PublicKey, priv crypto.PrivateKey) model.LedgerTransaction {
	t.Helper()
	wire := model.WireTransaction{
		Outputs: []model.State{
			{Contract: contractHash, Owner: &owner, Payload: testState{Label: "genesis"}},
		},
		Commands: []model.Command{
			{Data: testCommand{}, Signers: []crypto.PublicKey{owner}},
		},
	}
	sig := crypto.Sign(priv, wire.Encode())
	return model.LedgerTransaction{
		ID:         wire.ID(),
		Wire:       wire,
		Signatures: []crypto.Signature{sig},
	}
}

func buildSpend(t *testing.T, contractHash crypto.SecureHash, input model.StateRef, owner crypto.PublicKey, priv crypto.PrivateKey, label string) model.LedgerTransaction {
	t.Helper()
	wire := model.WireTransaction{
		Inputs: []model.StateRef{input},
		Outputs: []model.State{
			{Contract: contractHash, Owner: &owner, Payload: testState{Label: label}},
		},
		Commands: []model.Command{
			{Data: testCommand{}, Signers: []crypto.PublicKey{owner}},
		},
	}
	sig := crypto.Sign(priv, wire.Encode())
	return model.LedgerTransaction{
		ID:         wire.ID(),
		Wire:       wire,
		Signatures: []crypto.Signature{sig},
	}
}

func TestValidateAcceptsSimpleIssuanceAndSpend(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-contract"))
	registry.Register(acceptingContract{hash: contractHash})

	group := NewGroup(registry)

	issuance := buildIssuance(t, contractHash, pub, priv)
	spend := buildSpend(t, contractHash, issuance.StateRefForOutput(0), pub, priv, "spent")

	err = group.Validate([]model.LedgerTransaction{issuance}, nil)
	require.NoError(t, err)

	err = group.Validate([]model.LedgerTransaction{spend}, []model.LedgerTransaction{issuance})
	require.NoError(t, err)
}

func TestValidateDetectsUnresolvedReference(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-contract"))
	registry.Register(acceptingContract{hash: contractHash})
	group := NewGroup(registry)

	phantomRef := model.StateRef{TxID: crypto.SHA256([]byte("nonexistent")), Index: 0}
	spend := buildSpend(t, contractHash, phantomRef, pub, priv, "orphan")

	err = group.Validate([]model.LedgerTransaction{spend}, nil)
	require.Error(t, err)
	var urErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &urErr)
}

func TestValidateDetectsDoubleSpendAcrossTransactions(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-contract"))
	registry.Register(acceptingContract{hash: contractHash})
	group := NewGroup(registry)

	issuance := buildIssuance(t, contractHash, pub, priv)
	ref := issuance.StateRefForOutput(0)
	spendA := buildSpend(t, contractHash, ref, pub, priv, "first-spend")
	spendB := buildSpend(t, contractHash, ref, pub, priv, "second-spend")

	err = group.Validate([]model.LedgerTransaction{spendA, spendB}, []model.LedgerTransaction{issuance})
	require.Error(t, err)
	var dsErr *DoubleSpendError
	require.ErrorAs(t, err, &dsErr)
	require.Equal(t, ref, dsErr.ConflictRef)
}

func TestValidateDetectsDuplicateInputWithinOneTransaction(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-contract"))
	registry.Register(acceptingContract{hash: contractHash})
	group := NewGroup(registry)

	issuance := buildIssuance(t, contractHash, pub, priv)
	ref := issuance.StateRefForOutput(0)

	wire := model.WireTransaction{
		Inputs: []model.StateRef{ref, ref},
		Outputs: []model.State{
			{Contract: contractHash, Owner: &pub, Payload: testState{Label: "dup"}},
		},
		Commands: []model.Command{
			{Data: testCommand{}, Signers: []crypto.PublicKey{pub}},
		},
	}
	sig := crypto.Sign(priv, wire.Encode())
	spend := model.LedgerTransaction{ID: wire.ID(), Wire: wire, Signatures: []crypto.Signature{sig}}

	err = group.Validate([]model.LedgerTransaction{spend}, []model.LedgerTransaction{issuance})
	require.Error(t, err)
	var dsErr *DoubleSpendError
	require.ErrorAs(t, err, &dsErr)
	require.Equal(t, spend.ID, dsErr.First)
	require.Equal(t, spend.ID, dsErr.Second)
}

func TestValidateSurfacesContractRejection(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-rejecting-contract"))
	registry.Register(rejectingContract{hash: contractHash})
	group := NewGroup(registry)

	issuance := buildIssuance(t, contractHash, pub, priv)
	err = group.Validate([]model.LedgerTransaction{issuance}, nil)
	require.Error(t, err)
	var rejErr *ContractRejectedError
	require.ErrorAs(t, err, &rejErr)
}

func TestValidateDetectsMissingSignature(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	registry := contract.NewRegistry()
	contractHash := crypto.SHA256([]byte("validator-test-contract"))
	registry.Register(acceptingContract{hash: contractHash})
	group := NewGroup(registry)

	wire := model.WireTransaction{
		Outputs: []model.State{
			{Contract: contractHash, Owner: &pub, Payload: testState{Label: "unsigned"}},
		},
		Commands: []model.Command{
			{Data: testCommand{}, Signers: []crypto.PublicKey{pub}},
		},
	}
	unsigned := model.LedgerTransaction{ID: wire.ID(), Wire: wire}

	err = group.Validate([]model.LedgerTransaction{unsigned}, nil)
	require.Error(t, err)
	var msErr *MissingSignatureError
	require.ErrorAs(t, err, &msErr)
}
