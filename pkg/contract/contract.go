// Copyright 2025 Tradeledger Authors
//
// Contract interface. A contract's verify is a pure function:
// given identical inputs it returns identical results, with no access to
// clocks, I/O, network, randomness, or mutable external state. The only
// notion of time a contract may consult is a TimestampCommand embedded in
// the transaction itself.
package contract

import (
	"fmt"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// TransactionForVerification is the pure, fully-resolved view of a
// transaction a contract's Verify sees: resolved input/output states,
// commands with their signer keys (the group validator leaves each
// signer's Party nil; it does no identity lookup), attachment bytes by
// hash, and the transaction's own hash. It carries no reference to a
// database, clock, or network — only data.
type TransactionForVerification struct {
	ID          crypto.SecureHash
	Inputs      []model.State
	Outputs     []model.State
	Commands    []model.ResolvedCommand
	Attachments map[string][]byte
}

// RejectionError is returned by Verify when a contract refuses a
// transaction. It carries a human message for the caller; it is never
// retried.
type RejectionError struct {
	ContractHash crypto.SecureHash
	Message      string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("contract %s rejected transaction: %s", e.ContractHash, e.Message)
}

// Reject constructs a RejectionError, the only way a Contract should
// signal refusal.
func Reject(contractHash crypto.SecureHash, format string, args ...any) error {
	return &RejectionError{ContractHash: contractHash, Message: fmt.Sprintf(format, args...)}
}

// Contract is a pure verification predicate identified by the hash of its
// code. Contracts additionally expose builder helpers (generateIssue,
// generateSpend, ...) used by protocols to construct transactions — those
// live on the concrete contract type, not on this interface, because they
// are not part of consensus.
type Contract interface {
	// Hash returns the content-addressed identity other states reference
	// to mean "governed by this contract".
	Hash() crypto.SecureHash

	// Verify either accepts tx or returns a *RejectionError. It MUST NOT
	// suspend, perform I/O, or consult anything but tx.
	Verify(tx TransactionForVerification) error
}
