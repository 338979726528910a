// Copyright 2025 Tradeledger Authors
package model

import "errors"

// Sentinel errors surfaced by the data model itself. Higher layers (the
// group validator, the resolver, the trade protocol) define their own
// richer error types carrying structured data; these two are
// plain verification outcomes that belong to a single transaction.
var (
	// ErrSignatureInvalid is the non-fatal outcome of signature
	// verification: a signature's bytes do not verify against the
	// canonical serialization it claims to cover.
	ErrSignatureInvalid = errors.New("model: signature invalid")

	// ErrMissingSignature is surfaced when a command-required signer key
	// has no corresponding signature.
	ErrMissingSignature = errors.New("model: missing signature for required signer")
)
