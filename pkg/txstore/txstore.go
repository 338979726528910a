// Copyright 2025 Tradeledger Authors
//
// Local transaction database: the store every node keeps of
// signed transactions it has already verified. Insertion is idempotent —
// recording the same transaction twice is a no-op, not an error — and the
// resolver relies on atomically recording a whole batch or none of it.
package txstore

import (
	"context"
	"errors"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// ErrNotFound is returned by Get when no transaction is recorded under the
// requested id.
var ErrNotFound = errors.New("txstore: transaction not found")

// Store is the interface the resolver and trade protocol depend on. A
// single writer owns any given transaction id at a time; callers
// serialize their own writes, the store itself only guarantees atomicity
// of one PutBatch call.
type Store interface {
	// Get returns the signed transaction recorded under id, or ErrNotFound.
	Get(ctx context.Context, id crypto.SecureHash) (model.SignedTransaction, error)
	// Has reports whether a transaction is recorded locally, without
	// paying for a full decode.
	Has(ctx context.Context, id crypto.SecureHash) (bool, error)
	// PutBatch records every transaction in txs. Either all of them become
	// visible to subsequent Get/Has calls or, on error, none do — a
	// partial write would leave an unvalidated predecessor recorded as if
	// trustworthy.
	PutBatch(ctx context.Context, txs []model.SignedTransaction) error
}
