// Copyright 2025 Tradeledger Authors
package txstore

import (
	"context"
	"sync"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// MemoryStore is an in-process Store backing unit tests and single-node
// demo wiring. Insertion order is not preserved; lookups are by id only.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[crypto.SecureHash]model.SignedTransaction
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[crypto.SecureHash]model.SignedTransaction)}
}

func (s *MemoryStore) Get(_ context.Context, id crypto.SecureHash) (model.SignedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[id]
	if !ok {
		return model.SignedTransaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *MemoryStore) Has(_ context.Context, id crypto.SecureHash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok, nil
}

func (s *MemoryStore) PutBatch(_ context.Context, txs []model.SignedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The whole batch is applied under one lock with no failure path, so
	// it lands whole, matching the Postgres-backed store's transactional
	// guarantee.
	staged := make(map[crypto.SecureHash]model.SignedTransaction, len(txs))
	for _, tx := range txs {
		staged[tx.ID()] = tx
	}
	for id, tx := range staged {
		s.byID[id] = tx
	}
	return nil
}
