// Copyright 2025 Tradeledger Authors
package contract

import (
	"fmt"
	"sync"

	"github.com/tradeledger/core/pkg/crypto"
)

// Registry maps a contract hash to its implementation. The runtime
// populates one at node start; it is not
// itself part of the consensus-critical core, so a fake registry with a
// handful of entries is enough for tests.
type Registry struct {
	mu        sync.RWMutex
	contracts map[crypto.SecureHash]Contract
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[crypto.SecureHash]Contract)}
}

// Register adds c under its own Hash(). Registering the same hash twice
// is a programmer error and panics.
func (r *Registry) Register(c Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := c.Hash()
	if _, exists := r.contracts[h]; exists {
		panic(fmt.Sprintf("contract: hash %s already registered", h))
	}
	r.contracts[h] = c
}

// Lookup returns the contract registered under hash, or false if none is
// known to this node.
func (r *Registry) Lookup(hash crypto.SecureHash) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[hash]
	return c, ok
}
