// Copyright 2025 Tradeledger Authors
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradeledger/core/internal/metrics"
	"github.com/tradeledger/core/pkg/attachment"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/messaging"
	"github.com/tradeledger/core/pkg/oracle"
	"github.com/tradeledger/core/pkg/resolver"
	"github.com/tradeledger/core/pkg/tsa"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

// Node bundles every core component a transport binds protocol work to:
// the stores, the group validator, the dependency resolver, and the
// optional timestamping authority and rate-fix oracle this node hosts.
type Node struct {
	Name        string
	Store       txstore.Store
	Attachments attachment.Store
	Group       *validator.Group
	Resolver    *resolver.Resolver
	Messenger   messaging.Messenger

	TSA    *tsa.Authority
	Oracle *oracle.Oracle

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	started time.Time
}

// RegisterAdminHandlers wires the node's health and read-only query
// endpoints onto mux. These serve operators, not peers; peer-facing
// exchanges go over the messaging collaborator.
func (n *Node) RegisterAdminHandlers(mux *http.ServeMux) {
	n.started = time.Now()
	mux.Handle("/metrics", n.Metrics.Handler())
	mux.HandleFunc("/healthz", n.handleHealth)
	mux.HandleFunc("/api/transactions/", n.handleGetTransaction)
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"node":           n.Name,
		"tsa_enabled":    n.TSA != nil,
		"oracle_enabled": n.Oracle != nil,
		"uptime_seconds": int64(time.Since(n.started).Seconds()),
	})
}

// handleGetTransaction serves GET /api/transactions/<hex tx id> from the
// local store.
func (n *Node) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	idHex := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}
	id, err := crypto.NewSecureHash(crypto.AlgorithmSHA256, raw)
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := n.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, txstore.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		n.Logger.Error().Err(err).Str("tx_id", idHex).Msg("transaction lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":          tx.ID().Hex(),
		"inputs":      len(tx.Wire.Inputs),
		"outputs":     len(tx.Wire.Outputs),
		"commands":    len(tx.Wire.Commands),
		"attachments": len(tx.Wire.Attachments),
		"signatures":  len(tx.Signatures),
	})
}
