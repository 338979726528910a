// Copyright 2025 Tradeledger Authors
//
// Dependency resolver protocol: given a set of seed transaction
// hashes and a peer, walks the transitive ancestry, fetching whatever is
// missing locally, then re-verifies the resulting group before recording
// it. A single mis-verified dependency here lets invalid value propagate,
// so the walk takes no shortcuts.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog"

	"github.com/tradeledger/core/pkg/attachment"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

// Errors surfaced by the resolver.
var (
	// ErrPeerResponseIncomplete is returned when a peer's fetch response
	// is missing elements, or returns them out of the requested order.
	ErrPeerResponseIncomplete = errors.New("resolver: peer response incomplete")

	// ErrAttachmentCorrupt is returned when a fetched attachment's actual
	// hash does not match the hash it was fetched by.
	ErrAttachmentCorrupt = errors.New("resolver: attachment corrupt")

	// ErrGraphTooLarge is the DoS ceiling: the ancestry graph exceeded the
	// configured bound before resolution completed.
	ErrGraphTooLarge = errors.New("resolver: dependency graph too large")
)

// DefaultGraphSizeLimit is the default DoS ceiling on the number of
// transactions fetched in one Resolve call.
const DefaultGraphSizeLimit = 5000

// Metrics receives resolution outcomes. internal/metrics implements it;
// a nil Metrics disables instrumentation entirely.
type Metrics interface {
	ObserveResolution(downloaded, fromDisk int)
	ResolutionFailed(graphLimitHit bool)
}

// PeerClient is the abstract counterparty the resolver fetches from.
// Transport is out of scope for the core; only this interface is.
type PeerClient interface {
	// FetchTransactions returns the signed transactions for ids, in the
	// same order as ids. A response shorter than ids, or one whose
	// entries don't match the requested ids in order, is a protocol
	// violation the resolver treats as ErrPeerResponseIncomplete.
	FetchTransactions(ctx context.Context, ids []crypto.SecureHash) ([]model.SignedTransaction, error)
	// FetchAttachment streams the attachment archive named by hash.
	FetchAttachment(ctx context.Context, hash crypto.SecureHash) (io.ReadCloser, error)
}

// Resolver runs the dependency-resolution algorithm against a local
// transaction store and attachment store, validating the resulting group
// before recording anything.
type Resolver struct {
	store       txstore.Store
	attachments attachment.Store
	group       *validator.Group
	logger      zerolog.Logger
	metrics     Metrics

	graphSizeLimit int

	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	limiterRate  rate.Limit
	limiterBurst int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGraphSizeLimit overrides the default DoS ceiling.
func WithGraphSizeLimit(n int) Option {
	return func(r *Resolver) { r.graphSizeLimit = n }
}

// WithPeerRateLimit bounds how fast the resolver issues fetch requests to
// any single peer, independent of the graph-size ceiling.
func WithPeerRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Resolver) {
		r.limiterRate = limit
		r.limiterBurst = burst
	}
}

// WithLogger attaches a logger to the resolver.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics attaches a metrics sink to the resolver.
func WithMetrics(m Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New returns a Resolver backed by the given stores and group validator.
func New(store txstore.Store, attachments attachment.Store, group *validator.Group, opts ...Option) *Resolver {
	r := &Resolver{
		store:          store,
		attachments:    attachments,
		group:          group,
		logger:         zerolog.Nop(),
		graphSizeLimit: DefaultGraphSizeLimit,
		limiters:       make(map[string]*rate.Limiter),
		limiterRate:    rate.Inf,
		limiterBurst:   0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) limiterFor(peerName string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[peerName]
	if !ok {
		lim = rate.NewLimiter(r.limiterRate, r.limiterBurst)
		r.limiters[peerName] = lim
	}
	return lim
}

// orderedSet is an insertion-order-preserving set of transaction hashes,
// keeping the dependency walk deterministic regardless of peer latency.
type orderedSet struct {
	order []crypto.SecureHash
	have  map[crypto.SecureHash]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{have: make(map[crypto.SecureHash]bool)}
}

func (s *orderedSet) add(h crypto.SecureHash) {
	if s.have[h] {
		return
	}
	s.have[h] = true
	s.order = append(s.order, h)
}

// Resolve ensures every transitive ancestor of seeds is present locally
// and verified, fetching whatever is missing from peer (identified by
// peerName for rate-limiting and logging purposes).
func (r *Resolver) Resolve(ctx context.Context, peerName string, peer PeerClient, seeds []crypto.SecureHash) error {
	err := r.resolve(ctx, peerName, peer, seeds)
	if err != nil && r.metrics != nil {
		r.metrics.ResolutionFailed(errors.Is(err, ErrGraphTooLarge))
	}
	return err
}

func (r *Resolver) resolve(ctx context.Context, peerName string, peer PeerClient, seeds []crypto.SecureHash) error {
	next := newOrderedSet()
	for _, s := range seeds {
		next.add(s)
	}

	pendingRaw := make(map[crypto.SecureHash]model.SignedTransaction)
	origin := make(map[crypto.SecureHash]string) // "disk" | "downloaded"
	resolvedLedger := make(map[crypto.SecureHash]model.LedgerTransaction)
	outputsKnown := make(map[model.StateRef]model.State)
	graphSize := 0

	limiter := r.limiterFor(peerName)

	for len(next.order) > 0 {
		round := next.order
		next = newOrderedSet()

		var toFetch []crypto.SecureHash
		for _, id := range round {
			if _, done := resolvedLedger[id]; done {
				continue
			}
			if _, known := pendingRaw[id]; known {
				continue
			}
			has, err := r.store.Has(ctx, id)
			if err != nil {
				return fmt.Errorf("resolver: check local store for %s: %w", id, err)
			}
			if has {
				tx, err := r.store.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("resolver: load %s from local store: %w", id, err)
				}
				pendingRaw[id] = tx
				origin[id] = "disk"
				recordOutputs(outputsKnown, id, tx.Wire)
				continue
			}
			toFetch = append(toFetch, id)
		}

		if len(toFetch) > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("resolver: rate limit wait: %w", err)
			}
			fetched, err := peer.FetchTransactions(ctx, toFetch)
			if err != nil {
				return fmt.Errorf("resolver: fetch transactions from %s: %w", peerName, err)
			}
			if len(fetched) != len(toFetch) {
				return fmt.Errorf("%w: requested %d, got %d", ErrPeerResponseIncomplete, len(toFetch), len(fetched))
			}
			for i, tx := range fetched {
				wantID := toFetch[i]
				if tx.ID() != wantID {
					return fmt.Errorf("%w: position %d wanted %s, got %s", ErrPeerResponseIncomplete, i, wantID, tx.ID())
				}
				if err := r.fetchMissingAttachments(ctx, peerName, peer, limiter, tx.Wire); err != nil {
					return err
				}
				pendingRaw[wantID] = tx
				origin[wantID] = "downloaded"
				recordOutputs(outputsKnown, wantID, tx.Wire)
			}
			graphSize += len(toFetch)
			if graphSize > r.graphSizeLimit {
				return fmt.Errorf("%w: exceeded %d transactions", ErrGraphTooLarge, r.graphSizeLimit)
			}
		}

		for _, id := range round {
			tx, ok := pendingRaw[id]
			if !ok {
				continue // handled by an earlier round already
			}
			if _, done := resolvedLedger[id]; done {
				continue
			}
			inputStates := make([]model.State, 0, len(tx.Wire.Inputs))
			missing := false
			for _, ref := range tx.Wire.Inputs {
				if st, ok := outputsKnown[ref]; ok {
					inputStates = append(inputStates, st)
					continue
				}
				if _, known := pendingRaw[ref.TxID]; known {
					return &validator.UnresolvedReferenceError{TxHash: id, Input: ref}
				}
				missing = true
				next.add(ref.TxID)
			}
			if missing {
				// Retried next round, once its missing ancestors are known.
				next.add(id)
				continue
			}
			resolvedLedger[id] = model.LedgerTransaction{
				ID:          id,
				Wire:        tx.Wire,
				Signatures:  tx.Signatures,
				InputStates: inputStates,
				Attachments: r.loadLocalAttachments(tx.Wire),
			}
		}
	}

	var toVerify, alreadyVerified []model.LedgerTransaction
	var newlyDownloaded []model.SignedTransaction
	for id, lt := range resolvedLedger {
		switch origin[id] {
		case "disk":
			alreadyVerified = append(alreadyVerified, lt)
		case "downloaded":
			toVerify = append(toVerify, lt)
			newlyDownloaded = append(newlyDownloaded, model.SignedTransaction{Wire: lt.Wire, Signatures: lt.Signatures})
		}
	}

	if err := r.group.Validate(toVerify, alreadyVerified); err != nil {
		return fmt.Errorf("resolver: group validation failed: %w", err)
	}

	if len(newlyDownloaded) > 0 {
		if err := r.store.PutBatch(ctx, newlyDownloaded); err != nil {
			return fmt.Errorf("resolver: record resolved batch: %w", err)
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveResolution(len(newlyDownloaded), len(alreadyVerified))
	}
	r.logger.Info().
		Int("downloaded", len(newlyDownloaded)).
		Int("from_disk", len(alreadyVerified)).
		Msg("dependency resolution complete")
	return nil
}

func recordOutputs(outputsKnown map[model.StateRef]model.State, id crypto.SecureHash, wire model.WireTransaction) {
	for i, out := range wire.Outputs {
		outputsKnown[model.StateRef{TxID: id, Index: uint32(i)}] = out
	}
}

func (r *Resolver) fetchMissingAttachments(ctx context.Context, peerName string, peer PeerClient, limiter *rate.Limiter, wire model.WireTransaction) error {
	for _, hash := range wire.Attachments {
		rc, err := r.attachments.Open(hash)
		if err == nil {
			rc.Close()
			continue
		}
		if !errors.Is(err, attachment.ErrNotFound) {
			return fmt.Errorf("resolver: check local attachment %s: %w", hash, err)
		}
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("resolver: rate limit wait: %w", err)
		}
		stream, err := peer.FetchAttachment(ctx, hash)
		if err != nil {
			return fmt.Errorf("resolver: fetch attachment %s from %s: %w", hash, peerName, err)
		}
		got, err := r.attachments.Import(stream)
		stream.Close()
		if err != nil {
			return fmt.Errorf("resolver: import attachment %s: %w", hash, err)
		}
		if !got.Equal(hash) {
			return fmt.Errorf("%w: requested %s, stored as %s", ErrAttachmentCorrupt, hash, got)
		}
	}
	return nil
}

func (r *Resolver) loadLocalAttachments(wire model.WireTransaction) map[string][]byte {
	if len(wire.Attachments) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(wire.Attachments))
	for _, hash := range wire.Attachments {
		rc, err := r.attachments.Open(hash)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		out[hash.Hex()] = data
	}
	return out
}
