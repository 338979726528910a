// Copyright 2025 Tradeledger Authors
//
// Two-party trade protocol, seller side. The suspension points below
// are limited to send, receive, and the resolver sub-protocol call;
// nothing here blocks on anything else.
package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradeledger/core/pkg/contracts/cash"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/messaging"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/resolver"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

// TimestampSigner is the timestamping authority collaborator the seller
// calls out to in step 5 of the protocol. tsa.Authority
// satisfies this directly.
type TimestampSigner interface {
	Sign(wireBytes []byte) (crypto.LegallyIdentifiableSignature, error)
}

// Metrics receives trade outcomes. internal/metrics implements it; a nil
// Metrics disables instrumentation.
type Metrics interface {
	TradeFinished(role string, err error, elapsed time.Duration)
}

// SellerConfig configures one run of the seller side of a trade.
type SellerConfig struct {
	Messenger messaging.Messenger
	Store     txstore.Store
	Group     *validator.Group

	// Resolver and Peer let the seller pull the buyer's proposed
	// transaction's ancestor transactions before verifying it. Peer may be
	// nil if the caller already knows every ancestor is local.
	Resolver *resolver.Resolver
	Peer     resolver.PeerClient

	TimestampAuthority TimestampSigner

	// AssetRef is the state the seller is offering.
	AssetRef model.StateRef
	// AssetOwnerKey is the public half of the key that currently owns the
	// asset (the seller's own key); it must be the Owner recorded on the
	// asset state itself.
	AssetOwnerKey crypto.PublicKey
	// AssetOwnerPriv signs the asset's move command in step 6.
	AssetOwnerPriv crypto.PrivateKey

	Price    int64
	Currency string
	// PayToKey is where the seller wants the buyer's cash payment sent.
	PayToKey crypto.PublicKey

	BuyerName string
	SessionID int64

	Logger  zerolog.Logger
	Metrics Metrics
}

// Seller runs one side of the two-party trade protocol.
type Seller struct {
	cfg SellerConfig
}

// NewSeller returns a Seller configured to run once via Run.
func NewSeller(cfg SellerConfig) *Seller {
	return &Seller{cfg: cfg}
}

// Run executes the seller's side of the protocol to completion, returning
// the fully signed transaction.
func (s *Seller) Run(ctx context.Context) (tx model.SignedTransaction, err error) {
	cfg := s.cfg
	if cfg.Metrics != nil {
		started := time.Now()
		defer func() { cfg.Metrics.TradeFinished("seller", err, time.Since(started)) }()
	}

	info := SellerTradeInfo{
		AssetRef:  cfg.AssetRef,
		Price:     cfg.Price,
		Currency:  cfg.Currency,
		PayToKey:  cfg.PayToKey,
		SessionID: cfg.SessionID,
	}
	if err := cfg.Messenger.Send(ctx, cfg.BuyerName, messaging.Envelope{
		Topic:     SellerTopic,
		SessionID: cfg.SessionID,
		Payload:   encodeSellerTradeInfo(info),
	}); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller send trade info: %w", err)
	}

	proposalEnv, err := cfg.Messenger.Receive(ctx, cfg.SessionID)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller receive proposal: %w", err)
	}
	if proposalEnv.Topic != BuyerTopic {
		return model.SignedTransaction{}, fmt.Errorf("%w: expected %q, got %q", ErrUnexpectedTopic, BuyerTopic, proposalEnv.Topic)
	}
	proposed, err := decodeSignedTransaction(proposalEnv.Payload)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller decode proposal: %w", err)
	}

	if cfg.Resolver != nil && cfg.Peer != nil {
		if err := cfg.Resolver.Resolve(ctx, cfg.BuyerName, cfg.Peer, seedsFor(proposed.Wire)); err != nil {
			return model.SignedTransaction{}, fmt.Errorf("trade: seller resolve proposal ancestors: %w", err)
		}
	}

	lt, err := ledgerTransactionFor(ctx, cfg.Store, proposed)
	if err != nil {
		return model.SignedTransaction{}, err
	}
	if err := cfg.Group.VerifyContractsOnly(lt, nil); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller verify proposal: %w", err)
	}

	if err := checkMissingSignersExactly(proposed, cfg.AssetOwnerKey, cfg.TimestampAuthority); err != nil {
		return model.SignedTransaction{}, err
	}

	if err := checkPaymentToSeller(proposed.Wire, cfg.PayToKey, cfg.Price, cfg.Currency); err != nil {
		return model.SignedTransaction{}, err
	}

	wireBytes := proposed.Wire.Encode()
	timestampSig, err := cfg.TimestampAuthority.Sign(wireBytes)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller request timestamp signature: %w", err)
	}
	sellerSig := crypto.Sign(cfg.AssetOwnerPriv, wireBytes)

	if err := cfg.Messenger.Send(ctx, cfg.BuyerName, messaging.Envelope{
		Topic:     SellerTopic,
		SessionID: cfg.SessionID,
		Payload: encodeFinalSignatures(FinalSignatures{
			TimestampSig: timestampSig,
			SellerSig:    sellerSig,
		}),
	}); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller send final signatures: %w", err)
	}

	final := proposed.WithSignature(timestampSig.Signature).WithSignature(sellerSig)
	if err := final.VerifySignatures(false); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: seller verify final transaction: %w", err)
	}

	if err := cfg.Store.PutBatch(ctx, []model.SignedTransaction{final}); err != nil {
		cfg.Logger.Warn().Err(err).Str("tx_id", final.ID().String()).Msg("seller could not record completed trade locally")
	}

	return final, nil
}

// checkMissingSignersExactly enforces that, after the buyer's
// proposal arrives, the only signatures still missing must be the
// seller's own asset-owning key and the timestamping authority's key.
func checkMissingSignersExactly(proposed model.SignedTransaction, assetOwnerKey crypto.PublicKey, tsa TimestampSigner) error {
	missing := proposed.MissingSigners()
	want := map[string]bool{assetOwnerKey.String(): true}
	if identified, ok := tsa.(interface{ PublicIdentity() crypto.Party }); ok {
		want[identified.PublicIdentity().Key.String()] = true
	}
	if len(missing) != len(want) {
		return fmt.Errorf("%w: got %d missing signer(s), want %d", ErrUnexpectedMissingSignatures, len(missing), len(want))
	}
	for _, k := range missing {
		if !want[k.String()] {
			return fmt.Errorf("%w: unexpected missing signer %s", ErrUnexpectedMissingSignatures, k)
		}
	}
	return nil
}

// checkPaymentToSeller verifies the proposal's cash outputs addressed to
// payToKey, in currency, sum to exactly price.
func checkPaymentToSeller(wire model.WireTransaction, payToKey crypto.PublicKey, price int64, currency string) error {
	var total int64
	for _, out := range wire.Outputs {
		cs, ok := out.Payload.(cash.State)
		if !ok {
			continue
		}
		if out.Owner == nil || !out.Owner.Equal(payToKey) {
			continue
		}
		if cs.Currency != currency {
			continue
		}
		total += cs.Amount
	}
	if total != price {
		return fmt.Errorf("%w: seller is owed %d %s, proposal pays %d", ErrWrongPaymentAmount, price, currency, total)
	}
	return nil
}
