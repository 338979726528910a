// Copyright 2025 Tradeledger Authors
//
// Two-party trade protocol, buyer side.
package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/contracts/cash"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/messaging"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/resolver"
	"github.com/tradeledger/core/pkg/txstore"
)

// BuyerConfig configures one run of the buyer side of a trade.
type BuyerConfig struct {
	Messenger messaging.Messenger
	Store     txstore.Store

	// Resolver and Peer let the buyer pull the offered asset's producing
	// transaction before inspecting it. Peer may be nil
	// if the caller already knows the asset's history is local.
	Resolver *resolver.Resolver
	Peer     resolver.PeerClient

	// ExpectedAssetContract is the contract hash the buyer insists the
	// offered asset is governed by.
	ExpectedAssetContract crypto.SecureHash
	MaxPrice              int64
	Currency              string

	// CashInputs are the buyer's own cash states funding the payment, all
	// owned by CashOwnerKey.
	CashInputs   []model.StateRef
	CashOwnerKey crypto.PublicKey
	CashOwner    crypto.PrivateKey

	// FreshAssetOwnerKey is the key the buyer wants the traded asset
	// re-owned to once the swap settles.
	FreshAssetOwnerKey crypto.PublicKey
	// FreshChangeKey receives any cash change from the buyer's inputs.
	FreshChangeKey crypto.PublicKey

	// TimestampWindow bounds how long after building the proposal the
	// timestamping authority's signature remains acceptable.
	TimestampWindow time.Duration
	// TimestampAuthority identifies the timestamping authority whose
	// signature the transaction's timestamp command requires.
	TimestampAuthority crypto.Party

	SellerName string
	SessionID  int64

	Logger  zerolog.Logger
	Metrics Metrics
}

// Buyer runs one side of the two-party trade protocol.
type Buyer struct {
	cfg BuyerConfig
}

// NewBuyer returns a Buyer configured to run once via Run.
func NewBuyer(cfg BuyerConfig) *Buyer {
	return &Buyer{cfg: cfg}
}

// Run executes the buyer's side of the protocol to completion, returning
// the fully signed transaction.
func (b *Buyer) Run(ctx context.Context) (tx model.SignedTransaction, err error) {
	cfg := b.cfg
	if cfg.Metrics != nil {
		started := time.Now()
		defer func() { cfg.Metrics.TradeFinished("buyer", err, time.Since(started)) }()
	}

	infoEnv, err := cfg.Messenger.Receive(ctx, cfg.SessionID)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer receive trade info: %w", err)
	}
	if infoEnv.Topic != SellerTopic {
		return model.SignedTransaction{}, fmt.Errorf("%w: expected %q, got %q", ErrUnexpectedTopic, SellerTopic, infoEnv.Topic)
	}
	info, err := decodeSellerTradeInfo(infoEnv.Payload)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer decode trade info: %w", err)
	}

	if info.Price > cfg.MaxPrice {
		return model.SignedTransaction{}, fmt.Errorf("%w: seller asks %d, buyer's ceiling is %d", ErrPriceTooHigh, info.Price, cfg.MaxPrice)
	}

	if cfg.Resolver != nil && cfg.Peer != nil {
		if err := cfg.Resolver.Resolve(ctx, cfg.SellerName, cfg.Peer, []crypto.SecureHash{info.AssetRef.TxID}); err != nil {
			return model.SignedTransaction{}, fmt.Errorf("trade: buyer resolve asset history: %w", err)
		}
	}

	assetTx, err := cfg.Store.Get(ctx, info.AssetRef.TxID)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer load offered asset: %w", err)
	}
	if int(info.AssetRef.Index) >= len(assetTx.Wire.Outputs) {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer load offered asset: output index out of range")
	}
	assetState := assetTx.Wire.Outputs[info.AssetRef.Index]
	if !assetState.Contract.Equal(cfg.ExpectedAssetContract) {
		return model.SignedTransaction{}, ErrAssetMismatch
	}
	assetPayload, ok := assetState.Payload.(cash.State)
	if !ok {
		return model.SignedTransaction{}, ErrAssetMismatch
	}
	if assetState.Owner == nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: offered asset has no owner key")
	}
	assetOwnerKey := *assetState.Owner

	cashTotal, cashStates, err := loadCashInputs(ctx, cfg.Store, cfg.CashInputs)
	if err != nil {
		return model.SignedTransaction{}, err
	}
	if cashTotal < info.Price {
		return model.SignedTransaction{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCash, cashTotal, info.Price)
	}
	change := cashTotal - info.Price

	cashContract := cash.New().Hash()
	now := time.Now().UTC()
	before := now.Add(cfg.TimestampWindow)

	outputs := []model.State{
		{Contract: cfg.ExpectedAssetContract, Owner: &cfg.FreshAssetOwnerKey, Payload: assetPayload},
		{Contract: cashContract, Owner: &info.PayToKey, Payload: cash.State{Amount: info.Price, Currency: info.Currency}},
	}
	if change > 0 {
		outputs = append(outputs, model.State{
			Contract: cashContract,
			Owner:    &cfg.FreshChangeKey,
			Payload:  cash.State{Amount: change, Currency: info.Currency},
		})
	}

	inputs := append([]model.StateRef{info.AssetRef}, cfg.CashInputs...)
	wire := model.WireTransaction{
		Inputs:  inputs,
		Outputs: outputs,
		Commands: []model.Command{
			{Data: cash.MoveCommand{}, Signers: []crypto.PublicKey{assetOwnerKey}},
			cash.GenerateMove(cashOwnerKeys(cashStates)),
			{Data: contract.TimestampCommand{After: &now, Before: &before}, Signers: []crypto.PublicKey{cfg.TimestampAuthority.Key}},
		},
	}

	buyerSigned := model.SignedTransaction{
		Wire:       wire,
		Signatures: []crypto.Signature{crypto.Sign(cfg.CashOwner, wire.Encode())},
	}

	if err := cfg.Messenger.Send(ctx, cfg.SellerName, messaging.Envelope{
		Topic:     BuyerTopic,
		SessionID: cfg.SessionID,
		Payload:   encodeSignedTransaction(buyerSigned),
	}); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer send proposal: %w", err)
	}

	finalEnv, err := cfg.Messenger.Receive(ctx, cfg.SessionID)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer receive final signatures: %w", err)
	}
	if finalEnv.Topic != SellerTopic {
		return model.SignedTransaction{}, fmt.Errorf("%w: expected %q, got %q", ErrUnexpectedTopic, SellerTopic, finalEnv.Topic)
	}
	final, err := decodeFinalSignatures(finalEnv.Payload)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer decode final signatures: %w", err)
	}

	completed := buyerSigned.WithSignature(final.TimestampSig.Signature).WithSignature(final.SellerSig)
	if err := completed.VerifySignatures(false); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: buyer verify final transaction: %w", err)
	}

	if err := cfg.Store.PutBatch(ctx, []model.SignedTransaction{completed}); err != nil {
		cfg.Logger.Warn().Err(err).Str("tx_id", completed.ID().String()).Msg("buyer could not record completed trade locally")
	}

	return completed, nil
}

func loadCashInputs(ctx context.Context, store txstore.Store, refs []model.StateRef) (int64, []model.State, error) {
	var total int64
	states := make([]model.State, 0, len(refs))
	for _, ref := range refs {
		tx, err := store.Get(ctx, ref.TxID)
		if err != nil {
			return 0, nil, fmt.Errorf("trade: load cash input %s: %w", ref, err)
		}
		if int(ref.Index) >= len(tx.Wire.Outputs) {
			return 0, nil, fmt.Errorf("trade: load cash input %s: output index out of range", ref)
		}
		st := tx.Wire.Outputs[ref.Index]
		cs, ok := st.Payload.(cash.State)
		if !ok {
			return 0, nil, fmt.Errorf("trade: cash input %s is not a cash state", ref)
		}
		total += cs.Amount
		states = append(states, st)
	}
	return total, states, nil
}

func cashOwnerKeys(states []model.State) []crypto.PublicKey {
	keys := make([]crypto.PublicKey, 0, len(states))
	for _, st := range states {
		if st.Owner != nil {
			keys = append(keys, *st.Owner)
		}
	}
	return keys
}
