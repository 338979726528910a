// Copyright 2025 Tradeledger Authors
package trade

import "errors"

// Errors surfaced by the two-party trade protocol.
var (
	// ErrAssetMismatch is returned by the buyer when the seller's offered
	// asset is not governed by the contract the buyer expected to trade.
	ErrAssetMismatch = errors.New("trade: offered asset does not match expected contract")

	// ErrPriceTooHigh is returned by the buyer when the seller's asking
	// price exceeds the buyer's configured ceiling.
	ErrPriceTooHigh = errors.New("trade: seller's price exceeds buyer's maximum")

	// ErrInsufficientCash is returned by the buyer when its configured cash
	// inputs do not cover the seller's price.
	ErrInsufficientCash = errors.New("trade: buyer's cash inputs do not cover the price")

	// ErrUnexpectedMissingSignatures is returned by the seller when the
	// buyer's proposed transaction is missing a signature from any key
	// other than the seller's own asset-owning key and the timestamping
	// authority's key.
	ErrUnexpectedMissingSignatures = errors.New("trade: buyer's proposal is missing signatures beyond seller and timestamping authority")

	// ErrWrongPaymentAmount is returned by the seller when the cash paid to
	// its pay-to key does not sum to the agreed price.
	ErrWrongPaymentAmount = errors.New("trade: cash paid to seller does not match agreed price")

	// ErrUnexpectedTopic is returned when a message arrives on a topic the
	// protocol step didn't expect.
	ErrUnexpectedTopic = errors.New("trade: unexpected message topic")
)
