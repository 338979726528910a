// Copyright 2025 Tradeledger Authors
//
// Timestamping authority: an external collaborator that signs
// a transaction's bytes iff true time falls within the transaction's
// embedded timestamp command window.
package tsa

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// ErrTimestampOutsideWindow is returned when true time does not fall
// within the transaction's timestamp command bounds.
var ErrTimestampOutsideWindow = errors.New("tsa: true time outside transaction's timestamp window")

// ErrNoTimestampCommand is returned when the transaction carries no
// timestamp command at all.
var ErrNoTimestampCommand = errors.New("tsa: transaction has no timestamp command")

// Clock supplies true time. Production wiring reads GPS/UTC with bounded
// skew; tests supply a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Authority is the reference timestamping authority implementation.
type Authority struct {
	identity crypto.Party
	key      crypto.PrivateKey
	clock    Clock
}

// New returns an Authority that signs as identity using key, reading time
// from clock.
func New(identity crypto.Party, key crypto.PrivateKey, clock Clock) *Authority {
	return &Authority{identity: identity, key: key, clock: clock}
}

// Sign parses wireBytes for its embedded timestamp command, checks true
// time against its window, and — only if it brackets — returns a
// legally-identifiable signature over wireBytes.
func (a *Authority) Sign(wireBytes []byte) (crypto.LegallyIdentifiableSignature, error) {
	wire, err := model.DecodeWireTransaction(wireBytes)
	if err != nil {
		return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("tsa: decode transaction: %w", err)
	}

	tc, ok := contract.FindTimestampCommand(wire.Commands)
	if !ok {
		return crypto.LegallyIdentifiableSignature{}, ErrNoTimestampCommand
	}

	now := a.clock.Now()
	if !tc.Brackets(now) {
		return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("%w: true time %s, window after=%v before=%v", ErrTimestampOutsideWindow, now, tc.After, tc.Before)
	}

	sig := crypto.Sign(a.key, wireBytes)
	return crypto.NewLegallyIdentifiableSignature(sig, a.identity), nil
}

// PublicIdentity returns the party this authority signs as, for peers that
// need to verify its signatures.
func (a *Authority) PublicIdentity() crypto.Party {
	return a.identity
}
