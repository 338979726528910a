// Copyright 2025 Tradeledger Authors
//
// Cash contract: a minimal Issue/Move contract so the two-party trade
// protocol and the end-to-end tests have something to hold value in.
package cash

import (
	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/model"
)

// StateTag is the wire tag for State.
const StateTag = "cash-state"

// State is the payload of a cash-contract-governed model.State: an amount
// of a named currency, held in integer minor units (cents) so no
// contract-visible field is ever a floating point value.
type State struct {
	Amount   int64
	Currency string
}

func init() {
	model.RegisterState(StateTag, func(r *canon.Reader) (model.ContractStateData, error) {
		amount := r.ReadInt64()
		currency := r.ReadString()
		if err := r.Err(); err != nil {
			return nil, err
		}
		return State{Amount: amount, Currency: currency}, nil
	})
}

// Tag implements model.ContractStateData.
func (s State) Tag() string { return StateTag }

// Encode implements model.ContractStateData.
func (s State) Encode(w *canon.Writer) {
	w.WriteInt64(s.Amount)
	w.WriteString(s.Currency)
}
