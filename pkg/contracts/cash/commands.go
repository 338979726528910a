// Copyright 2025 Tradeledger Authors
package cash

import (
	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/model"
)

// IssueCommandTag and MoveCommandTag are the wire tags for the two cash
// commands.
const (
	IssueCommandTag = "cash-issue"
	MoveCommandTag  = "cash-move"
)

// IssueCommand creates new cash out of nothing; only the issuer need sign
// it. The contract checks the issued amount matches the sum of all this
// transaction's cash outputs, whoever owns them.
type IssueCommand struct {
	Amount   int64
	Currency string
}

func init() {
	model.RegisterCommand(IssueCommandTag, func(r *canon.Reader) (model.CommandData, error) {
		amount := r.ReadInt64()
		currency := r.ReadString()
		if err := r.Err(); err != nil {
			return nil, err
		}
		return IssueCommand{Amount: amount, Currency: currency}, nil
	})
	model.RegisterCommand(MoveCommandTag, func(r *canon.Reader) (model.CommandData, error) {
		return MoveCommand{}, nil
	})
}

// Tag implements model.CommandData.
func (c IssueCommand) Tag() string { return IssueCommandTag }

// Encode implements model.CommandData.
func (c IssueCommand) Encode(w *canon.Writer) {
	w.WriteInt64(c.Amount)
	w.WriteString(c.Currency)
}

// MoveCommand re-assigns existing cash states to new owners, conserving
// the total amount per currency. It carries no data of its own: the
// contract derives everything it needs to check from the transaction's
// input/output states.
type MoveCommand struct{}

// Tag implements model.CommandData.
func (MoveCommand) Tag() string { return MoveCommandTag }

// Encode implements model.CommandData.
func (MoveCommand) Encode(w *canon.Writer) {}
