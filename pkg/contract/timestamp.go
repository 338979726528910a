// Copyright 2025 Tradeledger Authors
package contract

import (
	"fmt"
	"time"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/model"
)

// TimestampCommandTag is the wire tag for TimestampCommand.
const TimestampCommandTag = "timestamp"

// TimestampCommand is the command a transaction embeds to give contracts
// (and the timestamping authority) a window of true time the transaction
// is valid within. At least one bound must be present;
// when both are present After must not be later than Before. A missing
// bound is treated as -infinity / +infinity.
type TimestampCommand struct {
	After  *time.Time
	Before *time.Time
}

func init() {
	model.RegisterCommand(TimestampCommandTag, func(r *canon.Reader) (model.CommandData, error) {
		var tc TimestampCommand
		hasAfter := r.ReadBool()
		if hasAfter {
			t := time.Unix(r.ReadInt64(), 0).UTC()
			tc.After = &t
		}
		hasBefore := r.ReadBool()
		if hasBefore {
			t := time.Unix(r.ReadInt64(), 0).UTC()
			tc.Before = &t
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		return tc, nil
	})
}

// Tag implements model.CommandData.
func (tc TimestampCommand) Tag() string { return TimestampCommandTag }

// Encode implements model.CommandData.
func (tc TimestampCommand) Encode(w *canon.Writer) {
	w.WriteBool(tc.After != nil)
	if tc.After != nil {
		w.WriteInt64(tc.After.Unix())
	}
	w.WriteBool(tc.Before != nil)
	if tc.Before != nil {
		w.WriteInt64(tc.Before.Unix())
	}
}

// Validate checks the structural invariant: at least one
// bound present, and After <= Before when both are present.
func (tc TimestampCommand) Validate() error {
	if tc.After == nil && tc.Before == nil {
		return fmt.Errorf("timestamp command: at least one of after/before must be set")
	}
	if tc.After != nil && tc.Before != nil && tc.After.After(*tc.Before) {
		return fmt.Errorf("timestamp command: after (%s) must not be later than before (%s)", tc.After, tc.Before)
	}
	return nil
}

// Brackets reports whether instant t falls within [After, Before],
// treating a missing bound as the corresponding infinity.
func (tc TimestampCommand) Brackets(t time.Time) bool {
	if tc.After != nil && t.Before(*tc.After) {
		return false
	}
	if tc.Before != nil && t.After(*tc.Before) {
		return false
	}
	return true
}

// FindTimestampCommand scans a transaction's commands for the first
// TimestampCommand. Returns false if none is present.
func FindTimestampCommand(cmds []model.Command) (TimestampCommand, bool) {
	for _, c := range cmds {
		if tc, ok := c.Data.(TimestampCommand); ok {
			return tc, true
		}
	}
	return TimestampCommand{}, false
}
