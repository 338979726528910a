// Copyright 2025 Tradeledger Authors
package cash

import (
	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// contractIdentity is hashed to produce the contract's content-addressed
// identity. A real deployment would hash the compiled contract artifact;
// this contract hashes a stable name instead since it has no separate
// build artifact of its own.
const contractIdentity = "tradeledger.contracts.cash.v1"

// Contract is the cash Issue/Move contract. Its Verify is pure: no clock,
// I/O, randomness, or external state.
type Contract struct {
	hash crypto.SecureHash
}

// New returns the cash contract singleton value. Contracts are stateless;
// callers may construct as many as convenient, they all compare Equal.
func New() Contract {
	return Contract{hash: crypto.SHA256([]byte(contractIdentity))}
}

// Hash implements contract.Contract.
func (c Contract) Hash() crypto.SecureHash { return c.hash }

// Verify implements contract.Contract.
func (c Contract) Verify(tx contract.TransactionForVerification) error {
	inputs := cashStates(c.hash, tx.Inputs)
	outputs := cashStates(c.hash, tx.Outputs)

	issue, hasIssue := findIssue(tx.Commands)
	move, hasMove := findMove(tx.Commands)

	switch {
	case hasIssue && hasMove:
		return contract.Reject(c.hash, "a single transaction may not both issue and move cash")
	case hasIssue:
		return c.verifyIssue(tx, issue, inputs, outputs)
	case hasMove:
		return c.verifyMove(tx, move, inputs, outputs)
	case len(inputs) == 0 && len(outputs) == 0:
		return nil
	default:
		return contract.Reject(c.hash, "cash states present without an issue or move command")
	}
}

func (c Contract) verifyIssue(tx contract.TransactionForVerification, issue IssueCommand, inputs, outputs []model.State) error {
	if len(inputs) != 0 {
		return contract.Reject(c.hash, "issue must not consume existing cash states")
	}
	if len(outputs) == 0 {
		return contract.Reject(c.hash, "issue must produce at least one cash output")
	}
	var total int64
	for _, st := range outputs {
		cs := st.Payload.(State)
		if cs.Currency != issue.Currency {
			return contract.Reject(c.hash, "issue output currency %q does not match command currency %q", cs.Currency, issue.Currency)
		}
		total += cs.Amount
	}
	if total != issue.Amount {
		return contract.Reject(c.hash, "issue output total %d does not match command amount %d", total, issue.Amount)
	}
	if total <= 0 {
		return contract.Reject(c.hash, "issue amount must be positive")
	}
	return nil
}

func (c Contract) verifyMove(tx contract.TransactionForVerification, move MoveCommand, inputs, outputs []model.State) error {
	if len(inputs) == 0 {
		return contract.Reject(c.hash, "move must consume at least one cash input")
	}

	byCurrencyIn := make(map[string]int64)
	for _, st := range inputs {
		cs := st.Payload.(State)
		byCurrencyIn[cs.Currency] += cs.Amount
		if st.Owner == nil {
			return contract.Reject(c.hash, "cash input has no owner key")
		}
		if !signedBy(tx.Commands, *st.Owner) {
			return contract.Reject(c.hash, "cash input owner %s did not sign the move command", st.Owner)
		}
	}

	byCurrencyOut := make(map[string]int64)
	for _, st := range outputs {
		cs := st.Payload.(State)
		byCurrencyOut[cs.Currency] += cs.Amount
		if cs.Amount <= 0 {
			return contract.Reject(c.hash, "cash output amount must be positive")
		}
	}

	for currency, in := range byCurrencyIn {
		if byCurrencyOut[currency] != in {
			return contract.Reject(c.hash, "move does not conserve %s: %d in, %d out", currency, in, byCurrencyOut[currency])
		}
	}
	for currency := range byCurrencyOut {
		if _, ok := byCurrencyIn[currency]; !ok {
			return contract.Reject(c.hash, "move output currency %q has no matching input", currency)
		}
	}
	return nil
}

func cashStates(contractHash crypto.SecureHash, states []model.State) []model.State {
	var out []model.State
	for _, st := range states {
		if st.Contract.Equal(contractHash) {
			out = append(out, st)
		}
	}
	return out
}

func findIssue(cmds []model.ResolvedCommand) (IssueCommand, bool) {
	for _, cmd := range cmds {
		if ic, ok := cmd.Data.(IssueCommand); ok {
			return ic, true
		}
	}
	return IssueCommand{}, false
}

func findMove(cmds []model.ResolvedCommand) (MoveCommand, bool) {
	for _, cmd := range cmds {
		if mc, ok := cmd.Data.(MoveCommand); ok {
			return mc, true
		}
	}
	return MoveCommand{}, false
}

func signedBy(cmds []model.ResolvedCommand, key crypto.PublicKey) bool {
	for _, cmd := range cmds {
		if _, ok := cmd.Data.(MoveCommand); !ok {
			continue
		}
		for _, signer := range cmd.Signers {
			if signer.Key.Equal(key) {
				return true
			}
		}
	}
	return false
}

// GenerateIssue is a builder helper, not part of consensus: it
// constructs the output state and command for issuing amount of currency
// to owner.
func GenerateIssue(owner crypto.PublicKey, amount int64, currency string) (model.State, model.Command) {
	c := New()
	state := model.State{Contract: c.Hash(), Owner: &owner, Payload: State{Amount: amount, Currency: currency}}
	cmd := model.Command{Data: IssueCommand{Amount: amount, Currency: currency}, Signers: []crypto.PublicKey{owner}}
	return state, cmd
}

// GenerateMove is a builder helper: constructs the move command signed by
// every distinct owner among inputs.
func GenerateMove(inputOwners []crypto.PublicKey) model.Command {
	return model.Command{Data: MoveCommand{}, Signers: dedupeKeys(inputOwners)}
}

func dedupeKeys(keys []crypto.PublicKey) []crypto.PublicKey {
	seen := make(map[string]bool)
	var out []crypto.PublicKey
	for _, k := range keys {
		s := k.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, k)
		}
	}
	return out
}
