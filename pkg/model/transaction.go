// Copyright 2025 Tradeledger Authors
package model

import (
	"fmt"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/crypto"
)

// WireTransaction is the canonical, unsigned form of a transaction. Its id
// is fixed at construction: the SHA-256 of its canonical serialization.
// Field order here IS the wire order; changing it
// changes every transaction id.
type WireTransaction struct {
	Inputs      []StateRef
	Outputs     []State
	Commands    []Command
	Attachments []crypto.SecureHash
}

// Encode writes the canonical serialization of the wire transaction. This
// is the exact byte sequence every implementation must reproduce to agree
// on transaction ids.
func (t WireTransaction) Encode() []byte {
	w := canon.NewWriter()
	w.WriteUint32(uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		in.encode(w)
	}
	w.WriteUint32(uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		out.encode(w)
	}
	w.WriteUint32(uint32(len(t.Commands)))
	for _, cmd := range t.Commands {
		cmd.encode(w)
	}
	w.WriteUint32(uint32(len(t.Attachments)))
	for _, a := range t.Attachments {
		w.WriteBytes(a.Bytes[:])
	}
	return w.Bytes()
}

// DecodeWireTransaction parses a canonical wire transaction encoding
// produced by Encode.
func DecodeWireTransaction(b []byte) (WireTransaction, error) {
	r := canon.NewReader(b)
	var t WireTransaction

	nInputs := r.ReadUint32()
	t.Inputs = make([]StateRef, 0, nInputs)
	for i := uint32(0); i < nInputs; i++ {
		t.Inputs = append(t.Inputs, decodeStateRef(r))
	}

	nOutputs := r.ReadUint32()
	t.Outputs = make([]State, 0, nOutputs)
	for i := uint32(0); i < nOutputs; i++ {
		st, err := decodeStateEntry(r)
		if err != nil {
			return WireTransaction{}, err
		}
		t.Outputs = append(t.Outputs, st)
	}

	nCommands := r.ReadUint32()
	t.Commands = make([]Command, 0, nCommands)
	for i := uint32(0); i < nCommands; i++ {
		cmd, err := decodeCommandEntry(r)
		if err != nil {
			return WireTransaction{}, err
		}
		t.Commands = append(t.Commands, cmd)
	}

	nAttachments := r.ReadUint32()
	t.Attachments = make([]crypto.SecureHash, 0, nAttachments)
	for i := uint32(0); i < nAttachments; i++ {
		b := r.ReadBytes()
		h, err := crypto.NewSecureHash(crypto.AlgorithmSHA256, b)
		if err != nil {
			return WireTransaction{}, fmt.Errorf("model: decode attachment hash: %w", err)
		}
		t.Attachments = append(t.Attachments, h)
	}

	if err := r.Err(); err != nil {
		return WireTransaction{}, fmt.Errorf("model: decode wire transaction: %w", err)
	}
	return t, nil
}

// ID returns the transaction's content-addressed identity: the SHA-256 of
// its canonical serialization.
func (t WireTransaction) ID() crypto.SecureHash {
	return crypto.SHA256(t.Encode())
}

// RequiredSigners returns the deduplicated union of every public key
// listed as a required signer by any command in the transaction.
func (t WireTransaction) RequiredSigners() []crypto.PublicKey {
	var out []crypto.PublicKey
	seen := make(map[string]bool)
	for _, cmd := range t.Commands {
		for _, k := range cmd.Signers {
			key := k.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// SignedTransaction pairs an unsigned WireTransaction with the signatures
// collected over it so far. A SignedTransaction exclusively owns its wire
// form and its signatures.
type SignedTransaction struct {
	Wire       WireTransaction
	Signatures []crypto.Signature
}

// ID returns the id of the underlying wire transaction.
func (s SignedTransaction) ID() crypto.SecureHash {
	return s.Wire.ID()
}

// WithSignature returns a copy of s with sig appended.
func (s SignedTransaction) WithSignature(sig crypto.Signature) SignedTransaction {
	sigs := make([]crypto.Signature, len(s.Signatures), len(s.Signatures)+1)
	copy(sigs, s.Signatures)
	sigs = append(sigs, sig)
	return SignedTransaction{Wire: s.Wire, Signatures: sigs}
}

// MissingSigners returns the required signer keys that have no matching
// signature among s.Signatures yet.
func (s SignedTransaction) MissingSigners() []crypto.PublicKey {
	have := make(map[string]bool, len(s.Signatures))
	for _, sig := range s.Signatures {
		have[sig.By.String()] = true
	}
	var missing []crypto.PublicKey
	for _, k := range s.Wire.RequiredSigners() {
		if !have[k.String()] {
			missing = append(missing, k)
		}
	}
	return missing
}

// VerifySignatures checks every signature in s against the canonical
// serialization of the wire transaction, and — unless tolerateMissing is
// set — requires every key listed in any command to have a matching
// signature. Signatures from keys not required by any
// command are tolerated, for robustness against over-signed transactions.
func (s SignedTransaction) VerifySignatures(tolerateMissing bool) error {
	payload := s.Wire.Encode()
	for _, sig := range s.Signatures {
		if !crypto.Verify(sig, payload) {
			return fmt.Errorf("%w: signature by %s does not verify", ErrSignatureInvalid, sig.By)
		}
	}
	if tolerateMissing {
		return nil
	}
	if missing := s.MissingSigners(); len(missing) > 0 {
		return fmt.Errorf("%w: %d required signer(s) missing", ErrMissingSignature, len(missing))
	}
	return nil
}

// ResolvedCommand is a Command whose signer keys are paired with a legal
// identity where one is known; unresolved signers remain key-only.
type ResolvedCommand struct {
	Data    CommandData
	Signers []ResolvedSigner
}

// ResolvedSigner is a required signer key together with the Party it
// resolved to, if any. The group validator does no identity lookup and
// always leaves Party nil.
type ResolvedSigner struct {
	Key   crypto.PublicKey
	Party *crypto.Party
}

// LedgerTransaction is a WireTransaction whose input states and
// attachments have been resolved to their runtime form. It is never itself persisted — only the SignedTransaction
// bytes it was built from are.
type LedgerTransaction struct {
	ID          crypto.SecureHash
	Wire        WireTransaction
	Signatures  []crypto.Signature
	InputStates []State           // resolved state for each entry of Wire.Inputs, same order
	Attachments map[string][]byte // hex hash -> bytes, populated for referenced attachments available locally
}

// Outputs returns the transaction's produced states.
func (lt LedgerTransaction) Outputs() []State {
	return lt.Wire.Outputs
}

// StateRefForOutput returns the StateRef identifying output index i of lt.
func (lt LedgerTransaction) StateRefForOutput(i int) StateRef {
	return StateRef{TxID: lt.ID, Index: uint32(i)}
}
