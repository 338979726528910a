// Copyright 2025 Tradeledger Authors
package model

import (
	"fmt"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/crypto"
)

// StateRef addresses one output of one transaction: (transaction id,
// output index). It is the value identity of a State: a state is
// identified by its producing reference, not by a hash of its payload.
type StateRef struct {
	TxID  crypto.SecureHash
	Index uint32
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

func (r StateRef) encode(w *canon.Writer) {
	w.WriteBytes(r.TxID.Bytes[:])
	w.WriteUint32(r.Index)
}

func decodeStateRef(r *canon.Reader) StateRef {
	var ref StateRef
	b := r.ReadBytes()
	if len(b) == crypto.HashSize {
		copy(ref.TxID.Bytes[:], b)
	}
	ref.Index = r.ReadUint32()
	return ref
}

// Command is a structured instruction embedded in a transaction, paired
// with the set of public keys whose signatures it requires.
type Command struct {
	Data    CommandData
	Signers []crypto.PublicKey
}

func (c Command) encode(w *canon.Writer) {
	w.WriteTag(c.Data.Tag())
	c.Data.Encode(w)
	w.WriteUint32(uint32(len(c.Signers)))
	for _, s := range c.Signers {
		w.WriteUint8(uint8(s.Algorithm))
		w.WriteBytes(s.Bytes)
	}
}

func decodeCommandEntry(r *canon.Reader) (Command, error) {
	tag := r.ReadTag()
	data, err := decodeCommand(tag, r)
	if err != nil {
		return Command{}, err
	}
	n := r.ReadUint32()
	signers := make([]crypto.PublicKey, 0, n)
	for i := uint32(0); i < n; i++ {
		alg := crypto.Algorithm(r.ReadUint8())
		bytes := r.ReadBytes()
		signers = append(signers, crypto.PublicKey{Algorithm: alg, Bytes: bytes})
	}
	return Command{Data: data, Signers: signers}, nil
}

// State is an immutable ledger record governed by a contract, identified
// by hash, with an optional owner key for ownable states.
type State struct {
	Contract crypto.SecureHash
	Owner    *crypto.PublicKey
	Payload  ContractStateData
}

func (s State) encode(w *canon.Writer) {
	w.WriteBytes(s.Contract.Bytes[:])
	w.WriteBool(s.Owner != nil)
	if s.Owner != nil {
		w.WriteUint8(uint8(s.Owner.Algorithm))
		w.WriteBytes(s.Owner.Bytes)
	}
	w.WriteTag(s.Payload.Tag())
	s.Payload.Encode(w)
}

func decodeStateEntry(r *canon.Reader) (State, error) {
	var st State
	contractBytes := r.ReadBytes()
	if len(contractBytes) == crypto.HashSize {
		copy(st.Contract.Bytes[:], contractBytes)
	}
	hasOwner := r.ReadBool()
	if hasOwner {
		alg := crypto.Algorithm(r.ReadUint8())
		bytes := r.ReadBytes()
		owner := crypto.PublicKey{Algorithm: alg, Bytes: bytes}
		st.Owner = &owner
	}
	tag := r.ReadTag()
	payload, err := decodeState(tag, r)
	if err != nil {
		return State{}, err
	}
	st.Payload = payload
	return st, nil
}
