// Copyright 2025 Tradeledger Authors
//
// Two-party trade protocol: the wire messages exchanged
// between seller and buyer over the messaging collaborator, and the
// (de)serialization of SignedTransaction for that exchange. The model
// package's own canonical codec only serializes WireTransaction; the
// signature list travels alongside it here.
package trade

import (
	"fmt"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

const (
	// SellerTopic is the topic the seller sends on: the initial
	// trade offer and, later, the final signature pair.
	SellerTopic = "platform.trade.seller"
	// BuyerTopic is the topic the buyer sends on: its signed proposal.
	BuyerTopic = "platform.trade.buyer"
)

// SellerTradeInfo is the seller's opening offer.
type SellerTradeInfo struct {
	AssetRef  model.StateRef
	Price     int64
	Currency  string
	PayToKey  crypto.PublicKey
	SessionID int64
}

func encodeSellerTradeInfo(info SellerTradeInfo) []byte {
	w := canon.NewWriter()
	w.WriteBytes(info.AssetRef.TxID.Bytes[:])
	w.WriteUint32(info.AssetRef.Index)
	w.WriteInt64(info.Price)
	w.WriteString(info.Currency)
	w.WriteUint8(uint8(info.PayToKey.Algorithm))
	w.WriteBytes(info.PayToKey.Bytes)
	w.WriteInt64(info.SessionID)
	return w.Bytes()
}

func decodeSellerTradeInfo(b []byte) (SellerTradeInfo, error) {
	r := canon.NewReader(b)
	var info SellerTradeInfo
	txIDBytes := r.ReadBytes()
	index := r.ReadUint32()
	info.Price = r.ReadInt64()
	info.Currency = r.ReadString()
	alg := crypto.Algorithm(r.ReadUint8())
	keyBytes := r.ReadBytes()
	info.SessionID = r.ReadInt64()
	if err := r.Err(); err != nil {
		return SellerTradeInfo{}, fmt.Errorf("trade: decode seller trade info: %w", err)
	}
	txID, err := crypto.NewSecureHash(crypto.AlgorithmSHA256, txIDBytes)
	if err != nil {
		return SellerTradeInfo{}, fmt.Errorf("trade: decode seller trade info asset ref: %w", err)
	}
	info.AssetRef = model.StateRef{TxID: txID, Index: index}
	info.PayToKey = crypto.PublicKey{Algorithm: alg, Bytes: keyBytes}
	return info, nil
}

// FinalSignatures is the seller's closing message.
type FinalSignatures struct {
	TimestampSig crypto.LegallyIdentifiableSignature
	SellerSig    crypto.Signature
}

func encodeFinalSignatures(f FinalSignatures) []byte {
	w := canon.NewWriter()
	encodeSignature(w, f.TimestampSig.Signature)
	w.WriteString(f.TimestampSig.Signer.Name)
	w.WriteUint8(uint8(f.TimestampSig.Signer.Key.Algorithm))
	w.WriteBytes(f.TimestampSig.Signer.Key.Bytes)
	encodeSignature(w, f.SellerSig)
	return w.Bytes()
}

func decodeFinalSignatures(b []byte) (FinalSignatures, error) {
	r := canon.NewReader(b)
	tsSig := decodeSignature(r)
	signerName := r.ReadString()
	signerAlg := crypto.Algorithm(r.ReadUint8())
	signerKeyBytes := r.ReadBytes()
	sellerSig := decodeSignature(r)
	if err := r.Err(); err != nil {
		return FinalSignatures{}, fmt.Errorf("trade: decode final signatures: %w", err)
	}
	signer := crypto.Party{Name: signerName, Key: crypto.PublicKey{Algorithm: signerAlg, Bytes: signerKeyBytes}}
	return FinalSignatures{
		TimestampSig: crypto.NewLegallyIdentifiableSignature(tsSig, signer),
		SellerSig:    sellerSig,
	}, nil
}

func encodeSignature(w *canon.Writer, sig crypto.Signature) {
	w.WriteUint8(uint8(sig.By.Algorithm))
	w.WriteBytes(sig.By.Bytes)
	w.WriteBytes(sig.Bytes)
}

func decodeSignature(r *canon.Reader) crypto.Signature {
	alg := crypto.Algorithm(r.ReadUint8())
	keyBytes := r.ReadBytes()
	sigBytes := r.ReadBytes()
	return crypto.Signature{By: crypto.PublicKey{Algorithm: alg, Bytes: keyBytes}, Bytes: sigBytes}
}

func encodeSignedTransaction(tx model.SignedTransaction) []byte {
	w := canon.NewWriter()
	w.WriteBytes(tx.Wire.Encode())
	w.WriteUint32(uint32(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		encodeSignature(w, sig)
	}
	return w.Bytes()
}

func decodeSignedTransaction(b []byte) (model.SignedTransaction, error) {
	r := canon.NewReader(b)
	wireBytes := r.ReadBytes()
	n := r.ReadUint32()
	if err := r.Err(); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: decode signed transaction: %w", err)
	}
	wire, err := model.DecodeWireTransaction(wireBytes)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: decode wire transaction: %w", err)
	}
	sigs := make([]crypto.Signature, 0, n)
	for i := uint32(0); i < n; i++ {
		sigs = append(sigs, decodeSignature(r))
	}
	if err := r.Err(); err != nil {
		return model.SignedTransaction{}, fmt.Errorf("trade: decode signatures: %w", err)
	}
	return model.SignedTransaction{Wire: wire, Signatures: sigs}, nil
}
