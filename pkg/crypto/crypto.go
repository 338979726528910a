// Copyright 2025 Tradeledger Authors
//
// Crypto primitives for the ledger core: secure hashes and EdDSA signing
// and verification, plus the Party type naming a legal entity by its
// owning public key.

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Algorithm tags a hash or key pair with the scheme that produced it, so
// the wire format can grow new algorithms without breaking old data.
type Algorithm uint8

const (
	AlgorithmSHA256 Algorithm = iota
	AlgorithmEd25519
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmSHA256:
		return "SHA-256"
	case AlgorithmEd25519:
		return "Ed25519"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// HashSize is the byte length of a secure hash under every algorithm this
// core currently supports.
const HashSize = sha256.Size

// SecureHash is a tagged, fixed-size digest. The algorithm tag exists so a
// future hash scheme can be introduced without changing the wire shape.
type SecureHash struct {
	Algorithm Algorithm
	Bytes     [HashSize]byte
}

// ErrInvalidHashLength is a programmer error: the algorithm's digest size
// and the supplied byte length disagree.
var ErrInvalidHashLength = errors.New("crypto: hash byte length does not match algorithm")

// NewSecureHash wraps raw bytes as a SecureHash, validating the length
// against the algorithm. Only SHA-256 is implemented today.
func NewSecureHash(alg Algorithm, b []byte) (SecureHash, error) {
	if alg != AlgorithmSHA256 {
		return SecureHash{}, fmt.Errorf("crypto: unsupported hash algorithm %v", alg)
	}
	if len(b) != HashSize {
		return SecureHash{}, fmt.Errorf("%w: got %d want %d", ErrInvalidHashLength, len(b), HashSize)
	}
	var h SecureHash
	h.Algorithm = alg
	copy(h.Bytes[:], b)
	return h, nil
}

// SHA256 hashes data and returns the tagged digest.
func SHA256(data []byte) SecureHash {
	digest := sha256.Sum256(data)
	return SecureHash{Algorithm: AlgorithmSHA256, Bytes: digest}
}

// IsZero reports whether h is the zero value (no hash set).
func (h SecureHash) IsZero() bool {
	return h.Algorithm == AlgorithmSHA256 && h.Bytes == [HashSize]byte{}
}

// String returns the lower-case hex encoding of the hash bytes.
func (h SecureHash) String() string {
	return hex.EncodeToString(h.Bytes[:])
}

// Hex is an alias of String kept for call sites that read more naturally
// asking for the hex form explicitly (e.g. attachment file names).
func (h SecureHash) Hex() string {
	return h.String()
}

// Equal reports whether two hashes carry the same algorithm and bytes.
func (h SecureHash) Equal(o SecureHash) bool {
	return h.Algorithm == o.Algorithm && h.Bytes == o.Bytes
}

// PublicKey is a raw, algorithm-tagged verification key.
type PublicKey struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Equal reports whether two public keys have the same algorithm and bytes.
func (k PublicKey) Equal(o PublicKey) bool {
	if k.Algorithm != o.Algorithm || len(k.Bytes) != len(o.Bytes) {
		return false
	}
	for i := range k.Bytes {
		if k.Bytes[i] != o.Bytes[i] {
			return false
		}
	}
	return true
}

func (k PublicKey) String() string {
	return hex.EncodeToString(k.Bytes)
}

// PrivateKey is a raw EdDSA signing key. It never appears in any wire
// message or contract-visible structure.
type PrivateKey struct {
	Algorithm Algorithm
	Bytes     ed25519.PrivateKey
}

// Public derives the PublicKey matching this private key.
func (k PrivateKey) Public() PublicKey {
	pub := k.Bytes.Public().(ed25519.PublicKey)
	return PublicKey{Algorithm: k.Algorithm, Bytes: []byte(pub)}
}

// GenerateKeyPair produces a fresh EdDSA key pair using crypto/rand.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("crypto: generate key pair: %w", err)
	}
	private := PrivateKey{Algorithm: AlgorithmEd25519, Bytes: priv}
	public := PublicKey{Algorithm: AlgorithmEd25519, Bytes: []byte(pub)}
	return private, public, nil
}

// Signature is a raw signature together with the public key that produced
// it, so a verifier never has to guess which key to check against.
type Signature struct {
	By    PublicKey
	Bytes []byte
}

// Sign produces a Signature over data using the given private key.
func Sign(key PrivateKey, data []byte) Signature {
	sig := ed25519.Sign(key.Bytes, data)
	return Signature{By: key.Public(), Bytes: sig}
}

// Verify reports whether sig is a valid EdDSA signature over data by the
// public key it names. A mismatch is the non-fatal "signature-invalid"
// outcome — callers propagate it, they don't panic on it.
func Verify(sig Signature, data []byte) bool {
	if sig.By.Algorithm != AlgorithmEd25519 || len(sig.By.Bytes) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(sig.By.Bytes), data, sig.Bytes)
}

// Party names a legal entity by its owning public key. Two parties are the
// same entity only if both the name and the key match.
type Party struct {
	Name string
	Key  PublicKey
}

// Equal reports whether two parties identify the same legal entity.
func (p Party) Equal(o Party) bool {
	return p.Name == o.Name && p.Key.Equal(o.Key)
}

// LegallyIdentifiableSignature carries both the raw signature and the
// Party asserted to have produced it. Constructing one is only valid when
// the signing key equals the party's owning key — a mismatch is a
// programmer error, not a verification failure, because it
// indicates the caller mislabeled whose key was used.
type LegallyIdentifiableSignature struct {
	Signature Signature
	Signer    Party
}

// NewLegallyIdentifiableSignature binds a signature to the party whose key
// produced it. It panics if the signature's key does not match the
// party's key: that is a caller bug, not a recoverable runtime condition.
func NewLegallyIdentifiableSignature(sig Signature, signer Party) LegallyIdentifiableSignature {
	if !sig.By.Equal(signer.Key) {
		panic("crypto: legally-identifiable signature key does not match party key")
	}
	return LegallyIdentifiableSignature{Signature: sig, Signer: signer}
}

// Verify reports whether the embedded signature verifies against data.
func (l LegallyIdentifiableSignature) Verify(data []byte) bool {
	return Verify(l.Signature, data)
}
