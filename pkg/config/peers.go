// Copyright 2025 Tradeledger Authors
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PeerAddressBook maps a party name, as used on the messaging bus, to
// the network address a real transport would dial. It is a structured
// document, loaded with yaml.v3 rather than parsed by hand.
type PeerAddressBook struct {
	Peers map[string]PeerEntry `yaml:"peers"`
}

// PeerEntry is one party's routing information.
type PeerEntry struct {
	Address string `yaml:"address"`
	// PublicKeyHex is the hex-encoded Ed25519 public key this node
	// expects the peer to sign with, for out-of-band identity pinning.
	PublicKeyHex string `yaml:"public_key_hex"`
}

// LoadPeerAddressBook reads and parses a peer address book document
// from path.
func LoadPeerAddressBook(path string) (*PeerAddressBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read peer address book %s: %w", path, err)
	}
	var book PeerAddressBook
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("config: parse peer address book %s: %w", path, err)
	}
	return &book, nil
}
