// Copyright 2025 Tradeledger Authors
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/oracle"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("NODE_NAME", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RESOLVER_GRAPH_SIZE_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.ResolverGraphSizeLimit)
	require.Equal(t, "0.0.0.0:7777", cfg.ListenAddr)
}

func TestValidateRequiresNodeNameAndDatabaseURL(t *testing.T) {
	cfg := &NodeConfig{ResolverGraphSizeLimit: 5000, DatabaseMaxConns: 25}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "NODE_NAME")
	require.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateRequiresTSAKeyPathWhenEnabled(t *testing.T) {
	cfg := &NodeConfig{
		NodeName:               "node-1",
		DatabaseURL:             "postgres://localhost/ledger",
		ResolverGraphSizeLimit:  5000,
		DatabaseMaxConns:        25,
		TSAEnabled:              true,
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "TSA_IDENTITY")
	require.Contains(t, err.Error(), "TSA_KEY_PATH")
}

func TestLoadPeerAddressBook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
peers:
  buyer:
    address: "127.0.0.1:9001"
    public_key_hex: "aabbcc"
  seller:
    address: "127.0.0.1:9002"
`), 0o644))

	book, err := LoadPeerAddressBook(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9001", book.Peers["buyer"].Address)
	require.Equal(t, "aabbcc", book.Peers["buyer"].PublicKeyHex)
	require.Equal(t, "127.0.0.1:9002", book.Peers["seller"].Address)
}

func TestLoadOracleSeedFileAppliesToOracle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fixes:
  - index: LIBOR
    tenor: 1M
    date: "2016-03-14"
    rate: 67800
  - index: LIBOR
    tenor: 1M
    date: "2016-03-16"
    rate: 67850
`), 0o644))

	doc, err := LoadOracleSeedFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Fixes, 2)

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	o := oracle.New(crypto.Party{Name: "rate-fix-1", Key: pub}, priv)
	require.NoError(t, doc.ApplyTo(o))

	asOf, err := time.Parse("2006-01-02", "2016-03-15")
	require.NoError(t, err)
	result := o.Query([]oracle.FixKey{{Index: "LIBOR", Tenor: "1M"}}, asOf)
	require.Equal(t, oracle.Rate(67800), result[oracle.FixKey{Index: "LIBOR", Tenor: "1M"}])
}
