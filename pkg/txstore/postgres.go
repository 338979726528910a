// Copyright 2025 Tradeledger Authors
package txstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a Store backed by a Postgres table of raw wire
// transaction bytes, keyed by transaction id. Re-inserting an already
// recorded id leaves its wire row untouched (ON CONFLICT DO NOTHING) and
// replaces its signature rows with those of the new call, so re-recording
// an identical transaction is harmless.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithLogger attaches a logger to the store.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *PostgresStore) { s.logger = logger }
}

// NewPostgresStore opens a connection pool against databaseURL and
// verifies it is reachable.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("txstore: database URL cannot be empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("txstore: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("txstore: ping database: %w", err)
	}

	s := &PostgresStore{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info().Msg("txstore connected to database")
	return s, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// MigrateUp applies every embedded migration in filename order, each in
// its own database transaction. It does not consult schema_migrations to
// skip migrations already applied; every migration runs on each call.
func (s *PostgresStore) MigrateUp(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("txstore: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("txstore: read migration %s: %w", name, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("txstore: begin migration tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("txstore: apply migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("txstore: commit migration %s: %w", version, err)
		}
		s.logger.Info().Str("version", version).Msg("migration applied")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id crypto.SecureHash) (model.SignedTransaction, error) {
	var wireBytes []byte
	var sigBytes [][]byte
	row := s.db.QueryRowContext(ctx, `
		SELECT wire_bytes FROM ledger_transactions WHERE tx_id = $1`, id.Hex())
	if err := row.Scan(&wireBytes); err != nil {
		if err == sql.ErrNoRows {
			return model.SignedTransaction{}, ErrNotFound
		}
		return model.SignedTransaction{}, fmt.Errorf("txstore: get transaction: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT signature_bytes FROM ledger_transaction_signatures
		WHERE tx_id = $1 ORDER BY ordinal ASC`, id.Hex())
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("txstore: get signatures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return model.SignedTransaction{}, fmt.Errorf("txstore: scan signature: %w", err)
		}
		sigBytes = append(sigBytes, b)
	}
	if err := rows.Err(); err != nil {
		return model.SignedTransaction{}, err
	}

	wire, err := model.DecodeWireTransaction(wireBytes)
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("txstore: decode wire transaction: %w", err)
	}
	sigs := make([]crypto.Signature, 0, len(sigBytes))
	for _, b := range sigBytes {
		sig, err := decodeSignature(b)
		if err != nil {
			return model.SignedTransaction{}, err
		}
		sigs = append(sigs, sig)
	}
	return model.SignedTransaction{Wire: wire, Signatures: sigs}, nil
}

func (s *PostgresStore) Has(ctx context.Context, id crypto.SecureHash) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE tx_id = $1)`, id.Hex()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("txstore: check existence: %w", err)
	}
	return exists, nil
}

// PutBatch records every transaction in txs inside one database
// transaction, so the batch lands whole or not at all.
func (s *PostgresStore) PutBatch(ctx context.Context, txs []model.SignedTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("txstore: begin batch: %w", err)
	}
	defer dbTx.Rollback()

	for _, tx := range txs {
		id := tx.ID()
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (tx_id, wire_bytes, recorded_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (tx_id) DO NOTHING`,
			id.Hex(), tx.Wire.Encode(), time.Now().UTC()); err != nil {
			return fmt.Errorf("txstore: insert transaction %s: %w", id, err)
		}
		if _, err := dbTx.ExecContext(ctx, `
			DELETE FROM ledger_transaction_signatures WHERE tx_id = $1`, id.Hex()); err != nil {
			return fmt.Errorf("txstore: clear signatures for %s: %w", id, err)
		}
		for i, sig := range tx.Signatures {
			if _, err := dbTx.ExecContext(ctx, `
				INSERT INTO ledger_transaction_signatures (tx_id, ordinal, signature_bytes)
				VALUES ($1, $2, $3)`, id.Hex(), i, encodeSignature(sig)); err != nil {
				return fmt.Errorf("txstore: insert signature %d for %s: %w", i, id, err)
			}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("txstore: commit batch: %w", err)
	}
	s.logger.Debug().Int("count", len(txs)).Msg("recorded transaction batch")
	return nil
}

// encodeSignature / decodeSignature are a tiny fixed-layout codec private
// to this store: algorithm byte, 4-byte key length prefix, key bytes,
// 4-byte signature length prefix, signature bytes.
func encodeSignature(sig crypto.Signature) []byte {
	out := make([]byte, 0, 1+4+len(sig.By.Bytes)+4+len(sig.Bytes))
	out = append(out, byte(sig.By.Algorithm))
	out = appendUint32(out, uint32(len(sig.By.Bytes)))
	out = append(out, sig.By.Bytes...)
	out = appendUint32(out, uint32(len(sig.Bytes)))
	out = append(out, sig.Bytes...)
	return out
}

func decodeSignature(b []byte) (crypto.Signature, error) {
	if len(b) < 1+4 {
		return crypto.Signature{}, fmt.Errorf("txstore: truncated signature record")
	}
	alg := crypto.Algorithm(b[0])
	offset := 1
	keyLen, offset := readUint32(b, offset)
	if offset+int(keyLen) > len(b) {
		return crypto.Signature{}, fmt.Errorf("txstore: truncated signature key")
	}
	key := append([]byte(nil), b[offset:offset+int(keyLen)]...)
	offset += int(keyLen)
	sigLen, offset := readUint32(b, offset)
	if offset+int(sigLen) > len(b) {
		return crypto.Signature{}, fmt.Errorf("txstore: truncated signature bytes")
	}
	sigBytes := append([]byte(nil), b[offset:offset+int(sigLen)]...)
	return crypto.Signature{By: crypto.PublicKey{Algorithm: alg, Bytes: key}, Bytes: sigBytes}, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint32(b []byte, offset int) (uint32, int) {
	v := uint32(b[offset])<<24 | uint32(b[offset+1])<<16 | uint32(b[offset+2])<<8 | uint32(b[offset+3])
	return v, offset + 4
}
