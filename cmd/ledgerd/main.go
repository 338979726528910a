// Copyright 2025 Tradeledger Authors
//
// ledgerd is the node process: it loads configuration, takes the
// process-liveness lock, opens the local transaction database and the
// attachment store, registers the contracts this node knows how to
// verify, and exposes health and metrics endpoints. The messaging
// transport itself is a separate collaborator; ledgerd wires everything
// the verification core needs the moment a transport hands it work.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog"

	"github.com/tradeledger/core/internal/logging"
	"github.com/tradeledger/core/internal/metrics"
	"github.com/tradeledger/core/internal/proclock"
	"github.com/tradeledger/core/pkg/attachment"
	"github.com/tradeledger/core/pkg/config"
	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/contracts/cash"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/messaging"
	"github.com/tradeledger/core/pkg/oracle"
	"github.com/tradeledger/core/pkg/resolver"
	"github.com/tradeledger/core/pkg/tsa"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

func main() {
	var (
		nodeName = flag.String("node-name", "", "Node name (overrides NODE_NAME env var)")
		showHelp = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: load configuration: %v\n", err)
		os.Exit(1)
	}
	if *nodeName != "" {
		cfg.NodeName = *nodeName
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = logger.With().Str("node", cfg.NodeName).Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("ledgerd exited with error")
	}
}

func run(cfg *config.NodeConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Duplicate-instance guard. A second ledgerd on the same data
	// directory must abort before touching any shared state.
	lockDir := cfg.DataDir
	if cfg.PIDFile != "" {
		lockDir = filepath.Dir(cfg.PIDFile)
	}
	lock, err := proclock.Acquire(lockDir)
	if err != nil {
		return err
	}
	defer lock.Release()
	logger.Info().Str("path", lock.Path()).Msg("process-liveness lock acquired")

	store, err := txstore.NewPostgresStore(ctx, cfg.DatabaseURL,
		txstore.WithLogger(logging.For(logger, "txstore")))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.MigrateUp(ctx); err != nil {
		return err
	}

	attachments, err := attachment.NewFileStore(cfg.AttachmentDir,
		attachment.WithLogger(logging.For(logger, "attachments")))
	if err != nil {
		return err
	}

	contracts := contract.NewRegistry()
	contracts.Register(cash.New())

	m := metrics.New()
	group := validator.NewGroup(contracts)
	res := resolver.New(store, attachments, group,
		resolver.WithGraphSizeLimit(cfg.ResolverGraphSizeLimit),
		resolver.WithPeerRateLimit(rate.Limit(cfg.ResolverPeerRatePerSec), cfg.ResolverPeerBurst),
		resolver.WithLogger(logging.For(logger, "resolver")),
		resolver.WithMetrics(m))

	bus := messaging.NewBus()
	node := &Node{
		Name:        cfg.NodeName,
		Store:       store,
		Attachments: attachments,
		Group:       group,
		Resolver:    res,
		Messenger:   bus.Register(cfg.NodeName),
		Metrics:     m,
		Logger:      logger,
	}

	if cfg.PeerAddressBookFile != "" {
		book, err := config.LoadPeerAddressBook(cfg.PeerAddressBookFile)
		if err != nil {
			return err
		}
		logger.Info().Int("peers", len(book.Peers)).Msg("peer address book loaded")
	}

	if cfg.TSAEnabled {
		key, err := loadOrGenerateKey(cfg.TSAKeyPath, logging.For(logger, "tsa"))
		if err != nil {
			return err
		}
		node.TSA = tsa.New(crypto.Party{Name: cfg.TSAIdentity, Key: key.Public()}, key, tsa.SystemClock{})
		logger.Info().Str("identity", cfg.TSAIdentity).Str("key", node.TSA.PublicIdentity().Key.String()).Msg("timestamping authority enabled")
	}

	if cfg.OracleEnabled {
		key, err := loadOrGenerateKey(cfg.OracleKeyPath, logging.For(logger, "oracle"))
		if err != nil {
			return err
		}
		node.Oracle = oracle.New(crypto.Party{Name: cfg.OracleIdentity, Key: key.Public()}, key)
		if cfg.OracleSeedFile != "" {
			doc, err := config.LoadOracleSeedFile(cfg.OracleSeedFile)
			if err != nil {
				return err
			}
			if err := doc.ApplyTo(node.Oracle); err != nil {
				return err
			}
			logger.Info().Int("fixes", len(doc.Fixes)).Str("file", cfg.OracleSeedFile).Msg("oracle seeded")
		}
		logger.Info().Str("identity", cfg.OracleIdentity).Msg("rate-fix oracle enabled")
	}

	mux := http.NewServeMux()
	node.RegisterAdminHandlers(mux)
	adminServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics and health endpoints listening")
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Msg("ledgerd ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("ledgerd: admin server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin server shutdown")
	}
	logger.Info().Msg("ledgerd stopped")
	return nil
}

// loadOrGenerateKey reads a hex-encoded Ed25519 private key from path,
// generating and saving a fresh one when the file does not exist yet.
func loadOrGenerateKey(path string, logger zerolog.Logger) (crypto.PrivateKey, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return crypto.PrivateKey{}, fmt.Errorf("ledgerd: create key directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return crypto.PrivateKey{}, fmt.Errorf("ledgerd: generate key: %w", err)
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
			return crypto.PrivateKey{}, fmt.Errorf("ledgerd: save key to %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("generated new signing key")
		return crypto.PrivateKey{Algorithm: crypto.AlgorithmEd25519, Bytes: priv}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return crypto.PrivateKey{}, fmt.Errorf("ledgerd: read key from %s: %w", path, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return crypto.PrivateKey{}, fmt.Errorf("ledgerd: decode key from %s: %w", path, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return crypto.PrivateKey{}, fmt.Errorf("ledgerd: key %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(keyBytes))
	}
	logger.Info().Str("path", path).Msg("loaded signing key")
	return crypto.PrivateKey{Algorithm: crypto.AlgorithmEd25519, Bytes: ed25519.PrivateKey(keyBytes)}, nil
}

func printHelp() {
	fmt.Println(`ledgerd - permissioned ledger node

Usage:
  ledgerd [flags]

Flags:
  -node-name string   Node name (overrides NODE_NAME env var)
  -help               Show this message

Configuration is environment-variable driven; see pkg/config for the
full list. The node refuses to start without NODE_NAME and DATABASE_URL,
and aborts if another instance already holds <data-dir>/process-id.`)
}
