// Copyright 2025 Tradeledger Authors
//
// Node configuration: environment-variable-driven scalars loaded by
// Load() through small getEnv/getEnvInt/getEnvBool/getEnvDuration
// helpers, with a Validate() pass run before the node starts accepting
// work.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NodeConfig holds every scalar setting a ledgerd process needs at
// startup. Structured documents (peer address books, oracle seed
// fixes) are loaded separately via YAML — see peers.go and
// oracleseed.go.
type NodeConfig struct {
	// Identity
	NodeName string
	DataDir  string
	PIDFile  string

	// Messaging
	ListenAddr string

	// Local transaction database
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime time.Duration
	DatabaseMaxLifetime time.Duration

	// Attachment store
	AttachmentDir string

	// Dependency resolver
	ResolverGraphSizeLimit int
	ResolverPeerRatePerSec float64
	ResolverPeerBurst      int

	// Timestamping authority (only set if this node runs one)
	TSAEnabled  bool
	TSAIdentity string
	TSAKeyPath  string

	// Rate-fix oracle (only set if this node runs one)
	OracleEnabled  bool
	OracleIdentity string
	OracleKeyPath  string
	OracleSeedFile string

	// Peer address book document (see peers.go)
	PeerAddressBookFile string

	// Observability
	LogLevel  string
	LogFormat string
	MetricsAddr string
}

// Load reads NodeConfig from environment variables, applying the
// defaults below wherever a variable is unset or empty.
func Load() (*NodeConfig, error) {
	cfg := &NodeConfig{
		NodeName: getEnv("NODE_NAME", ""),
		DataDir:  getEnv("DATA_DIR", "./data"),
		PIDFile:  getEnv("PID_FILE", ""),

		ListenAddr: getEnv("LISTEN_ADDR", "0.0.0.0:7777"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 2),
		DatabaseMaxIdleTime: getEnvDuration("DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		DatabaseMaxLifetime: getEnvDuration("DATABASE_MAX_LIFETIME", time.Hour),

		AttachmentDir: getEnv("ATTACHMENT_DIR", "./data/attachments"),

		ResolverGraphSizeLimit: getEnvInt("RESOLVER_GRAPH_SIZE_LIMIT", 5000),
		ResolverPeerRatePerSec: getEnvFloat("RESOLVER_PEER_RATE_PER_SEC", 50),
		ResolverPeerBurst:      getEnvInt("RESOLVER_PEER_BURST", 100),

		TSAEnabled:  getEnvBool("TSA_ENABLED", false),
		TSAIdentity: getEnv("TSA_IDENTITY", ""),
		TSAKeyPath:  getEnv("TSA_KEY_PATH", ""),

		OracleEnabled:  getEnvBool("ORACLE_ENABLED", false),
		OracleIdentity: getEnv("ORACLE_IDENTITY", ""),
		OracleKeyPath:  getEnv("ORACLE_KEY_PATH", ""),
		OracleSeedFile: getEnv("ORACLE_SEED_FILE", ""),

		PeerAddressBookFile: getEnv("PEER_ADDRESS_BOOK_FILE", ""),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
	}
	return cfg, nil
}

// Validate checks that every setting required for the node to start is
// present and internally consistent.
func (c *NodeConfig) Validate() error {
	var problems []string

	if c.NodeName == "" {
		problems = append(problems, "NODE_NAME is required")
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.DatabaseMinConns > c.DatabaseMaxConns {
		problems = append(problems, fmt.Sprintf("DATABASE_MIN_CONNS (%d) must not exceed DATABASE_MAX_CONNS (%d)", c.DatabaseMinConns, c.DatabaseMaxConns))
	}
	if c.ResolverGraphSizeLimit <= 0 {
		problems = append(problems, "RESOLVER_GRAPH_SIZE_LIMIT must be positive")
	}
	if c.TSAEnabled {
		if c.TSAIdentity == "" {
			problems = append(problems, "TSA_IDENTITY is required when TSA_ENABLED is true")
		}
		if c.TSAKeyPath == "" {
			problems = append(problems, "TSA_KEY_PATH is required when TSA_ENABLED is true")
		}
	}
	if c.OracleEnabled {
		if c.OracleIdentity == "" {
			problems = append(problems, "ORACLE_IDENTITY is required when ORACLE_ENABLED is true")
		}
		if c.OracleKeyPath == "" {
			problems = append(problems, "ORACLE_KEY_PATH is required when ORACLE_ENABLED is true")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

// ErrInvalidConfig wraps every problem Validate collects.
var ErrInvalidConfig = errors.New("config: invalid node configuration")

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
