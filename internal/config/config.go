// Package config provides configuration management for the indexer and API
// processes.
//
// Configuration is loaded from environment variables (optionally via a
// .env file); there is no settings database in this system — both
// processes are stateless with respect to configuration and restart with
// whatever the environment provides.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables, falling back to documented defaults
// 3. Validate
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/stellar/go/network"
)

// IndexerMode selects the indexer's ingestion strategy (§4.3); exactly one
// is active at a time.
type IndexerMode string

const (
	IndexerModePoll   IndexerMode = "poll"
	IndexerModeStream IndexerMode = "stream"
)

// Config holds the configuration shared by cmd/server, cmd/indexer, and the
// operational CLIs.
type Config struct {
	// Storage
	DataDir     string // base directory for the state database file
	DatabaseURL string // full path/URI to the state database (derived from DataDir if empty)

	// External data sources (§6 Environment)
	HorizonURL        string
	SorobanRPCURL     string
	NetworkPassphrase string // network.PublicNetworkPassphrase, TestNetworkPassphrase, or FutureNetworkPassphrase
	RedisURL          string // optional and currently unused; the API cache is always in-process

	// API server
	Port int

	// Indexer
	IndexerMode                IndexerMode
	PollInterval               time.Duration
	SnapshotInterval           time.Duration
	PoolRefreshInterval        time.Duration
	HorizonRequestTimeout      time.Duration
	MaxPoolStaleIntervals      int

	// Routing
	MaxHops              int
	DefaultSlippageBps   int64
	QuoteValiditySeconds int
	RouterFeeRateBps     int64

	// Maintenance / archival (§4.3, §9, §12)
	ArchiveRetentionDays  int
	SnapshotRetentionDays int
	S3BackupBucket        string

	LogLevel string
	DevMode  bool
}

// Load reads configuration from environment variables.
//
// dataDirOverride - optional CLI flag override for the data directory
// (highest priority, matching the corpus's own --data-dir convention).
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("AGGREGON_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = filepath.Join(absDataDir, "state.db")
	}

	cfg := &Config{
		DataDir:     absDataDir,
		DatabaseURL: databaseURL,

		HorizonURL:        getEnv("STELLAR_HORIZON_URL", "https://horizon.stellar.org"),
		SorobanRPCURL:     getEnv("SOROBAN_RPC_URL", "https://soroban-rpc.stellar.org"),
		NetworkPassphrase: getEnv("STELLAR_NETWORK_PASSPHRASE", network.PublicNetworkPassphrase),
		RedisURL:          getEnv("REDIS_URL", ""),

		Port: getEnvAsInt("GO_PORT", 8001),

		IndexerMode:           IndexerMode(getEnv("INDEXER_MODE", string(IndexerModePoll))),
		PollInterval:          getEnvAsDuration("POLL_INTERVAL_MS", 2000*time.Millisecond, time.Millisecond),
		SnapshotInterval:      getEnvAsDuration("SNAPSHOT_INTERVAL_SECONDS", 30*time.Second, time.Second),
		PoolRefreshInterval:   getEnvAsDuration("POOL_REFRESH_INTERVAL_SECONDS", 60*time.Second, time.Second),
		HorizonRequestTimeout: getEnvAsDuration("HORIZON_REQUEST_TIMEOUT_SECONDS", 10*time.Second, time.Second),
		MaxPoolStaleIntervals: getEnvAsInt("MAX_POOL_STALE_INTERVALS", 3),

		MaxHops:              getEnvAsInt("MAX_HOPS", 4),
		DefaultSlippageBps:   int64(getEnvAsInt("DEFAULT_SLIPPAGE_BPS", 50)),
		QuoteValiditySeconds: getEnvAsInt("QUOTE_VALIDITY_SECONDS", 30),
		RouterFeeRateBps:     int64(getEnvAsInt("ROUTER_FEE_RATE_BPS", 30)),

		ArchiveRetentionDays:  getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
		SnapshotRetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 7),
		S3BackupBucket:        getEnv("S3_BACKUP_BUCKET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration is present and well-formed.
func (c *Config) Validate() error {
	if c.HorizonURL == "" {
		return fmt.Errorf("STELLAR_HORIZON_URL must not be empty")
	}
	if c.SorobanRPCURL == "" {
		return fmt.Errorf("SOROBAN_RPC_URL must not be empty")
	}
	if c.IndexerMode != IndexerModePoll && c.IndexerMode != IndexerModeStream {
		return fmt.Errorf("INDEXER_MODE must be %q or %q, got %q", IndexerModePoll, IndexerModeStream, c.IndexerMode)
	}
	if c.MaxHops <= 0 || c.MaxHops > 4 {
		return fmt.Errorf("MAX_HOPS must be in [1,4], got %d", c.MaxHops)
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration reads an integer environment variable and scales it by
// unit (e.g. time.Millisecond for *_MS variables, time.Second for
// *_SECONDS variables).
func getEnvAsDuration(key string, defaultValue time.Duration, unit time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal) * unit
		}
	}
	return defaultValue
}
