// Package config handles relay node configuration.
//
// Configuration is loaded with the following precedence, lowest to
// highest: built-in defaults, the .conf file, command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds all runtime configuration for a relay node.
type Config struct {
	// Core
	NodeID  string `conf:"node_id"` // optional; generated from keypair hash if empty
	DataDir string `conf:"datadir"`

	// Peer & session plane
	ListenAddr     string   `conf:"listen_addr"`
	BootstrapPeers []string `conf:"bootstrap_peers"`
	MinPeers       int      `conf:"min_peers"`
	MaxPeers       int      `conf:"max_peers"`
	Region         string   `conf:"region"`

	// Administrative API
	APIAddr string `conf:"api_addr"`

	KeepaliveInterval               time.Duration `conf:"keepalive_interval"`
	KeepaliveMissesBeforeQuarantine int           `conf:"keepalive_misses_before_quarantine"`
	EncryptionRequired              bool          `conf:"encryption_required"`

	// Routing plane
	RouteTTL      time.Duration `conf:"route_ttl"`
	RouteCacheMax int           `conf:"route_cache_max"`

	// Incentive ledger
	RewardRate           float64       `conf:"reward_rate"` // tokens per megabyte forwarded
	MinStake             uint64        `conf:"min_stake"`
	MaxRewardPerDay      uint64        `conf:"max_reward_per_day"`
	DistributionInterval time.Duration `conf:"distribution_interval"`
	InitialSupply        uint64        `conf:"initial_supply"`
	RewardPoolFraction   float64       `conf:"reward_pool_fraction"` // of InitialSupply

	// Logging
	Log LogConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.networkneuron
//	macOS:   ~/Library/Application Support/NetworkNeuron
//	Windows: %APPDATA%\NetworkNeuron
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".networkneuron"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "NetworkNeuron")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "NetworkNeuron")
		}
		return filepath.Join(home, "AppData", "Roaming", "NetworkNeuron")
	default:
		return filepath.Join(home, ".networkneuron")
	}
}

// IdentityFile returns the path to the persisted node identity file, which
// holds the hex-encoded private key.
func (c *Config) IdentityFile() string {
	return filepath.Join(c.DataDir, "identity.dat")
}

// LedgerDir returns the ledger journal/snapshot storage directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, "ledger")
}

// RegistryDir returns the peer registry persistence directory.
func (c *Config) RegistryDir() string {
	return filepath.Join(c.DataDir, "registry")
}

// AccountingDir returns the per-node activity counter persistence directory.
func (c *Config) AccountingDir() string {
	return filepath.Join(c.DataDir, "accounting")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "networkneuron.conf")
}
