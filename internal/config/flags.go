package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	NodeID  string
	DataDir string
	Config  string

	ListenAddr     string
	APIAddr        string
	BootstrapPeers string
	MinPeers       int
	MaxPeers       int
	Region         string

	KeepaliveInterval               string
	KeepaliveMissesBeforeQuarantine int
	EncryptionRequired              bool

	RouteTTL      string
	RouteCacheMax int

	RewardRate           float64
	MinStake             uint64
	MaxRewardPerDay      uint64
	DistributionInterval string
	InitialSupply        uint64
	RewardPoolFraction   float64

	LogLevel string
	LogFile  string
	LogJSON  bool

	Args []string

	SetEncryptionRequired bool
	SetLogJSON            bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("meshnoded", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	fs.StringVar(&f.NodeID, "node-id", "", "Node identifier (default: derived from keypair)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.ListenAddr, "listen-addr", "", "Listen address")
	fs.StringVar(&f.APIAddr, "api-addr", "", "Administrative API listen address")
	fs.StringVar(&f.BootstrapPeers, "bootstrap-peers", "", "Comma-separated bootstrap peer addresses")
	fs.IntVar(&f.MinPeers, "min-peers", 0, "Minimum desired peer count")
	fs.IntVar(&f.MaxPeers, "max-peers", 0, "Maximum peer count")
	fs.StringVar(&f.Region, "region", "", "Declared region")

	fs.StringVar(&f.KeepaliveInterval, "keepalive-interval", "", "Keepalive interval (e.g. 30s)")
	fs.IntVar(&f.KeepaliveMissesBeforeQuarantine, "keepalive-misses-before-quarantine", 0, "Missed keepalives before a peer is dropped; the first miss quarantines")
	fs.BoolVar(&f.EncryptionRequired, "encryption-required", true, "Require encrypted tunnels")

	fs.StringVar(&f.RouteTTL, "route-ttl", "", "Route cache entry TTL (e.g. 300s)")
	fs.IntVar(&f.RouteCacheMax, "route-cache-max", 0, "Max cached routes")

	fs.Float64Var(&f.RewardRate, "reward-rate", 0, "Reward tokens per megabyte forwarded")
	fs.Uint64Var(&f.MinStake, "min-stake", 0, "Minimum stake to be reward-eligible")
	fs.Uint64Var(&f.MaxRewardPerDay, "max-reward-per-day", 0, "Per-node daily reward clamp")
	fs.StringVar(&f.DistributionInterval, "distribution-interval", "", "Reward distribution period (e.g. 86400s)")
	fs.Uint64Var(&f.InitialSupply, "initial-supply", 0, "Initial ledger token supply")
	fs.Float64Var(&f.RewardPoolFraction, "reward-pool-fraction", 0, "Fraction of initial supply seeded into the reward pool")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() { printUsage() }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetEncryptionRequired = isFlagSet(fs, "encryption-required")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.NodeID != "" {
		cfg.NodeID = f.NodeID
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.APIAddr != "" {
		cfg.APIAddr = f.APIAddr
	}
	if f.BootstrapPeers != "" {
		cfg.BootstrapPeers = parseStringList(f.BootstrapPeers)
	}
	if f.MinPeers != 0 {
		cfg.MinPeers = f.MinPeers
	}
	if f.MaxPeers != 0 {
		cfg.MaxPeers = f.MaxPeers
	}
	if f.Region != "" {
		cfg.Region = f.Region
	}

	if f.KeepaliveInterval != "" {
		if err := setConfigValue(cfg, "keepalive_interval", f.KeepaliveInterval); err != nil {
			return fmt.Errorf("--keepalive-interval: %w", err)
		}
	}
	if f.KeepaliveMissesBeforeQuarantine != 0 {
		cfg.KeepaliveMissesBeforeQuarantine = f.KeepaliveMissesBeforeQuarantine
	}
	if f.SetEncryptionRequired {
		cfg.EncryptionRequired = f.EncryptionRequired
	}

	if f.RouteTTL != "" {
		if err := setConfigValue(cfg, "route_ttl", f.RouteTTL); err != nil {
			return fmt.Errorf("--route-ttl: %w", err)
		}
	}
	if f.RouteCacheMax != 0 {
		cfg.RouteCacheMax = f.RouteCacheMax
	}

	if f.RewardRate != 0 {
		cfg.RewardRate = f.RewardRate
	}
	if f.MinStake != 0 {
		cfg.MinStake = f.MinStake
	}
	if f.MaxRewardPerDay != 0 {
		cfg.MaxRewardPerDay = f.MaxRewardPerDay
	}
	if f.DistributionInterval != "" {
		if err := setConfigValue(cfg, "distribution_interval", f.DistributionInterval); err != nil {
			return fmt.Errorf("--distribution-interval: %w", err)
		}
	}
	if f.InitialSupply != 0 {
		cfg.InitialSupply = f.InitialSupply
	}
	if f.RewardPoolFraction != 0 {
		cfg.RewardPoolFraction = f.RewardPoolFraction
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}

	return nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `networkneuron relay node

Usage:
  meshnoded [options]
  meshnoded --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --node-id           Node identifier (default: derived from keypair)
  --datadir           Data directory (default: ~/.networkneuron)
  --config, -c        Config file path (default: <datadir>/networkneuron.conf)

Peer & Session Options:
  --listen-addr                          Listen address
  --api-addr                             Administrative API listen address (default 127.0.0.1:7701)
  --bootstrap-peers                      Comma-separated bootstrap peer addresses
  --min-peers                            Minimum desired peer count (default 5)
  --max-peers                            Maximum peer count (default 50)
  --region                                Declared region
  --keepalive-interval                   Keepalive interval (default 15s)
  --keepalive-misses-before-quarantine   Missed keepalives before a peer is dropped; the first miss quarantines (default 2)
  --encryption-required                  Require encrypted tunnels (default true)

Routing Options:
  --route-ttl         Route cache entry TTL (default 300s)
  --route-cache-max   Max cached routes (default 1000)

Ledger Options:
  --reward-rate             Reward tokens per megabyte forwarded (default 0.1)
  --min-stake                Minimum stake to be reward-eligible (default 1000)
  --max-reward-per-day       Per-node daily reward clamp (default 1000)
  --distribution-interval   Reward distribution period (default 86400s)
  --initial-supply          Initial ledger token supply
  --reward-pool-fraction    Fraction of initial supply seeded into the reward pool (default 0.5)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/meshnode.log)
  --log-json      Output logs as JSON
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("meshnoded version 0.1.0")
		os.Exit(0)
	}

	cfg := DefaultConfig()

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, nil, fmt.Errorf("applying flags: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Idempotent — safe on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.LedgerDir(),
		cfg.RegistryDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
