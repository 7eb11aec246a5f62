package config

import "time"

// DefaultConfig returns the default relay node configuration. Unlike the
// teacher's mainnet/testnet split, a relay mesh node is network-agnostic —
// there is one default profile, not a per-network one.
func DefaultConfig() *Config {
	return &Config{
		DataDir:    DefaultDataDir(),
		ListenAddr: "0.0.0.0:7700",
		APIAddr:    "127.0.0.1:7701",

		MinPeers: 5,
		MaxPeers: 50,

		KeepaliveInterval:               15 * time.Second,
		KeepaliveMissesBeforeQuarantine: 2,
		EncryptionRequired:              true,

		RouteTTL:      300 * time.Second,
		RouteCacheMax: 1000,

		RewardRate:           0.1,
		MinStake:             1000,
		MaxRewardPerDay:      1000,
		DistributionInterval: 86400 * time.Second,
		InitialSupply:        1_000_000,
		RewardPoolFraction:   0.5,

		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
