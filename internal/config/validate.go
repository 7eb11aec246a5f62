package config

import (
	"fmt"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.MinPeers < 0 {
		return fmt.Errorf("min_peers must be >= 0")
	}
	if cfg.MaxPeers < cfg.MinPeers {
		return fmt.Errorf("max_peers (%d) must be >= min_peers (%d)", cfg.MaxPeers, cfg.MinPeers)
	}
	if cfg.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive_interval must be > 0")
	}
	if cfg.KeepaliveMissesBeforeQuarantine <= 0 {
		return fmt.Errorf("keepalive_misses_before_quarantine must be > 0")
	}
	if cfg.RouteTTL <= 0 {
		return fmt.Errorf("route_ttl must be > 0")
	}
	if cfg.RouteCacheMax <= 0 {
		return fmt.Errorf("route_cache_max must be > 0")
	}
	if cfg.RewardRate < 0 {
		return fmt.Errorf("reward_rate must be >= 0")
	}
	if cfg.DistributionInterval <= 0 {
		return fmt.Errorf("distribution_interval must be > 0")
	}
	if cfg.RewardPoolFraction < 0 || cfg.RewardPoolFraction > 1 {
		return fmt.Errorf("reward_pool_fraction must be in [0, 1]")
	}
	if cfg.NodeID != "" {
		if _, err := types.ParseNodeID(cfg.NodeID); err != nil {
			return fmt.Errorf("node_id: %w", err)
		}
	}
	return nil
}
