package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "node_id":
		cfg.NodeID = value
	case "datadir":
		cfg.DataDir = value

	case "listen_addr":
		cfg.ListenAddr = value
	case "api_addr":
		cfg.APIAddr = value
	case "bootstrap_peers":
		cfg.BootstrapPeers = parseStringList(value)
	case "min_peers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.MinPeers = n
	case "max_peers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.MaxPeers = n
	case "region":
		cfg.Region = value
	case "keepalive_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.KeepaliveInterval = d
	case "keepalive_misses_before_quarantine":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.KeepaliveMissesBeforeQuarantine = n
	case "encryption_required":
		cfg.EncryptionRequired = parseBool(value)

	case "route_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.RouteTTL = d
	case "route_cache_max":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RouteCacheMax = n

	case "reward_rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.RewardRate = f
	case "min_stake":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.MinStake = n
	case "max_reward_per_day":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.MaxRewardPerDay = n
	case "distribution_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.DistributionInterval = d
	case "initial_supply":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.InitialSupply = n
	case "reward_pool_fraction":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.RewardPoolFraction = f

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored.
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string) error {
	d := DefaultConfig()
	content := fmt.Sprintf(`# NetworkNeuron relay node configuration.
#
# node_id is optional: if left blank, it is derived from the node's
# keypair on first start and then persisted to the identity file.
# node_id =

# datadir = %s

# ============================================================================
# Peer & session plane
# ============================================================================

listen_addr = %s
# bootstrap_peers = /ip4/203.0.113.1/tcp/7700/node/<node_id>

# ============================================================================
# Administrative API
# ============================================================================

api_addr = %s

min_peers = %d
max_peers = %d
# region = us-east

keepalive_interval = %s
keepalive_misses_before_quarantine = %d
encryption_required = %t

# ============================================================================
# Routing plane
# ============================================================================

route_ttl = %s
route_cache_max = %d

# ============================================================================
# Incentive ledger
# ============================================================================

reward_rate = %v
min_stake = %d
max_reward_per_day = %d
distribution_interval = %s
initial_supply = %d
reward_pool_fraction = %v

# ============================================================================
# Logging
# ============================================================================

log.level = %s
log.json = %t
`,
		d.DataDir, d.ListenAddr, d.APIAddr, d.MinPeers, d.MaxPeers,
		d.KeepaliveInterval, d.KeepaliveMissesBeforeQuarantine, d.EncryptionRequired,
		d.RouteTTL, d.RouteCacheMax,
		d.RewardRate, d.MinStake, d.MaxRewardPerDay, d.DistributionInterval, d.InitialSupply, d.RewardPoolFraction,
		d.Log.Level, d.Log.JSON)

	return os.WriteFile(path, []byte(content), 0644)
}
