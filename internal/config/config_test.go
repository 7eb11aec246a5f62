package config

import "testing"

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate_MaxPeersBelowMinPeers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPeers = 10
	cfg.MaxPeers = 5
	if err := Validate(cfg); err == nil {
		t.Error("expected an error when max_peers < min_peers")
	}
}

func TestValidate_ZeroKeepaliveInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepaliveInterval = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for zero keepalive_interval")
	}
}

func TestValidate_RewardPoolFractionOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RewardPoolFraction = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for reward_pool_fraction > 1")
	}
}

func TestApplyFileConfig_OverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	values := map[string]string{
		"min_peers":   "8",
		"max_peers":   "100",
		"region":      "eu-west",
		"reward_rate": "0.25",
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.MinPeers != 8 || cfg.MaxPeers != 100 || cfg.Region != "eu-west" || cfg.RewardRate != 0.25 {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestApplyFileConfig_UnknownKeyIgnored(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyFileConfig(cfg, map[string]string{"totally_unknown": "x"}); err != nil {
		t.Errorf("unknown keys should be ignored, got error: %v", err)
	}
}

func TestApplyFlags_OnlyOverridesSetFields(t *testing.T) {
	cfg := DefaultConfig()
	originalMaxPeers := cfg.MaxPeers

	f := &Flags{Region: "ap-south"}
	if err := ApplyFlags(cfg, f); err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}
	if cfg.Region != "ap-south" {
		t.Error("region flag should override")
	}
	if cfg.MaxPeers != originalMaxPeers {
		t.Error("unset flags should not clobber existing config")
	}
}

func TestParseStringList(t *testing.T) {
	got := parseStringList(" a, b ,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}
