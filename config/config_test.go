package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" || cfg.DataDir != "./tip-data" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Auth.HMACSecret) != 64 {
		t.Fatalf("expected generated hex secret, got %q", cfg.Auth.HMACSecret)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Auth.HMACSecret != cfg.Auth.HMACSecret {
		t.Fatalf("secret must survive reload")
	}
	if err := ValidateConfig(reloaded); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	gen, err := reloaded.ResolveGenesis()
	if err != nil || gen != nil {
		t.Fatalf("default config has no genesis, got %+v (%v)", gen, err)
	}
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
Environment = "test"

[genesis]
Deployer = "0x00000000000000000000000000000000000000d0"
MinimumTipAmount = "1000000000000000"
FeePercent = 7
Moderators = ["0x00000000000000000000000000000000000000a1"]

[genesis.Alloc]
"0x0000000000000000000000000000000000000001" = "5000"

[log]
Level = "debug"
File = "/var/log/tipd.log"

[auth]
HMACSecretEnv = "TIPD_TEST_SECRET"
Issuer = "tipd"

[rate_limit]
RequestsPerSecond = 2.5
Burst = 4

[indexer]
DSN = "file::memory:?cache=shared"

[telemetry]
Endpoint = "otel:4318"
Traces = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TIPD_TEST_SECRET", strings.Repeat("s", 40))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9000" || cfg.Environment != "test" {
		t.Fatalf("unexpected top level %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/var/log/tipd.log" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 4 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.Indexer.QueueSize != 1024 {
		t.Fatalf("queue size default not applied")
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if cfg.HMACSecretValue() != strings.Repeat("s", 40) {
		t.Fatalf("secret should come from the environment")
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	gen, err := cfg.ResolveGenesis()
	if err != nil {
		t.Fatalf("resolve genesis: %v", err)
	}
	if gen == nil || gen.FeePercent != 7 || len(gen.Moderators) != 1 || len(gen.Alloc) != 1 {
		t.Fatalf("unexpected genesis %+v", gen)
	}
	if gen.Alloc[0].Amount.Int64() != 5000 {
		t.Fatalf("unexpected allocation %s", gen.Alloc[0].Amount)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \":1\"\nValidatorKey = \"x\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Auth: Auth{HMACSecret: strings.Repeat("k", 32)}}
		applyDefaults(cfg)
		return cfg
	}
	if err := ValidateConfig(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"bad address":  func(c *Config) { c.RPCAddress = "localhost" },
		"short secret": func(c *Config) { c.Auth.HMACSecret = "short" },
		"bad level":    func(c *Config) { c.Log.Level = "loud" },
		"zero burst":   func(c *Config) { c.RateLimit.Burst = 0 },
		"fee range": func(c *Config) {
			c.Genesis.Deployer = "0x00000000000000000000000000000000000000d0"
			c.Genesis.FeePercent = 25
		},
		"bad deployer": func(c *Config) {
			c.Genesis.Deployer = "nope"
			c.Genesis.FeePercent = 5
		},
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := ValidateConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
