package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/plebbit/plebbit-tipping-v1/core/genesis"
)

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	Environment          string `toml:"Environment"`
	GenesisFile          string `toml:"GenesisFile"`
	RPCReadHeaderTimeout int    `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout       int    `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int    `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int    `toml:"RPCIdleTimeout"`

	Genesis   genesis.GenesisSpec `toml:"genesis"`
	Log       Log                 `toml:"log"`
	Auth      Auth                `toml:"auth"`
	RateLimit RateLimit           `toml:"rate_limit"`
	Indexer   Indexer             `toml:"indexer"`
	Telemetry Telemetry           `toml:"telemetry"`
	Stream    Stream              `toml:"stream"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults and a freshly generated token secret.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tip-data"
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.RPCReadHeaderTimeout <= 0 {
		cfg.RPCReadHeaderTimeout = 5
	}
	if cfg.RPCReadTimeout <= 0 {
		cfg.RPCReadTimeout = 15
	}
	if cfg.RPCWriteTimeout <= 0 {
		cfg.RPCWriteTimeout = 15
	}
	if cfg.RPCIdleTimeout <= 0 {
		cfg.RPCIdleTimeout = 60
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.Indexer.QueueSize <= 0 {
		cfg.Indexer.QueueSize = 1024
	}
	if cfg.Stream.HistoryLimit <= 0 {
		cfg.Stream.HistoryLimit = 2048
	}
	if cfg.Genesis.FeePercent == 0 && strings.TrimSpace(cfg.Genesis.Deployer) != "" {
		cfg.Genesis.FeePercent = 5
	}
}

// HMACSecretValue resolves the token secret, preferring the environment
// variable named by HMACSecretEnv.
func (c *Config) HMACSecretValue() string {
	if c == nil {
		return ""
	}
	if env := strings.TrimSpace(c.Auth.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.Auth.HMACSecret)
}

// ResolveGenesis returns the genesis to apply on first start: the GenesisFile
// when set, the inline [genesis] table when it names a deployer, nil otherwise.
func (c *Config) ResolveGenesis() (*genesis.Genesis, error) {
	if c == nil {
		return nil, nil
	}
	if path := strings.TrimSpace(c.GenesisFile); path != "" {
		spec, err := genesis.LoadGenesisSpec(path)
		if err != nil {
			return nil, err
		}
		return spec.Build()
	}
	if strings.TrimSpace(c.Genesis.Deployer) == "" {
		return nil, nil
	}
	return c.Genesis.Build()
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	cfg := &Config{
		RPCAddress:  ":8545",
		DataDir:     "./tip-data",
		Environment: "local",
		Auth: Auth{
			HMACSecret: hex.EncodeToString(secret),
			Issuer:     "tipd",
		},
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
