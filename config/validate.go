package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/observability/logging"
)

// MinHMACSecretLength is the shortest accepted token secret in bytes.
var MinHMACSecretLength = 32

// ValidateConfig checks a loaded configuration before the node starts.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if _, _, err := net.SplitHostPort(cfg.RPCAddress); err != nil {
		return fmt.Errorf("RPCAddress: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	level := strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if level != "" && level != "info" && logging.ParseLevel(level).String() == "INFO" {
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	if secret := cfg.HMACSecretValue(); secret != "" && len(secret) < MinHMACSecretLength {
		return fmt.Errorf("auth: HMAC secret must be at least %d bytes", MinHMACSecretLength)
	}
	if cfg.Auth.LeewaySecs < 0 {
		return fmt.Errorf("auth: LeewaySecs must not be negative")
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond and Burst must be positive")
	}
	if cfg.Indexer.QueueSize < 0 {
		return fmt.Errorf("indexer: QueueSize must not be negative")
	}
	if strings.TrimSpace(cfg.GenesisFile) == "" && strings.TrimSpace(cfg.Genesis.Deployer) != "" {
		if cfg.Genesis.FeePercent < tipping.MinFeePercent || cfg.Genesis.FeePercent > tipping.MaxFeePercent {
			return fmt.Errorf("genesis: FeePercent must be between %d and %d", tipping.MinFeePercent, tipping.MaxFeePercent)
		}
		if _, err := cfg.Genesis.Build(); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	return nil
}
