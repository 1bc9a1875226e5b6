package config

import (
	"fmt"

	"shadowbridge/core/types"
)

// Validate rejects configurations the daemon cannot start with.
func Validate(cfg *Config) error {
	if cfg.OwnerAddress == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if _, err := types.ParseAddress(cfg.OwnerAddress); err != nil {
		return fmt.Errorf("config: OwnerAddress: %w", err)
	}
	if cfg.GroupAdminAddress != "" {
		if _, err := types.ParseAddress(cfg.GroupAdminAddress); err != nil {
			return fmt.Errorf("config: GroupAdminAddress: %w", err)
		}
	}
	if cfg.Registry.Precise == 0 {
		return fmt.Errorf("config: Registry.Precise must be positive")
	}
	if cfg.HTLC.RevokeFeeRatio > 10000 {
		return fmt.Errorf("config: HTLC.RevokeFeeRatio above 10000")
	}
	for group := range cfg.Registry.GroupFeeRatios {
		if _, err := types.ParseAddress(group); err != nil {
			return fmt.Errorf("config: Registry.GroupFeeRatios key %q: %w", group, err)
		}
	}
	for addr := range cfg.Genesis {
		if _, err := types.ParseAddress(addr); err != nil {
			return fmt.Errorf("config: Genesis key %q: %w", addr, err)
		}
	}
	if cfg.RPC.RateLimitPerSecond < 0 {
		return fmt.Errorf("config: RPC.RateLimitPerSecond negative")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("config: Telemetry enabled without OTLPEndpoint")
	}
	return nil
}
