package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`

	// OwnerAddress controls halt, kill and reconfiguration. GroupAdminAddress
	// controls the storeman group lifecycle.
	OwnerAddress      string `toml:"OwnerAddress"`
	GroupAdminAddress string `toml:"GroupAdminAddress"`

	Token     Token     `toml:"Token"`
	HTLC      HTLC      `toml:"HTLC"`
	Registry  Registry  `toml:"Registry"`
	RPC       RPC       `toml:"RPC"`
	Log       Log       `toml:"Log"`
	Telemetry Telemetry `toml:"Telemetry"`

	// Genesis funds native balances at first start, keyed by hex address.
	Genesis map[string]string `toml:"Genesis"`
}

type Token struct {
	Name     string `toml:"Name"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

type HTLC struct {
	// LockedTimeSeconds is the base lock window; zero keeps the default.
	LockedTimeSeconds uint64 `toml:"LockedTimeSeconds"`
	// RevokeFeeRatio is the storeman share of the fee on outbound revoke,
	// over a denominator of 10000.
	RevokeFeeRatio uint64 `toml:"RevokeFeeRatio"`
}

type Registry struct {
	Coin2WanRatio     uint64            `toml:"Coin2WanRatio"`
	DefaultTxFeeRatio uint64            `toml:"DefaultTxFeeRatio"`
	Precise           uint64            `toml:"Precise"`
	GroupFeeRatios    map[string]uint64 `toml:"GroupFeeRatios"`
}

type RPC struct {
	// RateLimitPerSecond bounds request throughput per instance; zero
	// disables the limiter.
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

type Log struct {
	Level string `toml:"Level"`
	// File enables rotating file output alongside stdout when set.
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Telemetry struct {
	Enabled      bool   `toml:"Enabled"`
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	ServiceName  string `toml:"ServiceName"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
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
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = ":8545"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./bridge-data"
	}
	if cfg.Token.Name == "" {
		cfg.Token.Name = "Wrapped Coin"
	}
	if cfg.Token.Symbol == "" {
		cfg.Token.Symbol = "WCOIN"
	}
	if cfg.Token.Decimals == 0 {
		cfg.Token.Decimals = 18
	}
	if cfg.Registry.Precise == 0 {
		cfg.Registry.Precise = 10000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "shadowbridge"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8545",
		DataDir:    "./bridge-data",
		Token: Token{
			Name:     "Wrapped Coin",
			Symbol:   "WCOIN",
			Decimals: 18,
		},
		HTLC: HTLC{
			LockedTimeSeconds: 36 * 3600,
			RevokeFeeRatio:    0,
		},
		Registry: Registry{
			Coin2WanRatio:     10000,
			DefaultTxFeeRatio: 10,
			Precise:           10000,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Telemetry: Telemetry{
			ServiceName: "shadowbridge",
		},
	}
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
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
