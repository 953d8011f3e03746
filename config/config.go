// Package config loads the node's TOML configuration, grounded on the
// teacher repo's config.Load pattern: read if present, else write a
// default file so operators have something to edit.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for cmd/bridged.
type Config struct {
	Service     ServiceConfig     `toml:"Service"`
	Relay       RelayConfig       `toml:"Relay"`
	Oracle      OracleConfig      `toml:"Oracle"`
	Lending     LendingConfig     `toml:"Lending"`
	Governance  GovernanceConfig  `toml:"Governance"`
	API         APIConfig         `toml:"API"`
	Telemetry   TelemetryConfig   `toml:"Telemetry"`
	Storage     StorageConfig     `toml:"Storage"`
}

// Load reads the TOML file at path, or writes and returns Default() if no
// file exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

// Default returns a conservative devnet configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "bridged",
			Environment: "dev",
			ListenAddr:  ":8080",
		},
		Relay: RelayConfig{
			StableBitcoinConfirmations:   6,
			StableParachainConfirmations: 10,
			DisableDifficultyCheck:       false,
		},
		Oracle: OracleConfig{
			MaxAgeSeconds: 300,
		},
		Lending: LendingConfig{
			ValuationCurrencyID: 1,
			RewardCurrencyID:    2,
		},
		Governance: GovernanceConfig{
			LaunchOffsetMillis: 0,
		},
		API: APIConfig{
			ListenAddr: ":8081",
			JWTIssuer:  "bridged",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "",
			Insecure:     true,
		},
		Storage: StorageConfig{
			SQLitePath: "./bridged-data/state.db",
		},
	}
}
