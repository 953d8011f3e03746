package config

// ServiceConfig identifies the process for logging and telemetry.
type ServiceConfig struct {
	Name        string `toml:"Name"`
	Environment string `toml:"Environment"`
	ListenAddr  string `toml:"ListenAddr"`
}

// RelayConfig mirrors internal/relay.Config.
type RelayConfig struct {
	StableBitcoinConfirmations   uint32 `toml:"StableBitcoinConfirmations"`
	StableParachainConfirmations uint32 `toml:"StableParachainConfirmations"`
	DisableDifficultyCheck       bool   `toml:"DisableDifficultyCheck"`
}

// OracleConfig controls the in-process rate adapter's staleness gate.
type OracleConfig struct {
	MaxAgeSeconds int64 `toml:"MaxAgeSeconds"`
}

// LendingConfig selects the lending engine's shared valuation and reward
// currencies.
type LendingConfig struct {
	ValuationCurrencyID uint32 `toml:"ValuationCurrencyID"`
	RewardCurrencyID    uint32 `toml:"RewardCurrencyID"`
}

// GovernanceConfig controls the weekly referendum launcher's offset past
// Monday 00:00 UTC.
type GovernanceConfig struct {
	LaunchOffsetMillis int64 `toml:"LaunchOffsetMillis"`
}

// APIConfig controls the chi-based admin/read-only HTTP surface.
type APIConfig struct {
	ListenAddr string `toml:"ListenAddr"`
	JWTIssuer  string `toml:"JWTIssuer"`
	JWTSecret  string `toml:"JWTSecret"`
	// RequireAuth signals that signed/admin routes must be gated even
	// though JWTSecret is blank in this file; bridged resolves the
	// actual secret from BRIDGED_JWT_SECRET or an interactive prompt.
	RequireAuth bool `toml:"RequireAuth"`
}

// TelemetryConfig controls the OTLP exporter endpoint.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	Insecure     bool   `toml:"Insecure"`
}

// StorageConfig selects the sqlite persistence file.
type StorageConfig struct {
	SQLitePath string `toml:"SQLitePath"`
}
