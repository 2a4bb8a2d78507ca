// Package config defines all configuration for the Kinetic Shield
// pipeline. Config is loaded from a YAML file with sensitive fields
// overridable via KSHIELD_* environment variables, following the pack's
// viper-based config-loader idiom.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly onto the YAML
// file structure via mapstructure tags.
type Config struct {
	Ingest    IngestConfig    `mapstructure:"ingest"`
	State     StateConfig     `mapstructure:"state"`
	Scorer    ScorerConfig    `mapstructure:"scorer"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Bundle    BundleConfig    `mapstructure:"bundle"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// IngestConfig tunes C1's stream adapters.
type IngestConfig struct {
	MempoolWSURL       string        `mapstructure:"mempool_ws_url"`
	ConfirmedWSURL     string        `mapstructure:"confirmed_ws_url"`
	WhaleDeltaLamports uint64        `mapstructure:"whale_delta_lamports"`
	ReconnectBase      time.Duration `mapstructure:"reconnect_base"`
	ReconnectCap       time.Duration `mapstructure:"reconnect_cap"`
	MaxLatencyMs       int           `mapstructure:"max_latency_ms"`
}

// StateConfig tunes C2's ring capacities and thresholds.
type StateConfig struct {
	WhaleRingCapacity     int           `mapstructure:"whale_ring_capacity"`
	TokenRingCapacity     int           `mapstructure:"token_ring_capacity"`
	WhaleIdleTTL          time.Duration `mapstructure:"whale_idle_ttl"`
	PoolIdleTTL           time.Duration `mapstructure:"pool_idle_ttl"`
	WhaleShareThreshold   float64       `mapstructure:"whale_share_threshold"`
	PreDumpMinTxs         int           `mapstructure:"pre_dump_min_txs"`
	PreDumpWindow         time.Duration `mapstructure:"pre_dump_window"`
	PreDumpStdDevMax      float64       `mapstructure:"pre_dump_stddev_max"`
	PanicSellSupplyPct    float64       `mapstructure:"panic_sell_supply_pct"`
	PanicSellWindow       time.Duration `mapstructure:"panic_sell_window"`
	PanicSellPriceDropPct float64       `mapstructure:"panic_sell_price_drop_pct"`
	LiquidityDeltaThresh  float64       `mapstructure:"liquidity_delta_threshold"`
	LiquidityVelocityThresh float64     `mapstructure:"liquidity_velocity_threshold"`
	JanitorInterval       time.Duration `mapstructure:"janitor_interval"`
	MemoryBudgetEntries   int           `mapstructure:"memory_budget_entries"`
}

// ScorerConfig tunes C3's scorer ports.
type ScorerConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// StrategyConfig tunes C4's orchestrator and per-strategy parameters.
type StrategyConfig struct {
	OpportunityTimeoutMs int               `mapstructure:"opportunity_timeout_ms"`
	MinMEVValueLamports  uint64            `mapstructure:"min_mev_value_lamports"`
	MicroLightning       MicroLightningConfig `mapstructure:"micro_lightning"`
}

// MicroLightningConfig tunes the per-commandment thresholds.
type MicroLightningConfig struct {
	CapitalAllocationLamports uint64        `mapstructure:"capital_allocation_lamports"`
	CooldownBetweenOps        time.Duration `mapstructure:"cooldown_between_ops"`
	MaxOpsPerDay              int           `mapstructure:"max_ops_per_day"`
	MinLiquidityLamports      uint64        `mapstructure:"min_liquidity_lamports"`
	MinHolders                int           `mapstructure:"min_holders"`
	MaxPoolAgeForEntry        time.Duration `mapstructure:"max_pool_age_for_entry"`
	HardCapHoldTime           time.Duration `mapstructure:"hard_cap_hold_time"`
	PsychologyTaxPct          float64       `mapstructure:"psychology_tax_pct"`
}

// RiskConfig tunes the Kinetic Shield (C5).
type RiskConfig struct {
	DailyDrawdownLimitPct  float64       `mapstructure:"daily_drawdown_limit_pct"`
	HourlyLossStreakLimit  int           `mapstructure:"hourly_loss_streak_limit"`
	ExposureCapPerTokenPct float64       `mapstructure:"exposure_cap_per_token_pct"`
	MaxVolatility          float64       `mapstructure:"max_volatility"`
	ConfidenceFloor        float64       `mapstructure:"confidence_floor"`
	HoneypotCooldown       time.Duration `mapstructure:"honeypot_cooldown"`
	MassiveDumpCooldown    time.Duration `mapstructure:"massive_dump_cooldown"`
	DefaultCooldown        time.Duration `mapstructure:"default_cooldown"`
}

// WalletConfig tunes the wallet router (C6).
type WalletConfig struct {
	RotationInterval time.Duration `mapstructure:"wallet_rotation_hours"`
	SnapshotPath     string        `mapstructure:"snapshot_path"`
}

// BundleConfig tunes the bundle builder (C7).
type BundleConfig struct {
	DecoyCount         int           `mapstructure:"decoy_count"`
	ExpirySlots        uint64        `mapstructure:"bundle_expiry_slots"`
	ProtectionLevel    int           `mapstructure:"protection_level"`
	MaxTipLamports     uint64        `mapstructure:"max_tip_lamports"`
	SubmitRetryBase    time.Duration `mapstructure:"submit_retry_base"`
	SubmitRetryCap     time.Duration `mapstructure:"submit_retry_cap"`
	SubmitMaxAttempts  int           `mapstructure:"submit_max_attempts"`
	BlockEngineURL     string        `mapstructure:"block_engine_url"`
}

// MetricsConfig tunes C8's exporter.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig tunes the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AdminConfig tunes the thin admin HTTP surface (health/metrics/debug).
type AdminConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Default returns a config with the spec's documented default values.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			WhaleDeltaLamports: 10_000_000_000, // 10 SOL
			ReconnectBase:      250 * time.Millisecond,
			ReconnectCap:       10 * time.Second,
			MaxLatencyMs:       31,
		},
		State: StateConfig{
			WhaleRingCapacity:       100,
			TokenRingCapacity:       100,
			WhaleIdleTTL:            30 * time.Minute,
			PoolIdleTTL:             2 * time.Hour,
			WhaleShareThreshold:     0.10,
			PreDumpMinTxs:           20,
			PreDumpWindow:           15 * time.Minute,
			PreDumpStdDevMax:        0.1,
			PanicSellSupplyPct:      0.05,
			PanicSellWindow:         2 * time.Minute,
			PanicSellPriceDropPct:   0.15,
			LiquidityDeltaThresh:    50,
			LiquidityVelocityThresh: 0.7,
			JanitorInterval:         30 * time.Second,
			MemoryBudgetEntries:     200_000,
		},
		Scorer: ScorerConfig{Timeout: 50 * time.Millisecond},
		Strategy: StrategyConfig{
			OpportunityTimeoutMs: 5000,
			MinMEVValueLamports:  1_000_000,
			MicroLightning: MicroLightningConfig{
				CapitalAllocationLamports: 20_000_000_000, // $20 equivalent, operator-calibrated
				CooldownBetweenOps:        5 * time.Minute,
				MaxOpsPerDay:              20,
				MinLiquidityLamports:      5_000_000_000,
				MinHolders:                10,
				MaxPoolAgeForEntry:        15 * time.Minute,
				HardCapHoldTime:           55 * time.Minute,
				PsychologyTaxPct:          0.10,
			},
		},
		Risk: RiskConfig{
			DailyDrawdownLimitPct:  7.5,
			HourlyLossStreakLimit:  5,
			ExposureCapPerTokenPct: 12,
			MaxVolatility:          0.5,
			ConfidenceFloor:        0.7,
			HoneypotCooldown:       30 * time.Minute,
			MassiveDumpCooldown:    15 * time.Minute,
			DefaultCooldown:        5 * time.Minute,
		},
		Wallet: WalletConfig{RotationInterval: 24 * time.Hour},
		Bundle: BundleConfig{
			DecoyCount:        4,
			ExpirySlots:       2,
			ProtectionLevel:   5,
			MaxTipLamports:    1_000_000,
			SubmitRetryBase:   100 * time.Millisecond,
			SubmitRetryCap:    2 * time.Second,
			SubmitMaxAttempts: 3,
		},
		Metrics: MetricsConfig{Namespace: "kineticshield"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Admin:   AdminConfig{ListenAddr: ":9090"},
	}
}

// Load reads a YAML config file over the defaults, with KSHIELD_* env var
// overrides, following the polymarket-mm Load/Validate pattern.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("KSHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := ValidatePrivateKeyLiteral(raw); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if v := os.Getenv("KSHIELD_BLOCK_ENGINE_URL"); v != "" {
		cfg.Bundle.BlockEngineURL = v
	}
	if v := os.Getenv("KSHIELD_MEMPOOL_WS_URL"); v != "" {
		cfg.Ingest.MempoolWSURL = v
	}
	if v := os.Getenv("KSHIELD_CONFIRMED_WS_URL"); v != "" {
		cfg.Ingest.ConfirmedWSURL = v
	}

	return cfg, nil
}

// Validate checks required fields and value ranges. A config carrying a
// literal private key is rejected at load time — wallet keys live in
// operator-provided environment variables, referenced by symbolic name,
// never embedded in a config file.
func (c *Config) Validate() error {
	if strings.Contains(strings.ToLower(c.Wallet.SnapshotPath), "private_key") {
		return fmt.Errorf("wallet.snapshot_path must not reference a private key file")
	}
	if c.Risk.DailyDrawdownLimitPct <= 0 || c.Risk.DailyDrawdownLimitPct > 100 {
		return fmt.Errorf("risk.daily_drawdown_limit_pct must be in (0,100]")
	}
	if c.Risk.HourlyLossStreakLimit <= 0 {
		return fmt.Errorf("risk.hourly_loss_streak_limit must be > 0")
	}
	if c.Risk.ExposureCapPerTokenPct <= 0 || c.Risk.ExposureCapPerTokenPct > 100 {
		return fmt.Errorf("risk.exposure_cap_per_token_pct must be in (0,100]")
	}
	if c.Risk.ConfidenceFloor < 0 || c.Risk.ConfidenceFloor > 1 {
		return fmt.Errorf("risk.confidence_floor must be in [0,1]")
	}
	if c.Bundle.DecoyCount < 0 {
		return fmt.Errorf("bundle.decoy_count must be >= 0")
	}
	if c.Bundle.ProtectionLevel < 1 || c.Bundle.ProtectionLevel > 10 {
		return fmt.Errorf("bundle.protection_level must be in [1,10]")
	}
	if c.Bundle.SubmitMaxAttempts <= 0 {
		return fmt.Errorf("bundle.submit_max_attempts must be > 0")
	}
	if c.Scorer.Timeout <= 0 {
		return fmt.Errorf("scorer.timeout must be > 0")
	}
	return nil
}

// ValidatePrivateKeyLiteral rejects raw config bytes containing an obvious
// embedded private-key literal, applied before mapstructure decoding so a
// malformed file is rejected even if it fails to parse into Config.
func ValidatePrivateKeyLiteral(raw []byte) error {
	s := strings.ToLower(string(raw))
	for _, marker := range []string{"private_key:", "privatekey:", "secret_key:"} {
		if idx := strings.Index(s, marker); idx != -1 {
			rest := strings.TrimSpace(s[idx+len(marker):])
			if rest != "" && !strings.HasPrefix(rest, "\"\"") && !strings.HasPrefix(rest, "$") && !strings.HasPrefix(rest, "env:") {
				return fmt.Errorf("config must not embed a literal private key; reference an environment variable instead")
			}
		}
	}
	return nil
}
