package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// Config represents the application configuration.
type Config struct {
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Cadence    CadenceConfig    `yaml:"cadence"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	StopPolicy StopPolicyConfig `yaml:"stopPolicy"`
	Safety     SafetyConfig     `yaml:"safety"`
	Store      StoreConfig      `yaml:"store"`
	Indicators IndicatorConfig  `yaml:"indicators"`
	API        APIConfig        `yaml:"api"`
}

// ExchangeConfig carries OKX-style credentials: api_key/secret/password
// (passphrase), the traded symbol, and the leverage to set on startup.
type ExchangeConfig struct {
	APIKey   string `yaml:"apiKey"`
	Secret   string `yaml:"secret"`
	Password string `yaml:"password"`
	Symbol   string `yaml:"symbol"`
	Leverage int    `yaml:"leverage"`
	Testnet  bool   `yaml:"testnet"`
}

// CadenceConfig controls the trade scheduler (C6).
type CadenceConfig struct {
	CycleIntervalMinutes int  `yaml:"cycleIntervalMinutes"`
	JitterSeconds        int  `yaml:"jitterSeconds"`
	FirstRunImmediate    bool `yaml:"firstRunImmediate"`
	MonitorTickSeconds   int  `yaml:"monitorTickSeconds"`
}

// ScoringConfig controls the fusion table thresholds (C3) and the
// validator's acceptance floor (C5).
type ScoringConfig struct {
	BuyThreshold    float64 `yaml:"buyThreshold"`
	SellThreshold   float64 `yaml:"sellThreshold"`
	StrongSignal    float64 `yaml:"strongSignal"`
	CooldownMinutes int     `yaml:"cooldownMinutes"`
	MinConfidence   float64 `yaml:"minConfidence"`

	// AdvisorEndpoint, when set, switches C5's second-stage advisor from the
	// rule-based default to an HTTP-backed provider. Empty means rule-based.
	AdvisorEndpoint string `yaml:"advisorEndpoint"`
}

// StopPolicyConfig controls the ratcheting stop-loss policy (C7).
type StopPolicyConfig struct {
	LossPct      float64 `yaml:"lossPct"`
	ProfitPct    float64 `yaml:"profitPct"`
	TolerancePct float64 `yaml:"tolerancePct"`
}

// SafetyConfig bounds position sizing (C9 open_position).
type SafetyConfig struct {
	SafeBalanceFraction float64 `yaml:"safeBalanceFraction"`
	MinContract         float64 `yaml:"minContract"`
}

// StoreConfig controls the tiered store (C2).
type StoreConfig struct {
	MaxHotBarsPerTF  int    `yaml:"maxHotBarsPerTF"`
	WarmPath         string `yaml:"warmPath"`
	ColdPath         string `yaml:"coldPath"`
	WorkingTimeframe string `yaml:"workingTimeframe"`
}

// IndicatorConfig mirrors internal/indicators.IndicatorConfig's tunables
// that the spec exposes as configuration (the rest keep library defaults).
type IndicatorConfig struct {
	RSIPeriod  int     `yaml:"rsiPeriod"`
	MACDFast   int     `yaml:"macdFast"`
	MACDSlow   int     `yaml:"macdSlow"`
	MACDSignal int     `yaml:"macdSignal"`
	BBPeriod   int     `yaml:"bbPeriod"`
	BBStdDev   float64 `yaml:"bbStdDev"`
	ADXPeriod  int     `yaml:"adxPeriod"`
	ATRPeriod  int     `yaml:"atrPeriod"`
}

// APIConfig configures the local read-only/manual-override status API.
// Not part of spec §6's recognized options (the API is an ambient
// observability surface, not a core concern) but carried per SPEC_FULL.md's
// ambient-stack section.
type APIConfig struct {
	Port        string        `yaml:"port"`
	CORSOrigins []string      `yaml:"corsOrigins"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// Load loads configuration from a YAML file and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrConfigError, path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate enforces the configuration invariants that must be fatal at
// startup (spec §7 ConfigError). Unlike the teacher's benign fallback to
// DefaultConfig on a load error, a credential-less exchange config cannot
// trade at all, so the caller must not silently substitute defaults here.
func validate(cfg *Config) error {
	if cfg.Exchange.APIKey == "" || cfg.Exchange.Secret == "" || cfg.Exchange.Password == "" {
		return fmt.Errorf("%w: exchange api_key/secret/password are required", models.ErrConfigError)
	}
	if cfg.Exchange.Symbol == "" {
		return fmt.Errorf("%w: exchange symbol is required", models.ErrConfigError)
	}
	if cfg.Exchange.Leverage <= 0 {
		return fmt.Errorf("%w: exchange leverage must be positive", models.ErrConfigError)
	}
	return nil
}

// DefaultConfig returns the default configuration with non-credential
// fields populated. Credentials are intentionally left blank: a caller
// that needs a runnable config (tests, paper-mode demos) must fill them in
// and call validate, or use DefaultConfig purely for the numeric tunables.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Exchange.Symbol == "" {
		cfg.Exchange.Symbol = "ETH-USDT-SWAP"
	}
	if cfg.Exchange.Leverage == 0 {
		cfg.Exchange.Leverage = 3
	}

	if cfg.Cadence.CycleIntervalMinutes == 0 {
		cfg.Cadence.CycleIntervalMinutes = 15
	}
	if cfg.Cadence.JitterSeconds == 0 {
		cfg.Cadence.JitterSeconds = 180
	}
	if cfg.Cadence.MonitorTickSeconds == 0 {
		cfg.Cadence.MonitorTickSeconds = 60
	}

	if cfg.Scoring.BuyThreshold == 0 {
		cfg.Scoring.BuyThreshold = 0.20
	}
	if cfg.Scoring.SellThreshold == 0 {
		cfg.Scoring.SellThreshold = -0.20
	}
	if cfg.Scoring.StrongSignal == 0 {
		cfg.Scoring.StrongSignal = 0.80
	}
	if cfg.Scoring.CooldownMinutes == 0 {
		cfg.Scoring.CooldownMinutes = 15
	}
	if cfg.Scoring.MinConfidence == 0 {
		cfg.Scoring.MinConfidence = 0.5
	}

	if cfg.StopPolicy.LossPct == 0 {
		cfg.StopPolicy.LossPct = 0.005
	}
	if cfg.StopPolicy.ProfitPct == 0 {
		cfg.StopPolicy.ProfitPct = 0.01
	}
	if cfg.StopPolicy.TolerancePct == 0 {
		cfg.StopPolicy.TolerancePct = 0.001
	}

	if cfg.Safety.SafeBalanceFraction == 0 {
		cfg.Safety.SafeBalanceFraction = 0.95
	}
	if cfg.Safety.MinContract == 0 {
		cfg.Safety.MinContract = 0.001
	}

	if cfg.Store.MaxHotBarsPerTF == 0 {
		cfg.Store.MaxHotBarsPerTF = 2016 // 1 week at 5m
	}
	if cfg.Store.WarmPath == "" {
		cfg.Store.WarmPath = "data/trading.db"
	}
	if cfg.Store.ColdPath == "" {
		cfg.Store.ColdPath = cfg.Store.WarmPath
	}
	if cfg.Store.WorkingTimeframe == "" {
		cfg.Store.WorkingTimeframe = "5m"
	}

	if cfg.Indicators.RSIPeriod == 0 {
		cfg.Indicators.RSIPeriod = 14
	}
	if cfg.Indicators.MACDFast == 0 {
		cfg.Indicators.MACDFast = 12
	}
	if cfg.Indicators.MACDSlow == 0 {
		cfg.Indicators.MACDSlow = 26
	}
	if cfg.Indicators.MACDSignal == 0 {
		cfg.Indicators.MACDSignal = 9
	}
	if cfg.Indicators.BBPeriod == 0 {
		cfg.Indicators.BBPeriod = 20
	}
	if cfg.Indicators.BBStdDev == 0 {
		cfg.Indicators.BBStdDev = 2.0
	}
	if cfg.Indicators.ADXPeriod == 0 {
		cfg.Indicators.ADXPeriod = 14
	}
	if cfg.Indicators.ATRPeriod == 0 {
		cfg.Indicators.ATRPeriod = 14
	}

	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if len(cfg.API.CORSOrigins) == 0 {
		cfg.API.CORSOrigins = []string{"*"}
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = 30 * time.Second
	}
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
