package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Estimate  EstimateConfig  `yaml:"estimate" mapstructure:"estimate"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	DocGen    DocGenConfig    `yaml:"docgen" mapstructure:"docgen"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the scorecard HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScorerConfig points at an optional calibration overlay. Weights and
// thresholds not present in the file keep their built-in values.
type ScorerConfig struct {
	CalibrationFile string `yaml:"calibration_file" mapstructure:"calibration_file"`
}

// EstimateConfig holds the financial estimator constants.
type EstimateConfig struct {
	// LossPerFill is the industry survey average loss on a GLP-1 fill.
	LossPerFill float64 `yaml:"loss_per_fill" mapstructure:"loss_per_fill"`
	// PricePerFill converts payer spend into fill counts.
	PricePerFill float64 `yaml:"price_per_fill" mapstructure:"price_per_fill"`
	// SubscriptionPrice is the monthly price used for breakeven.
	SubscriptionPrice     float64 `yaml:"subscription_price" mapstructure:"subscription_price"`
	MaterialityThreshold  float64 `yaml:"materiality_threshold" mapstructure:"materiality_threshold"`
	GenericErosionPerFill float64 `yaml:"generic_erosion_per_fill" mapstructure:"generic_erosion_per_fill"`
	MFPDaysOutstanding    int     `yaml:"mfp_days_outstanding" mapstructure:"mfp_days_outstanding"`
	NationalDiabetesPct   float64 `yaml:"national_diabetes_pct" mapstructure:"national_diabetes_pct"`
	MinMarketShare        float64 `yaml:"min_market_share" mapstructure:"min_market_share"`
	MaxMarketShare        float64 `yaml:"max_market_share" mapstructure:"max_market_share"`
	// FallbackAnnualSpend stands in when the state spend lookup is empty.
	FallbackAnnualSpend float64 `yaml:"fallback_annual_spend" mapstructure:"fallback_annual_spend"`
}

// RegistryConfig configures the NPI registry client.
type RegistryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// DocGenConfig configures the document compilation service.
type DocGenConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Enabled reports whether a document service is configured.
func (c DocGenConfig) Enabled() bool { return c.BaseURL != "" }

// BatchConfig configures the re-verification run.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	ShardSize   int `yaml:"shard_size" mapstructure:"shard_size"`
}

// ReferenceConfig locates the indicator tables used for enrichment.
type ReferenceConfig struct {
	ZIPFile   string `yaml:"zip_file" mapstructure:"zip_file"`
	StateFile string `yaml:"state_file" mapstructure:"state_file"`
}

// Estimator defaults.
const (
	DefaultLossPerFill           = 37.0
	DefaultPricePerFill          = 950.0
	DefaultSubscriptionPrice     = 275.0
	DefaultMaterialityThreshold  = 5.0
	DefaultGenericErosionPerFill = 2.0
	DefaultMFPDaysOutstanding    = 60
	DefaultNationalDiabetesPct   = 11.6
	DefaultMinMarketShare        = 0.5
	DefaultMaxMarketShare        = 2.0
	DefaultFallbackAnnualSpend   = 750_000.0
)

// DefaultEstimate returns the estimator constants with no overrides applied.
func DefaultEstimate() EstimateConfig {
	return EstimateConfig{
		LossPerFill:           DefaultLossPerFill,
		PricePerFill:          DefaultPricePerFill,
		SubscriptionPrice:     DefaultSubscriptionPrice,
		MaterialityThreshold:  DefaultMaterialityThreshold,
		GenericErosionPerFill: DefaultGenericErosionPerFill,
		MFPDaysOutstanding:    DefaultMFPDaysOutstanding,
		NationalDiabetesPct:   DefaultNationalDiabetesPct,
		MinMarketShare:        DefaultMinMarketShare,
		MaxMarketShare:        DefaultMaxMarketShare,
		FallbackAnnualSpend:   DefaultFallbackAnnualSpend,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RXINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rx-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scorer.calibration_file", "")
	v.SetDefault("registry.base_url", "https://npiregistry.cms.hhs.gov/api/")
	v.SetDefault("registry.timeout_secs", 10)
	v.SetDefault("registry.rate_limit", 5.0)
	v.SetDefault("registry.max_retries", 3)
	v.SetDefault("docgen.base_url", "")
	v.SetDefault("docgen.timeout_secs", 15)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.shard_size", 500)
	v.SetDefault("reference.zip_file", "")
	v.SetDefault("reference.state_file", "")

	est := DefaultEstimate()
	v.SetDefault("estimate.loss_per_fill", est.LossPerFill)
	v.SetDefault("estimate.price_per_fill", est.PricePerFill)
	v.SetDefault("estimate.subscription_price", est.SubscriptionPrice)
	v.SetDefault("estimate.materiality_threshold", est.MaterialityThreshold)
	v.SetDefault("estimate.generic_erosion_per_fill", est.GenericErosionPerFill)
	v.SetDefault("estimate.mfp_days_outstanding", est.MFPDaysOutstanding)
	v.SetDefault("estimate.national_diabetes_pct", est.NationalDiabetesPct)
	v.SetDefault("estimate.min_market_share", est.MinMarketShare)
	v.SetDefault("estimate.max_market_share", est.MaxMarketShare)
	v.SetDefault("estimate.fallback_annual_spend", est.FallbackAnnualSpend)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the sections a command depends on. mode is one of
// "serve", "import", "reverify", "export" or "cli".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	e := c.Estimate
	if e.LossPerFill <= 0 {
		errs = append(errs, "estimate.loss_per_fill must be > 0")
	}
	if e.PricePerFill <= 0 {
		errs = append(errs, "estimate.price_per_fill must be > 0")
	}
	if e.SubscriptionPrice <= 0 {
		errs = append(errs, "estimate.subscription_price must be > 0")
	}
	if e.MaterialityThreshold < 0 {
		errs = append(errs, "estimate.materiality_threshold must be >= 0")
	}
	if e.MinMarketShare <= 0 || e.MaxMarketShare < e.MinMarketShare {
		errs = append(errs, "estimate market share clamp must satisfy 0 < min <= max")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
		}
	case "reverify":
		if c.Registry.BaseURL == "" {
			errs = append(errs, "registry.base_url is required")
		}
		if c.Batch.Concurrency <= 0 {
			errs = append(errs, "batch.concurrency must be > 0")
		}
		if c.Batch.ShardSize <= 0 {
			errs = append(errs, "batch.shard_size must be > 0")
		}
	case "import", "export", "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
