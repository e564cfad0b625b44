// Package config loads application configuration from config.yaml and
// ESG_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/esg-scorer/internal/cache"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
	Batch    BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Bands    BandsConfig     `yaml:"bands" mapstructure:"bands"`
	Cache    CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Scenario ScenarioConfig  `yaml:"scenario" mapstructure:"scenario"`
	Scoring  scorer.Settings `yaml:"scoring" mapstructure:"scoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ScenarioRatePerSec  float64  `yaml:"scenario_rate_per_sec" mapstructure:"scenario_rate_per_sec"`
	ScenarioBurst       int      `yaml:"scenario_burst" mapstructure:"scenario_burst"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig bounds scoring fan-out.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// BandsConfig points at the data used to build normalization bands. A
// document takes precedence over a reference dataset.
type BandsConfig struct {
	ReferencePath string `yaml:"reference_path" mapstructure:"reference_path"`
	DocumentPath  string `yaml:"document_path" mapstructure:"document_path"`
}

// CacheConfig configures the scenario result cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// Options converts the section into cache.New input.
func (c CacheConfig) Options() cache.Config {
	return cache.Config{
		Driver:        c.Driver,
		MaxEntries:    c.MaxEntries,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// TTL is the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ScenarioConfig holds scenario defaults that flags and request bodies
// may override.
type ScenarioConfig struct {
	Seed        uint64  `yaml:"seed" mapstructure:"seed"`
	MissingRate float64 `yaml:"missing_rate" mapstructure:"missing_rate"`
	Imputation  string  `yaml:"imputation" mapstructure:"imputation"`
	K           int     `yaml:"k" mapstructure:"k"`
	TopK        int     `yaml:"top_k" mapstructure:"top_k"`
	MinScore    float64 `yaml:"min_score" mapstructure:"min_score"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "esg.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.scenario_rate_per_sec", 2.0)
	v.SetDefault("server.scenario_burst", 4)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("cache.driver", cache.DriverMemory)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("scenario.seed", 42)
	v.SetDefault("scenario.missing_rate", 0.2)
	v.SetDefault("scenario.imputation", "industry_mean")
	v.SetDefault("scenario.k", 5)
	v.SetDefault("scenario.top_k", 3)
	v.SetDefault("scenario.min_score", 50.0)
	setScoringDefaults(v, scorer.DefaultSettings())

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

// setScoringDefaults registers every scoring key so env overrides such as
// ESG_SCORING_RISK_LAMBDA resolve.
func setScoringDefaults(v *viper.Viper, s scorer.Settings) {
	v.SetDefault("scoring.environmental.emission_intensity", s.Environmental.EmissionIntensity)
	v.SetDefault("scoring.environmental.renewable_pct", s.Environmental.RenewablePct)
	v.SetDefault("scoring.environmental.water_intensity", s.Environmental.WaterIntensity)
	v.SetDefault("scoring.environmental.waste_intensity", s.Environmental.WasteIntensity)
	v.SetDefault("scoring.social.injury_rate", s.Social.InjuryRate)
	v.SetDefault("scoring.social.training_hours", s.Social.TrainingHours)
	v.SetDefault("scoring.social.wage_ratio", s.Social.WageRatio)
	v.SetDefault("scoring.social.diversity_pct", s.Social.DiversityPct)
	v.SetDefault("scoring.governance.board_diversity", s.Governance.BoardDiversity)
	v.SetDefault("scoring.governance.board_independence", s.Governance.BoardIndependence)
	v.SetDefault("scoring.governance.anti_corruption", s.Governance.AntiCorruption)
	v.SetDefault("scoring.governance.transparency_score", s.Governance.TransparencyScore)
	v.SetDefault("scoring.pillars.environmental", s.Pillars.Environmental)
	v.SetDefault("scoring.pillars.social", s.Pillars.Social)
	v.SetDefault("scoring.pillars.governance", s.Pillars.Governance)
	v.SetDefault("scoring.use_industry_bands", s.UseIndustryBands)
	v.SetDefault("scoring.risk_weights.geopolitical", s.RiskWeights.Geopolitical)
	v.SetDefault("scoring.risk_weights.climate", s.RiskWeights.Climate)
	v.SetDefault("scoring.risk_weights.labor", s.RiskWeights.Labor)
	v.SetDefault("scoring.risk_threshold", s.RiskThreshold)
	v.SetDefault("scoring.risk_lambda", s.RiskLambda)
	v.SetDefault("scoring.risk_penalty_enabled", s.RiskPenaltyEnabled)
	v.SetDefault("scoring.default_risk_factor", s.DefaultRiskFactor)
	v.SetDefault("scoring.final_score_mode", string(s.FinalScoreMode))
	v.SetDefault("scoring.disclosure_cap_enabled", s.DisclosureCapEnabled)
	v.SetDefault("scoring.disclosure_cap_threshold", s.DisclosureCapThreshold)
	v.SetDefault("scoring.disclosure_cap_score", s.DisclosureCapScore)
}

// Validate checks the sections a command needs. mode is one of score,
// scenario, import, serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score", "scenario":
	case "import":
		errs = append(errs, c.storeProblems()...)
	case "serve":
		errs = append(errs, c.storeProblems()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.ScenarioRatePerSec < 0 {
			errs = append(errs, "server.scenario_rate_per_sec must be >= 0")
		}
		switch c.Cache.Driver {
		case cache.DriverMemory, cache.DriverRedis, cache.DriverNone, "":
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
		errs = append(errs, "batch.concurrency must be between 1 and 64")
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for sqlite"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for postgres"}
		}
	default:
		return []string{fmt.Sprintf("store.driver %q is not supported", c.Store.Driver)}
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
