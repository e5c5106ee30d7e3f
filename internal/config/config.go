package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/fluxtrade/orderflow/internal/orderflow"
)

// ServerConfig configures the HTTP API surface
type ServerConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Port     int    `json:"port" mapstructure:"port"`
	BasePath string `json:"base_path" mapstructure:"base_path"`
}

// Config is the full service configuration
type Config struct {
	LogLevel  string       `json:"log_level" mapstructure:"log_level"`
	LogFormat string       `json:"log_format" mapstructure:"log_format"`
	Server    ServerConfig `json:"server" mapstructure:"server"`

	Scorer     orderflow.ScorerConfig     `json:"scorer" mapstructure:"scorer"`
	FlowScorer orderflow.FlowScorerConfig `json:"flow_scorer" mapstructure:"flow_scorer"`

	Imbalance  orderflow.ImbalanceConfig       `json:"imbalance" mapstructure:"imbalance"`
	Absorption orderflow.AbsorptionConfig      `json:"absorption" mapstructure:"absorption"`
	Voids      orderflow.LiquidityVoidConfig   `json:"voids" mapstructure:"voids"`
	Delta      orderflow.DeltaConfig           `json:"delta" mapstructure:"delta"`
	DarkPool   orderflow.DarkPoolConfig        `json:"darkpool" mapstructure:"darkpool"`
	Iceberg    orderflow.IcebergConfig         `json:"iceberg" mapstructure:"iceberg"`
	Spoofing   orderflow.SpoofingConfig        `json:"spoofing" mapstructure:"spoofing"`
	HFT        orderflow.HFTConfig             `json:"hft" mapstructure:"hft"`
	Stuffing   orderflow.StuffingConfig        `json:"stuffing" mapstructure:"stuffing"`
	Hidden     orderflow.HiddenLiquidityConfig `json:"hidden" mapstructure:"hidden"`
	Makers     orderflow.MarketMakerConfig     `json:"makers" mapstructure:"makers"`
}

// Default returns the configuration with every section at its defaults
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Server: ServerConfig{
			Enabled:  true,
			Port:     8085,
			BasePath: "/api/v1/orderflow",
		},
		Scorer:     orderflow.DefaultScorerConfig(),
		FlowScorer: orderflow.DefaultFlowScorerConfig(),
		Imbalance:  orderflow.DefaultImbalanceConfig(),
		Absorption: orderflow.DefaultAbsorptionConfig(),
		Voids:      orderflow.DefaultLiquidityVoidConfig(),
		Delta:      orderflow.DefaultDeltaConfig(),
		DarkPool:   orderflow.DefaultDarkPoolConfig(),
		Iceberg:    orderflow.DefaultIcebergConfig(),
		Spoofing:   orderflow.DefaultSpoofingConfig(),
		HFT:        orderflow.DefaultHFTConfig(),
		Stuffing:   orderflow.DefaultStuffingConfig(),
		Hidden:     orderflow.DefaultHiddenLiquidityConfig(),
		Makers:     orderflow.DefaultMarketMakerConfig(),
	}
}

// Load reads configuration from the given path (or the default search
// paths when empty), layering file values and ORDERFLOW_* environment
// variables over the defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("orderflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/orderflow")
	}

	v.SetEnvPrefix("ORDERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		// No file found on the search paths; defaults plus env apply
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects weight sets that do not sum to 1.0
func (c *Config) Validate() error {
	const tol = 1e-9

	sum := c.Scorer.LiquidityWeight + c.Scorer.StabilityWeight +
		c.Scorer.FairnessWeight + c.Scorer.EfficiencyWeight
	if sum < 1-tol || sum > 1+tol {
		return fmt.Errorf("scorer component weights must sum to 1.0, got %f", sum)
	}

	sum = c.FlowScorer.ImbalanceWeight + c.FlowScorer.AbsorptionWeight +
		c.FlowScorer.LiquidityWeight + c.FlowScorer.DeltaWeight + c.FlowScorer.DarkPoolWeight
	if sum < 1-tol || sum > 1+tol {
		return fmt.Errorf("flow scorer indicator weights must sum to 1.0, got %f", sum)
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
