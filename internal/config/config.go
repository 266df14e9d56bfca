// Package config is C9: startup defaults for the simulator, loaded
// with github.com/spf13/viper the way the reference market-making bot
// in this pack loads its strategy config (YAML file, BOURSE_*
// environment overrides, mapstructure tags). Unlike that bot's config,
// every field here has a valid built-in default, so the server can run
// with no config file at all (spec §6 "Startup defaults (configurable)").
package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"bourse/internal/trading"
)

// Config is the top-level, file-loadable shape. Decimal fields are
// stored as strings in YAML/env and parsed on Load, since viper has no
// native decimal.Decimal support.
type Config struct {
	Symbol            string        `mapstructure:"symbol"`
	StartingCash      string        `mapstructure:"starting_cash"`
	StartingAsset     string        `mapstructure:"starting_asset"`
	ReferencePrice    string        `mapstructure:"reference_price"`
	Tick              string        `mapstructure:"tick"`
	AllowNegativeCash bool          `mapstructure:"allow_negative_cash"`
	Depth             int           `mapstructure:"depth"`
	MarketInterval    time.Duration `mapstructure:"market_interval"`
	MaxDriftTicks     int64         `mapstructure:"max_drift_ticks"`
	HTTPAddr          string        `mapstructure:"http_addr"`
}

// Default mirrors trading.DefaultConfig's numbers as their string form.
func Default() Config {
	d := trading.DefaultConfig()
	return Config{
		Symbol:            d.Symbol,
		StartingCash:      d.StartingCash.String(),
		StartingAsset:     d.StartingAsset.String(),
		ReferencePrice:    d.ReferencePrice.String(),
		Tick:              d.Tick.String(),
		AllowNegativeCash: d.AllowNegativeCash,
		Depth:             d.Depth,
		MarketInterval:    d.MarketInterval,
		MaxDriftTicks:     d.MaxDriftTicks,
		HTTPAddr:          ":8080",
	}
}

// Load reads configPath (if non-empty and present) over the defaults,
// then applies BOURSE_* environment overrides. A missing configPath is
// not an error — the defaults are a complete, valid configuration.
func Load(configPath string) (Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("bourse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("symbol", def.Symbol)
	v.SetDefault("starting_cash", def.StartingCash)
	v.SetDefault("starting_asset", def.StartingAsset)
	v.SetDefault("reference_price", def.ReferencePrice)
	v.SetDefault("tick", def.Tick)
	v.SetDefault("allow_negative_cash", def.AllowNegativeCash)
	v.SetDefault("depth", def.Depth)
	v.SetDefault("market_interval", def.MarketInterval)
	v.SetDefault("max_drift_ticks", def.MaxDriftTicks)
	v.SetDefault("http_addr", def.HTTPAddr)

	// A missing configPath is not an error: the built-in defaults above
	// are already a complete, valid configuration. An explicit path that
	// exists but fails to parse is.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, err
	}
	return out, nil
}

// ToTrading parses the string-encoded decimals and builds the
// trading.Config the facade actually wants.
func (c Config) ToTrading() (trading.Config, error) {
	cash, err := decimal.NewFromString(c.StartingCash)
	if err != nil {
		return trading.Config{}, err
	}
	asset, err := decimal.NewFromString(c.StartingAsset)
	if err != nil {
		return trading.Config{}, err
	}
	ref, err := decimal.NewFromString(c.ReferencePrice)
	if err != nil {
		return trading.Config{}, err
	}
	tick, err := decimal.NewFromString(c.Tick)
	if err != nil {
		return trading.Config{}, err
	}
	return trading.Config{
		Symbol:            c.Symbol,
		StartingCash:      cash,
		StartingAsset:     asset,
		ReferencePrice:    ref,
		Tick:              tick,
		AllowNegativeCash: c.AllowNegativeCash,
		Depth:             c.Depth,
		MarketInterval:    c.MarketInterval,
		MaxDriftTicks:     c.MaxDriftTicks,
	}, nil
}
