package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string

	// Trading parameters. Decimals so fills are exact and reproducible.
	FeeRate         decimal.Decimal
	MinFee          decimal.Decimal
	SlippageRate    decimal.Decimal
	StartingBalance decimal.Decimal

	// Monitor cadence.
	MonitorScanInterval   time.Duration
	MonitorExpiryInterval time.Duration

	// Market data.
	QuoteTimeout  time.Duration
	LastPriceTTL  time.Duration
	StaticSymbols map[string]string // symbol → price, dev provider seed
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("TRADING_FEE_RATE", "0.0005")
	viper.SetDefault("TRADING_MIN_FEE", "0.50")
	viper.SetDefault("TRADING_SLIPPAGE_RATE", "0.001")
	viper.SetDefault("TRADING_STARTING_BALANCE", "10000")
	viper.SetDefault("MONITOR_SCAN_INTERVAL", "1s")
	viper.SetDefault("MONITOR_EXPIRY_INTERVAL", "5m")
	viper.SetDefault("QUOTE_TIMEOUT", "3s")
	viper.SetDefault("LAST_PRICE_TTL", "15m")

	feeRate, err := decimal.NewFromString(viper.GetString("TRADING_FEE_RATE"))
	if err != nil {
		return nil, err
	}
	minFee, err := decimal.NewFromString(viper.GetString("TRADING_MIN_FEE"))
	if err != nil {
		return nil, err
	}
	slippage, err := decimal.NewFromString(viper.GetString("TRADING_SLIPPAGE_RATE"))
	if err != nil {
		return nil, err
	}
	starting, err := decimal.NewFromString(viper.GetString("TRADING_STARTING_BALANCE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:                   viper.GetString("APP_ENV"),
		Port:                  viper.GetString("PORT"),
		DatabaseURL:           viper.GetString("DATABASE_URL"),
		RedisURL:              viper.GetString("REDIS_URL"),
		FeeRate:               feeRate,
		MinFee:                minFee,
		SlippageRate:          slippage,
		StartingBalance:       starting,
		MonitorScanInterval:   viper.GetDuration("MONITOR_SCAN_INTERVAL"),
		MonitorExpiryInterval: viper.GetDuration("MONITOR_EXPIRY_INTERVAL"),
		QuoteTimeout:          viper.GetDuration("QUOTE_TIMEOUT"),
		LastPriceTTL:          viper.GetDuration("LAST_PRICE_TTL"),
		StaticSymbols:         viper.GetStringMapString("STATIC_SYMBOLS"),
	}, nil
}
