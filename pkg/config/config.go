package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/mselser95/basis-arb/internal/gateway"
)

// PairConfig names one monitored spot/futures pair. The venue-specific
// symbols default to Symbol when omitted.
type PairConfig struct {
	Symbol          string `json:"symbol"`
	SpotExchange    string `json:"spot_exchange"`
	FuturesExchange string `json:"futures_exchange"`
	SpotSymbol      string `json:"spot_symbol"`
	FuturesSymbol   string `json:"futures_symbol"`
}

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Trading thresholds
	SpreadIn  float64 // entry threshold, percent
	SpreadOut float64 // exit threshold, percent
	LotMin    float64 // per-entry notional, USDT
	LotMax    float64 // max position notional, USDT

	// Monitoring loop
	CheckInterval      time.Duration
	ErrorBackoff       time.Duration
	GatewayCallTimeout time.Duration
	StopTimeout        time.Duration
	BookDepthLimit     int
	AutoTrade          bool

	// Pair and venue definitions
	PairsFile     string
	ExchangesFile string
	Pairs         []PairConfig
	Exchanges     []gateway.ExchangeConfig

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
}

// LoadFromEnv loads configuration from environment variables with
// defaults, then reads the pair and exchange definition files.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Trading defaults
		SpreadIn:  getFloat64OrDefault("SPREAD_IN", 0.5),
		SpreadOut: getFloat64OrDefault("SPREAD_OUT", -0.3),
		LotMin:    getFloat64OrDefault("LOT_MIN", 100.0),
		LotMax:    getFloat64OrDefault("LOT_MAX", 1000.0),

		// Monitoring defaults
		CheckInterval:      getDurationOrDefault("CHECK_INTERVAL", 30*time.Second),
		ErrorBackoff:       getDurationOrDefault("ERROR_BACKOFF", 60*time.Second),
		GatewayCallTimeout: getDurationOrDefault("GATEWAY_CALL_TIMEOUT", 10*time.Second),
		StopTimeout:        getDurationOrDefault("STOP_TIMEOUT", 30*time.Second),
		BookDepthLimit:     getIntOrDefault("BOOK_DEPTH_LIMIT", 20),
		AutoTrade:          getBoolOrDefault("AUTO_TRADE", false),

		// Pair and venue files
		PairsFile:     getEnvOrDefault("PAIRS_FILE", "pairs.json"),
		ExchangesFile: getEnvOrDefault("EXCHANGES_FILE", "exchanges.json"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "basis"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "basis_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Notifications
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	err := cfg.loadPairs()
	if err != nil {
		return nil, err
	}
	err = cfg.loadExchanges()
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadPairs() error {
	data, err := os.ReadFile(c.PairsFile)
	if err != nil {
		return fmt.Errorf("read pairs file %s: %w", c.PairsFile, err)
	}

	err = json.Unmarshal(data, &c.Pairs)
	if err != nil {
		return fmt.Errorf("parse pairs file %s: %w", c.PairsFile, err)
	}

	for i := range c.Pairs {
		if c.Pairs[i].SpotSymbol == "" {
			c.Pairs[i].SpotSymbol = c.Pairs[i].Symbol
		}
		if c.Pairs[i].FuturesSymbol == "" {
			c.Pairs[i].FuturesSymbol = c.Pairs[i].Symbol
		}
	}
	return nil
}

func (c *Config) loadExchanges() error {
	data, err := os.ReadFile(c.ExchangesFile)
	if err != nil {
		return fmt.Errorf("read exchanges file %s: %w", c.ExchangesFile, err)
	}

	err = json.Unmarshal(data, &c.Exchanges)
	if err != nil {
		return fmt.Errorf("parse exchanges file %s: %w", c.ExchangesFile, err)
	}
	return nil
}

// Validate checks that configuration values are consistent.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.LotMin <= 0 {
		return fmt.Errorf("LOT_MIN must be positive, got %f", c.LotMin)
	}

	if c.LotMax < c.LotMin {
		return fmt.Errorf("LOT_MAX (%f) must be at least LOT_MIN (%f)", c.LotMax, c.LotMin)
	}

	if c.SpreadIn <= c.SpreadOut {
		return fmt.Errorf("SPREAD_IN (%f) must exceed SPREAD_OUT (%f)", c.SpreadIn, c.SpreadOut)
	}

	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive, got %s", c.CheckInterval)
	}

	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("ERROR_BACKOFF must be positive, got %s", c.ErrorBackoff)
	}

	if c.GatewayCallTimeout <= 0 {
		return fmt.Errorf("GATEWAY_CALL_TIMEOUT must be positive, got %s", c.GatewayCallTimeout)
	}

	if c.StopTimeout <= 0 {
		return fmt.Errorf("STOP_TIMEOUT must be positive, got %s", c.StopTimeout)
	}

	if c.BookDepthLimit <= 0 {
		return fmt.Errorf("BOOK_DEPTH_LIMIT must be positive, got %d", c.BookDepthLimit)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if len(c.Pairs) == 0 {
		return fmt.Errorf("no pairs configured in %s", c.PairsFile)
	}

	venues := make(map[string]bool, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		if ex.ID == "" || ex.BaseURL == "" {
			return fmt.Errorf("exchange %d: id and base_url are required", i)
		}
		venues[ex.ID] = true
	}

	for i, pair := range c.Pairs {
		if pair.Symbol == "" {
			return fmt.Errorf("pair %d: symbol is required", i)
		}
		if !venues[pair.SpotExchange] {
			return fmt.Errorf("pair %s: unknown spot exchange %q", pair.Symbol, pair.SpotExchange)
		}
		if !venues[pair.FuturesExchange] {
			return fmt.Errorf("pair %s: unknown futures exchange %q", pair.Symbol, pair.FuturesExchange)
		}
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
