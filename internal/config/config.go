package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port string
	Env  string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string
	APIKey    string

	RPCURL         string
	PrivateKey     string
	ChainID        int64
	TokenAddress   string
	BettingAddress string

	// OfflineMode swaps the Ethereum gateway for the in-memory simulated
	// contract seeded with demo bets.
	OfflineMode    bool
	OfflineAddress string

	ReloadSchedule string
	StaticDir      string
	LogLevel       string
}

const (
	DefaultChainID        = 10 // Optimism
	DefaultTokenAddress   = "0xb2f681ba962a1ef4dba7acf79b181814827abddc"
	DefaultReloadSchedule = "@every 1m"
	DefaultOfflineAddress = "0x1000000000000000000000000000000000000001"
)

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8083"),
		Env:            getEnv("ENV", "development"),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		APIKey:         os.Getenv("API_KEY"),
		RPCURL:         os.Getenv("RPC_URL"),
		PrivateKey:     os.Getenv("PRIVATE_KEY"),
		TokenAddress:   getEnv("TOKEN_ADDRESS", DefaultTokenAddress),
		BettingAddress: os.Getenv("BETTING_ADDRESS"),
		OfflineAddress: getEnv("OFFLINE_ADDRESS", DefaultOfflineAddress),
		ReloadSchedule: getEnv("RELOAD_SCHEDULE", DefaultReloadSchedule),
		StaticDir:      getEnv("STATIC_DIR", "./web"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.ChainID, err = strconv.ParseInt(getEnv("CHAIN_ID", strconv.Itoa(DefaultChainID)), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
	}
	if cfg.OfflineMode, err = strconv.ParseBool(getEnv("OFFLINE_MODE", "false")); err != nil {
		return nil, fmt.Errorf("invalid OFFLINE_MODE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.OfflineMode {
		return nil
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required unless OFFLINE_MODE is set")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required unless OFFLINE_MODE is set")
	}
	if c.BettingAddress == "" {
		return fmt.Errorf("BETTING_ADDRESS is required unless OFFLINE_MODE is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
