package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Log        LogConfig
	Payment    PaymentConfig
	Solana     SolanaConfig
	EVM        EVMConfig
	Unverified UnverifiedConfig
	Breaker    BreakerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
	// AdminAPIKey guards /api/admin. Admin routes are disabled when empty.
	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"listing_gate"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// PaymentConfig holds prices (human token units) and the verification poll policy.
type PaymentConfig struct {
	ListingPrice      string        `envconfig:"PAYMENT_LISTING_PRICE" default:"1"`
	SubscriptionPrice string        `envconfig:"PAYMENT_SUBSCRIPTION_PRICE" default:"10"`
	SubscriptionDays  int           `envconfig:"PAYMENT_SUBSCRIPTION_DAYS" default:"30"`
	PollInterval      time.Duration `envconfig:"PAYMENT_POLL_INTERVAL" default:"2s"`
	PollAttempts      uint64        `envconfig:"PAYMENT_POLL_ATTEMPTS" default:"15"`
}

// SolanaConfig configures the SPL token network.
type SolanaConfig struct {
	Enabled  bool   `envconfig:"SOLANA_ENABLED" default:"true"`
	Network  string `envconfig:"SOLANA_NETWORK" default:"solana"`
	RPCURL   string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	Mint     string `envconfig:"SOLANA_MINT" default:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"` // USDC
	Decimals uint8  `envconfig:"SOLANA_DECIMALS" default:"6"`
	Merchant string `envconfig:"SOLANA_MERCHANT_WALLET"`
}

// EVMConfig configures the ERC-20 network.
type EVMConfig struct {
	Enabled     bool   `envconfig:"EVM_ENABLED" default:"false"`
	Network     string `envconfig:"EVM_NETWORK" default:"base"`
	RPCURL      string `envconfig:"EVM_RPC_URL" default:"https://mainnet.base.org"`
	Token       string `envconfig:"EVM_TOKEN" default:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"` // USDC on Base
	Decimals    uint8  `envconfig:"EVM_DECIMALS" default:"6"`
	Merchant    string `envconfig:"EVM_MERCHANT_ADDRESS"`
	GasLimit    uint64 `envconfig:"EVM_GAS_LIMIT" default:"100000"`
	LogLookback uint64 `envconfig:"EVM_LOG_LOOKBACK" default:"5000"`
}

// UnverifiedConfig lists networks that get references but no ledger verification.
type UnverifiedConfig struct {
	Networks []string `envconfig:"UNVERIFIED_NETWORKS"`
}

// BreakerConfig configures the circuit breaker around each chain RPC endpoint.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Solana.Enabled && c.Solana.Merchant == "" {
		errs = append(errs, errors.New("SOLANA_MERCHANT_WALLET is required when SOLANA_ENABLED"))
	}
	if c.EVM.Enabled && c.EVM.Merchant == "" {
		errs = append(errs, errors.New("EVM_MERCHANT_ADDRESS is required when EVM_ENABLED"))
	}
	if !c.Solana.Enabled && !c.EVM.Enabled && len(c.Unverified.Networks) == 0 {
		errs = append(errs, errors.New("at least one payment network must be enabled"))
	}
	if c.Payment.PollAttempts == 0 {
		errs = append(errs, errors.New("PAYMENT_POLL_ATTEMPTS must be at least 1"))
	}
	if c.Payment.SubscriptionDays <= 0 {
		errs = append(errs, errors.New("PAYMENT_SUBSCRIPTION_DAYS must be positive"))
	}
	return errors.Join(errs...)
}
