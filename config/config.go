package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Peg       PegConfig       `mapstructure:"peg"`
	Rails     RailsConfig     `mapstructure:"rails"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// PegConfig fixes the token/USD conversion. Rate is USD per token; the
// current design pegs 1 token = 1 USD. WithdrawalFeeBps is the withdrawal fee
// in basis points, collected into the treasury.
type PegConfig struct {
	Rate             string `mapstructure:"rate"`
	WithdrawalFeeBps int64  `mapstructure:"withdrawal_fee_bps"`
}

// RateDecimal parses the peg rate, defaulting to 1 on malformed input.
func (p PegConfig) RateDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(p.Rate)
	if err != nil || d.IsZero() || d.IsNegative() {
		return decimal.NewFromInt(1)
	}
	return d
}

type RailsConfig struct {
	Card  ProcessorRailConfig `mapstructure:"card"`
	Bank  BankRailConfig      `mapstructure:"bank"`
	PayID ProcessorRailConfig `mapstructure:"payid"`
	Chain ChainRailConfig     `mapstructure:"chain"`

	// DepositTTL is how long an initiated deposit may stay pending before it
	// is expired to failed.
	DepositTTL time.Duration `mapstructure:"deposit_ttl"`
}

// ProcessorRailConfig covers rails fronted by a hosted payment processor.
// Alias is only used by the instant-transfer rail: the PayID handed out to
// payers.
type ProcessorRailConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Alias         string        `mapstructure:"alias"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// BankRailConfig carries the static payee details handed out for manual bank
// transfers, plus the processor endpoint used for balance reporting.
type BankRailConfig struct {
	AccountName   string        `mapstructure:"account_name"`
	AccountNumber string        `mapstructure:"account_number"`
	BranchCode    string        `mapstructure:"branch_code"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ChainRailConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	APIKey                string        `mapstructure:"api_key"`
	IssuerAddress         string        `mapstructure:"issuer_address"`
	RequiredConfirmations int           `mapstructure:"required_confirmations"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

type ReconcileConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ToleranceUSD string        `mapstructure:"tolerance_usd"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// ToleranceDecimal parses the drift tolerance, defaulting to 1 USD.
func (r ReconcileConfig) ToleranceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(r.ToleranceUSD)
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(1)
	}
	return d
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: JVC_.
// Nested keys use underscore: JVC_DATABASE_HOST, JVC_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "jvc_treasury")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "jvc-treasury")
	v.SetDefault("peg.rate", "1")
	v.SetDefault("peg.withdrawal_fee_bps", 50)
	v.SetDefault("rails.deposit_ttl", "24h")
	v.SetDefault("rails.card.base_url", "https://api.processor.local")
	v.SetDefault("rails.card.timeout", "10s")
	v.SetDefault("rails.payid.base_url", "https://api.processor.local")
	v.SetDefault("rails.payid.alias", "treasury@jvcgroup.example")
	v.SetDefault("rails.payid.timeout", "10s")
	v.SetDefault("rails.bank.timeout", "10s")
	v.SetDefault("rails.chain.base_url", "http://localhost:9650")
	v.SetDefault("rails.chain.required_confirmations", 3)
	v.SetDefault("rails.chain.poll_interval", "15s")
	v.SetDefault("rails.chain.timeout", "10s")
	v.SetDefault("reconcile.interval", "5m")
	v.SetDefault("reconcile.tolerance_usd", "1")
	v.SetDefault("reconcile.lock_ttl", "4m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: JVC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("JVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
