package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	GatewayBaseURL string
	GatewayAPIKey  string

	IdempTTLSecs int

	// Engine tuning. Grace days are excluded from the penalty basis; a loan
	// turns OVERDUE once its oldest unpaid installment is past due + grace,
	// and DEFAULTED once past due + DefaultAfterDays.
	GraceDays        int
	DefaultAfterDays int
	// AmountTolerance is the largest difference between an intent's amount
	// and the gateway-confirmed amount that still reconciles.
	AmountTolerance decimal.Decimal
	// MaxCallbackRetries bounds re-initiations of a failed logical payment.
	MaxCallbackRetries int
	// MaxConflictRetries bounds internal retries on optimistic-concurrency
	// conflicts before the error surfaces.
	MaxConflictRetries int
	// IntentTTLMins: a PENDING intent with no callback inside this window is
	// expired by the sweep.
	IntentTTLMins int

	PenaltyCronSpec string
	ExpiryCronSpec  string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "mikopo"),
		MySQLUser: getenv("MYSQL_USER", "mikopo"),
		MySQLPass: getenv("MYSQL_PASS", "mikopo"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		GatewayBaseURL: getenv("GATEWAY_BASE_URL", "http://mobile-money-gateway:9000"),
		GatewayAPIKey:  getenv("GATEWAY_API_KEY", ""),

		GraceDays:          getenvInt("GRACE_DAYS", 15),
		DefaultAfterDays:   getenvInt("DEFAULT_AFTER_DAYS", 30),
		MaxCallbackRetries: getenvInt("MAX_CALLBACK_RETRIES", 3),
		MaxConflictRetries: getenvInt("MAX_CONFLICT_RETRIES", 3),
		IntentTTLMins:      getenvInt("INTENT_TTL_MINUTES", 90),

		PenaltyCronSpec: getenv("PENALTY_CRON", "30 1 * * *"),
		ExpiryCronSpec:  getenv("EXPIRY_CRON", "*/10 * * * *"),
	}

	c.AmountTolerance = decimal.NewFromFloat(0.01)
	if v := os.Getenv("AMOUNT_TOLERANCE"); v != "" {
		if t, err := decimal.NewFromString(v); err == nil && !t.IsNegative() {
			c.AmountTolerance = t
		}
	}
	return c
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.GraceDays < 0 || c.DefaultAfterDays <= c.GraceDays {
		return fmt.Errorf("default threshold (%d) must exceed grace period (%d)", c.DefaultAfterDays, c.GraceDays)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
