package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Environment names recognised by the settlement pipeline. Reference
// prefixes and gateway endpoints differ between the two.
const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DefaultTempleID int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr string

	Gateway GatewayConfig

	PendingBookingTTL   time.Duration
	ExpirySweepInterval time.Duration
}

// GatewayConfig carries environment-scoped payment gateway settings.
// Merchant credentials live on payment modes, not here.
type GatewayConfig struct {
	EndpointURL string
	ReturnURL   string
	CallbackURL string
	CancelURL   string
	Currency    string
	Country     string
	LangCode    string
}

// IsProduction reports whether the process runs against the live gateway.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Module provides Config to the fx graph.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := normalizeEnvironment(getenv("ENVIRONMENT", EnvSandbox))

	return Config{
		AppName:         getenv("APP_SERVICE", "templedesk"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     environment,
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		DefaultTempleID: getenvInt64("DEFAULT_TEMPLE", 0),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "templedesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr: getenv("REDIS_ADDR", ""),

		Gateway: GatewayConfig{
			EndpointURL: getenv("GATEWAY_ENDPOINT_URL", defaultGatewayEndpoint(environment)),
			ReturnURL:   getenv("GATEWAY_RETURN_URL", ""),
			CallbackURL: getenv("GATEWAY_CALLBACK_URL", ""),
			CancelURL:   getenv("GATEWAY_CANCEL_URL", ""),
			Currency:    getenv("GATEWAY_CURRENCY", "MYR"),
			Country:     getenv("GATEWAY_COUNTRY", "MY"),
			LangCode:    getenv("GATEWAY_LANGCODE", "en"),
		},

		PendingBookingTTL:   getenvDuration("PENDING_BOOKING_TTL", 30*time.Minute),
		ExpirySweepInterval: getenvDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func normalizeEnvironment(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EnvProduction, "prod", "live":
		return EnvProduction
	default:
		return EnvSandbox
	}
}

func defaultGatewayEndpoint(environment string) string {
	if environment == EnvProduction {
		return "https://www.onlinepayment.com.my/MOLPay/pay/"
	}
	return "https://sandbox.onlinepayment.com.my/MOLPay/pay/"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
