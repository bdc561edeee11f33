package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	AutoMigrate        bool
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	CurrencyCode       string

	// Shipping
	StoreBaseCountry   string
	VendorRegions      bool
	ShippingFeeLabel   string
	ShippingCountries  map[string]string
	ProfileCacheTTL    time.Duration
	CartTTL            time.Duration
	CartRedisPrefix    string
	IdempotencyTTL     time.Duration
	DestinationRate    string
	CheckoutRate       string
	BodyLimitBytes     int64
	SecurityHeaders    bool
	ExportFilePrefix   string
	AdminListPageLimit int
	VendorLinkTTL      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AutoMigrate:        parseBool(valueOrDefault(k.String("DB_AUTO_MIGRATE"), "true")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "toko-store"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "toko-fees"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		StoreBaseCountry:   strings.ToUpper(valueOrDefault(k.String("STORE_BASE_COUNTRY"), "US")),
		VendorRegions:      parseBool(k.String("SHIPPING_VENDOR_REGIONS")),
		ShippingFeeLabel:   valueOrDefault(k.String("SHIPPING_FEE_LABEL"), "Shipping Costs"),
		ShippingCountries:  parseCountries(k.String("SHIPPING_COUNTRIES")),
		ProfileCacheTTL:    parseDuration(k.String("PRODUCT_PROFILE_CACHE_TTL"), "5m"),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		CartRedisPrefix:    valueOrDefault(k.String("CART_REDIS_PREFIX"), "cart"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		DestinationRate:    valueOrDefault(k.String("RATE_LIMIT_DESTINATION"), "120-M"),
		CheckoutRate:       valueOrDefault(k.String("RATE_LIMIT_CHECKOUT"), "10-M"),
		BodyLimitBytes:     k.Int64("HTTP_BODY_LIMIT_BYTES"),
		SecurityHeaders:    parseBool(valueOrDefault(k.String("SECURITY_HEADERS"), "true")),
		ExportFilePrefix:   valueOrDefault(k.String("EXPORT_FILE_PREFIX"), "unshipped-orders"),
		AdminListPageLimit: int(k.Int64("ADMIN_LIST_PAGE_LIMIT")),
		VendorLinkTTL:      parseDuration(k.String("VENDOR_LINK_TTL"), "12h"),
	}

	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = 1 << 20
	}
	if cfg.AdminListPageLimit <= 0 {
		cfg.AdminListPageLimit = 20
	}
	if len(cfg.StoreBaseCountry) != 2 {
		return nil, fmt.Errorf("STORE_BASE_COUNTRY must be an ISO 3166-1 alpha-2 code, got %q", cfg.StoreBaseCountry)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseCountries reads "US=United States,CA=Canada" into a code → name map.
// Entries without a name use the code as display value.
func parseCountries(value string) map[string]string {
	out := map[string]string{}
	for _, entry := range splitAndTrim(value) {
		code, name, found := strings.Cut(entry, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if !found || name == "" {
			name = code
		}
		out[code] = name
	}
	return out
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
