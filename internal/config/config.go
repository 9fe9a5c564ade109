package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	DBDSN      string `mapstructure:"DB_DSN"`
	DBMaxConns int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns int32  `mapstructure:"DB_MIN_CONNS"`

	Port        string   `mapstructure:"PORT"`
	Environment string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	APIRateRPS  float64  `mapstructure:"API_RATE_LIMIT_RPS"`

	// Адреса прокси, которым можно верить в X-Forwarded-For
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	TelegramToken  string `mapstructure:"TELEGRAM_TOKEN"`
	JWTSecret      string `mapstructure:"AUTH_JWT_SECRET"`
	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`

	VerificationTTL      time.Duration `mapstructure:"VERIFICATION_TTL"`
	VerifiedTTL          time.Duration `mapstructure:"VERIFIED_TTL"`
	VerificationAttempts int           `mapstructure:"VERIFICATION_ATTEMPTS"`
	VerificationDaily    int           `mapstructure:"VERIFICATION_DAILY_LIMIT"`
	FallbackEnabled      bool          `mapstructure:"VERIFICATION_FALLBACK_ENABLED"`
	BcryptCost           int           `mapstructure:"BCRYPT_COST"`
	RateLimitPerMinute   int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	HousekeepingCron string `mapstructure:"HOUSEKEEPING_CRON"`
}

var defaults = map[string]any{
	"DB_MAX_CONNS":                  10,
	"DB_MIN_CONNS":                  2,
	"PORT":                          "8080",
	"ENV":                           "development",
	"CORS_ORIGINS":                  "http://localhost:5173",
	"API_RATE_LIMIT_RPS":            20,
	"TRUSTED_PROXIES":               "",
	"CLINIC_TIMEZONE":               "Europe/Moscow",
	"VERIFICATION_TTL":              "10m",
	"VERIFIED_TTL":                  "30m",
	"VERIFICATION_ATTEMPTS":         5,
	"VERIFICATION_DAILY_LIMIT":      3,
	"VERIFICATION_FALLBACK_ENABLED": true,
	"BCRYPT_COST":                   10,
	"RATE_LIMIT_PER_MINUTE":         10,
	"HOUSEKEEPING_CRON":             "5 0 * * *",
}

var envKeys = []string{
	"DB_DSN", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"PORT", "ENV", "CORS_ORIGINS", "API_RATE_LIMIT_RPS", "TRUSTED_PROXIES",
	"TELEGRAM_TOKEN", "AUTH_JWT_SECRET", "CLINIC_TIMEZONE",
	"VERIFICATION_TTL", "VERIFIED_TTL", "VERIFICATION_ATTEMPTS", "VERIFICATION_DAILY_LIMIT",
	"VERIFICATION_FALLBACK_ENABLED", "BCRYPT_COST", "RATE_LIMIT_PER_MINUTE",
	"HOUSEKEEPING_CRON",
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.TrustedProxies = splitList(cfg.TrustedProxies)

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}

// Validate проверяет значения, без которых сервер работать не сможет
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.VerificationTTL <= 0 || c.VerifiedTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TTL and VERIFIED_TTL must be positive")
	}
	if c.VerificationAttempts <= 0 {
		return fmt.Errorf("VERIFICATION_ATTEMPTS must be positive, got %d", c.VerificationAttempts)
	}
	// Пределы bcrypt: 4..31
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be in 4..31, got %d", c.BcryptCost)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.ProxyRanges(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.HousekeepingCron); err != nil {
		return fmt.Errorf("HOUSEKEEPING_CRON is invalid: %w", err)
	}
	return nil
}

// Location часовой пояс клиники, в нём проверяется что запись не в прошлом
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// ProxyRanges разбирает TRUSTED_PROXIES. Одиночный адрес считается сетью из одного хоста
func (c *Config) ProxyRanges() ([]*net.IPNet, error) {
	ranges := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, value := range c.TrustedProxies {
		if !strings.Contains(value, "/") {
			ip := net.ParseIP(value)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", value)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			ranges = append(ranges, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, ipNet, err := net.ParseCIDR(value)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		ranges = append(ranges, ipNet)
	}
	return ranges, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// splitList разбивает значения вида "a, b" и выкидывает пустые
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
