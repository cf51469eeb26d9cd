package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Credentials   CredentialConfig
	Guardians     GuardianConfig
	Notifications NotificationConfig
	Reports       ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CredentialConfig sets the lifetime of each ephemeral credential kind.
// The three windows are distinct on purpose: a parent's pre-check-in QR,
// the pickup QR/OTP pair, and the login MFA code expire on their own clocks.
type CredentialConfig struct {
	CheckinQRTTL time.Duration
	PickupTTL    time.Duration
	MFAOTPTTL    time.Duration
	OTPLength    int
}

// GuardianConfig controls secondary-guardian authorization windows.
type GuardianConfig struct {
	SecondaryAuthWindow time.Duration
}

// NotificationConfig tunes the delivery worker.
type NotificationConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
	EmailEnabled      bool
	SMSEnabled        bool
}

// ReportsConfig governs attendance report caching.
type ReportsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Credentials = CredentialConfig{
		CheckinQRTTL: parseDuration(v.GetString("CHECKIN_QR_TTL"), 15*time.Minute),
		PickupTTL:    parseDuration(v.GetString("PICKUP_CREDENTIAL_TTL"), 30*time.Minute),
		MFAOTPTTL:    parseDuration(v.GetString("MFA_OTP_TTL"), 10*time.Minute),
		OTPLength:    v.GetInt("OTP_LENGTH"),
	}

	cfg.Guardians = GuardianConfig{
		SecondaryAuthWindow: parseDuration(v.GetString("GUARDIAN_SECONDARY_WINDOW"), 90*24*time.Hour),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:           v.GetBool("ENABLE_NOTIFICATION_DELIVERY"),
		WorkerConcurrency: v.GetInt("NOTIFICATION_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATION_WORKER_RETRIES"),
		EmailEnabled:      v.GetBool("NOTIFICATION_EMAIL_ENABLED"),
		SMSEnabled:        v.GetBool("NOTIFICATION_SMS_ENABLED"),
	}

	cfg.Reports = ReportsConfig{
		CacheTTL: parseDuration(v.GetString("REPORTS_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ministry_checkin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "checkin-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CHECKIN_QR_TTL", "15m")
	v.SetDefault("PICKUP_CREDENTIAL_TTL", "30m")
	v.SetDefault("MFA_OTP_TTL", "10m")
	v.SetDefault("OTP_LENGTH", 6)

	v.SetDefault("GUARDIAN_SECONDARY_WINDOW", "2160h")

	v.SetDefault("ENABLE_NOTIFICATION_DELIVERY", true)
	v.SetDefault("NOTIFICATION_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATION_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFICATION_EMAIL_ENABLED", false)
	v.SetDefault("NOTIFICATION_SMS_ENABLED", false)

	v.SetDefault("REPORTS_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
