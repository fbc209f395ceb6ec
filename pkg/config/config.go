package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	BaseURL     string
	FrontendURL string
	LogLevel    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	// AdminEmails receive the admin role at sign-in. Everyone else is a plain user.
	AdminEmails []string
	// HookSecret guards the external login hook. Empty disables the route.
	HookSecret string

	RedisURL string
	CacheTTL time.Duration

	CodeLength      int
	TrackingTimeout time.Duration
	// FallbackURL receives visitors of unknown or inactive links. Empty means 404.
	FallbackURL    string
	AllowedOrigins []string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		AppEnv:      v.GetString("APP_ENV"),
		BaseURL:     v.GetString("BASE_URL"),
		FrontendURL: v.GetString("FRONTEND_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		AdminEmails:        splitList(v.GetString("ADMIN_EMAILS")),
		HookSecret:         v.GetString("HOOK_SECRET"),

		RedisURL: v.GetString("REDIS_URL"),
		CacheTTL: v.GetDuration("CACHE_TTL"),

		CodeLength:      v.GetInt("CODE_LENGTH"),
		TrackingTimeout: v.GetDuration("TRACKING_TIMEOUT"),
		FallbackURL:     v.GetString("FALLBACK_URL"),
		AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "file:db.sqlite")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:8080/dashboard")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback")
	v.SetDefault("JWT_SECRET", "secret")

	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("CODE_LENGTH", 8)
	v.SetDefault("TRACKING_TIMEOUT", 2*time.Second)
	v.SetDefault("ALLOWED_ORIGINS", "*")
}

// splitList reads a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
