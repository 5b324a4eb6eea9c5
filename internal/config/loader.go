package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Quota scopes for the per-team appointment limit.
const (
	QuotaScopeDay    = "day"
	QuotaScopeFuture = "future"
)

// Config captures environment driven configuration for the club site service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	JWTSecret       string
	JWTTTL          time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string

	// MaxTeamAppointments caps appointments a team may hold inside the
	// quota scope. QuotaScope selects how the limit is counted: "day"
	// counts appointments sharing the candidate's calendar day, "future"
	// counts every appointment from the candidate's start onward.
	MaxTeamAppointments int
	QuotaScope          string

	// Defaults applied when a site is created without explicit values.
	DefaultCapacity           int
	DefaultMinDurationMinutes int
	DefaultMaxDurationMinutes int
}

// Load parses configuration from the process environment under the CLUBSITE_
// prefix, applying defaults for optional fields and validating the rest.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLUBSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.port", 8080)
	v.SetDefault("sqlite.dsn", "file:clubsite.db?_foreign_keys=on")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("booking.max_team_appointments", 3)
	v.SetDefault("booking.quota_scope", QuotaScopeDay)
	v.SetDefault("site.default_capacity", 1)
	v.SetDefault("site.default_min_duration_minutes", 30)
	v.SetDefault("site.default_max_duration_minutes", 120)

	_ = v.BindEnv("http.port", "CLUBSITE_HTTP_PORT", "PORT")
	_ = v.BindEnv("sqlite.dsn", "CLUBSITE_SQLITE_DSN")
	_ = v.BindEnv("jwt.secret", "CLUBSITE_JWT_SECRET")
	_ = v.BindEnv("jwt.ttl", "CLUBSITE_JWT_TTL")
	_ = v.BindEnv("shutdown.timeout", "CLUBSITE_SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "CLUBSITE_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("booking.max_team_appointments", "CLUBSITE_MAX_TEAM_APPOINTMENTS")
	_ = v.BindEnv("booking.quota_scope", "CLUBSITE_QUOTA_SCOPE")
	_ = v.BindEnv("site.default_capacity", "CLUBSITE_DEFAULT_CAPACITY")
	_ = v.BindEnv("site.default_min_duration_minutes", "CLUBSITE_DEFAULT_MIN_DURATION_MINUTES")
	_ = v.BindEnv("site.default_max_duration_minutes", "CLUBSITE_DEFAULT_MAX_DURATION_MINUTES")

	cfg := Config{
		HTTPPort:                  v.GetInt("http.port"),
		SQLiteDSN:                 v.GetString("sqlite.dsn"),
		JWTSecret:                 strings.TrimSpace(v.GetString("jwt.secret")),
		LogLevel:                  v.GetString("log.level"),
		MaxTeamAppointments:       v.GetInt("booking.max_team_appointments"),
		QuotaScope:                strings.ToLower(strings.TrimSpace(v.GetString("booking.quota_scope"))),
		DefaultCapacity:           v.GetInt("site.default_capacity"),
		DefaultMinDurationMinutes: v.GetInt("site.default_min_duration_minutes"),
		DefaultMaxDurationMinutes: v.GetInt("site.default_max_duration_minutes"),
	}

	var err error
	if cfg.JWTTTL, err = time.ParseDuration(v.GetString("jwt.ttl")); err != nil {
		return Config{}, fmt.Errorf("invalid CLUBSITE_JWT_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(v.GetString("shutdown.timeout")); err != nil {
		return Config{}, fmt.Errorf("invalid CLUBSITE_SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("required environment variable is not set: CLUBSITE_JWT_SECRET")
	}
	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("invalid CLUBSITE_HTTP_PORT: %d", cfg.HTTPPort)
	}
	if cfg.JWTTTL <= 0 {
		return Config{}, fmt.Errorf("invalid CLUBSITE_JWT_TTL: must be positive")
	}
	if cfg.MaxTeamAppointments <= 0 {
		return Config{}, fmt.Errorf("invalid CLUBSITE_MAX_TEAM_APPOINTMENTS: %d", cfg.MaxTeamAppointments)
	}
	if cfg.QuotaScope != QuotaScopeDay && cfg.QuotaScope != QuotaScopeFuture {
		return Config{}, fmt.Errorf("invalid CLUBSITE_QUOTA_SCOPE: %q", cfg.QuotaScope)
	}
	if cfg.DefaultCapacity <= 0 {
		return Config{}, fmt.Errorf("invalid CLUBSITE_DEFAULT_CAPACITY: %d", cfg.DefaultCapacity)
	}
	if cfg.DefaultMinDurationMinutes <= 0 || cfg.DefaultMaxDurationMinutes < cfg.DefaultMinDurationMinutes {
		return Config{}, fmt.Errorf("invalid default duration bounds: min=%d max=%d",
			cfg.DefaultMinDurationMinutes, cfg.DefaultMaxDurationMinutes)
	}

	return cfg, nil
}
