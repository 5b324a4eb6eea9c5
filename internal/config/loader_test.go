package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"CLUBSITE_HTTP_PORT",
			"CLUBSITE_SQLITE_DSN",
			"CLUBSITE_JWT_TTL",
			"CLUBSITE_MAX_TEAM_APPOINTMENTS",
			"CLUBSITE_QUOTA_SCOPE",
			"PORT",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		const secret = "super-secret"
		t.Setenv("CLUBSITE_JWT_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:clubsite.db?_foreign_keys=on" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.JWTSecret != secret {
			t.Fatalf("expected JWT secret to be %q, got %q", secret, cfg.JWTSecret)
		}
		if cfg.MaxTeamAppointments != 3 {
			t.Fatalf("expected default appointment quota 3, got %d", cfg.MaxTeamAppointments)
		}
		if cfg.QuotaScope != QuotaScopeDay {
			t.Fatalf("expected default quota scope %q, got %q", QuotaScopeDay, cfg.QuotaScope)
		}
		if cfg.JWTTTL != 24*time.Hour {
			t.Fatalf("expected default JWT TTL 24h, got %s", cfg.JWTTTL)
		}
	})

	t.Run("errors when the JWT secret is missing", func(t *testing.T) {
		if err := os.Unsetenv("CLUBSITE_JWT_SECRET"); err != nil {
			t.Fatalf("failed to unset CLUBSITE_JWT_SECRET: %v", err)
		}

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when the JWT secret is missing")
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("CLUBSITE_JWT_SECRET", "secret-value")
		t.Setenv("CLUBSITE_HTTP_PORT", "9090")
		t.Setenv("CLUBSITE_SQLITE_DSN", "file:/tmp/clubsite.db")
		t.Setenv("CLUBSITE_JWT_TTL", "12h")
		t.Setenv("CLUBSITE_MAX_TEAM_APPOINTMENTS", "5")
		t.Setenv("CLUBSITE_QUOTA_SCOPE", "future")
		t.Setenv("CLUBSITE_DEFAULT_CAPACITY", "4")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/clubsite.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.JWTTTL != 12*time.Hour {
			t.Fatalf("expected JWT TTL 12h, got %s", cfg.JWTTTL)
		}
		if cfg.MaxTeamAppointments != 5 {
			t.Fatalf("expected appointment quota 5, got %d", cfg.MaxTeamAppointments)
		}
		if cfg.QuotaScope != QuotaScopeFuture {
			t.Fatalf("expected quota scope %q, got %q", QuotaScopeFuture, cfg.QuotaScope)
		}
		if cfg.DefaultCapacity != 4 {
			t.Fatalf("expected default capacity 4, got %d", cfg.DefaultCapacity)
		}
	})

	t.Run("rejects an unknown quota scope", func(t *testing.T) {
		t.Setenv("CLUBSITE_JWT_SECRET", "secret-value")
		t.Setenv("CLUBSITE_QUOTA_SCOPE", "fortnight")

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for unknown quota scope")
		}
	})
}
