package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if cfg.Cart.MaxQuantity != 99 {
		t.Fatalf("expected default max quantity 99, got %d", cfg.Cart.MaxQuantity)
	}
	if cfg.Cart.DebounceWindow != 300*time.Millisecond {
		t.Fatalf("expected default debounce 300ms, got %v", cfg.Cart.DebounceWindow)
	}
	if cfg.Cart.StoreKind() != CartStoreMemory {
		t.Fatalf("expected memory store by default, got %q", cfg.Cart.StoreKind())
	}
	if len(cfg.App.CORSAllowedOrigins) != 1 || cfg.App.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.App.CORSAllowedOrigins)
	}
	if cfg.JWT.SessionTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.JWT.SessionTTL())
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RedisStoreRequiresEndpoint(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartStore, "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected redis store without endpoint to fail")
	}

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Cart.UsesRedis() || !cfg.Redis.Enabled() {
		t.Fatalf("expected redis store to be configured")
	}
}

func TestLoad_SQLStoreBuildsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartStore, "SQL")
	t.Setenv(EnvDBHost, "db.internal")
	t.Setenv(EnvDBUser, "scoop")
	t.Setenv(EnvDBName, "carts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "postgres://scoop@db.internal:5432/carts?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
}

func TestLoad_SQLStoreMissingParts(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartStore, "sql")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing db parts to fail")
	}
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartStore, "dynamo")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown store kind to fail")
	}
}

func TestLoad_RejectsNonPositiveMaxQuantity(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartMaxQuantity, "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected zero max quantity to fail")
	}
}

func TestLoad_RateLimitDefaultsAndValidation(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimit.SessionWindow != time.Minute || cfg.RateLimit.SessionIPLimit != 20 {
		t.Fatalf("unexpected session limit defaults %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.ItemsIPLimit != 600 || cfg.RateLimit.ItemsSessionLimit != 120 {
		t.Fatalf("unexpected items limit defaults %+v", cfg.RateLimit)
	}

	t.Setenv(EnvRateLimitSessionWindow, "-1s")
	if _, err := Load(); err == nil {
		t.Fatal("expected negative rate limit window to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvJWTSecret, "secret")
	unsetEnv(t,
		EnvCORSAllowedOrigins,
		EnvRateLimitSessionWindow,
		EnvRateLimitItemsWindow,
		EnvRateLimitSessionIP,
		EnvCartStore,
		EnvCartMaxQuantity,
		EnvRedisURL,
		EnvRedisAddr,
		EnvDBDSN,
		EnvDBDriver,
		EnvDBHost,
		EnvDBUser,
		EnvDBName,
	)
}

// unsetEnv clears keys for the test while letting t.Setenv restore the previous values.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
