// Package config loads process configuration from the environment. No
// business logic should depend on raw environment variables; everything
// flows through here once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"drouple.org/internal/token"
)

// Config holds all configuration required by the API process.
type Config struct {
	// ListenAddr is the HTTP bind address, e.g. ":8080".
	ListenAddr string

	// AuthSecret signs access tokens. The process refuses to start with
	// a short secret.
	AuthSecret string

	// PostgresDSN is the user/tenant/refresh-token database. Empty means
	// the process runs on in-memory stores (dev only).
	PostgresDSN string

	// RedisAddr switches the login limiter and the token deny-list to
	// Redis when set. Empty keeps the in-memory single-instance stores.
	RedisAddr string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Login lockout policy.
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// Load reads and validates the environment.
func Load() (Config, error) {
	c := Config{
		ListenAddr:       envOr("DROUPLE_LISTEN_ADDR", ":8080"),
		AuthSecret:       os.Getenv("DROUPLE_AUTH_SECRET"),
		PostgresDSN:      strings.TrimSpace(os.Getenv("DROUPLE_PG_DSN")),
		RedisAddr:        strings.TrimSpace(os.Getenv("DROUPLE_REDIS_ADDR")),
		AccessTokenTTL:   durationOr("DROUPLE_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:  durationOr("DROUPLE_REFRESH_TTL", 30*24*time.Hour),
		LoginMaxAttempts: 0,
		LoginWindow:      durationOr("DROUPLE_LOGIN_WINDOW", 15*time.Minute),
	}
	if raw := strings.TrimSpace(os.Getenv("DROUPLE_LOGIN_MAX_ATTEMPTS")); raw != "" {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
			return Config{}, fmt.Errorf("DROUPLE_LOGIN_MAX_ATTEMPTS must be a positive integer, got %q", raw)
		}
		c.LoginMaxAttempts = n
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate enforces the startup invariants.
func (c Config) Validate() error {
	var errs []error

	if c.AuthSecret == "" {
		errs = append(errs, errors.New("DROUPLE_AUTH_SECRET is required"))
	} else if len(c.AuthSecret) < token.MinSecretLength {
		errs = append(errs, fmt.Errorf("DROUPLE_AUTH_SECRET must be at least %d bytes", token.MinSecretLength))
	}
	if !strings.Contains(c.ListenAddr, ":") {
		errs = append(errs, fmt.Errorf("DROUPLE_LISTEN_ADDR must be host:port or :port, got %q", c.ListenAddr))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("DROUPLE_ACCESS_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("DROUPLE_REFRESH_TTL must be greater than DROUPLE_ACCESS_TTL"))
	}
	if c.LoginWindow <= 0 {
		errs = append(errs, errors.New("DROUPLE_LOGIN_WINDOW must be positive"))
	}

	return joinErrors(errs)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
