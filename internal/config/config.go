// Package config gathers the per-package environment configuration of the
// API process.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/token"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/database"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	// StrictFilters rejects unknown filter fields instead of ignoring them.
	StrictFilters bool

	Log      utilities.Config
	Database database.Config
	Token    token.Config
	Login    user.Config
}

// Load reads files (".env" when none are given) into the environment,
// best effort and without overriding variables already set, then builds
// the configuration.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() (Config, error) {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	shutdown := 5 * time.Second
	if v, err := strconv.Atoi(os.Getenv("HTTP_SHUTDOWN_SECONDS")); err == nil && v > 0 {
		shutdown = time.Duration(v) * time.Second
	}
	cfg := Config{
		HTTPAddr:        addr,
		ShutdownTimeout: shutdown,
		StrictFilters:   os.Getenv("STRICT_FILTERS") == "1",
		Log:             utilities.ConfigFromEnv(),
		Database:        database.ConfigFromEnv(),
		Token:           token.ConfigFromEnv(),
		Login:           user.ConfigFromEnv(),
	}
	if cfg.Token.Secret == "" {
		return cfg, ErrMissingSecret
	}
	return cfg, nil
}
