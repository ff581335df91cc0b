package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	RedisURL       string
	CookieSecret   string
	ResyncInterval time.Duration
}

// LoadDotEnv loads variables from a .env file in the working directory.
// Variables already set in the environment win, and a missing file is not an error.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("quickly-vote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "r", "", "Redis URL for live tallies")
	fs.DurationVar(&cfg.ResyncInterval, "resync", 0, "Tally resync interval, 0 disables")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.CookieSecret, "cookie-secret", "", "Cookie signing secret (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	resyncSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "resync" {
			resyncSet = true
		}
	})

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q (use sqlite or postgres)", cfg.DatabaseType)
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			cfg.RedisURL = "redis://localhost:6379/0"
		}
	}

	if resyncSet {
		if cfg.ResyncInterval < 0 {
			return Config{}, errors.New("resync interval must not be negative")
		}
	} else {
		if s := os.Getenv("TALLY_RESYNC_INTERVAL"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil || d < 0 {
				return Config{}, errors.New("invalid TALLY_RESYNC_INTERVAL env variable")
			}
			cfg.ResyncInterval = d
		}
	}

	// Secrets - MUST be provided
	if cfg.CookieSecret == "" {
		cfg.CookieSecret = os.Getenv("COOKIE_SECRET")
	}
	if cfg.CookieSecret == "" {
		return Config{}, errors.New("COOKIE_SECRET required")
	}

	return cfg, nil
}
