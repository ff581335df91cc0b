// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

LoadDotEnv reads a .env file if one exists. Values already present in the
environment are not overwritten.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - RedisURL: Redis holding live tallies and the vote channels
  - CookieSecret: Secret for signing the sessionId cookie (required)
  - ResyncInterval: How often tallies are rebuilt from votes (0 = never)

# CLI Flags

	-p              Server port
	-d              Database URL
	-t              Database type
	-r              Redis URL
	--cookie-secret Cookie signing secret
	--resync        Tally resync interval (e.g. 10m)

# Environment Variables

Flags fall back to environment variables:

	PORT                  → -p
	DATABASE_URL          → -d
	DATABASE_TYPE         → -t
	REDIS_URL             → -r
	COOKIE_SECRET         → --cookie-secret
	TALLY_RESYNC_INTERVAL → --resync

CLI flags take precedence over environment variables.
*/
package cliparse
