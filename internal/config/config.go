package config

import "os"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr      string // NOTFORCE_ADDR, default ":8080"
	DBPath    string // NOTFORCE_DB, default ":memory:"
	AuthToken string // NOTFORCE_AUTH_TOKEN, optional
}

// Load reads configuration from environment variables with sensible defaults.
// The database defaults to in-memory: state lives for the duration of a test
// run unless an on-disk path is configured.
func Load() Config {
	return Config{
		Addr:      envOr("NOTFORCE_ADDR", ":8080"),
		DBPath:    envOr("NOTFORCE_DB", ":memory:"),
		AuthToken: os.Getenv("NOTFORCE_AUTH_TOKEN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
