package config

import (
	"fmt"
	"net"
	"os"
)

// AppConfig holds process-level configuration loaded from the environment.
// Playback tuning lives in the player config files; this is only what the
// daemon needs before the coordinator exists.
type AppConfig struct {
	ListenAddr     string
	DatabaseURL    string
	NowPlayingPath string
}

// LoadConfig reads the process configuration from environment variables
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     getEnv("RADIOD_LISTEN_ADDR", "127.0.0.1:8090"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		NowPlayingPath: os.Getenv("RADIOD_NOWPLAYING_PATH"),
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return nil, fmt.Errorf("invalid RADIOD_LISTEN_ADDR %q: %w", cfg.ListenAddr, err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
