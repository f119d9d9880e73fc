package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/logger"

	"github.com/joho/godotenv"
)

// AgentConfig configures the host agent binary.
type AgentConfig struct {
	ServerURL string
	APIKey    string
	Interval  time.Duration
	Timeout   time.Duration
	DiskPaths []string
	Logging   LoggingConfig
}

func LoadAgent() (*AgentConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := &AgentConfig{
		ServerURL: getEnv("AGENT_SERVER_URL", "http://localhost:8000"),
		APIKey:    os.Getenv("AGENT_API_KEY"),
		Interval:  getEnvAsDuration("AGENT_INTERVAL", "30s"),
		Timeout:   getEnvAsDuration("AGENT_TIMEOUT", "10s"),
		DiskPaths: splitList(getEnv("AGENT_DISK_PATHS", "")),
		Logging: LoggingConfig{
			Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
			Mode:      logger.ParseMode(getEnv("LOG_MODE", "minimal")),
			UseColors: getEnvAsBool("LOG_USE_COLORS", true),
		},
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing required environment variables: AGENT_API_KEY")
	}
	if cfg.Interval < time.Second {
		return nil, fmt.Errorf("AGENT_INTERVAL must be at least 1s")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
