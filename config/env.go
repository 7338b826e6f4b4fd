package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides file values with STATEMENTS_* variables.
func applyEnv(c *Config) {
	c.Endpoint.Platform = envOr("STATEMENTS_PLATFORM", c.Endpoint.Platform)
	c.Endpoint.Model = envOr("STATEMENTS_MODEL", c.Endpoint.Model)
	c.Endpoint.Proxies = envSliceOr("STATEMENTS_PROXIES", c.Endpoint.Proxies)

	c.Dataset.Path = envOr("STATEMENTS_DATA", c.Dataset.Path)
	c.Dataset.Start = envIntOr("STATEMENTS_START", c.Dataset.Start)
	c.Dataset.End = envIntOr("STATEMENTS_END", c.Dataset.End)

	c.Output.Dir = envOr("STATEMENTS_OUTPUT_DIR", c.Output.Dir)

	c.Run.Workers = envIntOr("STATEMENTS_WORKERS", c.Run.Workers)
	c.Run.MaxRetries = envIntOr("STATEMENTS_MAX_RETRIES", c.Run.MaxRetries)
	c.Run.RetryDelay = Duration(envDurationOr("STATEMENTS_RETRY_DELAY", c.Run.RetryDelay.Std()))
	c.Run.Timeout = Duration(envDurationOr("STATEMENTS_TIMEOUT", c.Run.Timeout.Std()))
	c.Run.RateLimit = envFloatOr("STATEMENTS_RATE_LIMIT", c.Run.RateLimit)
	c.Run.DebugUsage = envBoolOr("STATEMENTS_DEBUG_USAGE", c.Run.DebugUsage)

	c.Log.Level = envOr("STATEMENTS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("STATEMENTS_LOG_FORMAT", c.Log.Format)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
