package server

import (
	"os"
	"strconv"
)

// Config конфигурация HTTP сервера диагностики
type Config struct {
	Port           string
	DBPath         string
	EngineMode     string // rule_based | llm_based | hybrid
	RateLimitRPS   float64
	RateLimitBurst int
	SeedDemo       bool
}

// LoadConfig читает конфигурацию из окружения с разумными значениями по умолчанию
func LoadConfig() Config {
	cfg := Config{
		Port:           envOr("MESDIAG_PORT", "8080"),
		DBPath:         envOr("MESDIAG_DB_PATH", "mesdiag.db"),
		EngineMode:     envOr("MESDIAG_ENGINE", "rule_based"),
		RateLimitRPS:   envFloat("MESDIAG_RATE_RPS", 20),
		RateLimitBurst: envInt("MESDIAG_RATE_BURST", 40),
		SeedDemo:       envBool("MESDIAG_SEED_DEMO", true),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
