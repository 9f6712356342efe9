package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	SchemaPath    string
	GeoConfigPath string
	DBPath        string
	OutputDir     string

	ProgressEvery int

	StatsWorkers      int
	StatsRateLimitRPS float64
	CordStatsFile     string

	RecordLedger bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SchemaPath:    getEnv("SCHEMA_PATH", filepath.Join(cwd, "sz_default_config.json")),
		GeoConfigPath: getEnv("GEO_CONFIG_PATH", filepath.Join(cwd, "geo_extractor_config.json")),
		DBPath:        getEnv("DB_PATH", filepath.Join(cwd, "data", "szattr.db")),
		OutputDir:     getEnv("OUTPUT_DIR", ""),

		ProgressEvery: getEnvInt("PROGRESS_EVERY", 100000),

		StatsWorkers:      getEnvInt("STATS_WORKERS", 4),
		StatsRateLimitRPS: getEnvFloat("STATS_RATE_LIMIT_RPS", 0),
		CordStatsFile:     getEnv("CORD_STATS_FILE", "_CORD_STATS.xlsx"),

		RecordLedger: getEnvBool("RECORD_LEDGER", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
