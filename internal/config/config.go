// Package config читает настройки сервиса из окружения и необязательного .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	minPlotSamples = 2
	maxPlotSamples = 5000
)

type Config struct {
	HTTPAddr     string
	GRPCPort     int
	DBPath       string
	UseMemoryDB  bool
	CatalogPath  string
	CatalogWatch bool
	PlotsDir     string
	PlotSamples  int
	JWTSecret    string
	TokenTTL     time.Duration
	LogLevel     string
}

// Load загружает .env из текущего каталога (если он есть) и читает окружение.
// Переменные окружения имеют приоритет над .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv читает настройки только из окружения
func FromEnv() *Config {
	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		GRPCPort:     getEnvInt("GRPC_PORT", 50052),
		DBPath:       getEnv("DB_PATH", "./formulas.db"),
		UseMemoryDB:  getEnvBool("USE_MEMORY_DB", false),
		CatalogPath:  getEnv("CATALOG_PATH", ""),
		CatalogWatch: getEnvBool("CATALOG_WATCH", true),
		PlotsDir:     getEnv("PLOTS_DIR", "./files/plots"),
		PlotSamples:  getEnvInt("PLOT_SAMPLES", 800),
		JWTSecret:    getEnv("JWT_SECRET", "super_secret_key_change_in_production"),
		TokenTTL:     time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 60)) * time.Minute,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if cfg.PlotSamples < minPlotSamples {
		cfg.PlotSamples = minPlotSamples
	}
	if cfg.PlotSamples > maxPlotSamples {
		cfg.PlotSamples = maxPlotSamples
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return cfg
}

// GRPCAddr возвращает адрес для прослушивания gRPC
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return val
	}
	return defaultVal
}
