// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marquee/config.yaml",
	"/etc/marquee/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8501,
			Host:            "0.0.0.0",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    90 * time.Second, // five sequential posters at worst-case retry timing
			ShutdownTimeout: 15 * time.Second,
		},
		Data: DataConfig{
			CatalogPath:     "movies.csv",
			SimilarityPath:  "similarity.bin",
			DownloadTimeout: 5 * time.Minute,
		},
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			ImageBaseURL:    "https://image.tmdb.org/t/p/w500",
			Timeout:         5 * time.Second,
			MaxAttempts:     3,
			BackoffBase:     time.Second,
			RateLimit:       40,
			RateBurst:       10,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Poster: PosterConfig{
			Enabled:         true,
			CacheSize:       512,
			StoreGCInterval: 10 * time.Minute,
		},
		Recommend: RecommendConfig{
			TopN:        5,
			ExcludeMode: "position",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings from env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Data files
	"catalog_path":      "data.catalog_path",
	"similarity_path":   "data.similarity_path",
	"similarity_url":    "data.similarity_url",
	"similarity_sha256": "data.similarity_sha256",
	"download_timeout":  "data.download_timeout",

	// TMDB
	"tmdb_api_key":          "tmdb.api_key",
	"tmdb_base_url":         "tmdb.base_url",
	"tmdb_image_base_url":   "tmdb.image_base_url",
	"tmdb_timeout":          "tmdb.timeout",
	"tmdb_max_attempts":     "tmdb.max_attempts",
	"tmdb_backoff_base":     "tmdb.backoff_base",
	"tmdb_rate_limit":       "tmdb.rate_limit",
	"tmdb_rate_burst":       "tmdb.rate_burst",
	"tmdb_breaker_failures": "tmdb.breaker_failures",
	"tmdb_breaker_timeout":  "tmdb.breaker_timeout",

	// Posters
	"posters_enabled":          "poster.enabled",
	"poster_cache_size":        "poster.cache_size",
	"poster_store_path":        "poster.store_path",
	"poster_store_gc_interval": "poster.store_gc_interval",

	// Recommendation
	"recommend_top_n":            "recommend.top_n",
	"recommend_exclude_mode":     "recommend.exclude_mode",
	"recommend_parallel_posters": "recommend.parallel_posters",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
//   - TMDB_API_KEY -> tmdb.api_key
//   - HTTP_PORT -> server.port
//   - POSTER_CACHE_SIZE -> poster.cache_size
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
