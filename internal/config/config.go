// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package config loads Marquee configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML (CONFIG_PATH, config.yaml, /etc/marquee/config.yaml)
//  3. Environment variables: explicit mapping table in envTransformFunc
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	TMDB      TMDBConfig      `koanf:"tmdb"`
	Poster    PosterConfig    `koanf:"poster"`
	Recommend RecommendConfig `koanf:"recommend"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig locates the catalog and similarity artifact.
type DataConfig struct {
	CatalogPath    string `koanf:"catalog_path"`
	SimilarityPath string `koanf:"similarity_path"`

	// SimilarityURL is fetched when SimilarityPath does not exist.
	SimilarityURL string `koanf:"similarity_url"`

	// SimilaritySHA256 is optional. When set, an existing artifact whose hash
	// differs is replaced by a fresh download.
	SimilaritySHA256 string        `koanf:"similarity_sha256"`
	DownloadTimeout  time.Duration `koanf:"download_timeout"`
}

// TMDBConfig configures the poster metadata client.
type TMDBConfig struct {
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	ImageBaseURL string `koanf:"image_base_url"`

	Timeout     time.Duration `koanf:"timeout"`      // per attempt
	MaxAttempts int           `koanf:"max_attempts"` // total attempts including the first
	BackoffBase time.Duration `koanf:"backoff_base"` // doubles after each retry

	RateLimit float64 `koanf:"rate_limit"` // requests per second, 0 disables
	RateBurst int     `koanf:"rate_burst"`

	BreakerFailures uint32        `koanf:"breaker_failures"` // consecutive failures before opening
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`  // open state duration
}

// PosterConfig configures poster resolution and caching.
type PosterConfig struct {
	Enabled   bool `koanf:"enabled"`
	CacheSize int  `koanf:"cache_size"`

	// StorePath enables the badger-backed poster store when non-empty.
	StorePath string `koanf:"store_path"`

	// StoreGCInterval is how often the store's value log is compacted.
	StoreGCInterval time.Duration `koanf:"store_gc_interval"`
}

// RecommendConfig configures the recommendation engine.
type RecommendConfig struct {
	TopN            int    `koanf:"top_n"`
	ExcludeMode     string `koanf:"exclude_mode"` // position or identity
	ParallelPosters bool   `koanf:"parallel_posters"`
}

// SecurityConfig holds CORS and inbound rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load is shorthand for LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
