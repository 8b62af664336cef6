// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/marquee/internal/logging"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validatePoster(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateData() error {
	if strings.TrimSpace(c.Data.CatalogPath) == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}
	if strings.TrimSpace(c.Data.SimilarityPath) == "" {
		return fmt.Errorf("SIMILARITY_PATH is required")
	}
	if c.Data.SimilarityURL != "" {
		if err := validateHTTPURL(c.Data.SimilarityURL, "SIMILARITY_URL"); err != nil {
			return err
		}
	}
	if sum := c.Data.SimilaritySHA256; sum != "" {
		if b, err := hex.DecodeString(sum); err != nil || len(b) != 32 {
			return fmt.Errorf("SIMILARITY_SHA256 must be 64 hex characters")
		}
	}
	if c.Data.DownloadTimeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.Poster.Enabled && c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required when POSTERS_ENABLED=true")
	}
	if err := validateHTTPURL(c.TMDB.BaseURL, "TMDB_BASE_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.TMDB.ImageBaseURL, "TMDB_IMAGE_BASE_URL"); err != nil {
		return err
	}
	if strings.ContainsRune(c.TMDB.BaseURL, '?') {
		return fmt.Errorf("TMDB_BASE_URL should not contain query parameters")
	}
	if c.TMDB.Timeout <= 0 {
		return fmt.Errorf("TMDB_TIMEOUT must be positive")
	}
	if c.TMDB.MaxAttempts < 1 || c.TMDB.MaxAttempts > 10 {
		return fmt.Errorf("TMDB_MAX_ATTEMPTS must be between 1 and 10, got %d", c.TMDB.MaxAttempts)
	}
	if c.TMDB.BackoffBase < 0 {
		return fmt.Errorf("TMDB_BACKOFF_BASE must not be negative")
	}
	if c.TMDB.RateLimit < 0 {
		return fmt.Errorf("TMDB_RATE_LIMIT must not be negative")
	}
	if c.TMDB.RateLimit > 0 && c.TMDB.RateBurst < 1 {
		return fmt.Errorf("TMDB_RATE_BURST must be at least 1 when rate limiting is enabled")
	}
	if c.TMDB.BreakerFailures == 0 {
		return fmt.Errorf("TMDB_BREAKER_FAILURES must be at least 1")
	}
	if c.TMDB.BreakerTimeout <= 0 {
		return fmt.Errorf("TMDB_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validatePoster() error {
	if c.Poster.CacheSize < 1 {
		return fmt.Errorf("POSTER_CACHE_SIZE must be at least 1, got %d", c.Poster.CacheSize)
	}
	if c.Poster.StorePath != "" && c.Poster.StoreGCInterval <= 0 {
		return fmt.Errorf("POSTER_STORE_GC_INTERVAL must be positive when POSTER_STORE_PATH is set")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.TopN < 1 || c.Recommend.TopN > 100 {
		return fmt.Errorf("RECOMMEND_TOP_N must be between 1 and 100, got %d", c.Recommend.TopN)
	}
	switch c.Recommend.ExcludeMode {
	case "position", "identity":
	default:
		return fmt.Errorf("RECOMMEND_EXCLUDE_MODE must be 'position' or 'identity', got %q", c.Recommend.ExcludeMode)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks for an http(s) URL with a host. Paths are allowed
// since TMDB bases carry a version or size segment.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}

// LogConfig converts the loaded settings into a logging.Config.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
