// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_api_rate_limit_hits_total",
			Help: "Total number of inbound rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation Metrics
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_recommend_duration_seconds",
			Help:    "Time spent ranking neighbors for one title",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_recommend_requests_total",
			Help: "Recommendation lookups by outcome",
		},
		[]string{"result"}, // "ok", "not_found"
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_catalog_movies",
			Help: "Number of movies in the loaded catalog",
		},
	)

	// Poster Metrics
	PosterResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_poster_resolutions_total",
			Help: "Poster resolutions by final status and source",
		},
		[]string{"status", "source"}, // source: "memory", "store", "tmdb"
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_tmdb_request_duration_seconds",
			Help:    "Duration of individual TMDB HTTP attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"status_code"},
	)

	TMDBAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_tmdb_attempts_per_fetch",
			Help:    "Number of HTTP attempts needed per poster fetch",
			Buckets: []float64{1, 2, 3, 4, 5, 10},
		},
	)

	TMDBRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_tmdb_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the client-side TMDB rate limiter",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_cache_evictions_total",
			Help: "Total entries evicted because the cache was full",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Artifact Bootstrap Metrics
	ArtifactDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_artifact_downloads_total",
			Help: "Similarity artifact downloads by outcome",
		},
		[]string{"result"}, // "ok", "error", "checksum_mismatch"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records one engine lookup.
func RecordRecommendation(duration time.Duration, found bool) {
	RecommendDuration.Observe(duration.Seconds())
	if found {
		RecommendRequests.WithLabelValues("ok").Inc()
	} else {
		RecommendRequests.WithLabelValues("not_found").Inc()
	}
}

// RecordPosterResolution counts a resolved poster by status and where it came from.
func RecordPosterResolution(status, source string) {
	PosterResolutions.WithLabelValues(status, source).Inc()
}

// RecordTMDBAttempt records one HTTP attempt. statusCode 0 means the
// request never produced a response.
func RecordTMDBAttempt(statusCode int, duration time.Duration) {
	code := "transport_error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	TMDBRequestDuration.WithLabelValues(code).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}

// SetAppInfo publishes the build version.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}
