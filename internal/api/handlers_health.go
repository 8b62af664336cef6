// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/cache"
)

// ReadyStatus is the payload of the readiness probe.
type ReadyStatus struct {
	Status         string       `json:"status"` // "ready" or "degraded"
	Version        string       `json:"version"`
	CatalogSize    int          `json:"catalog_size"`
	PostersEnabled bool         `json:"posters_enabled"`
	PosterCache    *cache.Stats `json:"poster_cache,omitempty"`
	BreakerState   string       `json:"breaker_state,omitempty"`
	Uptime         float64      `json:"uptime_seconds"`
}

// HealthLive handles GET /api/v1/health/live. It answers 200 whenever the
// process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready.
//
// The catalog and matrix are loaded before the server starts, so the service
// is always ready once it answers. An open TMDB circuit reports "degraded"
// because recommendations still work with placeholder artwork.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := ReadyStatus{
		Status:         "ready",
		Version:        h.version,
		CatalogSize:    h.catalog.Len(),
		PostersEnabled: h.posters != nil,
		Uptime:         time.Since(h.startTime).Seconds(),
	}

	if h.posters != nil {
		stats := h.posters.Stats()
		status.PosterCache = &stats
		status.BreakerState = h.posters.BreakerState()
		if status.BreakerState == "open" {
			status.Status = "degraded"
		}
	}

	WriteSuccess(w, r, status)
}
