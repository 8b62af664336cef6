// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package api serves the HTTP API: catalog browsing, recommendations with
// poster artwork, single poster lookups, health probes and metrics.
//
// Every JSON response uses the APIResponse envelope.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/poster"
	"github.com/tomtom215/marquee/internal/recommend"
)

// PosterService is the poster lookup surface the API needs.
// *poster.Fetcher satisfies it.
type PosterService interface {
	Resolve(ctx context.Context, movieID int) poster.Poster
	Stats() cache.Stats
	BreakerState() string
}

// Handler holds the API's dependencies.
type Handler struct {
	service   *recommend.Service
	catalog   *catalog.Catalog
	posters   PosterService
	version   string
	startTime time.Time
}

// NewHandler builds a Handler. posters is nil when poster lookups are off.
func NewHandler(service *recommend.Service, posters PosterService, version string) *Handler {
	return &Handler{
		service:   service,
		catalog:   service.Engine().Catalog(),
		posters:   posters,
		version:   version,
		startTime: time.Now(),
	}
}

// MoviesResponse is the payload of GET /api/v1/movies.
type MoviesResponse struct {
	Movies []catalog.Movie `json:"movies"`
}

// Movies handles GET /api/v1/movies?q=&limit=&offset=
//
// Lists catalog entries in catalog order, optionally filtered by a
// case-insensitive title substring.
func (h *Handler) Movies(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := intParam(r, "limit", DefaultMoviesLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	req := MoviesRequest{Query: r.URL.Query().Get("q"), Limit: limit, Offset: offset}
	if !validateRequest(rw, &req) {
		return
	}

	page, total := h.catalog.Search(req.Query, req.Limit, req.Offset)
	rw.SuccessWithPagination(MoviesResponse{Movies: page}, &PaginationMeta{
		Total:   total,
		Count:   len(page),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: req.Offset+len(page) < total,
	})
}

// RecommendationsResponse is the payload of GET /api/v1/recommendations.
// Titles and PosterURLs are parallel lists of equal length.
type RecommendationsResponse struct {
	Query      string                     `json:"query"`
	Items      []recommend.Recommendation `json:"items"`
	Titles     []string                   `json:"titles"`
	PosterURLs []string                   `json:"poster_urls"`
	Warnings   []string                   `json:"warnings"`
}

// Recommendations handles GET /api/v1/recommendations?title=T
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := RecommendationsRequest{Title: r.URL.Query().Get("title")}
	if !validateRequest(rw, &req) {
		return
	}

	res, err := h.service.Recommend(r.Context(), req.Title)
	switch {
	case errors.Is(err, recommend.ErrTitleNotFound):
		rw.ErrorWithDetails(http.StatusNotFound, ErrCodeTitleNotFound, recommend.NotFoundMessage,
			map[string]string{"query": req.Title})
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("title", sanitizeLogValue(req.Title)).Msg("Recommendation failed")
		rw.InternalError("Failed to generate recommendations")
		return
	}

	rw.Success(RecommendationsResponse{
		Query:      res.Query,
		Items:      res.Items,
		Titles:     res.Titles(),
		PosterURLs: res.PosterURLs(),
		Warnings:   res.Warnings,
	})
}

// PosterResponse is the payload of GET /api/v1/posters/{movieID}.
type PosterResponse struct {
	MovieID int           `json:"movie_id"`
	URL     string        `json:"url"`
	Status  poster.Status `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// Poster handles GET /api/v1/posters/{movieID}
func (h *Handler) Poster(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	movieID, err := strconv.Atoi(chi.URLParam(r, "movieID"))
	if err != nil {
		rw.BadRequest("movieID must be an integer")
		return
	}
	req := PosterRequest{MovieID: movieID}
	if !validateRequest(rw, &req) {
		return
	}

	if h.posters == nil {
		rw.ServiceUnavailable(ErrPostersDisabled.Error())
		return
	}

	p := h.posters.Resolve(r.Context(), req.MovieID)
	resp := PosterResponse{MovieID: req.MovieID, URL: p.URL, Status: p.Status}
	if p.Err != nil {
		resp.Error = p.Err.Error()
	}
	rw.Success(resp)
}
