// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/marquee/internal/poster"
)

// NotFoundMessage is the user-facing text for an unknown title.
const NotFoundMessage = "Movie not found in database!"

// DefaultMaxParallelPosters bounds concurrent poster lookups per request.
const DefaultMaxParallelPosters = 8

// PosterResolver resolves a movie id to artwork. *poster.Fetcher satisfies it.
type PosterResolver interface {
	Resolve(ctx context.Context, movieID int) poster.Poster
}

// Recommendation is one ranked movie with its artwork.
type Recommendation struct {
	MovieID      int           `json:"movie_id"`
	Title        string        `json:"title"`
	Score        float64       `json:"score"`
	PosterURL    string        `json:"poster_url"`
	PosterStatus poster.Status `json:"poster_status"`
}

// Result is the answer to one recommendation request.
type Result struct {
	Query    string           `json:"query"`
	Items    []Recommendation `json:"items"`
	Warnings []string         `json:"warnings"`
}

// Titles returns item titles in rank order.
func (r *Result) Titles() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Title
	}
	return out
}

// PosterURLs returns item poster URLs in rank order. Always the same length
// as Titles.
func (r *Result) PosterURLs() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.PosterURL
	}
	return out
}

// ServiceConfig controls poster resolution.
type ServiceConfig struct {
	// ParallelPosters resolves posters concurrently instead of one by one.
	ParallelPosters bool
	// MaxParallel caps concurrent lookups when ParallelPosters is set.
	MaxParallel int64
}

// Service combines the engine with poster resolution.
type Service struct {
	engine  *Engine
	posters PosterResolver
	cfg     ServiceConfig
}

// NewService builds a Service. posters may be nil, in which case every item
// carries the not-found placeholder.
func NewService(engine *Engine, posters PosterResolver, cfg ServiceConfig) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallelPosters
	}
	return &Service{engine: engine, posters: posters, cfg: cfg}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Recommend ranks neighbors of title and attaches a poster to each.
//
// An unknown title returns a Result with no items, the not-found message as
// its only warning, and ErrTitleNotFound. Poster failures never fail the
// request; network errors are reported in Warnings.
func (s *Service) Recommend(ctx context.Context, title string) (*Result, error) {
	res := &Result{Query: title, Items: []Recommendation{}, Warnings: []string{}}

	neighbors, err := s.engine.Ranked(ctx, title, s.engine.TopN())
	if err != nil {
		if errors.Is(err, ErrTitleNotFound) {
			res.Warnings = append(res.Warnings, NotFoundMessage)
		}
		return res, err
	}

	res.Items = make([]Recommendation, len(neighbors))
	for i, n := range neighbors {
		res.Items[i] = Recommendation{MovieID: n.MovieID, Title: n.Title, Score: n.Score}
	}

	posters := s.resolvePosters(ctx, neighbors)
	for i, p := range posters {
		res.Items[i].PosterURL = p.URL
		res.Items[i].PosterStatus = p.Status
		if p.Status == poster.StatusError {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("Network error fetching poster for ID %d: %v", neighbors[i].MovieID, p.Err))
		}
	}
	return res, nil
}

func (s *Service) resolvePosters(ctx context.Context, neighbors []Neighbor) []poster.Poster {
	out := make([]poster.Poster, len(neighbors))

	if s.posters == nil {
		for i := range out {
			out[i] = poster.Poster{URL: poster.NotFoundURL, Status: poster.StatusNotFound}
		}
		return out
	}

	if !s.cfg.ParallelPosters || len(neighbors) < 2 {
		for i, n := range neighbors {
			out[i] = s.posters.Resolve(ctx, n.MovieID)
		}
		return out
	}

	sem := semaphore.NewWeighted(s.cfg.MaxParallel)
	var wg sync.WaitGroup
	for i, n := range neighbors {
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i] = poster.Poster{URL: poster.ErrorURL, Status: poster.StatusError, Err: err}
			continue
		}
		wg.Add(1)
		go func(i, movieID int) {
			defer wg.Done()
			defer sem.Release(1)
			out[i] = s.posters.Resolve(ctx, movieID)
		}(i, n.MovieID)
	}
	wg.Wait()
	return out
}
