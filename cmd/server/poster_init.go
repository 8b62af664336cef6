// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"github.com/tomtom215/marquee/internal/api"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/poster"
	"github.com/tomtom215/marquee/internal/recommend"
)

// posterComponents holds the fetcher and its optional store. Both are nil
// when posters are disabled.
type posterComponents struct {
	fetcher *poster.Fetcher
	store   *poster.BadgerStore
}

func initPosters(cfg *config.Config) (*posterComponents, error) {
	pc := &posterComponents{}
	if !cfg.Poster.Enabled {
		logging.Info().Msg("Poster lookups disabled (POSTERS_ENABLED=false)")
		return pc, nil
	}

	opts := poster.Options{
		BaseURL:         cfg.TMDB.BaseURL,
		ImageBaseURL:    cfg.TMDB.ImageBaseURL,
		APIKey:          cfg.TMDB.APIKey,
		Timeout:         cfg.TMDB.Timeout,
		MaxAttempts:     cfg.TMDB.MaxAttempts,
		BackoffBase:     cfg.TMDB.BackoffBase,
		RateLimit:       cfg.TMDB.RateLimit,
		RateBurst:       cfg.TMDB.RateBurst,
		BreakerFailures: cfg.TMDB.BreakerFailures,
		BreakerTimeout:  cfg.TMDB.BreakerTimeout,
		CacheSize:       cfg.Poster.CacheSize,
	}

	if cfg.Poster.StorePath != "" {
		store, err := poster.OpenBadgerStore(cfg.Poster.StorePath)
		if err != nil {
			return nil, err
		}
		pc.store = store
		opts.Store = store
		logging.Info().Str("path", cfg.Poster.StorePath).Msg("Persistent poster store opened")
	}

	fetcher, err := poster.NewFetcher(opts)
	if err != nil {
		pc.Close()
		return nil, err
	}
	pc.fetcher = fetcher
	return pc, nil
}

// Resolver returns the fetcher as a recommend.PosterResolver, or an untyped
// nil when posters are disabled.
func (pc *posterComponents) Resolver() recommend.PosterResolver {
	if pc.fetcher == nil {
		return nil
	}
	return pc.fetcher
}

// API returns the fetcher as an api.PosterService, or an untyped nil when
// posters are disabled.
func (pc *posterComponents) API() api.PosterService {
	if pc.fetcher == nil {
		return nil
	}
	return pc.fetcher
}

// Close releases the store.
func (pc *posterComponents) Close() {
	if pc.store == nil {
		return
	}
	if err := pc.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing poster store")
	}
}
