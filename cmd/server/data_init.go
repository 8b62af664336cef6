// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/recommend"
)

// initEngine makes sure the similarity artifact exists, loads it with the
// catalog, and builds the engine. Any error is fatal for the caller.
func initEngine(ctx context.Context, cfg *config.Config) (*recommend.Engine, error) {
	boot := &catalog.Bootstrapper{Timeout: cfg.Data.DownloadTimeout}
	outcome, err := boot.EnsureArtifact(ctx, cfg.Data.SimilarityPath, cfg.Data.SimilarityURL, cfg.Data.SimilaritySHA256)
	if err != nil {
		return nil, fmt.Errorf("similarity artifact: %w", err)
	}
	logging.Debug().Str("artifact", string(outcome)).Msg("Similarity artifact ready")

	c, m, err := catalog.Load(cfg.Data.CatalogPath, cfg.Data.SimilarityPath)
	if err != nil {
		return nil, err
	}

	return recommend.NewEngine(c, m, recommend.Config{
		TopN:        cfg.Recommend.TopN,
		ExcludeMode: recommend.ExcludeMode(cfg.Recommend.ExcludeMode),
	})
}
