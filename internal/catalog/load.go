// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package catalog

import (
	"fmt"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// Load reads the catalog and similarity artifact and checks that they line up.
// Any error is fatal for startup; nothing is returned on partial success.
func Load(catalogPath, similarityPath string) (*Catalog, *Matrix, error) {
	start := time.Now()
	c, err := LoadCatalog(catalogPath)
	if err != nil {
		return nil, nil, err
	}

	m, meta, err := LoadMatrix(similarityPath)
	if err != nil {
		return nil, nil, err
	}

	if m.Dim() != c.Len() {
		return nil, nil, fmt.Errorf("%w: catalog has %d movies, matrix is %dx%d",
			ErrDimensionMismatch, c.Len(), m.Dim(), m.Dim())
	}

	metrics.CatalogSize.Set(float64(c.Len()))
	logging.Info().
		Int("movies", c.Len()).
		Str("artifact", meta.Name).
		Time("artifact_saved_at", meta.SavedAt).
		Str("checksum", meta.Checksum).
		Dur("duration", time.Since(start)).
		Msg("Catalog and similarity matrix loaded")

	return c, m, nil
}
