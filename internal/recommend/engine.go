// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package recommend ranks catalog movies by precomputed similarity to a
// selected title and attaches poster artwork to the results.
//
// # Ranking
//
// For a query title the engine finds the first catalog entry with exactly
// that title, pairs every index of its similarity row with its score, and
// stable-sorts descending so ties keep catalog order. The default
// ExcludePosition mode then skips sorted position 0 (assumed to be the query
// itself) and returns the next N. ExcludeIdentity instead removes the query
// index wherever it landed.
//
// # Thread Safety
//
// Engine and Service hold only immutable state plus concurrency-safe
// collaborators and may be shared across goroutines.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// ErrTitleNotFound is returned when no catalog entry has the requested title.
var ErrTitleNotFound = errors.New("movie not found in database")

// DefaultTopN is the number of recommendations returned by default.
const DefaultTopN = 5

// ExcludeMode selects how the query movie is kept out of its own results.
type ExcludeMode string

const (
	// ExcludePosition skips the first sorted position.
	ExcludePosition ExcludeMode = "position"
	// ExcludeIdentity drops the query index wherever it ranks.
	ExcludeIdentity ExcludeMode = "identity"
)

// Config holds engine settings.
type Config struct {
	TopN        int
	ExcludeMode ExcludeMode
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{TopN: DefaultTopN, ExcludeMode: ExcludePosition}
}

// Neighbor is one ranked result.
type Neighbor struct {
	Index   int     `json:"-"`
	MovieID int     `json:"movie_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Engine answers nearest-neighbor queries over the similarity matrix.
type Engine struct {
	catalog *catalog.Catalog
	matrix  *catalog.Matrix
	cfg     Config
}

// NewEngine wires an engine to a loaded catalog and matrix.
func NewEngine(c *catalog.Catalog, m *catalog.Matrix, cfg Config) (*Engine, error) {
	if c == nil || m == nil {
		return nil, errors.New("recommend: catalog and matrix are required")
	}
	if m.Dim() != c.Len() {
		return nil, fmt.Errorf("%w: catalog has %d movies, matrix is %dx%d",
			catalog.ErrDimensionMismatch, c.Len(), m.Dim(), m.Dim())
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	switch cfg.ExcludeMode {
	case ExcludePosition, ExcludeIdentity:
	case "":
		cfg.ExcludeMode = ExcludePosition
	default:
		return nil, fmt.Errorf("recommend: unknown exclude mode %q", cfg.ExcludeMode)
	}
	return &Engine{catalog: c, matrix: m, cfg: cfg}, nil
}

// TopN returns the configured result count.
func (e *Engine) TopN() int {
	return e.cfg.TopN
}

// Catalog returns the catalog the engine ranks over.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Recommend returns the titles and movie ids of the TopN most similar movies.
// An unknown title logs one warning and returns two empty slices with
// ErrTitleNotFound.
func (e *Engine) Recommend(title string) ([]string, []int, error) {
	neighbors, err := e.Ranked(context.Background(), title, e.cfg.TopN)
	if err != nil {
		return []string{}, []int{}, err
	}

	titles := make([]string, len(neighbors))
	ids := make([]int, len(neighbors))
	for i, n := range neighbors {
		titles[i] = n.Title
		ids[i] = n.MovieID
	}
	return titles, ids, nil
}

// Ranked returns up to n neighbors of title with their scores. Fewer are
// returned when the catalog is too small; a single-movie catalog yields none.
func (e *Engine) Ranked(ctx context.Context, title string, n int) ([]Neighbor, error) {
	start := time.Now()

	query, ok := e.catalog.IndexOf(title)
	if !ok {
		metrics.RecordRecommendation(time.Since(start), false)
		logging.Ctx(ctx).Warn().Str("title", title).Msg("movie not found in database")
		return []Neighbor{}, ErrTitleNotFound
	}

	order := rankRow(e.matrix.Row(query))
	order = e.exclude(order, query)
	if n < 0 {
		n = 0
	}
	if len(order) > n {
		order = order[:n]
	}

	neighbors := make([]Neighbor, len(order))
	for i, idx := range order {
		m := e.catalog.At(idx)
		neighbors[i] = Neighbor{
			Index:   idx,
			MovieID: m.ID,
			Title:   m.Title,
			Score:   e.matrix.At(query, idx),
		}
	}

	metrics.RecordRecommendation(time.Since(start), true)
	return neighbors, nil
}

func (e *Engine) exclude(order []int, query int) []int {
	if e.cfg.ExcludeMode == ExcludeIdentity {
		for i, idx := range order {
			if idx == query {
				return append(order[:i:i], order[i+1:]...)
			}
		}
		return order
	}
	if len(order) == 0 {
		return order
	}
	return order[1:]
}

// rankRow returns row indices sorted by descending score. The sort is
// stable so equal scores keep ascending index order. NaN sorts last.
func rankRow(row []float64) []int {
	order := make([]int, len(row))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := row[order[a]], row[order[b]]
		if math.IsNaN(sa) {
			return false
		}
		if math.IsNaN(sb) {
			return true
		}
		return sa > sb
	})
	return order
}
