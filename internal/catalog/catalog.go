// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package catalog loads the movie catalog and its pairwise similarity matrix.
//
// Both are read once at startup and never change afterwards. Row i of the
// matrix describes the movie at position i of the catalog, so the catalog
// order is significant and must match the artifact it was built with.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Sentinel errors returned by the loaders. Wrapped errors carry the detail.
var (
	ErrEmptyCatalog      = errors.New("catalog is empty")
	ErrMissingColumn     = errors.New("catalog is missing a required column")
	ErrInvalidMovieID    = errors.New("catalog contains a non-integer movie id")
	ErrDimensionMismatch = errors.New("similarity matrix does not match catalog size")
	ErrNotSquare         = errors.New("similarity matrix is not square")
)

// Movie is one catalog entry. ID is the TMDB movie id.
type Movie struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Catalog is an ordered, immutable list of movies.
type Catalog struct {
	movies  []Movie
	byTitle map[string]int // first index for each exact title
}

// NewCatalog builds a catalog from movies in index order.
func NewCatalog(movies []Movie) (*Catalog, error) {
	if len(movies) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		movies:  make([]Movie, len(movies)),
		byTitle: make(map[string]int, len(movies)),
	}
	copy(c.movies, movies)
	for i, m := range c.movies {
		if _, seen := c.byTitle[m.Title]; !seen {
			c.byTitle[m.Title] = i
		}
	}
	return c, nil
}

// LoadCatalog reads a catalog CSV file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	c, err := ParseCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog reads CSV with a header row containing id and title columns.
// Header names are matched case-insensitively, other columns are ignored,
// and a blank leading column (a dataframe index) is tolerated.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, titleCol := -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch {
		case name == "id" && idCol < 0:
			idCol = i
		case name == "title" && titleCol < 0:
			titleCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: id", ErrMissingColumn)
	}
	if titleCol < 0 {
		return nil, fmt.Errorf("%w: title", ErrMissingColumn)
	}

	var movies []Movie
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if idCol >= len(rec) || titleCol >= len(rec) {
			return nil, fmt.Errorf("row %d: expected at least %d fields, got %d", line, max(idCol, titleCol)+1, len(rec))
		}

		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d value %q", ErrInvalidMovieID, line, rec[idCol])
		}
		movies = append(movies, Movie{ID: id, Title: rec[titleCol]})
	}

	return NewCatalog(movies)
}

// Len returns the number of movies.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// At returns the movie at index i. It panics if i is out of range.
func (c *Catalog) At(i int) Movie {
	return c.movies[i]
}

// IndexOf returns the index of the first movie whose title equals title exactly.
func (c *Catalog) IndexOf(title string) (int, bool) {
	i, ok := c.byTitle[title]
	return i, ok
}

// Titles returns all titles in catalog order.
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.movies))
	for i, m := range c.movies {
		titles[i] = m.Title
	}
	return titles
}

// Search returns a page of movies whose title contains query
// (case-insensitive; empty query matches everything) and the total match count.
func (c *Catalog) Search(query string, limit, offset int) ([]Movie, int) {
	q := strings.ToLower(strings.TrimSpace(query))

	var matches []Movie
	if q == "" {
		matches = c.movies
	} else {
		for _, m := range c.movies {
			if strings.Contains(strings.ToLower(m.Title), q) {
				matches = append(matches, m)
			}
		}
	}

	total := len(matches)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Movie{}, total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	page := make([]Movie, end-offset)
	copy(page, matches[offset:end])
	return page, total
}
