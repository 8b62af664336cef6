// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

// DefaultMoviesLimit is the page size when limit is absent.
const DefaultMoviesLimit = 50

// MoviesRequest is the validated query of GET /api/v1/movies.
type MoviesRequest struct {
	Query  string `query:"q" validate:"max=200"`
	Limit  int    `query:"limit" validate:"min=1,max=1000"`
	Offset int    `query:"offset" validate:"gte=0"`
}

// RecommendationsRequest is the validated query of GET /api/v1/recommendations.
type RecommendationsRequest struct {
	Title string `query:"title" validate:"required,max=500"`
}

// PosterRequest is the validated path of GET /api/v1/posters/{movieID}.
type PosterRequest struct {
	MovieID int `query:"movieID" validate:"gt=0"`
}
