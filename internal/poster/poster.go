// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package poster resolves TMDB movie ids to poster image URLs.
//
// Resolution never fails from the caller's point of view: every failure path
// maps to one of three placeholder URLs, and the classification is reported
// alongside in Poster.Status. Results are memoized in a bounded LRU for the
// life of the process, so a movie whose lookup failed is not retried until
// it is evicted.
//
// # Resilience
//
// Outbound calls go through, in order: a client-side token bucket
// (golang.org/x/time/rate), a circuit breaker (sony/gobreaker), and an
// exponential retry loop (cenkalti/backoff) that only retries 500, 502, 503
// and 504 responses. Concurrent lookups for the same id share one request.
package poster

import (
	"strings"

	"github.com/goccy/go-json"
)

// Placeholder URLs returned instead of a real poster.
const (
	NotFoundURL        = "https://via.placeholder.com/500x750?text=Poster+Not+Found"
	ErrorURL           = "https://via.placeholder.com/500x750?text=Error+Loading+Poster"
	InvalidResponseURL = "https://via.placeholder.com/500x750?text=Invalid+API+Response"
)

// Status classifies a resolution.
type Status string

const (
	StatusOK              Status = "ok"
	StatusNotFound        Status = "not_found"
	StatusError           Status = "error"
	StatusInvalidResponse Status = "invalid_response"
)

// Poster is the outcome of resolving one movie id.
type Poster struct {
	URL    string `json:"url"`
	Status Status `json:"status"`

	// Err is set for StatusError only.
	Err error `json:"-"`
}

// IsSentinel reports whether URL is a placeholder.
func (p Poster) IsSentinel() bool {
	return p.Status != StatusOK
}

func notFound() Poster {
	return Poster{URL: NotFoundURL, Status: StatusNotFound}
}

func invalidResponse() Poster {
	return Poster{URL: InvalidResponseURL, Status: StatusInvalidResponse}
}

func failed(err error) Poster {
	return Poster{URL: ErrorURL, Status: StatusError, Err: err}
}

// classify turns a 2xx TMDB movie body into a Poster.
//
// A body that is not a JSON object, or a poster_path that is not a string,
// is an invalid response. A missing, null or empty poster_path means the
// movie has no artwork.
func classify(body []byte, imageBaseURL string) Poster {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return invalidResponse()
	}

	raw, ok := doc["poster_path"]
	if !ok || string(raw) == "null" {
		return notFound()
	}

	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return invalidResponse()
	}
	if path == "" {
		return notFound()
	}

	return Poster{URL: ImageURL(imageBaseURL, path), Status: StatusOK}
}

// ImageURL joins the image base and a TMDB poster path with exactly one slash.
func ImageURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
