// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package main is the entry point for the Marquee server.

Marquee answers "movies like this one": given a title from the catalog it
ranks the five most similar movies from a precomputed similarity matrix and
attaches TMDB poster artwork to each.

# Startup

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Similarity artifact: downloaded once if absent, optionally SHA-256 checked
 4. Catalog and matrix: loaded into memory; any error is fatal
 5. Poster fetcher: LRU cache, rate limiter, circuit breaker, optional badger store
 6. Supervisor tree: suture v4 running the HTTP server and store GC

# Configuration

	HTTP_PORT=8501
	LOG_LEVEL=info                 # trace, debug, info, warn, error
	LOG_FORMAT=json                # json or console

	CATALOG_PATH=movies.csv
	SIMILARITY_PATH=similarity.bin
	SIMILARITY_URL=https://...     # fetched when SIMILARITY_PATH is missing
	SIMILARITY_SHA256=<hex>        # optional integrity check

	TMDB_API_KEY=<key>             # required while POSTERS_ENABLED=true
	POSTERS_ENABLED=true
	POSTER_CACHE_SIZE=512
	POSTER_STORE_PATH=/data/posters  # optional persistent poster store

	RECOMMEND_TOP_N=5

# Endpoints

	GET /api/v1/movies?q=&limit=&offset=
	GET /api/v1/recommendations?title=
	GET /api/v1/posters/{movieID}
	GET /api/v1/health/live
	GET /api/v1/health/ready
	GET /metrics

# Signals

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests for HTTP_SHUTDOWN_TIMEOUT, then the poster store is
closed.
*/
package main
