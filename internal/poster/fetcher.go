// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// Defaults for Options.
const (
	DefaultBaseURL         = "https://api.themoviedb.org/3"
	DefaultImageBaseURL    = "https://image.tmdb.org/t/p/w500"
	DefaultTimeout         = 5 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = time.Second
	DefaultRateLimit       = 40
	DefaultRateBurst       = 10
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second

	// maxBodyBytes caps a movie details response.
	maxBodyBytes = 1 << 20

	cacheName = "poster"
)

// ErrNoAPIKey is returned by NewFetcher when APIKey is empty.
var ErrNoAPIKey = errors.New("poster: TMDB API key is required")

// errThrottled marks a lookup that never reached TMDB because the client-side
// rate limiter could not admit it in time.
var errThrottled = errors.New("rate limiter")

// HTTPStatusError is a non-2xx TMDB response.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Options configures a Fetcher. Zero values take the defaults above.
type Options struct {
	BaseURL      string
	ImageBaseURL string
	APIKey       string

	// HTTPClient is used for every attempt. Per-attempt deadlines come from
	// Timeout, not from the client.
	HTTPClient *http.Client
	Timeout    time.Duration

	// MaxAttempts counts the first request. Waits between attempts are
	// BackoffBase, 2*BackoffBase, 4*BackoffBase... With the default of 3
	// only the 1s and 2s waits occur; the 4s wait needs MaxAttempts >= 4.
	MaxAttempts int
	BackoffBase time.Duration

	// RateLimit is requests per second; negative disables limiting.
	RateLimit float64
	RateBurst int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	CacheSize int

	// Store is optional.
	Store Store
}

// DefaultOptions returns Options filled with defaults and no API key.
func DefaultOptions() Options {
	return Options{
		BaseURL:         DefaultBaseURL,
		ImageBaseURL:    DefaultImageBaseURL,
		Timeout:         DefaultTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		BackoffBase:     DefaultBackoffBase,
		RateLimit:       DefaultRateLimit,
		RateBurst:       DefaultRateBurst,
		BreakerFailures: DefaultBreakerFailures,
		BreakerTimeout:  DefaultBreakerTimeout,
		CacheSize:       cache.DefaultCapacity,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.ImageBaseURL == "" {
		o.ImageBaseURL = d.ImageBaseURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.RateLimit == 0 {
		o.RateLimit = d.RateLimit
	}
	if o.RateBurst <= 0 {
		o.RateBurst = d.RateBurst
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = d.BreakerFailures
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = d.BreakerTimeout
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
}

// Fetcher resolves poster URLs. Safe for concurrent use.
type Fetcher struct {
	opts    Options
	cache   *cache.LRU[int, Poster]
	group   singleflight.Group
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewFetcher builds a Fetcher.
func NewFetcher(opts Options) (*Fetcher, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	opts.applyDefaults()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}

	c := cache.NewLRU[int, Poster](opts.CacheSize)
	c.OnEvict(func(int, Poster) {
		metrics.CacheEvictions.WithLabelValues(cacheName).Inc()
	})

	return &Fetcher{
		opts:    opts,
		cache:   c,
		limiter: limiter,
		breaker: newBreaker(opts.BreakerFailures, opts.BreakerTimeout),
	}, nil
}

// FetchPoster returns a displayable URL for movieID. It never fails.
func (f *Fetcher) FetchPoster(ctx context.Context, movieID int) string {
	return f.Resolve(ctx, movieID).URL
}

// Resolve returns the poster for movieID and how it was classified.
//
// Concurrent callers for the same id share one lookup. The shared lookup is
// detached from the caller that started it, so a caller giving up only ends
// its own wait. Results are cached whatever their status, except lookups cut
// short by the flight deadline or the rate limiter.
func (f *Fetcher) Resolve(ctx context.Context, movieID int) Poster {
	if p, ok := f.cache.Get(movieID); ok {
		metrics.RecordCacheLookup(cacheName, true)
		metrics.RecordPosterResolution(string(p.Status), "cache")
		return p
	}
	metrics.RecordCacheLookup(cacheName, false)

	if err := ctx.Err(); err != nil {
		return failed(fmt.Errorf("poster lookup for movie %d: %w", movieID, err))
	}

	ch := f.group.DoChan(strconv.Itoa(movieID), func() (interface{}, error) {
		// Another flight may have filled the cache while we queued.
		if p, ok := f.cache.Peek(movieID); ok {
			return p, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.flightTimeout())
		defer cancel()

		p, source := f.lookup(fctx, movieID)
		metrics.RecordPosterResolution(string(p.Status), source)
		if p.Status == StatusError && (fctx.Err() != nil || errors.Is(p.Err, errThrottled)) {
			return p, nil
		}
		f.cache.Add(movieID, p)
		metrics.CacheSize.WithLabelValues(cacheName).Set(float64(f.cache.Len()))
		return p, nil
	})

	select {
	case r := <-ch:
		return r.Val.(Poster)
	case <-ctx.Done():
		return failed(fmt.Errorf("poster lookup for movie %d: %w", movieID, ctx.Err()))
	}
}

// flightTimeout bounds a shared lookup: every attempt at full Timeout, every
// backoff wait, and one more Timeout for the rate limiter.
func (f *Fetcher) flightTimeout() time.Duration {
	total := time.Duration(f.opts.MaxAttempts+1) * f.opts.Timeout
	wait := f.opts.BackoffBase
	for i := 1; i < f.opts.MaxAttempts; i++ {
		total += wait
		wait *= 2
	}
	return total
}

func (f *Fetcher) lookup(ctx context.Context, movieID int) (Poster, string) {
	if f.opts.Store != nil {
		u, ok, err := f.opts.Store.Get(ctx, movieID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("movie_id", movieID).Msg("Poster store read failed")
		} else if ok {
			return Poster{URL: u, Status: StatusOK}, "store"
		}
	}

	p := f.fetch(ctx, movieID)
	if p.Status == StatusError {
		logging.Ctx(ctx).Error().Err(p.Err).Int("movie_id", movieID).Msg("Network error fetching poster")
		return p, "network"
	}

	if p.Status == StatusOK && f.opts.Store != nil {
		if err := f.opts.Store.Put(ctx, movieID, p.URL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("movie_id", movieID).Msg("Poster store write failed")
		}
	}
	return p, "network"
}

// fetch asks TMDB for the movie details and classifies the answer.
func (f *Fetcher) fetch(ctx context.Context, movieID int) Poster {
	body, err := f.breaker.Execute(func() ([]byte, error) {
		return f.getWithRetry(ctx, movieID)
	})
	recordBreakerResult(err)
	if err != nil {
		if isRejected(err) {
			err = fmt.Errorf("TMDB circuit open: %w", err)
		}
		return failed(err)
	}
	return classify(body, f.opts.ImageBaseURL)
}

// getWithRetry performs up to MaxAttempts GETs. Transport errors, attempt
// timeouts, 500, 502, 503 and 504 are retried; other statuses and a done ctx
// end the loop at once.
func (f *Fetcher) getWithRetry(ctx context.Context, movieID int) ([]byte, error) {
	attempts := 0
	defer func() { metrics.TMDBAttempts.Observe(float64(attempts)) }()

	op := func() ([]byte, error) {
		attempts++
		if err := f.wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		body, status, err := f.get(ctx, movieID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if status >= 200 && status <= 299 {
			return body, nil
		}
		if retryableStatus(status) {
			return nil, &HTTPStatusError{Code: status}
		}
		return nil, backoff.Permanent(&HTTPStatusError{Code: status})
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = f.opts.BackoffBase << (f.opts.MaxAttempts - 1)

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(f.opts.MaxAttempts)), //nolint:gosec // MaxAttempts > 0 after defaults
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Ctx(ctx).Warn().
				Err(err).
				Int("movie_id", movieID).
				Int("attempt", attempts).
				Dur("retry_delay", next).
				Msg("TMDB request failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch movie %d after %d attempt(s): %w", movieID, attempts, err)
	}
	return body, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// wait blocks on the client-side rate limiter.
func (f *Fetcher) wait(ctx context.Context) error {
	start := time.Now()
	err := f.limiter.Wait(ctx)
	metrics.TMDBRateLimitWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %w", errThrottled, err)
	}
	return nil
}

// get performs one attempt bounded by Timeout. The returned error never
// contains the request URL, which carries the API key.
func (f *Fetcher) get(ctx context.Context, movieID int) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("api_key", f.opts.APIKey)
	endpoint := fmt.Sprintf("%s/movie/%d?%s", f.opts.BaseURL, movieID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.opts.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordTMDBAttempt(0, time.Since(start))
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, fmt.Errorf("GET /movie/%d: %w", movieID, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.RecordTMDBAttempt(resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read /movie/%d body: %w", movieID, err)
	}
	return body, resp.StatusCode, nil
}

// Stats returns poster cache statistics.
func (f *Fetcher) Stats() cache.Stats {
	return f.cache.Stats()
}

// BreakerState reports the TMDB circuit breaker state.
func (f *Fetcher) BreakerState() string {
	return stateToString(f.breaker.State())
}
