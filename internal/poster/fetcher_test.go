// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/marquee/internal/metrics"
)

const testAPIKey = "test-key-123"

// tmdbServer fakes the movie details endpoint and counts requests.
func tmdbServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func jsonBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestFetcher(t *testing.T, baseURL string, mutate func(*Options)) *Fetcher {
	t.Helper()
	opts := DefaultOptions()
	opts.APIKey = testAPIKey
	opts.BaseURL = baseURL
	opts.BackoffBase = time.Millisecond
	opts.RateLimit = -1
	if mutate != nil {
		mutate(&opts)
	}
	f, err := NewFetcher(opts)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	return f
}

func TestNewFetcher_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewFetcher(Options{APIKey: "  "}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("NewFetcher() error = %v, want ErrNoAPIKey", err)
	}
}

func TestFetcher_RequestShape(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	srv, _ := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		jsonBody(http.StatusOK, `{"poster_path":"/p.jpg"}`)(w, r)
	})

	f := newTestFetcher(t, srv.URL+"/3/", nil)
	got := f.FetchPoster(context.Background(), 19995)

	if gotPath != "/3/movie/19995" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != testAPIKey {
		t.Errorf("api_key = %q", gotKey)
	}
	if got != "https://image.tmdb.org/t/p/w500/p.jpg" {
		t.Errorf("FetchPoster() = %q", got)
	}
}

func TestFetcher_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantURL    string
		wantStatus Status
		wantHits   int32
	}{
		{"ok", jsonBody(200, `{"poster_path":"/a.jpg"}`), "https://image.tmdb.org/t/p/w500/a.jpg", StatusOK, 1},
		{"null path", jsonBody(200, `{"poster_path":null}`), NotFoundURL, StatusNotFound, 1},
		{"empty path", jsonBody(200, `{"poster_path":""}`), NotFoundURL, StatusNotFound, 1},
		{"missing path", jsonBody(200, `{"title":"x"}`), NotFoundURL, StatusNotFound, 1},
		{"array body", jsonBody(200, `[1,2]`), InvalidResponseURL, StatusInvalidResponse, 1},
		{"numeric path", jsonBody(200, `{"poster_path":7}`), InvalidResponseURL, StatusInvalidResponse, 1},
		{"404 is not retried", jsonBody(404, `{"status_code":34}`), ErrorURL, StatusError, 1},
		{"401 is not retried", jsonBody(401, `{"status_code":7}`), ErrorURL, StatusError, 1},
		{"429 is not retried", jsonBody(429, `{}`), ErrorURL, StatusError, 1},
		{"500 exhausts retries", jsonBody(500, `{}`), ErrorURL, StatusError, 3},
		{"502 exhausts retries", jsonBody(502, `{}`), ErrorURL, StatusError, 3},
		{"503 exhausts retries", jsonBody(503, `{}`), ErrorURL, StatusError, 3},
		{"504 exhausts retries", jsonBody(504, `{}`), ErrorURL, StatusError, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, hits := tmdbServer(t, tt.handler)
			f := newTestFetcher(t, srv.URL, nil)

			p := f.Resolve(context.Background(), 1)
			if p.URL != tt.wantURL || p.Status != tt.wantStatus {
				t.Errorf("Resolve() = %q/%s, want %q/%s", p.URL, p.Status, tt.wantURL, tt.wantStatus)
			}
			if (p.Err != nil) != (tt.wantStatus == StatusError) {
				t.Errorf("Err = %v for status %s", p.Err, p.Status)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("attempts = %d, want %d", got, tt.wantHits)
			}
		})
	}
}

func TestFetcher_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	srv, hits := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 3 {
			jsonBody(http.StatusServiceUnavailable, `{}`)(w, r)
			return
		}
		jsonBody(http.StatusOK, `{"poster_path":"/late.jpg"}`)(w, r)
	})

	f := newTestFetcher(t, srv.URL, nil)
	p := f.Resolve(context.Background(), 5)
	if p.Status != StatusOK || !strings.HasSuffix(p.URL, "/late.jpg") {
		t.Errorf("Resolve() = %+v", p)
	}
	if hits.Load() != 3 {
		t.Errorf("attempts = %d, want 3", hits.Load())
	}
}

func TestFetcher_BackoffGrows(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var stamps []time.Time
	srv, _ := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		jsonBody(http.StatusServiceUnavailable, `{}`)(w, r)
	})

	const base = 40 * time.Millisecond
	f := newTestFetcher(t, srv.URL, func(o *Options) { o.BackoffBase = base })
	if p := f.Resolve(context.Background(), 9); p.Status != StatusError {
		t.Fatalf("Resolve() status = %s", p.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("attempts = %d, want 3", len(stamps))
	}
	first, second := stamps[1].Sub(stamps[0]), stamps[2].Sub(stamps[1])
	if first < base {
		t.Errorf("first wait %v < %v", first, base)
	}
	if second < 2*base {
		t.Errorf("second wait %v < %v", second, 2*base)
	}
}

type countingTransport struct {
	calls atomic.Int32
	err   error
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, c.err
}

func TestFetcher_TransportErrorRetried(t *testing.T) {
	t.Parallel()

	rt := &countingTransport{err: errors.New("connection refused")}
	f := newTestFetcher(t, "http://tmdb.invalid/3", func(o *Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})

	p := f.Resolve(context.Background(), 11)
	if p.URL != ErrorURL || p.Status != StatusError {
		t.Fatalf("Resolve() = %+v", p)
	}
	if rt.calls.Load() != DefaultMaxAttempts {
		t.Errorf("transport calls = %d, want %d", rt.calls.Load(), DefaultMaxAttempts)
	}
	if strings.Contains(p.Err.Error(), testAPIKey) {
		t.Errorf("error leaks API key: %v", p.Err)
	}
	if !strings.Contains(p.Err.Error(), "connection refused") {
		t.Errorf("error lost its cause: %v", p.Err)
	}
}

func TestFetcher_AttemptTimeoutRetried(t *testing.T) {
	t.Parallel()

	srv, hits := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
			jsonBody(http.StatusOK, `{"poster_path":"/slow.jpg"}`)(w, r)
		case <-r.Context().Done():
		}
	})
	f := newTestFetcher(t, srv.URL, func(o *Options) { o.Timeout = 100 * time.Millisecond })

	p := f.Resolve(context.Background(), 12)
	if p.Status != StatusError || !strings.Contains(p.Err.Error(), "deadline exceeded") {
		t.Fatalf("Resolve() = %+v", p)
	}
	if hits.Load() != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", hits.Load(), DefaultMaxAttempts)
	}
}

func TestFetcher_TransientTransportErrorRecovers(t *testing.T) {
	t.Parallel()

	srv, _ := tmdbServer(t, jsonBody(http.StatusOK, `{"poster_path":"/back.jpg"}`))
	rt := &flakyTransport{failures: 1, next: http.DefaultTransport}
	f := newTestFetcher(t, srv.URL, func(o *Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})

	p := f.Resolve(context.Background(), 13)
	if p.Status != StatusOK || !strings.HasSuffix(p.URL, "/back.jpg") {
		t.Errorf("Resolve() = %+v", p)
	}
	if rt.calls.Load() != 2 {
		t.Errorf("transport calls = %d, want 2", rt.calls.Load())
	}
}

// flakyTransport fails its first failures round trips, then delegates.
type flakyTransport struct {
	calls    atomic.Int32
	failures int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(r)
}

func TestFetcher_CachesEveryOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"ok", jsonBody(200, `{"poster_path":"/a.jpg"}`)},
		{"not found", jsonBody(200, `{"poster_path":null}`)},
		{"invalid", jsonBody(200, `[]`)},
		{"error", jsonBody(404, `{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, hits := tmdbServer(t, tt.handler)
			f := newTestFetcher(t, srv.URL, nil)

			first := f.Resolve(context.Background(), 77)
			second := f.Resolve(context.Background(), 77)
			if first.URL != second.URL || first.Status != second.Status {
				t.Errorf("cached result differs: %+v vs %+v", first, second)
			}
			if hits.Load() != 1 {
				t.Errorf("requests = %d, want 1", hits.Load())
			}
			if s := f.Stats(); s.Hits != 1 || s.Size != 1 {
				t.Errorf("Stats() = %+v", s)
			}
		})
	}
}

func TestFetcher_CanceledLookupNotCached(t *testing.T) {
	t.Parallel()

	srv, hits := tmdbServer(t, jsonBody(http.StatusOK, `{"poster_path":"/a.jpg"}`))
	f := newTestFetcher(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if p := f.Resolve(ctx, 3); p.Status != StatusError {
		t.Fatalf("Resolve(canceled) status = %s", p.Status)
	}

	if p := f.Resolve(context.Background(), 3); p.Status != StatusOK {
		t.Fatalf("Resolve() after cancel = %+v", p)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

func TestFetcher_SingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv, hits := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonBody(http.StatusOK, `{"poster_path":"/shared.jpg"}`)(w, r)
	})
	f := newTestFetcher(t, srv.URL, nil)

	const callers = 16
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.FetchPoster(context.Background(), 42)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
	for i, u := range results {
		if !strings.HasSuffix(u, "/shared.jpg") {
			t.Errorf("caller %d got %q", i, u)
		}
	}
}

func TestFetcher_CallerCancelDoesNotFailSharedLookup(t *testing.T) {
	t.Parallel()

	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv, hits := tmdbServer(t, func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		jsonBody(http.StatusOK, `{"poster_path":"/shared.jpg"}`)(w, r)
	})
	f := newTestFetcher(t, srv.URL, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan Poster, 1)
	go func() { resA <- f.Resolve(ctxA, 42) }()
	<-arrived

	resB := make(chan Poster, 1)
	go func() { resB <- f.Resolve(context.Background(), 42) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	a := <-resA
	if a.Status != StatusError || !errors.Is(a.Err, context.Canceled) {
		t.Errorf("canceled caller got %+v", a)
	}

	close(release)
	b := <-resB
	if b.Status != StatusOK || !strings.HasSuffix(b.URL, "/shared.jpg") {
		t.Errorf("live caller got %+v", b)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
	if p := f.Resolve(context.Background(), 42); p.Status != StatusOK {
		t.Errorf("cached result = %+v", p)
	}
}

func TestFetcher_BreakerOpens(t *testing.T) {
	t.Parallel()

	srv, hits := tmdbServer(t, jsonBody(http.StatusInternalServerError, `{}`))
	f := newTestFetcher(t, srv.URL, func(o *Options) {
		o.MaxAttempts = 1
		o.BreakerFailures = 2
		o.BreakerTimeout = time.Hour
	})

	for id := 1; id <= 2; id++ {
		if p := f.Resolve(context.Background(), id); p.Status != StatusError {
			t.Fatalf("Resolve(%d) status = %s", id, p.Status)
		}
	}
	if f.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %s, want open", f.BreakerState())
	}

	p := f.Resolve(context.Background(), 3)
	if p.URL != ErrorURL {
		t.Errorf("rejected Resolve() = %q", p.URL)
	}
	if hits.Load() != 2 {
		t.Errorf("requests = %d, want 2 (open circuit must not call TMDB)", hits.Load())
	}
}

func TestFetcher_ClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	srv, _ := tmdbServer(t, jsonBody(http.StatusNotFound, `{}`))
	f := newTestFetcher(t, srv.URL, func(o *Options) { o.BreakerFailures = 2 })

	for id := 1; id <= 5; id++ {
		f.Resolve(context.Background(), id)
	}
	if f.BreakerState() != "closed" {
		t.Errorf("BreakerState() = %s, want closed", f.BreakerState())
	}
}

func TestFetcher_RateLimitDeadline(t *testing.T) {
	t.Parallel()

	srv, hits := tmdbServer(t, jsonBody(http.StatusOK, `{"poster_path":"/a.jpg"}`))
	f := newTestFetcher(t, srv.URL, func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 1
	})

	if p := f.Resolve(context.Background(), 1); p.Status != StatusOK {
		t.Fatalf("first Resolve() = %+v", p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p := f.Resolve(ctx, 2)
	if p.Status != StatusError || !strings.Contains(p.Err.Error(), "rate limiter") {
		t.Errorf("throttled Resolve() = %+v", p)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
	if s := f.Stats(); s.Size != 1 {
		t.Errorf("throttled lookup was cached: Stats() = %+v", s)
	}
}

func TestFetcher_EvictionMetric(t *testing.T) {
	t.Parallel()

	srv, _ := tmdbServer(t, jsonBody(http.StatusOK, `{"poster_path":"/a.jpg"}`))
	f := newTestFetcher(t, srv.URL, func(o *Options) { o.CacheSize = 1 })

	before := testutil.ToFloat64(metrics.CacheEvictions.WithLabelValues(cacheName))
	f.Resolve(context.Background(), 1)
	f.Resolve(context.Background(), 2)
	after := testutil.ToFloat64(metrics.CacheEvictions.WithLabelValues(cacheName))

	if after < before+1 {
		t.Errorf("evictions went from %v to %v", before, after)
	}
	if s := f.Stats(); s.Size != 1 || s.Evictions != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}
