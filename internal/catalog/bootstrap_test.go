// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func sha(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

// artifactServer serves body and counts requests.
func artifactServer(t *testing.T, status int, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEnsureArtifact(t *testing.T) {
	t.Parallel()

	remote := []byte("fresh artifact bytes")
	stale := []byte("stale artifact bytes")

	tests := []struct {
		name        string
		existing    []byte // nil means no local file
		status      int
		noURL       bool
		expectHash  string
		wantOutcome BootstrapOutcome
		wantErr     error
		wantAnyErr  bool
		wantContent []byte
		wantHits    int32
	}{
		{
			name:        "present without hash is reused",
			existing:    stale,
			status:      http.StatusOK,
			wantOutcome: OutcomeReused,
			wantContent: stale,
			wantHits:    0,
		},
		{
			name:        "present with matching hash is reused",
			existing:    stale,
			status:      http.StatusOK,
			expectHash:  sha(stale),
			wantOutcome: OutcomeReused,
			wantContent: stale,
			wantHits:    0,
		},
		{
			name:        "present with mismatched hash is refreshed",
			existing:    stale,
			status:      http.StatusOK,
			expectHash:  sha(remote),
			wantOutcome: OutcomeRefreshed,
			wantContent: remote,
			wantHits:    1,
		},
		{
			name:        "absent is downloaded",
			status:      http.StatusOK,
			wantOutcome: OutcomeDownloaded,
			wantContent: remote,
			wantHits:    1,
		},
		{
			name:        "absent with matching hash is downloaded",
			status:      http.StatusOK,
			expectHash:  sha(remote),
			wantOutcome: OutcomeDownloaded,
			wantContent: remote,
			wantHits:    1,
		},
		{
			name:       "download failing hash is rejected",
			status:     http.StatusOK,
			expectHash: sha([]byte("something else")),
			wantErr:    ErrChecksumMismatch,
			wantHits:   1,
		},
		{
			name:        "refresh failing hash keeps the old file",
			existing:    stale,
			status:      http.StatusOK,
			expectHash:  sha([]byte("something else")),
			wantErr:     ErrChecksumMismatch,
			wantContent: stale,
			wantHits:    1,
		},
		{
			name:       "non-2xx is an error",
			status:     http.StatusNotFound,
			wantAnyErr: true,
			wantHits:   1,
		},
		{
			name:    "absent without url",
			noURL:   true,
			wantErr: ErrNoArtifactSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, hits := artifactServer(t, tt.status, remote)
			path := filepath.Join(t.TempDir(), "similarity.bin")
			if tt.existing != nil {
				if err := os.WriteFile(path, tt.existing, 0o600); err != nil {
					t.Fatal(err)
				}
			}
			url := srv.URL + "/similarity.bin"
			if tt.noURL {
				url = ""
			}

			b := &Bootstrapper{Client: srv.Client(), Timeout: 5 * time.Second}
			outcome, err := b.EnsureArtifact(context.Background(), path, url, tt.expectHash)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantAnyErr:
				if err == nil {
					t.Fatal("expected an error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if outcome != tt.wantOutcome {
					t.Errorf("outcome = %q, want %q", outcome, tt.wantOutcome)
				}
			}

			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("server hits = %d, want %d", got, tt.wantHits)
			}

			content, readErr := os.ReadFile(path)
			if tt.wantContent == nil {
				if !errors.Is(readErr, os.ErrNotExist) {
					t.Errorf("expected no file at %s, read err = %v", path, readErr)
				}
				return
			}
			if string(content) != string(tt.wantContent) {
				t.Errorf("file content = %q, want %q", content, tt.wantContent)
			}
		})
	}
}

func TestEnsureArtifact_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv, _ := artifactServer(t, http.StatusOK, []byte("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "similarity.bin")
	if _, err := EnsureArtifact(ctx, path, srv.URL, ""); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestEnsureArtifact_ThenLoad(t *testing.T) {
	t.Parallel()

	// Serve a real artifact and make sure the downloaded copy loads.
	src := filepath.Join(t.TempDir(), "src.bin")
	if _, err := SaveMatrix(src, testMatrix(t), "served"); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := artifactServer(t, http.StatusOK, body)

	dst := filepath.Join(t.TempDir(), "similarity.bin")
	if _, err := EnsureArtifact(context.Background(), dst, srv.URL, sha(body)); err != nil {
		t.Fatalf("EnsureArtifact() error = %v", err)
	}
	m, meta, err := LoadMatrix(dst)
	if err != nil {
		t.Fatalf("LoadMatrix() error = %v", err)
	}
	if m.Dim() != 3 || meta.Name != "served" {
		t.Errorf("unexpected artifact dim=%d name=%q", m.Dim(), meta.Name)
	}
}
