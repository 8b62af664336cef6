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
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// ErrNoArtifactSource is returned when the artifact is missing and no
// download URL is configured.
var ErrNoArtifactSource = errors.New("similarity artifact missing and no download URL configured")

// DefaultDownloadTimeout bounds a single artifact download.
const DefaultDownloadTimeout = 5 * time.Minute

// BootstrapOutcome reports what EnsureArtifact did.
type BootstrapOutcome string

const (
	// OutcomeReused means the local file was kept as-is.
	OutcomeReused BootstrapOutcome = "reused"
	// OutcomeDownloaded means the file was absent and has been fetched.
	OutcomeDownloaded BootstrapOutcome = "downloaded"
	// OutcomeRefreshed means a local file failed the hash check and was replaced.
	OutcomeRefreshed BootstrapOutcome = "refreshed"
)

// Bootstrapper fetches the similarity artifact on first start.
type Bootstrapper struct {
	// Client defaults to a plain http.Client.
	Client *http.Client

	// Timeout bounds one download. Zero means DefaultDownloadTimeout.
	Timeout time.Duration
}

// EnsureArtifact uses a default Bootstrapper.
func EnsureArtifact(ctx context.Context, path, url, expectedSHA256 string) (BootstrapOutcome, error) {
	return (&Bootstrapper{}).EnsureArtifact(ctx, path, url, expectedSHA256)
}

// EnsureArtifact makes sure a usable artifact exists at path.
//
// Without expectedSHA256 an existing file is reused unconditionally, even if
// it is stale. With expectedSHA256 an existing file is hashed and replaced
// when it does not match. A downloaded file is written to a temp file in the
// same directory, verified, then renamed into place.
func (b *Bootstrapper) EnsureArtifact(ctx context.Context, path, url, expectedSHA256 string) (BootstrapOutcome, error) {
	want := strings.ToLower(strings.TrimSpace(expectedSHA256))
	outcome := OutcomeDownloaded

	switch _, err := os.Stat(path); {
	case err == nil:
		if want == "" {
			logging.Debug().Str("path", path).Msg("Similarity artifact present, reusing")
			return OutcomeReused, nil
		}
		got, err := fileSHA256(path)
		if err != nil {
			return "", fmt.Errorf("hash existing artifact: %w", err)
		}
		if got == want {
			logging.Debug().Str("path", path).Str("sha256", got).Msg("Similarity artifact verified, reusing")
			return OutcomeReused, nil
		}
		logging.Warn().
			Str("path", path).
			Str("expected_sha256", want).
			Str("actual_sha256", got).
			Msg("Similarity artifact checksum mismatch, downloading a fresh copy")
		outcome = OutcomeRefreshed
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("stat similarity artifact: %w", err)
	}

	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArtifactSource, path)
	}

	if err := b.download(ctx, path, url, want); err != nil {
		return "", err
	}
	return outcome, nil
}

func (b *Bootstrapper) download(ctx context.Context, path, url, want string) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	client := b.Client
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	logging.Info().Str("url", url).Str("path", path).Msg("Downloading similarity artifact")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		return fmt.Errorf("build artifact request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		return fmt.Errorf("download similarity artifact: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // body fully consumed or abandoned

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		return fmt.Errorf("download similarity artifact: unexpected status %d", resp.StatusCode)
	}

	var got string
	var size int64
	err = writeFileAtomic(path, func(w io.Writer) error {
		hasher := sha256.New()
		n, err := io.Copy(io.MultiWriter(w, hasher), resp.Body)
		if err != nil {
			return fmt.Errorf("copy artifact body: %w", err)
		}
		size = n
		got = hex.EncodeToString(hasher.Sum(nil))
		if want != "" && got != want {
			return fmt.Errorf("%w: expected %s, downloaded %s", ErrChecksumMismatch, want, got)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrChecksumMismatch) {
			metrics.ArtifactDownloads.WithLabelValues("checksum_mismatch").Inc()
		} else {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("store similarity artifact: %w", err)
	}

	metrics.ArtifactDownloads.WithLabelValues("ok").Inc()
	logging.Info().
		Str("path", path).
		Int64("bytes", size).
		Str("sha256", got).
		Dur("duration", time.Since(start)).
		Msg("Similarity artifact downloaded")
	return nil
}

// fileSHA256 returns the hex SHA-256 of the file at path.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
