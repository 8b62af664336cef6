// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package catalog

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrChecksumMismatch is returned when an artifact payload does not match
// the checksum recorded in its metadata.
var ErrChecksumMismatch = errors.New("similarity artifact checksum mismatch")

// artifactFormatVersion is bumped when the payload encoding changes.
const artifactFormatVersion = 1

// Matrix is a square, read-only similarity matrix. Entry (i, j) is the
// similarity between catalog entries i and j. Symmetry is not required.
type Matrix struct {
	rows [][]float64
}

// NewMatrix validates that rows form a square matrix and wraps it.
// The slices are retained, not copied.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotSquare, i, len(row), n)
		}
	}
	return &Matrix{rows: rows}, nil
}

// Dim returns the matrix dimension.
func (m *Matrix) Dim() int {
	return len(m.rows)
}

// Row returns row i. Callers must not modify it.
func (m *Matrix) Row(i int) []float64 {
	return m.rows[i]
}

// At returns entry (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.rows[i][j]
}

// ArtifactMetadata describes a stored similarity matrix.
type ArtifactMetadata struct {
	Name          string    `json:"name"`
	FormatVersion int       `json:"format_version"`
	Dimension     int       `json:"dimension"`
	SavedAt       time.Time `json:"saved_at"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// artifactFile is the on-disk envelope.
type artifactFile struct {
	Metadata       ArtifactMetadata
	CompressedData []byte
}

// SaveMatrix writes m to path as a checksummed, gzip-compressed gob
// artifact. The file is written to a temp file and renamed into place.
func SaveMatrix(path string, m *Matrix, name string) (*ArtifactMetadata, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(m.rows); err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}

	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress matrix: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta := ArtifactMetadata{
		Name:          name,
		FormatVersion: artifactFormatVersion,
		Dimension:     m.Dim(),
		SavedAt:       time.Now().UTC(),
		Checksum:      hex.EncodeToString(sum[:]),
		SizeBytes:     int64(compressed.Len()),
	}

	err := writeFileAtomic(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(artifactFile{Metadata: meta, CompressedData: compressed.Bytes()})
	})
	if err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	return &meta, nil
}

// LoadMatrix reads and verifies an artifact written by SaveMatrix.
func LoadMatrix(path string) (*Matrix, *ArtifactMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, nil, fmt.Errorf("open similarity artifact: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	m, meta, err := ReadMatrix(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load similarity artifact %s: %w", path, err)
	}
	return m, meta, nil
}

// ReadMatrix decodes an artifact from r, verifying its checksum and shape.
func ReadMatrix(r io.Reader) (*Matrix, *ArtifactMetadata, error) {
	var af artifactFile
	if err := gob.NewDecoder(r).Decode(&af); err != nil {
		return nil, nil, fmt.Errorf("read artifact envelope: %w", err)
	}
	if af.Metadata.FormatVersion != artifactFormatVersion {
		return nil, nil, fmt.Errorf("unsupported artifact format version %d", af.Metadata.FormatVersion)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(af.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress matrix: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // in-memory reader

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != af.Metadata.Checksum {
		return nil, nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, af.Metadata.Checksum, got)
	}

	var rows [][]float64
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rows); err != nil {
		return nil, nil, fmt.Errorf("decode matrix: %w", err)
	}

	m, err := NewMatrix(rows)
	if err != nil {
		return nil, nil, err
	}
	if m.Dim() != af.Metadata.Dimension {
		return nil, nil, fmt.Errorf("artifact metadata says dimension %d, payload has %d", af.Metadata.Dimension, m.Dim())
	}
	return m, &af.Metadata, nil
}

// writeFileAtomic writes via a temp file in the destination directory and
// renames it over path once the content is fully flushed.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if err := write(tmp); err != nil {
		_ = tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
