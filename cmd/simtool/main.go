// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Command simtool converts a dense similarity matrix into the artifact the
// server loads.
//
//	simtool -in similarity.csv -out similarity.bin -catalog movies.csv
//	simtool -in similarity.json -format json -out similarity.bin
//
// CSV input has one row per line with no header. JSON input is an array of
// arrays. With -catalog the matrix dimension is checked against the catalog
// before anything is written.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/logging"
)

func main() {
	in := flag.String("in", "", "input matrix file (csv or json)")
	out := flag.String("out", "similarity.bin", "artifact to write")
	format := flag.String("format", "", "input format: csv or json (default: from extension)")
	catalogPath := flag.String("catalog", "", "optional catalog CSV to check the dimension against")
	name := flag.String("name", "similarity", "artifact name recorded in metadata")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	meta, err := convert(*in, *out, resolveFormat(*format, *in), *catalogPath, *name)
	if err != nil {
		logging.Fatal().Err(err).Str("in", *in).Msg("Conversion failed")
	}

	sum, err := fileSHA256(*out)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to hash artifact")
	}

	// file_sha256 is the value for SIMILARITY_SHA256.
	logging.Info().
		Str("out", *out).
		Int("dimension", meta.Dimension).
		Str("payload_sha256", meta.Checksum).
		Str("file_sha256", sum).
		Msg("Similarity artifact written")
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func resolveFormat(flagValue, path string) string {
	if flagValue != "" {
		return strings.ToLower(flagValue)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return formatJSON
	}
	return formatCSV
}

func convert(in, out, format, catalogPath, name string) (*catalog.ArtifactMetadata, error) {
	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := readDense(f, format)
	if err != nil {
		return nil, err
	}
	m, err := catalog.NewMatrix(rows)
	if err != nil {
		return nil, err
	}

	if catalogPath != "" {
		c, err := catalog.LoadCatalog(catalogPath)
		if err != nil {
			return nil, err
		}
		if c.Len() != m.Dim() {
			return nil, fmt.Errorf("%w: catalog has %d movies, matrix is %dx%d",
				catalog.ErrDimensionMismatch, c.Len(), m.Dim(), m.Dim())
		}
	}

	return catalog.SaveMatrix(out, m, name)
}
