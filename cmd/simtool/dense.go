// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

var errEmptyMatrix = errors.New("matrix has no rows")

// readDense parses a dense matrix. Shape checks are left to catalog.NewMatrix.
func readDense(r io.Reader, format string) ([][]float64, error) {
	var (
		rows [][]float64
		err  error
	)
	switch format {
	case formatCSV:
		rows, err = readDenseCSV(r)
	case formatJSON:
		err = json.NewDecoder(r).Decode(&rows)
		if err != nil {
			err = fmt.Errorf("decode json matrix: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errEmptyMatrix
	}
	return rows, nil
}

func readDenseCSV(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var rows [][]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv matrix: %w", err)
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %q is not a number", line, j+1, field)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
}
