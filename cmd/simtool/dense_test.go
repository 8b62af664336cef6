// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/marquee/internal/catalog"
)

func TestReadDense(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  string
		input   string
		want    [][]float64
		wantErr bool
	}{
		{"csv", formatCSV, "1,0.5\n0.5, 1\n", [][]float64{{1, 0.5}, {0.5, 1}}, false},
		{"json", formatJSON, "[[1,0.25],[0.25,1]]", [][]float64{{1, 0.25}, {0.25, 1}}, false},
		{"csv not a number", formatCSV, "1,x\n", nil, true},
		{"json malformed", formatJSON, "[[1,", nil, true},
		{"empty csv", formatCSV, "", nil, true},
		{"empty json", formatJSON, "[]", nil, true},
		{"unknown format", "parquet", "1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := readDense(strings.NewReader(tt.input), tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readDense() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("readDense() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()

	tests := []struct{ flag, path, want string }{
		{"", "m.csv", formatCSV},
		{"", "m.JSON", formatJSON},
		{"", "m.txt", formatCSV},
		{"JSON", "m.csv", formatJSON},
	}
	for _, tt := range tests {
		if got := resolveFormat(tt.flag, tt.path); got != tt.want {
			t.Errorf("resolveFormat(%q, %q) = %q, want %q", tt.flag, tt.path, got, tt.want)
		}
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "m.csv")
	out := filepath.Join(dir, "similarity.bin")
	cat := filepath.Join(dir, "movies.csv")
	writeFile(t, in, "1,0.3\n0.3,1\n")
	writeFile(t, cat, "id,title\n1,Alien\n2,Aliens\n")

	meta, err := convert(in, out, formatCSV, cat, "test")
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if meta.Dimension != 2 || meta.Name != "test" {
		t.Errorf("metadata = %+v", meta)
	}

	m, _, err := catalog.LoadMatrix(out)
	if err != nil {
		t.Fatalf("LoadMatrix() error = %v", err)
	}
	if m.At(0, 1) != 0.3 {
		t.Errorf("At(0,1) = %v", m.At(0, 1))
	}
	if sum, err := fileSHA256(out); err != nil || len(sum) != 64 {
		t.Errorf("fileSHA256() = %q, %v", sum, err)
	}
}

func TestConvert_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cat := filepath.Join(dir, "movies.csv")
	writeFile(t, cat, "id,title\n1,Alien\n2,Aliens\n3,Heat\n")

	square := filepath.Join(dir, "square.csv")
	writeFile(t, square, "1,0\n0,1\n")
	if _, err := convert(square, filepath.Join(dir, "a.bin"), formatCSV, cat, "x"); !errors.Is(err, catalog.ErrDimensionMismatch) {
		t.Errorf("dimension mismatch error = %v", err)
	}

	ragged := filepath.Join(dir, "ragged.csv")
	writeFile(t, ragged, "1,0\n0\n")
	if _, err := convert(ragged, filepath.Join(dir, "b.bin"), formatCSV, "", "x"); !errors.Is(err, catalog.ErrNotSquare) {
		t.Errorf("ragged matrix error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.bin")); !os.IsNotExist(err) {
		t.Error("artifact written despite invalid input")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
