// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	csv := "id,title\n1,Alien\n2,Aliens\n3,Heat\n"
	catalogPath := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(catalogPath, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := catalog.NewMatrix([][]float64{{1, 0.9, 0.1}, {0.9, 1, 0.2}, {0.1, 0.2, 1}})
	if err != nil {
		t.Fatal(err)
	}
	simPath := filepath.Join(dir, "similarity.bin")
	if _, err := catalog.SaveMatrix(simPath, m, "test"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POSTERS_ENABLED", "false")
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(dir, "none.yaml"))
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Data.CatalogPath = catalogPath
	cfg.Data.SimilarityPath = simPath
	cfg.Poster.Enabled = false
	return cfg
}

func TestInitEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recommend.TopN = 2

	engine, err := initEngine(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initEngine() error = %v", err)
	}
	titles, _, err := engine.Recommend("Alien")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Aliens", "Heat"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestInitEngine_LogsLoadOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	if _, err := initEngine(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("initEngine() error = %v", err)
	}
	if n := strings.Count(buf.String(), "Catalog and similarity matrix loaded"); n != 1 {
		t.Errorf("load messages = %d, want 1\n%s", n, buf.String())
	}
}

func TestInitEngine_MissingArtifactWithoutURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.SimilarityPath = filepath.Join(t.TempDir(), "absent.bin")
	cfg.Data.SimilarityURL = ""

	if _, err := initEngine(context.Background(), cfg); !errors.Is(err, catalog.ErrNoArtifactSource) {
		t.Errorf("initEngine() error = %v, want ErrNoArtifactSource", err)
	}
}

func TestInitPosters(t *testing.T) {
	t.Run("disabled yields untyped nil interfaces", func(t *testing.T) {
		pc, err := initPosters(testConfig(t))
		if err != nil {
			t.Fatal(err)
		}
		if pc.Resolver() != nil || pc.API() != nil {
			t.Error("disabled posters should produce nil interfaces")
		}
		pc.Close()
	})

	t.Run("enabled with store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Poster.Enabled = true
		cfg.TMDB.APIKey = "test-key"
		cfg.Poster.StorePath = t.TempDir()

		pc, err := initPosters(cfg)
		if err != nil {
			t.Fatalf("initPosters() error = %v", err)
		}
		defer pc.Close()
		if pc.Resolver() == nil || pc.API() == nil || pc.store == nil {
			t.Errorf("components = %+v", pc)
		}
	})

	t.Run("enabled without key fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Poster.Enabled = true
		cfg.TMDB.APIKey = ""
		if _, err := initPosters(cfg); err == nil {
			t.Error("expected error without API key")
		}
	})
}
