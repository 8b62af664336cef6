// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
)

// DefaultGCDiscardRatio is the share of a value log file that must be stale
// before badger rewrites it.
const DefaultGCDiscardRatio = 0.5

// GarbageCollector is satisfied by *poster.BadgerStore.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// StoreGCService runs value log GC on the poster store every interval.
// GC errors are logged and do not stop the service.
type StoreGCService struct {
	store        GarbageCollector
	interval     time.Duration
	discardRatio float64
	name         string
}

// NewStoreGCService builds the service. Non-positive interval means 10m.
func NewStoreGCService(store GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:        store,
		interval:     interval,
		discardRatio: DefaultGCDiscardRatio,
		name:         "poster-store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	log := logging.WithComponent("store-gc")
	log.Debug().Dur("interval", s.interval).Msg("Poster store GC running")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(s.discardRatio); err != nil {
				log.Warn().Err(err).Msg("Poster store GC failed")
				continue
			}
			log.Debug().Dur("duration", time.Since(start)).Msg("Poster store GC complete")
		}
	}
}

func (s *StoreGCService) String() string {
	return s.name
}
