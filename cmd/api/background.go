package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/viewfinder/internal/catalog"
	"github.com/onnwee/viewfinder/internal/idempotency"
	"github.com/onnwee/viewfinder/internal/jobs"
	"github.com/onnwee/viewfinder/internal/middleware"
)

type reaper interface {
	RunReaper(ctx context.Context, interval time.Duration, observe func(reaped int, d time.Duration))
}

type reloader interface {
	Current() *catalog.Catalog
	Reload(ctx context.Context) (*catalog.Catalog, error)
}

type catalogApplier interface {
	ApplyCatalog(ctx context.Context, cat *catalog.Catalog) error
}

type sessionPool interface {
	reaper
	catalogApplier
}

type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type runner interface {
	Run(ctx context.Context)
}

type observer interface {
	Observe(jobType string, d time.Duration, err error)
}

// backgroundJobs lists the long-running loops started next to the server.
// Nil members are skipped.
type backgroundJobs struct {
	clock  clock.Clock
	logger *slog.Logger
	jobs   observer

	manager        sessionPool
	catalog        reloader
	reloadInterval time.Duration
	recorder       runner
	pruner         pruner
	limits         middleware.RateLimitStore
	replays        idempotency.Store
}

// startBackground starts every configured loop. The returned WaitGroup is
// done once all of them have returned after ctx is cancelled.
func startBackground(ctx context.Context, b backgroundJobs) *sync.WaitGroup {
	var wg sync.WaitGroup
	spawn := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	if b.manager != nil {
		spawn(func() {
			b.manager.RunReaper(ctx, reaperInterval, func(reaped int, d time.Duration) {
				b.jobs.Observe(jobs.JobTypeSessionReap, d, nil)
				if reaped > 0 {
					b.logger.Info("reaped idle sessions", "count", reaped)
				}
			})
		})
	}
	if b.catalog != nil && b.manager != nil && b.reloadInterval > 0 {
		spawn(func() { runCatalogReload(ctx, b) })
	}
	if b.recorder != nil {
		spawn(func() { b.recorder.Run(ctx) })
	}
	if b.pruner != nil {
		spawn(func() { runVitalsPrune(ctx, b) })
	}
	if mem, ok := b.limits.(*middleware.InMemoryRateLimitStore); ok {
		spawn(func() { mem.RunCleanup(ctx, 5*time.Minute) })
	}
	if mem, ok := b.replays.(*idempotency.InMemoryStore); ok {
		spawn(func() { mem.RunCleanup(ctx, 5*time.Minute) })
	}
	return &wg
}

// runCatalogReload refetches the catalog every interval and rebinds live
// sessions when it changed. A failed fetch keeps the previous catalog.
func runCatalogReload(ctx context.Context, b backgroundJobs) {
	ticker := b.clock.Ticker(b.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reloadCatalog(ctx, b)
		case <-ctx.Done():
			return
		}
	}
}

func reloadCatalog(ctx context.Context, b backgroundJobs) {
	start := time.Now()
	prev := b.catalog.Current()
	cat, err := b.catalog.Reload(ctx)
	if err == nil && cat != prev {
		err = b.manager.ApplyCatalog(ctx, cat)
		if err != nil {
			b.logger.Warn("catalog reload reached only some sessions", "error", err)
		}
	}
	b.jobs.Observe(jobs.JobTypeCatalogReload, time.Since(start), err)
}

// runVitalsPrune deletes samples older than the retention window, once at
// start and then every prune interval.
func runVitalsPrune(ctx context.Context, b backgroundJobs) {
	ticker := b.clock.Ticker(vitalsPruneInterval)
	defer ticker.Stop()

	prune := func() {
		start := time.Now()
		n, err := b.pruner.Prune(ctx, b.clock.Now().Add(-vitalsRetention))
		b.jobs.Observe(jobs.JobTypeVitalsPrune, time.Since(start), err)
		if err != nil {
			b.logger.Error("failed to prune vitals", "error", err)
			return
		}
		if n > 0 {
			b.logger.Info("pruned vitals samples", "count", n)
		}
	}

	prune()
	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}
