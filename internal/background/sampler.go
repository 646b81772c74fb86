package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/avelhart/shelfmark/internal/database"
	"github.com/avelhart/shelfmark/internal/store"
)

// HealthSampler periodically probes Postgres and Redis and logs pool
// pressure. Session and verification records expire on their own in
// Redis, so there is no row cleanup to run; this job exists to surface
// backend degradation before requests start failing with 503s.
type HealthSampler struct {
	db       *database.DB
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

func NewHealthSampler(db *database.DB, sessionStore *store.Store, logger *slog.Logger, interval time.Duration) *HealthSampler {
	return &HealthSampler{
		db:       db,
		store:    sessionStore,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start samples until Stop is called or the context ends.
func (hs *HealthSampler) Start(ctx context.Context) {
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	hs.sample(ctx)

	for {
		select {
		case <-ticker.C:
			hs.sample(ctx)
		case <-hs.stopCh:
			hs.logger.Info("health sampler stopped")
			return
		case <-ctx.Done():
			hs.logger.Info("health sampler context cancelled")
			return
		}
	}
}

func (hs *HealthSampler) sample(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := hs.db.HealthCheck(probeCtx); err != nil {
		hs.logger.Error("postgres health check failed", slog.Any("error", err))
	}
	if err := hs.store.HealthCheck(probeCtx); err != nil {
		hs.logger.Error("redis health check failed", slog.Any("error", err))
	}

	stats := hs.db.Stats()
	hs.logger.Debug("connection pool",
		slog.Int("total", int(stats.TotalConns())),
		slog.Int("idle", int(stats.IdleConns())),
		slog.Int("acquired", int(stats.AcquiredConns())),
		slog.Int64("acquire_count", stats.AcquireCount()),
	)
}

// Stop signals the sampler to stop.
func (hs *HealthSampler) Stop() {
	close(hs.stopCh)
}
