package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/redis"
	"github.com/ecowise-backend/internal/service"
)

// SyncWorker periodically rebuilds the Redis leaderboard from the durable
// ledger. The ledger is the write path of record, so sync only ever flows
// ledger to cache: on startup for recovery and on a timer to heal any
// cache updates that were dropped.
type SyncWorker struct {
	cache   *redis.Cache
	ledger  service.Ledger
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	cache *redis.Cache,
	ledger service.Ledger,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		cache:  cache,
		ledger: ledger,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RebuildCache(ctx); err != nil {
				w.logger.Error("leaderboard cache rebuild failed", "error", err)
			}
		}
	}
}

// RebuildCache replaces the leaderboard cache contents with the ledger's
// current scores.
func (w *SyncWorker) RebuildCache(ctx context.Context) error {
	startTime := time.Now()

	scores, err := w.ledger.AllScores(ctx)
	if err != nil {
		return err
	}

	if err := w.cache.BatchSetScores(ctx, scores); err != nil {
		return err
	}

	w.logger.Info("leaderboard cache rebuilt",
		"users", len(scores),
		"duration", time.Since(startTime),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
