package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"firmdocs/internal/domain"
)

const defaultSweepConcurrency = 4

// RetentionSweepConfig holds settings for the retention sweeper.
type RetentionSweepConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// RetentionSweeper archives documents whose retention date has passed. Each
// archive goes through the pipeline as the tenant's system actor, so the
// sweep is audited like any other caller.
type RetentionSweeper struct {
	chain    *VersionChain
	pipeline DocumentPipeline
	cfg      RetentionSweepConfig
	logger   *slog.Logger
}

// NewRetentionSweeper creates a new RetentionSweeper.
func NewRetentionSweeper(chain *VersionChain, pipeline DocumentPipeline, cfg RetentionSweepConfig, logger *slog.Logger) *RetentionSweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &RetentionSweeper{chain: chain, pipeline: pipeline, cfg: cfg, logger: logger}
}

// RunOnce archives one batch of expired documents and returns how many were
// archived.
func (w *RetentionSweeper) RunOnce(ctx context.Context) (int, error) {
	docs, err := w.chain.RetentionExpired(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		archived atomic.Int64
	)
	sem := make(chan struct{}, w.cfg.Concurrency)
	for i := range docs {
		doc := docs[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := w.pipeline.ArchiveDocument(ctx, domain.SystemActor(doc.TenantID), doc.ID); err != nil {
				w.logger.Error("retentionSweeper.RunOnce: archive failed",
					"tenant_id", doc.TenantID, "document_id", doc.ID, "error", err)
				return
			}
			archived.Add(1)
		}()
	}
	wg.Wait()

	n := int(archived.Load())
	w.logger.Info("retentionSweeper.RunOnce: sweep finished", "expired", len(docs), "archived", n)
	return n, nil
}

// Start runs the sweep on every tick until ctx is canceled.
func (w *RetentionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("retentionSweeper: started", "interval", w.cfg.Interval, "batch_size", w.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retentionSweeper: shutdown complete")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("retentionSweeper: sweep error", "error", err)
			}
		}
	}
}
