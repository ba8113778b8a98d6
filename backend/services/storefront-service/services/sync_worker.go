package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PendingSyncer is the part of PaymentService the worker drives.
type PendingSyncer interface {
	SyncPending(ctx context.Context) int
}

// SyncWorker polls the gateway for unsettled orders on a fixed interval.
// It is the fallback for notifications that never arrived.
type SyncWorker struct {
	syncer   PendingSyncer
	interval time.Duration
	logger   *zap.Logger
}

func NewSyncWorker(syncer PendingSyncer, interval time.Duration, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{syncer: syncer, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. Syncs never overlap.
func (w *SyncWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Background payment sync disabled")
		return
	}
	w.logger.Info("Starting background payment sync", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Background payment sync stopped")
			return
		case <-ticker.C:
			w.syncer.SyncPending(ctx)
		}
	}
}
