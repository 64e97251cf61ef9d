// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories"
	"onboard/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultSweepBatch   = 100
	DefaultSweepTimeout = time.Minute
)

type SweepRecorder interface {
	RecordOrphanSweep(resolved, failed int)
}

type noopSweepRecorder struct{}

func (noopSweepRecorder) RecordOrphanSweep(int, int) {}

// OrphanSweeper retries deletes of documents left behind by failed
// submission rollbacks.
type OrphanSweeper struct {
	orphans repositories.OrphanRepository
	store   storage.DocumentStore
	metrics SweepRecorder
	log     logger.Logger
	batch   int
	now     func() time.Time
}

func NewOrphanSweeper(orphans repositories.OrphanRepository, store storage.DocumentStore, metrics SweepRecorder, log logger.Logger) *OrphanSweeper {
	if metrics == nil {
		metrics = noopSweepRecorder{}
	}
	return &OrphanSweeper{
		orphans: orphans,
		store:   store,
		metrics: metrics,
		log:     log,
		batch:   DefaultSweepBatch,
		now:     time.Now,
	}
}

// SweepResult summarises one pass.
type SweepResult struct {
	Resolved int
	Failed   int
}

// Sweep processes one batch of the store bucket's unresolved orphans.
func (s *OrphanSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	docs, err := s.orphans.ListUnresolved(ctx, s.store.Bucket(), s.batch)
	if err != nil {
		return res, fmt.Errorf("list orphaned documents: %w", err)
	}
	if len(docs) == 0 {
		return res, nil
	}

	byPath := make(map[string][]models.OrphanedDocument)
	var paths []string
	for _, d := range docs {
		if _, seen := byPath[d.Path]; !seen {
			paths = append(paths, d.Path)
		}
		byPath[d.Path] = append(byPath[d.Path], d)
	}
	failed := make(map[string]bool)
	for _, p := range storage.FailedPaths(s.store.Delete(ctx, paths...), paths) {
		failed[p] = true
	}

	var resolvedIDs, failedIDs []uuid.UUID
	for _, p := range paths {
		for _, d := range byPath[p] {
			if failed[p] {
				failedIDs = append(failedIDs, d.ID)
			} else {
				resolvedIDs = append(resolvedIDs, d.ID)
			}
		}
	}

	if err := s.orphans.MarkResolved(ctx, resolvedIDs, s.now()); err != nil {
		return res, fmt.Errorf("mark orphans resolved: %w", err)
	}
	if err := s.orphans.IncrementAttempts(ctx, failedIDs); err != nil {
		return res, fmt.Errorf("count orphan attempts: %w", err)
	}

	res.Resolved, res.Failed = len(resolvedIDs), len(failedIDs)
	s.metrics.RecordOrphanSweep(res.Resolved, res.Failed)
	return res, nil
}

// Run is the cron entry point.
func (s *OrphanSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSweepTimeout)
	defer cancel()

	res, err := s.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("orphan sweep failed", nil)
		return
	}
	if res.Resolved+res.Failed > 0 {
		s.log.Info("orphan sweep finished", map[string]interface{}{
			"resolved": res.Resolved,
			"failed":   res.Failed,
		})
	}
}
