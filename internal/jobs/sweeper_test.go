package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"onboard/internal/logger"
	"onboard/internal/logger/logtest"
	"onboard/internal/models"
	"onboard/internal/repositories/mocks"
	"onboard/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubbornStore struct {
	*storage.LocalStore
	refuse string
}

func (s *stubbornStore) Delete(ctx context.Context, paths ...string) error {
	failed := map[string]error{}
	var ok []string
	for _, p := range paths {
		if strings.Contains(p, s.refuse) {
			failed[p] = errors.New("access denied")
			continue
		}
		ok = append(ok, p)
	}
	if err := s.LocalStore.Delete(ctx, ok...); err != nil {
		return err
	}
	if len(failed) > 0 {
		return &storage.DeleteError{Failed: failed}
	}
	return nil
}

type sweepCounts struct{ resolved, failed int }

func (c *sweepCounts) RecordOrphanSweep(resolved, failed int) {
	c.resolved += resolved
	c.failed += failed
}

func TestSweep(t *testing.T) {
	fs := afero.NewMemMapFs()
	local := storage.NewLocalStoreFs(fs, "submissions", "http://localhost/files")
	store := &stubbornStore{LocalStore: local, refuse: "void_check"}
	ctx := context.Background()

	require.NoError(t, local.Upload(ctx, "u1/drivers_license/1_a.pdf", "application/pdf", strings.NewReader("a"), 1))
	require.NoError(t, local.Upload(ctx, "u1/void_check/1_c.pdf", "application/pdf", strings.NewReader("c"), 1))

	gone := models.OrphanedDocument{ID: uuid.New(), Bucket: "submissions", Path: "u1/drivers_license/1_a.pdf"}
	stuck := models.OrphanedDocument{ID: uuid.New(), Bucket: "submissions", Path: "u1/void_check/1_c.pdf"}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	orphans := new(mocks.OrphanRepository)
	orphans.On("ListUnresolved", mock.Anything, "submissions", DefaultSweepBatch).Return([]models.OrphanedDocument{gone, stuck}, nil).Once()
	orphans.On("MarkResolved", mock.Anything, []uuid.UUID{gone.ID}, now).Return(nil).Once()
	orphans.On("IncrementAttempts", mock.Anything, []uuid.UUID{stuck.ID}).Return(nil).Once()

	counts := &sweepCounts{}
	sweeper := NewOrphanSweeper(orphans, store, counts, logtest.New(t))
	sweeper.now = func() time.Time { return now }

	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Resolved: 1, Failed: 1}, res)
	assert.Equal(t, &sweepCounts{resolved: 1, failed: 1}, counts)
	orphans.AssertExpectations(t)

	exists, _ := afero.Exists(fs, "/submissions/u1/drivers_license/1_a.pdf")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/submissions/u1/void_check/1_c.pdf")
	assert.True(t, exists)
}

func TestSweep_NothingToDo(t *testing.T) {
	orphans := new(mocks.OrphanRepository)
	orphans.On("ListUnresolved", mock.Anything, "submissions", DefaultSweepBatch).Return([]models.OrphanedDocument{}, nil).Once()

	store := storage.NewLocalStoreFs(afero.NewMemMapFs(), "submissions", "")
	res, err := NewOrphanSweeper(orphans, store, nil, logger.NewNoOpLogger()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
	orphans.AssertNotCalled(t, "MarkResolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_ListFailure(t *testing.T) {
	orphans := new(mocks.OrphanRepository)
	orphans.On("ListUnresolved", mock.Anything, "submissions", DefaultSweepBatch).Return(nil, errors.New("db down")).Once()

	store := storage.NewLocalStoreFs(afero.NewMemMapFs(), "submissions", "")
	_, err := NewOrphanSweeper(orphans, store, nil, logger.NewNoOpLogger()).Sweep(context.Background())
	assert.ErrorContains(t, err, "db down")
}

// orphanTable filters and orders like the SQL repository.
type orphanTable struct {
	mu   sync.Mutex
	rows []models.OrphanedDocument
}

func (o *orphanTable) Record(_ context.Context, docs []models.OrphanedDocument) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rows = append(o.rows, docs...)
	return nil
}

func (o *orphanTable) ListUnresolved(_ context.Context, bucket string, limit int) ([]models.OrphanedDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.OrphanedDocument
	for _, r := range o.rows {
		if r.Bucket == bucket && r.ResolvedAt == nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts < out[j].Attempts
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *orphanTable) update(ids []uuid.UUID, fn func(*models.OrphanedDocument)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range o.rows {
		if want[o.rows[i].ID] {
			fn(&o.rows[i])
		}
	}
}

func (o *orphanTable) MarkResolved(_ context.Context, ids []uuid.UUID, at time.Time) error {
	o.update(ids, func(d *models.OrphanedDocument) { d.ResolvedAt = &at })
	return nil
}

func (o *orphanTable) IncrementAttempts(_ context.Context, ids []uuid.UUID) error {
	o.update(ids, func(d *models.OrphanedDocument) { d.Attempts++ })
	return nil
}

func TestSweep_StuckRowsDoNotStarveNewOrphans(t *testing.T) {
	fs := afero.NewMemMapFs()
	local := storage.NewLocalStoreFs(fs, "submissions", "")
	store := &stubbornStore{LocalStore: local, refuse: "void_check"}
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	table := &orphanTable{}
	for i := 0; i < DefaultSweepBatch; i++ {
		table.rows = append(table.rows,
			models.OrphanedDocument{ID: uuid.New(), Bucket: "legacy", Path: fmt.Sprintf("u9/%d.pdf", i), CreatedAt: base},
			models.OrphanedDocument{ID: uuid.New(), Bucket: "submissions", Path: fmt.Sprintf("u1/void_check/%d.pdf", i), CreatedAt: base},
		)
	}
	fresh := "u2/drivers_license/1_a.pdf"
	require.NoError(t, local.Upload(ctx, fresh, "application/pdf", strings.NewReader("a"), 1))
	table.rows = append(table.rows, models.OrphanedDocument{
		ID: uuid.New(), Bucket: "submissions", Path: fresh, CreatedAt: base.Add(time.Hour),
	})

	sweeper := NewOrphanSweeper(table, store, nil, logtest.New(t))

	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Failed: DefaultSweepBatch}, res)

	res, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Resolved: 1, Failed: DefaultSweepBatch - 1}, res)

	exists, _ := afero.Exists(fs, "/submissions/"+fresh)
	assert.False(t, exists)
	for _, r := range table.rows {
		if r.Bucket == "legacy" {
			assert.Nil(t, r.ResolvedAt)
			assert.Zero(t, r.Attempts)
		}
	}
}

type fakePruner struct {
	removed int
	err     error
	calls   int
}

func (f *fakePruner) PruneStaging(ctx context.Context) (int, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("no deadline")
	}
	return f.removed, f.err
}

func TestStagingCleaner(t *testing.T) {
	pruner := &fakePruner{removed: 2}
	NewStagingCleaner(pruner, logtest.New(t)).Run()
	assert.Equal(t, 1, pruner.calls)

	failing := &fakePruner{err: errors.New("redis down")}
	NewStagingCleaner(failing, logger.NewNoOpLogger()).Run()
	assert.Equal(t, 1, failing.calls)
}

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Run() { j.runs.Add(1) }

func TestScheduler(t *testing.T) {
	s := NewScheduler(logtest.New(t))
	job := &countingJob{}

	require.Error(t, s.Add("broken", "every now and then", job))
	require.NoError(t, s.Add("counter", "@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
