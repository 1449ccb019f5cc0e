package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type funcExecutor func(ctx context.Context, job *Job) error

func (f funcExecutor) Execute(ctx context.Context, job *Job) error { return f(ctx, job) }

type stubReconciler struct {
	mu      sync.Mutex
	seen    []uuid.UUID
	drifted map[uuid.UUID]bool
	err     error
}

func (r *stubReconciler) ReconcileTenant(_ context.Context, tc *shared.TenantContext) (*appinv.TenantReconciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, tc.TenantID)
	if r.err != nil {
		return nil, r.err
	}
	result := &appinv.TenantReconciliation{TenantID: tc.TenantID, Items: 2, Balanced: 2}
	if r.drifted[tc.TenantID] {
		result.Balanced = 1
		result.Unbalanced = []inventory.ReconciliationReport{{SKU: "WIDGET-1", EntryCount: 3, ReplayedQuantity: 7, ProjectedQuantity: 9}}
	}
	return result, nil
}

type stubPurger struct {
	calls atomic.Int32
}

func (p *stubPurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 4, nil
}

type stubTenants struct {
	ids []uuid.UUID
	err error
}

func (s stubTenants) TenantIDs(context.Context) ([]uuid.UUID, error) { return s.ids, s.err }

func startScheduler(t *testing.T, cfg Config, exec JobExecutor, log *zap.Logger) (*Scheduler, <-chan *Job) {
	t.Helper()
	finished := make(chan *Job, 64)
	s := NewScheduler(cfg, exec, log)
	s.OnJobDone(func(j *Job) {
		copied := *j
		finished <- &copied
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, finished
}

func waitJobs(t *testing.T, finished <-chan *Job, n int) []*Job {
	t.Helper()
	out := make([]*Job, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case j := <-finished:
			out = append(out, j)
		case <-timeout:
			t.Fatalf("got %d of %d jobs", len(out), n)
		}
	}
	return out
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(Config{}, funcExecutor(nil), zap.NewNop())
	def := DefaultConfig()
	assert.Equal(t, def.Workers, s.config.Workers)
	assert.Equal(t, def.JobTimeout, s.config.JobTimeout)
	assert.Equal(t, def.QueueSize, cap(s.jobs))
}

func TestScheduler_SubmitRequiresRunning(t *testing.T) {
	s := NewScheduler(Config{}, funcExecutor(nil), zap.NewNop())
	assert.ErrorIs(t, s.SubmitJob(NewJob(JobKindReconcile, uuid.New(), 0)), ErrSchedulerNotRunning)
}

func TestScheduler_QueueFull(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s, _ := startScheduler(t, Config{Workers: 1, QueueSize: 1}, funcExecutor(func(context.Context, *Job) error {
		<-block
		return nil
	}), zap.NewNop())

	var full bool
	for i := 0; i < 4; i++ {
		if errors.Is(s.SubmitJob(NewJob(JobKindReconcile, uuid.New(), 0)), ErrJobQueueFull) {
			full = true
		}
	}
	assert.True(t, full)
}

func TestScheduler_RetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	s, finished := startScheduler(t, Config{Workers: 1, RetryDelay: time.Millisecond}, funcExecutor(func(context.Context, *Job) error {
		if attempts.Add(1) < 3 {
			return shared.ErrLockTimeout
		}
		return nil
	}), zap.NewNop())

	require.NoError(t, s.SubmitJob(NewJob(JobKindReconcile, uuid.New(), 2)))
	jobs := waitJobs(t, finished, 3)

	assert.Equal(t, JobStatusFailed, jobs[0].Status)
	assert.Equal(t, JobStatusFailed, jobs[1].Status)
	assert.Equal(t, JobStatusSuccess, jobs[2].Status)
	assert.Equal(t, 2, jobs[2].RetryCount)
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	s, finished := startScheduler(t, Config{Workers: 1, RetryDelay: time.Millisecond}, funcExecutor(func(context.Context, *Job) error {
		attempts.Add(1)
		return errors.New("database unavailable")
	}), zap.NewNop())

	require.NoError(t, s.SubmitJob(NewJob(JobKindPurgeIdempotency, uuid.Nil, 1)))
	jobs := waitJobs(t, finished, 2)
	assert.Equal(t, "database unavailable", jobs[1].Error)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestScheduler_JobTimeout(t *testing.T) {
	s, finished := startScheduler(t, Config{Workers: 1, JobTimeout: 10 * time.Millisecond}, funcExecutor(func(ctx context.Context, _ *Job) error {
		<-ctx.Done()
		return ctx.Err()
	}), zap.NewNop())

	require.NoError(t, s.SubmitJob(NewJob(JobKindReconcile, uuid.New(), 0)))
	jobs := waitJobs(t, finished, 1)
	assert.Equal(t, context.DeadlineExceeded.Error(), jobs[0].Error)
}

func TestLedgerJobExecutor_ReconcileLogsDrift(t *testing.T) {
	drifted := uuid.New()
	reconciler := &stubReconciler{drifted: map[uuid.UUID]bool{drifted: true}}
	core, logs := observer.New(zapcore.InfoLevel)
	exec := NewLedgerJobExecutor(reconciler, nil, zap.New(core))

	require.NoError(t, exec.Execute(context.Background(), NewJob(JobKindReconcile, drifted, 0)))

	drift := logs.FilterMessage("Ledger drift").All()
	require.Len(t, drift, 1)
	assert.Equal(t, zapcore.ErrorLevel, drift[0].Level)
	assert.Equal(t, "WIDGET-1", drift[0].ContextMap()["sku"])
	assert.Equal(t, 1, logs.FilterMessage("Tenant reconciled").Len())
}

func TestLedgerJobExecutor_Errors(t *testing.T) {
	exec := NewLedgerJobExecutor(&stubReconciler{err: shared.ErrLockTimeout}, nil, zap.NewNop())

	err := exec.Execute(context.Background(), NewJob(JobKindReconcile, uuid.New(), 0))
	assert.ErrorIs(t, err, shared.ErrLockTimeout)

	err = exec.Execute(context.Background(), NewJob(JobKindReconcile, uuid.Nil, 0))
	assert.ErrorIs(t, err, shared.ErrMissingTenantContext)

	err = exec.Execute(context.Background(), &Job{Kind: "REBUILD"})
	assert.ErrorIs(t, err, ErrUnknownJobKind)

	assert.NoError(t, exec.Execute(context.Background(), NewJob(JobKindPurgeIdempotency, uuid.Nil, 0)))
}

func TestTrigger_RunRound(t *testing.T) {
	tenants := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	reconciler := &stubReconciler{}
	purger := &stubPurger{}
	s, finished := startScheduler(t, Config{Workers: 2}, NewLedgerJobExecutor(reconciler, purger, zap.NewNop()), zap.NewNop())

	trigger := NewTrigger(TriggerConfig{PurgeIdempotency: true}, s, stubTenants{ids: tenants}, zap.NewNop())
	assert.Equal(t, 4, trigger.RunRound(context.Background()))

	jobs := waitJobs(t, finished, 4)
	for _, j := range jobs {
		assert.Equal(t, JobStatusSuccess, j.Status, j.Kind)
	}
	reconciler.mu.Lock()
	assert.ElementsMatch(t, tenants, reconciler.seen)
	reconciler.mu.Unlock()
	assert.Equal(t, int32(1), purger.calls.Load())
}

func TestTrigger_TenantListFailure(t *testing.T) {
	s, _ := startScheduler(t, Config{}, funcExecutor(func(context.Context, *Job) error { return nil }), zap.NewNop())
	trigger := NewTrigger(TriggerConfig{}, s, stubTenants{err: errors.New("boom")}, zap.NewNop())
	assert.Zero(t, trigger.RunRound(context.Background()))
}

func TestTrigger_StartRunsImmediately(t *testing.T) {
	reconciler := &stubReconciler{}
	s, finished := startScheduler(t, Config{}, NewLedgerJobExecutor(reconciler, nil, zap.NewNop()), zap.NewNop())

	trigger := NewTrigger(TriggerConfig{Interval: time.Hour}, s, stubTenants{ids: []uuid.UUID{uuid.New()}}, zap.NewNop())
	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))

	waitJobs(t, finished, 1)
	require.NoError(t, trigger.Stop(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
}
