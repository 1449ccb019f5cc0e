package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantLister lists tenants that own stock
type TenantLister interface {
	TenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TriggerConfig configures the maintenance rounds
type TriggerConfig struct {
	// Interval between rounds; the first round runs at Start
	Interval time.Duration
	// PurgeIdempotency adds a purge job to every round
	PurgeIdempotency bool
}

// Trigger submits one reconcile job per tenant, plus an optional purge job,
// every Interval.
type Trigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	tenants   TenantLister
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger creates a trigger feeding scheduler
func NewTrigger(config TriggerConfig, scheduler *Scheduler, tenants TenantLister, logger *zap.Logger) *Trigger {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Trigger{
		config:    config,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger,
	}
}

// Start runs a round immediately and then on every tick
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(ctx)

	t.logger.Info("Reconciliation trigger started", zap.Duration("interval", t.config.Interval))
	return nil
}

// Stop ends the loop and waits for it, or for ctx
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	t.RunRound(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunRound(ctx)
		}
	}
}

// RunRound submits one round of jobs and returns how many were queued
func (t *Trigger) RunRound(ctx context.Context) int {
	tenantIDs, err := t.tenants.TenantIDs(ctx)
	if err != nil {
		t.logger.Error("Failed to list tenants for reconciliation", zap.Error(err))
		return 0
	}

	maxRetries := t.scheduler.config.MaxRetries
	jobs := make([]*Job, 0, len(tenantIDs)+1)
	for _, id := range tenantIDs {
		jobs = append(jobs, NewJob(JobKindReconcile, id, maxRetries))
	}
	if t.config.PurgeIdempotency {
		jobs = append(jobs, NewJob(JobKindPurgeIdempotency, uuid.Nil, maxRetries))
	}

	queued := 0
	for _, job := range jobs {
		if err := t.scheduler.SubmitJob(job); err != nil {
			t.logger.Warn("Failed to submit maintenance job",
				zap.String("kind", string(job.Kind)),
				zap.String("tenant_id", job.TenantID.String()),
				zap.Error(err),
			)
			continue
		}
		queued++
	}
	t.logger.Debug("Maintenance round submitted", zap.Int("jobs", queued), zap.Int("tenants", len(tenantIDs)))
	return queued
}
