package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

// AvailabilityTracker answers whether any queryable content exists, apart
// from any single upload. A failed check counts as unavailable so chat stays
// gated off.
type AvailabilityTracker struct {
	checker ports.StatusChecker
	metrics ports.ClientMetrics
	logger  *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	status     domain.KnowledgeBaseStatus
	generation uint64

	updates feed[domain.KnowledgeBaseStatus]
}

func NewAvailabilityTracker(checker ports.StatusChecker, metrics ports.ClientMetrics, logger *slog.Logger) *AvailabilityTracker {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AvailabilityTracker{
		checker:    checker,
		metrics:    metrics,
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Check queries the backend and stores the result unless a newer check
// started meanwhile.
func (t *AvailabilityTracker) Check(ctx context.Context) domain.KnowledgeBaseStatus {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	result := t.fetch(ctx)

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return result
	}
	t.status = result
	t.updates.push(result)
	t.mu.Unlock()

	t.updates.flush()
	t.metrics.SetKnowledgeBase(result.IsAvailable(), result.ItemCount)
	return result
}

// Refresh drops the cached result back to unknown and re-checks in the
// background.
func (t *AvailabilityTracker) Refresh() {
	t.mu.Lock()
	if t.baseCtx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.generation++
	t.status = domain.KnowledgeBaseStatus{ItemCount: t.status.ItemCount}
	t.updates.push(t.status)
	t.wg.Add(1)
	t.mu.Unlock()

	t.updates.flush()
	go func() {
		defer t.wg.Done()
		t.Check(t.baseCtx)
	}()
}

func (t *AvailabilityTracker) Status() domain.KnowledgeBaseStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *AvailabilityTracker) IsAvailable() bool {
	return t.Status().IsAvailable()
}

func (t *AvailabilityTracker) Subscribe(fn func(domain.KnowledgeBaseStatus)) func() {
	return t.updates.subscribe(fn)
}

// Wait blocks until background refreshes have finished.
func (t *AvailabilityTracker) Wait() {
	t.wg.Wait()
}

func (t *AvailabilityTracker) Close() {
	t.baseCancel()
}

func (t *AvailabilityTracker) fetch(ctx context.Context) domain.KnowledgeBaseStatus {
	available := false
	status, err := t.checker.CheckIngestionStatus(ctx)
	if err != nil {
		t.logger.Warn("knowledge_base_check_failed", "error", err)
		return domain.KnowledgeBaseStatus{Available: &available}
	}
	available = status.ProcessedCount > 0
	return domain.KnowledgeBaseStatus{Available: &available, ItemCount: max(status.ProcessedCount, 0)}
}
