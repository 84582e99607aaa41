package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

const DefaultPollInterval = 2 * time.Second

// ReadinessPoller queries ingestion status on a fixed interval.
type ReadinessPoller struct {
	status   ports.StatusChecker
	interval time.Duration
	metrics  ports.ClientMetrics
	logger   *slog.Logger
}

func NewReadinessPoller(
	status ports.StatusChecker,
	interval time.Duration,
	metrics ports.ClientMetrics,
	logger *slog.Logger,
) *ReadinessPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadinessPoller{
		status:   status,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

func (p *ReadinessPoller) Interval() time.Duration {
	return p.interval
}

// PollHandle scopes one polling loop. Stopping it is idempotent and safe from
// any goroutine, including from inside the tick callback.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Done is closed once the loop has exited.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Start polls until onTick returns true, the handle is stopped, or ctx ends.
// Ticks run one after another on a single goroutine, so at most one status
// request is outstanding. Failed ticks are logged and retried on the next
// interval; they never end the loop.
func (p *ReadinessPoller) Start(ctx context.Context, onTick func(domain.IngestionStatus) bool) *PollHandle {
	loopCtx, cancel := context.WithCancel(ctx)
	handle := &PollHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		defer handle.Stop()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
			}

			status, err := p.status.CheckIngestionStatus(loopCtx)
			if loopCtx.Err() != nil {
				return
			}
			p.metrics.ObservePollTick(err)
			if err != nil {
				failures++
				p.logger.Debug("poll_tick_failed", "consecutive_failures", failures, "error", err)
				continue
			}
			failures = 0

			if onTick(status) {
				return
			}
		}
	}()

	return handle
}
