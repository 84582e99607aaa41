package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

const (
	publishTimeout = 2 * time.Second
	eventBuffer    = 64
)

// IngestionMachine owns the lifecycle of the single active upload job.
type IngestionMachine struct {
	uploader  ports.Uploader
	poller    *ReadinessPoller
	policy    CompletionPolicy
	inspector ports.FileInspector
	publisher ports.EventPublisher
	metrics   ports.ClientMetrics
	logger    *slog.Logger
	now       func() time.Time

	onReady          []func()
	onUploadComplete []func(domain.UploadResult)
	onUploadError    []func(string)

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu           sync.Mutex
	job          domain.UploadJob
	cancelUpload context.CancelFunc
	poll         *PollHandle
	closed       bool

	updates feed[domain.UploadJob]

	// Phase events go out on their own goroutine, in order.
	events      chan domain.PhaseEvent
	publishDone chan struct{}
}

type IngestionOption func(*IngestionMachine)

func WithCompletionPolicy(policy CompletionPolicy) IngestionOption {
	return func(m *IngestionMachine) { m.policy = policy }
}

func WithFileInspector(inspector ports.FileInspector) IngestionOption {
	return func(m *IngestionMachine) { m.inspector = inspector }
}

func WithEventPublisher(publisher ports.EventPublisher) IngestionOption {
	return func(m *IngestionMachine) { m.publisher = publisher }
}

func WithIngestionMetrics(metrics ports.ClientMetrics) IngestionOption {
	return func(m *IngestionMachine) { m.metrics = metrics }
}

func WithIngestionLogger(logger *slog.Logger) IngestionOption {
	return func(m *IngestionMachine) { m.logger = logger }
}

// OnReady registers a hook run once each time a job reaches Ready.
func OnReady(fn func()) IngestionOption {
	return func(m *IngestionMachine) { m.onReady = append(m.onReady, fn) }
}

// OnUploadComplete registers a hook receiving the backend upload result.
func OnUploadComplete(fn func(domain.UploadResult)) IngestionOption {
	return func(m *IngestionMachine) { m.onUploadComplete = append(m.onUploadComplete, fn) }
}

// OnUploadError registers a hook receiving the visible upload error message.
func OnUploadError(fn func(string)) IngestionOption {
	return func(m *IngestionMachine) { m.onUploadError = append(m.onUploadError, fn) }
}

func NewIngestionMachine(uploader ports.Uploader, poller *ReadinessPoller, opts ...IngestionOption) *IngestionMachine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &IngestionMachine{
		uploader:   uploader,
		poller:     poller,
		metrics:    ports.NoopMetrics{},
		logger:     slog.Default(),
		now:        time.Now,
		baseCtx:    ctx,
		baseCancel: cancel,
		job:        domain.UploadJob{Phase: domain.PhaseIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.job.UpdatedAt = m.now()
	if m.publisher != nil {
		m.events = make(chan domain.PhaseEvent, eventBuffer)
		m.publishDone = make(chan struct{})
		go m.runPublisher()
	}

	last := domain.PhaseIdle
	m.updates.subscribe(func(job domain.UploadJob) {
		if job.Phase == last {
			return
		}
		from := last
		last = job.Phase
		m.metrics.ObservePhase(job.Phase)
		m.logger.Info("phase_transition", "job_id", job.ID, "from", from.String(), "to", job.Phase.String())
		m.enqueue(from, job)
	})
	return m
}

func (m *IngestionMachine) Snapshot() domain.UploadJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneJob(m.job)
}

// Subscribe registers fn for every committed snapshot, including poll ticks
// that leave the phase unchanged.
func (m *IngestionMachine) Subscribe(fn func(domain.UploadJob)) func() {
	return m.updates.subscribe(fn)
}

// Select makes file the active job. Non-PDF files are rejected without
// touching the current job beyond its LastError. Any in-flight upload or
// poll belonging to the previous job is cancelled.
func (m *IngestionMachine) Select(file domain.SelectedFile) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "select file", errors.New("ingestion closed"))
	}
	if !file.IsPDF() {
		m.job.LastError = domain.MsgNotPDF
		m.commitLocked()
		m.mu.Unlock()
		m.updates.flush()
		return domain.WrapError(domain.ErrValidation, "select file", fmt.Errorf("%q is not a pdf", file.Name))
	}

	stop := m.detachLocked()
	selected := file
	m.job = domain.UploadJob{
		ID:    uuid.NewString(),
		File:  &selected,
		Phase: domain.PhaseSelected,
	}
	m.commitLocked()
	m.mu.Unlock()

	stop()
	m.updates.flush()
	return nil
}

// SelectPath inspects a local file and selects it.
func (m *IngestionMachine) SelectPath(path string) error {
	name := filepath.Base(path)
	if !(domain.SelectedFile{Name: name}).IsPDF() {
		return m.Select(domain.SelectedFile{Name: name})
	}
	if m.inspector == nil {
		return fmt.Errorf("select %s: no file inspector configured", path)
	}
	file, err := m.inspector.Inspect(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	return m.Select(file)
}

// StartUpload moves a Selected job to Uploading.
func (m *IngestionMachine) StartUpload() error {
	m.mu.Lock()
	if m.closed || m.job.Phase != domain.PhaseSelected || m.job.File == nil {
		phase := m.job.Phase
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "start upload", fmt.Errorf("job is %s", phase))
	}
	m.startLocked()
	return nil
}

// Retry discards a Failed job and uploads the same file as a fresh attempt.
func (m *IngestionMachine) Retry() error {
	m.mu.Lock()
	if m.closed || m.job.Phase != domain.PhaseFailed || m.job.File == nil {
		phase := m.job.Phase
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "retry upload", fmt.Errorf("job is %s", phase))
	}
	file := *m.job.File
	m.job = domain.UploadJob{ID: uuid.NewString(), File: &file, Phase: domain.PhaseSelected}
	m.startLocked()
	return nil
}

// Close cancels in-flight work, rejects further transitions and waits for
// queued phase events to be sent.
func (m *IngestionMachine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stop := m.detachLocked()
	m.mu.Unlock()

	stop()
	m.baseCancel()
	if m.publishDone != nil {
		<-m.publishDone
	}
}

// Wait blocks until background uploads have returned. Tests use it.
func (m *IngestionMachine) Wait() {
	m.wg.Wait()
}

// startLocked must be called with m.mu held; it releases the lock.
func (m *IngestionMachine) startLocked() {
	jobID := m.job.ID
	file := *m.job.File

	m.job.Phase = domain.PhaseUploading
	m.job.UploadPercent = 0
	m.job.ProcessedCount = 0
	m.job.TargetCount = nil
	m.job.LastError = ""
	m.job.Result = nil
	m.job.CompletedByHeuristic = false

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancelUpload = cancel
	m.commitLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	m.updates.flush()
	m.logger.Info("upload_started", "job_id", jobID, "filename", file.Name, "bytes", file.Size)
	go m.runUpload(ctx, cancel, jobID, file)
}

func (m *IngestionMachine) runUpload(ctx context.Context, cancel context.CancelFunc, jobID string, file domain.SelectedFile) {
	defer m.wg.Done()
	defer cancel()

	started := m.now()
	result, err := m.uploader.Upload(ctx, file, func(percent int) {
		m.applyProgress(jobID, percent)
	})
	m.metrics.ObserveUpload(m.now().Sub(started).Seconds(), err)

	m.mu.Lock()
	if m.closed || m.job.ID != jobID || m.job.Phase != domain.PhaseUploading {
		m.mu.Unlock()
		return
	}
	m.cancelUpload = nil

	if err != nil {
		msg := domain.UserMessage(err)
		m.job.Phase = domain.PhaseFailed
		m.job.LastError = msg
		m.commitLocked()
		m.mu.Unlock()

		m.updates.flush()
		m.logger.Warn("upload_failed", "job_id", jobID, "filename", file.Name, "error", err)
		for _, fn := range m.onUploadError {
			fn(msg)
		}
		return
	}

	m.job.UploadPercent = 100
	m.job.Result = maps.Clone(result)
	m.job.Phase = domain.PhaseAwaitingIndex
	m.poll = m.poller.Start(m.baseCtx, func(status domain.IngestionStatus) bool {
		return m.applyTick(jobID, status)
	})
	m.commitLocked()
	m.mu.Unlock()

	m.updates.flush()
	for _, fn := range m.onUploadComplete {
		fn(maps.Clone(result))
	}
}

func (m *IngestionMachine) applyProgress(jobID string, percent int) {
	m.mu.Lock()
	if m.closed || m.job.ID != jobID || m.job.Phase != domain.PhaseUploading || percent <= m.job.UploadPercent {
		m.mu.Unlock()
		return
	}
	m.job.UploadPercent = min(percent, 100)
	m.commitLocked()
	m.mu.Unlock()
	m.updates.flush()
}

// applyTick folds one status reading into the job and reports whether
// polling should stop.
func (m *IngestionMachine) applyTick(jobID string, status domain.IngestionStatus) bool {
	m.mu.Lock()
	if m.closed || m.job.ID != jobID || m.job.Phase != domain.PhaseAwaitingIndex {
		m.mu.Unlock()
		return true
	}

	if status.ProcessedCount > m.job.ProcessedCount {
		m.job.ProcessedCount = status.ProcessedCount
	}
	if status.TargetCount != nil {
		target := *status.TargetCount
		m.job.TargetCount = &target
	}

	merged := domain.IngestionStatus{ProcessedCount: m.job.ProcessedCount, TargetCount: m.job.TargetCount}
	done := m.policy.Evaluate(merged)
	if done {
		m.job.Phase = domain.PhaseReady
		m.job.CompletedByHeuristic = m.policy.UsedHeuristic(merged)
		m.poll = nil
	}
	m.commitLocked()
	heuristic := m.job.CompletedByHeuristic
	m.mu.Unlock()

	m.updates.flush()
	if done {
		if heuristic {
			m.logger.Info("completion_heuristic_applied", "job_id", jobID, "processed", merged.ProcessedCount)
		}
		for _, fn := range m.onReady {
			fn()
		}
	}
	return done
}

// detachLocked releases the current job's upload and poller and returns a
// func that stops them; call it after unlocking.
func (m *IngestionMachine) detachLocked() func() {
	cancelUpload := m.cancelUpload
	poll := m.poll
	m.cancelUpload = nil
	m.poll = nil
	return func() {
		if cancelUpload != nil {
			cancelUpload()
		}
		poll.Stop()
	}
}

func (m *IngestionMachine) commitLocked() {
	m.job.UpdatedAt = m.now()
	m.updates.push(cloneJob(m.job))
}

// enqueue hands a transition to the publisher goroutine without blocking.
// A full buffer drops the event.
func (m *IngestionMachine) enqueue(from domain.Phase, job domain.UploadJob) {
	if m.events == nil {
		return
	}
	event := domain.PhaseEvent{
		JobID:     job.ID,
		From:      from.String(),
		To:        job.Phase.String(),
		Processed: job.ProcessedCount,
		Target:    job.TargetCount,
		Error:     job.LastError,
		At:        job.UpdatedAt,
	}
	if job.File != nil {
		event.Filename = job.File.Name
	}
	select {
	case m.events <- event:
	default:
		m.logger.Warn("phase_event_dropped", "job_id", job.ID, "to", event.To)
	}
}

// runPublisher sends queued events until Close, then drains what is left.
func (m *IngestionMachine) runPublisher() {
	defer close(m.publishDone)
	for {
		select {
		case event := <-m.events:
			m.publish(event)
		case <-m.baseCtx.Done():
			for {
				select {
				case event := <-m.events:
					m.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (m *IngestionMachine) publish(event domain.PhaseEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := m.publisher.PublishPhaseChange(ctx, event); err != nil {
		m.logger.Warn("phase_publish_failed", "job_id", event.JobID, "to", event.To, "error", err)
	}
}

func cloneJob(job domain.UploadJob) domain.UploadJob {
	out := job
	if job.File != nil {
		file := *job.File
		out.File = &file
	}
	if job.TargetCount != nil {
		target := *job.TargetCount
		out.TargetCount = &target
	}
	out.Result = maps.Clone(job.Result)
	return out
}
