package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

var errNetwork = errors.New("connection refused")

type statusStep struct {
	status domain.IngestionStatus
	err    error
}

// statusScript replays steps in order and then repeats the last one.
type statusScript struct {
	mu       sync.Mutex
	steps    []statusStep
	calls    int
	inFlight int
	maxSeen  int
}

func (s *statusScript) CheckIngestionStatus(context.Context) (domain.IngestionStatus, error) {
	s.mu.Lock()
	s.inFlight++
	s.maxSeen = max(s.maxSeen, s.inFlight)
	idx := min(s.calls, len(s.steps)-1)
	s.calls++
	step := statusStep{}
	if idx >= 0 {
		step = s.steps[idx]
	}
	s.mu.Unlock()

	time.Sleep(200 * time.Microsecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return step.status, step.err
}

func (s *statusScript) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type uploaderFake struct {
	mu       sync.Mutex
	calls    int
	files    []string
	progress []int
	result   domain.UploadResult
	err      error
	block    bool
}

func (f *uploaderFake) Upload(ctx context.Context, file domain.SelectedFile, progress ports.ProgressFunc) (domain.UploadResult, error) {
	f.mu.Lock()
	f.calls++
	f.files = append(f.files, file.Name)
	steps := append([]int(nil), f.progress...)
	result, err, block := f.result, f.err, f.block
	f.mu.Unlock()

	for _, p := range steps {
		if progress != nil {
			progress(p)
		}
	}
	if block {
		<-ctx.Done()
		return nil, domain.WrapError(domain.ErrUpload, "upload", ctx.Err())
	}
	return result, err
}

func (f *uploaderFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.PhaseEvent

	// release, when set, holds every publish until it is closed.
	release chan struct{}
}

func (p *publisherFake) PublishPhaseChange(ctx context.Context, event domain.PhaseEvent) error {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *publisherFake) transitions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.From+">"+e.To)
	}
	return out
}

type inspectorFake struct {
	file domain.SelectedFile
	err  error
	path string
}

func (f *inspectorFake) Inspect(path string) (domain.SelectedFile, error) {
	f.path = path
	return f.file, f.err
}

func pdfFile(name string) domain.SelectedFile {
	content := []byte("%PDF-1.4 test")
	return domain.SelectedFile{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func ptr(v int) *int { return &v }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// phaseRecorder collects every committed snapshot of a machine.
type phaseRecorder struct {
	mu   sync.Mutex
	jobs []domain.UploadJob
}

func (r *phaseRecorder) record(job domain.UploadJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *phaseRecorder) phases() []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Phase, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Phase)
	}
	return out
}

func (r *phaseRecorder) snapshots() []domain.UploadJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UploadJob(nil), r.jobs...)
}
