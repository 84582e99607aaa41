package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

// InboxResult is the terminal state reached by one inbox file.
type InboxResult struct {
	Path string
	Job  domain.UploadJob
	Err  error
}

// Inbox feeds paths through an ingestor one at a time, waiting for each job
// to become Ready or Failed before selecting the next.
type Inbox struct {
	ingestor ports.Ingestor
	logger   *slog.Logger
}

func NewInbox(ingestor ports.Ingestor, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{ingestor: ingestor, logger: logger}
}

// Run consumes paths until the channel closes or ctx ends, reporting every
// file to onResult.
func (b *Inbox) Run(ctx context.Context, paths <-chan string, onResult func(InboxResult)) error {
	terminal := make(chan domain.UploadJob, 16)
	unsubscribe := b.ingestor.Subscribe(func(job domain.UploadJob) {
		if !job.Phase.Terminal() {
			return
		}
		select {
		case terminal <- job:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			result := b.process(ctx, path, terminal)
			if result.Err != nil {
				b.logger.Warn("inbox_file_skipped", "path", path, "error", result.Err)
			} else {
				b.logger.Info("inbox_file_done", "path", path, "phase", result.Job.Phase.String())
			}
			if onResult != nil {
				onResult(result)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (b *Inbox) process(ctx context.Context, path string, terminal <-chan domain.UploadJob) InboxResult {
	if err := b.ingestor.SelectPath(path); err != nil {
		return InboxResult{Path: path, Job: b.ingestor.Snapshot(), Err: err}
	}
	jobID := b.ingestor.Snapshot().ID
	if err := b.ingestor.StartUpload(); err != nil {
		return InboxResult{Path: path, Job: b.ingestor.Snapshot(), Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return InboxResult{Path: path, Job: b.ingestor.Snapshot(), Err: ctx.Err()}
		case job := <-terminal:
			if job.ID == jobID {
				return InboxResult{Path: path, Job: job}
			}
		}
	}
}
