package ports

import (
	"context"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

// ProgressFunc receives non-decreasing upload percentages in [0, 100].
type ProgressFunc func(percent int)

// Uploader transmits one document to the backend.
type Uploader interface {
	Upload(ctx context.Context, file domain.SelectedFile, progress ProgressFunc) (domain.UploadResult, error)
}

// ChatClient asks one question with the prior user turns.
type ChatClient interface {
	Ask(ctx context.Context, question string, history []domain.HistoryEntry) (domain.ChatAnswer, error)
}

// StatusChecker reads the backend chunk counters.
type StatusChecker interface {
	CheckIngestionStatus(ctx context.Context) (domain.IngestionStatus, error)
}

// DocumentLister reads the backend document listing.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error)
}

// TransferChannel is the full network surface the client relies on.
type TransferChannel interface {
	Uploader
	ChatClient
	StatusChecker
	DocumentLister
}

// EventPublisher fans lifecycle transitions out to external subscribers.
type EventPublisher interface {
	PublishPhaseChange(ctx context.Context, event domain.PhaseEvent) error
}

// FileInspector turns a local path into a selectable file.
type FileInspector interface {
	Inspect(path string) (domain.SelectedFile, error)
}

// ClientMetrics records client-side activity.
type ClientMetrics interface {
	ObservePhase(phase domain.Phase)
	ObserveUpload(duration float64, err error)
	ObservePollTick(err error)
	ObserveChat(duration float64, err error)
	SetKnowledgeBase(available bool, items int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) ObservePhase(domain.Phase) {}
func (NoopMetrics) ObserveUpload(float64, error) {}
func (NoopMetrics) ObservePollTick(error) {}
func (NoopMetrics) ObserveChat(float64, error) {}
func (NoopMetrics) SetKnowledgeBase(bool, int) {}
