package ports

import (
	"context"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

// Ingestor is the inbound contract for the upload lifecycle.
type Ingestor interface {
	Select(file domain.SelectedFile) error
	SelectPath(path string) error
	StartUpload() error
	Retry() error
	Snapshot() domain.UploadJob
	Subscribe(fn func(domain.UploadJob)) (unsubscribe func())
	Close()
}

// KnowledgeBase is the inbound contract for availability tracking.
type KnowledgeBase interface {
	Check(ctx context.Context) domain.KnowledgeBaseStatus
	Refresh()
	Status() domain.KnowledgeBaseStatus
	IsAvailable() bool
	Subscribe(fn func(domain.KnowledgeBaseStatus)) (unsubscribe func())
	Close()
}

// Conversation is the inbound contract for the chat session.
type Conversation interface {
	SetInput(text string)
	Input() string
	Send(question string) error
	SendInput() error
	Turns() []domain.ChatTurn
	InFlight() bool
	Wait()
	Subscribe(fn func([]domain.ChatTurn)) (unsubscribe func())
	Close()
}
