package httpadapter

import (
	"time"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

type stateView struct {
	Job           jobView           `json:"job"`
	KnowledgeBase knowledgeBaseView `json:"knowledge_base"`
	Turns         []domain.ChatTurn `json:"turns"`
	ChatInFlight  bool              `json:"chat_in_flight"`
}

type jobView struct {
	ID                   string              `json:"id,omitempty"`
	Phase                string              `json:"phase"`
	Filename             string              `json:"filename,omitempty"`
	SizeBytes            int64               `json:"size_bytes,omitempty"`
	PageCount            int                 `json:"page_count,omitempty"`
	UploadPercent        int                 `json:"upload_percent"`
	ProcessedCount       int                 `json:"processed_count"`
	TargetCount          *int                `json:"target_count"`
	ProgressPercent      *int                `json:"progress_percent"`
	LastError            string              `json:"last_error,omitempty"`
	CompletedByHeuristic bool                `json:"completed_by_heuristic"`
	Result               domain.UploadResult `json:"result,omitempty"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func newJobView(job domain.UploadJob) jobView {
	view := jobView{
		ID:                   job.ID,
		Phase:                job.Phase.String(),
		UploadPercent:        job.UploadPercent,
		ProcessedCount:       job.ProcessedCount,
		TargetCount:          job.TargetCount,
		LastError:            job.LastError,
		CompletedByHeuristic: job.CompletedByHeuristic,
		Result:               job.Result,
		UpdatedAt:            job.UpdatedAt,
	}
	if job.File != nil {
		view.Filename = job.File.Name
		view.SizeBytes = job.File.Size
		view.PageCount = job.File.PageCount
	}
	if pct, ok := job.ProgressPercent(); ok {
		view.ProgressPercent = &pct
	}
	return view
}

type knowledgeBaseView struct {
	Checking  bool  `json:"checking"`
	Available *bool `json:"available"`
	ItemCount int   `json:"item_count"`
}

func newKnowledgeBaseView(status domain.KnowledgeBaseStatus) knowledgeBaseView {
	return knowledgeBaseView{
		Checking:  !status.Known(),
		Available: status.Available,
		ItemCount: status.ItemCount,
	}
}
