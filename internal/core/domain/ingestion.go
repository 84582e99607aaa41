package domain

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelected
	PhaseUploading
	PhaseAwaitingIndex
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelected:
		return "selected"
	case PhaseUploading:
		return "uploading"
	case PhaseAwaitingIndex:
		return "awaiting_index"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether the phase owns in-flight network work.
func (p Phase) Busy() bool {
	return p == PhaseUploading || p == PhaseAwaitingIndex
}

func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// SelectedFile is a local document chosen for upload.
type SelectedFile struct {
	Name      string
	Size      int64
	PageCount int
	Open      func() (io.ReadCloser, error)
}

func (f SelectedFile) IsPDF() bool {
	return strings.EqualFold(filepath.Ext(f.Name), ".pdf")
}

// UploadResult is the opaque JSON object returned by a successful upload.
type UploadResult map[string]any

// IngestionStatus is one reading of the backend chunk counters.
type IngestionStatus struct {
	ProcessedCount int
	TargetCount    *int
}

type UploadJob struct {
	ID             string
	File           *SelectedFile
	Phase          Phase
	UploadPercent  int
	ProcessedCount int
	TargetCount    *int
	LastError      string
	Result         UploadResult
	// CompletedByHeuristic is set when Ready was reached without a known
	// target count.
	CompletedByHeuristic bool
	UpdatedAt            time.Time
}

// ProgressPercent is floor(processed/target*100) clamped to 100. ok is false
// when the target is unknown or not positive.
func (j UploadJob) ProgressPercent() (int, bool) {
	if j.TargetCount == nil || *j.TargetCount <= 0 {
		return 0, false
	}
	pct := j.ProcessedCount * 100 / *j.TargetCount
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct, true
}

// PhaseEvent describes one lifecycle transition of an upload job.
type PhaseEvent struct {
	JobID     string    `json:"job_id"`
	Filename  string    `json:"filename,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Processed int       `json:"processed"`
	Target    *int      `json:"target,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// DocumentInfo is one entry of the backend document listing.
type DocumentInfo struct {
	Filename    string `json:"filename"`
	UploadDate  string `json:"upload_date"`
	ChunksCount int    `json:"chunks_count"`
	Status      string `json:"status"`
}
