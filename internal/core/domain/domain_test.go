package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestProgressPercent(t *testing.T) {
	target := func(v int) *int { return &v }
	cases := []struct {
		name      string
		job       UploadJob
		percent   int
		knownGoal bool
	}{
		{name: "no target", job: UploadJob{ProcessedCount: 3}},
		{name: "zero target", job: UploadJob{ProcessedCount: 3, TargetCount: target(0)}},
		{name: "floor", job: UploadJob{ProcessedCount: 2, TargetCount: target(3)}, percent: 66, knownGoal: true},
		{name: "complete", job: UploadJob{ProcessedCount: 3, TargetCount: target(3)}, percent: 100, knownGoal: true},
		{name: "clamped", job: UploadJob{ProcessedCount: 9, TargetCount: target(3)}, percent: 100, knownGoal: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct, ok := tc.job.ProgressPercent()
			if ok != tc.knownGoal || pct != tc.percent {
				t.Fatalf("expected %d %v, got %d %v", tc.percent, tc.knownGoal, pct, ok)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	for name, expected := range map[string]bool{
		"a.pdf":           true,
		"B.PDF":           true,
		"c.Pdf":           true,
		"notes.txt":       false,
		"pdf":             false,
		"archive.pdf.zip": false,
	} {
		if got := (SelectedFile{Name: name}).IsPDF(); got != expected {
			t.Fatalf("IsPDF(%q) = %v, expected %v", name, got, expected)
		}
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err      error
		expected string
	}{
		{err: &RemoteError{Kind: ErrUpload, StatusCode: 400, Message: "Only PDF files are allowed"}, expected: "Only PDF files are allowed"},
		{err: fmt.Errorf("wrapped: %w", &RemoteError{Kind: ErrChat, StatusCode: 500}), expected: MsgChatError},
		{err: WrapError(ErrTimeout, "upload", errors.New("deadline")), expected: MsgUploadTimeout},
		{err: WrapError(ErrProtocol, "upload", errors.New("eof")), expected: MsgInvalidResponse},
		{err: WrapError(ErrUpload, "upload", errors.New("reset")), expected: MsgUploadFailed},
		{err: WrapError(ErrServer, "chat", errors.New("refused")), expected: MsgServerError},
		{err: WrapError(ErrValidation, "select", errors.New("txt")), expected: MsgNotPDF},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.expected {
			t.Fatalf("UserMessage(%v) = %q, expected %q", tc.err, got, tc.expected)
		}
	}
	if UserMessage(nil) != "" {
		t.Fatalf("expected empty message for nil error")
	}
}

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(ErrUpload, "upload report.pdf", cause)
	if !IsKind(err, ErrUpload) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to be preserved, got %v", err)
	}
	if err.Error() != "upload report.pdf: upload failed: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrapError(ErrUpload, "op", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestCitationPreview(t *testing.T) {
	c := Citation{Snippet: "héllo wörld"}
	if got := c.Preview(5); got != "héllo..." {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := c.Preview(50); got != "héllo wörld" {
		t.Fatalf("expected full snippet, got %q", got)
	}
}

func TestChatAnswerText(t *testing.T) {
	if got := (ChatAnswer{Answer: "yes", Detail: "d"}).Text(); got != "yes" {
		t.Fatalf("expected answer, got %q", got)
	}
	if got := (ChatAnswer{Detail: "no docs"}).Text(); got != "no docs" {
		t.Fatalf("expected detail, got %q", got)
	}
	if got := (ChatAnswer{}).Text(); got != MsgNoAnswer {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestKnowledgeBaseStatus(t *testing.T) {
	var unknown KnowledgeBaseStatus
	if unknown.Known() || unknown.IsAvailable() {
		t.Fatalf("expected zero status to be unknown")
	}
	no, yes := false, true
	if (KnowledgeBaseStatus{Available: &no}).IsAvailable() {
		t.Fatalf("expected unavailable")
	}
	if !(KnowledgeBaseStatus{Available: &yes}).IsAvailable() {
		t.Fatalf("expected available")
	}
}

func TestPhaseClassification(t *testing.T) {
	cases := []struct {
		phase    Phase
		busy     bool
		terminal bool
	}{
		{PhaseIdle, false, false},
		{PhaseSelected, false, false},
		{PhaseUploading, true, false},
		{PhaseAwaitingIndex, true, false},
		{PhaseReady, false, true},
		{PhaseFailed, false, true},
	}
	for _, tc := range cases {
		if got := tc.phase.Busy(); got != tc.busy {
			t.Fatalf("%s: expected busy=%v, got %v", tc.phase, tc.busy, got)
		}
		if got := tc.phase.Terminal(); got != tc.terminal {
			t.Fatalf("%s: expected terminal=%v, got %v", tc.phase, tc.terminal, got)
		}
	}
}
