package usecase

import "github.com/kirillkom/docqa-client/internal/core/domain"

// CompletionPolicy decides when a polled ingestion counts as finished.
//
// With a positive target the job is done once processed >= target. Without
// one the backend gives no way to tell "fully indexed" from "first chunk
// indexed", so by default any positive count is trusted as completion.
// RequireTarget turns that heuristic off and keeps polling until a target
// is reported.
type CompletionPolicy struct {
	RequireTarget bool
}

func (p CompletionPolicy) Evaluate(status domain.IngestionStatus) bool {
	if hasTarget(status) {
		return status.ProcessedCount >= *status.TargetCount
	}
	if p.RequireTarget {
		return false
	}
	return status.ProcessedCount > 0
}

// UsedHeuristic reports whether Evaluate would complete status only through
// the unknown-target fallback.
func (p CompletionPolicy) UsedHeuristic(status domain.IngestionStatus) bool {
	return !hasTarget(status) && p.Evaluate(status)
}

func hasTarget(status domain.IngestionStatus) bool {
	return status.TargetCount != nil && *status.TargetCount > 0
}
