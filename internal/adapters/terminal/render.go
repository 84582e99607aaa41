// Package terminal renders client state as plain text lines.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

const previewRunes = 50

func JobLine(job domain.UploadJob) string {
	name := "-"
	if job.File != nil {
		name = job.File.Name
	}
	switch job.Phase {
	case domain.PhaseIdle:
		if job.LastError != "" {
			return "no file selected: " + job.LastError
		}
		return "no file selected"
	case domain.PhaseSelected:
		line := name + ": selected"
		if job.File != nil && job.File.PageCount > 0 {
			line += fmt.Sprintf(" (%d pages)", job.File.PageCount)
		}
		if job.LastError != "" {
			line += ": " + job.LastError
		}
		return line
	case domain.PhaseUploading:
		return fmt.Sprintf("%s: uploading %d%%", name, job.UploadPercent)
	case domain.PhaseAwaitingIndex:
		if pct, ok := job.ProgressPercent(); ok {
			return fmt.Sprintf("%s: indexing %d/%d chunks (%d%%)", name, job.ProcessedCount, *job.TargetCount, pct)
		}
		return fmt.Sprintf("%s: indexing, %d chunks so far", name, job.ProcessedCount)
	case domain.PhaseReady:
		if job.CompletedByHeuristic {
			return fmt.Sprintf("%s: ready (%d chunks, total not reported)", name, job.ProcessedCount)
		}
		return fmt.Sprintf("%s: ready (%d chunks)", name, job.ProcessedCount)
	case domain.PhaseFailed:
		return fmt.Sprintf("%s: failed: %s", name, job.LastError)
	default:
		return name + ": " + job.Phase.String()
	}
}

func KnowledgeBaseLine(status domain.KnowledgeBaseStatus) string {
	switch {
	case !status.Known():
		return "knowledge base: checking..."
	case status.IsAvailable():
		return fmt.Sprintf("knowledge base: ready (%d chunks)", status.ItemCount)
	default:
		return "knowledge base: empty, upload a PDF first"
	}
}

// WriteTurn prints one turn followed by its citations, one per line.
func WriteTurn(w io.Writer, turn domain.ChatTurn) error {
	prefix := "you"
	if turn.Role == domain.RoleAssistant {
		prefix = "assistant"
	}
	if _, err := fmt.Fprintf(w, "%s> %s\n", prefix, turn.Text); err != nil {
		return err
	}
	for _, c := range turn.Citations {
		snippet := strings.Join(strings.Fields(c.Preview(previewRunes)), " ")
		if _, err := fmt.Fprintf(w, "    [p.%d] %s (%.2f)\n", c.PageNumber, snippet, c.RelevanceScore); err != nil {
			return err
		}
	}
	return nil
}

func WriteDocuments(w io.Writer, docs []domain.DocumentInfo) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "no documents uploaded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILENAME\tCHUNKS\tSTATUS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.Filename, d.ChunksCount, d.Status, d.UploadDate)
	}
	return tw.Flush()
}
