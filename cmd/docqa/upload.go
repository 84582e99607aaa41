package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/adapters/terminal"
	"github.com/kirillkom/docqa-client/internal/bootstrap"
	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/usecase"
)

func newUploadCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE.pdf",
		Short: "Upload a PDF and wait until it is indexed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result := uploadAndWait(cmd.Context(), app, cmd.OutOrStdout(), args[0])
			if result.Err != nil {
				return result.Err
			}
			if result.Job.Phase == domain.PhaseFailed {
				return fmt.Errorf("upload failed: %s", result.Job.LastError)
			}
			return nil
		},
	}
}

// uploadAndWait runs one path through the inbox, printing every distinct
// progress line.
func uploadAndWait(ctx context.Context, app *bootstrap.App, out io.Writer, path string) usecase.InboxResult {
	unsubscribe := printJobUpdates(app, out)
	defer unsubscribe()

	paths := make(chan string, 1)
	paths <- path
	close(paths)

	var result usecase.InboxResult
	if err := app.Inbox.Run(ctx, paths, func(r usecase.InboxResult) { result = r }); err != nil {
		return usecase.InboxResult{Path: path, Job: app.Ingestion.Snapshot(), Err: err}
	}
	return result
}

// printJobUpdates writes a line whenever the rendered job changes.
// Snapshots are delivered one at a time, so last needs no lock.
func printJobUpdates(app *bootstrap.App, out io.Writer) func() {
	var last string
	return app.Ingestion.Subscribe(func(job domain.UploadJob) {
		line := terminal.JobLine(job)
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(out, line)
	})
}

// awaitTerminal blocks until the current job is Ready or Failed, or ctx ends.
func awaitTerminal(ctx context.Context, app *bootstrap.App) domain.UploadJob {
	jobID := app.Ingestion.Snapshot().ID
	done := make(chan domain.UploadJob, 1)
	unsubscribe := app.Ingestion.Subscribe(func(job domain.UploadJob) {
		if job.ID != jobID || !job.Phase.Terminal() {
			return
		}
		select {
		case done <- job:
		default:
		}
	})
	defer unsubscribe()

	if job := app.Ingestion.Snapshot(); job.ID == jobID && job.Phase.Terminal() {
		return job
	}
	select {
	case job := <-done:
		return job
	case <-ctx.Done():
		return app.Ingestion.Snapshot()
	}
}
