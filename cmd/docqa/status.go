package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/adapters/terminal"
)

func newStatusCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base readiness and uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, terminal.KnowledgeBaseLine(app.KnowledgeBase.Check(cmd.Context())))

			docs, err := app.Backend.ListDocuments(cmd.Context())
			if err != nil {
				app.Logger.Warn("list_documents_failed", "error", err)
				fmt.Fprintln(out, "documents: unavailable")
				return nil
			}
			return terminal.WriteDocuments(out, docs)
		},
	}
}
