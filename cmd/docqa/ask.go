package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/adapters/terminal"
	"github.com/kirillkom/docqa-client/internal/bootstrap"
	"github.com/kirillkom/docqa-client/internal/core/domain"
)

func newAskCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask one question against the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			status := app.KnowledgeBase.Check(cmd.Context())
			if !status.IsAvailable() {
				fmt.Fprintln(out, terminal.KnowledgeBaseLine(status))
				return domain.ErrGated
			}
			return askAndPrint(app, out, strings.Join(args, " "))
		},
	}
}

// askAndPrint sends question, waits for the answer and prints the new
// assistant turn.
func askAndPrint(app *bootstrap.App, out io.Writer, question string) error {
	if err := app.Chat.Send(question); err != nil {
		if errors.Is(err, domain.ErrEmptyQuestion) {
			return nil
		}
		return err
	}
	app.Chat.Wait()

	turns := app.Chat.Turns()
	if len(turns) == 0 {
		return nil
	}
	return terminal.WriteTurn(out, turns[len(turns)-1])
}
