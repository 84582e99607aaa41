package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/adapters/terminal"
	"github.com/kirillkom/docqa-client/internal/core/domain"
)

const chatHelp = "commands: /upload FILE.pdf, /retry, /status, /quit"

func newChatCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive multi-turn chat; upload documents with /upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, terminal.KnowledgeBaseLine(app.KnowledgeBase.Check(ctx)))
			fmt.Fprintln(out, chatHelp)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				if ctx.Err() != nil {
					return nil
				}
				line := strings.TrimSpace(scanner.Text())

				switch {
				case line == "":
					continue
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/status":
					fmt.Fprintln(out, terminal.JobLine(app.Ingestion.Snapshot()))
					fmt.Fprintln(out, terminal.KnowledgeBaseLine(app.KnowledgeBase.Check(ctx)))
				case strings.HasPrefix(line, "/upload "):
					result := uploadAndWait(ctx, app, out, strings.TrimSpace(strings.TrimPrefix(line, "/upload ")))
					if result.Err != nil && !errors.Is(result.Err, domain.ErrValidation) {
						fmt.Fprintln(out, "error:", result.Err)
					}
				case line == "/retry":
					if err := app.Ingestion.Retry(); err != nil {
						fmt.Fprintln(out, "nothing to retry")
						continue
					}
					unsubscribe := printJobUpdates(app, out)
					awaitTerminal(ctx, app)
					unsubscribe()
				case strings.HasPrefix(line, "/"):
					fmt.Fprintln(out, chatHelp)
				default:
					app.Chat.SetInput(line)
					err := app.Chat.SendInput()
					switch {
					case errors.Is(err, domain.ErrGated):
						fmt.Fprintln(out, terminal.KnowledgeBaseLine(app.KnowledgeBase.Status()))
						continue
					case err != nil:
						fmt.Fprintln(out, "error:", err)
						continue
					}
					app.Chat.Wait()
					turns := app.Chat.Turns()
					if err := terminal.WriteTurn(out, turns[len(turns)-1]); err != nil {
						return err
					}
				}
			}
		},
	}
}
