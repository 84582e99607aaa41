package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docqa-client/internal/adapters/terminal"
	"github.com/kirillkom/docqa-client/internal/core/usecase"
	"github.com/kirillkom/docqa-client/internal/infrastructure/filewatcher"
)

func newWatchCommand(flags *rootFlags) *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Upload every PDF that lands in a directory, one at a time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			dir := app.Config.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("watch: no directory; pass DIR or set DOCQA_WATCH_DIR")
			}

			watcher, err := filewatcher.New(nil, settle, app.Logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Stop()

			g, ctx := errgroup.WithContext(cmd.Context())
			paths, err := watcher.Watch(ctx, dir)
			if err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			app.Logger.Info("inbox_watch_started", "dir", dir)

			out := cmd.OutOrStdout()
			unsubscribe := printJobUpdates(app, out)
			defer unsubscribe()

			g.Go(func() error {
				return app.Inbox.Run(ctx, paths, func(result usecase.InboxResult) {
					if result.Err != nil {
						fmt.Fprintf(out, "%s: skipped: %v\n", result.Path, result.Err)
						return
					}
					fmt.Fprintf(out, "%s: %s\n", result.Path, terminal.JobLine(result.Job))
				})
			})
			if app.Config.MetricsAddr != "" {
				runControlServer(ctx, g, app)
			}
			return ignoreCanceled(g.Wait())
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", filewatcher.DefaultSettle, "quiet period before a new file is picked up")
	return cmd
}
