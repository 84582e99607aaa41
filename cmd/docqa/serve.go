package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/docqa-client/internal/adapters/http"
	"github.com/kirillkom/docqa-client/internal/bootstrap"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the client state, actions and metrics over local HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if cmd.Flags().Changed("addr") {
				app.Config.MetricsAddr = addr
			}
			if app.Config.MetricsAddr == "" {
				return fmt.Errorf("serve: no listen address; set --addr or DOCQA_METRICS_ADDR")
			}
			app.KnowledgeBase.Check(cmd.Context())

			g, ctx := errgroup.WithContext(cmd.Context())
			runControlServer(ctx, g, app)
			return ignoreCanceled(g.Wait())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides DOCQA_METRICS_ADDR)")
	return cmd
}

// runControlServer starts the control router on app.Config.MetricsAddr and
// shuts it down when ctx ends.
func runControlServer(ctx context.Context, g *errgroup.Group, app *bootstrap.App) {
	router := httpadapter.NewRouter(app.Ingestion, app.KnowledgeBase, app.Chat, httpadapter.Options{
		Documents: app.Backend,
		Metrics:   app.Metrics.Handler(),
		Logger:    app.Logger,
	})
	server := &http.Server{
		Addr:              app.Config.MetricsAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		app.Logger.Info("control_server_started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("control_server_shutdown_failed", "error", err)
		}
		return ctx.Err()
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
