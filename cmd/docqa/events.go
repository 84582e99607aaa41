package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

func newEventsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print ingestion phase events published on NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Publisher == nil {
				return fmt.Errorf("events: DOCQA_NATS_URL is not set")
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			err = app.Publisher.SubscribePhaseChanges(cmd.Context(), func(_ context.Context, event domain.PhaseEvent) error {
				return encoder.Encode(event)
			})
			return ignoreCanceled(err)
		},
	}
}
