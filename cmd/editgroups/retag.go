package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/editgroups/editgroups/internal/services"
)

var retagCmd = &cobra.Command{
	Use:   "retag",
	Short: "Recompute the tags of every batch from its stored edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		added, err := services.NewRetagService(db, logger).RetagAll(ctx)
		if err != nil {
			return err
		}
		logger.WithField("added", added).Info("Batches retagged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retagCmd)
}
