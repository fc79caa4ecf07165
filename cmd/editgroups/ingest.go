package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/editgroups/editgroups/internal/feed"
	"github.com/editgroups/editgroups/internal/ingest"
	"github.com/editgroups/editgroups/internal/utils"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest dumps of recent changes, one JSON record per line",
	Long: `Ingest dumps of recent changes, one JSON record per line.
Files ending in .gz or .zst are decompressed. Ingesting a file twice is harmless.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipeline, err := newPipeline(ctx)
		if err != nil {
			return err
		}

		var total ingest.Stats
		for _, path := range args {
			src, err := feed.OpenFile(path)
			if err != nil {
				return err
			}
			start := time.Now()
			stats, err := pipeline.Run(ctx, src)
			_ = src.Close()
			total.Add(stats)

			logger.WithField("file", path).
				WithField("elapsed", utils.FormatDuration(time.Since(start))).
				Info(stats.String())
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			if ctx.Err() != nil {
				break
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), total.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
