package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/editgroups/editgroups/internal/feed"
	"github.com/editgroups/editgroups/internal/jobs"
)

var lastEventID string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Ingest the live recent changes stream until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}

		stream := feed.NewEventStream(cfg.StreamURL,
			feed.WithWiki(cfg.StreamWiki),
			feed.WithLastEventID(lastEventID),
			feed.WithStreamLogger(logger),
		)
		defer stream.Close()

		listener := jobs.NewStreamListener(pipeline, stream, cfg.StreamReconnect, logger)

		stop := make(chan struct{})
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			<-sigChan
			logger.Info("Received shutdown signal, finishing the current chunk...")
			close(stop)
		}()

		logger.WithField("url", cfg.StreamURL).WithField("wiki", cfg.StreamWiki).Info("Listening to the edit stream")
		listener.Start(stop)

		logger.WithField("last_event_id", stream.LastEventID()).Info(listener.Totals().String())
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&lastEventID, "since", "", "resume after this event id")
	rootCmd.AddCommand(listenCmd)
}
