package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/editgroups/editgroups/internal/ingest"
)

// Runner ingests the records of a source until it ends or fails.
type Runner interface {
	Run(ctx context.Context, src ingest.Source) (ingest.Stats, error)
}

// Stream is a restartable record source. After an error, the next read
// resumes after the last event returned.
type Stream interface {
	ingest.Source
	LastEventID() string
}

// StreamListener keeps a pipeline fed from the live edit stream
type StreamListener struct {
	runner    Runner
	stream    Stream
	reconnect time.Duration
	logger    logrus.FieldLogger

	mu      sync.Mutex
	totals  ingest.Stats
	pending [][]byte
}

// NewStreamListener creates a listener waiting reconnect between two
// connections to the stream.
func NewStreamListener(runner Runner, stream Stream, reconnect time.Duration, logger logrus.FieldLogger) *StreamListener {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &StreamListener{
		runner:    runner,
		stream:    stream,
		reconnect: reconnect,
		logger:    logger.WithField("job", "stream_listener"),
	}
}

// RunOnce ingests from the stream until it is interrupted or ctx is done.
// Records of a chunk that a previous run failed to commit are submitted
// again before anything new is read. Returns the stats of this run
func (l *StreamListener) RunOnce(ctx context.Context) (ingest.Stats, error) {
	l.mu.Lock()
	src := &replaySource{records: l.pending, next: l.stream}
	l.pending = nil
	l.mu.Unlock()

	stats, err := l.runner.Run(ctx, src)

	var chunkErr *ingest.ChunkError
	var pending [][]byte
	if errors.As(err, &chunkErr) {
		pending = append(pending, chunkErr.Records...)
	}
	pending = append(pending, src.records...)

	l.mu.Lock()
	l.totals.Add(stats)
	l.pending = pending
	l.mu.Unlock()

	return stats, err
}

// Pending returns the number of records waiting to be submitted again.
func (l *StreamListener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Totals returns the stats accumulated since the listener was created.
func (l *StreamListener) Totals() ingest.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}

// Start listens until stop is closed, reconnecting after every interruption
func (l *StreamListener) Start(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		stats, err := l.RunOnce(ctx)
		if ctx.Err() != nil {
			l.stopped()
			return
		}

		entry := l.logger.WithFields(logrus.Fields{
			"records":       stats.Records,
			"pending":       l.Pending(),
			"edits":         stats.EditsCreated,
			"last_event_id": l.stream.LastEventID(),
			"retry_in":      l.reconnect,
		})
		if err != nil {
			entry.WithError(err).Warn("Edit stream interrupted, reconnecting")
		} else {
			entry.Info("Edit stream ended, reconnecting")
		}

		timer := time.NewTimer(l.reconnect)
		select {
		case <-stop:
			timer.Stop()
			l.stopped()
			return
		case <-timer.C:
		}
	}
}

func (l *StreamListener) stopped() {
	entry := l.logger.WithField("edits", l.Totals().EditsCreated)
	if n := l.Pending(); n > 0 {
		entry.WithField("pending", n).Warn("Stream listener stopped with records not ingested")
		return
	}
	entry.Info("Stream listener stopped")
}

// replaySource yields records held back from a failed run, then reads from
// next. Records not handed out stay in records.
type replaySource struct {
	records [][]byte
	next    ingest.Source
}

func (s *replaySource) Next(ctx context.Context) ([]byte, error) {
	if len(s.records) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := s.records[0]
		s.records = s.records[1:]
		return data, nil
	}
	return s.next.Next(ctx)
}
