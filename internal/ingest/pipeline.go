// Package ingest turns raw edit records into batches, edits, tags and
// revert flags.
//
// Records are processed in chunks. Each chunk is classified against the tool
// registry, aggregated per batch, then committed in a single store
// transaction. Re-ingesting records that were already stored does not change
// any batch, so a failed chunk can be retried as a whole.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/registry"
	"github.com/editgroups/editgroups/internal/store"
	"github.com/editgroups/editgroups/internal/tagging"
	"github.com/editgroups/editgroups/internal/utils"
)

// Defaults for the pipeline options.
const (
	DefaultChunkSize      = 50
	DefaultMaxFieldLength = database.MaxCharFieldLength
	DefaultWorkers        = 4
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = time.Second
)

// Source yields raw records one at a time. io.EOF ends the stream.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Pipeline ingests records into a store.
type Pipeline struct {
	store    store.Store
	registry *registry.Registry
	logger   logrus.FieldLogger

	chunkSize      int
	maxFieldLength int
	workers        int
	maxRetries     int
	retryDelay     time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunkSize sets the number of records committed together.
func WithChunkSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithMaxFieldLength sets the truncation bound of short text fields.
func WithMaxFieldLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxFieldLength = n
		}
	}
}

// WithWorkers sets how many records of a chunk are classified concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxRetries sets how many times a chunk is retried after a storage failure.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryDelay sets the pause before the first retry. Later retries wait
// proportionally longer.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline writing to s and classifying with reg.
func New(s store.Store, reg *registry.Registry, opts ...Option) *Pipeline {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	p := &Pipeline{
		store:          s,
		registry:       reg,
		logger:         discard,
		chunkSize:      DefaultChunkSize,
		maxFieldLength: DefaultMaxFieldLength,
		workers:        DefaultWorkers,
		maxRetries:     DefaultMaxRetries,
		retryDelay:     DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ChunkSize returns the configured chunk size.
func (p *Pipeline) ChunkSize() int {
	return p.chunkSize
}

// Run reads src until io.EOF and ingests its records chunk by chunk.
// Unparseable records are counted and skipped. A chunk failing with
// ErrStorage is retried; once retries are exhausted Run returns a
// *ChunkError carrying the records of that chunk, together with the totals
// of the chunks committed so far.
//
// Cancelling ctx stops reading and interrupts retry backoff, but a chunk
// attempt that has started is committed.
func (p *Pipeline) Run(ctx context.Context, src Source) (Stats, error) {
	logger := p.logger.WithField("run", uuid.NewString())

	var total Stats
	chunk := make([]*RawEdit, 0, p.chunkSize)
	var raws [][]byte

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		stats, err := p.ingestWithRetry(ctx, chunk, logger)
		if err != nil {
			return &ChunkError{Records: raws, Err: err}
		}
		chunk = chunk[:0]
		raws = nil
		total.Add(stats)
		return nil
	}

	for {
		data, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return total, flush()
		}
		if err != nil {
			if flushErr := flush(); flushErr != nil {
				return total, flushErr
			}
			return total, fmt.Errorf("failed to read edit stream: %w", err)
		}

		rec, err := ParseRecord(data)
		if err != nil {
			total.Records++
			total.ParseErrors++
			logger.WithError(err).WithField("record", utils.EscapeForLogging(string(data), 200)).Debug("Skipping record")
			continue
		}

		chunk = append(chunk, rec)
		raws = append(raws, data)
		if len(chunk) >= p.chunkSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
}

// ingestWithRetry commits chunk, retrying storage failures. Attempts run
// detached from ctx; only the wait between attempts is cancelled by it.
func (p *Pipeline) ingestWithRetry(ctx context.Context, chunk []*RawEdit, logger logrus.FieldLogger) (Stats, error) {
	for attempt := 0; ; attempt++ {
		stats, err := p.ingestChunk(context.WithoutCancel(ctx), chunk, logger)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, ErrStorage) || attempt >= p.maxRetries {
			logger.WithError(err).WithField("records", len(chunk)).Error("Failed to ingest chunk")
			return Stats{}, err
		}

		delay := time.Duration(attempt+1) * p.retryDelay
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warn("Chunk failed, retrying")

		if ctx.Err() != nil {
			return Stats{}, err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Stats{}, err
			case <-timer.C:
			}
		}
	}
}

// IngestChunk ingests one chunk of records. Nil records count as parse
// errors. Nothing is committed when it returns an error.
func (p *Pipeline) IngestChunk(ctx context.Context, records []*RawEdit) (Stats, error) {
	return p.ingestChunk(ctx, records, p.logger)
}

// classified is the outcome of classifying one record.
type classified struct {
	record   *RawEdit
	tool     *database.Tool
	match    registry.Match
	revertOf int64
	reverts  bool
	tags     []database.Tag
}

type pendingEdit struct {
	edit database.Edit
	key  batchKey
}

func (p *Pipeline) ingestChunk(ctx context.Context, records []*RawEdit, logger logrus.FieldLogger) (Stats, error) {
	stats := Stats{Records: len(records)}

	results := p.classify(records)

	var reverts revertSet
	agg := newAggregator(p.store, logger)
	seen := make(map[int64]bool, len(results))
	candidates := make(map[uint][]database.Tag)
	var pending []pendingEdit

	for _, c := range results {
		if c.record == nil {
			stats.ParseErrors++
			continue
		}
		if c.reverts {
			stats.RevertMarkers++
			reverts.add(c.revertOf)
		}
		if c.tool == nil {
			stats.Unmatched++
			continue
		}
		if seen[c.record.ID] {
			stats.Duplicates++
			logger.WithField("edit_id", c.record.ID).Debug("Edit delivered twice in the same chunk")
			continue
		}

		batch, err := agg.resolve(ctx, c.tool, c.match, c.record.Time())
		if err != nil {
			return Stats{}, err
		}
		if batch == nil {
			stats.Hijacked++
			continue
		}

		seen[c.record.ID] = true
		pending = append(pending, pendingEdit{
			edit: c.record.ToEdit(batch.ID, p.maxFieldLength),
			key:  batchKey{tool: c.tool.ShortID, uid: c.match.UID},
		})
		candidates[batch.ID] = append(candidates[batch.ID], c.tags...)
	}

	// Tags already on a batch are looked up once for the whole chunk
	known, err := p.store.BatchTagIDs(ctx, agg.touchedIDs())
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	tags, batchTags := newTags(candidates, known)

	err = p.store.InTransaction(ctx, func(tx store.Tx) error {
		created, duplicates, err := p.commitEdits(tx, pending, agg, logger)
		if err != nil {
			return err
		}
		stats.EditsCreated = created
		stats.Duplicates += duplicates

		if err := tx.UpdateBatchAggregates(agg.touched); err != nil {
			return err
		}
		if err := tx.EnsureTags(tags); err != nil {
			return err
		}
		if err := tx.AddBatchTags(batchTags); err != nil {
			return err
		}

		reverted, err := tx.MarkReverted(reverts.ids)
		if err != nil {
			return err
		}
		stats.EditsReverted = int(reverted)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	stats.BatchesTouched = len(agg.touched)
	for _, ids := range batchTags {
		stats.TagsAdded += len(ids)
	}

	logger.WithFields(logrus.Fields{
		"records":    stats.Records,
		"edits":      stats.EditsCreated,
		"batches":    stats.BatchesTouched,
		"duplicates": stats.Duplicates,
		"unmatched":  stats.Unmatched,
		"hijacked":   stats.Hijacked,
		"reverted":   stats.EditsReverted,
	}).Info("Ingested chunk")

	return stats, nil
}

// classify matches every record against the registry. Records are
// independent, so they are spread over the worker pool; each worker writes
// only its own slot of the result.
func (p *Pipeline) classify(records []*RawEdit) []classified {
	results := make([]classified, len(records))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, rec := range records {
		if rec == nil {
			continue
		}
		g.Go(func() error {
			results[i] = p.classifyRecord(rec)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) classifyRecord(rec *RawEdit) classified {
	c := classified{record: rec}
	c.revertOf, c.reverts = RevertedRevision(rec.Comment)

	tool, match, ok := p.registry.Match(rec.User, rec.Comment)
	if !ok {
		return c
	}
	match.UID = utils.TruncateRunes(match.UID, p.maxFieldLength)
	match.User = utils.TruncateRunes(match.User, p.maxFieldLength)
	match.Summary = utils.TruncateRunes(match.Summary, p.maxFieldLength)

	c.tool = tool
	c.match = match
	c.tags = tagging.Extract(rec.Comment)
	return c
}

// commitEdits inserts the pending edits. When some of them are already
// stored, those are removed from their batch count and the rest is
// inserted.
func (p *Pipeline) commitEdits(tx store.Tx, pending []pendingEdit, agg *aggregator, logger logrus.FieldLogger) (int, int, error) {
	if len(pending) == 0 {
		return 0, 0, nil
	}

	edits := make([]database.Edit, len(pending))
	ids := make([]int64, len(pending))
	for i, pe := range pending {
		edits[i] = pe.edit
		ids[i] = pe.edit.ID
	}

	err := tx.CreateEdits(edits)
	if err == nil {
		return len(edits), 0, nil
	}
	if !errors.Is(err, store.ErrDuplicateEdit) {
		return 0, 0, err
	}

	existing, err := tx.ExistingEditIDs(ids)
	if err != nil {
		return 0, 0, err
	}

	remaining := make([]database.Edit, 0, len(pending)-len(existing))
	for _, pe := range pending {
		if existing[pe.edit.ID] {
			agg.rollback(pe.key.tool, pe.key.uid)
			logger.WithFields(logrus.Fields{
				"edit_id": pe.edit.ID,
				"tool":    pe.key.tool,
				"uid":     pe.key.uid,
			}).Debug("Edit already ingested")
			continue
		}
		remaining = append(remaining, pe.edit)
	}

	if len(remaining) > 0 {
		if err := tx.CreateEdits(remaining); err != nil {
			return 0, 0, err
		}
	}
	return len(remaining), len(pending) - len(remaining), nil
}

// newTags keeps, for every batch, the extracted tags it did not have before
// the chunk. It returns the tags to create and the associations to add.
func newTags(candidates map[uint][]database.Tag, known map[uint]map[string]bool) ([]database.Tag, map[uint][]string) {
	byID := make(map[string]database.Tag)
	batchTags := make(map[uint][]string)

	for batchID, extracted := range candidates {
		added := make(map[string]bool)
		for _, tag := range tagging.Missing(extracted, known[batchID]) {
			if added[tag.ID] {
				continue
			}
			added[tag.ID] = true
			batchTags[batchID] = append(batchTags[batchID], tag.ID)
			if _, ok := byID[tag.ID]; !ok {
				byID[tag.ID] = tag
			}
		}
	}

	tags := make([]database.Tag, 0, len(byID))
	for _, tag := range byID {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags, batchTags
}
