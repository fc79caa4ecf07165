package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/feed"
	"github.com/editgroups/editgroups/internal/ingest"
	"github.com/editgroups/editgroups/internal/store"
	"github.com/editgroups/editgroups/internal/tagging"
	"github.com/editgroups/editgroups/internal/testhelpers"
	"github.com/editgroups/editgroups/internal/utils"
)

type fixture struct {
	tools    []database.Tool
	store    *store.Memory
	pipeline *ingest.Pipeline
}

func newFixture(t *testing.T, opts ...ingest.Option) *fixture {
	t.Helper()
	tools := testhelpers.LoadTools(t)
	mem := store.NewMemory(tools...)
	opts = append([]ingest.Option{ingest.WithRetryDelay(0)}, opts...)
	return &fixture{
		tools:    tools,
		store:    mem,
		pipeline: ingest.New(mem, testhelpers.NewRegistry(t, tools), opts...),
	}
}

func (f *fixture) ingest(t *testing.T, records []*ingest.RawEdit) ingest.Stats {
	t.Helper()
	stats, err := f.pipeline.IngestChunk(context.Background(), records)
	if err != nil {
		t.Fatalf("failed to ingest chunk: %v", err)
	}
	return stats
}

func (f *fixture) run(t *testing.T, records []*ingest.RawEdit) ingest.Stats {
	t.Helper()
	src := feed.NewJSONLines(bytes.NewReader(testhelpers.Lines(records)))
	stats, err := f.pipeline.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("failed to run pipeline: %v", err)
	}
	return stats
}

func (f *fixture) toolID(t *testing.T, shortID string) uint {
	t.Helper()
	for _, tool := range f.tools {
		if tool.ShortID == shortID {
			return tool.ID
		}
	}
	t.Fatalf("tool %s not found", shortID)
	return 0
}

func (f *fixture) onlyBatch(t *testing.T) database.Batch {
	t.Helper()
	batches := f.store.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected exactly one batch, got %d", len(batches))
	}
	return batches[0]
}

func editsOf(edits []database.Edit, batchID uint) []database.Edit {
	var out []database.Edit
	for _, e := range edits {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out
}

// TestIngestChunk_OpenRefineBatch ingests a whole OpenRefine batch at once.
func TestIngestChunk_OpenRefineBatch(t *testing.T) {
	f := newFixture(t)

	stats := f.ingest(t, testhelpers.ORBatch())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, f.toolID(t, "OR"), batch.ToolID, "tool")
	testhelpers.AssertEqual(t, "Pintoch", batch.User, "user")
	testhelpers.AssertEqual(t, testhelpers.ORBatchUID, batch.UID, "uid")
	testhelpers.AssertEqual(t, testhelpers.ORBatchSummary, batch.Summary, "summary")
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchStart, batch.Started, "started")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchEnd, batch.Ended, "ended")
	testhelpers.AssertEqual(t, "32.9", utils.FormatSpeed(batch.NbEdits, batch.Duration().Seconds()), "editing speed")

	testhelpers.AssertEqual(t, 51, len(editsOf(f.store.Edits(), batch.ID)), "stored edits")
	testhelpers.AssertEqual(t, 51, stats.Records, "records")
	testhelpers.AssertEqual(t, 51, stats.EditsCreated, "edits created")
	testhelpers.AssertEqual(t, 1, stats.BatchesTouched, "batches touched")
	testhelpers.AssertEqual(t, 1, stats.TagsAdded, "tags added")
}

// TestRun_OpenRefineBatchAcrossChunks splits the batch over several chunks.
func TestRun_OpenRefineBatchAcrossChunks(t *testing.T) {
	f := newFixture(t, ingest.WithChunkSize(7))

	stats := f.run(t, testhelpers.ORBatch())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchStart, batch.Started, "started")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchEnd, batch.Ended, "ended")
	testhelpers.AssertEqual(t, 51, stats.EditsCreated, "edits created")
	// The action tag is attached by the first chunk only
	testhelpers.AssertEqual(t, 1, stats.TagsAdded, "tags added")
}

func TestRun_IngestTwice(t *testing.T) {
	f := newFixture(t)

	f.run(t, testhelpers.ORBatch())
	stats := f.run(t, testhelpers.ORBatch())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchEnd, batch.Ended, "ended")
	testhelpers.AssertEqual(t, 51, len(f.store.Edits()), "stored edits")
	testhelpers.AssertEqual(t, 51, stats.Duplicates, "duplicates")
	testhelpers.AssertEqual(t, 0, stats.EditsCreated, "edits created")
	testhelpers.AssertEqual(t, 0, stats.TagsAdded, "tags added")
}

func TestIngestChunk_OverlappingChunks(t *testing.T) {
	f := newFixture(t)
	records := testhelpers.ORBatch()

	f.ingest(t, records[:30])
	stats := f.ingest(t, records[20:])

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertEqual(t, 10, stats.Duplicates, "duplicates")
	testhelpers.AssertEqual(t, 21, stats.EditsCreated, "edits created")
}

func TestIngestChunk_SameEditTwiceInChunk(t *testing.T) {
	f := newFixture(t)
	records := testhelpers.ORBatch()[:3]
	records = append(records, records[1])

	stats := f.ingest(t, records)

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, 3, batch.NbEdits, "nb edits")
	testhelpers.AssertEqual(t, 1, stats.Duplicates, "duplicates")
	testhelpers.AssertEqual(t, 3, stats.EditsCreated, "edits created")
}

func TestRun_Hijack(t *testing.T) {
	f := newFixture(t)

	f.run(t, testhelpers.ORBatch())
	stats := f.run(t, testhelpers.Hijack())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, "Pintoch", batch.User, "owner")
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchEnd, batch.Ended, "ended")
	testhelpers.AssertEqual(t, 51, len(f.store.Edits()), "stored edits")
	testhelpers.AssertEqual(t, 3, stats.Hijacked, "hijacked")
}

func TestIngestChunk_HijackWithinChunk(t *testing.T) {
	f := newFixture(t)
	records := append(testhelpers.ORBatch()[:2], testhelpers.Hijack()...)

	stats := f.ingest(t, records)

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, "Pintoch", batch.User, "owner")
	testhelpers.AssertEqual(t, 2, batch.NbEdits, "nb edits")
	testhelpers.AssertEqual(t, 3, stats.Hijacked, "hijacked")
	testhelpers.AssertEqual(t, 2, len(f.store.Edits()), "stored edits")
}

// racingStore reports another user's batch as the owner of every uid, as
// when a concurrent writer inserts it between lookup and creation.
type racingStore struct {
	*store.Memory
	owner string

	mu      sync.Mutex
	deleted []uint
}

func (s *racingStore) OwnerBatch(ctx context.Context, toolID uint, uid string) (*database.Batch, error) {
	return &database.Batch{ID: 1000, ToolID: toolID, UID: uid, User: s.owner}, nil
}

func (s *racingStore) DeleteBatch(ctx context.Context, id uint) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, id)
	s.mu.Unlock()
	return s.Memory.DeleteBatch(ctx, id)
}

func TestIngestChunk_ConcurrentClaimDeletesCreatedBatch(t *testing.T) {
	tools := testhelpers.LoadTools(t)
	s := &racingStore{Memory: store.NewMemory(tools...), owner: "Someone"}
	p := ingest.New(s, testhelpers.NewRegistry(t, tools))

	stats, err := p.IngestChunk(context.Background(), testhelpers.ORBatch()[:3])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testhelpers.AssertEqual(t, 3, stats.Hijacked, "hijacked")
	testhelpers.AssertEqual(t, 0, len(s.Batches()), "batches left")
	testhelpers.AssertEqual(t, 0, len(s.Edits()), "edits stored")
	if len(s.deleted) != 1 {
		t.Errorf("expected the created batch to be deleted once, got %v", s.deleted)
	}
}

func TestIngestChunk_QuickStatementsBatch(t *testing.T) {
	f := newFixture(t)

	f.ingest(t, testhelpers.QSBatch())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, f.toolID(t, "QSv2"), batch.ToolID, "tool")
	testhelpers.AssertEqual(t, "Pintoch", batch.User, "user recovered from the comment")
	testhelpers.AssertEqual(t, testhelpers.QSBatchUID, batch.UID, "uid")
	testhelpers.AssertEqual(t, "#quickstatements", batch.Summary, "summary")
	testhelpers.AssertEqual(t, 4, batch.NbEdits, "nb edits")
	testhelpers.AssertTimeEqual(t, testhelpers.QSBatchStart, batch.Started, "started")
	testhelpers.AssertTimeEqual(t, testhelpers.QSBatchEnd, batch.Ended, "ended")

	// Edits keep the account that actually made them
	for _, e := range f.store.Edits() {
		testhelpers.AssertEqual(t, "QuickStatementsBot", e.User, "edit user")
	}

	tag, ok := f.store.Tag("wbcreateclaim-create")
	if !ok {
		t.Fatal("expected the action tag to be created")
	}
	testhelpers.AssertEqual(t, tagging.ActionPriority, tag.Priority, "tag priority")
}

func TestIngestChunk_NewItems(t *testing.T) {
	f := newFixture(t)

	f.ingest(t, testhelpers.QSNewItems())

	batch := f.onlyBatch(t)
	testhelpers.AssertEqual(t, testhelpers.QSNewItemsSize, batch.NbEdits, "nb edits")

	pages := make(map[string]bool)
	newPages := 0
	for _, e := range editsOf(f.store.Edits(), batch.ID) {
		pages[e.Title] = true
		if e.OldRevID == 0 {
			newPages++
		}
	}
	testhelpers.AssertEqual(t, testhelpers.QSNewItemsPages, len(pages), "pages")
	testhelpers.AssertEqual(t, testhelpers.QSNewItemsPages, newPages, "new pages")
}

func TestIngestChunk_RevertsInSameChunk(t *testing.T) {
	f := newFixture(t)
	or := testhelpers.ORBatch()
	targets := []int64{or[0].Revision.New, or[3].Revision.New, or[7].Revision.New, or[20].Revision.New, or[50].Revision.New}
	records := append(testhelpers.RevertEdits(targets...), or...)

	stats := f.ingest(t, records)

	testhelpers.AssertEqual(t, 5, stats.RevertMarkers, "revert markers")
	testhelpers.AssertEqual(t, 5, stats.EditsReverted, "edits reverted")
	testhelpers.AssertEqual(t, 2, stats.BatchesTouched, "batches touched")

	reverted := 0
	for _, e := range f.store.Edits() {
		if e.Reverted {
			reverted++
		}
	}
	testhelpers.AssertEqual(t, 5, reverted, "reverted edits")
}

func TestRun_RevertsAcrossChunks(t *testing.T) {
	f := newFixture(t)
	or := testhelpers.ORBatch()
	f.run(t, or)

	stats := f.run(t, testhelpers.RevertEdits(or[10].Revision.New, or[11].Revision.New))
	testhelpers.AssertEqual(t, 2, stats.EditsReverted, "edits reverted")

	var orBatch database.Batch
	for _, b := range f.store.Batches() {
		if b.UID == testhelpers.ORBatchUID {
			orBatch = b
		}
	}
	for _, e := range editsOf(f.store.Edits(), orBatch.ID) {
		want := e.NewRevID == or[10].Revision.New || e.NewRevID == or[11].Revision.New
		if e.Reverted != want {
			t.Errorf("edit %d: expected reverted=%v", e.ID, want)
		}
	}

	var eg database.Batch
	for _, b := range f.store.Batches() {
		if b.UID == testhelpers.EGBatchUID {
			eg = b
		}
	}
	testhelpers.AssertEqual(t, 2, eg.NbEdits, "undo batch edits")
	testhelpers.AssertEqual(t, "this was just dumb", eg.Summary, "undo batch summary")

	// Reverting again changes nothing
	stats = f.run(t, testhelpers.RevertEdits(or[10].Revision.New))
	testhelpers.AssertEqual(t, 0, stats.EditsReverted, "edits reverted twice")
}

func TestIngestChunk_UnmatchedRevertStillApplies(t *testing.T) {
	f := newFixture(t)
	or := testhelpers.ORBatch()
	f.ingest(t, or)

	undo := testhelpers.NewRawEditBuilder().
		WithID(1).
		WithComment("/* undo:0||" + strconv.FormatInt(or[5].Revision.New, 10) + "|Pintoch */ manual undo").
		Build()
	stats := f.ingest(t, []*ingest.RawEdit{undo})

	testhelpers.AssertEqual(t, 1, stats.Unmatched, "unmatched")
	testhelpers.AssertEqual(t, 1, stats.EditsReverted, "edits reverted")
	testhelpers.AssertEqual(t, 1, len(f.store.Batches()), "batches")
}

func TestIngestChunk_UnmatchedSkipped(t *testing.T) {
	f := newFixture(t)

	stats := f.ingest(t, testhelpers.Unmatched(5))

	testhelpers.AssertEqual(t, 5, stats.Unmatched, "unmatched")
	testhelpers.AssertEqual(t, 0, len(f.store.Batches()), "batches")
	testhelpers.AssertEqual(t, 0, len(f.store.Edits()), "edits")
}

func TestIngestChunk_NilRecords(t *testing.T) {
	f := newFixture(t)
	records := append([]*ingest.RawEdit{nil}, testhelpers.ORBatch()[:2]...)

	stats := f.ingest(t, records)

	testhelpers.AssertEqual(t, 1, stats.ParseErrors, "parse errors")
	testhelpers.AssertEqual(t, 2, stats.EditsCreated, "edits created")
}

func TestRun_SkipsMalformedRecords(t *testing.T) {
	f := newFixture(t)
	input := "not json\n" +
		`{"id":5,"type":"log","comment":"x"}` + "\n" +
		string(testhelpers.Lines(testhelpers.ORBatch()[:4])) +
		"{\"id\":\n"

	stats, err := f.pipeline.Run(context.Background(), feed.NewJSONLines(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testhelpers.AssertEqual(t, 3, stats.ParseErrors, "parse errors")
	testhelpers.AssertEqual(t, 7, stats.Records, "records")
	testhelpers.AssertEqual(t, 4, f.onlyBatch(t).NbEdits, "nb edits")
}

func TestIngestChunk_Tags(t *testing.T) {
	f := newFixture(t)
	f.store.PutTag(database.Tag{ID: "wbeditentity-update", Priority: 1, Color: "#000000"})

	label := testhelpers.NewRawEditBuilder().
		WithID(42).
		WithComment("/* wbsetlabel-add:1|fr */ Paris ([[Wikidata:Edit groups/OR/" + testhelpers.ORBatchUID + "|discuss]])").
		Build()
	records := append(testhelpers.ORBatch()[:5], label)

	stats := f.ingest(t, records)
	testhelpers.AssertEqual(t, 3, stats.TagsAdded, "tags added")

	batch := f.onlyBatch(t)
	tags, err := f.store.BatchTagIDs(context.Background(), []uint{batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"wbeditentity-update", "wbsetlabel-add", "lang-fr"} {
		if !tags[batch.ID][id] {
			t.Errorf("expected tag %s on the batch, got %v", id, tags[batch.ID])
		}
	}

	existing, _ := f.store.Tag("wbeditentity-update")
	testhelpers.AssertEqual(t, 1, existing.Priority, "existing tag priority")
	lang, _ := f.store.Tag("lang-fr")
	testhelpers.AssertEqual(t, 5, lang.Priority, "language tag priority")
	testhelpers.AssertEqual(t, database.LanguageTagColor, lang.Color, "language tag color")

	// Known tags are not added again
	stats = f.ingest(t, testhelpers.ORBatch()[5:10])
	testhelpers.AssertEqual(t, 0, stats.TagsAdded, "tags added again")
}

func TestIngestChunk_TruncatesLongFields(t *testing.T) {
	f := newFixture(t, ingest.WithMaxFieldLength(20))
	rec := testhelpers.ORBatch()[0]
	rec.Title = strings.Repeat("Q", 50)
	rec.User = strings.Repeat("P", 50)

	f.ingest(t, []*ingest.RawEdit{rec})

	edits := f.store.Edits()
	testhelpers.AssertEqual(t, 20, len(edits[0].Title), "title length")
	testhelpers.AssertEqual(t, 20, len(edits[0].User), "user length")
	testhelpers.AssertEqual(t, strings.Repeat("P", 20), f.onlyBatch(t).User, "batch user")
}

// flakyStore fails the first transactions it is asked to run.
type flakyStore struct {
	*store.Memory
	failures int
	attempts int
}

var errUnavailable = errors.New("database unavailable")

func (s *flakyStore) InTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	s.attempts++
	if s.attempts <= s.failures {
		// Fail after the edits are written to check nothing leaks
		_ = s.Memory.InTransaction(ctx, func(tx store.Tx) error {
			_ = fn(tx)
			return errUnavailable
		})
		return errUnavailable
	}
	return s.Memory.InTransaction(ctx, fn)
}

func TestRun_RetriesStorageFailures(t *testing.T) {
	tools := testhelpers.LoadTools(t)
	s := &flakyStore{Memory: store.NewMemory(tools...), failures: 2}
	p := ingest.New(s, testhelpers.NewRegistry(t, tools), ingest.WithMaxRetries(3), ingest.WithRetryDelay(0))

	stats, err := p.Run(context.Background(), feed.NewJSONLines(bytes.NewReader(testhelpers.Lines(testhelpers.ORBatch()))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two failures and a success for the first chunk of 50, one attempt for the last record
	testhelpers.AssertEqual(t, 4, s.attempts, "attempts")
	testhelpers.AssertEqual(t, 51, stats.EditsCreated, "edits created")
	batches := s.Batches()
	if len(batches) != 1 || batches[0].NbEdits != 51 {
		t.Fatalf("expected one batch of 51 edits, got %+v", batches)
	}
}

func TestRun_GivesUpAfterRetries(t *testing.T) {
	tools := testhelpers.LoadTools(t)
	s := &flakyStore{Memory: store.NewMemory(tools...), failures: 10}
	p := ingest.New(s, testhelpers.NewRegistry(t, tools), ingest.WithMaxRetries(2), ingest.WithRetryDelay(0))

	_, err := p.Run(context.Background(), feed.NewJSONLines(bytes.NewReader(testhelpers.Lines(testhelpers.ORBatch()))))
	if !errors.Is(err, ingest.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, errUnavailable) {
		t.Errorf("expected the store error to be wrapped, got %v", err)
	}

	var chunkErr *ingest.ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected a ChunkError, got %T", err)
	}
	testhelpers.AssertEqual(t, ingest.DefaultChunkSize, len(chunkErr.Records), "records handed back")
	first, parseErr := ingest.ParseRecord(chunkErr.Records[0])
	if parseErr != nil {
		t.Fatalf("returned record does not parse: %v", parseErr)
	}
	testhelpers.AssertEqual(t, testhelpers.ORBatch()[0].ID, first.ID, "first record of the chunk")

	testhelpers.AssertEqual(t, 3, s.attempts, "attempts")
	testhelpers.AssertEqual(t, 0, len(s.Edits()), "edits stored")
	for _, b := range s.Batches() {
		testhelpers.AssertEqual(t, 0, b.NbEdits, "aggregates of a failed chunk")
	}
}

func TestRun_CancelInterruptsRetryBackoff(t *testing.T) {
	tools := testhelpers.LoadTools(t)
	s := &flakyStore{Memory: store.NewMemory(tools...), failures: 10}
	p := ingest.New(s, testhelpers.NewRegistry(t, tools), ingest.WithMaxRetries(5), ingest.WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	src := &failingSource{err: context.Canceled}
	for _, rec := range testhelpers.ORBatch()[:3] {
		src.records = append(src.records, testhelpers.Lines([]*ingest.RawEdit{rec}))
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var err error
	testhelpers.MustCompleteWithin(t, 5*time.Second, func() {
		_, err = p.Run(ctx, src)
	})
	if !errors.Is(err, ingest.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	testhelpers.AssertEqual(t, 1, s.attempts, "attempts")
}

// failingSource returns an error after its records.
type failingSource struct {
	records [][]byte
	err     error
}

func (s *failingSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.records) == 0 {
		return nil, s.err
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func TestRun_SourceErrorFlushesPendingChunk(t *testing.T) {
	f := newFixture(t)
	src := &failingSource{err: errors.New("connection reset")}
	for _, rec := range testhelpers.ORBatch()[:3] {
		src.records = append(src.records, testhelpers.Lines([]*ingest.RawEdit{rec}))
	}

	stats, err := f.pipeline.Run(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected the source error, got %v", err)
	}
	testhelpers.AssertEqual(t, 3, stats.EditsCreated, "edits created")
	testhelpers.AssertEqual(t, 3, f.onlyBatch(t).NbEdits, "nb edits")
}

func TestIngestChunk_Gorm(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	tools := testhelpers.SeedTools(t, db, testhelpers.LoadTools(t))
	p := ingest.New(store.NewGorm(db), testhelpers.NewRegistry(t, tools), ingest.WithRetryDelay(0))
	ctx := context.Background()

	or := testhelpers.ORBatch()
	for _, chunk := range [][]*ingest.RawEdit{or, or[10:], testhelpers.Hijack(), testhelpers.RevertEdits(or[0].Revision.New)} {
		if _, err := p.IngestChunk(ctx, chunk); err != nil {
			t.Fatalf("failed to ingest chunk: %v", err)
		}
	}

	var batch database.Batch
	if err := db.Where("uid = ?", testhelpers.ORBatchUID).First(&batch).Error; err != nil {
		t.Fatalf("failed to load batch: %v", err)
	}
	testhelpers.AssertEqual(t, 51, batch.NbEdits, "nb edits")
	testhelpers.AssertEqual(t, "Pintoch", batch.User, "owner")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchStart, batch.Started, "started")
	testhelpers.AssertTimeEqual(t, testhelpers.ORBatchEnd, batch.Ended, "ended")

	var count int64
	db.Model(&database.Edit{}).Where("batch_id = ?", batch.ID).Count(&count)
	testhelpers.AssertEqual(t, int64(51), count, "stored edits")

	var batches int64
	db.Model(&database.Batch{}).Count(&batches)
	testhelpers.AssertEqual(t, int64(2), batches, "batches")

	var reverted int64
	db.Model(&database.Edit{}).Where("reverted = ?", true).Count(&reverted)
	testhelpers.AssertEqual(t, int64(1), reverted, "reverted edits")

	var tagLinks int64
	db.Model(&database.BatchTag{}).Where("batch_id = ?", batch.ID).Count(&tagLinks)
	testhelpers.AssertEqual(t, int64(1), tagLinks, "tags on the batch")
}

func TestIngestChunk_GormConcurrentClaim(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	tools := testhelpers.SeedTools(t, db, testhelpers.LoadTools(t))

	// Another writer inserts a batch for the same uid between lookup and insert
	claimed := false
	err := db.Callback().Create().Before("gorm:create").Register("test:claim_batch", func(tx *gorm.DB) {
		b, ok := tx.Statement.Dest.(*database.Batch)
		if !ok || claimed {
			return
		}
		claimed = true
		rival := database.Batch{ToolID: b.ToolID, UID: b.UID, User: "Someone", Started: b.Started, Ended: b.Started}
		if err := tx.Session(&gorm.Session{NewDB: true}).Omit(clause.Associations).Create(&rival).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	p := ingest.New(store.NewGorm(db), testhelpers.NewRegistry(t, tools))
	stats, err := p.IngestChunk(context.Background(), testhelpers.ORBatch()[:3])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, 3, stats.Hijacked, "hijacked")

	var batches []database.Batch
	if err := db.Order("id ASC").Find(&batches).Error; err != nil {
		t.Fatalf("failed to load batches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected only the first batch to remain, got %+v", batches)
	}
	testhelpers.AssertEqual(t, "Someone", batches[0].User, "owner")
	testhelpers.AssertEqual(t, 0, batches[0].NbEdits, "nb edits")

	var edits int64
	db.Model(&database.Edit{}).Count(&edits)
	testhelpers.AssertEqual(t, int64(0), edits, "stored edits")
}
