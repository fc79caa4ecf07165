package testhelpers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/ingest"
)

// ========================================
// Raw Edit Builder
// ========================================

// RawEditBuilder builds ingest.RawEdit records for testing
type RawEditBuilder struct {
	rec ingest.RawEdit
}

// NewRawEditBuilder creates a builder for an edit of an existing item
func NewRawEditBuilder() *RawEditBuilder {
	return &RawEditBuilder{
		rec: ingest.RawEdit{
			ID:            1,
			Type:          "edit",
			Namespace:     0,
			Title:         "Q1",
			Comment:       "/* wbeditentity-update:0| */ manual edit",
			ParsedComment: "manual edit",
			Timestamp:     1520354377,
			User:          "Pintoch",
			Bot:           false,
			Minor:         false,
			Patrolled:     true,
			Wiki:          "wikidatawiki",
			ServerName:    "www.wikidata.org",
			Meta:          ingest.RawMeta{URI: "https://www.wikidata.org/wiki/Q1"},
			Length:        &ingest.RawRevisions{Old: 1000, New: 1200},
			Revision:      &ingest.RawRevisions{Old: 100, New: 101},
		},
	}
}

// WithID sets the upstream edit id
func (b *RawEditBuilder) WithID(id int64) *RawEditBuilder {
	b.rec.ID = id
	return b
}

// WithRevisions sets the old and new revision ids
func (b *RawEditBuilder) WithRevisions(old, new int64) *RawEditBuilder {
	b.rec.Revision = &ingest.RawRevisions{Old: old, New: new}
	return b
}

// WithLengths sets the page length before and after the edit
func (b *RawEditBuilder) WithLengths(old, new int64) *RawEditBuilder {
	b.rec.Length = &ingest.RawRevisions{Old: old, New: new}
	return b
}

// AsPageCreation marks the edit as creating its page
func (b *RawEditBuilder) AsPageCreation() *RawEditBuilder {
	b.rec.Type = "new"
	b.rec.Revision = &ingest.RawRevisions{New: b.rec.Revision.New}
	b.rec.Length = &ingest.RawRevisions{New: b.rec.Length.New}
	return b
}

// WithTitle sets the page title and the matching URI
func (b *RawEditBuilder) WithTitle(title string) *RawEditBuilder {
	b.rec.Title = title
	b.rec.Meta.URI = "https://www.wikidata.org/wiki/" + title
	return b
}

// WithComment sets the raw comment
func (b *RawEditBuilder) WithComment(comment string) *RawEditBuilder {
	b.rec.Comment = comment
	return b
}

// WithUser sets the user making the edit
func (b *RawEditBuilder) WithUser(user string) *RawEditBuilder {
	b.rec.User = user
	return b
}

// WithTime sets the edit timestamp
func (b *RawEditBuilder) WithTime(ts time.Time) *RawEditBuilder {
	b.rec.Timestamp = ts.Unix()
	return b
}

// WithWiki sets the wiki the edit was made on
func (b *RawEditBuilder) WithWiki(wiki string) *RawEditBuilder {
	b.rec.Wiki = wiki
	return b
}

// AsBot flags the edit as made by a bot
func (b *RawEditBuilder) AsBot() *RawEditBuilder {
	b.rec.Bot = true
	return b
}

// Build returns the constructed record
func (b *RawEditBuilder) Build() *ingest.RawEdit {
	rec := b.rec
	if rec.Revision != nil {
		rev := *rec.Revision
		rec.Revision = &rev
	}
	if rec.Length != nil {
		length := *rec.Length
		rec.Length = &length
	}
	return &rec
}

// JSON returns the record encoded the way the feed delivers it
func (b *RawEditBuilder) JSON() []byte {
	data, err := json.Marshal(b.Build())
	if err != nil {
		panic(fmt.Sprintf("failed to encode raw edit: %v", err))
	}
	return data
}

// ========================================
// Model Builders
// ========================================

// ToolBuilder builds database.Tool instances for testing
type ToolBuilder struct {
	tool database.Tool
}

// NewToolBuilder creates a tool recognizing comments ending in "#<shortid>:<uid>"
func NewToolBuilder(shortID string) *ToolBuilder {
	return &ToolBuilder{
		tool: database.Tool{
			Name:         shortID + " tool",
			ShortID:      shortID,
			IDRegex:      `.*#` + shortID + `:(\w+)`,
			IDGroup:      1,
			SummaryRegex: `(?:/\* .*? \*/ )?(.*?) #` + shortID + `:`,
			SummaryGroup: 1,
			URL:          "https://example.org/" + shortID,
		},
	}
}

// WithID sets the tool ID
func (b *ToolBuilder) WithID(id uint) *ToolBuilder {
	b.tool.ID = id
	return b
}

// WithPosition sets the registry position
func (b *ToolBuilder) WithPosition(position int) *ToolBuilder {
	b.tool.Position = position
	return b
}

// WithIDPattern sets the id pattern and its group
func (b *ToolBuilder) WithIDPattern(pattern string, group int) *ToolBuilder {
	b.tool.IDRegex = pattern
	b.tool.IDGroup = group
	return b
}

// WithUserPattern sets the user pattern and its group
func (b *ToolBuilder) WithUserPattern(pattern string, group int) *ToolBuilder {
	b.tool.UserRegex = pattern
	b.tool.UserGroup = group
	return b
}

// Build returns the constructed tool
func (b *ToolBuilder) Build() database.Tool {
	return b.tool
}

// BatchBuilder builds database.Batch instances for testing
type BatchBuilder struct {
	batch database.Batch
}

// NewBatchBuilder creates a batch builder with defaults
func NewBatchBuilder(toolID uint, uid string) *BatchBuilder {
	started := time.Date(2018, 3, 6, 16, 39, 37, 0, time.UTC)
	return &BatchBuilder{
		batch: database.Batch{
			ToolID:  toolID,
			UID:     uid,
			User:    "Pintoch",
			Summary: "test batch",
			Started: started,
			Ended:   started,
		},
	}
}

// WithUser sets the owner
func (b *BatchBuilder) WithUser(user string) *BatchBuilder {
	b.batch.User = user
	return b
}

// WithWindow sets started and ended
func (b *BatchBuilder) WithWindow(started, ended time.Time) *BatchBuilder {
	b.batch.Started = started
	b.batch.Ended = ended
	return b
}

// WithNbEdits sets the edit count
func (b *BatchBuilder) WithNbEdits(n int) *BatchBuilder {
	b.batch.NbEdits = n
	return b
}

// Build returns the constructed batch
func (b *BatchBuilder) Build() database.Batch {
	return b.batch
}

// EditBuilder builds database.Edit instances for testing
type EditBuilder struct {
	edit database.Edit
}

// NewEditBuilder creates an edit of batchID
func NewEditBuilder(id int64, batchID uint) *EditBuilder {
	return &EditBuilder{
		edit: database.Edit{
			ID:         id,
			OldRevID:   id*10 - 1,
			NewRevID:   id * 10,
			OldLength:  1000,
			NewLength:  1100,
			Timestamp:  time.Date(2018, 3, 6, 16, 39, 37, 0, time.UTC),
			Title:      fmt.Sprintf("Q%d", id),
			URI:        fmt.Sprintf("https://www.wikidata.org/wiki/Q%d", id),
			Comment:    "/* wbeditentity-update:0| */ test",
			ChangeType: "edit",
			User:       "Pintoch",
			BatchID:    batchID,
		},
	}
}

// WithTitle sets the page title
func (b *EditBuilder) WithTitle(title string) *EditBuilder {
	b.edit.Title = title
	return b
}

// WithComment sets the comment
func (b *EditBuilder) WithComment(comment string) *EditBuilder {
	b.edit.Comment = comment
	return b
}

// WithLengths sets the page length before and after the edit
func (b *EditBuilder) WithLengths(old, new int) *EditBuilder {
	b.edit.OldLength = old
	b.edit.NewLength = new
	return b
}

// WithTime sets the timestamp
func (b *EditBuilder) WithTime(ts time.Time) *EditBuilder {
	b.edit.Timestamp = ts
	return b
}

// AsPageCreation marks the edit as creating its page
func (b *EditBuilder) AsPageCreation() *EditBuilder {
	b.edit.OldRevID = 0
	b.edit.OldLength = 0
	b.edit.ChangeType = "new"
	return b
}

// Reverted marks the edit as reverted
func (b *EditBuilder) Reverted() *EditBuilder {
	b.edit.Reverted = true
	return b
}

// Build returns the constructed edit
func (b *EditBuilder) Build() database.Edit {
	return b.edit
}
