// Package store is the record store used by ingestion. The pipeline only
// talks to the Store and Tx interfaces; Gorm backs them with a SQL
// database and Memory keeps everything in process.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/editgroups/editgroups/internal/database"
)

// ErrDuplicateEdit is returned by Tx.CreateEdits when at least one edit id
// already exists. Nothing from the failed call is persisted.
var ErrDuplicateEdit = errors.New("edit already exists")

// BatchDefaults are the values a batch gets when it is created.
type BatchDefaults struct {
	User    string
	Summary string
	Started time.Time
}

// Store holds batches, edits and tags across ingestion chunks.
type Store interface {
	// ListTools returns the tools in registry order.
	ListTools(ctx context.Context) ([]database.Tool, error)

	// GetOrCreateBatch returns the batch of (toolID, uid), creating it from
	// defaults when none exists. The flag reports whether it was created
	// by this call. The returned batch may belong to another user.
	GetOrCreateBatch(ctx context.Context, toolID uint, uid string, defaults BatchDefaults) (*database.Batch, bool, error)

	// OwnerBatch returns the oldest batch of (toolID, uid), or nil. Its user
	// owns the uid for that tool.
	OwnerBatch(ctx context.Context, toolID uint, uid string) (*database.Batch, error)

	// DeleteBatch removes a batch and everything attached to it.
	DeleteBatch(ctx context.Context, id uint) error

	// BatchTagIDs returns the tag ids attached to each of the given batches.
	BatchTagIDs(ctx context.Context, batchIDs []uint) (map[uint]map[string]bool, error)

	// InTransaction runs fn in a single transaction. The transaction is
	// committed when fn returns nil and discarded otherwise.
	InTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of one ingestion chunk.
type Tx interface {
	// CreateEdits inserts all edits or none. A duplicate id yields ErrDuplicateEdit
	// and leaves the transaction usable.
	CreateEdits(edits []database.Edit) error

	// ExistingEditIDs returns the subset of ids already stored.
	ExistingEditIDs(ids []int64) (map[int64]bool, error)

	// UpdateBatchAggregates writes Ended and NbEdits of each batch.
	UpdateBatchAggregates(batches []*database.Batch) error

	// EnsureTags creates the tags that do not exist yet. Existing tags keep
	// their priority and color.
	EnsureTags(tags []database.Tag) error

	// AddBatchTags attaches tag ids to batches, keyed by batch id.
	AddBatchTags(batchTags map[uint][]string) error

	// MarkReverted flags every non-reverted edit whose new revision id is in
	// revIDs and returns how many were flagged.
	MarkReverted(revIDs []int64) (int64, error)
}
