package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/registry"
	"github.com/editgroups/editgroups/internal/store"
)

type batchKey struct {
	tool string
	uid  string
}

// aggregator resolves matched edits to batches for a single chunk. Batches
// are fetched or created once per (tool, uid) and then updated in memory;
// touched batches are written back in one pass when the chunk commits.
type aggregator struct {
	store  store.Store
	logger logrus.FieldLogger

	batches map[batchKey]*database.Batch
	touched []*database.Batch
	marked  map[uint]bool
}

func newAggregator(s store.Store, logger logrus.FieldLogger) *aggregator {
	return &aggregator{
		store:   s,
		logger:  logger,
		batches: make(map[batchKey]*database.Batch),
		marked:  make(map[uint]bool),
	}
}

// resolve returns the batch an edit belongs to and counts the edit in it.
// It returns nil when the batch is owned by another user; such an edit is
// dropped. A batch created while another user claimed the same uid is
// deleted again.
func (a *aggregator) resolve(ctx context.Context, tool *database.Tool, match registry.Match, ts time.Time) (*database.Batch, error) {
	key := batchKey{tool: tool.ShortID, uid: match.UID}

	batch, ok := a.batches[key]
	if !ok {
		var created bool
		var err error
		batch, created, err = a.store.GetOrCreateBatch(ctx, tool.ID, match.UID, store.BatchDefaults{
			User:    match.User,
			Summary: match.Summary,
			Started: ts,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if created {
			if batch, err = a.keepOwner(ctx, tool, batch); err != nil {
				return nil, err
			}
		}
		a.batches[key] = batch
	}

	if batch.User != match.User {
		a.logHijack(tool, match, batch)
		return nil, nil
	}

	batch.NbEdits++
	if ts.After(batch.Ended) {
		batch.Ended = ts
	}
	if !a.marked[batch.ID] {
		a.marked[batch.ID] = true
		a.touched = append(a.touched, batch)
	}
	return batch, nil
}

// keepOwner checks that a batch just created is the oldest of its uid. When
// another writer inserted one first, the created batch is deleted and the
// earlier one is returned.
func (a *aggregator) keepOwner(ctx context.Context, tool *database.Tool, created *database.Batch) (*database.Batch, error) {
	owner, err := a.store.OwnerBatch(ctx, tool.ID, created.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if owner == nil || owner.ID == created.ID {
		return created, nil
	}

	a.logger.WithFields(logrus.Fields{
		"tool":     tool.ShortID,
		"uid":      created.UID,
		"batch_id": created.ID,
		"owner":    owner.User,
	}).Debug("Batch created concurrently, deleting ours")
	if err := a.store.DeleteBatch(ctx, created.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return owner, nil
}

// rollback removes an edit that turned out to be already stored from the
// count of its batch. Ended is left as is.
func (a *aggregator) rollback(toolShortID, uid string) {
	if batch, ok := a.batches[batchKey{tool: toolShortID, uid: uid}]; ok {
		batch.NbEdits--
	}
}

func (a *aggregator) touchedIDs() []uint {
	ids := make([]uint, len(a.touched))
	for i, b := range a.touched {
		ids[i] = b.ID
	}
	return ids
}

func (a *aggregator) logHijack(tool *database.Tool, match registry.Match, owner *database.Batch) {
	a.logger.WithFields(logrus.Fields{
		"tool":  tool.ShortID,
		"uid":   match.UID,
		"user":  match.User,
		"owner": owner.User,
	}).Warn("Dropping edit claiming a batch owned by another user")
}
