package services

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/store"
	"github.com/editgroups/editgroups/internal/tagging"
)

const retagReadBatchSize = 1000

// RetagService recomputes batch tags from stored edits, after tag rules change
type RetagService struct {
	db     *gorm.DB
	store  store.Store
	logger logrus.FieldLogger
}

// NewRetagService creates a new retag service
func NewRetagService(db *gorm.DB, logger logrus.FieldLogger) *RetagService {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &RetagService{
		db:     db,
		store:  store.NewGorm(db),
		logger: logger,
	}
}

// RetagAll extracts the tags of every stored edit and attaches to each batch
// the tags it is missing. Existing tags and associations are kept.
// Returns the number of associations added
func (s *RetagService) RetagAll(ctx context.Context) (int, error) {
	candidates := make(map[uint]map[string]database.Tag)

	var rows []database.Edit
	result := s.db.WithContext(ctx).Model(&database.Edit{}).
		Select("id", "batch_id", "comment").
		FindInBatches(&rows, retagReadBatchSize, func(tx *gorm.DB, n int) error {
			for _, e := range rows {
				for _, tag := range tagging.Extract(e.Comment) {
					if candidates[e.BatchID] == nil {
						candidates[e.BatchID] = make(map[string]database.Tag)
					}
					candidates[e.BatchID][tag.ID] = tag
				}
			}
			s.logger.WithField("batch", n).Debug("Scanned edits")
			return nil
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to scan edits: %w", result.Error)
	}

	batchIDs := make([]uint, 0, len(candidates))
	for id := range candidates {
		batchIDs = append(batchIDs, id)
	}
	known, err := s.store.BatchTagIDs(ctx, batchIDs)
	if err != nil {
		return 0, err
	}

	tagsByID := make(map[string]database.Tag)
	missing := make(map[uint][]string)
	added := 0
	for batchID, tags := range candidates {
		for id, tag := range tags {
			if known[batchID][id] {
				continue
			}
			tagsByID[id] = tag
			missing[batchID] = append(missing[batchID], id)
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}

	tags := make([]database.Tag, 0, len(tagsByID))
	for _, tag := range tagsByID {
		tags = append(tags, tag)
	}

	err = s.store.InTransaction(ctx, func(tx store.Tx) error {
		if err := tx.EnsureTags(tags); err != nil {
			return err
		}
		return tx.AddBatchTags(missing)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to tag batches: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batches": len(missing),
		"tags":    added,
	}).Info("Retagged batches")
	return added, nil
}
