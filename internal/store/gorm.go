package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/editgroups/editgroups/internal/database"
)

const insertBatchSize = 100

// Gorm is a Store backed by a gorm database.
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a store on top of an open, migrated database.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) ListTools(ctx context.Context) ([]database.Tool, error) {
	var tools []database.Tool
	if err := s.db.WithContext(ctx).Order("position ASC, id ASC").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return tools, nil
}

func (s *Gorm) GetOrCreateBatch(ctx context.Context, toolID uint, uid string, defaults BatchDefaults) (*database.Batch, bool, error) {
	db := s.db.WithContext(ctx)

	batch, err := s.findBatch(db, toolID, uid)
	if err != nil {
		return nil, false, err
	}
	if batch != nil {
		return batch, false, nil
	}

	batch = &database.Batch{
		ToolID:  toolID,
		UID:     uid,
		User:    defaults.User,
		Summary: defaults.Summary,
		Started: defaults.Started,
		Ended:   defaults.Started,
		NbEdits: 0,
	}
	if err := db.Omit(clause.Associations).Create(batch).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, false, fmt.Errorf("failed to create batch %s: %w", uid, err)
		}
		// Created concurrently by the same user
		existing, findErr := s.findBatch(db, toolID, uid)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("failed to create batch %s: %w", uid, err)
		}
		return existing, false, nil
	}
	return batch, true, nil
}

func (s *Gorm) OwnerBatch(ctx context.Context, toolID uint, uid string) (*database.Batch, error) {
	return s.findBatch(s.db.WithContext(ctx), toolID, uid)
}

// findBatch returns the oldest batch of (toolID, uid), or nil.
func (s *Gorm) findBatch(db *gorm.DB, toolID uint, uid string) (*database.Batch, error) {
	var batch database.Batch
	err := db.Where("tool_id = ? AND uid = ?", toolID, uid).Order("id ASC").First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", uid, err)
	}
	return &batch, nil
}

func (s *Gorm) DeleteBatch(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", id).Delete(&database.Edit{}).Error; err != nil {
			return fmt.Errorf("failed to delete edits of batch %d: %w", id, err)
		}
		if err := tx.Where("batch_id = ?", id).Delete(&database.BatchTag{}).Error; err != nil {
			return fmt.Errorf("failed to delete tags of batch %d: %w", id, err)
		}
		if err := tx.Delete(&database.Batch{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete batch %d: %w", id, err)
		}
		return nil
	})
}

func (s *Gorm) BatchTagIDs(ctx context.Context, batchIDs []uint) (map[uint]map[string]bool, error) {
	result := make(map[uint]map[string]bool, len(batchIDs))
	if len(batchIDs) == 0 {
		return result, nil
	}

	var rows []database.BatchTag
	if err := s.db.WithContext(ctx).Where("batch_id IN ?", batchIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get batch tags: %w", err)
	}
	for _, row := range rows {
		if result[row.BatchID] == nil {
			result[row.BatchID] = make(map[string]bool)
		}
		result[row.BatchID][row.TagID] = true
	}
	return result, nil
}

func (s *Gorm) InTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) CreateEdits(edits []database.Edit) error {
	if len(edits) == 0 {
		return nil
	}
	// Nested transaction: a failed insert only rolls back to the savepoint
	err := t.db.Transaction(func(sp *gorm.DB) error {
		return sp.Omit(clause.Associations).CreateInBatches(edits, insertBatchSize).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateEdit, err)
		}
		return fmt.Errorf("failed to create edits: %w", err)
	}
	return nil
}

func (t *gormTx) ExistingEditIDs(ids []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	var found []int64
	if err := t.db.Model(&database.Edit{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up edits: %w", err)
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

func (t *gormTx) UpdateBatchAggregates(batches []*database.Batch) error {
	for _, b := range batches {
		err := t.db.Model(&database.Batch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"ended":    b.Ended,
			"nb_edits": b.NbEdits,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update batch %d: %w", b.ID, err)
		}
	}
	return nil
}

func (t *gormTx) EnsureTags(tags []database.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tags).Error; err != nil {
		return fmt.Errorf("failed to create tags: %w", err)
	}
	return nil
}

func (t *gormTx) AddBatchTags(batchTags map[uint][]string) error {
	rows := make([]database.BatchTag, 0, len(batchTags))
	for batchID, tagIDs := range batchTags {
		for _, tagID := range tagIDs {
			rows = append(rows, database.BatchTag{BatchID: batchID, TagID: tagID})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BatchID != rows[j].BatchID {
			return rows[i].BatchID < rows[j].BatchID
		}
		return rows[i].TagID < rows[j].TagID
	})

	if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to tag batches: %w", err)
	}
	return nil
}

func (t *gormTx) MarkReverted(revIDs []int64) (int64, error) {
	if len(revIDs) == 0 {
		return 0, nil
	}
	result := t.db.Model(&database.Edit{}).
		Where("newrevid IN ? AND reverted = ?", revIDs, false).
		Update("reverted", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark edits as reverted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
