package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/utils"
)

// RecentEditsLimit is the number of edits shown with a batch
const RecentEditsLimit = 11

// ErrBatchNotFound is returned when no batch has the requested tool and uid
var ErrBatchNotFound = errors.New("batch not found")

// RevertTaskChecker tells whether a batch has a revert operation in progress.
// Reverting is done by a separate service.
type RevertTaskChecker interface {
	HasActiveRevertTask(batchID uint) (bool, error)
}

// BatchFilter restricts batch listings. Empty fields match everything.
type BatchFilter struct {
	Tool string
	User string
	Tag  string
}

// BatchStats are the figures derived from the edits of a batch
type BatchStats struct {
	Duration          int64   `json:"duration"`
	EditingSpeed      string  `json:"editing_speed"`
	EntitiesSpeed     string  `json:"entities_speed"`
	NbPages           int64   `json:"nb_pages"`
	NbNewPages        int64   `json:"nb_new_pages"`
	NbExistingPages   int64   `json:"nb_existing_pages"`
	NbRevertedEdits   int64   `json:"nb_reverted"`
	NbRevertableEdits int64   `json:"nb_revertable_edits"`
	AvgDiffSize       float64 `json:"avg_diffsize"`
	CanBeReverted     bool    `json:"can_be_reverted"`
}

// BatchService serves batches, their edits and their statistics
type BatchService struct {
	db      *gorm.DB
	reverts RevertTaskChecker
}

// NewBatchService creates a new batch service
func NewBatchService(db *gorm.DB) *BatchService {
	return &BatchService{db: db}
}

// WithRevertTaskChecker sets the source of revert operations
func (s *BatchService) WithRevertTaskChecker(c RevertTaskChecker) *BatchService {
	s.reverts = c
	return s
}

// ListBatches returns a page of batches, most recently active first, and the
// number of batches matching the filter.
func (s *BatchService) ListBatches(filter BatchFilter, offset, limit int) ([]database.Batch, int64, error) {
	var total int64
	if err := s.filtered(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	var batches []database.Batch
	err := s.filtered(filter).Preload("Tool").Preload("Tags", sortTags).
		Order("batches.ended DESC").Order("batches.id DESC").
		Offset(offset).Limit(limit).
		Find(&batches).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, total, nil
}

func (s *BatchService) filtered(filter BatchFilter) *gorm.DB {
	query := s.db.Model(&database.Batch{})
	if filter.Tool != "" {
		query = query.Joins("JOIN tools ON tools.id = batches.tool_id").Where("tools.shortid = ?", filter.Tool)
	}
	if filter.User != "" {
		query = query.Where(&database.Batch{User: filter.User})
	}
	if filter.Tag != "" {
		query = query.Where("batches.id IN (?)",
			s.db.Model(&database.BatchTag{}).Select("batch_id").Where("tag_id = ?", filter.Tag))
	}
	return query
}

// GetBatch returns the batch of a tool with the given uid, with its tool and
// its tags ordered by decreasing priority.
func (s *BatchService) GetBatch(toolShortID, uid string) (*database.Batch, error) {
	var batch database.Batch
	err := s.db.Joins("JOIN tools ON tools.id = batches.tool_id").
		Where("tools.shortid = ? AND batches.uid = ?", toolShortID, uid).
		Preload("Tool").Preload("Tags", sortTags).
		Order("batches.id ASC").
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s/%s: %w", toolShortID, uid, err)
	}
	return &batch, nil
}

func sortTags(db *gorm.DB) *gorm.DB {
	return db.Order("tags.priority DESC").Order("tags.id ASC")
}

// Stats computes the statistics of a batch
func (s *BatchService) Stats(batch *database.Batch) (*BatchStats, error) {
	edits := func() *gorm.DB {
		return s.db.Model(&database.Edit{}).Where("batch_id = ?", batch.ID)
	}

	stats := &BatchStats{Duration: int64(batch.Duration().Seconds())}

	if err := edits().Distinct("title").Count(&stats.NbPages).Error; err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if err := edits().Where("oldrevid = 0").Count(&stats.NbNewPages).Error; err != nil {
		return nil, fmt.Errorf("failed to count new pages: %w", err)
	}
	stats.NbExistingPages = stats.NbPages - stats.NbNewPages

	if err := edits().Where("reverted = ?", true).Count(&stats.NbRevertedEdits).Error; err != nil {
		return nil, fmt.Errorf("failed to count reverted edits: %w", err)
	}
	if err := edits().Where("reverted = ? AND oldrevid > 0", false).Count(&stats.NbRevertableEdits).Error; err != nil {
		return nil, fmt.Errorf("failed to count revertable edits: %w", err)
	}

	var avg struct {
		AvgDiff *float64
	}
	if err := edits().Select("AVG(newlength) - AVG(oldlength) AS avg_diff").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to compute average diff size: %w", err)
	}
	if avg.AvgDiff != nil {
		stats.AvgDiffSize = *avg.AvgDiff
	}

	seconds := batch.Duration().Seconds()
	stats.EditingSpeed = utils.FormatSpeed(batch.NbEdits, seconds)
	stats.EntitiesSpeed = utils.FormatSpeed(int(stats.NbPages), seconds)

	stats.CanBeReverted = stats.NbRevertableEdits > 0
	if stats.CanBeReverted && s.reverts != nil {
		active, err := s.reverts.HasActiveRevertTask(batch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revert tasks: %w", err)
		}
		stats.CanBeReverted = !active
	}

	return stats, nil
}

// RecentEdits returns the latest edits of a batch, newest first
func (s *BatchService) RecentEdits(batchID uint, limit int) ([]database.Edit, error) {
	var edits []database.Edit
	err := s.db.Where("batch_id = ?", batchID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&edits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent edits: %w", err)
	}
	return edits, nil
}

// ListEdits returns a page of the edits of a batch, newest first, and the
// number of edits in the batch.
func (s *BatchService) ListEdits(batchID uint, offset, limit int) ([]database.Edit, int64, error) {
	var total int64
	if err := s.db.Model(&database.Edit{}).Where("batch_id = ?", batchID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count edits: %w", err)
	}

	var edits []database.Edit
	err := s.db.Where("batch_id = ?", batchID).Order("timestamp DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&edits).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list edits: %w", err)
	}
	return edits, total, nil
}

// ListTags returns every tag, most important first
func (s *BatchService) ListTags() ([]database.Tag, error) {
	var tags []database.Tag
	if err := s.db.Scopes(sortTags).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}
