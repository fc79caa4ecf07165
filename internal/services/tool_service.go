package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/registry"
)

// ToolService manages the tool registry stored in the database
type ToolService struct {
	db *gorm.DB
}

// NewToolService creates a new tool service
func NewToolService(db *gorm.DB) *ToolService {
	return &ToolService{db: db}
}

// LoadTools reads tool definitions from a YAML file and stores them.
// Tools are matched on their short id: known tools are updated, others are
// created. Positions follow the file order. Tools missing from the file are
// kept, as their batches still refer to them, and move after the file's
// tools in their previous order.
// Returns the number of tools created and updated
func (s *ToolService) LoadTools(path string) (created, updated int, err error) {
	tools, err := registry.LoadFile(path)
	if err != nil {
		return 0, 0, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		created, updated = 0, 0
		listed := make([]string, 0, len(tools))
		for _, tool := range tools {
			listed = append(listed, tool.ShortID)
			var existing database.Tool
			err := tx.Where("shortid = ?", tool.ShortID).First(&existing).Error

			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(&tool).Error; err != nil {
					return fmt.Errorf("failed to create tool %s: %w", tool.ShortID, err)
				}
				created++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to look up tool %s: %w", tool.ShortID, err)
			}

			// Update existing (short id stays the same)
			tool.ID = existing.ID
			tool.CreatedAt = existing.CreatedAt
			if err := tx.Save(&tool).Error; err != nil {
				return fmt.Errorf("failed to update tool %s: %w", tool.ShortID, err)
			}
			updated++
		}
		return renumberUnlisted(tx, listed, len(tools))
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// renumberUnlisted gives the tools not in listed the positions from next on.
func renumberUnlisted(tx *gorm.DB, listed []string, next int) error {
	var unlisted []database.Tool
	query := tx.Order("position ASC").Order("id ASC")
	if len(listed) > 0 {
		query = query.Where("shortid NOT IN ?", listed)
	}
	if err := query.Find(&unlisted).Error; err != nil {
		return fmt.Errorf("failed to list unlisted tools: %w", err)
	}
	for i, tool := range unlisted {
		if err := tx.Model(&database.Tool{}).Where("id = ?", tool.ID).Update("position", next+i).Error; err != nil {
			return fmt.Errorf("failed to move tool %s: %w", tool.ShortID, err)
		}
	}
	return nil
}

// ListTools returns the stored tools in registry order
func (s *ToolService) ListTools() ([]database.Tool, error) {
	var tools []database.Tool
	if err := s.db.Order("position ASC").Order("id ASC").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return tools, nil
}

// GetTool returns a tool by short id
func (s *ToolService) GetTool(shortID string) (*database.Tool, error) {
	var tool database.Tool
	if err := s.db.Where("shortid = ?", shortID).First(&tool).Error; err != nil {
		return nil, err
	}
	return &tool, nil
}
