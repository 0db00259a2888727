package retrieval

import (
	"context"

	"github.com/docverse/core/internal/models"
	"gorm.io/gorm"
)

// DocumentCorpus is the gorm-backed CorpusReader.
type DocumentCorpus struct {
	db *gorm.DB
}

func NewDocumentCorpus(db *gorm.DB) *DocumentCorpus {
	return &DocumentCorpus{db: db}
}

func (c *DocumentCorpus) CountIndexed(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("group_id = ? AND indexed = ?", groupID, true).
		Count(&count).Error
	return count, err
}

func (c *DocumentCorpus) CountAll(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

func (c *DocumentCorpus) TitlesByID(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	var docs []models.DocumentModel
	err := c.db.WithContext(ctx).
		Select("id", "title").
		Where("id IN ?", ids).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		titles[doc.ID] = doc.Title
	}
	return titles, nil
}

// RecentDocuments returns the group's newest uploads regardless of indexing
// state, so a document can serve fallback context before its passages exist.
func (c *DocumentCorpus) RecentDocuments(ctx context.Context, groupID string, limit int) ([]models.DocumentModel, error) {
	var docs []models.DocumentModel
	err := c.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}
