package vectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/docverse/core/internal/models"
	"gorm.io/gorm"
)

// Store persists passage and summary embeddings in MySQL and answers
// nearest-neighbour queries by scanning the scoped candidate rows and
// ranking them by exact cosine distance. Corpora are partitioned per group
// and stay small enough that a scan beats maintaining a separate index.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// PassageHit is a passage ranked by distance to the query vector.
type PassageHit struct {
	Passage  models.PassageModel
	Distance float64
}

// SummaryHit is a document summary ranked by distance to the query vector.
type SummaryHit struct {
	Summary  models.DocumentSummaryModel
	Distance float64
}

// InsertPassages stores passage rows with their embeddings.
func (s *Store) InsertPassages(ctx context.Context, passages []models.PassageModel) error {
	if len(passages) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&passages).Error
}

// UpsertSummary stores or replaces the summary row for a document.
func (s *Store) UpsertSummary(ctx context.Context, summary *models.DocumentSummaryModel) error {
	var existing models.DocumentSummaryModel
	err := s.db.WithContext(ctx).
		Where("document_id = ?", summary.DocumentID).
		First(&existing).Error
	if err == nil {
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
		return s.db.WithContext(ctx).Save(summary).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.WithContext(ctx).Create(summary).Error
}

// GetSummary returns the summary row for a document, or nil when absent.
func (s *Store) GetSummary(ctx context.Context, documentID string) (*models.DocumentSummaryModel, error) {
	var summary models.DocumentSummaryModel
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		First(&summary).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CountSummaries reports how many indexed documents in the group carry a summary.
func (s *Store) CountSummaries(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentSummaryModel{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

// CountPassages reports how many passages are stored for the group.
func (s *Store) CountPassages(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PassageModel{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

// DeleteDocumentData removes all passages and the summary of a document.
func (s *Store) DeleteDocumentData(ctx context.Context, documentID string) error {
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&models.PassageModel{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&models.DocumentSummaryModel{}).Error
}

// SearchSummaries ranks a group's document summaries by cosine distance to
// the query vector and returns the topN closest.
func (s *Store) SearchSummaries(ctx context.Context, groupID string, query models.Vector, topN int) ([]SummaryHit, error) {
	var rows []models.DocumentSummaryModel
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]SummaryHit, 0, len(rows))
	for _, row := range rows {
		distance, ok := CosineDistance(query, row.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, SummaryHit{Summary: row, Distance: distance})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// SearchPassages ranks passages by cosine distance to the query vector.
// When documentIDs is non-empty the candidate set is restricted to those
// documents, otherwise every passage in the group is considered.
func (s *Store) SearchPassages(ctx context.Context, groupID string, documentIDs []string, query models.Vector, topN int) ([]PassageHit, error) {
	tx := s.db.WithContext(ctx).Where("group_id = ?", groupID)
	if len(documentIDs) > 0 {
		tx = tx.Where("document_id IN ?", documentIDs)
	}

	var rows []models.PassageModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]PassageHit, 0, len(rows))
	for _, row := range rows {
		distance, ok := CosineDistance(query, row.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, PassageHit{Passage: row, Distance: distance})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// CosineDistance returns 1 minus the cosine similarity of a and b. The
// second return value is false when the vectors cannot be compared, for
// mismatched dimensions or a zero norm.
func CosineDistance(a, b models.Vector) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), true
}
