package document

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/indexer"
	"github.com/docverse/core/internal/modules/retrieval"
	"github.com/docverse/core/internal/modules/vectorstore"
	"github.com/docverse/core/internal/pkg/pagination"
	pkgredis "github.com/docverse/core/internal/pkg/redis"
	"github.com/docverse/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidFormat = errors.New("format must be text or markdown")

const (
	indexTimeout = 10 * time.Minute
	statsTTL     = 30 * time.Second
)

func statsCacheKey(groupID string) string {
	return "dv:stats:" + groupID
}

type CreateDocumentDTO struct {
	Title    string `json:"title"    binding:"required"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Text     string `json:"text"     binding:"required"`
}

// Service owns the document lifecycle: upload, listing, deletion and the
// handoff to indexing.
type Service struct {
	db      *gorm.DB
	store   *vectorstore.Store
	indexer *indexer.Service
	engine  *retrieval.Engine
	cache   *pkgredis.Client
	logger  *zap.Logger
}

func NewService(db *gorm.DB, store *vectorstore.Store, idx *indexer.Service, engine *retrieval.Engine, cache *pkgredis.Client, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		store:   store,
		indexer: idx,
		engine:  engine,
		cache:   cache,
		logger:  logger.Named("document"),
	}
}

// Create stores an uploaded document and schedules its indexing. The
// document is visible immediately; Indexed flips once passages exist.
func (s *Service) Create(ctx context.Context, groupID, uploaderID string, dto *CreateDocumentDTO) (*models.DocumentModel, error) {
	format := strings.ToLower(strings.TrimSpace(dto.Format))
	if format == "" {
		format = models.FormatText
	}
	if format != models.FormatText && format != models.FormatMarkdown {
		return nil, ErrInvalidFormat
	}

	doc := &models.DocumentModel{
		GroupID:    groupID,
		UploaderID: uploaderID,
		Title:      strings.TrimSpace(dto.Title),
		Filename:   strings.TrimSpace(dto.Filename),
		Format:     format,
		Text:       dto.Text,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, groupID)

	go s.indexInBackground(*doc)
	return doc, nil
}

func (s *Service) indexInBackground(doc models.DocumentModel) {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	if err := s.indexer.IndexDocument(ctx, &doc); err != nil {
		s.logger.Error("document indexing failed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}
}

// List returns the group's documents, newest first.
func (s *Service) List(ctx context.Context, groupID string, q pagination.Query) ([]models.DocumentModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("group_id = ?", groupID).
		Order("created_at DESC")

	var docs []models.DocumentModel
	pag, err := pagination.Paginate(tx, q, &docs)
	return docs, pag, err
}

// GetByID loads a document scoped to its group.
func (s *Service) GetByID(ctx context.Context, groupID, id string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", id, groupID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Reindex drops a document's derived data and rebuilds it.
func (s *Service) Reindex(ctx context.Context, groupID, id string) (*models.DocumentModel, error) {
	doc, err := s.GetByID(ctx, groupID, id)
	if err != nil || doc == nil {
		return doc, err
	}

	if err := s.store.DeleteDocumentData(ctx, doc.ID); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ?", doc.ID).
		Updates(map[string]interface{}{"indexed": false, "passage_count": 0}).Error
	if err != nil {
		return nil, err
	}
	doc.Indexed = false
	doc.PassageCount = 0
	s.invalidateStats(ctx, groupID)

	go s.indexInBackground(*doc)
	return doc, nil
}

// Delete removes a document together with its passages and summary.
func (s *Service) Delete(ctx context.Context, groupID, id string) error {
	doc, err := s.GetByID(ctx, groupID, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return gorm.ErrRecordNotFound
	}

	if err := s.store.DeleteDocumentData(ctx, doc.ID); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Delete(&models.DocumentModel{}, "id = ?", doc.ID).Error
	if err != nil {
		return err
	}
	s.invalidateStats(ctx, groupID)
	return nil
}

// Stats reports corpus counters for the group, cached briefly so the
// sizing endpoint does not hammer the database.
func (s *Service) Stats(ctx context.Context, groupID string) (*retrieval.Stats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, statsCacheKey(groupID)); err == nil && cached != "" {
			var stats retrieval.Stats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.engine.Stats(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey(groupID), raw, statsTTL); err != nil {
				s.logger.Warn("stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(groupID)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
