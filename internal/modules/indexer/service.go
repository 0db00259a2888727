package indexer

import (
	"context"
	"strings"

	appcfg "github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/vectorstore"
	"github.com/docverse/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskTypeSummary is the task queue type for document summary generation.
const TaskTypeSummary = "document_summary"

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.Vector, error)
}

// Summarizer produces a structured synopsis of a document.
type Summarizer interface {
	GenerateSummary(ctx context.Context, title, text string) (*ai.DocumentSummary, error)
}

// Service turns uploaded documents into searchable passages and summaries.
type Service struct {
	db         *gorm.DB
	store      *vectorstore.Store
	embedder   Embedder
	summarizer Summarizer
	tasks      *taskqueue.Service
	cfg        appcfg.RetrievalConfig
	logger     *zap.Logger
}

func NewService(
	db *gorm.DB,
	store *vectorstore.Store,
	embedder Embedder,
	summarizer Summarizer,
	tasks *taskqueue.Service,
	cfg appcfg.RetrievalConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		store:      store,
		embedder:   embedder,
		summarizer: summarizer,
		tasks:      tasks,
		cfg:        cfg,
		logger:     logger.Named("indexer"),
	}
}

// IndexDocument splits a document into passages, embeds and stores them, and
// marks the document indexed. Passages whose embedding call fails are logged
// and skipped so one bad window does not block the rest of the document.
// Summary generation is kicked off afterwards as a best effort.
func (s *Service) IndexDocument(ctx context.Context, doc *models.DocumentModel) error {
	if doc.Indexed {
		return nil
	}

	text := doc.Text
	if doc.Format == models.FormatMarkdown {
		text = FlattenMarkdown(text)
	}

	windows := SplitPassages(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	passages := make([]models.PassageModel, 0, len(windows))
	for i, window := range windows {
		if strings.TrimSpace(window) == "" {
			continue
		}
		embedding, err := s.embedder.Embed(ctx, window)
		if err != nil {
			s.logger.Warn("passage embedding failed, skipping",
				zap.String("document_id", doc.ID),
				zap.Int("idx", i),
				zap.Error(err))
			continue
		}
		passages = append(passages, models.PassageModel{
			DocumentID: doc.ID,
			GroupID:    doc.GroupID,
			Idx:        i,
			Content:    window,
			Embedding:  embedding,
		})
	}

	if err := s.store.InsertPassages(ctx, passages); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ?", doc.ID).
		Updates(map[string]interface{}{
			"indexed":       true,
			"passage_count": len(passages),
		}).Error
	if err != nil {
		return err
	}
	doc.Indexed = true
	doc.PassageCount = len(passages)

	if err := s.EnsureSummary(ctx, doc); err != nil {
		s.logger.Warn("summary generation failed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}
	return nil
}

type summaryTaskPayload struct {
	DocumentID string `json:"document_id"`
}

// EnsureSummary generates and stores the document's summary exactly once.
// An existing summary row wins outright; concurrent callers are collapsed by
// the task queue's dedup key, and UpsertSummary keeps a lost race harmless.
func (s *Service) EnsureSummary(ctx context.Context, doc *models.DocumentModel) error {
	existing, err := s.store.GetSummary(ctx, doc.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	task, err := s.tasks.Enqueue(ctx, TaskTypeSummary,
		summaryTaskPayload{DocumentID: doc.ID}, doc.ID, doc.GroupID)
	if err != nil {
		return err
	}
	if task != nil && (task.Status == taskqueue.TaskRunning || task.Status == taskqueue.TaskCompleted) {
		return nil
	}
	if task != nil {
		_ = s.tasks.UpdateStatus(ctx, task.ID, taskqueue.TaskRunning, nil, "")
	}

	text := doc.Text
	if doc.Format == models.FormatMarkdown {
		text = FlattenMarkdown(text)
	}

	summary, err := s.summarizer.GenerateSummary(ctx, doc.Title, text)
	if err != nil {
		s.failSummaryTask(ctx, task, err)
		return err
	}

	embedding, err := s.embedder.Embed(ctx, summary.Summary)
	if err != nil {
		s.failSummaryTask(ctx, task, err)
		return err
	}

	row := &models.DocumentSummaryModel{
		DocumentID: doc.ID,
		GroupID:    doc.GroupID,
		Summary:    summary.Summary,
		Topics:     summary.Topics,
		Embedding:  embedding,
	}
	if err := s.store.UpsertSummary(ctx, row); err != nil {
		s.failSummaryTask(ctx, task, err)
		return err
	}

	if task != nil {
		_ = s.tasks.UpdateStatus(ctx, task.ID, taskqueue.TaskCompleted, row.ID, "")
	}
	return nil
}

func (s *Service) failSummaryTask(ctx context.Context, task *taskqueue.Task, cause error) {
	if task == nil {
		return
	}
	_ = s.tasks.UpdateStatus(ctx, task.ID, taskqueue.TaskFailed, nil, cause.Error())
}
