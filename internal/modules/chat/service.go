package chat

import (
	"context"
	"time"

	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/pkg/pagination"
	"github.com/docverse/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the gorm-backed message store plus conversation queries.
type Service struct {
	db       *gorm.DB
	sessions *Manager
	logger   *zap.Logger
}

func NewService(db *gorm.DB, sessions *Manager, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		logger:   logger.Named("chat"),
	}
}

func (s *Service) CreateMessage(ctx context.Context, msg *models.ChatMessageModel) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// FinalizeMessage moves a generating message to its terminal state. Messages
// already terminal are left untouched, so a late finalize cannot overwrite a
// completed answer.
func (s *Service) FinalizeMessage(ctx context.Context, id, content string, status models.MessageStatus, sources models.StringArray) error {
	updates := map[string]interface{}{
		"content": content,
		"status":  status,
	}
	if sources != nil {
		updates["sources"] = sources
	}
	return s.db.WithContext(ctx).
		Model(&models.ChatMessageModel{}).
		Where("id = ? AND status = ?", id, models.MessageGenerating).
		Updates(updates).Error
}

// GetMessage loads a message by ID scoped to its conversation.
func (s *Service) GetMessage(ctx context.Context, groupID, userID, id string) (*models.ChatMessageModel, error) {
	var msg models.ChatMessageModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND group_id = ? AND user_id = ?", id, groupID, userID).
		First(&msg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// History lists a conversation's messages, newest first.
func (s *Service) History(ctx context.Context, groupID, userID string, q pagination.Query) ([]models.ChatMessageModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.ChatMessageModel{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("created_at DESC")

	var messages []models.ChatMessageModel
	page, err := pagination.Paginate(tx, q, &messages)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return messages, page, nil
}

// ClearHistory removes the conversation's messages.
func (s *Service) ClearHistory(ctx context.Context, groupID, userID string) (int64, error) {
	tx := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.ChatMessageModel{})
	return tx.RowsAffected, tx.Error
}

// SweepStale cancels generating messages older than ttl that no live
// session owns. These are leftovers of a crashed or interrupted process;
// without the sweep they would pin their conversations forever.
func (s *Service) SweepStale(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)

	tx := s.db.WithContext(ctx).
		Model(&models.ChatMessageModel{}).
		Where("status = ? AND updated_at < ?", models.MessageGenerating, cutoff)
	if active := s.sessions.ActiveIDs(); len(active) > 0 {
		tx = tx.Where("id NOT IN ?", active)
	}

	tx = tx.Update("status", models.MessageCancelled)
	if tx.Error != nil {
		return 0, tx.Error
	}
	if tx.RowsAffected > 0 {
		s.logger.Info("swept stale generating messages", zap.Int64("count", tx.RowsAffected))
	}
	return tx.RowsAffected, nil
}
