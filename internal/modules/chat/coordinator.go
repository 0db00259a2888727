package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	appcfg "github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/retrieval"
	"go.uber.org/zap"
)

// ErrEmptyQuestion is returned when an ask carries no usable text.
var ErrEmptyQuestion = errors.New("question is empty")

const finalizeTimeout = 10 * time.Second

// MessageStore persists conversation messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.ChatMessageModel) error
	FinalizeMessage(ctx context.Context, id, content string, status models.MessageStatus, sources models.StringArray) error
}

// Retriever assembles document context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, groupID, query string) (*retrieval.Result, error)
}

// Generator streams an answer for a prompt.
type Generator interface {
	StreamAnswer(ctx context.Context, systemPrompt, prompt string) (<-chan ai.StreamEvent, error)
}

// Notifier delivers generation lifecycle events to the conversation owner.
// The ended notification carries the source documents the answer drew on.
type Notifier interface {
	GenerationStarted(groupID, userID string, message *models.ChatMessageModel)
	GenerationChunk(groupID, userID, messageID, text string)
	GenerationEnded(groupID, userID, messageID string, status models.MessageStatus, sources models.StringArray)
}

// AskReceipt returns the two messages an ask creates: the stored question
// and the answer placeholder whose content streams in afterwards.
type AskReceipt struct {
	Question *models.ChatMessageModel `json:"question"`
	Answer   *models.ChatMessageModel `json:"answer"`
}

// Coordinator drives answer generation end to end. The accumulated chunk
// text is the source of truth for what gets persisted: only chunks that
// were forwarded to the owner are included, checked against the stop flag
// both before and after each forward.
type Coordinator struct {
	store     MessageStore
	retriever Retriever
	generator Generator
	notifier  Notifier
	sessions  *Manager
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewCoordinator(
	store MessageStore,
	retriever Retriever,
	generator Generator,
	notifier Notifier,
	sessions *Manager,
	cfg appcfg.RetrievalConfig,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:     store,
		retriever: retriever,
		generator: generator,
		notifier:  notifier,
		sessions:  sessions,
		timeout:   cfg.GenerationTimeout,
		logger:    logger.Named("chat"),
		now:       time.Now,
	}
}

// Ask stores the question, creates the answer placeholder and starts
// generation in the background. It returns once the placeholder exists;
// chunks arrive through the Notifier.
func (c *Coordinator) Ask(ctx context.Context, groupID, userID, question string) (*AskReceipt, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if c.sessions.Busy(groupID, userID) {
		return nil, ErrGenerationInProgress
	}

	userMsg := &models.ChatMessageModel{
		GroupID: groupID,
		UserID:  userID,
		Role:    models.RoleUser,
		Content: question,
		Status:  models.MessageActive,
	}
	if err := c.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	answerMsg := &models.ChatMessageModel{
		GroupID: groupID,
		UserID:  userID,
		Role:    models.RoleAssistant,
		Status:  models.MessageGenerating,
	}
	if err := c.store.CreateMessage(ctx, answerMsg); err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	session := &Session{
		MessageID: answerMsg.ID,
		GroupID:   groupID,
		UserID:    userID,
		cancel:    cancel,
	}
	if err := c.sessions.Register(session); err != nil {
		cancel()
		c.finalize(session, "", models.MessageCancelled, nil)
		return nil, err
	}

	c.notifier.GenerationStarted(groupID, userID, answerMsg)
	go func() {
		defer cancel()
		defer c.sessions.Unregister(session.MessageID)
		c.generate(genCtx, session, question)
	}()

	return &AskReceipt{Question: userMsg, Answer: answerMsg}, nil
}

// Stop signals the conversation's in-flight generation to stop. It returns
// false when nothing was generating.
func (c *Coordinator) Stop(groupID, userID string) bool {
	messageID, ok := c.sessions.StopByOwner(groupID, userID)
	if ok {
		c.logger.Info("generation stopped",
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
			zap.String("message_id", messageID))
	}
	return ok
}

func (c *Coordinator) generate(ctx context.Context, session *Session, question string) {
	result, err := c.retriever.Retrieve(ctx, session.GroupID, question)
	if err != nil {
		c.logger.Warn("retrieval failed, answering without context",
			zap.String("group_id", session.GroupID),
			zap.Error(err))
		result = &retrieval.Result{}
	}

	stream, err := c.generator.StreamAnswer(ctx, buildSystemPrompt(c.now()), buildAnswerPrompt(result, question))
	if err != nil {
		if session.Stopped() {
			c.finalize(session, "", models.MessageCancelled, nil)
			return
		}
		c.finalize(session, fallbackAnswer(ai.ClassifyError(err)), models.MessageActive, nil)
		return
	}

	sources := collectSources(result)
	var acc strings.Builder
	for event := range stream {
		switch evt := event.(type) {
		case ai.ChunkEvent:
			if session.Stopped() {
				c.finalize(session, acc.String(), models.MessageCancelled, sources)
				return
			}
			c.notifier.GenerationChunk(session.GroupID, session.UserID, session.MessageID, evt.Text)
			acc.WriteString(evt.Text)
			if session.Stopped() {
				c.finalize(session, acc.String(), models.MessageCancelled, sources)
				return
			}
		case ai.EndEvent:
			c.finalize(session, acc.String(), models.MessageActive, sources)
			return
		case ai.ErrorEvent:
			if evt.Kind == ai.ErrorKindCancelled || session.Stopped() {
				c.finalize(session, acc.String(), models.MessageCancelled, sources)
				return
			}
			content := acc.String()
			if strings.TrimSpace(content) == "" {
				content = fallbackAnswer(evt.Kind)
			}
			c.logger.Warn("generation failed",
				zap.String("message_id", session.MessageID),
				zap.String("kind", string(evt.Kind)),
				zap.Error(evt.Err))
			c.finalize(session, content, models.MessageActive, sources)
			return
		}
	}

	// Stream closed without a terminal event; treat what arrived as final.
	c.finalize(session, acc.String(), models.MessageActive, sources)
}

// finalize persists the answer and announces the terminal status. It runs
// on a fresh context because the generation context may already be
// cancelled by the time a stop or timeout lands.
func (c *Coordinator) finalize(session *Session, content string, status models.MessageStatus, sources models.StringArray) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := c.store.FinalizeMessage(ctx, session.MessageID, content, status, sources); err != nil {
		c.logger.Error("persisting answer failed",
			zap.String("message_id", session.MessageID),
			zap.Error(err))
	}
	c.notifier.GenerationEnded(session.GroupID, session.UserID, session.MessageID, status, sources)
}

func collectSources(result *retrieval.Result) models.StringArray {
	if result == nil || len(result.Items) == 0 {
		return nil
	}
	sources := make(models.StringArray, 0, len(result.Items))
	seen := make(map[string]struct{}, len(result.Items))
	for _, item := range result.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		sources = append(sources, title)
	}
	return sources
}
