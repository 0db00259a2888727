package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu       sync.Mutex
	created  []*models.ChatMessageModel
	finalID  string
	content  string
	status   models.MessageStatus
	sources  models.StringArray
	finalize int
}

func (s *memStore) CreateMessage(ctx context.Context, msg *models.ChatMessageModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(s.created)+1)
	s.created = append(s.created, msg)
	return nil
}

func (s *memStore) FinalizeMessage(ctx context.Context, id, content string, status models.MessageStatus, sources models.StringArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalID = id
	s.content = content
	s.status = status
	s.sources = sources
	s.finalize++
	return nil
}

func (s *memStore) snapshot() (string, models.MessageStatus, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content, s.status, s.finalize
}

type stubRetriever struct {
	result *retrieval.Result
}

func (r *stubRetriever) Retrieve(ctx context.Context, groupID, query string) (*retrieval.Result, error) {
	return r.result, nil
}

type stubGenerator struct {
	events []ai.StreamEvent
}

func (g *stubGenerator) StreamAnswer(ctx context.Context, systemPrompt, prompt string) (<-chan ai.StreamEvent, error) {
	out := make(chan ai.StreamEvent, len(g.events))
	for _, e := range g.events {
		out <- e
	}
	close(out)
	return out, nil
}

type endedEvent struct {
	status  models.MessageStatus
	sources models.StringArray
}

type recordNotifier struct {
	mu      sync.Mutex
	chunks  []string
	onChunk func(count int)
	ended   chan endedEvent
}

func newRecordNotifier() *recordNotifier {
	return &recordNotifier{ended: make(chan endedEvent, 1)}
}

func (n *recordNotifier) GenerationStarted(groupID, userID string, message *models.ChatMessageModel) {
}

func (n *recordNotifier) GenerationChunk(groupID, userID, messageID, text string) {
	n.mu.Lock()
	n.chunks = append(n.chunks, text)
	count := len(n.chunks)
	cb := n.onChunk
	n.mu.Unlock()
	if cb != nil {
		cb(count)
	}
}

func (n *recordNotifier) GenerationEnded(groupID, userID, messageID string, status models.MessageStatus, sources models.StringArray) {
	select {
	case n.ended <- endedEvent{status: status, sources: sources}:
	default:
	}
}

func (n *recordNotifier) chunkCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.chunks)
}

func waitEnded(t *testing.T, n *recordNotifier) endedEvent {
	t.Helper()
	select {
	case evt := <-n.ended:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish in time")
		return endedEvent{}
	}
}

func contextResult() *retrieval.Result {
	return &retrieval.Result{
		Items: []retrieval.Item{
			{DocumentID: "doc-1", Title: "Handbook", Content: "alpha"},
			{DocumentID: "doc-1", Title: "Handbook", Content: "beta"},
		},
		Strategy: retrieval.StrategyFor(1),
		Mode:     retrieval.ModeHierarchical,
	}
}

func newTestCoordinator(store *memStore, gen *stubGenerator, notifier *recordNotifier) (*Coordinator, *Manager) {
	sessions := NewManager()
	coord := NewCoordinator(
		store,
		&stubRetriever{result: contextResult()},
		gen,
		notifier,
		sessions,
		config.DefaultRetrievalConfig(),
		zap.NewNop(),
	)
	return coord, sessions
}

func TestAskCompletesAndPersistsAnswer(t *testing.T) {
	store := &memStore{}
	gen := &stubGenerator{events: []ai.StreamEvent{
		ai.ChunkEvent{Text: "Hello "},
		ai.ChunkEvent{Text: "world"},
		ai.EndEvent{},
	}}
	notifier := newRecordNotifier()
	coord, sessions := newTestCoordinator(store, gen, notifier)

	receipt, err := coord.Ask(context.Background(), "g1", "u1", "greet me")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, receipt.Question.Role)
	assert.Equal(t, models.MessageGenerating, receipt.Answer.Status)

	ended := waitEnded(t, notifier)
	assert.Equal(t, models.MessageActive, ended.status)
	assert.Equal(t, models.StringArray{"Handbook"}, ended.sources)

	content, finalStatus, finalizeCalls := store.snapshot()
	assert.Equal(t, "Hello world", content)
	assert.Equal(t, models.MessageActive, finalStatus)
	assert.Equal(t, 1, finalizeCalls)
	assert.Equal(t, 2, notifier.chunkCount())
	assert.Equal(t, models.StringArray{"Handbook"}, store.sources)

	assert.Eventually(t, func() bool {
		return !sessions.Busy("g1", "u1")
	}, time.Second, 10*time.Millisecond)
}

func TestAskStopPersistsOnlyForwardedChunks(t *testing.T) {
	events := make([]ai.StreamEvent, 0, 11)
	for i := 0; i < 10; i++ {
		events = append(events, ai.ChunkEvent{Text: fmt.Sprintf("c%d ", i)})
	}
	events = append(events, ai.EndEvent{})

	store := &memStore{}
	gen := &stubGenerator{events: events}
	notifier := newRecordNotifier()
	coord, _ := newTestCoordinator(store, gen, notifier)

	notifier.onChunk = func(count int) {
		if count == 3 {
			coord.Stop("g1", "u1")
		}
	}

	_, err := coord.Ask(context.Background(), "g1", "u1", "count for me")
	require.NoError(t, err)

	ended := waitEnded(t, notifier)
	assert.Equal(t, models.MessageCancelled, ended.status)

	content, finalStatus, finalizeCalls := store.snapshot()
	assert.Equal(t, "c0 c1 c2 ", content)
	assert.Equal(t, models.MessageCancelled, finalStatus)
	assert.Equal(t, 1, finalizeCalls)
	assert.Equal(t, 3, notifier.chunkCount())
}

func TestAskFailureWithoutContentPersistsFallback(t *testing.T) {
	store := &memStore{}
	gen := &stubGenerator{events: []ai.StreamEvent{
		ai.ErrorEvent{Kind: ai.ErrorKindQuota, Err: fmt.Errorf("429 too many requests")},
	}}
	notifier := newRecordNotifier()
	coord, _ := newTestCoordinator(store, gen, notifier)

	_, err := coord.Ask(context.Background(), "g1", "u1", "anything")
	require.NoError(t, err)

	ended := waitEnded(t, notifier)
	assert.Equal(t, models.MessageActive, ended.status)

	content, finalStatus, _ := store.snapshot()
	assert.Equal(t, models.MessageActive, finalStatus)
	assert.NotEmpty(t, content)
	assert.Contains(t, content, "usage limit")
}

func TestAskFailureKeepsPartialContent(t *testing.T) {
	store := &memStore{}
	gen := &stubGenerator{events: []ai.StreamEvent{
		ai.ChunkEvent{Text: "partial answer"},
		ai.ErrorEvent{Kind: ai.ErrorKindProvider, Err: fmt.Errorf("stream reset")},
	}}
	notifier := newRecordNotifier()
	coord, _ := newTestCoordinator(store, gen, notifier)

	_, err := coord.Ask(context.Background(), "g1", "u1", "anything")
	require.NoError(t, err)

	waitEnded(t, notifier)
	content, finalStatus, _ := store.snapshot()
	assert.Equal(t, "partial answer", content)
	assert.Equal(t, models.MessageActive, finalStatus)
}

func TestAskRejectsWhileGenerating(t *testing.T) {
	store := &memStore{}
	notifier := newRecordNotifier()
	coord, sessions := newTestCoordinator(store, &stubGenerator{}, notifier)

	busy := &Session{MessageID: "other", GroupID: "g1", UserID: "u1"}
	require.NoError(t, sessions.Register(busy))

	_, err := coord.Ask(context.Background(), "g1", "u1", "second question")
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.created)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	coord, _ := newTestCoordinator(&memStore{}, &stubGenerator{}, newRecordNotifier())
	_, err := coord.Ask(context.Background(), "g1", "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}
