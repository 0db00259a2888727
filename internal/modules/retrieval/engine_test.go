package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vec models.Vector
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (models.Vector, error) {
	return f.vec, f.err
}

type fakeStore struct {
	summaryCount int64
	summaryHits  []vectorstore.SummaryHit
	scopedHits   []vectorstore.PassageHit
	flatHits     []vectorstore.PassageHit
	lastDocIDs   []string
	searchErr    error
}

func (f *fakeStore) CountSummaries(ctx context.Context, groupID string) (int64, error) {
	return f.summaryCount, nil
}

func (f *fakeStore) SearchSummaries(ctx context.Context, groupID string, query models.Vector, topN int) ([]vectorstore.SummaryHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.summaryHits
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

func (f *fakeStore) SearchPassages(ctx context.Context, groupID string, documentIDs []string, query models.Vector, topN int) ([]vectorstore.PassageHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.lastDocIDs = documentIDs
	hits := f.flatHits
	if len(documentIDs) > 0 {
		hits = f.scopedHits
	}
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

type fakeCorpus struct {
	indexed     int64
	titles      map[string]string
	recent      []models.DocumentModel
	recentCalls int
}

func (f *fakeCorpus) CountIndexed(ctx context.Context, groupID string) (int64, error) {
	return f.indexed, nil
}

func (f *fakeCorpus) TitlesByID(ctx context.Context, ids []string) (map[string]string, error) {
	return f.titles, nil
}

func (f *fakeCorpus) RecentDocuments(ctx context.Context, groupID string, limit int) ([]models.DocumentModel, error) {
	f.recentCalls++
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func summaryHit(docID string, distance float64) vectorstore.SummaryHit {
	return vectorstore.SummaryHit{
		Summary:  models.DocumentSummaryModel{DocumentID: docID},
		Distance: distance,
	}
}

func passageHit(docID, content string, distance float64) vectorstore.PassageHit {
	return vectorstore.PassageHit{
		Passage:  models.PassageModel{DocumentID: docID, Content: content},
		Distance: distance,
	}
}

func newTestEngine(corpus *fakeCorpus, store *fakeStore, embedder *fakeEmbedder) *Engine {
	return NewEngine(corpus, store, embedder, config.DefaultRetrievalConfig(), zap.NewNop())
}

func TestRetrieveHierarchical(t *testing.T) {
	corpus := &fakeCorpus{
		indexed: 5,
		titles:  map[string]string{"doc-1": "Handbook", "doc-2": "Notes"},
	}
	store := &fakeStore{
		summaryCount: 2,
		summaryHits:  []vectorstore.SummaryHit{summaryHit("doc-1", 0.1), summaryHit("doc-2", 0.2)},
		scopedHits: []vectorstore.PassageHit{
			passageHit("doc-1", "alpha", 0.05),
			passageHit("doc-2", "beta", 0.15),
		},
	}
	engine := newTestEngine(corpus, store, &fakeEmbedder{vec: models.Vector{1, 0}})

	result, err := engine.Retrieve(context.Background(), "g1", "what is alpha?")
	require.NoError(t, err)
	assert.Equal(t, ModeHierarchical, result.Mode)
	assert.Equal(t, []string{"doc-1", "doc-2"}, store.lastDocIDs)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Handbook", result.Items[0].Title)
	assert.Equal(t, "alpha", result.Items[0].Content)
	assert.Equal(t, 5, result.Strategy.MaxItems)
}

func TestRetrieveFallsBackToFlatWhenStageTwoEmpty(t *testing.T) {
	corpus := &fakeCorpus{indexed: 5, titles: map[string]string{"doc-9": "Other"}}
	store := &fakeStore{
		summaryCount: 1,
		summaryHits:  []vectorstore.SummaryHit{summaryHit("doc-1", 0.1)},
		scopedHits:   nil,
		flatHits:     []vectorstore.PassageHit{passageHit("doc-9", "gamma", 0.3)},
	}
	engine := newTestEngine(corpus, store, &fakeEmbedder{vec: models.Vector{1, 0}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeFlat, result.Mode)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "gamma", result.Items[0].Content)
	// The widened search is unscoped.
	assert.Empty(t, store.lastDocIDs)
}

func TestRetrieveFlatWhenNoSummaries(t *testing.T) {
	corpus := &fakeCorpus{indexed: 2, titles: map[string]string{"doc-1": "Only"}}
	store := &fakeStore{
		summaryCount: 0,
		flatHits:     []vectorstore.PassageHit{passageHit("doc-1", "delta", 0.2)},
	}
	engine := newTestEngine(corpus, store, &fakeEmbedder{vec: models.Vector{1, 0}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeFlat, result.Mode)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 8, result.Strategy.MaxItems)
}

func TestRetrieveRecencyFallbackOnEmbedFailure(t *testing.T) {
	longText := strings.Repeat("z", 5000)
	corpus := &fakeCorpus{
		indexed: 4,
		recent: []models.DocumentModel{
			{Base: models.Base{ID: "doc-new"}, Title: "Newest", Text: longText},
			{Base: models.Base{ID: "doc-old"}, Title: "Older", Text: longText},
		},
	}
	store := &fakeStore{summaryCount: 3}
	engine := newTestEngine(corpus, store, &fakeEmbedder{err: errors.New("embedding down")})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeRecency, result.Mode)
	require.NotEmpty(t, result.Items)
	assert.Equal(t, "doc-new", result.Items[0].DocumentID)

	total := 0
	for _, item := range result.Items {
		total += len([]rune(item.Content))
	}
	cfg := config.DefaultRetrievalConfig()
	assert.LessOrEqual(t, total, cfg.FallbackTextMaxLen)
}

func TestRetrieveUnindexedCorpusServesRecentUploads(t *testing.T) {
	corpus := &fakeCorpus{
		indexed: 0,
		recent: []models.DocumentModel{
			{Base: models.Base{ID: "doc-fresh"}, Title: "Fresh Upload", Text: "just uploaded"},
		},
	}
	engine := newTestEngine(corpus, &fakeStore{}, &fakeEmbedder{vec: models.Vector{1}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeRecency, result.Mode)
	assert.Equal(t, 1, corpus.recentCalls)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "doc-fresh", result.Items[0].DocumentID)
	assert.Equal(t, "just uploaded", result.Items[0].Content)
	assert.Equal(t, 8, result.Strategy.MaxItems)
}

func TestRetrieveTrulyEmptyGroup(t *testing.T) {
	corpus := &fakeCorpus{indexed: 0}
	engine := newTestEngine(corpus, &fakeStore{}, &fakeEmbedder{vec: models.Vector{1}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeRecency, result.Mode)
	assert.Equal(t, 1, corpus.recentCalls)
	assert.Empty(t, result.Items)
}

func TestRetrieveRecencyFallbackWhenFlatSearchEmpty(t *testing.T) {
	corpus := &fakeCorpus{
		indexed: 2,
		recent: []models.DocumentModel{
			{Base: models.Base{ID: "doc-1"}, Title: "Only", Text: "body"},
		},
	}
	store := &fakeStore{summaryCount: 0, flatHits: nil}
	engine := newTestEngine(corpus, store, &fakeEmbedder{vec: models.Vector{1, 0}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeRecency, result.Mode)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "doc-1", result.Items[0].DocumentID)
}

func TestRetrieveRecencyFallbackOnStoreError(t *testing.T) {
	corpus := &fakeCorpus{
		indexed: 2,
		recent: []models.DocumentModel{
			{Base: models.Base{ID: "doc-1"}, Title: "Only", Text: "body"},
		},
	}
	store := &fakeStore{summaryCount: 1, searchErr: errors.New("store down")}
	engine := newTestEngine(corpus, store, &fakeEmbedder{vec: models.Vector{1, 0}})

	result, err := engine.Retrieve(context.Background(), "g1", "anything")
	require.NoError(t, err)
	assert.Equal(t, ModeRecency, result.Mode)
	require.Len(t, result.Items, 1)
}
