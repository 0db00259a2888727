package retrieval

import (
	"context"

	appcfg "github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/vectorstore"
	"go.uber.org/zap"
)

// Mode records which retrieval path produced a result.
type Mode string

const (
	// ModeHierarchical means summaries narrowed the corpus to a few
	// documents before passage search.
	ModeHierarchical Mode = "hierarchical"
	// ModeFlat means passages were searched across the whole group.
	ModeFlat Mode = "flat"
	// ModeRecency means similarity search was unavailable and recent
	// document text was used instead.
	ModeRecency Mode = "recency"
)

// summaryTopDocs is how many documents the summary stage forwards to
// passage search.
const summaryTopDocs = 3

// Item is one piece of retrieved context.
type Item struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

// Result is the context assembled for one question.
type Result struct {
	Items    []Item   `json:"items"`
	Strategy Strategy `json:"strategy"`
	Mode     Mode     `json:"mode"`
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.Vector, error)
}

// SimilarityStore answers nearest-neighbour queries over a group's corpus.
type SimilarityStore interface {
	CountSummaries(ctx context.Context, groupID string) (int64, error)
	SearchSummaries(ctx context.Context, groupID string, query models.Vector, topN int) ([]vectorstore.SummaryHit, error)
	SearchPassages(ctx context.Context, groupID string, documentIDs []string, query models.Vector, topN int) ([]vectorstore.PassageHit, error)
}

// CorpusReader exposes the document metadata the engine needs.
type CorpusReader interface {
	CountIndexed(ctx context.Context, groupID string) (int64, error)
	TitlesByID(ctx context.Context, ids []string) (map[string]string, error)
	RecentDocuments(ctx context.Context, groupID string, limit int) ([]models.DocumentModel, error)
}

// Engine picks relevant context for a question. Summaries act as a coarse
// first stage: when present they narrow passage search to the few documents
// most likely to hold the answer, otherwise passages are searched flat
// across the group.
type Engine struct {
	docs     CorpusReader
	store    SimilarityStore
	embedder Embedder
	cfg      appcfg.RetrievalConfig
	logger   *zap.Logger
}

func NewEngine(
	docs CorpusReader,
	store SimilarityStore,
	embedder Embedder,
	cfg appcfg.RetrievalConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		docs:     docs,
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.Named("retrieval"),
	}
}

// Retrieve assembles context for a question in the group's corpus. It never
// fails outright on provider or store trouble: embedding and similarity
// failures degrade to recent document text, and an empty similarity result
// does the same, so the caller always gets something to ground an answer in.
func (e *Engine) Retrieve(ctx context.Context, groupID, query string) (*Result, error) {
	docCount, err := e.docs.CountIndexed(ctx, groupID)
	if err != nil {
		return nil, err
	}
	strategy := StrategyFor(docCount)
	if docCount == 0 {
		// Nothing is indexed yet, but recently uploaded documents can
		// still serve as context.
		return e.recencyFallback(ctx, groupID, strategy)
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, falling back to recency",
			zap.String("group_id", groupID),
			zap.Error(err))
		return e.recencyFallback(ctx, groupID, strategy)
	}

	summaryCount, err := e.store.CountSummaries(ctx, groupID)
	if err != nil {
		return e.degrade(ctx, groupID, strategy, "summary count failed", err)
	}

	if summaryCount > 0 {
		result, err := e.hierarchical(ctx, groupID, queryVec, strategy)
		if err != nil {
			return e.degrade(ctx, groupID, strategy, "hierarchical search failed", err)
		}
		if result != nil {
			return result, nil
		}
		// Summary stage found documents but no usable passages in them;
		// widen to the whole group.
	}

	result, err := e.flat(ctx, groupID, queryVec, strategy)
	if err != nil {
		return e.degrade(ctx, groupID, strategy, "flat search failed", err)
	}
	if len(result.Items) == 0 {
		return e.recencyFallback(ctx, groupID, strategy)
	}
	return result, nil
}

func (e *Engine) degrade(ctx context.Context, groupID string, strategy Strategy, reason string, cause error) (*Result, error) {
	e.logger.Warn("similarity search degraded, falling back to recency",
		zap.String("group_id", groupID),
		zap.String("reason", reason),
		zap.Error(cause))
	return e.recencyFallback(ctx, groupID, strategy)
}

func (e *Engine) hierarchical(ctx context.Context, groupID string, queryVec models.Vector, strategy Strategy) (*Result, error) {
	summaryHits, err := e.store.SearchSummaries(ctx, groupID, queryVec, summaryTopDocs)
	if err != nil {
		return nil, err
	}
	if len(summaryHits) == 0 {
		return nil, nil
	}

	docIDs := make([]string, 0, len(summaryHits))
	for _, hit := range summaryHits {
		docIDs = append(docIDs, hit.Summary.DocumentID)
	}

	passageHits, err := e.store.SearchPassages(ctx, groupID, docIDs, queryVec, strategy.MaxItems)
	if err != nil {
		return nil, err
	}
	if len(passageHits) == 0 {
		return nil, nil
	}
	return e.buildResult(ctx, passageHits, strategy, ModeHierarchical)
}

func (e *Engine) flat(ctx context.Context, groupID string, queryVec models.Vector, strategy Strategy) (*Result, error) {
	passageHits, err := e.store.SearchPassages(ctx, groupID, nil, queryVec, strategy.MaxItems)
	if err != nil {
		return nil, err
	}
	return e.buildResult(ctx, passageHits, strategy, ModeFlat)
}

func (e *Engine) buildResult(ctx context.Context, hits []vectorstore.PassageHit, strategy Strategy, mode Mode) (*Result, error) {
	ids := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if _, ok := seen[hit.Passage.DocumentID]; ok {
			continue
		}
		seen[hit.Passage.DocumentID] = struct{}{}
		ids = append(ids, hit.Passage.DocumentID)
	}

	titles, err := e.docs.TitlesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(hits))
	for _, hit := range hits {
		items = append(items, Item{
			DocumentID: hit.Passage.DocumentID,
			Title:      titles[hit.Passage.DocumentID],
			Content:    strategy.Truncate(hit.Passage.Content),
			Distance:   hit.Distance,
		})
	}
	return &Result{Items: items, Strategy: strategy, Mode: mode}, nil
}

// recencyFallback builds context from the most recently uploaded documents'
// raw text, capped so the combined text stays within the fallback budget.
// Unindexed documents count too: a fresh upload is usable context even
// before its passages exist.
func (e *Engine) recencyFallback(ctx context.Context, groupID string, strategy Strategy) (*Result, error) {
	limit := e.cfg.FallbackMaxPassages
	if limit <= 0 {
		limit = strategy.MaxItems
	}

	docs, err := e.docs.RecentDocuments(ctx, groupID, limit)
	if err != nil {
		return nil, err
	}

	budget := e.cfg.FallbackTextMaxLen
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		if budget <= 0 {
			break
		}
		text := doc.Text
		runes := []rune(text)
		itemCap := strategy.MaxItemChars
		if itemCap > budget {
			itemCap = budget
		}
		if len(runes) > itemCap {
			text = string(runes[:itemCap])
		}
		budget -= len([]rune(text))
		items = append(items, Item{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Content:    text,
		})
	}
	return &Result{Items: items, Strategy: strategy, Mode: ModeRecency}, nil
}
