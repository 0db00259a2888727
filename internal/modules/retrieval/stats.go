package retrieval

import "context"

// Stats describes the state of a group's corpus and the context sizing
// currently in effect for it.
type Stats struct {
	Documents int64    `json:"documents"`
	Indexed   int64    `json:"indexed"`
	Passages  int64    `json:"passages"`
	Summaries int64    `json:"summaries"`
	Strategy  Strategy `json:"strategy"`
}

// statsReader is the subset of counters the stats endpoint needs beyond the
// retrieval interfaces.
type statsReader interface {
	CountAll(ctx context.Context, groupID string) (int64, error)
}

type passageCounter interface {
	CountPassages(ctx context.Context, groupID string) (int64, error)
}

// Stats reports corpus counters for a group.
func (e *Engine) Stats(ctx context.Context, groupID string) (*Stats, error) {
	indexed, err := e.docs.CountIndexed(ctx, groupID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Indexed:   indexed,
		Documents: indexed,
		Strategy:  StrategyFor(indexed),
	}

	if reader, ok := e.docs.(statsReader); ok {
		total, err := reader.CountAll(ctx, groupID)
		if err != nil {
			return nil, err
		}
		stats.Documents = total
	}

	summaries, err := e.store.CountSummaries(ctx, groupID)
	if err != nil {
		return nil, err
	}
	stats.Summaries = summaries

	if counter, ok := e.store.(passageCounter); ok {
		passages, err := counter.CountPassages(ctx, groupID)
		if err != nil {
			return nil, err
		}
		stats.Passages = passages
	}

	return stats, nil
}
