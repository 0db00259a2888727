package retrieval

// Strategy sizes the retrieved context for a corpus. Small corpora can
// afford more and longer excerpts per answer; large corpora tighten both
// knobs to keep the prompt bounded.
type Strategy struct {
	MaxItems     int
	MaxItemChars int
}

// StrategyFor picks the context sizing for a group with docCount indexed
// documents.
func StrategyFor(docCount int64) Strategy {
	switch {
	case docCount <= 3:
		return Strategy{MaxItems: 8, MaxItemChars: 2000}
	case docCount <= 15:
		return Strategy{MaxItems: 5, MaxItemChars: 1500}
	default:
		return Strategy{MaxItems: 3, MaxItemChars: 1200}
	}
}

// Truncate trims text to the strategy's per-item character cap.
func (s Strategy) Truncate(text string) string {
	if s.MaxItemChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= s.MaxItemChars {
		return text
	}
	return string(runes[:s.MaxItemChars])
}
