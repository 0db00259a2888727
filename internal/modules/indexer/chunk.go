package indexer

// SplitPassages cuts text into overlapping windows of at most window runes,
// each window starting window-overlap runes after the previous one. The
// final passage may be shorter than the window. Dropping the trailing
// overlap runes of every passage but the last and concatenating reproduces
// the input.
func SplitPassages(text string, window, overlap int) []string {
	if window <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= window {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := window - overlap
	passages := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		passages = append(passages, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return passages
}
