package types

// SearchResult is a single ranked hit. Score is non-negative and ordering
// is descending; for hybrid results the score carries no unit, only rank
// is meaningful.
type SearchResult struct {
	ChunkID   string
	Score     float64
	FilePath  string
	StartLine int
	EndLine   int
	Content   string
	Metadata  map[string]any
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return E(KindConfigInvalid, "result chunk ID cannot be empty")
	}
	if sr.Score < 0 {
		return E(KindConfigInvalid, "result score must be non-negative")
	}
	if sr.FilePath == "" {
		return E(KindConfigInvalid, "result file path cannot be empty")
	}
	if sr.EndLine < sr.StartLine {
		return E(KindConfigInvalid, "result end line %d precedes start line %d", sr.EndLine, sr.StartLine)
	}
	return nil
}
