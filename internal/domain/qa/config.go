package qa

import "time"

// Config holds runtime knobs for the QA service.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity accepted as a
	// hit; a sub-threshold best match is not a hit.
	SimilarityThreshold float64
	// Dimensions is the fixed vector length of the embedding model. A
	// mismatch between cache, index and queries is a configuration error.
	Dimensions int
	// RebuildPause spaces consecutive generator calls during Rebuild so
	// aggregate request rate stays inside the provider's combined budget.
	RebuildPause time.Duration
	// MaxKeywordResults caps SearchKeyword output.
	MaxKeywordResults int
}
