package embedder

import (
	"context"
	"math"

	"github.com/codectx/codectx/pkg/types"
)

// Provider names registered with the provider registry.
const (
	ProviderNull   = "null"
	ProviderLocal  = "local"
	ProviderRemote = "remote"
	ProviderGemini = "gemini"
)

// Default dimensions per provider.
const (
	NullDimensions   = 64
	LocalDimensions  = 384
	RemoteDimensions = 1536
	GeminiDimensions = 768
)

// MaxBatchSize bounds one EmbedBatch call. Larger inputs are the
// caller's responsibility to split.
const MaxBatchSize = 64

// Embedder maps text to fixed-dimension vectors. Every output vector
// of one instance has length Dimensions(); EmbedBatch is index-aligned
// with its input and never drops or reorders items.
type Embedder interface {
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ProviderName() string
	Model() string
	HealthCheck(ctx context.Context) error
	Close() error
}

// validateBatch rejects empty batches, empty items and oversize
// batches before any provider call.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return types.E(types.KindConfigInvalid, "embed batch is empty")
	}
	if len(texts) > MaxBatchSize {
		return types.E(types.KindQuotaExceeded, "embed batch of %d exceeds limit %d", len(texts), MaxBatchSize).
			With("limit", "64")
	}
	for i, t := range texts {
		if t == "" {
			return types.E(types.KindConfigInvalid, "embed batch item %d is empty", i)
		}
	}
	return nil
}

// normalize scales v to unit length in place. Zero vectors are left
// unchanged.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
