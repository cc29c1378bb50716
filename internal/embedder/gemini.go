package embedder

import (
	"context"

	"google.golang.org/genai"

	"github.com/codectx/codectx/pkg/types"
)

// DefaultGeminiModel is the Gemini embedding model used when none is
// configured.
const DefaultGeminiModel = "gemini-embedding-001"

// Gemini embeds through the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
	dims   int
	retry  RetryConfig
}

// NewGemini creates a Gemini embedding client.
func NewGemini(ctx context.Context, apiKey, model string, dims int) (*Gemini, error) {
	if apiKey == "" {
		return nil, types.E(types.KindConfigInvalid, "gemini embedder requires an API key").
			With("key", "providers.embedding.api_key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if dims <= 0 {
		dims = GeminiDimensions
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "create gemini client").
			With("category", "embedding")
	}

	return &Gemini{
		client: client,
		model:  model,
		dims:   dims,
		retry:  DefaultRetryConfig(),
	}, nil
}

func (g *Gemini) Dimensions() int      { return g.dims }
func (g *Gemini) ProviderName() string { return ProviderGemini }
func (g *Gemini) Model() string        { return g.model }
func (g *Gemini) Close() error         { return nil }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	outputDims := int32(g.dims)

	resp, err := retryWithBackoff(ctx, g.retry, func() (*genai.EmbedContentResponse, error) {
		r, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &outputDims,
		})
		if err != nil {
			return nil, types.Wrap(types.KindTransient, err, "gemini embed call")
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return geminiVectors(resp, len(texts), g.dims)
}

// geminiVectors validates a response and unpacks its vectors. The nil
// check comes first: a nil response must not be dereferenced while
// building the error message.
func geminiVectors(resp *genai.EmbedContentResponse, count, dims int) ([][]float32, error) {
	if resp == nil {
		return nil, types.E(types.KindTransient, "gemini returned no response for %d texts", count)
	}
	if len(resp.Embeddings) != count {
		return nil, types.E(types.KindTransient, "gemini returned %d embeddings for %d texts", len(resp.Embeddings), count)
	}

	vectors := make([][]float32, count)
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != dims {
			return nil, types.E(types.KindConfigInvalid, "gemini vector %d has unexpected dimensions", i).
				With("key", "providers.embedding.dimensions")
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (g *Gemini) HealthCheck(ctx context.Context) error {
	_, err := g.Embed(ctx, "ping")
	return err
}
