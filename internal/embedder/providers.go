package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/codectx/codectx/pkg/types"
)

// Null produces a deterministic vector from the SHA-256 of the text.
// It exists for tests and for running the pipeline without any model:
// identical text always embeds to the identical vector.
type Null struct {
	dims int
}

// NewNull creates the null embedder. Zero dims means NullDimensions.
func NewNull(dims int) *Null {
	if dims <= 0 {
		dims = NullDimensions
	}
	return &Null{dims: dims}
}

func (n *Null) Dimensions() int      { return n.dims }
func (n *Null) ProviderName() string { return ProviderNull }
func (n *Null) Model() string        { return "hash-v1" }
func (n *Null) Close() error         { return nil }

func (n *Null) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.E(types.KindConfigInvalid, "embed text is empty")
	}
	v := make([]float32, n.dims)
	// Expand the digest by chained hashing until the vector is full.
	sum := sha256.Sum256([]byte(text))
	for i := 0; i < n.dims; {
		for j := 0; j+4 <= len(sum) && i < n.dims; j += 4 {
			bits := binary.LittleEndian.Uint32(sum[j : j+4])
			v[i] = float32(bits%2000)/1000.0 - 1.0
			i++
		}
		sum = sha256.Sum256(sum[:])
	}
	normalize(v)
	return v, nil
}

func (n *Null) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := n.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (n *Null) HealthCheck(ctx context.Context) error {
	_, err := n.Embed(ctx, "ping")
	return err
}

// Local is the in-process model: token feature hashing over identifier
// splits. Not a learned embedding, but cheap, deterministic, and good
// enough for lexically similar code to land near each other.
type Local struct {
	dims int
}

// NewLocal creates the local embedder. Zero dims means LocalDimensions.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = LocalDimensions
	}
	return &Local{dims: dims}
}

func (l *Local) Dimensions() int      { return l.dims }
func (l *Local) ProviderName() string { return ProviderLocal }
func (l *Local) Model() string        { return "feature-hash-v1" }
func (l *Local) Close() error         { return nil }

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.E(types.KindConfigInvalid, "embed text is empty")
	}
	v := make([]float32, l.dims)
	for _, tok := range tokenize(text) {
		h := xxhash.Sum64String(tok)
		idx := int(h % uint64(l.dims))
		// Sign bit from a higher hash bit gives a signed feature map.
		if h&(1<<63) != 0 {
			v[idx] -= 1
		} else {
			v[idx] += 1
		}
	}
	normalize(v)
	return v, nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Local) HealthCheck(ctx context.Context) error {
	_, err := l.Embed(ctx, "ping")
	return err
}

// tokenize splits text into lowercase terms, breaking identifiers on
// camelCase and underscores. Stop words are kept: in code, "if" and
// "for" carry signal.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	prevLower := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && prevLower {
				flush()
			}
			cur.WriteRune(r)
			prevLower = unicode.IsLower(r)
		case unicode.IsDigit(r):
			cur.WriteRune(r)
			prevLower = false
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return tokens
}
