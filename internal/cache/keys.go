package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Namespaces used by the engine.
const (
	NamespaceEmbeddings = "embeddings"
	NamespaceQueries    = "queries"
)

// EmbeddingKey fingerprints a text for embedding memoization. Provider
// and model participate so switching backends never serves stale
// vectors.
func EmbeddingKey(provider, model, text string) string {
	d := xxhash.New()
	_, _ = d.WriteString(provider)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(model)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(text)
	return strconv.FormatUint(d.Sum64(), 16)
}

// QueryKey fingerprints a canonicalized search request for top-k
// memoization.
func QueryKey(collection, query string, k int, mode string, filters []string) string {
	d := xxhash.New()
	_, _ = d.WriteString(collection)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(query)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(fmt.Sprintf("%d", k))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(mode)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strings.Join(filters, ","))
	return strconv.FormatUint(d.Sum64(), 16)
}
