package searcher

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/codectx/codectx/internal/vectorstore"
)

// BM25 parameters. Standard values; k1 controls term-frequency
// saturation, b controls length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// lexicalHit is one BM25 match.
type lexicalHit struct {
	ChunkID string
	Score   float64
	Meta    vectorstore.ChunkMeta
}

type bm25Doc struct {
	meta   vectorstore.ChunkMeta
	length int // token count
}

// bm25Index is an in-memory inverted index over chunk content. It is
// fed during indexing and rebuildable from the vector store's live
// entries, so it never needs its own persistence.
type bm25Index struct {
	mu       sync.RWMutex
	docs     map[string]*bm25Doc
	postings map[string]map[string]int // term -> chunkID -> term frequency
	totalLen int
}

func newBM25Index() *bm25Index {
	return &bm25Index{
		docs:     make(map[string]*bm25Doc),
		postings: make(map[string]map[string]int),
	}
}

// Add indexes one chunk, replacing any previous version of the same ID.
func (x *bm25Index) Add(meta vectorstore.ChunkMeta) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(meta.ChunkID)

	toks := tokenize(meta.Content)
	x.docs[meta.ChunkID] = &bm25Doc{meta: meta, length: len(toks)}
	x.totalLen += len(toks)
	for _, t := range toks {
		byDoc, ok := x.postings[t]
		if !ok {
			byDoc = make(map[string]int)
			x.postings[t] = byDoc
		}
		byDoc[meta.ChunkID]++
	}
}

// Remove drops a chunk from the index. Unknown IDs are ignored.
func (x *bm25Index) Remove(chunkID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(chunkID)
}

// RemoveFile drops every chunk of one file.
func (x *bm25Index) RemoveFile(filePath string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, doc := range x.docs {
		if doc.meta.FilePath == filePath {
			x.removeLocked(id)
		}
	}
}

func (x *bm25Index) removeLocked(chunkID string) {
	doc, ok := x.docs[chunkID]
	if !ok {
		return
	}
	delete(x.docs, chunkID)
	x.totalLen -= doc.length
	for _, t := range tokenize(doc.meta.Content) {
		if byDoc, ok := x.postings[t]; ok {
			delete(byDoc, chunkID)
			if len(byDoc) == 0 {
				delete(x.postings, t)
			}
		}
	}
}

// Rebuild replaces the index contents with the given entries.
func (x *bm25Index) Rebuild(metas []vectorstore.ChunkMeta) {
	fresh := newBM25Index()
	for _, m := range metas {
		fresh.Add(m)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = fresh.docs
	x.postings = fresh.postings
	x.totalLen = fresh.totalLen
}

// Len returns the indexed document count.
func (x *bm25Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search scores the query against the index, top k by BM25 descending,
// ties by chunk ID ascending. Documents matching no query term are
// omitted.
func (x *bm25Index) Search(query string, k int, filter *vectorstore.Filter) []lexicalHit {
	if k <= 0 {
		return nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(x.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		byDoc, ok := x.postings[term]
		if !ok {
			continue
		}
		df := float64(len(byDoc))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for id, tf := range byDoc {
			doc := x.docs[id]
			norm := 1 - bm25B + bm25B*float64(doc.length)/avgLen
			scores[id] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}

	hits := make([]lexicalHit, 0, len(scores))
	for id, score := range scores {
		doc := x.docs[id]
		if !filter.Matches(&doc.meta) {
			continue
		}
		hits = append(hits, lexicalHit{ChunkID: id, Score: score, Meta: doc.meta})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// tokenize splits text into lowercase terms, breaking identifiers on
// camelCase and underscores. Must agree with what the local embedder
// considers a token so lexical and semantic views of a chunk line up.
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
