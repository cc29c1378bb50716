package searcher

import (
	"sort"

	"github.com/codectx/codectx/pkg/types"
)

// Fusion strategies.
const (
	FusionRRF      = "rrf"
	FusionWeighted = "weighted"
)

// DefaultRRFConstant is the k in 1/(k + rank).
const DefaultRRFConstant = 60.0

// DefaultAlpha weights the lexical list in weighted fusion.
const DefaultAlpha = 0.5

// FusionConfig selects and parameterizes the rank fusion.
type FusionConfig struct {
	Strategy    string
	RRFConstant float64 // k for RRF, DefaultRRFConstant when zero
	Alpha       float64 // lexical weight for weighted fusion
}

// fused is one candidate after fusion, carrying the full result the
// candidate came with (lexical and semantic sides agree on metadata).
type fused struct {
	result types.SearchResult
	score  float64
}

// fuse merges the two ranked lists into one. A chunk present in both
// lists appears once with its combined score. Output is score
// descending, ties by chunk ID ascending, capped at k.
func fuse(lexical, semantic []types.SearchResult, k int, cfg FusionConfig) []types.SearchResult {
	var candidates map[string]*fused
	switch cfg.Strategy {
	case FusionWeighted:
		candidates = weightedFuse(lexical, semantic, cfg.Alpha)
	default:
		candidates = rrfFuse(lexical, semantic, cfg.RRFConstant)
	}

	out := make([]fused, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].result.ChunkID < out[j].result.ChunkID
	})
	if k < len(out) {
		out = out[:k]
	}

	results := make([]types.SearchResult, len(out))
	for i, c := range out {
		r := c.result
		r.Score = c.score
		results[i] = r
	}
	return results
}

// rrfFuse combines by reciprocal rank: score(d) = Σ 1/(k + rank_d).
func rrfFuse(lexical, semantic []types.SearchResult, k float64) map[string]*fused {
	if k == 0 {
		k = DefaultRRFConstant
	}
	candidates := make(map[string]*fused)
	accumulate := func(list []types.SearchResult) {
		for rank, r := range list {
			c, ok := candidates[r.ChunkID]
			if !ok {
				c = &fused{result: r}
				candidates[r.ChunkID] = c
			}
			c.score += 1.0 / (k + float64(rank+1))
		}
	}
	accumulate(lexical)
	accumulate(semantic)
	return candidates
}

// weightedFuse combines min-max normalized scores:
// α·norm(lexical) + (1−α)·norm(semantic).
func weightedFuse(lexical, semantic []types.SearchResult, alpha float64) map[string]*fused {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	candidates := make(map[string]*fused)
	accumulate := func(list []types.SearchResult, weight float64) {
		norms := minMaxNormalize(list)
		for i, r := range list {
			c, ok := candidates[r.ChunkID]
			if !ok {
				c = &fused{result: r}
				candidates[r.ChunkID] = c
			}
			c.score += weight * norms[i]
		}
	}
	accumulate(lexical, alpha)
	accumulate(semantic, 1-alpha)
	return candidates
}

// minMaxNormalize maps scores to [0,1] within one list. A constant
// list normalizes to all ones so it still contributes.
func minMaxNormalize(list []types.SearchResult) []float64 {
	norms := make([]float64, len(list))
	if len(list) == 0 {
		return norms
	}
	lo, hi := list[0].Score, list[0].Score
	for _, r := range list[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	for i, r := range list {
		if hi == lo {
			norms[i] = 1
			continue
		}
		norms[i] = (r.Score - lo) / (hi - lo)
	}
	return norms
}
