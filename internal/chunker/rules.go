package chunker

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codectx/codectx/pkg/types"
)

// Extraction defaults. Chunks below the size floor are dropped; the
// per-file cap bounds output on pathological files.
const (
	DefaultMinBytes     = 20
	DefaultMinLines     = 2
	DefaultMaxDepth     = 4
	DefaultContextLines = 3
	DefaultMaxChunks    = 64
)

// NodeRule matches AST nodes by kind and decides whether they become
// chunks. Rules are data: the traversal algorithm is the same for every
// language.
type NodeRule struct {
	// Kinds are the tree-sitter node type names this rule targets.
	Kinds []string
	// MinBytes and MinLines are size floors; zero means the default.
	MinBytes int
	MinLines int
	// MaxDepth bounds how deep in the tree the rule still applies,
	// preventing quadratic blowup on deeply nested code.
	MaxDepth int
	// Priority orders chunks when the per-file cap truncates output.
	Priority int
	// IncludeContext attaches surrounding lines to the chunk metadata.
	IncludeContext bool
}

// FallbackStrategy selects how the regex tier forms chunks.
type FallbackStrategy int

const (
	// StrategyBrace accumulates lines from an anchor until brace counts
	// balance. For brace-structured code.
	StrategyBrace FallbackStrategy = iota
	// StrategySection runs each chunk from one anchor to the next. For
	// heading-structured documents.
	StrategySection
	// StrategyWindow emits fixed-size overlapping line windows. For
	// plain text with no structure to anchor on.
	StrategyWindow
)

// FallbackSpec configures the regex tier for one language.
type FallbackSpec struct {
	Strategy FallbackStrategy
	// Anchors identify block starts. Unused by StrategyWindow.
	Anchors []*regexp.Regexp
	// Kind names the emitted chunks, e.g. "block" or "section".
	Kind string
	// Priority applies to every fallback chunk.
	Priority int
}

// LanguageSpec binds a language to its grammar, extraction rules and
// fallback configuration. A nil Grammar means the language is served by
// the fallback tier only.
type LanguageSpec struct {
	Language types.Language
	Grammar  *sitter.Language
	Rules    []NodeRule
	Fallback FallbackSpec
}

// maxRuleDepth returns the deepest MaxDepth across the spec's rules,
// which bounds the traversal.
func (s *LanguageSpec) maxRuleDepth() int {
	max := 0
	for _, r := range s.Rules {
		d := r.MaxDepth
		if d == 0 {
			d = DefaultMaxDepth
		}
		if d > max {
			max = d
		}
	}
	if max == 0 {
		max = DefaultMaxDepth
	}
	return max
}
