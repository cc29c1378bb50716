package chunker

import (
	"context"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codectx/codectx/pkg/types"
)

// Chunker turns source files into ordered CodeChunks. Extraction is
// two-tier: tree-sitter AST rules where a grammar exists, regex
// fallback otherwise or when parsing fails. Output is deterministic:
// identical input bytes produce identical chunk IDs.
type Chunker struct {
	specs map[types.Language]*LanguageSpec
}

// New creates a chunker with the default language table.
func New() *Chunker {
	c := &Chunker{specs: make(map[types.Language]*LanguageSpec)}
	for _, spec := range DefaultSpecs() {
		c.specs[spec.Language] = spec
	}
	return c
}

// SpecFor returns the registered spec for a language, nil when none.
func (c *Chunker) SpecFor(lang types.Language) *LanguageSpec {
	return c.specs[lang]
}

// Languages lists the languages the chunker has specs for.
func (c *Chunker) Languages() []types.Language {
	langs := make([]types.Language, 0, len(c.specs))
	for l := range c.specs {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// candidate is an extracted region before size filtering and capping.
// minBytes and minLines carry the matching rule's floors; zero means
// the package defaults.
type candidate struct {
	kind      string
	startLine int
	endLine   int
	depth     int
	priority  int
	context   bool
	minBytes  int
	minLines  int
	startByte uint32
	endByte   uint32
}

// Chunk extracts chunks from one file. A nil slice with nil error is
// valid output (empty file, nothing matched). Parse failures fall
// through to the regex tier.
func (c *Chunker) Chunk(ctx context.Context, filePath string, source []byte, lang types.Language) ([]*types.CodeChunk, error) {
	if len(strings.TrimSpace(string(source))) == 0 {
		return nil, nil
	}

	spec := c.specs[lang]
	if spec == nil {
		spec = c.specs[types.LangText]
	}

	lines := strings.Split(string(source), "\n")

	if spec.Grammar != nil {
		cands, err := c.astExtract(ctx, spec, source)
		if err == nil && len(cands) > 0 {
			return c.assemble(filePath, lang, lines, cands), nil
		}
		// Parser errors fall through to the regex tier.
	}

	cands := c.fallbackExtract(spec, lines)
	return c.assemble(filePath, lang, lines, cands), nil
}

// astExtract walks the parse tree depth-first applying the spec's node
// rules. Recursion stops at the deepest rule depth, which bounds work
// on pathologically nested code.
func (c *Chunker) astExtract(ctx context.Context, spec *LanguageSpec, source []byte) ([]candidate, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Grammar)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	maxDepth := spec.maxRuleDepth()
	var cands []candidate

	var walk func(node *sitter.Node, depth int)
	walk = func(node *sitter.Node, depth int) {
		for _, rule := range spec.Rules {
			ruleDepth := rule.MaxDepth
			if ruleDepth == 0 {
				ruleDepth = DefaultMaxDepth
			}
			if depth > ruleDepth {
				continue
			}
			for _, kind := range rule.Kinds {
				if node.Type() != kind {
					continue
				}
				cands = append(cands, candidate{
					kind:      node.Type(),
					startLine: int(node.StartPoint().Row),
					endLine:   int(node.EndPoint().Row),
					depth:     depth,
					priority:  rule.Priority,
					context:   rule.IncludeContext,
					minBytes:  rule.MinBytes,
					minLines:  rule.MinLines,
					startByte: node.StartByte(),
					endByte:   node.EndByte(),
				})
				break
			}
		}
		if depth >= maxDepth {
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i), depth+1)
		}
	}
	walk(tree.RootNode(), 0)

	return dedupeContained(cands), nil
}

// dedupeContained drops candidates fully contained in an earlier,
// larger candidate so nested matches do not double-index the same text.
func dedupeContained(cands []candidate) []candidate {
	if len(cands) <= 1 {
		return cands
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].startByte != cands[j].startByte {
			return cands[i].startByte < cands[j].startByte
		}
		return (cands[i].endByte - cands[i].startByte) > (cands[j].endByte - cands[j].startByte)
	})

	kept := cands[:0]
	var lastEnd uint32
	for _, cd := range cands {
		if len(kept) == 0 || cd.startByte >= lastEnd {
			kept = append(kept, cd)
			if cd.endByte > lastEnd {
				lastEnd = cd.endByte
			}
		}
	}
	return kept
}

// fallbackExtract runs the regex tier for the spec's configured
// strategy.
func (c *Chunker) fallbackExtract(spec *LanguageSpec, lines []string) []candidate {
	switch spec.Fallback.Strategy {
	case StrategyBrace:
		return braceBlocks(spec.Fallback, lines)
	case StrategySection:
		return sectionBlocks(spec.Fallback, lines)
	default:
		return windowBlocks(spec.Fallback, lines)
	}
}

// braceBlocks accumulates lines from each anchor until brace counts
// balance. A block that never opens a brace ends at the next anchor.
func braceBlocks(fb FallbackSpec, lines []string) []candidate {
	var cands []candidate
	i := 0
	for i < len(lines) {
		if !matchesAnchor(fb.Anchors, lines[i]) {
			i++
			continue
		}
		start := i
		depth := 0
		opened := false
		end := start
		for j := i; j < len(lines); j++ {
			for _, r := range lines[j] {
				switch r {
				case '{':
					depth++
					opened = true
				case '}':
					depth--
				}
			}
			end = j
			if opened && depth <= 0 {
				break
			}
			if !opened && j > start && matchesAnchor(fb.Anchors, lines[j]) {
				end = j - 1
				break
			}
		}
		cands = append(cands, candidate{
			kind:      fb.Kind,
			startLine: start,
			endLine:   end,
			priority:  fb.Priority,
		})
		i = end + 1
	}
	return cands
}

// sectionBlocks runs each chunk from one anchor to the line before the
// next anchor. For heading-structured documents and end-delimited
// languages.
func sectionBlocks(fb FallbackSpec, lines []string) []candidate {
	var starts []int
	for i, line := range lines {
		if matchesAnchor(fb.Anchors, line) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return windowBlocks(fb, lines)
	}

	var cands []candidate
	for i, start := range starts {
		end := len(lines) - 1
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		cands = append(cands, candidate{
			kind:      fb.Kind,
			startLine: start,
			endLine:   end,
			priority:  fb.Priority,
		})
	}
	return cands
}

// Window tier geometry.
const (
	windowLines   = 40
	windowOverlap = 10
)

// windowBlocks emits fixed-size overlapping line windows for content
// with no structure to anchor on.
func windowBlocks(fb FallbackSpec, lines []string) []candidate {
	var cands []candidate
	for i := 0; i < len(lines); {
		end := i + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		cands = append(cands, candidate{
			kind:      fb.Kind,
			startLine: i,
			endLine:   end - 1,
			priority:  fb.Priority,
		})
		if end >= len(lines) {
			break
		}
		i += windowLines - windowOverlap
	}
	return cands
}

func matchesAnchor(anchors []*regexp.Regexp, line string) bool {
	for _, a := range anchors {
		if a.MatchString(line) {
			return true
		}
	}
	return false
}

// assemble filters candidates by size, applies the per-file cap and
// produces the final ordered chunk list with stable IDs.
func (c *Chunker) assemble(filePath string, lang types.Language, lines []string, cands []candidate) []*types.CodeChunk {
	type sized struct {
		candidate
		content string
	}

	kept := make([]sized, 0, len(cands))
	for _, cd := range cands {
		if cd.startLine < 0 || cd.startLine >= len(lines) {
			continue
		}
		if cd.endLine >= len(lines) {
			cd.endLine = len(lines) - 1
		}
		minBytes := cd.minBytes
		if minBytes == 0 {
			minBytes = DefaultMinBytes
		}
		minLines := cd.minLines
		if minLines == 0 {
			minLines = DefaultMinLines
		}
		content := strings.TrimSpace(strings.Join(lines[cd.startLine:cd.endLine+1], "\n"))
		if len(content) < minBytes {
			continue
		}
		if cd.endLine-cd.startLine+1 < minLines {
			continue
		}
		kept = append(kept, sized{candidate: cd, content: content})
	}

	// Positional order first; this is the tie-break order everywhere.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].startLine != kept[j].startLine {
			return kept[i].startLine < kept[j].startLine
		}
		return kept[i].endLine < kept[j].endLine
	})

	if len(kept) > DefaultMaxChunks {
		// Keep the highest-priority chunks, earliest first within a
		// priority band, then restore positional order.
		byPriority := make([]sized, len(kept))
		copy(byPriority, kept)
		sort.SliceStable(byPriority, func(i, j int) bool {
			if byPriority[i].priority != byPriority[j].priority {
				return byPriority[i].priority > byPriority[j].priority
			}
			return byPriority[i].startLine < byPriority[j].startLine
		})
		byPriority = byPriority[:DefaultMaxChunks]
		sort.SliceStable(byPriority, func(i, j int) bool {
			if byPriority[i].startLine != byPriority[j].startLine {
				return byPriority[i].startLine < byPriority[j].startLine
			}
			return byPriority[i].endLine < byPriority[j].endLine
		})
		kept = byPriority
	}

	chunks := make([]*types.CodeChunk, 0, len(kept))
	for i, s := range kept {
		meta := map[string]any{
			types.MetaFile:     filePath,
			types.MetaNodeType: s.kind,
			types.MetaDepth:    s.depth,
			types.MetaPriority: s.priority,
		}
		if s.context {
			if cl := contextLines(lines, s.startLine, s.endLine, DefaultContextLines); cl != "" {
				meta[types.MetaContextLines] = cl
			}
		}
		chunks = append(chunks, &types.CodeChunk{
			ID:        types.ChunkIDFor(filePath, s.kind, s.startLine, s.endLine, s.priority, i),
			FilePath:  filePath,
			StartLine: s.startLine,
			EndLine:   s.endLine,
			Content:   s.content,
			Language:  lang,
			Metadata:  meta,
		})
	}
	return chunks
}

// contextLines joins up to n lines on each side of the chunk.
func contextLines(lines []string, start, end, n int) string {
	before := start - n
	if before < 0 {
		before = 0
	}
	after := end + n
	if after > len(lines)-1 {
		after = len(lines) - 1
	}

	var parts []string
	if before < start {
		parts = append(parts, lines[before:start]...)
	}
	if end < after {
		parts = append(parts, lines[end+1:after+1]...)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
