package chunker

import (
	"regexp"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codectx/codectx/pkg/types"
)

// Extraction priorities. Higher survives the per-file cap.
const (
	priorityFunction = 10
	priorityType     = 8
	priorityClass    = 9
	priorityDecl     = 4
	prioritySection  = 5
	priorityBlock    = 3
)

// DefaultSpecs is the language table: grammar-backed specs for the
// languages with a bundled tree-sitter grammar, regex fallback for the
// rest. Rules are data; traversal is one algorithm.
func DefaultSpecs() []*LanguageSpec {
	braceFallback := FallbackSpec{
		Strategy: StrategyBrace,
		Anchors: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(export\s+)?(public|private|protected|static|async|pub|unsafe)?\s*(func|fn|function|def|class|struct|impl|trait|interface|enum)\b`),
		},
		Kind:     "block",
		Priority: priorityBlock,
	}

	return []*LanguageSpec{
		{
			Language: types.LangGo,
			Grammar:  golang.GetLanguage(),
			Rules: []NodeRule{
				{Kinds: []string{"function_declaration", "method_declaration"}, Priority: priorityFunction, MaxDepth: 2, IncludeContext: true},
				{Kinds: []string{"type_declaration"}, Priority: priorityType, MaxDepth: 2},
				{Kinds: []string{"const_declaration", "var_declaration"}, Priority: priorityDecl, MaxDepth: 1},
			},
			Fallback: braceFallback,
		},
		{
			Language: types.LangJavaScript,
			Grammar:  javascript.GetLanguage(),
			Rules: []NodeRule{
				{Kinds: []string{"function_declaration", "generator_function_declaration", "method_definition"}, Priority: priorityFunction, MaxDepth: 4, IncludeContext: true},
				{Kinds: []string{"class_declaration"}, Priority: priorityClass, MaxDepth: 2},
				{Kinds: []string{"lexical_declaration"}, Priority: priorityDecl, MaxDepth: 1},
			},
			Fallback: braceFallback,
		},
		{
			Language: types.LangTypeScript,
			Grammar:  typescript.GetLanguage(),
			Rules: []NodeRule{
				{Kinds: []string{"function_declaration", "method_definition"}, Priority: priorityFunction, MaxDepth: 4, IncludeContext: true},
				{Kinds: []string{"class_declaration", "abstract_class_declaration"}, Priority: priorityClass, MaxDepth: 2},
				{Kinds: []string{"interface_declaration", "enum_declaration", "type_alias_declaration"}, Priority: priorityType, MaxDepth: 2},
			},
			Fallback: braceFallback,
		},
		{
			Language: types.LangPython,
			Grammar:  python.GetLanguage(),
			Rules: []NodeRule{
				{Kinds: []string{"function_definition"}, Priority: priorityFunction, MaxDepth: 4, IncludeContext: true},
				{Kinds: []string{"class_definition"}, Priority: priorityClass, MaxDepth: 2},
				{Kinds: []string{"decorated_definition"}, Priority: priorityFunction, MaxDepth: 3},
			},
			Fallback: FallbackSpec{
				Strategy: StrategySection,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\s*(async\s+)?def\s+\w+`),
					regexp.MustCompile(`^\s*class\s+\w+`),
				},
				Kind:     "block",
				Priority: priorityBlock,
			},
		},
		{
			Language: types.LangRust,
			Rules:    nil,
			Fallback: FallbackSpec{
				Strategy: StrategyBrace,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\s*(pub(\([^)]*\))?\s+)?(async\s+)?(unsafe\s+)?fn\s+\w+`),
					regexp.MustCompile(`^\s*(pub(\([^)]*\))?\s+)?(struct|enum|trait|union)\s+\w+`),
					regexp.MustCompile(`^\s*impl\b`),
					regexp.MustCompile(`^\s*(pub(\([^)]*\))?\s+)?mod\s+\w+\s*\{`),
				},
				Kind:     "item",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangJava,
			Fallback: FallbackSpec{
				Strategy: StrategyBrace,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?(final\s+)?(abstract\s+)?(class|interface|enum|record)\s+\w+`),
					regexp.MustCompile(`^\s*(public|private|protected)\s+[\w<>\[\],\s]+\s+\w+\s*\(`),
				},
				Kind:     "member",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangC,
			Fallback: FallbackSpec{
				Strategy: StrategyBrace,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\w[\w\s\*]*\s+\**\w+\s*\([^;]*$`),
					regexp.MustCompile(`^\s*(typedef\s+)?(struct|union|enum)\s+\w*\s*\{`),
				},
				Kind:     "definition",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangCpp,
			Fallback: FallbackSpec{
				Strategy: StrategyBrace,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^[\w:<>~]+[\w\s\*&:<>,~]*\s+[\w:~]+\s*\([^;]*$`),
					regexp.MustCompile(`^\s*(template\s*<[^>]*>\s*)?(class|struct)\s+\w+`),
					regexp.MustCompile(`^\s*namespace\s+\w+\s*\{`),
				},
				Kind:     "definition",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangRuby,
			Fallback: FallbackSpec{
				Strategy: StrategySection,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\s*def\s+[\w.?!]+`),
					regexp.MustCompile(`^\s*(class|module)\s+\w+`),
				},
				Kind:     "definition",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangPHP,
			Fallback: FallbackSpec{
				Strategy: StrategyBrace,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?function\s+\w+`),
					regexp.MustCompile(`^\s*(abstract\s+|final\s+)?(class|interface|trait)\s+\w+`),
				},
				Kind:     "definition",
				Priority: priorityFunction,
			},
		},
		{
			Language: types.LangMarkdown,
			Fallback: FallbackSpec{
				Strategy: StrategySection,
				Anchors: []*regexp.Regexp{
					regexp.MustCompile(`^#{1,6}\s+\S`),
				},
				Kind:     "section",
				Priority: prioritySection,
			},
		},
		{
			Language: types.LangText,
			Fallback: FallbackSpec{
				Strategy: StrategyWindow,
				Kind:     "window",
				Priority: priorityBlock,
			},
		},
	}
}
