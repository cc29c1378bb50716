package types

import (
	"path/filepath"
	"strings"
)

// Language identifies the programming language of a source file or chunk.
// It is the routing key for chunker strategies.
type Language string

const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
	LangCpp        Language = "cpp"
	LangC          Language = "c"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
	LangUnknown    Language = "unknown"
)

// extensionLanguages maps file extensions to languages.
var extensionLanguages = map[string]Language{
	".rs":       LangRust,
	".py":       LangPython,
	".go":       LangGo,
	".ts":       LangTypeScript,
	".tsx":      LangTypeScript,
	".js":       LangJavaScript,
	".jsx":      LangJavaScript,
	".mjs":      LangJavaScript,
	".java":     LangJava,
	".cpp":      LangCpp,
	".cc":       LangCpp,
	".cxx":      LangCpp,
	".hpp":      LangCpp,
	".c":        LangC,
	".h":        LangC,
	".rb":       LangRuby,
	".php":      LangPHP,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
	".txt":      LangText,
}

// LanguageForPath detects the language of a file from its extension.
// Unrecognized extensions map to LangUnknown.
func LanguageForPath(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return LangUnknown
}

// IsValid reports whether the language is one of the known tags.
func (l Language) IsValid() bool {
	switch l {
	case LangRust, LangPython, LangGo, LangTypeScript, LangJavaScript,
		LangJava, LangCpp, LangC, LangRuby, LangPHP,
		LangMarkdown, LangText, LangUnknown:
		return true
	default:
		return false
	}
}

// String returns the language tag.
func (l Language) String() string {
	return string(l)
}
