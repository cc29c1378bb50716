package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codectx/codectx/pkg/types"
)

// DefaultMaxFileSize is the largest file considered for indexing (1 MB).
const DefaultMaxFileSize = 1 << 20

// DefaultIgnoreGlobs excludes VCS internals, dependency trees, build
// output and our own data directory.
var DefaultIgnoreGlobs = []string{
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/.idea/**",
	"**/.vscode/**",
	"**/.codectx/**",
	"**/*.min.js",
}

// FileInfo is one indexing candidate discovered by the walker.
type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the walk root
	Size    int64
}

// WalkOptions bounds the walk. Zero values take defaults.
type WalkOptions struct {
	IgnoreGlobs []string
	MaxFileSize int64
}

// Walk enumerates indexable files under root: known-language files up
// to the size cap, ignore globs applied to slash-relative paths,
// symlinks never followed. Empty files are emitted so their hash rows
// get recorded. Results are sorted by relative path.
func Walk(root string, opts WalkOptions) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, types.Wrap(types.KindConfigInvalid, err, "resolve index root").With("path", root)
	}
	globs := opts.IgnoreGlobs
	if globs == nil {
		globs = DefaultIgnoreGlobs
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			// Match the directory against globs as a prefix: a glob
			// like **/.git/** must prune the whole subtree.
			if ignored(rel+"/", globs) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if ignored(rel, globs) {
			return nil
		}
		if types.LanguageForPath(path) == types.LangUnknown {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}
		files = append(files, FileInfo{Path: path, RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.KindTransient, err, "walk index root").With("path", absRoot)
	}
	return files, nil
}

// ignored reports whether the slash-relative path matches any glob.
// Directory paths arrive with a trailing slash; a probe file name is
// appended so `dir/**` patterns match the directory itself.
func ignored(rel string, globs []string) bool {
	probe := rel
	if strings.HasSuffix(rel, "/") {
		probe = rel + "x"
	}
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, probe); ok {
			return true
		}
	}
	return false
}
