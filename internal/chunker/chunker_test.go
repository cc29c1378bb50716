package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/pkg/types"
)

const goSample = `package sample

import "fmt"

// Greet says hello.
func Greet(name string) string {
	if name == "" {
		name = "world"
	}
	return fmt.Sprintf("hello, %s", name)
}

type Greeter struct {
	prefix string
}

func (g *Greeter) Greet(name string) string {
	return g.prefix + name
}
`

const pySample = `import os


def read_config(path):
    with open(path) as f:
        return f.read()


class Loader:
    def __init__(self, root):
        self.root = root

    def load(self, name):
        return read_config(os.path.join(self.root, name))
`

const rustSample = `use std::io;

pub fn parse_header(buf: &[u8]) -> io::Result<u32> {
    if buf.len() < 4 {
        return Err(io::Error::new(io::ErrorKind::UnexpectedEof, "short"));
    }
    Ok(u32::from_le_bytes([buf[0], buf[1], buf[2], buf[3]]))
}

pub struct Frame {
    pub len: u32,
    pub kind: u8,
}
`

func TestChunkGoFunctions(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(context.Background(), "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var kinds []string
	for _, ch := range chunks {
		kinds = append(kinds, ch.NodeKind())
		assert.Equal(t, "sample.go", ch.FilePath)
		assert.NoError(t, ch.Validate())
	}
	assert.Contains(t, kinds, "function_declaration")
	assert.Contains(t, kinds, "method_declaration")
}

func TestChunkDeterministic(t *testing.T) {
	c := New()
	ctx := context.Background()

	first, err := c.Chunk(ctx, "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)
	second, err := c.Chunk(ctx, "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].StartLine, second[i].StartLine)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestChunkOrderedByStartLine(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(context.Background(), "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i-1].StartLine, chunks[i].StartLine)
	}
}

func TestChunkEmptyFile(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(context.Background(), "empty.go", nil, types.LangGo)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(context.Background(), "blank.go", []byte("  \n\n\t\n"), types.LangGo)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkBelowMinimumDropped(t *testing.T) {
	c := New()
	// Shorter than DefaultMinBytes once trimmed.
	src := "package p\n\nfunc a() {}\n"
	chunks, err := c.Chunk(context.Background(), "tiny.go", []byte(src), types.LangGo)
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, len(ch.Content), DefaultMinBytes)
		assert.GreaterOrEqual(t, ch.LineCount(), DefaultMinLines)
	}
}

func TestChunkRuleLevelFloorsOverrideDefaults(t *testing.T) {
	base := New().SpecFor(types.LangGo)
	require.NotNil(t, base)
	ctx := context.Background()

	// One-line function, below both package defaults once trimmed.
	src := "package p\n\nfunc a() { tick() }\n"

	relaxed := &Chunker{specs: map[types.Language]*LanguageSpec{
		types.LangGo: {
			Language: types.LangGo,
			Grammar:  base.Grammar,
			Rules: []NodeRule{{
				Kinds:    []string{"function_declaration"},
				MinBytes: 1,
				MinLines: 1,
			}},
			Fallback: base.Fallback,
		},
	}}
	chunks, err := relaxed.Chunk(ctx, "tiny.go", []byte(src), types.LangGo)
	require.NoError(t, err)
	require.NotEmpty(t, chunks, "a relaxed rule keeps chunks the defaults would drop")
	assert.Equal(t, "function_declaration", chunks[0].NodeKind())

	strict := &Chunker{specs: map[types.Language]*LanguageSpec{
		types.LangGo: {
			Language: types.LangGo,
			Grammar:  base.Grammar,
			Rules: []NodeRule{{
				Kinds:    []string{"function_declaration", "method_declaration"},
				MinBytes: 4096,
				MinLines: 50,
			}},
			Fallback: base.Fallback,
		},
	}}
	chunks, err = strict.Chunk(ctx, "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)
	assert.Empty(t, chunks, "a strict rule drops chunks the defaults would keep")
}

func TestChunkPython(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(context.Background(), "loader.py", []byte(pySample), types.LangPython)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var kinds []string
	for _, ch := range chunks {
		kinds = append(kinds, ch.NodeKind())
	}
	assert.Contains(t, kinds, "function_definition")
	assert.Contains(t, kinds, "class_definition")
}

func TestChunkRustFallback(t *testing.T) {
	// No bundled Rust grammar: the brace fallback applies.
	c := New()
	chunks, err := c.Chunk(context.Background(), "frame.rs", []byte(rustSample), types.LangRust)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var found bool
	for _, ch := range chunks {
		if strings.Contains(ch.Content, "parse_header") {
			found = true
			assert.Equal(t, "item", ch.NodeKind())
		}
	}
	assert.True(t, found, "fn parse_header should produce a chunk")
}

func TestChunkMarkdownSections(t *testing.T) {
	src := "# Title\n\nintro text here, long enough to keep\n\n## Usage\n\nrun the binary with a config file\n\n## Notes\n\nnothing else to say about this\n"
	c := New()
	chunks, err := c.Chunk(context.Background(), "README.md", []byte(src), types.LangMarkdown)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Equal(t, "section", chunks[0].NodeKind())
}

func TestChunkLineRanges(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(context.Background(), "sample.go", []byte(goSample), types.LangGo)
	require.NoError(t, err)

	lines := strings.Split(goSample, "\n")
	for _, ch := range chunks {
		require.GreaterOrEqual(t, ch.EndLine, ch.StartLine)
		require.Less(t, ch.EndLine, len(lines))
		// Content is the trimmed join of the covered lines.
		want := strings.TrimSpace(strings.Join(lines[ch.StartLine:ch.EndLine+1], "\n"))
		assert.Equal(t, want, ch.Content)
	}
}

func TestChunkCapByPriority(t *testing.T) {
	// Build a file with more blocks than the cap; function chunks must
	// survive over plain declarations.
	var b strings.Builder
	b.WriteString("package big\n\n")
	for i := 0; i < DefaultMaxChunks+20; i++ {
		b.WriteString("func funcNumber")
		b.WriteString(strings.Repeat("x", 1+i%3))
		b.WriteString("() {\n\t_ = \"some body content to pass the size floor\"\n}\n\n")
	}
	c := New()
	chunks, err := c.Chunk(context.Background(), "big.go", []byte(b.String()), types.LangGo)
	require.NoError(t, err)
	assert.Len(t, chunks, DefaultMaxChunks)
}

func TestChunkParseErrorFallsBack(t *testing.T) {
	// Not valid Go at all, but the fallback still finds brace blocks.
	src := "func broken(((( {\n\tcontent that is long enough to keep\n}\n"
	c := New()
	chunks, err := c.Chunk(context.Background(), "broken.go", []byte(src), types.LangGo)
	require.NoError(t, err)
	// Either the grammar tolerated it or the fallback ran; both are
	// acceptable, neither may error.
	for _, ch := range chunks {
		assert.NoError(t, ch.Validate())
	}
}

func TestSpecForAndLanguages(t *testing.T) {
	c := New()
	require.NotNil(t, c.SpecFor(types.LangGo))
	require.Nil(t, c.SpecFor(types.Language("cobol")))
	assert.NotEmpty(t, c.Languages())
}
