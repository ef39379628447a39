package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandDefine(t *testing.T) {
	src := "$define N 10\nlet x: int = N\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, "let x: int = 10\n", out)
}

func TestExpandDollarReference(t *testing.T) {
	src := "$define A 1\n$define B $A\nlet x: int = B\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, "let x: int = 1\n", out)
}

func TestExpandIfdef(t *testing.T) {
	src := "$define FOO\n$ifdef FOO\nlet x: int = 1\n$endif\n$ifndef FOO\nlet y: int = 2\n$endif\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, "let x: int = 1\n", out)
}

func TestExpandUnclosedCondition(t *testing.T) {
	src := "$ifdef FOO\nlet x: int = 1\n"
	_, err := Expand(src, Options{SourceExt: "gos"})
	assert.Error(t, err)
}

func TestExpandStripsComments(t *testing.T) {
	src := "let x: int = 1 # a trailing comment\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, "let x: int = 1 \n", out)
}

func TestExpandCommentInsideStringIsKept(t *testing.T) {
	src := "let s: str = \"has # inside\"\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestExpandAlreadyExpandedIsIdempotent(t *testing.T) {
	src := "let x: int = 9\nfun f(): int return x\n"
	out, err := Expand(src, Options{SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestExpandImport(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "consts.gos"), []byte("$define N 42\n"), 0o644)
	require.NoError(t, err)

	src := "$import \"consts\"\nlet x: int = N\n"
	out, err := Expand(src, Options{BaseDir: dir, SourceExt: "gos"})
	require.NoError(t, err)
	assert.Equal(t, "let x: int = 42\n", out)
}

func TestExpandImportNotFound(t *testing.T) {
	src := "$import \"nope\"\n"
	_, err := Expand(src, Options{BaseDir: t.TempDir(), SourceExt: "gos"})
	assert.Error(t, err)
}
