package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wayuto/gosc/internal/config"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestCompileSingleFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.gos", "fun main(): int { return 0 }")

	opt := config.Default()
	opt.Sources = []string{src}

	res, err := Compile(opt)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NotNil(t, res.Program)
	assert.Contains(t, res.Assembly, "main:")
}

func TestCompileMergesMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.gos", "fun helper(): int { return 7 }")
	b := writeSource(t, dir, "b.gos", "fun main(): int { return helper() }")

	opt := config.Default()
	opt.Sources = []string{a, b}

	res, err := Compile(opt)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Len(t, res.Program.Functions, 2)
}

func TestCompileRejectsDuplicateFunctionAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.gos", "fun f(): int { return 1 }")
	b := writeSource(t, dir, "b.gos", "fun f(): int { return 2 }")

	opt := config.Default()
	opt.Sources = []string{a, b}

	_, err := Compile(opt)
	assert.Error(t, err)
}

func TestCompilePreprocessOnlyStopsBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.gos", "$define GREETING 1\nfun main(): int { return $GREETING }")

	opt := config.Default()
	opt.Sources = []string{src}
	opt.PreprocessOnly = true

	res, err := Compile(opt)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Nil(t, res.Program)
	if assert.Len(t, res.ExpandedSources, 1) {
		assert.Contains(t, res.ExpandedSources[0], "return 1")
	}
}

func TestCompileMissingSourceIsAnError(t *testing.T) {
	opt := config.Default()
	opt.Sources = []string{"/nonexistent/path/does-not-exist.gos"}
	_, err := Compile(opt)
	assert.Error(t, err)
}
