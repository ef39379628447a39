// Package compiler orchestrates the full gosc pipeline — preprocess, parse,
// IR generation and code generation — across one or more source files, the
// way the teacher's main.go's run function sequences frontend.Parse ->
// ir.GenerateSymTab -> ir.ValidateTree -> backend.GenerateAssembler, one
// stage at a time with an early return on the first failing stage.
package compiler

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/codegen"
	"github.com/wayuto/gosc/internal/config"
	"github.com/wayuto/gosc/internal/ir"
	"github.com/wayuto/gosc/internal/parser"
	"github.com/wayuto/gosc/internal/preprocess"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result is everything a caller might want out of a successful compile:
// the merged syntax tree, the generated IR, and (unless preprocessing was
// the only requested stage) the assembly text.
type Result struct {
	ExpandedSources []string // One expanded source per input file, source order. Populated even with PreprocessOnly.
	AST             *ast.Expr
	Program         *ir.Program
	Assembly        string
}

// ---------------------
// ----- functions -----
// ---------------------

// Compile runs every source in opt.Sources through preprocessing and
// parsing, merges their top-level declarations into one translation unit
// (spec.md §6's "one or more" source files), then lowers that unit to IR
// and to assembly. With opt.PreprocessOnly it stops after preprocessing and
// returns only ExpandedSources. Each file is parsed by its own parser, so a
// call must name a function declared earlier in the same file (or an
// extern declared there).
func Compile(opt config.Options) (*Result, error) {
	if len(opt.Sources) == 0 {
		return nil, errors.New("no source files given")
	}

	res := &Result{}
	var allStmts []*ast.Expr

	for _, path := range opt.Sources {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}

		expanded, err := preprocess.Expand(string(raw), preprocess.Options{
			BaseDir:   filepath.Dir(path),
			StdlibDir: opt.StdlibDir,
			SourceExt: opt.SourceExt,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "preprocessing %s", path)
		}
		res.ExpandedSources = append(res.ExpandedSources, expanded)

		if opt.PreprocessOnly {
			continue
		}

		p, err := parser.New(expanded)
		if err != nil {
			return nil, errors.Wrapf(err, "initializing parser for %s", path)
		}
		fileAST, err := p.Parse()
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		allStmts = append(allStmts, fileAST.Stmts...)
	}

	if opt.PreprocessOnly {
		return res, nil
	}

	res.AST = &ast.Expr{Kind: ast.Block, Stmts: allStmts}

	prog, err := ir.Generate(res.AST)
	if err != nil {
		return nil, errors.Wrap(err, "generating IR")
	}
	res.Program = prog

	asm, err := codegen.Generate(prog)
	if err != nil {
		return nil, errors.Wrap(err, "generating assembly")
	}
	res.Assembly = asm
	return res, nil
}
