// Command gosc is the ahead-of-time compiler driver for the Gos language:
// preprocess -> lex/parse -> IR -> x86-64 NASM assembly -> (nasm, ld).
// Flag wiring follows the teacher's cobra-based ajroetker-goat/main.go
// (one root command, a Flags block, a RunE closure), generalized
// from a C-translator's target-triple flags to this compiler's stage flags.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wayuto/gosc/internal/compiler"
	"github.com/wayuto/gosc/internal/config"
	"github.com/wayuto/gosc/internal/gerr"
)

var opt = config.Default()

var command = &cobra.Command{
	Use:   "gosc [sources...]",
	Short: "gosc compiles Gos source files to a native executable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt.Sources = args
		return run(opt)
	},
}

func main() {
	command.Flags().StringVarP(&opt.Output, "output", "o", "", "output file")
	command.Flags().BoolVarP(&preprocessOnly, "preprocess-only", "E", false, "stop after preprocessing, print expanded source")
	command.Flags().BoolVarP(&opt.StopAtAssembly, "assembly-only", "S", false, "stop after emitting assembly (.s)")
	command.Flags().BoolVarP(&opt.StopAtObject, "object-only", "c", false, "stop after assembling to an object file (.o)")
	command.Flags().BoolVar(&opt.DumpAST, "dump-ast", false, "print the merged syntax tree and exit")
	command.Flags().BoolVar(&opt.DumpIR, "dump-ir", false, "print the generated IR and exit")
	command.Flags().BoolVar(&opt.NoStdlib, "nostdlib", false, "do not link the standard runtime archive")
	command.Flags().BoolVarP(&opt.Verbose, "verbose", "v", false, "print a one-line banner to stderr before compiling")

	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// preprocessOnly is bound to -E directly rather than through
// config.Options, because it maps to opt.PreprocessOnly only after the
// flag value is known (cobra needs a pointer at flag-registration time).
var preprocessOnly bool

func run(opt config.Options) error {
	opt.PreprocessOnly = preprocessOnly

	if opt.Verbose {
		fmt.Fprintf(os.Stderr, "gosc: compiling %s\n", strings.Join(opt.Sources, ", "))
	}

	res, err := compiler.Compile(opt)
	if err != nil {
		if d, ok := gerr.AsDiagnostic(err); ok {
			return fmt.Errorf("%s", d.Error())
		}
		return err
	}

	if opt.PreprocessOnly {
		for _, src := range res.ExpandedSources {
			fmt.Println(src)
		}
		return nil
	}
	if opt.DumpAST {
		fmt.Printf("%+v\n", res.AST)
	}
	if opt.DumpIR {
		dumpProgram(res.Program)
	}
	if opt.DumpAST || opt.DumpIR {
		return nil
	}

	return assembleAndLink(opt, res.Assembly)
}

// assembleAndLink writes the generated assembly to a .s file and, unless
// the caller only asked for assembly, shells out to nasm (and ld) exactly
// as spec.md §6 describes: external tool exit codes gate the next step,
// and anything written by a failed run is removed rather than left
// half-finished (spec.md §5's "nothing is partially persisted").
func assembleAndLink(opt config.Options, asm string) (err error) {
	base := opt.Output
	if base == "" {
		base = "a.out"
	}
	asmPath := withExt(base, "s")

	if writeErr := os.WriteFile(asmPath, []byte(asm), 0644); writeErr != nil {
		return fmt.Errorf("writing %s: %w", asmPath, writeErr)
	}
	if opt.StopAtAssembly {
		return nil
	}

	cleanup := []string{asmPath}
	defer func() {
		if err != nil {
			for _, f := range cleanup {
				os.Remove(f)
			}
		}
	}()

	objPath := withExt(base, "o")
	nasmCmd := exec.Command("nasm", "-f", "elf64", "-o", objPath, asmPath)
	nasmCmd.Stdout, nasmCmd.Stderr = os.Stdout, os.Stderr
	if err = nasmCmd.Run(); err != nil {
		return fmt.Errorf("nasm: %w", err)
	}
	cleanup = append(cleanup, objPath)
	if opt.StopAtObject {
		return nil
	}

	ldArgs := []string{"-o", base, objPath}
	if !opt.NoStdlib {
		ldArgs = append(ldArgs, filepath.Join(opt.StdlibDir, "lib", "libgos.a"))
	}
	ldCmd := exec.Command("ld", ldArgs...)
	ldCmd.Stdout, ldCmd.Stderr = os.Stdout, os.Stderr
	if err = ldCmd.Run(); err != nil {
		return fmt.Errorf("ld: %w", err)
	}
	return nil
}

func withExt(base, ext string) string {
	trimmed := strings.TrimSuffix(base, filepath.Ext(base))
	return trimmed + "." + ext
}
