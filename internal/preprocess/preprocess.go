// Package preprocess implements the textual macro/import pass that runs
// before lexing: $define/$ifdef/$ifndef/$endif/$import directives and
// `#`-to-end-of-line comments are stripped, macros are substituted, and
// imported files are inlined, producing a single expanded source string.
package preprocess

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/wayuto/gosc/internal/gerr"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options configures import resolution.
type Options struct {
	BaseDir   string // Directory of the file currently being preprocessed.
	StdlibDir string // Well-known system directory searched after BaseDir.
	SourceExt string // Default source extension, e.g. "gos".
}

// macros is the fixed-point-resolved substitution table, threaded through
// nested $import calls so definitions merge back into the importer.
type macros map[string]string

// ---------------------
// ----- functions -----
// ---------------------

// Expand preprocesses src (the text of a file located in opt.BaseDir) and
// returns the fully expanded program text, each line ending in a newline.
func Expand(src string, opt Options) (string, error) {
	m := macros{}
	return expand(src, opt, m)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

func expand(src string, opt Options, m macros) (string, error) {
	var out strings.Builder
	lines := strings.Split(src, "\n")
	// A trailing newline ends the last line; it does not start another one.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	type condFrame struct{ parentSkip bool }
	var stack []condFrame
	skipping := false

	for lineNo, raw := range lines {
		line := stripLineComment(raw)
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "$") {
			directive, rest := splitDirective(trimmed)
			switch directive {
			case "$ifdef", "$ifndef":
				stack = append(stack, condFrame{parentSkip: skipping})
				if !skipping {
					name := strings.TrimSpace(rest)
					defined := m.has(name)
					self := defined
					if directive == "$ifndef" {
						self = !defined
					}
					skipping = !self
				}
				continue
			case "$endif":
				if len(stack) == 0 {
					return "", gerr.New(gerr.Preprocessor, gerr.ReasonMalformedDirective, gerr.Position{Row: lineNo + 1},
						"$endif without matching $ifdef/$ifndef")
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				skipping = top.parentSkip
				continue
			}

			if skipping {
				// Only $ifdef/$ifndef/$endif are recognized while skipping;
				// everything else (including unknown directives) is dropped.
				continue
			}

			switch directive {
			case "$define":
				name, value, err := splitDefine(rest, lineNo+1)
				if err != nil {
					return "", err
				}
				m[name] = resolveMacro(value, m)
			case "$import":
				path, err := splitImport(rest, lineNo+1)
				if err != nil {
					return "", err
				}
				resolved, err := resolveImport(path, opt)
				if err != nil {
					return "", gerr.Wrap(gerr.New(gerr.Preprocessor, gerr.ReasonImportNotFound, gerr.Position{Row: lineNo + 1},
						"could not resolve import %q", path), "while importing %q", path)
				}
				body, err := os.ReadFile(resolved)
				if err != nil {
					return "", gerr.Wrap(err, "while reading import %q", resolved)
				}
				childOpt := opt
				childOpt.BaseDir = filepath.Dir(resolved)
				expanded, err := expand(string(body), childOpt, m)
				if err != nil {
					return "", gerr.Wrap(err, "while importing %q", path)
				}
				out.WriteString(expanded)
			default:
				return "", gerr.New(gerr.Preprocessor, gerr.ReasonMalformedDirective, gerr.Position{Row: lineNo + 1},
					"unknown directive %q", directive)
			}
			continue
		}

		if skipping {
			continue
		}
		out.WriteString(substitute(line, m))
		out.WriteString("\n")
	}

	if len(stack) != 0 {
		return "", gerr.New(gerr.Preprocessor, gerr.ReasonUnclosedCondition, gerr.Position{},
			"%d unclosed $ifdef/$ifndef at end of input", len(stack))
	}
	return out.String(), nil
}

func (m macros) has(name string) bool {
	_, ok := m[name]
	return ok
}

// stripLineComment removes a `#`-to-end-of-line comment, respecting string
// and character literal boundaries so a '#' inside a string is not treated
// as a comment start.
func stripLineComment(line string) string {
	inStr := rune(0)
	for i, r := range line {
		if inStr != 0 {
			if r == inStr {
				inStr = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			inStr = r
		case '#':
			return line[:i]
		}
	}
	return line
}

// splitDirective splits a trimmed directive line into its keyword and the
// remainder of the line.
func splitDirective(trimmed string) (string, string) {
	fields := strings.SplitN(trimmed, " ", 2)
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], fields[1]
}

func splitDefine(rest string, row int) (name, value string, err error) {
	rest = strings.TrimSpace(rest)
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", gerr.New(gerr.Preprocessor, gerr.ReasonMalformedDirective, gerr.Position{Row: row}, "$define requires a name")
	}
	name = parts[0]
	if len(parts) == 2 {
		value = strings.TrimSpace(parts[1])
	}
	return name, value, nil
}

func splitImport(rest string, row int) (string, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", gerr.New(gerr.Preprocessor, gerr.ReasonMalformedDirective, gerr.Position{Row: row},
			"$import expects a quoted file name, got %q", rest)
	}
	return rest[1 : len(rest)-1], nil
}

// resolveMacro substitutes any $NAME references inside value using the
// macros known so far, fixed-pointing at definition time.
func resolveMacro(value string, m macros) string {
	for {
		next := substituteDollar(value, m)
		if next == value {
			return value
		}
		value = next
	}
}

// substituteDollar replaces explicit $NAME references with their macro value.
func substituteDollar(s string, m macros) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' {
			loc := identRe.FindString(s[i+1:])
			if loc != "" {
				if v, ok := m[loc]; ok {
					out.WriteString(v)
					i += 1 + len(loc)
					continue
				}
			}
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

// substitute performs whole-word macro substitution (both bare NAME and
// $NAME forms) over line, leaving string/char literals untouched.
func substitute(line string, m macros) string {
	if len(m) == 0 {
		return line
	}
	var out strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		if c == '"' || c == '\'' {
			j := i + 1
			for j < len(line) && line[j] != c {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				j++
			}
			if j < len(line) {
				j++
			}
			out.WriteString(line[i:j])
			i = j
			continue
		}
		if c == '$' {
			word := identRe.FindString(line[i+1:])
			if word != "" {
				if v, ok := m[word]; ok {
					out.WriteString(v)
					i += 1 + len(word)
					continue
				}
			}
			out.WriteByte(c)
			i++
			continue
		}
		if isIdentStart(rune(c)) {
			word := identRe.FindString(line[i:])
			if v, ok := m[word]; ok {
				out.WriteString(v)
			} else {
				out.WriteString(word)
			}
			i += len(word)
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// resolveImport tries, in order: <base>/FILE, <base>/FILE.<ext>,
// <stdlib>/FILE, <stdlib>/FILE.<ext>.
func resolveImport(file string, opt Options) (string, error) {
	candidates := []string{
		filepath.Join(opt.BaseDir, file),
		filepath.Join(opt.BaseDir, file+"."+opt.SourceExt),
		filepath.Join(opt.StdlibDir, file),
		filepath.Join(opt.StdlibDir, file+"."+opt.SourceExt),
	}
	found, ok := lo.Find(candidates, func(c string) bool {
		info, err := os.Stat(c)
		return err == nil && !info.IsDir()
	})
	if !ok {
		return "", gerr.New(gerr.Preprocessor, gerr.ReasonImportNotFound, gerr.Position{}, "no candidate path exists for %q", file)
	}
	return found, nil
}
