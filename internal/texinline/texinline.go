// Package texinline flattens a LaTeX project into a single file by
// recursively replacing \input{...} commands with the contents of the
// referenced files.
//
// Commented-out \input commands are left untouched: everything after an
// unescaped % is a comment, and \% is a literal percent sign. Referenced
// paths are resolved relative to the file that contains the \input, and
// get a .tex extension appended when missing. On a line carrying an
// \input, any text after the closing brace is discarded.
package texinline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const inputCommand = `\input`

// Inline reads the LaTeX file at inputPath, flattens it, and writes the
// result to outputPath.
func Inline(inputPath, outputPath string) error {
	lines, err := flatten(inputPath, make(map[string]bool))
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, []byte(strings.Join(lines, "")), 0o644)
}

// Flatten returns the flattened content of the LaTeX file at path.
func Flatten(path string) (string, error) {
	lines, err := flatten(path, make(map[string]bool))
	if err != nil {
		return "", err
	}

	return strings.Join(lines, ""), nil
}

func flatten(path string, seen map[string]bool) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if seen[abs] {
		return nil, fmt.Errorf("circular \\input chain through %s", path)
	}

	seen[abs] = true
	defer delete(seen, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var out []string

	for i, line := range splitAfterLines(string(data)) {
		expanded, err := expandLine(line, filepath.Dir(path), seen)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}

		out = append(out, expanded...)
	}

	// Separate files with a newline so two fragments never glue together.
	out = append(out, "\n")

	return out, nil
}

func expandLine(line, dir string, seen map[string]bool) ([]string, error) {
	limit := commentIndex(line)
	if limit < 0 {
		limit = len(line)
	}

	start := strings.Index(line[:limit], inputCommand)
	if start < 0 {
		return []string{line}, nil
	}

	var out []string

	for start >= 0 {
		out = append(out, line[:start])

		end := strings.Index(line[start:limit], "}")
		if end < 0 {
			return nil, fmt.Errorf("missing } after %s", inputCommand)
		}

		end += start

		name := line[start+len(inputCommand)+1 : end] // skip "\input{"
		if !strings.HasSuffix(name, ".tex") {
			name += ".tex"
		}

		sub, err := flatten(filepath.Join(dir, name), seen)
		if err != nil {
			return nil, err
		}

		out = append(out, sub...)

		line = line[end+1:]
		limit -= end + 1
		start = strings.Index(line[:limit], inputCommand)
	}

	return out, nil
}

// commentIndex returns the position of the first unescaped %, or -1.
func commentIndex(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != '%' {
			continue
		}

		if i == 0 || line[i-1] != '\\' {
			return i
		}
	}

	return -1
}

func splitAfterLines(s string) []string {
	if s == "" {
		return nil
	}

	return strings.SplitAfter(strings.TrimSuffix(s, "\n"), "\n")
}
