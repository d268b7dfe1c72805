// Package formatter tidies Go source returned by the conversion service
// before it is written out.
package formatter

import (
	"go/format"
	"regexp"
	"sort"
	"strings"

	"github.com/mcncl/gotyper-live/internal/errors"
)

var importRegex = regexp.MustCompile(`(?s)import\s*\((.+?)\)`)

// Formatter is responsible for formatting Go code according to standard conventions
type Formatter struct{}

// NewFormatter creates a new Formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format runs gofmt over code and groups its imports. The service may return
// a bare list of declarations with no package clause; that is accepted too.
func (f *Formatter) Format(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", nil
	}

	formatted, err := format.Source([]byte(code))
	if err != nil {
		return "", errors.NewOutputError("failed to parse Go code", err)
	}

	return f.formatImports(string(formatted)), nil
}

// FormatOrKeep formats code, returning it unchanged when it is not valid Go
func (f *Formatter) FormatOrKeep(code string) (string, bool) {
	formatted, err := f.Format(code)
	if err != nil {
		return code, false
	}
	return formatted, true
}

// formatImports orders the import block with standard library imports first,
// followed by third-party imports with a blank line in between
func (f *Formatter) formatImports(code string) string {
	importMatches := importRegex.FindStringSubmatch(code)
	if len(importMatches) < 2 {
		return code
	}

	var stdLibImports, thirdPartyImports []string
	for _, line := range strings.Split(strings.TrimSpace(importMatches[1]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		quote := strings.Index(line, `"`)
		if quote < 0 {
			stdLibImports = append(stdLibImports, line)
			continue
		}

		// Standard library paths have no dot in their first element
		importPath := strings.Trim(line[quote:], `"`)
		if first, _, _ := strings.Cut(importPath, "/"); !strings.Contains(first, ".") {
			stdLibImports = append(stdLibImports, line)
		} else {
			thirdPartyImports = append(thirdPartyImports, line)
		}
	}

	sort.Strings(stdLibImports)
	sort.Strings(thirdPartyImports)

	var b strings.Builder
	b.WriteString("import (\n")
	for _, imp := range stdLibImports {
		b.WriteString("\t" + imp + "\n")
	}
	if len(stdLibImports) > 0 && len(thirdPartyImports) > 0 {
		b.WriteString("\n")
	}
	for _, imp := range thirdPartyImports {
		b.WriteString("\t" + imp + "\n")
	}
	b.WriteString(")")

	return strings.Replace(code, importMatches[0], b.String(), 1)
}
