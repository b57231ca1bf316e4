// Package codegen renders a vocabulary tree as Go constants.
package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"mvdan.cc/gofumpt/format"

	"github.com/agentic-research/termtree/internal/taxonomy"
)

// ErrPackageName is returned for a package name that is not a Go identifier.
var ErrPackageName = errors.New("invalid package name")

// Header marks generated files so linters and reviewers skip them.
const Header = "// Code generated by termtree gen; DO NOT EDIT."

// GenerateGo renders one string constant per term of tree, holding the term
// id. Constants follow tree order; the comment on each shows its path from
// the vocabulary root. A term placed under several parents is declared at
// its first placement only. The result is gofumpt-formatted.
func GenerateGo(pkg, vocabulary string, tree *taxonomy.Tree) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("%w: %q", ErrPackageName, pkg)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n", Header)
	fmt.Fprintf(&buf, "// Package %s holds the term ids of vocabulary %q.\n", pkg, vocabulary)
	fmt.Fprintf(&buf, "package %s\n\n", pkg)

	prefix := Identifier(vocabulary)
	if tree.Len() > 0 {
		fmt.Fprintf(&buf, "// Terms of %q in tree order.\nconst (\n", vocabulary)
		declared := make(map[string]bool)
		used := make(map[string]bool)
		var path []string
		err := tree.Walk(func(n, _ *taxonomy.TermNode, depth int) error {
			path = append(path[:depth], displayName(n.Term))
			if declared[n.ID] {
				return nil
			}
			declared[n.ID] = true
			name := uniqueName(used, prefix+Identifier(n.Name), n.ID)
			fmt.Fprintf(&buf, "\t%s = %s // %s\n", name, strconv.Quote(n.ID), comment(path))
			return nil
		})
		if err != nil {
			return nil, err
		}
		buf.WriteString(")\n")
	}

	out, err := format.Source(buf.Bytes(), format.Options{})
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return out, nil
}

// Identifier turns s into an exported CamelCase Go identifier. Runs of
// characters that cannot appear in an identifier split words.
func Identifier(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	id := b.String()
	if id == "" {
		return "Term"
	}
	if first := []rune(id)[0]; !unicode.IsUpper(first) {
		return "Term" + id
	}
	return id
}

func uniqueName(used map[string]bool, base, id string) string {
	name := base
	if used[name] {
		name = base + "_" + strings.TrimPrefix(Identifier(id), "Term")
	}
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	used[name] = true
	return name
}

func displayName(t taxonomy.Term) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// comment keeps the path on one line.
func comment(path []string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.Join(path, " > "))
}
