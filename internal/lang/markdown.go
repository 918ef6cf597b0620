package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Document-heading language variant: Markdown. Each heading of level <= 6
// becomes a document-section symbol; its parent is the nearest enclosing
// heading of lower level. Unlike the other variants this has no
// tree-sitter grammar anywhere in the pack, so it parses with goldmark and
// walks the resulting AST instead of a *sitter.Node tree. lang.go's
// Extract method special-cases a nil sitterLang and calls extract with a
// nil root, which this function simply ignores.
func init() {
	Languages["markdown"] = &Language{
		Name:       "markdown",
		Extensions: []string{".md", ".markdown"},
		sitterLang: nil,
		extract:    extractMarkdown,
	}
}

func extractMarkdown(_ *sitter.Node, source []byte) []*Symbol {
	reader := text.NewReader(source)
	doc := goldmark.DefaultParser().Parse(reader)

	var roots []*Symbol
	var stack []*Symbol
	var levels []int // levels[i] is the heading level of stack[i]

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		title := headingText(heading, source)
		startLine, endLine := headingLines(heading, source)
		sym := &Symbol{
			Name:      title,
			Kind:      KindDocSection,
			Signature: title,
			StartLine: startLine,
			EndLine:   endLine,
		}

		for len(stack) > 0 && levels[len(levels)-1] >= heading.Level {
			stack = stack[:len(stack)-1]
			levels = levels[:len(levels)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, sym)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, sym)
		}
		stack = append(stack, sym)
		levels = append(levels, heading.Level)

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}
	return roots
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(b.String())
}

func headingLines(h *ast.Heading, source []byte) (int, int) {
	lines := h.Lines()
	if lines.Len() == 0 {
		return 0, 0
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)
	startLine := 1 + strings.Count(string(source[:first.Start]), "\n")
	endLine := 1 + strings.Count(string(source[:last.Stop]), "\n")
	return startLine, endLine
}
