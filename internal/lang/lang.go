// Package lang implements the polymorphic Language Extractor: a small
// closed capability set (supported extensions, parse bytes into a symbol
// forest) with one variant registered per supported language. Extractors
// are pure: they never touch storage, and an unparseable subtree yields
// fewer symbols rather than an error.
package lang

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind is a closed set of symbol kinds, shared across all extractor variants.
type Kind string

const (
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindTrait       Kind = "trait"
	KindModule      Kind = "module"
	KindConstant    Kind = "constant"
	KindVariable    Kind = "variable"
	KindImplBlock   Kind = "implementation-block"
	KindTypeAlias   Kind = "type-alias"
	KindDocSection  Kind = "document-section"
	KindSingleton   Kind = "singleton-method"
)

// RefKind is a closed set of reference kinds.
type RefKind string

const (
	RefCall      RefKind = "call"
	RefImport    RefKind = "import"
	RefType      RefKind = "type-reference"
	RefExtends   RefKind = "extends"
	RefImplement RefKind = "implements"
)

// Ref is a directed edge out of a Symbol toward a named target.
type Ref struct {
	Name string
	Kind RefKind
	Line int
}

// Symbol is one node of the forest an extractor returns. Children are
// already parented; StartLine/EndLine are 1-based and inclusive.
type Symbol struct {
	Name      string
	Kind      Kind
	Signature string
	Doc       string
	StartLine int
	EndLine   int
	Children  []*Symbol
	Refs      []Ref
}

// Result is what Extract returns: the detected language tag plus the
// top-level symbol forest (already containing any nested children).
type Result struct {
	Language string
	Symbols  []*Symbol
}

// Language is one registered extractor variant.
type Language struct {
	Name       string
	Extensions []string
	sitterLang *sitter.Language
	extract    func(tree *sitter.Node, source []byte) []*Symbol
}

// SupportedExtensions returns the set of file extensions this Language handles.
func (l *Language) SupportedExtensions() []string { return l.Extensions }

// Extract parses file bytes and returns the language tag and symbol forest.
// Parse errors and unparseable subtrees never escape: a nil or partial
// tree yields whatever can be recognized, down to an empty forest.
func (l *Language) Extract(source []byte, relativePath string) Result {
	if l.sitterLang == nil {
		// Document-heading languages (markdown) are parsed without tree-sitter.
		return Result{Language: l.Name, Symbols: l.extract(nil, source)}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(l.sitterLang)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return Result{Language: l.Name, Symbols: nil}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return Result{Language: l.Name, Symbols: nil}
	}

	symbols := safeExtract(l.extract, root, source)
	return Result{Language: l.Name, Symbols: symbols}
}

// safeExtract runs an extractor's tree walk and swallows any panic raised
// by an unexpected grammar shape, returning an empty forest in that case.
// Partial parse errors are a legal result (spec: "an empty forest is a
// legal result"), never a propagated error.
func safeExtract(fn func(*sitter.Node, []byte) []*Symbol, root *sitter.Node, source []byte) (out []*Symbol) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	return fn(root, source)
}

// Languages is the extension -> Language registry, populated by each
// variant's init(). No open extension mechanism exists at runtime.
var Languages = map[string]*Language{}

var extensionIndex map[string]*Language

// ForExtension resolves a file extension (including the leading dot) to a
// registered Language, or nil if unsupported.
func ForExtension(ext string) *Language {
	if extensionIndex == nil {
		extensionIndex = make(map[string]*Language)
		for _, l := range Languages {
			for _, e := range l.Extensions {
				extensionIndex[e] = l
			}
		}
	}
	return extensionIndex[ext]
}

// NodeText returns the verbatim source slice covered by a node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace collapses runs of whitespace to a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeSignature applies the general extraction policy's signature
// normalization: whitespace runs collapsed, whitespace removed around
// ':', ',', and opening brackets.
func NormalizeSignature(s string) string {
	s = CollapseWhitespace(s)
	for _, pair := range []struct{ from, to string }{
		{" :", ":"}, {": ", ":"},
		{" ,", ","}, {", ", ","},
		{"( ", "("}, {"[ ", "["}, {"< ", "<"},
		{" (", "("}, {" [", "["}, {" <", "<"},
	} {
		s = strings.ReplaceAll(s, pair.from, pair.to)
	}
	return s
}

// StartLine returns the 1-based inclusive start line of a node.
func StartLine(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPoint().Row) + 1
}

// EndLine returns the 1-based inclusive end line of a node.
func EndLine(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.EndPoint().Row) + 1
}

// stripDocMarkers removes the comment leader markers the general
// extraction policy names, from a raw attached comment block.
func stripDocMarkers(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		for _, marker := range []string{"///", "//", "#", `"""`, "/*", "*/", "=begin", "=end", "*"} {
			t = strings.TrimPrefix(t, marker)
		}
		for _, marker := range []string{"*/", `"""`, "=end"} {
			t = strings.TrimSuffix(strings.TrimSpace(t), marker)
		}
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// precedingComment walks backward over a node's previous siblings,
// collecting an immediately adjacent run of comment nodes (no blank-line
// gap), and returns their stripped text. Free-floating comments separated
// from the declaration are not attached.
func precedingComment(node *sitter.Node, source []byte, commentType string) string {
	if node == nil || node.Parent() == nil {
		return ""
	}
	parent := node.Parent()
	var idx = -1
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i) == node {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}

	var comments []string
	lastLine := StartLine(node)
	for i := idx - 1; i >= 0; i-- {
		sib := parent.Child(i)
		if sib.Type() != commentType {
			break
		}
		if lastLine-EndLine(sib) > 1 {
			break
		}
		comments = append([]string{NodeText(sib, source)}, comments...)
		lastLine = StartLine(sib)
	}
	if len(comments) == 0 {
		return ""
	}
	return stripDocMarkers(strings.Join(comments, "\n"))
}
