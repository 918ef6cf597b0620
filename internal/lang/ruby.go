package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// Dynamic object language variant: Ruby. Kinds: class, module, method,
// singleton-method, constant; inheritance as extends; include/require as
// import. Grounded on phobologic-repoguide's internal/lang/ruby.go, which
// already models singleton-method and include/require handling.
func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		sitterLang: ruby.GetLanguage(),
		extract:    extractRuby,
	}
}

func extractRuby(root *sitter.Node, source []byte) []*Symbol {
	return walkRuby(root, source)
}

func walkRuby(node *sitter.Node, source []byte) []*Symbol {
	var out []*Symbol
	if node == nil {
		return out
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "class":
			out = append(out, rubyClassSymbol(child, source))
		case "module":
			out = append(out, rubyModuleSymbol(child, source))
		case "method":
			out = append(out, rubyMethodSymbol(child, source, KindMethod))
		case "singleton_method":
			out = append(out, rubyMethodSymbol(child, source, KindSingleton))
		case "assignment":
			if sym := rubyConstantSymbol(child, source); sym != nil {
				out = append(out, sym)
			}
		case "body_statement", "program":
			out = append(out, walkRuby(child, source)...)
		}
	}
	return out
}

func rubyClassSymbol(node *sitter.Node, source []byte) *Symbol {
	name := childText(node, source, "constant", "scope_resolution")
	if name == "" {
		return nil
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindClass,
		Signature: name,
		Doc:       precedingComment(node, source, "comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
	}
	if super := node.ChildByFieldName("superclass"); super != nil {
		sym.Refs = append(sym.Refs, Ref{Name: NodeText(super, source), Kind: RefExtends, Line: StartLine(super)})
	}
	if body := node.ChildByFieldName("body"); body != nil {
		sym.Children = walkRuby(body, source)
		sym.Refs = append(sym.Refs, rubyIncludeRefs(body, source)...)
	}
	return sym
}

func rubyModuleSymbol(node *sitter.Node, source []byte) *Symbol {
	name := childText(node, source, "constant", "scope_resolution")
	if name == "" {
		return nil
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindModule,
		Signature: name,
		Doc:       precedingComment(node, source, "comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		sym.Children = walkRuby(body, source)
		sym.Refs = append(sym.Refs, rubyIncludeRefs(body, source)...)
	}
	return sym
}

func rubyMethodSymbol(node *sitter.Node, source []byte, kind Kind) *Symbol {
	name := childText(node, source, "identifier")
	if name == "" {
		return nil
	}
	sig := name
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig += NormalizeSignature(NodeText(params, source))
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: sig,
		Doc:       precedingComment(node, source, "comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
		Refs:      rubyCallRefs(node, source),
	}
}

func rubyConstantSymbol(node *sitter.Node, source []byte) *Symbol {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "constant" {
		return nil
	}
	return &Symbol{
		Name:      NodeText(left, source),
		Kind:      KindConstant,
		Signature: NormalizeSignature(NodeText(node, source)),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
	}
}

// rubyIncludeRefs scans a class/module body's direct statements for
// include/require/extend calls, treated as import references.
func rubyIncludeRefs(body *sitter.Node, source []byte) []Ref {
	var refs []Ref
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child.Type() != "call" {
			continue
		}
		method := child.ChildByFieldName("method")
		if method == nil {
			continue
		}
		name := NodeText(method, source)
		if name != "include" && name != "require" && name != "require_relative" && name != "extend" {
			continue
		}
		if args := child.ChildByFieldName("arguments"); args != nil {
			for j := 0; j < int(args.ChildCount()); j++ {
				arg := args.Child(j)
				if arg.Type() == "constant" || arg.Type() == "string" {
					refs = append(refs, Ref{Name: trimQuotes(NodeText(arg, source)), Kind: RefImport, Line: StartLine(child)})
				}
			}
		}
	}
	return refs
}

func rubyCallRefs(node *sitter.Node, source []byte) []Ref {
	var refs []Ref
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call" {
			if method := n.ChildByFieldName("method"); method != nil {
				refs = append(refs, Ref{Name: NodeText(method, source), Kind: RefCall, Line: StartLine(n)})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		walk(body)
	}
	return refs
}
