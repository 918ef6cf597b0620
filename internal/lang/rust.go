package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Systems-ownership language variant: Rust. Kinds: function, method,
// struct, enum, trait, module, implementation-block, type-alias, constant.
// Methods inside an implementation-block are parented to it. Grounded
// directly on original_source's own Rust sources as the reference corpus
// for what impl/trait/struct/mod shapes look like.
func init() {
	Languages["rust"] = &Language{
		Name:       "rust",
		Extensions: []string{".rs"},
		sitterLang: rust.GetLanguage(),
		extract:    extractRust,
	}
}

func extractRust(root *sitter.Node, source []byte) []*Symbol {
	return walkRust(root, source)
}

func walkRust(node *sitter.Node, source []byte) []*Symbol {
	var out []*Symbol
	if node == nil {
		return out
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_item":
			out = append(out, rustFunctionSymbol(child, source, KindFunction))
		case "struct_item":
			out = append(out, rustSimpleSymbol(child, source, KindStruct, "type_identifier"))
		case "enum_item":
			out = append(out, rustSimpleSymbol(child, source, KindEnum, "type_identifier"))
		case "trait_item":
			out = append(out, rustTraitSymbol(child, source))
		case "mod_item":
			out = append(out, rustModSymbol(child, source))
		case "type_item":
			out = append(out, rustSimpleSymbol(child, source, KindTypeAlias, "type_identifier"))
		case "const_item", "static_item":
			out = append(out, rustSimpleSymbol(child, source, KindConstant, "identifier"))
		case "impl_item":
			out = append(out, rustImplSymbol(child, source))
		case "declaration_list", "source_file":
			out = append(out, walkRust(child, source)...)
		}
	}
	return out
}

func rustFunctionSymbol(node *sitter.Node, source []byte, kind Kind) *Symbol {
	name := childText(node, source, "identifier")
	if name == "" {
		return nil
	}
	sig := name
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig += NormalizeSignature(NodeText(params, source))
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + NodeText(ret, source)
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: sig,
		Doc:       precedingComment(node, source, "line_comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
		Refs:      rustRefs(node, source),
	}
}

func rustSimpleSymbol(node *sitter.Node, source []byte, kind Kind, nameType string) *Symbol {
	name := childText(node, source, nameType)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: NormalizeSignature(NodeText(node, source)),
		Doc:       precedingComment(node, source, "line_comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
	}
}

func rustTraitSymbol(node *sitter.Node, source []byte) *Symbol {
	sym := rustSimpleSymbol(node, source, KindTrait, "type_identifier")
	if sym == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if body := node.Child(i); body.Type() == "declaration_list" {
			sym.Children = walkRust(body, source)
		}
	}
	return sym
}

func rustModSymbol(node *sitter.Node, source []byte) *Symbol {
	sym := rustSimpleSymbol(node, source, KindModule, "identifier")
	if sym == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if body := node.Child(i); body.Type() == "declaration_list" {
			sym.Children = walkRust(body, source)
		}
	}
	return sym
}

// rustImplSymbol handles `impl Trait for Type { ... }` and `impl Type { ... }`.
// Methods declared in the body are parented to the implementation-block.
func rustImplSymbol(node *sitter.Node, source []byte) *Symbol {
	var traitNode, typeNode *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "for" {
			traitNode = node.ChildByFieldName("trait")
			typeNode = node.ChildByFieldName("type")
		}
	}
	if typeNode == nil {
		typeNode = node.ChildByFieldName("type")
	}
	typeName := NodeText(typeNode, source)
	name := typeName
	var refs []Ref
	if traitNode != nil {
		traitName := NodeText(traitNode, source)
		name = traitName + " for " + typeName
		refs = append(refs, Ref{Name: traitName, Kind: RefImplement, Line: StartLine(node)})
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindImplBlock,
		Signature: NormalizeSignature("impl " + name),
		Doc:       precedingComment(node, source, "line_comment"),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
		Refs:      refs,
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			if fn := body.Child(i); fn.Type() == "function_item" {
				sym.Children = append(sym.Children, rustFunctionSymbol(fn, source, KindMethod))
			}
		}
	}
	return sym
}

func rustRefs(node *sitter.Node, source []byte) []Ref {
	var refs []Ref
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := NodeText(fn, source)
				if fn.Type() == "field_expression" {
					if field := fn.ChildByFieldName("field"); field != nil {
						name = NodeText(field, source)
					}
				}
				refs = append(refs, Ref{Name: name, Kind: RefCall, Line: StartLine(n)})
			}
		case "use_declaration":
			refs = append(refs, Ref{Name: NodeText(n, source), Kind: RefImport, Line: StartLine(n)})
		case "parameter":
			if t := n.ChildByFieldName("type"); t != nil && t.Type() == "type_identifier" {
				refs = append(refs, Ref{Name: NodeText(t, source), Kind: RefType, Line: StartLine(t)})
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
