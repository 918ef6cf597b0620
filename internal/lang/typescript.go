package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Curly-brace scripting variant: TypeScript and JavaScript. Kinds:
// function, method, class, interface, enum, type-alias, constant, variable
// (arrow-function-bound expressions produce function symbols with the
// binding name).
func init() {
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".tsx"},
		sitterLang: typescript.GetLanguage(),
		extract:    extractCurlyBrace,
	}
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		sitterLang: javascript.GetLanguage(),
		extract:    extractCurlyBrace,
	}
}

func extractCurlyBrace(root *sitter.Node, source []byte) []*Symbol {
	return walkCurlyBrace(root, source)
}

func walkCurlyBrace(node *sitter.Node, source []byte) []*Symbol {
	var out []*Symbol
	if node == nil {
		return out
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if sym := curlyBraceSymbol(child, source); sym != nil {
			out = append(out, sym)
			continue
		}
		out = append(out, walkCurlyBrace(child, source)...)
	}
	return out
}

// curlyBraceSymbol recognizes a declaration, unwrapping an export_statement
// wrapper first: `export function/class/interface/enum/type/const ...` and
// `export default ...` both carry the real declaration one level down, under
// the "declaration" or "value" field. outer (the export_statement, when
// present) is what gets passed down for doc-comment attachment and line
// range, since a leading `/** doc */` comment is a sibling of the export
// statement itself, never of the inner declaration.
func curlyBraceSymbol(node *sitter.Node, source []byte) *Symbol {
	outer := node
	decl := node
	if node.Type() == "export_statement" {
		if d := node.ChildByFieldName("declaration"); d != nil {
			decl = d
		} else if v := node.ChildByFieldName("value"); v != nil {
			decl = v
		} else {
			return nil
		}
	}
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration":
		return tsFunctionSymbol(decl, outer, source, KindFunction)
	case "class_declaration":
		return tsClassSymbol(decl, outer, source)
	case "interface_declaration":
		return tsInterfaceSymbol(decl, outer, source)
	case "enum_declaration":
		return tsSimpleSymbol(decl, outer, source, KindEnum)
	case "type_alias_declaration":
		return tsSimpleSymbol(decl, outer, source, KindTypeAlias)
	case "lexical_declaration", "variable_declaration":
		return tsVariableSymbol(decl, outer, source)
	}
	return nil
}

func tsFunctionSymbol(node, outer *sitter.Node, source []byte, kind Kind) *Symbol {
	name := childText(node, source, "identifier", "property_identifier")
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: NormalizeSignature(NodeText(outer, source)),
		Doc:       precedingComment(outer, source, "comment"),
		StartLine: StartLine(outer),
		EndLine:   EndLine(outer),
		Refs:      curlyBraceRefs(node, source),
	}
}

func tsClassSymbol(node, outer *sitter.Node, source []byte) *Symbol {
	name := childText(node, source, "type_identifier", "identifier")
	if name == "" {
		return nil
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindClass,
		Signature: name,
		Doc:       precedingComment(outer, source, "comment"),
		StartLine: StartLine(outer),
		EndLine:   EndLine(outer),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "class_heritage":
			sym.Refs = append(sym.Refs, heritageRefs(child, source)...)
		case "class_body":
			sym.Children = append(sym.Children, classBodyMembers(child, source)...)
		}
	}
	return sym
}

func classBodyMembers(body *sitter.Node, source []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child.Type() != "method_definition" {
			continue
		}
		name := childText(child, source, "property_identifier")
		if name == "" {
			continue
		}
		out = append(out, &Symbol{
			Name:      name,
			Kind:      KindMethod,
			Signature: NormalizeSignature(NodeText(child, source)),
			Doc:       precedingComment(child, source, "comment"),
			StartLine: StartLine(child),
			EndLine:   EndLine(child),
			Refs:      curlyBraceRefs(child, source),
		})
	}
	return out
}

func tsInterfaceSymbol(node, outer *sitter.Node, source []byte) *Symbol {
	name := childText(node, source, "type_identifier")
	if name == "" {
		return nil
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindInterface,
		Signature: name,
		Doc:       precedingComment(outer, source, "comment"),
		StartLine: StartLine(outer),
		EndLine:   EndLine(outer),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "extends_type_clause" {
			sym.Refs = append(sym.Refs, heritageRefs(node.Child(i), source)...)
		}
	}
	return sym
}

func tsSimpleSymbol(node, outer *sitter.Node, source []byte, kind Kind) *Symbol {
	name := childText(node, source, "identifier", "type_identifier")
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: NormalizeSignature(NodeText(outer, source)),
		Doc:       precedingComment(outer, source, "comment"),
		StartLine: StartLine(outer),
		EndLine:   EndLine(outer),
	}
}

// tsVariableSymbol handles `const`/`let`/`var` declarations. An
// arrow-function-bound value produces a function symbol under the
// binding name; otherwise it's a constant/variable symbol.
func tsVariableSymbol(node, outer *sitter.Node, source []byte) *Symbol {
	isConst := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "const" {
			isConst = true
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := childText(decl, source, "identifier")
		if name == "" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value != nil && (value.Type() == "arrow_function" || value.Type() == "function") {
			return &Symbol{
				Name:      name,
				Kind:      KindFunction,
				Signature: NormalizeSignature(name + NodeText(value, source)),
				Doc:       precedingComment(outer, source, "comment"),
				StartLine: StartLine(outer),
				EndLine:   EndLine(outer),
				Refs:      curlyBraceRefs(value, source),
			}
		}
		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		return &Symbol{
			Name:      name,
			Kind:      kind,
			Signature: NormalizeSignature(NodeText(decl, source)),
			Doc:       precedingComment(outer, source, "comment"),
			StartLine: StartLine(outer),
			EndLine:   EndLine(outer),
		}
	}
	return nil
}

func heritageRefs(node *sitter.Node, source []byte) []Ref {
	var refs []Ref
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "identifier", "type_identifier":
				kind := RefExtends
				if n.Type() == "implements_clause" {
					kind = RefImplement
				}
				refs = append(refs, Ref{Name: NodeText(child, source), Kind: kind, Line: StartLine(child)})
			default:
				walk(child)
			}
		}
	}
	walk(node)
	return refs
}

// curlyBraceRefs scans a function/method body for call expressions,
// import statements, and type annotations, per the general extraction
// policy (§4.2): calls, imports, type-references.
func curlyBraceRefs(node *sitter.Node, source []byte) []Ref {
	var refs []Ref
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				name := fn.Type()
				switch fn.Type() {
				case "identifier":
					name = NodeText(fn, source)
				case "member_expression":
					if prop := fn.ChildByFieldName("property"); prop != nil {
						name = NodeText(prop, source)
					}
				}
				refs = append(refs, Ref{Name: name, Kind: RefCall, Line: StartLine(n)})
			}
		case "import_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				refs = append(refs, Ref{Name: trimQuotes(NodeText(src, source)), Kind: RefImport, Line: StartLine(n)})
			}
		case "type_annotation":
			for i := 0; i < int(n.ChildCount()); i++ {
				if tid := n.Child(i); tid.Type() == "type_identifier" {
					refs = append(refs, Ref{Name: NodeText(tid, source), Kind: RefType, Line: StartLine(tid)})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return refs
}

func childText(node *sitter.Node, source []byte, types ...string) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		for _, t := range types {
			if child.Type() == t {
				return NodeText(child, source)
			}
		}
	}
	return ""
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
