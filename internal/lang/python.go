package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Indentation-based scripting variant: Python. Kinds: function, method,
// class; decorator names attach to the adjacent declaration as
// type-reference references.
func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		sitterLang: python.GetLanguage(),
		extract:    extractPython,
	}
}

func extractPython(root *sitter.Node, source []byte) []*Symbol {
	return walkPython(root, source, false)
}

func walkPython(node *sitter.Node, source []byte, inClass bool) []*Symbol {
	var out []*Symbol
	if node == nil {
		return out
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition":
			out = append(out, pyFunctionSymbol(child, source, inClass))
		case "class_definition":
			out = append(out, pyClassSymbol(child, source))
		case "decorated_definition":
			out = append(out, pyDecoratedSymbol(child, source, inClass)...)
		case "block":
			out = append(out, walkPython(child, source, inClass)...)
		default:
			// Module-level statements aren't walked further; only defs matter.
		}
	}
	return out
}

func pyDecoratedSymbol(node *sitter.Node, source []byte, inClass bool) []*Symbol {
	var decoratorRefs []Ref
	var inner *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "decorator":
			name := pyDecoratorName(child, source)
			if name != "" {
				decoratorRefs = append(decoratorRefs, Ref{Name: name, Kind: RefType, Line: StartLine(child)})
			}
		case "function_definition", "class_definition":
			inner = child
		}
	}
	if inner == nil {
		return nil
	}
	var sym *Symbol
	if inner.Type() == "function_definition" {
		sym = pyFunctionSymbol(inner, source, inClass)
	} else {
		sym = pyClassSymbol(inner, source)
	}
	if sym != nil {
		sym.Refs = append(sym.Refs, decoratorRefs...)
		sym.StartLine = StartLine(node)
	}
	return []*Symbol{sym}
}

func pyDecoratorName(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			return NodeText(child, source)
		case "attribute":
			if attr := child.ChildByFieldName("attribute"); attr != nil {
				return NodeText(attr, source)
			}
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				return NodeText(fn, source)
			}
		}
	}
	return ""
}

func pyFunctionSymbol(node *sitter.Node, source []byte, inClass bool) *Symbol {
	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = NodeText(nameNode, source)
	}
	kind := KindFunction
	if inClass {
		kind = KindMethod
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
		Doc:       pyDocstring(node, source),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
		Refs:      pythonRefs(node, source),
	}
}

func pyClassSymbol(node *sitter.Node, source []byte) *Symbol {
	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = NodeText(nameNode, source)
	}
	sym := &Symbol{
		Name:      name,
		Kind:      KindClass,
		Signature: name,
		Doc:       pyDocstring(node, source),
		StartLine: StartLine(node),
		EndLine:   EndLine(node),
	}
	if super := node.ChildByFieldName("superclasses"); super != nil {
		for i := 0; i < int(super.ChildCount()); i++ {
			child := super.Child(i)
			if child.Type() == "identifier" {
				sym.Refs = append(sym.Refs, Ref{Name: NodeText(child, source), Kind: RefExtends, Line: StartLine(child)})
			}
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		sym.Children = walkPython(body, source, true)
	}
	return sym
}

// pyDocstring returns the first string-expression statement of a def/class
// body, stripped of triple-quote markers, per the general extraction policy.
func pyDocstring(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	strNode := first.Child(0)
	if strNode.Type() != "string" {
		return ""
	}
	return stripDocMarkers(NodeText(strNode, source))
}

func pythonRefs(node *sitter.Node, source []byte) []Ref {
	var refs []Ref
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call":
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := NodeText(fn, source)
				if fn.Type() == "attribute" {
					if attr := fn.ChildByFieldName("attribute"); attr != nil {
						name = NodeText(attr, source)
					}
				}
				refs = append(refs, Ref{Name: name, Kind: RefCall, Line: StartLine(n)})
			}
		case "import_statement", "import_from_statement":
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() == "dotted_name" || child.Type() == "aliased_import" {
					refs = append(refs, Ref{Name: NodeText(child, source), Kind: RefImport, Line: StartLine(n)})
				}
			}
		case "typed_parameter", "typed_default_parameter":
			if t := n.ChildByFieldName("type"); t != nil {
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
