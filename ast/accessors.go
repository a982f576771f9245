package ast

// Call accessors. A call node is ('(', callee, args); args may itself be
// a comma node chaining multiple arguments, a single expression, or nil
// for a zero-arg call.
func (n *Node) Callee() *Node { return n.Child(0) }
func (n *Node) CallArgs() []*Node {
	return flattenComma(n.Child(1))
}

// Arrow accessors. An arrow function node is ('=>', params, body); params
// is a comma node (or single ident, or nil for zero params).
func (n *Node) ArrowParams() []*Node { return flattenComma(n.Child(0)) }
func (n *Node) ArrowBody() *Node     { return n.Child(1) }

// Function accessors: ('function', name, params, body). Anonymous
// function expressions carry a nil name.
func (n *Node) FuncName() *Node     { return n.Child(0) }
func (n *Node) FuncParams() []*Node { return flattenComma(n.Child(1)) }
func (n *Node) FuncBody() *Node     { return n.Child(2) }

// If accessors: ('if', cond, then, else). else is nil when absent.
func (n *Node) IfCond() *Node { return n.Child(0) }
func (n *Node) IfThen() *Node { return n.Child(1) }
func (n *Node) IfElse() *Node { return n.Child(2) }

// For accessors: ('for', init, cond, post, body). Any clause may be nil.
func (n *Node) ForInit() *Node { return n.Child(0) }
func (n *Node) ForCond() *Node { return n.Child(1) }
func (n *Node) ForPost() *Node { return n.Child(2) }
func (n *Node) ForBody() *Node { return n.Child(3) }

// Member accessors: ('.', object, property-name-as-ident).
func (n *Node) MemberObject() *Node { return n.Child(0) }
func (n *Node) MemberProperty() string {
	if p := n.Child(1); p != nil {
		return p.Name
	}
	return ""
}

// Index accessors: ('[', object, index-expr).
func (n *Node) IndexObject() *Node { return n.Child(0) }
func (n *Node) IndexExpr() *Node   { return n.Child(1) }

// Try accessors: ('try', body, catch-param, catch-body). catch-param is
// an ident naming the caught value inside catch-body, or nil when the
// handler ignores it.
func (n *Node) TryBody() *Node    { return n.Child(0) }
func (n *Node) CatchParam() *Node { return n.Child(1) }
func (n *Node) CatchBody() *Node  { return n.Child(2) }

// String accessors: ('string', leaf) with the literal text in Name.
func (n *Node) StringValue() string { return n.Name }

// New accessors: ('new', target-ident, args). target names the
// constructor (e.g. "F64"); args is a comma node, a single expression
// (an array literal or a length), or nil.
func (n *Node) NewTarget() string {
	if t := n.Child(0); t != nil {
		return t.Name
	}
	return ""
}
func (n *Node) NewArgs() []*Node { return flattenComma(n.Child(1)) }

// ObjectField pairs an object literal's field name with its value
// expression, in declaration order.
type ObjectField struct {
	Name  string
	Value *Node
}

// Object accessors: ('object', key0, value0, key1, value1, ...). Each
// key is an ident-shaped node whose Name carries the field name.
func (n *Node) ObjectFields() []ObjectField {
	var out []ObjectField
	for i := 0; i+1 < len(n.Children); i += 2 {
		key := n.Children[i]
		if key == nil {
			continue
		}
		out = append(out, ObjectField{Name: key.Name, Value: n.Children[i+1]})
	}
	return out
}

// ObjectLiteral builds an object-literal node from ordered field pairs.
func ObjectLiteral(fields ...ObjectField) *Node {
	children := make([]*Node, 0, len(fields)*2)
	for _, f := range fields {
		children = append(children, Ident(f.Name), f.Value)
	}
	return &Node{Op: OpObject, Children: children}
}

// flattenComma expands a right- or left-nested chain of comma nodes into
// a flat left-to-right slice; a non-comma node yields a single-element
// slice, nil yields an empty one.
func flattenComma(n *Node) []*Node {
	if n == nil {
		return nil
	}
	if n.Op != OpComma {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, flattenComma(c)...)
	}
	return out
}
