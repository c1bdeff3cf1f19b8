// Package predicate models filter expressions as a small operator tree and
// renders them into the JSON predicate grammar the sharing protocol accepts.
//
// The tree is deliberately minimal: engine integrations lower their native
// expression types into these nodes before handing them to the client, so
// nothing here depends on any particular query engine.
package predicate

import (
	"fmt"
	"strings"
)

// Value type tags understood by the wire grammar.
const (
	TypeBool      = "bool"
	TypeInt       = "int"
	TypeLong      = "long"
	TypeFloat     = "float"
	TypeDouble    = "double"
	TypeString    = "string"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
)

// Operator tags. Column and literal are leaf "operators" in the wire
// grammar; everything else carries children.
const (
	OpColumn             = "column"
	OpLiteral            = "literal"
	OpEqual              = "equal"
	OpLessThan           = "lessThan"
	OpLessThanOrEqual    = "lessThanOrEqual"
	OpGreaterThan        = "greaterThan"
	OpGreaterThanOrEqual = "greaterThanOrEqual"
	OpAnd                = "and"
	OpOr                 = "or"
	OpNot                = "not"
	OpIsNull             = "isNull"
	OpIn                 = "in"
)

// Node is one vertex of a filter expression tree.
type Node struct {
	// Op is one of the operator tags above.
	Op string
	// Name is the column name, for column nodes.
	Name string
	// Value is the literal value rendered as a string, for literal nodes.
	Value string
	// ValueType tags column and literal nodes with a wire value type.
	ValueType string
	// Children holds the operands in left-to-right order.
	Children []*Node
}

// Column builds a column reference leaf.
func Column(name, valueType string) *Node {
	return &Node{Op: OpColumn, Name: name, ValueType: valueType}
}

// Literal builds a literal leaf. The value is its string rendering; dates
// use ISO-8601 and timestamps the provider's accepted format.
func Literal(value, valueType string) *Node {
	return &Node{Op: OpLiteral, Value: value, ValueType: valueType}
}

// Equal builds an equality comparison.
func Equal(left, right *Node) *Node {
	return &Node{Op: OpEqual, Children: []*Node{left, right}}
}

// LessThan builds a strict less-than comparison.
func LessThan(left, right *Node) *Node {
	return &Node{Op: OpLessThan, Children: []*Node{left, right}}
}

// LessThanOrEqual builds a less-than-or-equal comparison.
func LessThanOrEqual(left, right *Node) *Node {
	return &Node{Op: OpLessThanOrEqual, Children: []*Node{left, right}}
}

// GreaterThan builds a strict greater-than comparison.
func GreaterThan(left, right *Node) *Node {
	return &Node{Op: OpGreaterThan, Children: []*Node{left, right}}
}

// GreaterThanOrEqual builds a greater-than-or-equal comparison.
func GreaterThanOrEqual(left, right *Node) *Node {
	return &Node{Op: OpGreaterThanOrEqual, Children: []*Node{left, right}}
}

// And conjoins two or more predicates.
func And(children ...*Node) *Node {
	return &Node{Op: OpAnd, Children: children}
}

// Or disjoins two or more predicates.
func Or(children ...*Node) *Node {
	return &Node{Op: OpOr, Children: children}
}

// Not negates a predicate.
func Not(child *Node) *Node {
	return &Node{Op: OpNot, Children: []*Node{child}}
}

// IsNull tests a column for null.
func IsNull(column *Node) *Node {
	return &Node{Op: OpIsNull, Children: []*Node{column}}
}

// In tests column membership in a literal set.
func In(column *Node, values ...*Node) *Node {
	return &Node{Op: OpIn, Children: append([]*Node{column}, values...)}
}

// Canonical returns a deterministic rendering of the tree used for
// fingerprinting. It is structural: independent of how the tree was built,
// sensitive to operator, operand order, and literal values. The one
// normalization applied is that equality comparisons render column-first,
// so equal(lit, col) and equal(col, lit) fingerprint identically.
func (n *Node) Canonical() string {
	if n == nil {
		return ""
	}
	switch n.Op {
	case OpColumn:
		return fmt.Sprintf("column(%q %s)", n.Name, n.ValueType)
	case OpLiteral:
		return fmt.Sprintf("literal(%q %s)", n.Value, n.ValueType)
	}
	children := n.Children
	if n.Op == OpEqual && len(children) == 2 &&
		children[0].Op == OpLiteral && children[1].Op == OpColumn {
		children = []*Node{children[1], children[0]}
	}
	parts := make([]string, 0, len(children))
	for _, c := range children {
		parts = append(parts, c.Canonical())
	}
	return n.Op + "(" + strings.Join(parts, ",") + ")"
}

// String implements fmt.Stringer for logs and test failure output.
func (n *Node) String() string { return n.Canonical() }
