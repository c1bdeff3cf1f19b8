package predicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUntranslatable marks a predicate the wire grammar cannot express.
// It is not a scan failure: callers drop the predicate from the pushdown
// hint and rely on local re-filtering for correctness.
var ErrUntranslatable = errors.New("predicate not expressible in wire grammar")

var knownValueTypes = map[string]bool{
	TypeBool:      true,
	TypeInt:       true,
	TypeLong:      true,
	TypeFloat:     true,
	TypeDouble:    true,
	TypeString:    true,
	TypeDate:      true,
	TypeTimestamp: true,
}

// wireNode is the serialized form of one grammar node. Value is a pointer so
// empty-string literals survive omitempty.
type wireNode struct {
	Op        string      `json:"op"`
	Name      string      `json:"name,omitempty"`
	Value     *string     `json:"value,omitempty"`
	ValueType string      `json:"valueType,omitempty"`
	Children  []*wireNode `json:"children,omitempty"`
}

// Translator renders predicate trees into the jsonPredicateHints payload.
//
// Two generation modes: first-generation servers accept hints over partition
// columns only, so data predicates are ignored. Second-generation servers
// accept both; when both sides are present the two trees are combined under
// a synthetic top-level "and".
type Translator struct {
	hintsEnabled bool
	v2Enabled    bool
	logger       *slog.Logger
}

// NewTranslator builds a Translator honoring the two feature flags.
// When hintsEnabled is false, Hints never produces output regardless of the
// v2 flag.
func NewTranslator(hintsEnabled, v2Enabled bool, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{hintsEnabled: hintsEnabled, v2Enabled: v2Enabled, logger: logger}
}

// Hints renders the partition and data predicate lists into a single JSON
// predicate string. The second return is false when nothing should be sent:
// hints disabled, no predicates, or every predicate untranslatable.
//
// Each list element is converted independently; an element the grammar
// cannot express is dropped (debug-logged) without affecting its siblings.
// Surviving siblings are conjoined under "and".
func (t *Translator) Hints(partition, data []*Node) (string, bool) {
	if !t.hintsEnabled {
		return "", false
	}
	pj := t.convertList(partition)
	var dj *wireNode
	if t.v2Enabled {
		dj = t.convertList(data)
	}

	var root *wireNode
	switch {
	case pj == nil && dj == nil:
		return "", false
	case dj == nil:
		root = pj
	case pj == nil:
		root = dj
	default:
		root = &wireNode{Op: OpAnd, Children: []*wireNode{pj, dj}}
	}

	raw, err := json.Marshal(root)
	if err != nil {
		t.logger.Debug("dropping predicate hint", "error", err)
		return "", false
	}
	return string(raw), true
}

// convertList converts each predicate independently, drops untranslatable
// ones, and conjoins the survivors. Returns nil when nothing survives.
func (t *Translator) convertList(nodes []*Node) *wireNode {
	converted := make([]*wireNode, 0, len(nodes))
	for _, n := range nodes {
		w, err := convert(n)
		if err != nil {
			t.logger.Debug("skipping untranslatable predicate",
				"predicate", n.Canonical(), "error", err)
			continue
		}
		converted = append(converted, w)
	}
	switch len(converted) {
	case 0:
		return nil
	case 1:
		return converted[0]
	default:
		return &wireNode{Op: OpAnd, Children: converted}
	}
}

// convert maps one tree to its wire form. Any node the grammar does not
// recognize fails the whole subtree: a partially translated OR or NOT would
// change meaning, so the conversion is all-or-nothing per tree.
func convert(n *Node) (*wireNode, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node: %w", ErrUntranslatable)
	}
	switch n.Op {
	case OpColumn:
		if n.Name == "" {
			return nil, fmt.Errorf("column without a name: %w", ErrUntranslatable)
		}
		if !knownValueTypes[n.ValueType] {
			return nil, fmt.Errorf("column %s has unknown value type %q: %w", n.Name, n.ValueType, ErrUntranslatable)
		}
		return &wireNode{Op: OpColumn, Name: n.Name, ValueType: n.ValueType}, nil
	case OpLiteral:
		if !knownValueTypes[n.ValueType] {
			return nil, fmt.Errorf("literal %q has unknown value type %q: %w", n.Value, n.ValueType, ErrUntranslatable)
		}
		v := n.Value
		return &wireNode{Op: OpLiteral, Value: &v, ValueType: n.ValueType}, nil
	case OpIsNull, OpNot:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("%s expects one operand, got %d: %w", n.Op, len(n.Children), ErrUntranslatable)
		}
	case OpEqual, OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		if len(n.Children) != 2 {
			return nil, fmt.Errorf("%s expects two operands, got %d: %w", n.Op, len(n.Children), ErrUntranslatable)
		}
	case OpAnd, OpOr:
		if len(n.Children) < 2 {
			return nil, fmt.Errorf("%s expects at least two operands, got %d: %w", n.Op, len(n.Children), ErrUntranslatable)
		}
	case OpIn:
		if len(n.Children) < 2 {
			return nil, fmt.Errorf("in expects a column and at least one value: %w", ErrUntranslatable)
		}
	default:
		return nil, fmt.Errorf("unknown operator %q: %w", n.Op, ErrUntranslatable)
	}

	children := make([]*wireNode, 0, len(n.Children))
	for _, c := range n.Children {
		w, err := convert(c)
		if err != nil {
			return nil, err
		}
		children = append(children, w)
	}
	return &wireNode{Op: n.Op, Children: children}, nil
}
