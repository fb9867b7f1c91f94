// Package vdom defines the immutable node tree that components produce on
// every render, along with instance paths and the prop-value comparison
// rules used by the differ.
//
// A Node describes either a primitive widget (identified by a tag string) or
// a component occurrence (identified by the component function). Nodes are
// immutable by contract: a render builds a fresh tree and never mutates a
// node that has been handed to the engine. The engine relies on this for its
// identity-based diff short cuts.
package vdom

import (
	"reflect"
	"runtime"
	"strings"
)

// Comp is a component function. It is invoked once per render pass for each
// occurrence, with the context of that occurrence and the props declared on
// its node, and returns the node tree describing its UI.
//
// A Comp must use its hook slots in the same order (or with the same
// explicit keys) on every render; see the hook package.
type Comp func(c Context, props Props) Node

// TextTag is the tag of text leaf nodes, which carry their content in the
// "text" prop.
const TextTag = "text"

// Node is one point in the declarative tree.
type Node struct {
	// Tag is the primitive widget kind. It is empty iff Comp is non-nil.
	Tag string
	// Comp is the component function. It is nil for primitive nodes.
	Comp Comp
	// Props maps prop names to values. See EqualValue for the comparison
	// rules applied to values.
	Props Props
	// Children holds the ordered child nodes.
	Children []Node
	// Key is an optional identity token, unique among siblings. An empty key
	// means positional identity.
	Key string
}

// E builds a primitive node.
func E(tag string, props Props, children ...Node) Node {
	return Node{Tag: tag, Props: props, Children: children}
}

// C builds a component node.
func C(comp Comp, props Props, children ...Node) Node {
	return Node{Comp: comp, Props: props, Children: children}
}

// Text builds a text leaf node.
func Text(s string) Node {
	return Node{Tag: TextTag, Props: Props{"text": s}}
}

// WithKey returns a copy of the node with the given key.
func (n Node) WithKey(key string) Node {
	n.Key = key
	return n
}

// IsZero reports whether the node is the zero value, which represents the
// absence of a node.
func (n Node) IsZero() bool {
	return n.Tag == "" && n.Comp == nil && n.Props == nil &&
		n.Children == nil && n.Key == ""
}

// Kind returns the name of the node's kind: the tag for primitive nodes and
// the component function's name for component nodes.
func (n Node) Kind() string {
	if n.Comp == nil {
		return n.Tag
	}
	return compName(n.Comp)
}

// SameKind reports whether two nodes have the same kind. Primitive kinds
// compare by tag; component kinds compare by function identity, never by
// structure.
func SameKind(a, b Node) bool {
	if (a.Comp == nil) != (b.Comp == nil) {
		return false
	}
	if a.Comp == nil {
		return a.Tag == b.Tag
	}
	return funcPtr(a.Comp) == funcPtr(b.Comp)
}

// SameRef reports whether two nodes are observably the same value: same
// kind, same key, and sharing the identical props map and children backing
// array. Since nodes are immutable once produced, a SameRef pair is
// guaranteed to describe identical subtrees, so the differ may skip it.
func SameRef(a, b Node) bool {
	return SameKind(a, b) && a.Key == b.Key &&
		reflect.ValueOf(a.Props).Pointer() == reflect.ValueOf(b.Props).Pointer() &&
		sliceID(a.Children) == sliceID(b.Children)
}

func sliceID(ns []Node) [2]uintptr {
	if len(ns) == 0 {
		return [2]uintptr{}
	}
	return [2]uintptr{reflect.ValueOf(ns).Pointer(), uintptr(len(ns))}
}

func funcPtr(f Comp) uintptr {
	return reflect.ValueOf(f).Pointer()
}

func compName(f Comp) string {
	full := runtime.FuncForPC(funcPtr(f)).Name()
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		full = full[i+1:]
	}
	// Method values and closures get suffixes like "-fm" and ".func1"; keep
	// them, they still identify the component in paths.
	return full
}
