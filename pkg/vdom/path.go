package vdom

import (
	"fmt"
	"strings"
)

// Seg is one segment of an instance path: a (kind, key-or-index) pair
// identifying one child among its siblings.
type Seg struct {
	// Kind is the tag or component name of the occurrence.
	Kind string
	// Key is the sibling key; empty for positional identity.
	Key string
	// Index is the position among siblings. It is informational when Key is
	// set: the canonical form of a keyed segment uses only the key, so a
	// keyed child keeps its path when it moves.
	Index int
}

func (s Seg) String() string {
	if s.Key != "" {
		return s.Kind + "#" + s.Key
	}
	return fmt.Sprintf("%s[%d]", s.Kind, s.Index)
}

// Path is an ordered sequence of segments from the root to one
// component/widget occurrence. Two renders of the same logical instance must
// yield the same path; this is a caller contract (stable keys or stable
// positions), not something the engine can verify.
type Path []Seg

// Child returns a new path with seg appended. The receiver is not aliased;
// paths are treated as immutable.
func (p Path) Child(seg Seg) Path {
	q := make(Path, len(p)+1)
	copy(q, p)
	q[len(p)] = seg
	return q
}

// Parent returns the path without its last segment, or nil for the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// String returns the canonical string form, like /frame#a/label[0]. The
// empty path is "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, seg := range p {
		sb.WriteByte('/')
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// HasPrefix reports whether p starts with the segments of q.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i, seg := range q {
		if p[i].String() != seg.String() {
			return false
		}
	}
	return true
}

// Equal reports whether two paths identify the same occurrence.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}
