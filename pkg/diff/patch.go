// Package diff computes the minimal ordered patch list that transforms one
// node tree into another, including keyed reconciliation of child lists.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"src.uiwiz.dev/pkg/vdom"
)

// Patch is one imperative operation on the live widget tree. All paths
// reference the previous committed tree, except Create, whose path
// references the position in the new tree.
type Patch interface {
	fmt.Stringer
	patch()
}

// Create materializes the subtree rooted at Node as a new child of the
// parent of Path, at position Index among the new child list.
type Create struct {
	Path  vdom.Path
	Index int
	Node  vdom.Node
}

// Update applies prop deltas to the existing widget at Path: Changed maps
// prop names to new values, Removed lists props present before and absent
// now. Removed is sorted.
type Update struct {
	Path    vdom.Path
	Changed vdom.Props
	Removed []string
}

// Replace destroys the widget at Path and materializes Node in its place, at
// position Index.
type Replace struct {
	Path  vdom.Path
	Index int
	Node  vdom.Node
}

// Remove destroys the widget at Path (at position Index among its old
// siblings) along with its subtree.
type Remove struct {
	Path  vdom.Path
	Index int
}

// Move re-sequences the existing widget at Path, without destroying it.
// From is its position among its old siblings. To is the slot to insert it
// at when the move applies: after the pass's removes, before its creates,
// and after every move emitted earlier in the same list. The differ emits
// moves back to front so each To is correct under exactly that state.
type Move struct {
	Path     vdom.Path
	From, To int
}

// Reorder re-sequences the existing keyed children of the widget at Path to
// match the relative order of Order (keys in the new order). Keys in Order
// that have no existing widget yet are ignored; they are filled in by
// subsequent Create patches.
type Reorder struct {
	Path  vdom.Path
	Order []string
}

// NoOp does nothing. The differ never emits it; it exists so that external
// consumers of the patch model can represent "no change" explicitly.
type NoOp struct{}

func (Create) patch()  {}
func (Update) patch()  {}
func (Replace) patch() {}
func (Remove) patch()  {}
func (Move) patch()    {}
func (Reorder) patch() {}
func (NoOp) patch()    {}

func (p Create) String() string {
	return fmt.Sprintf("create %s @%d %s", p.Path, p.Index, p.Node.Kind())
}

func (p Update) String() string {
	keys := make([]string, 0, len(p.Changed))
	for k := range p.Changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("update %s changed=[%s] removed=[%s]",
		p.Path, strings.Join(keys, " "), strings.Join(p.Removed, " "))
}

func (p Replace) String() string {
	return fmt.Sprintf("replace %s @%d with %s", p.Path, p.Index, p.Node.Kind())
}

func (p Remove) String() string {
	return fmt.Sprintf("remove %s @%d", p.Path, p.Index)
}

func (p Move) String() string {
	return fmt.Sprintf("move %s %d -> %d", p.Path, p.From, p.To)
}

func (p Reorder) String() string {
	return fmt.Sprintf("reorder %s [%s]", p.Path, strings.Join(p.Order, " "))
}

func (NoOp) String() string { return "noop" }
