package wizard

import (
	"fmt"
	"time"

	"src.uiwiz.dev/pkg/diff"
	"src.uiwiz.dev/pkg/vdom"
)

// TreeNode is an immutable, serializable view of one widget in a committed
// tree. Prop values are stringified; callbacks render as "fn".
type TreeNode struct {
	Kind     string            `json:"kind"`
	Key      string            `json:"key,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
	Children []TreeNode        `json:"children,omitempty"`
}

// Snapshot describes one committed render pass. Snapshots are safe to retain
// and share; they alias nothing in the engine.
type Snapshot struct {
	// Seq numbers committed passes from 1.
	Seq uint64 `json:"seq"`
	// Time is when the pass committed.
	Time time.Time `json:"time"`
	// Tree is the committed widget tree.
	Tree TreeNode `json:"tree"`
	// Patches lists the pass's applied patches in string form.
	Patches []string `json:"patches,omitempty"`
	// Stats holds the differ's cumulative counters as of this pass.
	Stats diff.Stats `json:"stats"`
}

// Observer receives a snapshot after every committed pass. It is called on
// the engine's owning goroutine and must not call back into the engine
// synchronously.
type Observer interface {
	PassCommitted(Snapshot)
}

// MultiObserver fans one snapshot out to several observers.
type MultiObserver []Observer

// PassCommitted implements Observer.
func (m MultiObserver) PassCommitted(s Snapshot) {
	for _, o := range m {
		o.PassCommitted(s)
	}
}

// snapshotTree converts a committed node tree to its serializable view.
func snapshotTree(n vdom.Node) TreeNode {
	t := TreeNode{Kind: n.Kind(), Key: n.Key}
	if len(n.Props) > 0 {
		t.Props = make(map[string]string, len(n.Props))
		for k, v := range n.Props {
			if vdom.IsCallback(v) {
				t.Props[k] = "fn"
			} else {
				t.Props[k] = fmt.Sprint(v)
			}
		}
	}
	if len(n.Children) > 0 {
		t.Children = make([]TreeNode, len(n.Children))
		for i, c := range n.Children {
			t.Children[i] = snapshotTree(c)
		}
	}
	return t
}
