package patch

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.uiwiz.dev/pkg/backend/backendtest"
	"src.uiwiz.dev/pkg/diff"
	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/vdom"
)

func mount(t *testing.T, cfg Config, tree vdom.Node) *Patcher {
	t.Helper()
	p := New(cfg)
	if err := p.Apply(diff.Diff(vdom.Node{}, tree)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return p
}

func items(keys ...string) vdom.Node {
	children := make([]vdom.Node, len(keys))
	for i, k := range keys {
		children[i] = vdom.E("item", vdom.Props{"id": k}).WithKey(k)
	}
	return vdom.E("frame", nil, children...).WithKey("list")
}

func TestDefaultEventName(t *testing.T) {
	tests := []struct{ prop, want string }{
		{"onClick", "click"},
		{"onKeyPress", "keyPress"},
		{"onChange", "change"},
	}
	for _, test := range tests {
		if got := DefaultEventName(test.prop); got != test.want {
			t.Errorf("DefaultEventName(%q) = %q, want %q", test.prop, got, test.want)
		}
	}
}

func TestIsEventProp(t *testing.T) {
	for _, name := range []string{"onClick", "onX"} {
		if !IsEventProp(name) {
			t.Errorf("IsEventProp(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"once", "on", "text", "online"} {
		if IsEventProp(name) {
			t.Errorf("IsEventProp(%q) = true, want false", name)
		}
	}
}

func TestApply_MountMaterializesSubtree(t *testing.T) {
	f := backendtest.New()
	tree := vdom.E("frame", vdom.Props{"bg": "gray"},
		vdom.E("label", vdom.Props{"text": "hi"}),
		vdom.E("button", vdom.Props{"text": "go"})).WithKey("A")
	p := mount(t, Config{Backend: f, Root: f.Root}, tree)

	want := "root\n" +
		"  frame {bg=gray}\n" +
		"    label {text=hi}\n" +
		"    button {text=go}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
	if p.HandleCount() != 3 {
		t.Errorf("HandleCount() = %d, want 3", p.HandleCount())
	}
}

func TestApply_RoundTrip(t *testing.T) {
	old := vdom.E("frame", nil,
		vdom.E("label", vdom.Props{"text": "a"}).WithKey("a"),
		vdom.E("label", vdom.Props{"text": "b"}).WithKey("b"),
		vdom.E("label", vdom.Props{"text": "c"}).WithKey("c")).WithKey("A")
	new := vdom.E("frame", nil,
		vdom.E("label", vdom.Props{"text": "c2"}).WithKey("c"),
		vdom.E("label", vdom.Props{"text": "x"}).WithKey("x"),
		vdom.E("label", vdom.Props{"text": "a"}).WithKey("a")).WithKey("A")

	patched := backendtest.New()
	p := mount(t, Config{Backend: patched, Root: patched.Root}, old)
	if err := p.Apply(diff.Diff(old, new)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	fresh := backendtest.New()
	mount(t, Config{Backend: fresh, Root: fresh.Root}, new)
	if diff := cmp.Diff(fresh.TreeString(), patched.TreeString()); diff != "" {
		t.Errorf("patched tree differs from fresh mount (-fresh +patched):\n%s", diff)
	}
}

func TestApply_PermutationRoundTrips(t *testing.T) {
	// Each permutation is applied to a live tree and compared against a
	// fresh mount of the target. The first shape moves a leading child
	// rightward past the stationary run and another child leftward into it,
	// so it only round-trips when every Move's target accounts for the
	// moves already applied before it.
	perms := [][]string{
		{"b", "e", "c", "d", "a"},
		{"e", "a", "b", "c", "d"},
		{"b", "a", "d", "c", "e"},
		{"c", "e", "a", "b", "d"},
		{"b", "d", "a", "c", "e"},
		{"e", "d", "c", "b", "a"},
	}
	old := items("a", "b", "c", "d", "e")
	for _, perm := range perms {
		new := items(perm...)
		patched := backendtest.New()
		p := mount(t, Config{Backend: patched, Root: patched.Root}, old)
		if err := p.Apply(diff.Diff(old, new)); err != nil {
			t.Fatalf("Apply(%v): %v", perm, err)
		}
		fresh := backendtest.New()
		mount(t, Config{Backend: fresh, Root: fresh.Root}, new)
		if diff := cmp.Diff(fresh.TreeString(), patched.TreeString()); diff != "" {
			t.Errorf("permutation %v (-fresh +patched):\n%s", perm, diff)
		}
	}
}

func TestApply_MixedKeysUpdateAfterMount(t *testing.T) {
	// A child list with one keyed and one unkeyed sibling reconciles
	// positionally, but the update paths must still name the widgets the
	// mount registered.
	mixed := func(a, b string) vdom.Node {
		return vdom.E("frame", nil,
			vdom.E("label", vdom.Props{"text": a}).WithKey("a"),
			vdom.E("label", vdom.Props{"text": b})).WithKey("root")
	}
	f := backendtest.New()
	p := mount(t, Config{Backend: f, Root: f.Root}, mixed("x", "y"))
	if err := p.Apply(diff.Diff(mixed("x", "y"), mixed("X", "Y"))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fresh := backendtest.New()
	mount(t, Config{Backend: fresh, Root: fresh.Root}, mixed("X", "Y"))
	if diff := cmp.Diff(fresh.TreeString(), f.TreeString()); diff != "" {
		t.Errorf("patched tree differs from fresh mount (-fresh +patched):\n%s", diff)
	}
}

func TestApply_MoveKeepsWidget(t *testing.T) {
	f := backendtest.New()
	p := mount(t, Config{Backend: f, Root: f.Root}, items("a", "b", "c"))

	path := vdom.Path{
		{Kind: "frame", Key: "list"}, {Kind: "item", Key: "c"},
	}
	before, ok := p.HandleAt(path)
	if !ok {
		t.Fatalf("no handle for %s", path)
	}
	if err := p.Apply(diff.Diff(items("a", "b", "c"), items("c", "a", "b"))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	after, ok := p.HandleAt(path)
	if !ok || after != before {
		t.Errorf("handle for %s changed across a move", path)
	}
	w := after.(*backendtest.Widget)
	if w.Destroyed() {
		t.Errorf("moved widget was destroyed")
	}
	if w.Parent.Children[0] != w {
		t.Errorf("moved widget is not at index 0")
	}
}

func TestApply_PhaseOrder(t *testing.T) {
	f := backendtest.New()
	p := mount(t, Config{Backend: f, Root: f.Root}, items("a", "b", "c"))
	f.Ops = nil

	// b is removed, c moves in front of a, x is created, a's props change.
	old := items("a", "b", "c")
	new := vdom.E("frame", nil,
		vdom.E("item", vdom.Props{"id": "c"}).WithKey("c"),
		vdom.E("item", vdom.Props{"id": "a", "extra": 1}).WithKey("a"),
		vdom.E("item", vdom.Props{"id": "x"}).WithKey("x")).WithKey("list")
	if err := p.Apply(diff.Diff(old, new)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var kinds []string
	for _, op := range f.Ops {
		kinds = append(kinds, strings.Fields(op)[0])
	}
	// destroy, then reorder for the move, then create (plus its positioning
	// reorder), then setprops.
	want := []string{"destroy", "reorder", "create", "reorder", "setprops"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("op order (-want +got):\n%s", diff)
	}
}

func TestApply_EventLifecycle(t *testing.T) {
	f := backendtest.New()
	var fired []string
	cb1 := func(any) { fired = append(fired, "cb1") }
	cb2 := func(any) { fired = append(fired, "cb2") }

	button := func(cb func(any)) vdom.Node {
		return vdom.E("button", vdom.Props{"text": "go", "onClick": cb}).WithKey("B")
	}
	p := mount(t, Config{Backend: f, Root: f.Root}, button(cb1))
	path := vdom.Path{{Kind: "button", Key: "B"}}
	h, _ := p.HandleAt(path)
	f.Fire(h, "click", nil)

	// A new callback identity rebinds; only the new one fires.
	if err := p.Apply(diff.Diff(button(cb1), button(cb2))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	f.Fire(h, "click", nil)
	if diff := cmp.Diff([]string{"cb1", "cb2"}, fired); diff != "" {
		t.Errorf("fired (-want +got):\n%s", diff)
	}

	// Removing the prop unbinds without touching other props.
	noCb := vdom.E("button", vdom.Props{"text": "go"}).WithKey("B")
	if err := p.Apply(diff.Diff(button(cb2), noCb)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	f.Fire(h, "click", nil)
	if len(fired) != 2 {
		t.Errorf("callback fired after unbind")
	}
	w := h.(*backendtest.Widget)
	if w.Props["text"] != "go" {
		t.Errorf("text prop lost during unbind: %v", w.Props)
	}
}

func TestApply_UpdateNeverRecreates(t *testing.T) {
	f := backendtest.New()
	old := vdom.E("label", vdom.Props{"text": "a"}).WithKey("L")
	p := mount(t, Config{Backend: f, Root: f.Root}, old)
	f.Ops = nil

	new := vdom.E("label", vdom.Props{"text": "b"}).WithKey("L")
	if err := p.Apply(diff.Diff(old, new)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, op := range f.Ops {
		if strings.HasPrefix(op, "create") || strings.HasPrefix(op, "destroy") {
			t.Errorf("prop-only change produced %q", op)
		}
	}
}

func TestApply_ResolverAtMaterialization(t *testing.T) {
	resolver := func(props vdom.Props) vdom.Props {
		if props["class"] == nil {
			return props
		}
		out := vdom.Props{}
		for k, v := range props {
			if k != "class" {
				out[k] = v
			}
		}
		out["bg"] = "#3b82f6"
		return out
	}
	f := backendtest.New()
	tree := vdom.E("frame", vdom.Props{"class": "bg-blue-500"}).WithKey("A")
	p := mount(t, Config{Backend: f, Root: f.Root, Resolver: resolver}, tree)

	h, _ := p.HandleAt(vdom.Path{{Kind: "frame", Key: "A"}})
	w := h.(*backendtest.Widget)
	if w.Props["bg"] != "#3b82f6" || w.Props["class"] != nil {
		t.Errorf("materialized props = %v, want resolved", w.Props)
	}
}

func TestApply_DisposeRunsBeforeDestroy(t *testing.T) {
	f := backendtest.New()
	tree := vdom.E("frame", nil,
		vdom.E("label", vdom.Props{"text": "x"}).WithKey("L")).WithKey("A")
	var aliveAtDispose []bool
	cfg := Config{Backend: f, Root: f.Root}
	p := mount(t, cfg, tree)
	labelPath := vdom.Path{{Kind: "frame", Key: "A"}, {Kind: "label", Key: "L"}}
	h, _ := p.HandleAt(labelPath)

	p.cfg.Dispose = func(path vdom.Path) {
		w := h.(*backendtest.Widget)
		aliveAtDispose = append(aliveAtDispose, !w.Destroyed())
	}
	new := vdom.E("frame", nil).WithKey("A")
	if err := p.Apply(diff.Diff(tree, new)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(aliveAtDispose) != 1 || !aliveAtDispose[0] {
		t.Errorf("dispose calls with widget alive = %v, want [true]", aliveAtDispose)
	}
	if !h.(*backendtest.Widget).Destroyed() {
		t.Errorf("widget not destroyed after removal")
	}
}

func TestApply_AbortOnBackendError(t *testing.T) {
	f := backendtest.New()
	old := items("a", "b")
	p := mount(t, Config{Backend: f, Root: f.Root}, old)
	countBefore := p.HandleCount()

	boom := errors.New("boom")
	f.FailOn("create", boom)
	new := vdom.E("frame", nil,
		vdom.E("item", vdom.Props{"id": "a"}).WithKey("a"),
		vdom.E("item", vdom.Props{"id": "b", "extra": 1}).WithKey("b"),
		vdom.E("item", vdom.Props{"id": "x"}).WithKey("x")).WithKey("list")
	err := p.Apply(diff.Diff(old, new))

	var engineErr *errs.Error
	if !errors.As(err, &engineErr) || engineErr.Kind != errs.BackendApply {
		t.Fatalf("Apply error = %v, want BackendApply", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Apply error does not wrap the backend error")
	}
	// The failed create indexed nothing; the update phase never ran.
	if p.HandleCount() != countBefore {
		t.Errorf("HandleCount() = %d after abort, want %d", p.HandleCount(), countBefore)
	}
	bPath := vdom.Path{{Kind: "frame", Key: "list"}, {Kind: "item", Key: "b"}}
	h, _ := p.HandleAt(bPath)
	if h.(*backendtest.Widget).Props["extra"] != nil {
		t.Errorf("update applied after aborted create")
	}
}
