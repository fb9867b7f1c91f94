package wizard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"src.uiwiz.dev/pkg/backend/backendtest"
	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/hook"
	"src.uiwiz.dev/pkg/vdom"
)

type observerFunc func(Snapshot)

func (f observerFunc) PassCommitted(s Snapshot) { f(s) }

// step emulates one loop wakeup: consume queued messages, run one pass.
func step(a *App) {
	a.lp.drainMsgs()
	a.runPass()
}

func TestBatchedSwapsCommitInOnePass(t *testing.T) {
	f := backendtest.New()
	var v hook.StateVar[int]
	counter := func(c vdom.Context, props vdom.Props) vdom.Node {
		v = hook.State(c, "n", 0)
		return vdom.E("label",
			vdom.Props{"text": fmt.Sprintf("Count: %d", v.Get())}).WithKey("L")
	}
	passes := 0
	a := New(Config{
		Backend: f, Root: f.Root, Comp: counter,
		Observer: observerFunc(func(Snapshot) { passes++ }),
	})
	a.runPass()
	if passes != 1 {
		t.Fatalf("mount committed %d passes, want 1", passes)
	}

	inc := func(old int) int { return old + 1 }
	v.Swap(inc)
	v.Swap(inc)
	v.Swap(inc)
	step(a)
	if passes != 2 {
		t.Errorf("3 swaps in one tick committed %d extra passes, want 1", passes-1)
	}
	want := "root\n  label {text=Count: 3}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
}

func TestSlotPersistsAcrossPasses(t *testing.T) {
	f := backendtest.New()
	var v hook.StateVar[string]
	comp := func(c vdom.Context, props vdom.Props) vdom.Node {
		v = hook.State(c, "s", "initial")
		return vdom.E("label", vdom.Props{"text": v.Get()}).WithKey("L")
	}
	a := New(Config{Backend: f, Root: f.Root, Comp: comp})
	a.runPass()
	v.Set("written")
	step(a)
	// A third pass must still see the committed value, not re-initialize.
	a.runPass()
	want := "root\n  label {text=written}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
}

func TestEventCallbackDrivesRender(t *testing.T) {
	f := backendtest.New()
	counter := func(c vdom.Context, props vdom.Props) vdom.Node {
		n := hook.State(c, "n", 0)
		return vdom.E("button", vdom.Props{
			"text":    fmt.Sprintf("%d clicks", n.Get()),
			"onClick": func(any) { n.Swap(func(old int) int { return old + 1 }) },
		}).WithKey("B")
	}
	a := New(Config{Backend: f, Root: f.Root, Comp: counter})
	a.runPass()

	h, ok := a.patcher.HandleAt(vdom.Path{{Kind: "button", Key: "B"}})
	if !ok {
		t.Fatalf("no handle for the button")
	}
	f.Fire(h, "click", nil)
	step(a)
	want := "root\n  button {text=1 clicks}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
}

func TestKeyedReorderKeepsWidgets(t *testing.T) {
	f := backendtest.New()
	var order hook.StateVar[[]string]
	list := func(c vdom.Context, props vdom.Props) vdom.Node {
		order = hook.State(c, "order", []string{"a", "b", "c"})
		keys := order.Get()
		children := make([]vdom.Node, len(keys))
		for i, k := range keys {
			children[i] = vdom.E("item", vdom.Props{"id": k}).WithKey(k)
		}
		return vdom.E("frame", nil, children...).WithKey("list")
	}
	a := New(Config{Backend: f, Root: f.Root, Comp: list})
	a.runPass()

	cPath := vdom.Path{{Kind: "frame", Key: "list"}, {Kind: "item", Key: "c"}}
	before, _ := a.patcher.HandleAt(cPath)

	order.Set([]string{"c", "a", "b"})
	step(a)
	after, _ := a.patcher.HandleAt(cPath)
	if before != after {
		t.Errorf("widget for c was recreated by a reorder")
	}
	frame := f.Root.Children[0]
	var ids []string
	for _, w := range frame.Children {
		ids = append(ids, w.Props["id"].(string))
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, ids); diff != "" {
		t.Errorf("child order (-want +got):\n%s", diff)
	}
}

func TestDisposeRunsCleanupBeforeDestroy(t *testing.T) {
	f := backendtest.New()
	var show hook.StateVar[bool]
	var aliveAtCleanup []bool
	itemPath := vdom.Path{{Kind: "frame", Key: "A"}, {Kind: "item", Key: "x"}}

	var a *App
	item := func(c vdom.Context, props vdom.Props) vdom.Node {
		hook.Effect(c, "e", []any{}, func() func() {
			return func() {
				h, ok := a.patcher.HandleAt(itemPath)
				alive := ok && !h.(*backendtest.Widget).Destroyed()
				aliveAtCleanup = append(aliveAtCleanup, alive)
			}
		})
		return vdom.E("item", vdom.Props{"id": "x"})
	}
	parent := func(c vdom.Context, props vdom.Props) vdom.Node {
		show = hook.State(c, "show", true)
		var children []vdom.Node
		if show.Get() {
			children = append(children, vdom.C(item, nil).WithKey("x"))
		}
		return vdom.E("frame", nil, children...).WithKey("A")
	}
	a = New(Config{Backend: f, Root: f.Root, Comp: parent})
	a.runPass()

	show.Set(false)
	step(a)
	if diff := cmp.Diff([]bool{true}, aliveAtCleanup); diff != "" {
		t.Errorf("cleanup observations (-want +got):\n%s", diff)
	}
	if len(f.Root.Children[0].Children) != 0 {
		t.Errorf("item widget survived removal")
	}
}

func TestProvideReachesDescendantComponents(t *testing.T) {
	f := backendtest.New()
	theme := vdom.NewContextKey("theme")
	leaf := func(c vdom.Context, props vdom.Props) vdom.Node {
		return vdom.E("label",
			vdom.Props{"text": hook.Use(c, theme, "light")}).WithKey("L")
	}
	root := func(c vdom.Context, props vdom.Props) vdom.Node {
		hook.Provide(c, theme, "dark")
		return vdom.E("frame", nil, vdom.C(leaf, nil).WithKey("leaf")).WithKey("A")
	}
	a := New(Config{Backend: f, Root: f.Root, Comp: root})
	a.runPass()
	want := "root\n  frame\n    label {text=dark}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
}

func TestFailedApplyKeepsCommittedTree(t *testing.T) {
	f := backendtest.New()
	var v hook.StateVar[string]
	comp := func(c vdom.Context, props vdom.Props) vdom.Node {
		v = hook.State(c, "s", "old")
		return vdom.E("label", vdom.Props{"text": v.Get()}).WithKey("L")
	}
	var reported []*errs.Error
	a := New(Config{
		Backend: f, Root: f.Root, Comp: comp,
		OnError: func(err *errs.Error) { reported = append(reported, err) },
	})
	a.runPass()

	boom := errors.New("boom")
	f.FailOn("setprops", boom)
	v.Set("new")
	step(a)
	if len(reported) != 1 || reported[0].Kind != errs.BackendApply {
		t.Fatalf("reported = %v, want one BackendApply", reported)
	}
	if got := f.Root.Children[0].Props["text"]; got != "old" {
		t.Errorf("widget text = %v after failed pass, want old", got)
	}

	// The old tree stayed the diff base, so once the backend recovers the
	// same update is re-derived and applied.
	f.FailOn("setprops", nil)
	a.runPass()
	if got := f.Root.Children[0].Props["text"]; got != "new" {
		t.Errorf("widget text = %v after recovery, want new", got)
	}
}

func TestComponentRenderingNothingKeepsState(t *testing.T) {
	f := backendtest.New()
	var show hook.StateVar[bool]
	var inner hook.StateVar[int]
	ghost := func(c vdom.Context, props vdom.Props) vdom.Node {
		inner = hook.State(c, "n", 0)
		if !props["show"].(bool) {
			return vdom.Node{}
		}
		return vdom.E("label",
			vdom.Props{"text": fmt.Sprintf("%d", inner.Get())})
	}
	root := func(c vdom.Context, props vdom.Props) vdom.Node {
		show = hook.State(c, "show", true)
		return vdom.E("frame", nil,
			vdom.C(ghost, vdom.Props{"show": show.Get()}).WithKey("g"),
			vdom.E("label", vdom.Props{"text": "tail"}).WithKey("tail"),
		).WithKey("A")
	}
	a := New(Config{Backend: f, Root: f.Root, Comp: root})
	a.runPass()

	inner.Set(7)
	step(a)
	show.Set(false)
	step(a)
	show.Set(true)
	step(a)
	frame := f.Root.Children[0]
	if got := frame.Children[0].Props["text"]; got != "7" {
		t.Errorf("re-shown component text = %v, want state kept as 7", got)
	}
}

func TestRunLoopMarshalsCrossGoroutineWrites(t *testing.T) {
	f := backendtest.New()
	var v hook.StateVar[int]
	counter := func(c vdom.Context, props vdom.Props) vdom.Node {
		v = hook.State(c, "n", 0)
		return vdom.E("label",
			vdom.Props{"text": fmt.Sprintf("%d", v.Get())}).WithKey("L")
	}
	snapshots := make(chan Snapshot, 64)
	a := New(Config{
		Backend: f, Root: f.Root, Comp: counter,
		Observer: observerFunc(func(s Snapshot) { snapshots <- s }),
	})
	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	waitFor := func(text string) {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case s := <-snapshots:
				if s.Tree.Props["text"] == text {
					return
				}
			case <-timeout:
				t.Fatalf("no snapshot with text %q", text)
			}
		}
	}
	waitFor("0")
	inc := func(old int) int { return old + 1 }
	v.Swap(inc)
	v.Swap(inc)
	v.Swap(inc)
	waitFor("3")

	a.Stop(nil)
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestComponentPanicAbortsPassOnly(t *testing.T) {
	f := backendtest.New()
	var v hook.StateVar[int]
	comp := func(c vdom.Context, props vdom.Props) vdom.Node {
		v = hook.State(c, "n", 0)
		if v.Get() == 1 {
			panic("boom")
		}
		return vdom.E("label",
			vdom.Props{"text": fmt.Sprintf("n=%d", v.Get())}).WithKey("L")
	}
	var reported []*errs.Error
	a := New(Config{
		Backend: f, Root: f.Root, Comp: comp,
		OnError: func(e *errs.Error) { reported = append(reported, e) },
	})
	a.runPass()

	v.Set(1)
	step(a)
	if len(reported) != 1 || reported[0].Kind != errs.Render {
		t.Fatalf("reported = %v, want one render panic", reported)
	}
	// The committed tree is untouched by the failed pass.
	want := "root\n  label {text=n=0}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree after failed pass (-want +got):\n%s", diff)
	}

	// The pending write did fold in, so a recovering write resumes from it.
	v.Set(2)
	step(a)
	want = "root\n  label {text=n=2}\n"
	if diff := cmp.Diff(want, f.TreeString()); diff != "" {
		t.Errorf("tree after recovery (-want +got):\n%s", diff)
	}
}
