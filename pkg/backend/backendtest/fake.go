// Package backendtest provides an in-memory Backend for tests: a widget
// tree that records every primitive call, can be scripted to fail, and can
// fire bound events.
package backendtest

import (
	"fmt"
	"sort"
	"strings"

	"src.uiwiz.dev/pkg/backend"
	"src.uiwiz.dev/pkg/vdom"
)

// Widget is one fake widget. Handles returned by the fake are *Widget.
type Widget struct {
	ID       int
	Kind     string
	Props    vdom.Props
	Parent   *Widget
	Children []*Widget

	destroyed bool
	bindings  map[string][]*binding
}

func (w *Widget) String() string {
	return fmt.Sprintf("%s#%d", w.Kind, w.ID)
}

// Destroyed reports whether the widget has been destroyed.
func (w *Widget) Destroyed() bool { return w.destroyed }

type binding struct {
	widget *Widget
	event  string
	cb     backend.EventFunc
	dead   bool
}

// Fake implements backend.Backend on an in-memory tree.
type Fake struct {
	// Root is the pre-existing root widget; pass it as the root handle when
	// mounting.
	Root *Widget
	// Ops records every primitive call in order, as strings.
	Ops []string

	next  int
	fails map[string]error
}

var _ backend.Backend = (*Fake)(nil)

// New creates a fake with a fresh root widget.
func New() *Fake {
	f := &Fake{fails: make(map[string]error)}
	f.Root = f.newWidget("root", nil)
	return f
}

func (f *Fake) newWidget(kind string, props vdom.Props) *Widget {
	f.next++
	return &Widget{
		ID:       f.next,
		Kind:     kind,
		Props:    cloneProps(props),
		bindings: make(map[string][]*binding),
	}
}

func cloneProps(props vdom.Props) vdom.Props {
	clone := make(vdom.Props, len(props))
	for k, v := range props {
		clone[k] = v
	}
	return clone
}

// FailOn makes every subsequent op whose log string starts with prefix
// return err. Pass a nil err to clear the script.
func (f *Fake) FailOn(prefix string, err error) {
	if err == nil {
		delete(f.fails, prefix)
		return
	}
	f.fails[prefix] = err
}

// op logs a primitive call and returns the scripted error, if any.
func (f *Fake) op(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	f.Ops = append(f.Ops, s)
	for prefix, err := range f.fails {
		if strings.HasPrefix(s, prefix) {
			return err
		}
	}
	return nil
}

func asWidget(h backend.Handle) (*Widget, error) {
	w, ok := h.(*Widget)
	if !ok || w == nil {
		return nil, fmt.Errorf("bad handle %v", h)
	}
	if w.destroyed {
		return nil, fmt.Errorf("widget %s is destroyed", w)
	}
	return w, nil
}

// CreateWidget implements backend.Backend.
func (f *Fake) CreateWidget(kind string, initialProps vdom.Props, parent backend.Handle) (backend.Handle, error) {
	p, err := asWidget(parent)
	if err != nil {
		return nil, err
	}
	if err := f.op("create %s in %s", kind, p); err != nil {
		return nil, err
	}
	w := f.newWidget(kind, initialProps)
	w.Parent = p
	p.Children = append(p.Children, w)
	return w, nil
}

// DestroyWidget implements backend.Backend. The whole subtree is destroyed.
func (f *Fake) DestroyWidget(h backend.Handle) error {
	w, err := asWidget(h)
	if err != nil {
		return err
	}
	if err := f.op("destroy %s", w); err != nil {
		return err
	}
	if w.Parent != nil {
		w.Parent.Children = removeChild(w.Parent.Children, w)
		w.Parent = nil
	}
	markDestroyed(w)
	return nil
}

func markDestroyed(w *Widget) {
	w.destroyed = true
	for _, c := range w.Children {
		markDestroyed(c)
	}
	w.Children = nil
}

func removeChild(children []*Widget, w *Widget) []*Widget {
	for i, c := range children {
		if c == w {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

// SetProps implements backend.Backend.
func (f *Fake) SetProps(h backend.Handle, changed vdom.Props, removed []string) error {
	w, err := asWidget(h)
	if err != nil {
		return err
	}
	if err := f.op("setprops %s changed=%s removed=[%s]",
		w, propKeys(changed), strings.Join(removed, " ")); err != nil {
		return err
	}
	for k, v := range changed {
		w.Props[k] = v
	}
	for _, k := range removed {
		delete(w.Props, k)
	}
	return nil
}

func propKeys(props vdom.Props) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, " ") + "]"
}

// ReparentOrReorder implements backend.Backend.
func (f *Fake) ReparentOrReorder(h, parent backend.Handle, index int) error {
	w, err := asWidget(h)
	if err != nil {
		return err
	}
	p, err := asWidget(parent)
	if err != nil {
		return err
	}
	if err := f.op("reorder %s in %s to %d", w, p, index); err != nil {
		return err
	}
	if w.Parent != nil {
		w.Parent.Children = removeChild(w.Parent.Children, w)
	}
	w.Parent = p
	if index < 0 {
		index = 0
	}
	if index > len(p.Children) {
		index = len(p.Children)
	}
	p.Children = append(p.Children, nil)
	copy(p.Children[index+1:], p.Children[index:])
	p.Children[index] = w
	return nil
}

// BindEvent implements backend.Backend.
func (f *Fake) BindEvent(h backend.Handle, eventName string, cb backend.EventFunc) (backend.UnbindToken, error) {
	w, err := asWidget(h)
	if err != nil {
		return nil, err
	}
	if err := f.op("bind %s.%s", w, eventName); err != nil {
		return nil, err
	}
	b := &binding{widget: w, event: eventName, cb: cb}
	w.bindings[eventName] = append(w.bindings[eventName], b)
	return b, nil
}

// UnbindEvent implements backend.Backend.
func (f *Fake) UnbindEvent(t backend.UnbindToken) error {
	b, ok := t.(*binding)
	if !ok || b == nil {
		return fmt.Errorf("bad unbind token %v", t)
	}
	if err := f.op("unbind %s.%s", b.widget, b.event); err != nil {
		return err
	}
	b.dead = true
	return nil
}

// Fire invokes the live callbacks bound to the named event of a widget, as
// the toolkit would on user input.
func (f *Fake) Fire(h backend.Handle, eventName string, arg any) {
	w, ok := h.(*Widget)
	if !ok || w == nil || w.destroyed {
		return
	}
	for _, b := range w.bindings[eventName] {
		if !b.dead {
			b.cb(arg)
		}
	}
}

// TreeString renders the widget tree as indented lines of "kind {props}",
// with prop names sorted. Two trees with the same kinds, props, and child
// order render identically, which is what the round-trip tests compare.
func (f *Fake) TreeString() string {
	var sb strings.Builder
	writeTree(&sb, f.Root, 0)
	return sb.String()
}

func writeTree(sb *strings.Builder, w *Widget, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(w.Kind)
	if len(w.Props) > 0 {
		keys := make([]string, 0, len(w.Props))
		for k := range w.Props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if vdom.IsCallback(w.Props[k]) {
				fmt.Fprintf(sb, "%s=fn", k)
			} else {
				fmt.Fprintf(sb, "%s=%v", k, w.Props[k])
			}
		}
		sb.WriteByte('}')
	}
	sb.WriteByte('\n')
	for _, c := range w.Children {
		writeTree(sb, c, depth+1)
	}
}
