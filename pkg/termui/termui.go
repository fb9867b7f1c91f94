// Package termui implements a reference widget backend that renders to a
// terminal.
//
// It exists so the engine can be run end to end without a GUI toolkit: the
// widget tree is kept in memory and every committed pass is printed as an
// indented outline, with truecolor escapes for bg/fg props when the output
// is a terminal. It is deliberately write-only; input is the host
// application's business.
package termui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"src.uiwiz.dev/pkg/backend"
	"src.uiwiz.dev/pkg/vdom"
)

// nominal pixel width of one terminal column, used to map the terminal size
// onto the pixel-based responsive breakpoints. At 8px per column a classic
// 80-column terminal counts as a 640px (sm) window.
const colPx = 8

// Config configures a Backend.
type Config struct {
	// Out is where frames are written. Defaults to os.Stdout.
	Out io.Writer
	// ForceColor turns on color escapes even when Out is not a terminal.
	ForceColor bool
}

// Backend is a terminal widget backend. It implements backend.Backend. All
// methods must be called from the engine's owning goroutine.
type Backend struct {
	out   io.Writer
	file  *os.File
	color bool
	root  *widget
	frame int
}

type widget struct {
	kind      string
	props     vdom.Props
	parent    *widget
	children  []*widget
	bindings  []*binding
	destroyed bool
}

type binding struct {
	w     *widget
	event string
	cb    backend.EventFunc
}

// New returns a Backend per cfg.
func New(cfg Config) *Backend {
	b := &Backend{out: cfg.Out, color: cfg.ForceColor}
	if b.out == nil {
		b.out = os.Stdout
	}
	if f, ok := b.out.(*os.File); ok {
		b.file = f
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			b.color = true
		}
	}
	b.root = &widget{kind: "root"}
	return b
}

// Root returns the handle to pass as the engine's root container.
func (b *Backend) Root() backend.Handle { return b.root }

// Size returns the terminal size in rows and columns, or 24x80 when the
// output is not a terminal.
func (b *Backend) Size() (rows, cols int) {
	if b.file != nil {
		if r, c := winSize(b.file); r > 0 && c > 0 {
			return r, c
		}
	}
	return 24, 80
}

// Width returns the nominal window width in pixels, suitable for feeding a
// responsive breakpoint lookup.
func (b *Backend) Width() int {
	_, cols := b.Size()
	return cols * colPx
}

// CreateWidget implements backend.Backend.
func (b *Backend) CreateWidget(kind string, initialProps vdom.Props, parent backend.Handle) (backend.Handle, error) {
	p, err := b.widgetOf(parent)
	if err != nil {
		return nil, err
	}
	props := make(vdom.Props, len(initialProps))
	for k, v := range initialProps {
		props[k] = v
	}
	w := &widget{kind: kind, props: props, parent: p}
	p.children = append(p.children, w)
	return w, nil
}

// DestroyWidget implements backend.Backend.
func (b *Backend) DestroyWidget(h backend.Handle) error {
	w, err := b.widgetOf(h)
	if err != nil {
		return err
	}
	if w == b.root {
		return fmt.Errorf("termui: cannot destroy the root container")
	}
	w.parent.detach(w)
	w.markDestroyed()
	return nil
}

// SetProps implements backend.Backend.
func (b *Backend) SetProps(h backend.Handle, changed vdom.Props, removed []string) error {
	w, err := b.widgetOf(h)
	if err != nil {
		return err
	}
	for k, v := range changed {
		w.props[k] = v
	}
	for _, k := range removed {
		delete(w.props, k)
	}
	return nil
}

// ReparentOrReorder implements backend.Backend.
func (b *Backend) ReparentOrReorder(h backend.Handle, parent backend.Handle, index int) error {
	w, err := b.widgetOf(h)
	if err != nil {
		return err
	}
	p, err := b.widgetOf(parent)
	if err != nil {
		return err
	}
	w.parent.detach(w)
	if index < 0 {
		index = 0
	}
	if index > len(p.children) {
		index = len(p.children)
	}
	p.children = append(p.children, nil)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = w
	w.parent = p
	return nil
}

// BindEvent implements backend.Backend.
func (b *Backend) BindEvent(h backend.Handle, eventName string, cb backend.EventFunc) (backend.UnbindToken, error) {
	w, err := b.widgetOf(h)
	if err != nil {
		return nil, err
	}
	bd := &binding{w: w, event: eventName, cb: cb}
	w.bindings = append(w.bindings, bd)
	return bd, nil
}

// UnbindEvent implements backend.Backend.
func (b *Backend) UnbindEvent(t backend.UnbindToken) error {
	bd, ok := t.(*binding)
	if !ok {
		return fmt.Errorf("termui: not an event binding: %v", t)
	}
	for i, other := range bd.w.bindings {
		if other == bd {
			bd.w.bindings = append(bd.w.bindings[:i], bd.w.bindings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("termui: binding already removed")
}

// Trigger invokes the first binding for the named event found in a
// depth-first walk, passing arg to the callback. It reports whether a
// binding was found. It must be called on the engine's owning goroutine,
// typically via the engine's message queue.
func (b *Backend) Trigger(event string, arg any) bool {
	bd := findBinding(b.root, event)
	if bd == nil {
		return false
	}
	bd.cb(arg)
	return true
}

func findBinding(w *widget, event string) *binding {
	for _, bd := range w.bindings {
		if bd.event == event {
			return bd
		}
	}
	for _, c := range w.children {
		if bd := findBinding(c, event); bd != nil {
			return bd
		}
	}
	return nil
}

func (b *Backend) widgetOf(h backend.Handle) (*widget, error) {
	if h == nil {
		return b.root, nil
	}
	w, ok := h.(*widget)
	if !ok {
		return nil, fmt.Errorf("termui: not a widget handle: %v", h)
	}
	if w.destroyed {
		return nil, fmt.Errorf("termui: %s widget is destroyed", w.kind)
	}
	return w, nil
}

func (w *widget) detach(child *widget) {
	for i, c := range w.children {
		if c == child {
			w.children = append(w.children[:i], w.children[i+1:]...)
			return
		}
	}
}

func (w *widget) markDestroyed() {
	w.destroyed = true
	for _, c := range w.children {
		c.markDestroyed()
	}
}

// Render writes the current widget tree as one frame.
func (b *Backend) Render() error {
	b.frame++
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %d\n", b.frame)
	for _, c := range b.root.children {
		b.renderWidget(&sb, c, 1)
	}
	_, err := io.WriteString(b.out, sb.String())
	return err
}

func (b *Backend) renderWidget(sb *strings.Builder, w *widget, depth int) {
	if v, ok := w.props["visible"]; ok && v == false {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	pre, post := b.colorize(w.props)
	sb.WriteString(pre)
	sb.WriteString(w.kind)
	if t, ok := w.props["text"]; ok {
		fmt.Fprintf(sb, " %q", fmt.Sprint(t))
	}
	sb.WriteString(post)
	sb.WriteString("\n")
	for _, c := range w.children {
		b.renderWidget(sb, c, depth+1)
	}
}

// colorize returns the escape sequences bracketing one widget's line. Both
// are empty when color is off or no color props are set.
func (b *Backend) colorize(props vdom.Props) (pre, post string) {
	if !b.color {
		return "", ""
	}
	var codes []string
	if r, g, bl, ok := hexRGB(props["fg"]); ok {
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", r, g, bl))
	}
	if r, g, bl, ok := hexRGB(props["bg"]); ok {
		codes = append(codes, fmt.Sprintf("48;2;%d;%d;%d", r, g, bl))
	}
	if len(codes) == 0 {
		return "", ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m", "\x1b[m"
}

func hexRGB(v any) (r, g, b uint8, ok bool) {
	s, isStr := v.(string)
	if !isStr || len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	n, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(n >> 16), uint8(n >> 8), uint8(n), true
}
