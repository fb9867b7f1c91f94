// Package backend defines the widget-backend contract the patcher drives.
//
// A backend wraps a concrete toolkit behind six primitives. The engine never
// touches toolkit internals beyond these; in particular it never assumes
// anything about what a Handle is. All primitives are called from the
// engine's owning goroutine only, which must be the toolkit's own thread for
// toolkits that have one.
package backend

import "src.uiwiz.dev/pkg/vdom"

// Handle is an opaque reference to one live widget. The backend chooses the
// concrete type; the engine only stores and passes handles back.
type Handle any

// UnbindToken identifies one event binding for UnbindEvent.
type UnbindToken any

// EventFunc is an event callback bound to a widget. The argument is the
// backend's event payload, passed through unchanged.
type EventFunc func(arg any)

// Backend is the primitive set the patcher consumes.
type Backend interface {
	// CreateWidget materializes one widget of the given kind as the last
	// child of parent. Positioning is done separately via
	// ReparentOrReorder.
	CreateWidget(kind string, initialProps vdom.Props, parent Handle) (Handle, error)
	// DestroyWidget destroys the widget and its whole subtree.
	DestroyWidget(h Handle) error
	// SetProps applies prop deltas to an existing widget: changed maps prop
	// names to new values, removed lists props to unset.
	SetProps(h Handle, changed vdom.Props, removed []string) error
	// ReparentOrReorder moves the widget to the given position among the
	// children of parent, which may or may not be its current parent. The
	// widget is not destroyed.
	ReparentOrReorder(h Handle, parent Handle, index int) error
	// BindEvent attaches cb to the named toolkit event of the widget.
	BindEvent(h Handle, eventName string, cb EventFunc) (UnbindToken, error)
	// UnbindEvent detaches a binding made by BindEvent.
	UnbindEvent(t UnbindToken) error
}
