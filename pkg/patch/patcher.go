// Package patch applies patch lists to a live widget backend.
//
// The patcher owns the path-to-handle and per-parent key-to-handle indexes.
// Both are derived state, rebuilt incrementally as patches apply; the
// committed node tree held by the wizard package remains the source of
// truth. All methods must be called from the engine's owning goroutine.
package patch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"src.uiwiz.dev/pkg/backend"
	"src.uiwiz.dev/pkg/diff"
	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/vdom"
)

var logger = logutil.GetLogger("[patch] ")

// Config configures a Patcher.
type Config struct {
	// Backend is the widget backend to drive. Required.
	Backend backend.Backend
	// Root is the pre-existing backend widget the tree mounts into.
	// Required.
	Root backend.Handle
	// Resolver, if non-nil, maps declared props to backend props when a
	// subtree is materialized. It must be the same resolver the differ uses,
	// or updates and creations would disagree about what the backend sees.
	Resolver func(vdom.Props) vdom.Props
	// EventName maps an event prop name to the backend's event name. Nil
	// means DefaultEventName.
	EventName func(prop string) string
	// Dispose, if non-nil, is called with the root path of every subtree
	// about to be destroyed, before the backend destroys it. The wizard uses
	// it to run hook cleanups while the widgets are still alive.
	Dispose func(path vdom.Path)
}

// DefaultEventName strips the "on" prefix and lowercases the first rune:
// onClick becomes click. Names without the prefix pass through lowercased.
func DefaultEventName(prop string) string {
	name := strings.TrimPrefix(prop, "on")
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// IsEventProp reports whether a prop name names an event: an "on" prefix
// followed by an upper-case rune, like onClick.
func IsEventProp(name string) bool {
	rest := strings.TrimPrefix(name, "on")
	if rest == name || rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r)
}

// Patcher applies patch lists to a backend.
type Patcher struct {
	cfg Config
	// handles maps widget path strings to backend handles.
	handles map[string]backend.Handle
	// keyed maps parent path strings to key-to-handle tables, for keyed
	// children only.
	keyed map[string]map[string]backend.Handle
	// events maps widget path strings to event-name-to-token tables for the
	// widget's live bindings.
	events map[string]map[string]backend.UnbindToken
}

// New creates a Patcher with empty indexes.
func New(cfg Config) *Patcher {
	if cfg.EventName == nil {
		cfg.EventName = DefaultEventName
	}
	return &Patcher{
		cfg:     cfg,
		handles: make(map[string]backend.Handle),
		keyed:   make(map[string]map[string]backend.Handle),
		events:  make(map[string]map[string]backend.UnbindToken),
	}
}

// HandleAt returns the backend handle for a widget path, if one is indexed.
func (p *Patcher) HandleAt(path vdom.Path) (backend.Handle, bool) {
	h, ok := p.handles[path.String()]
	return h, ok
}

// HandleCount returns the number of indexed widgets.
func (p *Patcher) HandleCount() int { return len(p.handles) }

// Apply applies one pass's patches in the fixed phase order: removes, then
// moves and reorders, then creates, then updates, then replaces. Within a
// phase the differ's emission order is kept.
//
// If a backend primitive fails, the remaining patches are abandoned and a
// BackendApply error is returned. The indexes stay consistent with the ops
// that did apply; the caller must keep the previous committed tree as the
// next diff base in that case.
func (p *Patcher) Apply(patches []diff.Patch) error {
	var phases [5][]diff.Patch
	for _, op := range patches {
		switch op.(type) {
		case diff.Remove:
			phases[0] = append(phases[0], op)
		case diff.Move, diff.Reorder:
			phases[1] = append(phases[1], op)
		case diff.Create:
			phases[2] = append(phases[2], op)
		case diff.Update:
			phases[3] = append(phases[3], op)
		case diff.Replace:
			phases[4] = append(phases[4], op)
		}
	}
	for _, phase := range phases {
		for _, op := range phase {
			if err := p.apply(op); err != nil {
				logger.Printf("abort after %s: %v", op, err)
				return err
			}
		}
	}
	return nil
}

func (p *Patcher) apply(op diff.Patch) error {
	switch op := op.(type) {
	case diff.Remove:
		return p.remove(op.Path)
	case diff.Move:
		return p.move(op)
	case diff.Reorder:
		return p.reorder(op)
	case diff.Create:
		return p.create(op.Path, op.Index, op.Node)
	case diff.Update:
		return p.update(op)
	case diff.Replace:
		if err := p.remove(op.Path); err != nil {
			return err
		}
		path := op.Path.Parent().Child(
			vdom.Seg{Kind: op.Node.Kind(), Key: op.Node.Key, Index: op.Index})
		return p.create(path, op.Index, op.Node)
	default:
		return nil
	}
}

func (p *Patcher) parentHandle(path vdom.Path) (backend.Handle, error) {
	parent := path.Parent()
	if len(parent) == 0 {
		return p.cfg.Root, nil
	}
	h, ok := p.handles[parent.String()]
	if !ok {
		return nil, errs.Errorf(errs.BackendApply, parent.String(), "no widget at path")
	}
	return h, nil
}

func (p *Patcher) handle(path vdom.Path) (backend.Handle, error) {
	h, ok := p.handles[path.String()]
	if !ok {
		return nil, errs.Errorf(errs.BackendApply, path.String(), "no widget at path")
	}
	return h, nil
}

// create materializes the subtree rooted at node, indexes it, binds its
// event props, and sequences it to position index among its siblings.
func (p *Patcher) create(path vdom.Path, index int, node vdom.Node) error {
	parent, err := p.parentHandle(path)
	if err != nil {
		return err
	}
	if err := p.materialize(path, node, parent); err != nil {
		return err
	}
	h := p.handles[path.String()]
	if err := p.cfg.Backend.ReparentOrReorder(h, parent, index); err != nil {
		return errs.New(errs.BackendApply, path.String(), err)
	}
	return nil
}

func (p *Patcher) materialize(path vdom.Path, node vdom.Node, parent backend.Handle) error {
	props, eventProps := splitProps(p.resolve(node.Props))
	h, err := p.cfg.Backend.CreateWidget(node.Kind(), props, parent)
	if err != nil {
		return errs.New(errs.BackendApply, path.String(), err)
	}
	key := path.String()
	p.handles[key] = h
	if node.Key != "" {
		parentKey := path.Parent().String()
		if p.keyed[parentKey] == nil {
			p.keyed[parentKey] = make(map[string]backend.Handle)
		}
		p.keyed[parentKey][node.Key] = h
	}
	for name, cb := range eventProps {
		if err := p.bind(path, name, cb); err != nil {
			return err
		}
	}
	for i, child := range node.Children {
		childPath := path.Child(vdom.Seg{Kind: child.Kind(), Key: child.Key, Index: i})
		if err := p.materialize(childPath, child, h); err != nil {
			return err
		}
	}
	return nil
}

func (p *Patcher) resolve(props vdom.Props) vdom.Props {
	if p.cfg.Resolver == nil || props == nil {
		return props
	}
	return p.cfg.Resolver(props)
}

// splitProps separates event props from plain ones.
func splitProps(props vdom.Props) (plain vdom.Props, events map[string]backend.EventFunc) {
	plain = make(vdom.Props, len(props))
	for name, v := range props {
		if IsEventProp(name) && vdom.IsCallback(v) {
			if cb, ok := v.(func(any)); ok {
				if events == nil {
					events = make(map[string]backend.EventFunc)
				}
				events[name] = cb
				continue
			}
			logger.Printf("event prop %s is not a func(any); passing through", name)
		}
		plain[name] = v
	}
	return plain, events
}

func (p *Patcher) bind(path vdom.Path, propName string, cb backend.EventFunc) error {
	h := p.handles[path.String()]
	event := p.cfg.EventName(propName)
	token, err := p.cfg.Backend.BindEvent(h, event, cb)
	if err != nil {
		return errs.New(errs.BackendApply, path.String(), err)
	}
	key := path.String()
	if p.events[key] == nil {
		p.events[key] = make(map[string]backend.UnbindToken)
	}
	p.events[key][propName] = token
	return nil
}

func (p *Patcher) unbind(path vdom.Path, propName string) error {
	key := path.String()
	token, ok := p.events[key][propName]
	if !ok {
		return nil
	}
	delete(p.events[key], propName)
	if err := p.cfg.Backend.UnbindEvent(token); err != nil {
		return errs.New(errs.BackendApply, key, err)
	}
	return nil
}

// remove destroys the widget at path and its subtree. Hook cleanups run
// first, then events unbind, then the backend destroys the widget, then the
// index entries for the whole subtree go away.
func (p *Patcher) remove(path vdom.Path) error {
	h, err := p.handle(path)
	if err != nil {
		return err
	}
	if p.cfg.Dispose != nil {
		p.cfg.Dispose(path)
	}
	prefix := path.String()
	for key, bindings := range p.events {
		if !pathWithin(key, prefix) {
			continue
		}
		for _, token := range bindings {
			if err := p.cfg.Backend.UnbindEvent(token); err != nil {
				return errs.New(errs.BackendApply, key, err)
			}
		}
		delete(p.events, key)
	}
	if err := p.cfg.Backend.DestroyWidget(h); err != nil {
		return errs.New(errs.BackendApply, prefix, err)
	}
	for key := range p.handles {
		if pathWithin(key, prefix) {
			delete(p.handles, key)
		}
	}
	for key := range p.keyed {
		if pathWithin(key, prefix) {
			delete(p.keyed, key)
		}
	}
	if key := path[len(path)-1].Key; key != "" {
		delete(p.keyed[path.Parent().String()], key)
	}
	return nil
}

// pathWithin reports whether the path string key is prefix itself or a
// descendant of it.
func pathWithin(key, prefix string) bool {
	return key == prefix ||
		(strings.HasPrefix(key, prefix) && len(key) > len(prefix) && key[len(prefix)] == '/')
}

func (p *Patcher) move(op diff.Move) error {
	h, err := p.handle(op.Path)
	if err != nil {
		return err
	}
	parent, err := p.parentHandle(op.Path)
	if err != nil {
		return err
	}
	if err := p.cfg.Backend.ReparentOrReorder(h, parent, op.To); err != nil {
		return errs.New(errs.BackendApply, op.Path.String(), err)
	}
	return nil
}

// reorder re-sequences the keyed children of op.Path to the relative order
// of op.Order. Keys without a live widget are skipped; their widgets arrive
// with the create phase.
func (p *Patcher) reorder(op diff.Reorder) error {
	parent, ok := p.handles[op.Path.String()]
	if !ok && len(op.Path) == 0 {
		parent = p.cfg.Root
	} else if !ok {
		return errs.Errorf(errs.BackendApply, op.Path.String(), "no widget at path")
	}
	byKey := p.keyed[op.Path.String()]
	i := 0
	for _, key := range op.Order {
		h, ok := byKey[key]
		if !ok {
			continue
		}
		if err := p.cfg.Backend.ReparentOrReorder(h, parent, i); err != nil {
			return errs.New(errs.BackendApply, op.Path.String(), err)
		}
		i++
	}
	return nil
}

func (p *Patcher) update(op diff.Update) error {
	h, err := p.handle(op.Path)
	if err != nil {
		return err
	}
	changed, eventProps := splitProps(op.Changed)
	var removed []string
	for _, name := range op.Removed {
		if _, bound := p.events[op.Path.String()][name]; bound {
			if err := p.unbind(op.Path, name); err != nil {
				return err
			}
			continue
		}
		removed = append(removed, name)
	}
	// Rebind changed event props: the old binding goes first so the backend
	// never sees two live callbacks for one event.
	for name, cb := range eventProps {
		if err := p.unbind(op.Path, name); err != nil {
			return err
		}
		if err := p.bind(op.Path, name, cb); err != nil {
			return err
		}
	}
	if len(changed) == 0 && len(removed) == 0 {
		return nil
	}
	if err := p.cfg.Backend.SetProps(h, changed, removed); err != nil {
		return errs.New(errs.BackendApply, op.Path.String(), err)
	}
	return nil
}
