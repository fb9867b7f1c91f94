package wizard

import (
	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/vdom"
)

// ChildrenProp is the prop under which a component receives the children
// declared on its node, as a []vdom.Node.
const ChildrenProp = "children"

// expansion is the per-pass result of expanding the declared tree into a
// pure widget tree.
type expansion struct {
	// mounts maps widget path strings to the component instances rendered at
	// that widget. Nested components stack: a component returning another
	// component contributes two instance paths under the same widget root.
	// Components that rendered nothing are recorded under their parent
	// widget's path, so removing the parent still disposes them.
	mounts map[string][]vdom.Path
}

func (e *expansion) mount(widgetPath string, instances []vdom.Path) {
	if len(instances) > 0 {
		e.mounts[widgetPath] = append(e.mounts[widgetPath], instances...)
	}
}

// expandRoot renders the root component into a widget tree. A panic in a
// component body aborts the expansion and is returned as an error; the
// committed tree stays untouched in that case.
func (a *App) expandRoot() (tree vdom.Node, exp *expansion, err error) {
	exp = &expansion{mounts: make(map[string][]vdom.Path)}
	defer func() {
		if r := recover(); r != nil {
			a.store.AbortRender()
			if e, ok := r.(*errs.Error); ok {
				err = e
				return
			}
			err = errs.Errorf(errs.Render, "", "component panicked: %v", r)
		}
	}()
	root := vdom.C(a.cfg.Comp, a.cfg.Props)
	tree = a.expand(root, nil, 0, 0, nil, exp)
	return tree, exp, nil
}

// expand turns one declared node into a widget node, rendering components as
// it descends.
//
// base is the widget path of the parent position. declIndex is the node's
// position among its declared siblings and feeds component instance paths,
// so a component keeps its state when an earlier sibling renders nothing.
// slotIndex is the position among the siblings that produced widgets and
// feeds widget paths, which must agree with the positions the differ sees.
func (a *App) expand(node vdom.Node, base vdom.Path, declIndex, slotIndex int, provided map[*vdom.ContextKey]any, exp *expansion) vdom.Node {
	var instances []vdom.Path
	instBase := base
	for node.Comp != nil {
		instPath := instBase.Child(vdom.Seg{Kind: node.Kind(), Key: node.Key, Index: declIndex})
		instances = append(instances, instPath)
		instBase = instPath
		key := node.Key

		ctx := a.store.BeginRender(instPath, provided)
		out := node.Comp(ctx, compProps(node))
		a.store.EndRender(ctx)
		provided = ctx.ProvidedAll()

		if out.IsZero() {
			// The component rendered nothing this pass; its hook state
			// persists under the parent widget.
			exp.mount(base.String(), instances)
			return vdom.Node{}
		}
		// The component's key identifies its output among siblings unless
		// the output carries its own.
		if out.Key == "" && key != "" {
			out = out.WithKey(key)
		}
		node = out
	}
	widgetPath := base.Child(vdom.Seg{Kind: node.Kind(), Key: node.Key, Index: slotIndex})
	exp.mount(widgetPath.String(), instances)
	if len(node.Children) > 0 {
		children := make([]vdom.Node, 0, len(node.Children))
		for i, child := range node.Children {
			expanded := a.expand(child, widgetPath, i, len(children), provided, exp)
			if !expanded.IsZero() {
				children = append(children, expanded)
			}
		}
		node.Children = children
	}
	return node
}

// compProps builds the props a component body receives: the declared props
// plus the declared children under ChildrenProp.
func compProps(node vdom.Node) vdom.Props {
	if len(node.Children) == 0 {
		return node.Props
	}
	props := make(vdom.Props, len(node.Props)+1)
	for k, v := range node.Props {
		props[k] = v
	}
	props[ChildrenProp] = node.Children
	return props
}

// widgetCount counts the widgets in a committed tree, for the consistency
// check against the patcher's index.
func widgetCount(n vdom.Node) int {
	if n.IsZero() {
		return 0
	}
	count := 1
	for _, c := range n.Children {
		count += widgetCount(c)
	}
	return count
}
