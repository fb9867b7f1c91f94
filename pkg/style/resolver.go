package style

import (
	"strconv"
	"strings"

	"src.uiwiz.dev/pkg/vdom"
)

// ClassProp is the prop name carrying a node's class string.
const ClassProp = "class"

// Resolver resolves class strings against a token table, a current
// breakpoint, and a theme. It caches resolutions per (classes, breakpoint,
// theme).
//
// A Resolver is not safe for concurrent use; the engine uses it from the
// owning goroutine, and breakpoint or theme changes must be marshaled there
// too (see wizard.App.Post).
type Resolver struct {
	tokens     *Tokens
	breakpoint string
	theme      string
	dark       bool
	cache      map[string]vdom.Props
}

// NewResolver creates a Resolver over the given tokens, at breakpoint "md"
// and the "light" theme. Nil tokens mean DefaultTokens.
func NewResolver(tokens *Tokens) *Resolver {
	if tokens == nil {
		tokens = DefaultTokens()
	}
	return &Resolver{
		tokens:     tokens,
		breakpoint: "md",
		theme:      "light",
		cache:      make(map[string]vdom.Props),
	}
}

// SetBreakpoint switches the active breakpoint and drops the cache. The
// caller re-renders afterwards; the differ then picks up exactly the props
// the new breakpoint changes.
func (r *Resolver) SetBreakpoint(bp string) {
	if r.breakpoint == bp {
		return
	}
	r.breakpoint = bp
	r.cache = make(map[string]vdom.Props)
}

// Breakpoint returns the active breakpoint.
func (r *Resolver) Breakpoint() string { return r.breakpoint }

// SetTheme switches the theme: its name keys the cache, dark gates "dark:"
// classes, and non-nil overrides replace the token table.
func (r *Resolver) SetTheme(theme *Theme) {
	r.theme = theme.Name
	r.dark = theme.Dark
	r.tokens = theme.tokens(r.tokens)
	r.cache = make(map[string]vdom.Props)
}

// Resolve maps declared props to backend props: the ClassProp entry is
// replaced by the props its classes resolve to, with explicitly declared
// props winning over class-derived ones. Props without a class string pass
// through unchanged. This is the engine's Resolver contract, so it must stay
// pure with respect to its inputs.
func (r *Resolver) Resolve(props vdom.Props) vdom.Props {
	classes, ok := props[ClassProp].(string)
	if !ok {
		return props
	}
	resolved := r.Classes(classes)
	out := make(vdom.Props, len(props)+len(resolved))
	for k, v := range resolved {
		out[k] = v
	}
	for k, v := range props {
		if k != ClassProp {
			out[k] = v
		}
	}
	return out
}

// Classes resolves a class string to props. The result is cached and must
// not be mutated.
func (r *Resolver) Classes(classes string) vdom.Props {
	cacheKey := classes + "\x00" + r.breakpoint + "\x00" + r.theme
	if props, ok := r.cache[cacheKey]; ok {
		return props
	}
	resolved := vdom.Props{}
	for _, cls := range strings.Fields(classes) {
		r.class(cls, resolved)
	}
	r.cache[cacheKey] = resolved
	return resolved
}

func (r *Resolver) class(cls string, resolved vdom.Props) {
	// Responsive prefixes apply at their breakpoint and above.
	if i := strings.IndexByte(cls, ':'); i >= 0 {
		if prefix := cls[:i]; breakpointPrefix(prefix) {
			if breakpointIndex(r.breakpoint) < breakpointIndex(prefix) {
				return
			}
			cls = cls[i+1:]
		}
	}
	if rest, ok := strings.CutPrefix(cls, "dark:"); ok {
		if !r.dark {
			return
		}
		cls = rest
	}
	if rest, ok := strings.CutPrefix(cls, "hover:"); ok {
		// Only hover backgrounds are supported; they map to the widget's
		// active background.
		if bg, ok := r.classProps(rest)["bg"]; ok {
			resolved["activeBg"] = bg
		}
		return
	}
	for k, v := range r.classProps(cls) {
		resolved[k] = v
	}
}

func breakpointPrefix(s string) bool {
	for _, bp := range breakpointOrder {
		if s == bp {
			return true
		}
	}
	return false
}

// classProps maps one bare class to props. Unknown classes resolve to
// nothing.
func (r *Resolver) classProps(cls string) vdom.Props {
	t := r.tokens
	switch {
	case strings.HasPrefix(cls, "bg-"):
		return vdom.Props{"bg": t.Color(cls[3:])}
	case strings.HasPrefix(cls, "text-"):
		rest := cls[5:]
		if size, ok := t.FontSize[rest]; ok {
			return vdom.Props{"fontSize": size}
		}
		return vdom.Props{"fg": t.Color(rest)}
	case strings.HasPrefix(cls, "p-"):
		v := t.Spacing[cls[2:]]
		return vdom.Props{"padx": v, "pady": v}
	case strings.HasPrefix(cls, "px-"):
		return vdom.Props{"padx": t.Spacing[cls[3:]]}
	case strings.HasPrefix(cls, "py-"):
		return vdom.Props{"pady": t.Spacing[cls[3:]]}
	case strings.HasPrefix(cls, "m-"):
		return vdom.Props{"margin": t.Spacing[cls[2:]]}
	case strings.HasPrefix(cls, "mx-"):
		return vdom.Props{"marginX": t.Spacing[cls[3:]]}
	case strings.HasPrefix(cls, "my-"):
		return vdom.Props{"marginY": t.Spacing[cls[3:]]}
	case strings.HasPrefix(cls, "w-"):
		if cls[2:] == "full" {
			return vdom.Props{"widthFull": true}
		}
		return vdom.Props{"width": t.Spacing[cls[2:]]}
	case strings.HasPrefix(cls, "h-"):
		if cls[2:] == "full" {
			return vdom.Props{"heightFull": true}
		}
		return vdom.Props{"height": t.Spacing[cls[2:]]}
	case cls == "flex":
		return vdom.Props{"layout": "horizontal"}
	case cls == "flex-col":
		return vdom.Props{"layout": "vertical"}
	case strings.HasPrefix(cls, "gap-"):
		return vdom.Props{"spacing": t.Spacing[cls[4:]]}
	case cls == "items-center":
		return vdom.Props{"alignItems": "center"}
	case cls == "justify-center":
		return vdom.Props{"justify": "center"}
	case cls == "hidden":
		return vdom.Props{"visible": false}
	case cls == "block":
		return vdom.Props{"visible": true}
	case strings.HasPrefix(cls, "font-"):
		if w, ok := t.FontWeight[cls[5:]]; ok {
			return vdom.Props{"fontWeight": w}
		}
		return nil
	case cls == "rounded":
		return vdom.Props{"borderRadius": t.BorderRadius["default"]}
	case strings.HasPrefix(cls, "rounded-"):
		if v, ok := t.BorderRadius[cls[8:]]; ok {
			return vdom.Props{"borderRadius": v}
		}
		return vdom.Props{"borderRadius": t.BorderRadius["default"]}
	case cls == "border":
		return vdom.Props{"borderWidth": 1}
	case strings.HasPrefix(cls, "border-"):
		if n, err := strconv.Atoi(cls[7:]); err == nil {
			return vdom.Props{"borderWidth": n}
		}
		return nil
	}
	return nil
}
