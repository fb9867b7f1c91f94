package vdom

import "reflect"

// Props maps prop names to values.
//
// Prop values form a closed variant: primitives (booleans, numbers,
// strings), callbacks (any func value), nested Props, and []any lists.
// Anything else is compared with reflect.DeepEqual as a fallback, but such
// values are outside the supported contract.
type Props map[string]any

// EqualValue reports whether two prop values are equal under the engine's
// comparison rules: callbacks compare by function identity, nested Props and
// lists compare structurally, and primitives compare by ==.
func EqualValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() == reflect.Func || bv.Kind() == reflect.Func {
		return av.Kind() == reflect.Func && bv.Kind() == reflect.Func &&
			av.Pointer() == bv.Pointer()
	}
	switch a := a.(type) {
	case Props:
		b, ok := b.(Props)
		return ok && a.Equal(b)
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !EqualValue(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	if av.Type() != bv.Type() {
		return false
	}
	if av.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Equal reports whether two prop maps are equal under EqualValue.
func (p Props) Equal(q Props) bool {
	if len(p) != len(q) {
		return false
	}
	for k, v := range p {
		w, ok := q[k]
		if !ok || !EqualValue(v, w) {
			return false
		}
	}
	return true
}

// IsCallback reports whether a prop value is a callback.
func IsCallback(v any) bool {
	return v != nil && reflect.ValueOf(v).Kind() == reflect.Func
}
