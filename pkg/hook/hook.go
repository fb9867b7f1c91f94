package hook

import "src.uiwiz.dev/pkg/vdom"

// StateVar is a typed view of a state slot. It is cheap to copy and may be
// captured by event callbacks; Set and Swap may be called from any
// goroutine.
type StateVar[T any] struct{ v vdom.Var }

// State returns the state variable stored under key for the rendering
// instance, creating it with init on first use. An empty key uses the
// ordinal of the hook call, in which case the call order must be the same on
// every render of the instance.
func State[T any](c vdom.Context, key string, init T) StateVar[T] {
	return StateVar[T]{c.Slot(key, init)}
}

// Get returns the value committed for the current pass.
func (s StateVar[T]) Get() T { return s.v.Get().(T) }

// Set queues val as the slot's next value and schedules a render pass.
func (s StateVar[T]) Set(val T) { s.v.Set(val) }

// Swap queues an update computed by f from the slot's latest queued or
// committed value, and schedules a render pass. Queued Swaps compose, so
// calling Swap n times with an increment always advances the value by n.
func (s StateVar[T]) Swap(f func(old T) T) {
	s.v.Swap(func(old any) any { return f(old.(T)) })
}

// RefVar is a typed mutable cell that does not trigger renders.
type RefVar[T any] struct{ v vdom.Var }

// Ref returns the ref stored under key, creating it with init on first use.
// Unlike State, writing a ref schedules nothing; use it for values the UI
// does not depend on, like widget handles or timers.
func Ref[T any](c vdom.Context, key string, init T) RefVar[T] {
	return RefVar[T]{c.Slot(key, init)}
}

// Get returns the current value.
func (r RefVar[T]) Get() T { return r.v.Get().(T) }

// Put stores val without scheduling a render. It must only be called from
// the engine's owning goroutine.
func (r RefVar[T]) Put(val T) { r.v.Put(val) }

// Effect registers a side effect to run after the pass commits, iff deps
// changed by shallow inequality since the previous render. Nil deps run on
// every pass the instance renders in; empty non-nil deps run once. The
// returned cleanup (possibly nil) runs before the next invocation of the
// body and before the instance is disposed.
func Effect(c vdom.Context, key string, deps []any, body func() func()) {
	c.Effect(key, deps, body)
}

// Use returns the innermost value provided for key by an ancestor, or
// fallback if no ancestor provided one.
func Use[T any](c vdom.Context, key *vdom.ContextKey, fallback T) T {
	if v, ok := c.Provided(key); ok {
		return v.(T)
	}
	return fallback
}

// Provide makes value available to the rendering instance's descendants via
// Use.
func Provide[T any](c vdom.Context, key *vdom.ContextKey, value T) {
	c.Provide(key, value)
}
