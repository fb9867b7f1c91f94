package vdom

// Context provides a component access to its per-instance state during a
// render pass. It is implemented by the hook package and passed to every
// Comp invocation; using a Context outside the render pass it was created
// for is an error.
//
// The methods here are deliberately untyped; the hook package provides typed
// wrappers (hook.State, hook.Effect, hook.Ref, hook.Use).
type Context interface {
	// Slot returns the state variable stored at key, creating it with the
	// initial value on first use. An empty key assigns an ordinal key from
	// the call order within this render.
	Slot(key string, init any) Var
	// Effect registers a side effect to run after the pass commits, iff deps
	// changed by shallow inequality since the previous render. A nil deps
	// runs on every flush; an empty non-nil deps runs once.
	Effect(key string, deps []any, body func() func())
	// Provide makes a value available to this instance's descendants via
	// Provided.
	Provide(key *ContextKey, value any)
	// Provided returns the innermost value provided for key by an ancestor
	// (or this instance), and whether one was provided.
	Provided(key *ContextKey) (any, bool)
}

// Var is an untyped state variable owned by one instance path.
type Var interface {
	// Get returns the value committed for the current pass.
	Get() any
	// Set records a pending value and schedules a render pass. It may be
	// called from any goroutine; the write is marshaled onto the engine's
	// owning goroutine.
	Set(v any)
	// Swap is like Set with an updater: f receives the latest
	// pending-or-committed value at the time the write is applied, so
	// several queued Swaps compose.
	Swap(f func(old any) any)
	// Put stores a value directly without scheduling a render. It must only
	// be called from the engine's owning goroutine; it exists for refs and
	// for view-internal bookkeeping.
	Put(v any)
}

// ContextKey identifies a provided value; see Context.Provide. Distinct keys
// are distinct identities even if their names collide.
type ContextKey struct{ name string }

// NewContextKey creates a new context key with a name used in diagnostics.
func NewContextKey(name string) *ContextKey { return &ContextKey{name} }

func (k *ContextKey) String() string { return k.name }
