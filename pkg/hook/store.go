// Package hook implements the per-instance state store behind the Context
// passed to component functions.
//
// Every component occurrence, identified by its instance path, owns a region
// of slots. A slot is addressed by an explicit key or by the ordinal of the
// hook call within the instance's render, so component functions must use
// their hooks in the same order (or with the same keys) on every render. The
// store detects a change in the slot count between two consecutive renders
// of the same path and resets that instance's region instead of silently
// misaligning its state.
//
// The store itself is confined to the engine's owning goroutine. The one
// cross-goroutine entry point is Var.Set and Var.Swap, which marshal the
// write through the scheduler's message queue.
package hook

import (
	"fmt"
	"sort"

	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/vdom"
)

var logger = logutil.GetLogger("[hook] ")

// Scheduler is the part of the render scheduler the store needs: requesting
// a render pass and marshaling work onto the owning goroutine. Both methods
// may be called from any goroutine.
type Scheduler interface {
	RequestRender(path vdom.Path)
	Post(fn func())
}

// Store holds the hook slots of every live component instance of one tree.
// All methods except the Var write path must be called from the engine's
// owning goroutine.
type Store struct {
	sched Scheduler
	// Diag, if non-nil, receives contained diagnostics: unstable instance
	// identity resets and panics from effect cleanups run during disposal.
	Diag func(*errs.Error)

	instances map[string]*instance
	// renderOrder lists the instances rendered in the current pass, parents
	// before children. It drives the effect flush order.
	renderOrder []*instance
	active      *Ctx
}

// NewStore creates an empty store bound to the given scheduler.
func NewStore(sched Scheduler) *Store {
	return &Store{sched: sched, instances: make(map[string]*instance)}
}

type instance struct {
	path vdom.Path
	// pathKey is path.String(), the map key of this instance.
	pathKey string
	slots   map[string]*slot
	effects map[string]*effectSlot
	// effectOrder lists the effect keys registered in the current render, in
	// registration order.
	effectOrder []string
	// slotCount is the number of hook calls (Slot and Effect) observed in
	// the previous completed render. A differing count on the next render
	// triggers an identity reset.
	slotCount int
	rendered  bool
}

type slot struct {
	value      any
	pending    any
	hasPending bool
}

// latest returns the pending value if one is queued, else the committed one.
// Updater functions passed to Swap compose over this, which is what makes
// several queued increments observe each other.
func (s *slot) latest() any {
	if s.hasPending {
		return s.pending
	}
	return s.value
}

type effectSlot struct {
	body    func() func()
	cleanup func()
	deps    []any
	hasDeps bool
	ran     bool
	due     bool
}

func (st *Store) instance(path vdom.Path) *instance {
	key := path.String()
	inst, ok := st.instances[key]
	if !ok {
		inst = &instance{
			path:    path,
			pathKey: key,
			slots:   make(map[string]*slot),
			effects: make(map[string]*effectSlot),
		}
		st.instances[key] = inst
	}
	return inst
}

// BeginRender opens a hook context for one instance within the current pass.
// provided is the chain of context values inherited from the ancestors
// (possibly nil). The returned Ctx is valid until EndRender.
//
// Renders do not nest: the renderer must EndRender each instance before
// beginning the next. It visits parents before children, which is also the
// effect flush order.
func (st *Store) BeginRender(path vdom.Path, provided map[*vdom.ContextKey]any) *Ctx {
	if st.active != nil {
		panic(errs.Errorf(errs.InvalidHookContext, path.String(),
			"render of %s begun while %s is still rendering",
			path, st.active.inst.path))
	}
	inst := st.instance(path)
	inst.effectOrder = inst.effectOrder[:0]
	ctx := &Ctx{store: st, inst: inst, inherited: provided}
	st.active = ctx
	st.renderOrder = append(st.renderOrder, inst)
	return ctx
}

// EndRender closes the context opened by BeginRender and applies the
// slot-count stability check.
func (st *Store) EndRender(ctx *Ctx) {
	if st.active != ctx {
		panic(errs.Errorf(errs.InvalidHookContext, ctx.inst.pathKey,
			"EndRender of a context that is not rendering"))
	}
	st.active = nil
	ctx.closed = true
	inst := ctx.inst
	if inst.rendered && ctx.calls != inst.slotCount {
		st.diag(errs.Errorf(errs.UnstableIdentity, inst.pathKey,
			"hook count changed from %d to %d; resetting instance state",
			inst.slotCount, ctx.calls))
		st.resetInstance(inst)
	}
	inst.slotCount = ctx.calls
	inst.rendered = true
}

// AbortRender discards the active render context, if any, so the next pass
// can begin cleanly after a panic in a component body. The instance keeps
// its previously committed slots; the interrupted render's bookkeeping is
// dropped.
func (st *Store) AbortRender() {
	if st.active == nil {
		return
	}
	st.active.closed = true
	st.active = nil
}

// resetInstance drops an instance's slots and effects after running any
// pending cleanups, leaving it as if never rendered.
func (st *Store) resetInstance(inst *instance) {
	st.runCleanups(inst)
	inst.slots = make(map[string]*slot)
	inst.effects = make(map[string]*effectSlot)
	inst.effectOrder = nil
}

// BeginPass must be called before the first BeginRender of a pass. It folds
// all pending slot writes into committed values, so the whole pass observes
// one consistent snapshot, and resets the flush order.
func (st *Store) BeginPass() {
	st.renderOrder = st.renderOrder[:0]
	for _, inst := range st.instances {
		for _, s := range inst.slots {
			if s.hasPending {
				s.value = s.pending
				s.pending = nil
				s.hasPending = false
			}
		}
	}
}

// HasPending reports whether any slot write is queued but not yet committed.
func (st *Store) HasPending() bool {
	for _, inst := range st.instances {
		for _, s := range inst.slots {
			if s.hasPending {
				return true
			}
		}
	}
	return false
}

// FlushEffects runs the due effects of the instances rendered in the current
// pass, in render order, cleanup before body. Panics in one effect are
// contained and returned; they do not stop the flush.
func (st *Store) FlushEffects() []*errs.Error {
	var errors []*errs.Error
	for _, inst := range st.renderOrder {
		for _, key := range inst.effectOrder {
			e := inst.effects[key]
			if e == nil || !e.due {
				continue
			}
			e.due = false
			if err := runEffect(inst, key, e); err != nil {
				errors = append(errors, err)
			}
		}
	}
	return errors
}

func runEffect(inst *instance, key string, e *effectSlot) (err *errs.Error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Errorf(errs.Effect, inst.pathKey,
				"effect %q panicked: %v", key, r)
		}
	}()
	if e.cleanup != nil {
		cleanup := e.cleanup
		e.cleanup = nil
		cleanup()
	}
	e.cleanup = e.body()
	e.ran = true
	return nil
}

// DisposeInstance runs the instance's effect cleanups and deletes all its
// slots. The patcher calls this before destroying the instance's widget, so
// cleanups always observe a live widget tree. The path is free for reuse by
// an unrelated instance afterwards.
func (st *Store) DisposeInstance(path vdom.Path) {
	key := path.String()
	inst, ok := st.instances[key]
	if !ok {
		return
	}
	st.runCleanups(inst)
	delete(st.instances, key)
	for i, r := range st.renderOrder {
		if r == inst {
			st.renderOrder = append(st.renderOrder[:i], st.renderOrder[i+1:]...)
			break
		}
	}
}

// DisposeBelow disposes every instance at or below prefix, children before
// parents.
func (st *Store) DisposeBelow(prefix vdom.Path) {
	var doomed []*instance
	for _, inst := range st.instances {
		if inst.path.HasPrefix(prefix) {
			doomed = append(doomed, inst)
		}
	}
	sort.Slice(doomed, func(i, j int) bool {
		if len(doomed[i].path) != len(doomed[j].path) {
			return len(doomed[i].path) > len(doomed[j].path)
		}
		return doomed[i].pathKey < doomed[j].pathKey
	})
	for _, inst := range doomed {
		st.DisposeInstance(inst.path)
	}
}

// runCleanups runs pending effect cleanups, in registration order for the
// effects seen in the last render and then any stragglers in key order,
// containing panics as diagnostics.
func (st *Store) runCleanups(inst *instance) {
	keys := inst.effectOrder
	if len(keys) < len(inst.effects) {
		seen := make(map[string]bool, len(keys))
		for _, key := range keys {
			seen[key] = true
		}
		var rest []string
		for key := range inst.effects {
			if !seen[key] {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		keys = append(append([]string(nil), keys...), rest...)
	}
	for _, key := range keys {
		e := inst.effects[key]
		if e == nil || e.cleanup == nil {
			continue
		}
		cleanup := e.cleanup
		e.cleanup = nil
		func() {
			defer func() {
				if r := recover(); r != nil {
					st.diag(errs.Errorf(errs.Effect, inst.pathKey,
						"cleanup of effect %q panicked: %v", key, r))
				}
			}()
			cleanup()
		}()
	}
}

// InstanceCount returns the number of live instances, for introspection.
func (st *Store) InstanceCount() int { return len(st.instances) }

func (st *Store) diag(err *errs.Error) {
	logger.Println(err)
	if st.Diag != nil {
		st.Diag(err)
	}
}

// Ctx is the vdom.Context handed to one component invocation. It is only
// valid between the BeginRender and EndRender calls that bracket it.
type Ctx struct {
	store     *Store
	inst      *instance
	inherited map[*vdom.ContextKey]any
	own       map[*vdom.ContextKey]any
	// calls counts hook calls this render, for the stability check; ordinal
	// keys are derived from it.
	calls  int
	closed bool
}

var _ vdom.Context = (*Ctx)(nil)

func (c *Ctx) checkOpen(op string) {
	if c.closed || c.store.active != c {
		panic(errs.Errorf(errs.InvalidHookContext, c.inst.pathKey,
			"%s called outside the render pass of its instance", op))
	}
}

// nextKey resolves an explicit or ordinal slot key and counts the call.
func (c *Ctx) nextKey(key string) string {
	ordinal := fmt.Sprintf("#%d", c.calls)
	c.calls++
	if key == "" {
		return ordinal
	}
	return key
}

// Slot implements vdom.Context.
func (c *Ctx) Slot(key string, init any) vdom.Var {
	c.checkOpen("Slot")
	key = c.nextKey(key)
	s, ok := c.inst.slots[key]
	if !ok {
		s = &slot{value: init}
		c.inst.slots[key] = s
	}
	return stateVar{c.store, c.inst, key}
}

// Effect implements vdom.Context.
func (c *Ctx) Effect(key string, deps []any, body func() func()) {
	c.checkOpen("Effect")
	key = c.nextKey(key)
	e, ok := c.inst.effects[key]
	if !ok {
		e = &effectSlot{}
		c.inst.effects[key] = e
	}
	e.body = body
	e.due = !e.ran || deps == nil || !e.hasDeps || depsChanged(e.deps, deps)
	e.deps = deps
	e.hasDeps = deps != nil
	c.inst.effectOrder = append(c.inst.effectOrder, key)
}

func depsChanged(old, new []any) bool {
	if len(old) != len(new) {
		return true
	}
	for i := range old {
		if !vdom.EqualValue(old[i], new[i]) {
			return true
		}
	}
	return false
}

// Provide implements vdom.Context.
func (c *Ctx) Provide(key *vdom.ContextKey, value any) {
	c.checkOpen("Provide")
	if c.own == nil {
		c.own = make(map[*vdom.ContextKey]any)
	}
	c.own[key] = value
}

// Provided implements vdom.Context.
func (c *Ctx) Provided(key *vdom.ContextKey) (any, bool) {
	if v, ok := c.own[key]; ok {
		return v, true
	}
	v, ok := c.inherited[key]
	return v, ok
}

// ProvidedAll returns the context values visible to this instance's
// children. The renderer passes it to the BeginRender of each child.
func (c *Ctx) ProvidedAll() map[*vdom.ContextKey]any {
	if len(c.own) == 0 {
		return c.inherited
	}
	merged := make(map[*vdom.ContextKey]any, len(c.inherited)+len(c.own))
	for k, v := range c.inherited {
		merged[k] = v
	}
	for k, v := range c.own {
		merged[k] = v
	}
	return merged
}

// Path returns the instance path this context renders.
func (c *Ctx) Path() vdom.Path { return c.inst.path }

// stateVar is the Var for one slot. It is a value type and may be captured
// by event callbacks and goroutines; the write methods marshal through the
// scheduler.
type stateVar struct {
	store *Store
	inst  *instance
	key   string
}

// Get implements vdom.Var.
func (v stateVar) Get() any {
	return v.slot().value
}

// Set implements vdom.Var.
func (v stateVar) Set(val any) {
	v.store.sched.Post(func() {
		s := v.slot()
		s.pending = val
		s.hasPending = true
	})
	v.store.sched.RequestRender(v.inst.path)
}

// Swap implements vdom.Var.
func (v stateVar) Swap(f func(old any) any) {
	v.store.sched.Post(func() {
		s := v.slot()
		s.pending = f(s.latest())
		s.hasPending = true
	})
	v.store.sched.RequestRender(v.inst.path)
}

// Put implements vdom.Var.
func (v stateVar) Put(val any) {
	v.slot().value = val
}

func (v stateVar) slot() *slot {
	// The slot may have been replaced by an identity reset; re-resolve by
	// key so a stale Var never writes into a dropped slot.
	if s, ok := v.inst.slots[v.key]; ok {
		return s
	}
	s := &slot{}
	v.inst.slots[v.key] = s
	return s
}
