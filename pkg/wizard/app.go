// Package wizard is the render engine's front door: it owns the scheduler
// loop, the hook store, the differ, and the patcher, and turns state writes
// into committed render passes.
//
// An App confines all engine work to the goroutine that calls Run, which
// must be the widget backend's owning thread for toolkits that have one.
// State setters may be called from any goroutine; they marshal through the
// loop's message queue and coalesce into single passes.
package wizard

import (
	"sort"
	"time"

	"src.uiwiz.dev/pkg/backend"
	"src.uiwiz.dev/pkg/diff"
	"src.uiwiz.dev/pkg/errs"
	"src.uiwiz.dev/pkg/hook"
	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/patch"
	"src.uiwiz.dev/pkg/vdom"
)

var logger = logutil.GetLogger("[wizard] ")

// Config configures an App.
type Config struct {
	// Backend is the widget backend to render into. Required.
	Backend backend.Backend
	// Root is the backend widget the tree mounts into. Required.
	Root backend.Handle
	// Comp is the root component. Required.
	Comp vdom.Comp
	// Props are the props passed to the root component on every pass.
	Props vdom.Props
	// Resolver, if non-nil, maps declared props to backend props. Both the
	// differ and the patcher use it, so declared prop sets that resolve
	// identically never touch the backend.
	Resolver func(vdom.Props) vdom.Props
	// EventName maps event prop names to backend event names. Nil means
	// patch.DefaultEventName.
	EventName func(string) string
	// OnError, if non-nil, receives every contained engine error: failed
	// passes, effect panics, and identity resets. Nil means errors are only
	// logged.
	OnError func(*errs.Error)
	// Observer, if non-nil, receives a snapshot after every committed pass.
	Observer Observer
}

// App is one live render tree.
type App struct {
	cfg     Config
	lp      *loop
	store   *hook.Store
	differ  *diff.Differ
	patcher *patch.Patcher

	// Owned by the loop goroutine.
	committed vdom.Node
	mounts    map[string][]vdom.Path
	// liveInst, while a pass applies, holds the canonical paths of the
	// instances rendered by that pass. Disposal skips them: a component that
	// rendered nothing this pass loses its widget but keeps its state.
	liveInst map[string]bool
	passSeq  uint64
}

// New creates an App. Nothing renders until Run is called.
func New(cfg Config) *App {
	a := &App{cfg: cfg, mounts: make(map[string][]vdom.Path)}
	a.lp = newLoop(a.runPass)
	a.store = hook.NewStore(a)
	a.store.Diag = a.report
	a.differ = &diff.Differ{Resolver: cfg.Resolver}
	a.patcher = patch.New(patch.Config{
		Backend:   cfg.Backend,
		Root:      cfg.Root,
		Resolver:  cfg.Resolver,
		EventName: cfg.EventName,
		Dispose:   a.disposeMounted,
	})
	return a
}

// Run renders the initial pass and then serves the engine loop until Stop is
// called. It must run on the backend's owning thread.
func (a *App) Run() error {
	a.runPass()
	return a.lp.run()
}

// Stop makes Run return with err after the current pass, if one is running.
// It may be called from any goroutine.
func (a *App) Stop(err error) {
	a.lp.ret(err)
}

// RequestRender implements hook.Scheduler. Requests coalesce; the path is
// accepted for future partial re-rendering but the engine currently
// re-renders from the root and relies on diffing to keep patches small.
func (a *App) RequestRender(path vdom.Path) {
	a.lp.requestRender()
}

// Post implements hook.Scheduler: fn runs on the loop goroutine before the
// next pass.
func (a *App) Post(fn func()) {
	a.lp.post(fn)
}

// Committed returns the committed widget tree as an immutable snapshot view.
// It must be called from the loop goroutine (e.g. an effect or observer).
func (a *App) Committed() TreeNode {
	return snapshotTree(a.committed)
}

// runPass runs one render, diff, patch, flush cycle. On failure the
// previously committed tree stays the diff base for the next pass.
func (a *App) runPass() {
	a.store.BeginPass()

	if got, want := a.patcher.HandleCount(), widgetCount(a.committed); got != want {
		a.report(errs.Errorf(errs.DiffInconsistency, "",
			"patcher tracks %d widgets but committed tree has %d", got, want))
		return
	}

	tree, exp, err := a.expandRoot()
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			a.report(e)
		} else {
			a.report(errs.New(errs.Render, "", err))
		}
		return
	}

	a.liveInst = instanceSet(exp.mounts)
	patches := a.differ.Diff(a.committed, tree)
	if err := a.patcher.Apply(patches); err != nil {
		if e, ok := err.(*errs.Error); ok {
			a.report(e)
		} else {
			a.report(errs.New(errs.BackendApply, "", err))
		}
		return
	}

	// Instances that survived the patch phase but were not rendered this
	// pass have been unmounted without losing a widget of their own (their
	// parent kept rendering, without them). Dispose them now.
	a.sweepUnmounted()

	a.committed = tree
	a.mounts = exp.mounts
	a.liveInst = nil
	a.passSeq++

	if a.cfg.Observer != nil {
		strs := make([]string, len(patches))
		for i, p := range patches {
			strs[i] = p.String()
		}
		a.cfg.Observer.PassCommitted(Snapshot{
			Seq:     a.passSeq,
			Time:    time.Now(),
			Tree:    snapshotTree(tree),
			Patches: strs,
			Stats:   a.differ.Stats,
		})
	}

	for _, err := range a.store.FlushEffects() {
		a.report(err)
	}

	// Effects may have written state synchronously; those writes are
	// already in the store, so make sure a pass follows.
	if a.store.HasPending() {
		a.lp.requestRender()
	}
}

// disposeMounted runs hook cleanups for the component instances mounted at
// or below a widget path about to be destroyed, except those the in-flight
// pass rendered again. The patcher calls it before the destroy, so cleanups
// observe live widgets.
func (a *App) disposeMounted(widgetPath vdom.Path) {
	prefix := widgetPath.String()
	for key, instances := range a.mounts {
		if !mountWithin(key, prefix) {
			continue
		}
		// Inner instances first.
		for i := len(instances) - 1; i >= 0; i-- {
			if !a.liveInst[instances[i].String()] {
				a.store.DisposeInstance(instances[i])
			}
		}
		delete(a.mounts, key)
	}
}

// sweepUnmounted disposes the instances of the previous pass that neither
// rendered this pass nor sat under a removed widget, deepest first.
func (a *App) sweepUnmounted() {
	var doomed []vdom.Path
	for _, instances := range a.mounts {
		for _, inst := range instances {
			if !a.liveInst[inst.String()] {
				doomed = append(doomed, inst)
			}
		}
	}
	sort.Slice(doomed, func(i, j int) bool { return len(doomed[i]) > len(doomed[j]) })
	for _, inst := range doomed {
		a.store.DisposeInstance(inst)
	}
}

func instanceSet(mounts map[string][]vdom.Path) map[string]bool {
	set := make(map[string]bool)
	for _, instances := range mounts {
		for _, inst := range instances {
			set[inst.String()] = true
		}
	}
	return set
}

// mountWithin reports whether the widget path string key is prefix itself or
// a descendant of it.
func mountWithin(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return len(key) > len(prefix) && key[:len(prefix)] == prefix && key[len(prefix)] == '/'
}

func (a *App) report(err *errs.Error) {
	logger.Println(err)
	if a.cfg.OnError != nil {
		a.cfg.OnError(err)
	}
}
