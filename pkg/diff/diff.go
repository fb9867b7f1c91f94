package diff

import (
	"sort"

	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/vdom"
)

var logger = logutil.GetLogger("[diff] ")

// Differ computes patch lists. The zero value is a valid differ with no
// resolver. A Differ is not safe for concurrent use; the engine owns one per
// tree and uses it from the owning goroutine only.
type Differ struct {
	// Resolver, if non-nil, maps declared props to backend props before
	// comparison, so that two declared prop sets that resolve identically
	// produce no patch. It must be pure.
	Resolver func(vdom.Props) vdom.Props
	// Stats accumulates operation counters across Diff calls.
	Stats Stats
}

// Stats holds operation counters for introspection.
type Stats struct {
	Diffs    int
	Creates  int
	Updates  int
	Removes  int
	Replaces int
	Moves    int
	Reorders int
	// Skipped counts subtree diffs short-circuited because both sides were
	// the identical immutable value (see vdom.SameRef).
	Skipped int
}

// Diff is a convenience for (&Differ{}).Diff.
func Diff(old, new vdom.Node) []Patch {
	var d Differ
	return d.Diff(old, new)
}

// Diff returns the patch list transforming old into new. For a fixed pair of
// trees the result is identical on every call, including the internal
// ordering of patches: within each reconciled child list, recursive patches
// and Creates come first in new-list order, then Removes in old-list order,
// then Moves from the back of the list toward the front (or a single
// Reorder).
func (d *Differ) Diff(old, new vdom.Node) []Patch {
	d.Stats.Diffs++
	switch {
	case old.IsZero() && new.IsZero():
		return nil
	case old.IsZero():
		d.Stats.Creates++
		return []Patch{Create{rootPath(new), 0, new}}
	case new.IsZero():
		d.Stats.Removes++
		return []Patch{Remove{rootPath(old), 0}}
	}
	path := rootPath(old)
	if !vdom.SameKind(old, new) {
		d.Stats.Replaces++
		return []Patch{Replace{path, 0, new}}
	}
	return d.diffNode(old, new, path)
}

func rootPath(n vdom.Node) vdom.Path {
	return vdom.Path{}.Child(vdom.Seg{Kind: n.Kind(), Key: n.Key, Index: 0})
}

// diffNode diffs two nodes of the same kind at the same path.
func (d *Differ) diffNode(old, new vdom.Node, path vdom.Path) []Patch {
	if vdom.SameRef(old, new) {
		d.Stats.Skipped++
		return nil
	}
	var patches []Patch
	changed, removed := d.diffProps(old.Props, new.Props)
	if len(changed) > 0 || len(removed) > 0 {
		d.Stats.Updates++
		patches = append(patches, Update{path, changed, removed})
	}
	return append(patches, d.diffChildren(old.Children, new.Children, path)...)
}

func (d *Differ) resolve(props vdom.Props) vdom.Props {
	if d.Resolver == nil || props == nil {
		return props
	}
	return d.Resolver(props)
}

// diffProps returns the symmetric difference of two prop maps, after
// resolution. The removed list is sorted for determinism.
func (d *Differ) diffProps(oldProps, newProps vdom.Props) (vdom.Props, []string) {
	op, np := d.resolve(oldProps), d.resolve(newProps)
	var changed vdom.Props
	for k, nv := range np {
		if ov, ok := op[k]; !ok || !vdom.EqualValue(ov, nv) {
			if changed == nil {
				changed = vdom.Props{}
			}
			changed[k] = nv
		}
	}
	var removed []string
	for k := range op {
		if _, ok := np[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return changed, removed
}

func (d *Differ) diffChildren(old, new []vdom.Node, path vdom.Path) []Patch {
	if len(old) == 0 && len(new) == 0 {
		return nil
	}
	if allKeyed(old) && allKeyed(new) {
		return d.diffKeyed(old, new, path)
	}
	return d.diffPositional(old, new, path)
}

// A child list is keyed iff every child carries a key; mixed lists fall back
// to positional reconciliation.
func allKeyed(children []vdom.Node) bool {
	for _, c := range children {
		if c.Key == "" {
			return false
		}
	}
	return true
}

func (d *Differ) diffPositional(old, new []vdom.Node, path vdom.Path) []Patch {
	var patches []Patch
	for i := 0; i < len(old) || i < len(new); i++ {
		switch {
		case i < len(old) && i < len(new):
			o, n := old[i], new[i]
			// The seg carries the old child's key, if any, so that the path
			// names the same widget materialize registered at create time.
			childPath := path.Child(vdom.Seg{Kind: o.Kind(), Key: o.Key, Index: i})
			if !vdom.SameKind(o, n) {
				d.Stats.Replaces++
				patches = append(patches, Replace{childPath, i, n})
			} else {
				patches = append(patches, d.diffNode(o, n, childPath)...)
			}
		case i < len(new):
			n := new[i]
			d.Stats.Creates++
			patches = append(patches,
				Create{path.Child(vdom.Seg{Kind: n.Kind(), Key: n.Key, Index: i}), i, n})
		default:
			o := old[i]
			d.Stats.Removes++
			patches = append(patches,
				Remove{path.Child(vdom.Seg{Kind: o.Kind(), Key: o.Key, Index: i}), i})
		}
	}
	return patches
}

// diffKeyed reconciles two fully keyed child lists. Matched pairs are
// diffed recursively; unmatched new children are created, unmatched old
// children removed. Among the matched children, the longest run whose
// old-index order is already increasing stays stationary; every other
// matched child gets a Move placing it before its next sibling, or, when
// more than half of the matched children would move, a single Reorder for
// the whole list.
func (d *Differ) diffKeyed(old, new []vdom.Node, path vdom.Path) []Patch {
	oldIndex := make(map[string]int, len(old))
	for i, o := range old {
		if _, dup := oldIndex[o.Key]; dup {
			logger.Printf("duplicate key %q under %s; falling back to positional", o.Key, path)
			return d.diffPositional(old, new, path)
		}
		oldIndex[o.Key] = i
	}
	seen := make(map[string]bool, len(new))
	for _, n := range new {
		if seen[n.Key] {
			logger.Printf("duplicate key %q under %s; falling back to positional", n.Key, path)
			return d.diffPositional(old, new, path)
		}
		seen[n.Key] = true
	}

	type matchedChild struct {
		key        string
		oldI, newI int
	}
	var patches []Patch
	var matched []matchedChild
	// Keys matched by identity but replaced due to a kind change; their
	// widgets are destroyed and recreated, so they take no part in the
	// stationary-run computation.
	replaced := make(map[string]bool)

	// Pass 1: recursive diffs and creations, in new-list order.
	for newI, n := range new {
		oldI, ok := oldIndex[n.Key]
		if !ok {
			d.Stats.Creates++
			patches = append(patches,
				Create{path.Child(vdom.Seg{Kind: n.Kind(), Key: n.Key, Index: newI}), newI, n})
			continue
		}
		o := old[oldI]
		if !vdom.SameKind(o, n) {
			// Same key, different kind: destroy and recreate. Emitting
			// Remove+Create (rather than Replace) keeps the position
			// handling uniform when the child also moved.
			d.Stats.Removes++
			d.Stats.Creates++
			patches = append(patches,
				Create{path.Child(vdom.Seg{Kind: n.Kind(), Key: n.Key, Index: newI}), newI, n})
			replaced[n.Key] = true
			continue
		}
		childPath := path.Child(vdom.Seg{Kind: o.Kind(), Key: n.Key, Index: newI})
		patches = append(patches, d.diffNode(o, n, childPath)...)
		matched = append(matched, matchedChild{n.Key, oldI, newI})
	}

	// Pass 2: removals, in old-list order.
	for oldI, o := range old {
		if !seen[o.Key] || replaced[o.Key] {
			d.Stats.Removes++
			patches = append(patches,
				Remove{path.Child(vdom.Seg{Kind: o.Kind(), Key: o.Key, Index: oldI}), oldI})
		}
	}

	// Pass 3: positional patches for matched children outside the longest
	// already-increasing run of old indices.
	if len(matched) > 1 {
		oldOrder := make([]int, len(matched))
		for i, m := range matched {
			oldOrder[i] = m.oldI
		}
		stationary := lisMembers(oldOrder)
		moving := 0
		for i := range matched {
			if !stationary[i] {
				moving++
			}
		}
		switch {
		case moving == 0:
		case moving > len(matched)/2:
			// Most children moved; one Reorder is cheaper for the backend
			// than a cascade of moves.
			d.Stats.Reorders++
			order := make([]string, len(new))
			for i, n := range new {
				order[i] = n.Key
			}
			patches = append(patches, Reorder{path, order})
		default:
			// Walk the matched children from the end and insert each moving
			// child before its next matched sibling. To is computed against
			// a simulation of the child list as it stands when the move
			// applies: removes have run, creates have not, and the moves
			// emitted before this one have landed. Emitting front-to-back
			// instead would aim at slots the still-misplaced children have
			// not vacated yet.
			work := make([]int, len(matched))
			for i := range work {
				work[i] = i
			}
			sort.Slice(work, func(a, b int) bool {
				return matched[work[a]].oldI < matched[work[b]].oldI
			})
			for m := len(matched) - 1; m >= 0; m-- {
				if stationary[m] {
					continue
				}
				pos := indexOf(work, m)
				work = append(work[:pos], work[pos+1:]...)
				to := len(work)
				if m < len(matched)-1 {
					to = indexOf(work, m+1)
				}
				work = append(work, 0)
				copy(work[to+1:], work[to:])
				work[to] = m
				mc := matched[m]
				o := old[mc.oldI]
				d.Stats.Moves++
				patches = append(patches, Move{
					path.Child(vdom.Seg{Kind: o.Kind(), Key: mc.key, Index: mc.oldI}),
					mc.oldI, to})
			}
		}
	}
	return patches
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// lisMembers returns, for a sequence of distinct ints, a membership mask of
// one longest strictly increasing subsequence. The choice among equally long
// subsequences is deterministic (patience sorting with smallest tails).
func lisMembers(seq []int) []bool {
	member := make([]bool, len(seq))
	if len(seq) == 0 {
		return member
	}
	// tails[l] is the index in seq of the smallest tail of any increasing
	// subsequence of length l+1; prev links reconstruct the subsequence.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		member[i] = true
	}
	return member
}
