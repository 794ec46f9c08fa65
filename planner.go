package ratchet

// Plan is the output of the allocation planner: for every node in a
// schedule, whether its output storage aliases a source (a ViewOp, or an
// inplace fold chosen by the planner) or needs a freshly allocated buffer,
// and the schedule position after which a node's buffer is no longer read
// by any later step. Lifetime is derived entirely from each node's position
// in the schedule, not from incremental refcounting: the whole schedule is
// known upfront, so the planner computes every node's last reader in one
// pass.
type Plan struct {
	order   []Tensor
	posOf   map[TensorID]int
	inplace map[TensorID]*Tensor // dst id -> source tensor whose buffer it reuses
	lastUse map[TensorID]int     // node id -> last schedule index reading it
	release map[int][]Tensor     // schedule index -> nodes whose buffer is free after it runs
}

// planAllocation computes the allocation plan for order, a topological
// schedule produced by Schedule. targets are the tensors the caller
// ultimately wants resolved; their storage must outlive the schedule, so
// they are never released or folded away even if a later step could
// otherwise reuse their buffer.
func planAllocation(order []Tensor, targets []Tensor) *Plan {
	posOf := make(map[TensorID]int, len(order))
	for i, t := range order {
		posOf[t.ID()] = i
	}

	isTarget := make(map[TensorID]bool, len(targets))
	for _, t := range targets {
		isTarget[t.ID()] = true
	}

	lastUse := make(map[TensorID]int, len(order))
	for i, t := range order {
		for _, src := range t.Op().Srcs() {
			pos, ok := posOf[src.ID()]
			if !ok {
				continue // src resolved outside this schedule (Const, cross-device To)
			}
			_ = pos
			if cur, ok := lastUse[src.ID()]; !ok || i > cur {
				lastUse[src.ID()] = i
			}
		}
	}
	for i, t := range order {
		id := t.ID()
		switch {
		case isTarget[id]:
			lastUse[id] = len(order) // survives past the end of the schedule
		default:
			if _, ok := lastUse[id]; !ok {
				lastUse[id] = i // produced, never read again: free right after its own step
			}
		}
	}

	inplace := make(map[TensorID]*Tensor)
	for i, t := range order {
		op := t.Op()
		if _, isView := op.(ViewOp); isView {
			continue // aliases ViewSource directly; never a pool buffer of its own
		}
		if alias, isAlias := op.(AliasOp); isAlias {
			s := *alias.AliasSource()
			inplace[t.ID()] = &s
			continue // op dictates its own alias target; the generic search never runs
		}
		if !op.SupportsInplace() {
			continue
		}
		for _, src := range op.Srcs() {
			if _, inOrder := posOf[src.ID()]; !inOrder {
				continue // never fold into a Const or cross-device tensor's buffer
			}
			if !src.Shape().Equal(t.Shape()) {
				continue
			}
			if lastUse[src.ID()] != i {
				continue // src still has a later reader; folding would corrupt it
			}
			s := *src
			inplace[t.ID()] = &s
			break
		}
	}

	// Every aliased node (a ViewOp, or an inplace fold) shares its buffer
	// with whatever it ultimately aliases, rather than owning a distinct
	// one. Releasing by node id, as the old release loop did, frees a
	// buffer the moment its folded-away id reaches its own lastUse, even
	// though a later alias of the same buffer is still live. owner resolves
	// each node to the node holding the buffer at the end of its alias
	// chain; managed records whether that buffer was pool-allocated by this
	// schedule at all (false once a chain bottoms out at a tensor resolved
	// outside the schedule, e.g. index_write's Const base). order is
	// topological, so every alias target a node in order points at has
	// already been resolved by the time that node is visited, making a
	// single forward pass sufficient.
	owner := make(map[TensorID]TensorID, len(order))
	managed := make(map[TensorID]bool, len(order))
	for _, t := range order {
		id := t.ID()
		op := t.Op()

		var alias *Tensor
		if view, isView := op.(ViewOp); isView {
			alias = view.ViewSource()
		} else {
			alias = inplace[id]
		}

		if alias == nil {
			owner[id] = id
			managed[id] = true
			continue
		}
		if o, ok := owner[alias.ID()]; ok {
			owner[id] = o
			managed[id] = managed[o]
			continue
		}
		owner[id] = id // alias resolved outside this schedule: not pool-managed
		managed[id] = false
	}

	// Fold every node's lastUse and target status onto its buffer's owner,
	// so the owner's buffer survives as long as the longest-lived member of
	// its alias chain, not just the owner's own direct readers.
	ownerLastUse := make(map[TensorID]int, len(order))
	ownerIsTarget := make(map[TensorID]bool, len(order))
	for _, t := range order {
		id := t.ID()
		o := owner[id]
		if !managed[o] {
			continue
		}
		if cur, ok := ownerLastUse[o]; !ok || lastUse[id] > cur {
			ownerLastUse[o] = lastUse[id]
		}
		if isTarget[id] {
			ownerIsTarget[o] = true
		}
	}

	release := make(map[int][]Tensor)
	for _, t := range order {
		id := t.ID()
		if owner[id] != id || !managed[id] {
			continue // storage belongs to another node's buffer; released (if ever) via its owner
		}
		if ownerIsTarget[id] {
			continue // a member of this buffer's alias chain must survive past the schedule
		}
		if at := ownerLastUse[id]; at < len(order) {
			release[at] = append(release[at], t)
		}
	}

	return &Plan{order: order, posOf: posOf, inplace: inplace, lastUse: lastUse, release: release}
}

// InplaceSource returns the source tensor whose buffer t's output reuses,
// or nil if t is allocated a fresh buffer.
func (p *Plan) InplaceSource(t Tensor) *Tensor { return p.inplace[t.ID()] }

// ReleasedAfter returns the nodes (from this schedule) whose buffer is no
// longer read by anything once step i has executed.
func (p *Plan) ReleasedAfter(i int) []Tensor { return p.release[i] }
