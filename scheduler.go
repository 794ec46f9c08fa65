package ratchet

// Schedule computes a topological execution order for the work needed to
// resolve every tensor in targets: a node appears only after every tensor
// its Op depends on, and already-resolved tensors (Consts, or tensors that
// reached their device through To) are excluded since there is nothing left
// to compute for them. Each node appears at most once even if several
// targets share it as a common ancestor.
func Schedule(targets []Tensor) ([]Tensor, error) {
	visited := make(map[TensorID]bool)
	order := make([]Tensor, 0)

	var visit func(t Tensor) error
	visit = func(t Tensor) error {
		if visited[t.ID()] {
			return nil
		}
		visited[t.ID()] = true
		if t.IsResolved() {
			return nil
		}
		op := t.Op()
		if op == nil {
			return &OperationError{Op: "schedule", Message: "tensor has neither storage nor a producing op"}
		}
		for _, src := range op.Srcs() {
			if err := visit(*src); err != nil {
				return err
			}
		}
		order = append(order, t)
		return nil
	}

	for _, t := range targets {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return order, nil
}
