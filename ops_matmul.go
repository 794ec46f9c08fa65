package ratchet

import "github.com/philpax/ratchet/gpucore"

// MatmulOp is a batched GEMM: dst[b] = lhs[b] @ rhs[b] (+ bias), with
// optional operand transposition.
type MatmulOp struct {
	lhs, rhs, bias *Tensor // bias is nil when no bias was supplied
	transA, transB bool
}

// Matmul returns the batched matrix product of t and rhs. Both must be
// rank 3 ([batch, rows, cols]), or rank 2 (treated as a single batch).
// transA/transB swap the row/column interpretation of the respective
// operand without materializing a transposed copy.
func (t Tensor) Matmul(rhs Tensor, transA, transB bool) (Tensor, error) {
	op := &MatmulOp{lhs: &t, rhs: &rhs, transA: transA, transB: transB}
	return buildOp(op, t.Device())
}

// MatmulBias is Matmul with a per-output-column bias (shape [n]) added to
// every row.
func (t Tensor) MatmulBias(rhs, bias Tensor, transA, transB bool) (Tensor, error) {
	op := &MatmulOp{lhs: &t, rhs: &rhs, bias: &bias, transA: transA, transB: transB}
	return buildOp(op, t.Device())
}

// Gemm is the general fused matmul entry point matching the original
// engine's gemm signature: op(lhs) @ op(rhs) (+ bias), optionally
// transposing the result. transOut is implemented without a separate
// transpose kernel, via the identity (A'@B')^T = B'^T @ A'^T: computing
// transOut swaps the two operands and flips each one's own transpose
// flag, so the existing MatmulOp and its kernels are reused unchanged.
// bias, when supplied, is always checked against the final output's last
// dimension, whichever operand ends up contributing it after the swap.
func (t Tensor) Gemm(rhs Tensor, bias *Tensor, transA, transB, transOut bool) (Tensor, error) {
	if !transOut {
		if bias != nil {
			return t.MatmulBias(rhs, *bias, transA, transB)
		}
		return t.Matmul(rhs, transA, transB)
	}
	if bias != nil {
		return rhs.MatmulBias(t, *bias, !transB, !transA)
	}
	return rhs.Matmul(t, !transB, !transA)
}

func (op *MatmulOp) Srcs() []*Tensor {
	srcs := []*Tensor{op.lhs, op.rhs}
	if op.bias != nil {
		srcs = append(srcs, op.bias)
	}
	return srcs
}

// dims3 returns (batch, rows, cols) for a rank-2 or rank-3 shape, treating
// a rank-2 shape as having an implicit batch of 1.
func dims3(s Shape) (batch, rows, cols uint32, ok bool) {
	switch s.Rank() {
	case 2:
		return 1, s[0], s[1], true
	case 3:
		return s[0], s[1], s[2], true
	default:
		return 0, 0, 0, false
	}
}

func (op *MatmulOp) operandDims() (batch, m, k, n uint32, err error) {
	lhsBatch, lhsRows, lhsCols, ok := dims3(op.lhs.Shape())
	if !ok {
		return 0, 0, 0, 0, &ShapeError{Op: "matmul", Message: "lhs must be rank 2 or rank 3"}
	}
	rhsBatch, rhsRows, rhsCols, ok := dims3(op.rhs.Shape())
	if !ok {
		return 0, 0, 0, 0, &ShapeError{Op: "matmul", Message: "rhs must be rank 2 or rank 3"}
	}
	if op.transA {
		lhsRows, lhsCols = lhsCols, lhsRows
	}
	if op.transB {
		rhsRows, rhsCols = rhsCols, rhsRows
	}
	if lhsCols != rhsRows {
		return 0, 0, 0, 0, &ShapeError{Op: "matmul", Message: "lhs inner dimension must match rhs inner dimension"}
	}
	if lhsBatch != rhsBatch && lhsBatch != 1 && rhsBatch != 1 {
		return 0, 0, 0, 0, &ShapeError{Op: "matmul", Message: "batch dimensions must match or be 1"}
	}
	batch = lhsBatch
	if batch == 1 {
		batch = rhsBatch
	}
	return batch, lhsRows, lhsCols, rhsCols, nil
}

func (op *MatmulOp) CheckShapes() error {
	_, _, _, n, err := op.operandDims()
	if err != nil {
		return err
	}
	if op.bias != nil {
		if op.bias.Shape().Rank() != 1 || op.bias.Shape()[0] != n {
			return &ShapeError{Op: "matmul", Message: "bias must be rank 1 with length n"}
		}
	}
	return nil
}

func (op *MatmulOp) CheckDtypes() error {
	if op.lhs.DType() != op.rhs.DType() {
		return &DtypeError{Op: "matmul", Message: "lhs and rhs must share a dtype"}
	}
	if op.lhs.DType() != F32 {
		return &DtypeError{Op: "matmul", Message: "matmul requires F32 operands"}
	}
	if op.bias != nil && op.bias.DType() != F32 {
		return &DtypeError{Op: "matmul", Message: "bias must be F32"}
	}
	return nil
}

func (op *MatmulOp) ComputeView() (StorageView, error) {
	batch, m, _, n, err := op.operandDims()
	if err != nil {
		return StorageView{}, err
	}
	outShape := Shape{batch, m, n}
	return StorageView{Shape: outShape, DType: op.lhs.DType(), Strides: StridesFrom(outShape)}, nil
}

func (op *MatmulOp) KernelName() string { return "matmul" }

// KernelElement selects the vec4 reduction fast path when k is divisible
// by 4; the dispatch geometry (one thread per output element) is the same
// either way, only the inner reduction loop unrolls.
func (op *MatmulOp) KernelElement(dst *Tensor) gpucore.KernelElement {
	_, _, k, _, err := op.operandDims()
	if err != nil {
		return gpucore.Scalar
	}
	if k%4 == 0 {
		return gpucore.Vec4
	}
	return gpucore.Scalar
}

func (op *MatmulOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

func (op *MatmulOp) SupportsInplace() bool { return false }

func (op *MatmulOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.Dispatch(dst.Shape().Numel(), 64)
}

func (op *MatmulOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.Ternary
}

func (op *MatmulOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	batch, m, k, n, err := op.operandDims()
	if err != nil {
		return 0, err
	}
	w := newMetadataWriter()
	w.putU32(batch)
	w.putU32(m)
	w.putU32(k)
	w.putU32(n)
	w.putU32(boolToU32(op.transA))
	w.putU32(boolToU32(op.transB))
	w.putU32(boolToU32(op.bias != nil))
	w.putU32(0)
	return arena.Write(w.buf), nil
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
