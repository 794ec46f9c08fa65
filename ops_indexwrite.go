package ratchet

import "github.com/philpax/ratchet/gpucore"

// IndexWriteOp overwrites a subregion of base with src's contents, starting
// at the per-axis offsets in start. It always executes inplace against
// base's own storage: the kernel assumes dst already holds base's values
// and only touches the written subregion.
type IndexWriteOp struct {
	base, src *Tensor
	start     Shape
}

// IndexWrite returns a tensor equal to t with the subregion starting at
// start (one offset per axis, same rank as t) overwritten by src.
func (t Tensor) IndexWrite(src Tensor, start Shape) (Tensor, error) {
	op := &IndexWriteOp{base: &t, src: &src, start: start.Clone()}
	return buildOp(op, t.Device())
}

func (op *IndexWriteOp) Srcs() []*Tensor { return []*Tensor{op.base, op.src} }

func (op *IndexWriteOp) CheckShapes() error {
	base := op.base.Shape()
	src := op.src.Shape()
	if src.Rank() != base.Rank() {
		return &ShapeError{Op: "index_write", Message: "src rank must match base rank"}
	}
	if len(op.start) != base.Rank() {
		return &ShapeError{Op: "index_write", Message: "start must have one offset per base dimension"}
	}
	for i := range base {
		if op.start[i]+src[i] > base[i] {
			return &ShapeError{Op: "index_write", Message: "src subregion exceeds base bounds"}
		}
	}
	if base.Rank() > 4 {
		return &ShapeError{Op: "index_write", Message: "base rank exceeds 4"}
	}
	return nil
}

func (op *IndexWriteOp) CheckDtypes() error {
	if op.base.DType() != op.src.DType() {
		return &DtypeError{Op: "index_write", Message: "base and src must share a dtype"}
	}
	return nil
}

func (op *IndexWriteOp) ComputeView() (StorageView, error) {
	base := op.base.Shape()
	return StorageView{Shape: base.Clone(), DType: op.base.DType(), Strides: StridesFrom(base)}, nil
}

func (op *IndexWriteOp) KernelName() string { return "index_write" }

// KernelElement is always Scalar: only a scalar kernel variant exists,
// since the written subregion's shape is rarely vec4-aligned.
func (op *IndexWriteOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *IndexWriteOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

// SupportsInplace is always true: the op is only correct when dst is
// base's own buffer, already populated with base's values.
func (op *IndexWriteOp) SupportsInplace() bool { return true }

// AliasSource returns base unconditionally: dst must reuse base's buffer
// even when base is a Const the planner's generic inplace search would
// otherwise never consider (it only scans nodes in the current schedule).
func (op *IndexWriteOp) AliasSource() *Tensor { return op.base }

func (op *IndexWriteOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.Dispatch(op.src.Shape().Numel(), 64)
}

// StorageBindGroupLayout is always Unary: the kernel binds one read-only
// buffer (src) and one read-write buffer (dst, aliased to base) regardless
// of the inplace flag.
func (op *IndexWriteOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.Unary
}

func (op *IndexWriteOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	w := newMetadataWriter()
	w.putU32Vec4(shapeVec4(op.src.Shape(), 1))
	w.putU32Vec4(stridesVec4(StridesFrom(op.base.Shape()), 0))
	w.putU32Vec4(shapeVec4(op.start, 0))
	w.putU32(op.src.Shape().Numel())
	w.putU32(0)
	w.putU32(0)
	w.putU32(0)
	return arena.Write(w.buf), nil
}
