package ratchet

import (
	"sync/atomic"

	"github.com/philpax/ratchet/gpucore"
)

// TensorID is a process-unique opaque identity. Two tensors are equal iff
// their ids match; ids are never reused.
type TensorID uint64

var tensorIDCounter atomic.Uint64

// nextTensorID allocates the next process-unique tensor identity.
func nextTensorID() TensorID {
	return TensorID(tensorIDCounter.Add(1))
}

// Op is the contract every lazy operation implements (the "operation
// protocol"). A Const tensor carries a nil Op: it has no sources and its
// storage is populated at construction rather than during resolution.
type Op interface {
	// Srcs returns this op's operand tensors, in argument order.
	Srcs() []*Tensor

	// CheckShapes validates shape invariants eagerly; called at
	// construction time before the output view is computed.
	CheckShapes() error

	// CheckDtypes validates dtype invariants eagerly.
	CheckDtypes() error

	// ComputeView infers the producer's StorageView from its sources.
	ComputeView() (StorageView, error)

	// KernelName returns the base kernel identifier, e.g. "binary_add".
	KernelName() string

	// KernelElement chooses the vectorization width for dst.
	KernelElement(dst *Tensor) gpucore.KernelElement

	// KernelKey composes the kernel name and chosen element width into
	// the resolver lookup key, e.g. "binary_add_vec4".
	KernelKey(inplace bool, dst *Tensor) string

	// SupportsInplace reports whether the planner may fold dst into one
	// of this op's source buffers.
	SupportsInplace() bool

	// CalculateDispatch computes the workgroup counts for dst.
	CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount

	// StorageBindGroupLayout names the bind-group layout shape this op
	// requires, given the planner's inplace decision.
	StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind

	// WriteMetadata appends this op's packed uniform record to arena and
	// returns the byte offset at which it was written.
	WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error)
}

// ViewOp is implemented by operations that only reinterpret an existing
// buffer's shape and strides (permute, reshape) and dispatch no kernel at
// all. The compiler checks for this interface before pipeline selection;
// when present, dst's storage is aliased directly to ViewSource's storage
// and every other Op method on it goes unused.
type ViewOp interface {
	Op

	// ViewSource returns the tensor whose storage dst aliases.
	ViewSource() *Tensor
}

// AliasOp is implemented by operations whose output always reuses one
// specific source's storage, unconditionally, rather than leaving the
// choice to the planner's generic inplace search (IndexWriteOp: dst must
// be base's own buffer, even when base is a Const the scheduler never
// added to the order the generic search scans). Unlike ViewOp, an AliasOp
// still dispatches a kernel against the aliased storage.
type AliasOp interface {
	Op

	// AliasSource returns the tensor whose storage dst always reuses.
	AliasSource() *Tensor
}

