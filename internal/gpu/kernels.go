package gpu

import (
	_ "embed"
	"fmt"
)

// Embedded WGSL kernel sources, resolved statically by kernel_key.

//go:embed kernels/binary_add_scalar.wgsl
var binaryAddScalarWGSL string

//go:embed kernels/binary_add_vec4.wgsl
var binaryAddVec4WGSL string

//go:embed kernels/binary_sub_scalar.wgsl
var binarySubScalarWGSL string

//go:embed kernels/binary_sub_vec4.wgsl
var binarySubVec4WGSL string

//go:embed kernels/binary_mul_scalar.wgsl
var binaryMulScalarWGSL string

//go:embed kernels/binary_mul_vec4.wgsl
var binaryMulVec4WGSL string

//go:embed kernels/binary_div_scalar.wgsl
var binaryDivScalarWGSL string

//go:embed kernels/binary_div_vec4.wgsl
var binaryDivVec4WGSL string

//go:embed kernels/gelu_scalar.wgsl
var geluScalarWGSL string

//go:embed kernels/gelu_vec4.wgsl
var geluVec4WGSL string

//go:embed kernels/softmax_scalar.wgsl
var softmaxScalarWGSL string

//go:embed kernels/layer_norm_scalar.wgsl
var layerNormScalarWGSL string

//go:embed kernels/conv1d_scalar.wgsl
var conv1dScalarWGSL string

//go:embed kernels/index_write_scalar.wgsl
var indexWriteScalarWGSL string

//go:embed kernels/matmul_scalar.wgsl
var matmulScalarWGSL string

//go:embed kernels/matmul_vec4.wgsl
var matmulVec4WGSL string

// kernelSources is the static kernel_key -> WGSL source table. Keys follow
// "<name>_<element>" (e.g. "binary_add_scalar", "matmul_vec4"); kernels with
// only one variant (softmax, layer_norm, conv1d, index_write) are scalar-only.
var kernelSources = map[string]string{
	"binary_add_scalar": binaryAddScalarWGSL,
	"binary_add_vec4":   binaryAddVec4WGSL,
	"binary_sub_scalar": binarySubScalarWGSL,
	"binary_sub_vec4":   binarySubVec4WGSL,
	"binary_mul_scalar": binaryMulScalarWGSL,
	"binary_mul_vec4":   binaryMulVec4WGSL,
	"binary_div_scalar": binaryDivScalarWGSL,
	"binary_div_vec4":   binaryDivVec4WGSL,
	"gelu_scalar":       geluScalarWGSL,
	"gelu_vec4":         geluVec4WGSL,
	"softmax_scalar":    softmaxScalarWGSL,
	"layer_norm_scalar": layerNormScalarWGSL,
	"conv1d_scalar":     conv1dScalarWGSL,
	"index_write_scalar": indexWriteScalarWGSL,
	"matmul_scalar":     matmulScalarWGSL,
	"matmul_vec4":       matmulVec4WGSL,
}

// ErrKernelNotFound is returned by ResolveKernel for an unregistered key.
type ErrKernelNotFound struct{ KernelKey string }

func (e *ErrKernelNotFound) Error() string {
	return fmt.Sprintf("gpu: no kernel registered for key %q", e.KernelKey)
}

// ResolveKernel maps a kernel_key to its WGSL source. Resolution is static:
// every key this engine can produce is baked into kernelSources at build
// time, so a miss means the caller composed a key no operation declares.
func ResolveKernel(kernelKey string) (string, error) {
	src, ok := kernelSources[kernelKey]
	if !ok {
		return "", &ErrKernelNotFound{KernelKey: kernelKey}
	}
	return src, nil
}
