package ratchet

import (
	"math/rand/v2"

	"github.com/philpax/ratchet/cpubuf"
)

// Randn constructs a Const tensor of the given shape filled with standard
// normal samples (mean 0, variance 1), always generated on the host. A GPU
// device request is honored by uploading the sampled bytes afterward, not
// by sampling on-device: matching the original engine this is distilled
// from, which never generates random data in a compute kernel.
func Randn(shape Shape, device Device) (Tensor, error) {
	n := int(shape.Numel())
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rand.NormFloat64())
	}
	buf, err := cpubuf.FromSlice(data, n)
	if err != nil {
		return Tensor{}, err
	}
	return FromData(buf, shape, F32, device)
}
