// Package cloudgen produces deterministic point clouds for tests and
// benchmarks. Coordinates are derived from farmhash of the element index,
// so a (seed, n) pair names the same cloud on every machine and every run;
// candidate rows computed from it are bit-reproducible.
package cloudgen

import (
	farm "github.com/dgryski/go-farm"
)

// unit returns a deterministic value in [0, 1) for (seed, lane).
func unit(seed, lane uint64) float32 {
	h := farm.Hash64WithSeed(nil, seed^lane*0x9e3779b97f4a7c15)
	return float32(h>>40) / float32(1<<24)
}

// Packed returns n positions with f32x3 packed layout, uniform in a cube of
// the given extent centred at the origin.
func Packed(seed uint64, n int, extent float32) []float32 {
	out := make([]float32, 3*n)
	for i := 0; i < n; i++ {
		for l := 0; l < 3; l++ {
			out[3*i+l] = (unit(seed, uint64(3*i+l)) - 0.5) * extent
		}
	}
	return out
}

// Aligned widens a packed buffer to f32x3-aligned layout (16-byte stride,
// zeroed pad lane).
func Aligned(packed []float32) []float32 {
	n := len(packed) / 3
	out := make([]float32, 4*n)
	for i := 0; i < n; i++ {
		copy(out[4*i:4*i+3], packed[3*i:3*i+3])
	}
	return out
}

// Jitter displaces every lane of a packed buffer by up to ±amplitude,
// deterministically per (seed, frame). It models frame-to-frame motion for
// reuse-pass benchmarks.
func Jitter(packed []float32, seed, frame uint64, amplitude float32) {
	for i := range packed {
		packed[i] += (unit(seed^0xfeed, frame*uint64(len(packed))+uint64(i)) - 0.5) * 2 * amplitude
	}
}
