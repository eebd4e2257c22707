package geom

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func TestHalfRoundTrip(t *testing.T) {
	buf := make([]uint16, 9)
	// Values exactly representable in f16 survive unchanged.
	exact := []Vec3{{0, 0, 0}, {1, -1, 0.5}, {1.5, -0.25, 2048}}
	for i, v := range exact {
		PackHalf3(buf, i, v)
	}
	for i, v := range exact {
		expect.EQ(t, UnpackHalf3(buf, i), v)
	}
}

func TestHalfRounding(t *testing.T) {
	buf := make([]uint16, 3)
	v := Vec3{0.1, 1e-5, 70000}
	PackHalf3(buf, 0, v)
	got := UnpackHalf3(buf, 0)
	// The readback is the rounded value, and RoundHalf predicts it exactly.
	expect.EQ(t, got, RoundHalf(v))
	assert.InDelta(t, 0.1, got.X, 1e-4)
	assert.NotEqual(t, float32(0.1), got.X)
}
