package bitonic

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simkit/collide/compute"
)

func TestPackUnpack(t *testing.T) {
	p := Pack(0xdeadbeef, 42)
	assert.Equal(t, uint32(0xdeadbeef), Hash(p))
	assert.Equal(t, uint32(42), Payload(p))
	assert.Equal(t, SentinelPair, Pack(^uint32(0), ^uint32(0)))
}

func sortOn(t *testing.T, dev *compute.Device, pairs []uint64) {
	t.Helper()
	s := dev.NewStream()
	defer s.Close()
	require.NoError(t, Sort(s, pairs))
	require.NoError(t, s.Wait())
}

func TestSortMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// Group widths below n/2 force the general and final passes; widths at
	// or above it keep the whole sort in the first pass.
	for _, width := range []int{1, 2, 4, 256} {
		dev := compute.NewDevice(compute.DeviceConfig{MaxGroupWidth: width})
		for _, n := range []int{2, 4, 8, 64, 256, 1024} {
			pairs := make([]uint64, n)
			for i := range pairs {
				pairs[i] = Pack(rng.Uint32()%64, uint32(i))
			}
			want := append([]uint64(nil), pairs...)
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

			sortOn(t, dev, pairs)
			assert.Equal(t, want, pairs, "width=%d n=%d", width, n)
		}
	}
}

func TestSortTiesBreakByPayload(t *testing.T) {
	dev := compute.NewDevice(compute.DeviceConfig{})
	pairs := []uint64{Pack(7, 3), Pack(7, 1), Pack(7, 2), Pack(7, 0)}
	sortOn(t, dev, pairs)
	assert.Equal(t, []uint64{Pack(7, 0), Pack(7, 1), Pack(7, 2), Pack(7, 3)}, pairs)
}

func TestSortSentinelsLast(t *testing.T) {
	dev := compute.NewDevice(compute.DeviceConfig{MaxGroupWidth: 2})
	pairs := []uint64{SentinelPair, Pack(5, 0), SentinelPair, Pack(1, 1),
		Pack(3, 2), SentinelPair, SentinelPair, Pack(0, 3)}
	sortOn(t, dev, pairs)
	assert.Equal(t, []uint64{Pack(0, 3), Pack(1, 1), Pack(3, 2), Pack(5, 0),
		SentinelPair, SentinelPair, SentinelPair, SentinelPair}, pairs)
}

func TestSortRejectsNonPowerOfTwo(t *testing.T) {
	dev := compute.NewDevice(compute.DeviceConfig{})
	s := dev.NewStream()
	defer s.Close()
	err := Sort(s, make([]uint64, 3))
	assert.ErrorIs(t, err, compute.ErrBufferShape)
	assert.NoError(t, s.Wait())
}

func TestSortTrivialLengths(t *testing.T) {
	dev := compute.NewDevice(compute.DeviceConfig{})
	s := dev.NewStream()
	defer s.Close()
	assert.NoError(t, Sort(s, nil))
	one := []uint64{Pack(9, 9)}
	assert.NoError(t, Sort(s, one))
	assert.NoError(t, s.Wait())
	assert.Equal(t, Pack(9, 9), one[0])
}
