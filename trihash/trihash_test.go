package trihash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

const S = candidates.Sentinel

// Two right triangles along x: T0 around the origin, T1 shifted by +2.
func twoTriangleMesh() (compute.Positions, compute.Triangles) {
	verts := []float32{
		0, 0, 0, 1, 0, 0, 0, 1, 0,
		2, 0, 0, 3, 0, 0, 2, 1, 0,
	}
	tris := []uint32{0, 1, 2, 3, 4, 5}
	return compute.Positions{Data: verts, Enc: compute.Float32x3, N: 6},
		compute.Triangles{Data: tris, Enc: compute.U32x3, M: 2}
}

func newTestIndex(t *testing.T, cellSize float32, maxM int) (*compute.Device, *Index) {
	t.Helper()
	dev := compute.NewDevice(compute.DeviceConfig{})
	x, err := New(dev, Config{CellSize: cellSize, MaxTriangles: maxM})
	require.NoError(t, err)
	return dev, x
}

func run(t *testing.T, dev *compute.Device, fn func(s *compute.Stream) error) {
	t.Helper()
	s := dev.NewStream()
	defer s.Close()
	require.NoError(t, fn(s))
	require.NoError(t, s.Wait())
}

func TestFindNearestTrianglePerQuery(t *testing.T) {
	collider, tris := twoTriangleMesh()
	dev, x := newTestIndex(t, 1, 2)

	queries := compute.Positions{Data: []float32{0.5, 0.1, 0, 2.5, 0.1, 0}, Enc: compute.Float32x3, N: 2}
	cand := make([]uint32, 2*2)
	candidates.FillSentinel(cand)
	run(t, dev, func(s *compute.Stream) error {
		if err := x.Build(s, collider, tris); err != nil {
			return err
		}
		return x.FindCandidates(s, FindOpts{Collider: collider, Tris: tris, Queries: &queries, Candidates: cand})
	})
	assert.Equal(t, []uint32{0, 1}, cand[0:2])
	assert.Equal(t, []uint32{1, 0}, cand[2:4])

	// Both queries sit inside their triangle's plane projection, in the
	// plane: the best candidate is at distance zero.
	q0 := geom.Vec3{X: 0.5, Y: 0.1}
	assert.InDelta(t, 0.0, geom.USDTriangle(q0,
		geom.Vec3{}, geom.Vec3{X: 1}, geom.Vec3{Y: 1}), 1e-7)
}

func TestFindSelfModeExcludesOwnTriangles(t *testing.T) {
	// Two triangles sharing the edge 1-2 in the unit square.
	collider := compute.Positions{
		Data: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		Enc:  compute.Float32x3, N: 4,
	}
	tris := compute.Triangles{Data: []uint32{0, 1, 2, 1, 3, 2}, Enc: compute.U32x3, M: 2}
	dev, x := newTestIndex(t, 10, 2)

	cand := make([]uint32, 4*2)
	candidates.FillSentinel(cand)
	run(t, dev, func(s *compute.Stream) error {
		if err := x.Build(s, collider, tris); err != nil {
			return err
		}
		return x.FindCandidates(s, FindOpts{Collider: collider, Tris: tris, Candidates: cand})
	})
	// Corner vertices see only the opposite triangle; the shared-edge
	// vertices belong to both and get empty rows.
	assert.Equal(t, []uint32{1, S}, cand[0:2])
	assert.Equal(t, []uint32{S, S}, cand[2:4])
	assert.Equal(t, []uint32{S, S}, cand[4:6])
	assert.Equal(t, []uint32{0, S}, cand[6:8])
}

func TestFindConnectedVerticesExcluded(t *testing.T) {
	collider, tris := twoTriangleMesh()
	dev, x := newTestIndex(t, 1, 2)

	queries := compute.Positions{Data: []float32{0.5, 0.1, 0}, Enc: compute.Float32x3, N: 1}
	cand := []uint32{S, S}
	conn := []uint32{3} // any triangle touching vertex 3 is out
	run(t, dev, func(s *compute.Stream) error {
		if err := x.Build(s, collider, tris); err != nil {
			return err
		}
		return x.FindCandidates(s, FindOpts{
			Collider: collider, Tris: tris, Queries: &queries,
			Candidates: cand, Connected: conn,
		})
	})
	assert.Equal(t, []uint32{0, S}, cand)
}

func TestFindSeedsFromRow(t *testing.T) {
	collider, tris := twoTriangleMesh()
	dev, x := newTestIndex(t, 1, 2)

	queries := compute.Positions{Data: []float32{0.5, 0.1, 0}, Enc: compute.Float32x3, N: 1}
	cand := []uint32{S, S}
	run(t, dev, func(s *compute.Stream) error {
		if err := x.Build(s, collider, tris); err != nil {
			return err
		}
		return x.FindCandidates(s, FindOpts{Collider: collider, Tris: tris, Queries: &queries, Candidates: cand})
	})
	want := append([]uint32(nil), cand...)

	// A second find seeded with the previous answer reproduces it.
	run(t, dev, func(s *compute.Stream) error {
		return x.FindCandidates(s, FindOpts{Collider: collider, Tris: tris, Queries: &queries, Candidates: cand})
	})
	assert.Equal(t, want, cand)
}

// Bucket overflow is lossy by design; the frame counter must rotate the loss
// across builds. Twenty coincident triangles overflow one cell's bucket, and
// consecutive builds keep consecutive windows of them.
func TestBuildRotatesBucketLoss(t *testing.T) {
	const m = 20
	verts := []float32{0.4, 0.4, 0.4, 0.5, 0.4, 0.4, 0.4, 0.5, 0.4}
	collider := compute.Positions{Data: verts, Enc: compute.Float32x3, N: 3}
	idx := make([]uint32, 0, 3*m)
	for i := 0; i < m; i++ {
		idx = append(idx, 0, 1, 2)
	}
	tris := compute.Triangles{Data: idx, Enc: compute.U32x3, M: m}

	dev, x := newTestIndex(t, 1, m)
	queries := compute.Positions{Data: []float32{0.45, 0.45, 0.45}, Enc: compute.Float32x3, N: 1}

	rowSet := func() map[uint32]bool {
		cand := make([]uint32, 8)
		candidates.FillSentinel(cand)
		run(t, dev, func(s *compute.Stream) error {
			return x.FindCandidates(s, FindOpts{Collider: collider, Tris: tris, Queries: &queries, Candidates: cand})
		})
		set := map[uint32]bool{}
		for _, v := range cand {
			if v != S {
				set[v] = true
			}
		}
		return set
	}

	run(t, dev, func(s *compute.Stream) error { return x.Build(s, collider, tris) })
	assert.Positive(t, x.Dropped())
	first := rowSet()
	require.Len(t, first, 8)
	for g := uint32(0); g < 8; g++ {
		assert.True(t, first[g], "build 0 must keep triangle %d", g)
	}

	run(t, dev, func(s *compute.Stream) error { return x.Build(s, collider, tris) })
	second := rowSet()
	require.Len(t, second, 8)
	for g := uint32(1); g < 9; g++ {
		assert.True(t, second[g], "build 1 must keep triangle %d", g)
	}
}

func TestBuildCapacityAndShapeErrors(t *testing.T) {
	collider, tris := twoTriangleMesh()
	dev, x := newTestIndex(t, 1, 1)
	s := dev.NewStream()
	defer s.Close()
	err := x.Build(s, collider, tris)
	assert.ErrorIs(t, err, compute.ErrCapacityExceeded)
	require.NoError(t, s.Wait())

	_, x2 := newTestIndex(t, 1, 2)
	s2 := dev.NewStream()
	defer s2.Close()
	require.NoError(t, x2.Build(s2, collider, tris))
	require.NoError(t, s2.Wait())
	// Mismatched triangle count against the indexed build.
	err = x2.FindCandidates(s2, FindOpts{
		Collider: collider,
		Tris:     compute.Triangles{Data: tris.Data[:3], Enc: compute.U32x3, M: 1},
		Candidates: make([]uint32, 6),
	})
	assert.ErrorIs(t, err, compute.ErrBufferShape)
	// Candidate rows must divide by the query count.
	err = x2.FindCandidates(s2, FindOpts{Collider: collider, Tris: tris, Candidates: make([]uint32, 7)})
	assert.ErrorIs(t, err, compute.ErrBufferShape)
	require.NoError(t, s2.Wait())
}

func TestSizeofBuffers(t *testing.T) {
	dev := compute.NewDevice(compute.DeviceConfig{})
	arena, err := compute.NewArena(SizeofBuffers(500, 16))
	require.NoError(t, err)
	defer arena.Release() // nolint: errcheck
	x, err := New(dev, Config{CellSize: 1, BucketSize: 16, MaxTriangles: 500, Allocator: arena})
	require.NoError(t, err)
	assert.Equal(t, 16, x.BucketSize())
	x.Close()
}
