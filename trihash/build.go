package trihash

import (
	"math"
	"sync/atomic"

	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// Build (re)indexes the mesh. Every triangle hashes itself into the bucket of
// each cell its AABB overlaps; a cell's atomic counter hands out slots and
// arrivals past the bucket width are dropped. The triangle count of this
// build becomes the hash modulus for the matching finds.
//
// Thread g handles triangle (step+g) mod m rather than g itself. The rotation
// reshuffles arrival order every frame, so bucket-overflow loss lands on
// different triangles from one build to the next instead of starving a fixed
// set.
func (x *Index) Build(s *compute.Stream, collider compute.Positions, tris compute.Triangles) error {
	readP, err := collider.Reader()
	if err != nil {
		return err
	}
	readT, err := tris.Reader()
	if err != nil {
		return err
	}
	m := tris.M
	if m > x.maxM {
		return compute.CapacityExceededf("trihash build: %d triangles, index capacity %d", m, x.maxM)
	}
	x.m = m
	step := x.step
	x.step++
	if m == 0 {
		return nil
	}

	var (
		buckets  = x.buckets.Slice()
		counter  = x.counter.Slice()[:m]
		bucket   = uint32(x.bucket)
		cellSize = x.cellSize
		modulus  = uint32(m)
		nVerts   = uint32(collider.N)
	)

	if err := s.Dispatch(compute.Kernel{
		Name: "triResetBuckets",
		Grid: int(bucket) * m,
		Thread: func(i int) {
			buckets[i] = candidates.Sentinel
		},
	}); err != nil {
		return err
	}
	if err := s.Dispatch(compute.Kernel{
		Name: "triResetCounters",
		Grid: m,
		Thread: func(i int) {
			counter[i] = 0
		},
	}); err != nil {
		return err
	}
	return s.Dispatch(compute.Kernel{
		Name: "triFill",
		Grid: m,
		Thread: func(gid int) {
			g := (step + uint32(gid)) % modulus
			a, b, c := readT(int(g))
			if a >= nVerts || b >= nVerts || c >= nVerts {
				return
			}
			va, vb, vc := readP(int(a)), readP(int(b)), readP(int(c))
			lo := va.Min(vb).Min(vc)
			hi := va.Max(vb).Max(vc)
			x0, y0, z0 := floorCell(lo, cellSize)
			x1, y1, z1 := ceilCell(hi, cellSize)
			for cz := z0; cz <= z1; cz++ {
				for cy := y0; cy <= y1; cy++ {
					for cx := x0; cx <= x1; cx++ {
						h := geom.HashCoords(cx, cy, cz, modulus)
						slot := atomic.AddUint32(&counter[h], 1) - 1
						if slot < bucket {
							buckets[h*bucket+slot] = g
						}
					}
				}
			}
		},
	})
}

func floorCell(p geom.Vec3, cellSize float32) (x, y, z int32) {
	return int32(math.Floor(float64(p.X / cellSize))),
		int32(math.Floor(float64(p.Y / cellSize))),
		int32(math.Floor(float64(p.Z / cellSize)))
}

func ceilCell(p geom.Vec3, cellSize float32) (x, y, z int32) {
	return int32(math.Ceil(float64(p.X / cellSize))),
		int32(math.Ceil(float64(p.Y / cellSize))),
		int32(math.Ceil(float64(p.Z / cellSize)))
}

// Dropped counts build insertions that found their bucket full, summed over
// all cells of the latest build. Valid once the build's stream has drained;
// a persistently high count means the cell size is too coarse for the mesh.
func (x *Index) Dropped() int {
	if x.m == 0 {
		return 0
	}
	dropped := 0
	for _, c := range x.counter.Slice()[:x.m] {
		if int(c) > x.bucket {
			dropped += int(c) - x.bucket
		}
	}
	return dropped
}
