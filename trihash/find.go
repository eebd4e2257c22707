package trihash

import (
	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// FindOpts carries the caller buffers for one candidate search. Collider and
// Tris must describe the same mesh the latest Build indexed; the index
// retains neither.
type FindOpts struct {
	Collider compute.Positions
	Tris     compute.Triangles
	// Queries selects external-query mode. Nil means self mode: every
	// collider vertex queries, with its incident triangles excluded.
	Queries *compute.Positions
	// Candidates is the seed-and-output buffer, rows of K triangle indices
	// per query ordered by increasing unsigned squared distance.
	Candidates []uint32
	// Connected lists vertex indices per query whose triangles are
	// excluded, rows of V entries, Sentinel-padded. Optional.
	Connected []uint32
}

// FindCandidates enqueues one search against the latest build. Each query
// inspects the bucket of the single cell containing it (build-time AABB
// expansion already planted every nearby triangle there) and maintains its
// row as a top-K list by unsigned squared point-triangle distance, seeded
// from the row's previous contents.
func (x *Index) FindCandidates(s *compute.Stream, opts FindOpts) error {
	readP, err := opts.Collider.Reader()
	if err != nil {
		return err
	}
	readT, err := opts.Tris.Reader()
	if err != nil {
		return err
	}
	if opts.Tris.M != x.m {
		return compute.BufferShapef("trihash find: %d triangles, latest build indexed %d",
			opts.Tris.M, x.m)
	}
	if x.m == 0 {
		return nil
	}
	var (
		nq    int
		readQ func(int) geom.Vec3
	)
	if opts.Queries != nil {
		if readQ, err = opts.Queries.Reader(); err != nil {
			return err
		}
		nq = opts.Queries.N
	} else {
		readQ = readP
		nq = opts.Collider.N
	}
	if nq == 0 {
		return nil
	}
	if len(opts.Candidates) == 0 || len(opts.Candidates)%nq != 0 {
		return compute.BufferShapef("trihash find: %d candidate slots for %d queries",
			len(opts.Candidates), nq)
	}
	k := len(opts.Candidates) / nq
	if !candidates.ValidK(k) {
		return compute.BufferShapef("trihash find: K=%d out of range [1,%d]", k, candidates.MaxK)
	}
	v := 0
	if opts.Connected != nil {
		if len(opts.Connected)%nq != 0 {
			return compute.BufferShapef("trihash find: %d connected slots for %d queries",
				len(opts.Connected), nq)
		}
		v = len(opts.Connected) / nq
	}

	var (
		buckets  = x.buckets.Slice()
		bucket   = uint32(x.bucket)
		modulus  = uint32(x.m)
		cellSize = x.cellSize
		cand     = opts.Candidates
		conn     = opts.Connected
		selfMode = opts.Queries == nil
	)

	return s.Dispatch(compute.Kernel{
		Name: "triFind",
		Grid: nq,
		Thread: func(q int) {
			query := readQ(q)
			row := cand[q*k : (q+1)*k]
			var excluded []uint32
			if v > 0 {
				excluded = conn[q*v : (q+1)*v]
			}

			usd := func(t uint32) (float32, bool) {
				if t >= modulus {
					return 0, false
				}
				a, b, c := readT(int(t))
				return geom.USDTriangle(query, readP(int(a)), readP(int(b)), readP(int(c))), true
			}

			var reg candidates.Register
			reg.Seed(row, usd)

			cx, cy, cz := geom.CellCoord(query, cellSize)
			h := geom.HashCoords(cx, cy, cz, modulus)
			base := h * bucket
			for j := uint32(0); j < bucket; j++ {
				t := buckets[base+j]
				if t == candidates.Sentinel {
					// Slots fill in counter order; the first empty one
					// ends the bucket.
					break
				}
				a, b, c := readT(int(t))
				if selfMode && (a == uint32(q) || b == uint32(q) || c == uint32(q)) {
					continue
				}
				if v > 0 && (contains(excluded, a) || contains(excluded, b) || contains(excluded, c)) {
					continue
				}
				d := geom.USDTriangle(query, readP(int(a)), readP(int(b)), readP(int(c)))
				if d > reg.Worst() {
					continue
				}
				reg.Insert(t, d)
			}
			reg.Store(row)
		},
	})
}

func contains(row []uint32, id uint32) bool {
	for _, e := range row {
		if e == id {
			return true
		}
	}
	return false
}
