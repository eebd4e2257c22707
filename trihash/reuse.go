package trihash

import (
	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// ReuseOpts carries the caller buffers for one structural reuse pass.
type ReuseOpts struct {
	Collider compute.Positions
	Tris     compute.Triangles
	// Candidates holds the self-mode rows to refresh, K triangle indices
	// per collider vertex.
	Candidates []uint32
	// VertexNeighbours lists each vertex's mesh-adjacent vertices, rows of
	// N entries, Sentinel-padded.
	VertexNeighbours []uint32
	// TriangleNeighbours optionally lists each triangle's three
	// edge-adjacent triangles (Sentinel where open). Length 3·M.
	TriangleNeighbours []uint32
}

// RefineCandidates enqueues the structural reuse pass: refresh each vertex's
// candidate row from the rows of its mesh neighbours, and optionally from the
// edge-adjacency of its current best triangle, without touching the hash
// table. After small motion the nearest triangle to a vertex is almost always
// the previous one or an immediate neighbour of it, so the pass tracks the
// narrow-phase set between full rebuilds at a fraction of a find's cost.
func (x *Index) RefineCandidates(s *compute.Stream, opts ReuseOpts) error {
	readP, err := opts.Collider.Reader()
	if err != nil {
		return err
	}
	readT, err := opts.Tris.Reader()
	if err != nil {
		return err
	}
	if opts.Tris.M != x.m {
		return compute.BufferShapef("trihash refine: %d triangles, latest build indexed %d",
			opts.Tris.M, x.m)
	}
	nq := opts.Collider.N
	if nq == 0 || x.m == 0 {
		return nil
	}
	if len(opts.Candidates) == 0 || len(opts.Candidates)%nq != 0 {
		return compute.BufferShapef("trihash refine: %d candidate slots for %d vertices",
			len(opts.Candidates), nq)
	}
	k := len(opts.Candidates) / nq
	if !candidates.ValidK(k) {
		return compute.BufferShapef("trihash refine: K=%d out of range [1,%d]", k, candidates.MaxK)
	}
	if len(opts.VertexNeighbours) == 0 || len(opts.VertexNeighbours)%nq != 0 {
		return compute.BufferShapef("trihash refine: %d vertex-neighbour slots for %d vertices",
			len(opts.VertexNeighbours), nq)
	}
	nWidth := len(opts.VertexNeighbours) / nq
	if opts.TriangleNeighbours != nil && len(opts.TriangleNeighbours) != 3*x.m {
		return compute.BufferShapef("trihash refine: %d triangle-neighbour slots for %d triangles",
			len(opts.TriangleNeighbours), x.m)
	}

	var (
		modulus = uint32(x.m)
		cand    = opts.Candidates
		vn      = opts.VertexNeighbours
		tn      = opts.TriangleNeighbours
		walk    = nWidth
	)
	if walk > 4 {
		walk = 4
	}

	// Cross-row reads against in-place rewrites: read the snapshot, write
	// the live buffer.
	snap := make([]uint32, len(cand))
	s.Do("triRefineSnapshot", func() error {
		copy(snap, cand)
		return nil
	})

	return s.Dispatch(compute.Kernel{
		Name: "triRefine",
		Grid: nq,
		Thread: func(q int) {
			query := readP(q)
			row := cand[q*k : (q+1)*k]

			usd := func(t uint32) (float32, bool) {
				if t >= modulus {
					return 0, false
				}
				a, b, c := readT(int(t))
				return geom.USDTriangle(query, readP(int(a)), readP(int(b)), readP(int(c))), true
			}
			insert := func(t uint32, reg *candidates.Register) {
				if d, ok := usd(t); ok && d <= reg.Worst() {
					reg.Insert(t, d)
				}
			}

			var reg candidates.Register
			reg.Seed(row, usd)

			// Best triangle of each mesh-adjacent vertex.
			for i := 0; i < walk; i++ {
				nb := vn[q*nWidth+i]
				if nb == candidates.Sentinel || int(nb) >= nq {
					continue
				}
				if t := snap[int(nb)*k]; t != candidates.Sentinel {
					insert(t, &reg)
				}
			}

			// Edge neighbours of this vertex's own best triangle.
			if tn != nil {
				if t0 := snap[q*k]; t0 != candidates.Sentinel && t0 < modulus {
					for e := 0; e < 3; e++ {
						if t := tn[int(t0)*3+e]; t != candidates.Sentinel {
							insert(t, &reg)
						}
					}
				}
			}
			reg.Store(row)
		},
	})
}
