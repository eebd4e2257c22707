package pointhash

import (
	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// RefineCandidates enqueues the temporal reuse pass over self-mode candidate
// rows: for each point, walk the neighbour lists of its own best candidates
// and promote any neighbour-of-neighbour that lands inside the spacing bound.
// A neighbour of my neighbour is very likely my neighbour, so this O(K²)
// sweep recovers most list changes after small motion without touching the
// cell table: no rebuild, no cell walk.
//
// Rows must come from a self-mode FindCandidates against this index's
// geometry; K is inferred from the buffer length. spacingScale scales the
// cell size into the acceptance bound (cellSize·spacingScale)². The previous
// rows' worst distances act as the only other filter, as in FindCandidates
// seeding.
func (x *Index) RefineCandidates(s *compute.Stream, cand []uint32, spacingScale float32) error {
	n := x.n
	if n == 0 {
		return nil
	}
	if len(cand) == 0 || len(cand)%n != 0 {
		return compute.BufferShapef("pointhash refine: %d candidate slots for %d points", len(cand), n)
	}
	k := len(cand) / n
	if !candidates.ValidK(k) {
		return compute.BufferShapef("pointhash refine: K=%d out of range [1,%d]", k, candidates.MaxK)
	}

	var (
		half  = x.half.Slice()
		bound = x.cellSize * spacingScale * x.cellSize * spacingScale
		walk  = k
	)
	if walk > 4 {
		walk = 4
	}

	// Threads read each other's rows while rewriting their own, so the pass
	// reads a frame-start snapshot and writes the live buffer.
	snap := make([]uint32, len(cand))
	s.Do("pointRefineSnapshot", func() error {
		copy(snap, cand)
		return nil
	})

	return s.Dispatch(compute.Kernel{
		Name: "pointRefine",
		Grid: n,
		Thread: func(q int) {
			pq := geom.UnpackHalf3(half, q)
			row := cand[q*k : (q+1)*k]

			var reg candidates.Register
			reg.Seed(row, func(idx uint32) (float32, bool) {
				if int(idx) >= n {
					return 0, false
				}
				return geom.DistSq(pq, geom.UnpackHalf3(half, int(idx))), true
			})

			for i := 0; i < walk; i++ {
				c := snap[q*k+i]
				if c == candidates.Sentinel || int(c) >= n {
					continue
				}
				crow := snap[int(c)*k : int(c)*k+walk]
				for _, cc := range crow {
					if cc == candidates.Sentinel || int(cc) >= n || cc == uint32(q) {
						continue
					}
					d2 := geom.DistSq(pq, geom.UnpackHalf3(half, int(cc)))
					if d2 > bound || d2 > reg.Worst() {
						continue
					}
					reg.Insert(cc, d2)
				}
			}
			reg.Store(row)
		},
	})
}
