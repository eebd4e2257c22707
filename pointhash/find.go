package pointhash

import (
	"github.com/simkit/collide/bitonic"
	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// FindOpts carries the caller buffers for one candidate search.
type FindOpts struct {
	// Queries selects external-query mode. Nil means self mode: every
	// indexed point queries the index, with itself excluded.
	Queries *compute.Positions
	// Candidates is the seed-and-output buffer: rows of K entries per
	// query, K inferred from the length. Rows are indexed by query number
	// in external mode and by point index in self mode.
	Candidates []uint32
	// Connected lists indices to exclude per query, rows of V entries,
	// Sentinel-padded, indexed like Candidates. Optional.
	Connected []uint32
}

// FindCandidates enqueues one candidate search against the latest build. For
// every query it walks the 27 cells around the query's cell, pruning cells
// whose box lies beyond the search diameter, and maintains the query's row as
// a top-K list ordered by squared distance. The row's previous contents seed
// the list, so an up-to-date row is refined rather than recomputed.
//
// Multiple FindCandidates calls against one build are independent; they may
// be enqueued in any order, on the same stream or different ones, provided
// their output rows don't overlap.
func (x *Index) FindCandidates(s *compute.Stream, opts FindOpts) error {
	n := x.n
	var (
		nq    int
		readQ func(int) geom.Vec3
		err   error
	)
	if opts.Queries != nil {
		if readQ, err = opts.Queries.Reader(); err != nil {
			return err
		}
		nq = opts.Queries.N
	} else {
		nq = n
	}
	if nq == 0 {
		return nil
	}
	if len(opts.Candidates) == 0 || len(opts.Candidates)%nq != 0 {
		return compute.BufferShapef("pointhash find: %d candidate slots for %d queries",
			len(opts.Candidates), nq)
	}
	k := len(opts.Candidates) / nq
	if !candidates.ValidK(k) {
		return compute.BufferShapef("pointhash find: K=%d out of range [1,%d]", k, candidates.MaxK)
	}
	v := 0
	if opts.Connected != nil {
		if len(opts.Connected)%nq != 0 {
			return compute.BufferShapef("pointhash find: %d connected slots for %d queries",
				len(opts.Connected), nq)
		}
		v = len(opts.Connected) / nq
	}

	var (
		pairs      = x.pairs.Slice()
		cellStart  = x.cellStart.Slice()
		cellEnd    = x.cellEnd.Slice()
		half       = x.half.Slice()
		sortedHalf = x.sortedHalf.Slice()
		cellSize   = x.cellSize
		capacity   = x.capacity
		cand       = opts.Candidates
		conn       = opts.Connected
		external   = opts.Queries != nil
		// The insertion bound is the squared search diameter: a pair is
		// kept while the candidate's ball of radius r overlaps the
		// query's, i.e. centres within 2r.
		maxDist = 4 * x.radius * x.radius
	)

	return s.Dispatch(compute.Kernel{
		Name: "pointFind",
		Grid: nq,
		Thread: func(q int) {
			var query geom.Vec3
			self := candidates.Sentinel
			rowIdx := q
			if external {
				query = readQ(q)
			} else {
				// Self queries scan in table order for locality; results
				// land in the queried point's own row.
				query = geom.UnpackHalf3(sortedHalf, q)
				self = bitonic.Payload(pairs[q])
				rowIdx = int(self)
			}
			row := cand[rowIdx*k : (rowIdx+1)*k]
			var excluded []uint32
			if v > 0 {
				excluded = conn[rowIdx*v : (rowIdx+1)*v]
			}

			var reg candidates.Register
			reg.Seed(row, func(idx uint32) (float32, bool) {
				if int(idx) >= n {
					return 0, false
				}
				return geom.DistSq(query, geom.UnpackHalf3(half, int(idx))), true
			})

			cx, cy, cz := geom.CellCoord(query, cellSize)
			for dz := int32(-1); dz <= 1; dz++ {
				for dy := int32(-1); dy <= 1; dy++ {
					for dx := int32(-1); dx <= 1; dx++ {
						x.scanCell(&reg, query, cx+dx, cy+dy, cz+dz, self, excluded,
							pairs, cellStart, cellEnd, sortedHalf, maxDist)
					}
				}
			}
			reg.Store(row)
		},
	})
}

// runWalkCap bounds how many entries of one hash run a query inspects. Runs
// merge all cells that collide on a hash slot, so the cap keeps a pathological
// slot from serialising a thread.
const runWalkCap = 32

func (x *Index) scanCell(reg *candidates.Register, query geom.Vec3, cx, cy, cz int32,
	self uint32, excluded []uint32,
	pairs []uint64, cellStart, cellEnd []uint32, sortedHalf []uint16, maxDist float32) {

	cellSize := x.cellSize
	centre := geom.Vec3{
		X: (float32(cx) + 0.5) * cellSize,
		Y: (float32(cy) + 0.5) * cellSize,
		Z: (float32(cz) + 0.5) * cellSize,
	}
	if geom.SDSBox(centre.Sub(query), cellSize/2) > maxDist {
		return
	}
	h := geom.HashCoords(cx, cy, cz, x.capacity)
	first := cellStart[h]
	if first == candidates.Sentinel {
		return
	}
	limit := cellEnd[h]
	if limit > first+runWalkCap {
		limit = first + runWalkCap
	}
	for i := first; i < limit; i++ {
		c := geom.UnpackHalf3(sortedHalf, int(i))
		d2 := geom.DistSq(query, c)
		if d2 > reg.Worst() || d2 > maxDist {
			continue
		}
		id := bitonic.Payload(pairs[i])
		if id == self {
			continue
		}
		if contains(excluded, id) {
			continue
		}
		reg.Insert(id, d2)
	}
}

func contains(row []uint32, id uint32) bool {
	for _, e := range row {
		if e == id {
			return true
		}
	}
	return false
}
