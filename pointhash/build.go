package pointhash

import (
	"github.com/simkit/collide/bitonic"
	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/geom"
)

// Build (re)indexes the given positions. The pipeline is enqueued on s in
// strict order: reset, convert+hash, sort, reorder, cell boundaries. The
// caller's position buffer must stay valid until s drains; the index retains
// nothing from it afterwards.
//
// Cells are hashed from the f16-rounded position, not the f32 source, so a
// point sits in exactly the cell its stored mirror falls in and self-mode
// queries are consistent with the table even at cell boundaries.
func (x *Index) Build(s *compute.Stream, positions compute.Positions) error {
	read, err := positions.Reader()
	if err != nil {
		return err
	}
	n := positions.N
	if n > x.maxN {
		return compute.CapacityExceededf("pointhash build: %d points, index capacity %d", n, x.maxN)
	}
	x.n = n
	if n == 0 {
		x.nPad = 0
		return nil
	}
	x.nPad = nextPow2(n)

	var (
		pairs      = x.pairs.Slice()[:x.nPad]
		cellStart  = x.cellStart.Slice()
		cellEnd    = x.cellEnd.Slice()
		half       = x.half.Slice()
		sortedHalf = x.sortedHalf.Slice()
		cellSize   = x.cellSize
		capacity   = x.capacity
	)

	if err := s.Dispatch(compute.Kernel{
		Name: "pointResetTable",
		Grid: len(pairs),
		Thread: func(i int) {
			pairs[i] = bitonic.SentinelPair
		},
	}); err != nil {
		return err
	}
	if err := s.Dispatch(compute.Kernel{
		Name: "pointResetCells",
		Grid: int(capacity),
		Thread: func(i int) {
			cellStart[i] = candidates.Sentinel
			cellEnd[i] = candidates.Sentinel
		},
	}); err != nil {
		return err
	}
	if err := s.Dispatch(compute.Kernel{
		Name: "pointConvertHash",
		Grid: n,
		Thread: func(i int) {
			geom.PackHalf3(half, i, read(i))
			h := geom.HashCell(geom.UnpackHalf3(half, i), cellSize, capacity)
			pairs[i] = bitonic.Pack(h, uint32(i))
		},
	}); err != nil {
		return err
	}
	if err := bitonic.Sort(s, pairs); err != nil {
		return err
	}
	if err := s.Dispatch(compute.Kernel{
		Name: "pointReorder",
		Grid: n,
		Thread: func(i int) {
			src := int(bitonic.Payload(pairs[i]))
			geom.PackHalf3(sortedHalf, i, geom.UnpackHalf3(half, src))
		},
	}); err != nil {
		return err
	}
	// One thread per sorted slot; a slot opens a run iff its hash differs
	// from its predecessor's, and then also closes the predecessor's run.
	// Each hash value is written by exactly one thread.
	return s.Dispatch(compute.Kernel{
		Name: "pointCellBounds",
		Grid: n,
		Thread: func(gid int) {
			h := bitonic.Hash(pairs[gid])
			if gid == 0 {
				cellStart[h] = 0
			} else if prev := bitonic.Hash(pairs[gid-1]); h != prev {
				cellStart[h] = uint32(gid)
				cellEnd[prev] = uint32(gid)
			}
			if gid == n-1 {
				cellEnd[h] = uint32(gid) + 1
			}
		},
	})
}

// Len returns the point count of the latest build.
func (x *Index) Len() int { return x.n }

// Stats describes table occupancy after a build; valid once the build's
// stream has drained.
type Stats struct {
	Points  int
	Cells   int // distinct occupied hash slots
	MaxRun  int // longest single-hash run; runs beyond 32 truncate searches
	Sorted  bool
	TableIn int // pair-table prefix in use
}

// Stats scans the cell-boundary arrays. It is a host-side diagnostic, not a
// kernel; call it between frames.
func (x *Index) Stats() Stats {
	st := Stats{Points: x.n, TableIn: x.nPad, Sorted: true}
	if x.n == 0 {
		return st
	}
	start := x.cellStart.Slice()
	end := x.cellEnd.Slice()
	for h := range start {
		if start[h] == candidates.Sentinel {
			continue
		}
		st.Cells++
		if run := int(end[h] - start[h]); run > st.MaxRun {
			st.MaxRun = run
		}
	}
	pairs := x.pairs.Slice()
	for i := 1; i < x.n; i++ {
		if pairs[i-1] > pairs[i] {
			st.Sorted = false
			break
		}
	}
	return st
}
