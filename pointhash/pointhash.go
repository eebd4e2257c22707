// Package pointhash builds a spatial-hash index over a point set and answers
// K-nearest-within-radius queries against it, either for the set itself
// (self mode) or for an external query set.
//
// The index is a sorted (cellHash, pointIndex) table plus per-hash run
// boundaries, rebuilt from scratch every frame: hash every point's cell,
// bitonic-sort the pairs, then mark where each hash's run starts and ends.
// Candidate search walks the 27 cells around a query, prunes cells against
// the search sphere, and maintains a per-query top-K list sorted by squared
// distance. Positions are mirrored in f16 to halve the scan bandwidth.
//
// Candidate rows double as seed and output: a row's previous contents are
// re-inserted before the cell walk, so calling FindCandidates every frame on
// the same buffer refines last frame's answer instead of starting cold.
// Fill the buffer with candidates.Sentinel before the first call.
package pointhash

import (
	"github.com/grailbio/base/log"

	"github.com/simkit/collide/compute"
)

// Config fixes an index's capacities at construction.
type Config struct {
	// CellSize is the hash grid pitch. Must be positive.
	CellSize float32
	// Radius is the search radius parameter. A candidate is kept while its
	// centre lies within 2·Radius of the query; the bound is the pair's
	// combined diameter, not the centre distance. Callers that want plain
	// "centres within r" pass Radius = r/2. Must satisfy 0 < Radius and
	// Radius <= CellSize.
	Radius float32
	// MaxPoints bounds every later Build. Must be positive.
	MaxPoints int
	// Allocator backs the index-owned buffers. Nil selects the device
	// allocator (Go heap).
	Allocator compute.Allocator
}

// Index is a point spatial-hash index. It owns its internal buffers; caller
// buffers are only borrowed for the duration of a single call. An Index must
// not be used from two streams at once.
type Index struct {
	dev      *compute.Device
	cellSize float32
	radius   float32
	maxN     int
	capacity uint32 // hash modulus, 2·maxN for a load factor <= 0.5

	pairs      *compute.U64Buffer // sorted (hash, index) table, nextPow2(maxN)
	cellStart  *compute.U32Buffer // first run slot per hash, len capacity
	cellEnd    *compute.U32Buffer // one past last run slot per hash
	half       *compute.U16Buffer // f16 mirror by original index, 3·maxN
	sortedHalf *compute.U16Buffer // f16 mirror by sorted slot, 3·maxN

	n    int // point count of the latest build
	nPad int // table prefix in use, nextPow2(n)
}

// nextPow2 returns the smallest power of two >= n (and >= 1).
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func align64(n int) int { return (n + 63) &^ 63 }

// SizeofBuffers returns the total bytes an index for maxPoints carves from
// its allocator, including per-buffer alignment padding: the pair table, the
// two cell-boundary arrays, and the two f16 position mirrors. Callers
// pre-sizing an arena pass this straight to compute.NewArena.
func SizeofBuffers(maxPoints int) int {
	c := 2 * maxPoints
	return align64(8*nextPow2(maxPoints)) + // pair table
		2*align64(4*c) + // cell start + end
		2*align64(6*maxPoints) // half mirrors
}

// New constructs an index. Capacities are fixed for the index's lifetime.
// Config invariant violations panic; allocation failures are returned.
func New(dev *compute.Device, cfg Config) (*Index, error) {
	if cfg.CellSize <= 0 {
		log.Panicf("pointhash: cell size %v must be positive", cfg.CellSize)
	}
	if cfg.Radius <= 0 || cfg.Radius > cfg.CellSize {
		log.Panicf("pointhash: radius %v must be in (0, %v]", cfg.Radius, cfg.CellSize)
	}
	if cfg.MaxPoints <= 0 {
		log.Panicf("pointhash: max points %d must be positive", cfg.MaxPoints)
	}
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = compute.DeviceAllocator{}
	}
	x := &Index{
		dev:      dev,
		cellSize: cfg.CellSize,
		radius:   cfg.Radius,
		maxN:     cfg.MaxPoints,
		capacity: uint32(2 * cfg.MaxPoints),
	}
	var err error
	if x.pairs, err = compute.NewU64(alloc, nextPow2(cfg.MaxPoints)); err != nil {
		return nil, err
	}
	if x.cellStart, err = compute.NewU32(alloc, int(x.capacity)); err != nil {
		return nil, err
	}
	if x.cellEnd, err = compute.NewU32(alloc, int(x.capacity)); err != nil {
		return nil, err
	}
	if x.half, err = compute.NewU16(alloc, 3*cfg.MaxPoints); err != nil {
		return nil, err
	}
	if x.sortedHalf, err = compute.NewU16(alloc, 3*cfg.MaxPoints); err != nil {
		return nil, err
	}
	return x, nil
}

// CellSize returns the configured grid pitch.
func (x *Index) CellSize() float32 { return x.cellSize }

// Radius returns the configured search radius parameter.
func (x *Index) Radius() float32 { return x.radius }

// Close drops the index's buffer references. The backing memory is released
// by the allocator that owns it (GC for the device allocator, Arena.Release
// for arenas).
func (x *Index) Close() {
	x.pairs, x.cellStart, x.cellEnd, x.half, x.sortedHalf = nil, nil, nil, nil, nil
	x.n, x.nPad = 0, 0
}
