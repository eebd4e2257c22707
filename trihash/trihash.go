// Package trihash builds a bucketed spatial-hash index over a triangle mesh
// and answers nearest-K-triangles queries by unsigned squared point-triangle
// distance, for an external query set or for the mesh's own vertices.
//
// Unlike the point index, the table is not sorted: every triangle inserts
// itself into the bucket of each cell its AABB overlaps, through an atomic
// per-cell counter. Buckets have a fixed width; insertions beyond it are
// dropped. That loss is deliberate: the index is rebuilt every frame, and a
// frame counter rotates which triangles claim bucket slots first, so a
// triangle crowded out this frame gets in on a later one.
//
// Because triangles expand to every cell their AABB touches at build time, a
// query inspects only its own cell: anything close enough to matter has
// already been hashed into it.
package trihash

import (
	"github.com/grailbio/base/log"

	"github.com/simkit/collide/compute"
)

// Config fixes an index's capacities at construction.
type Config struct {
	// CellSize is the hash grid pitch. Must be positive, and no smaller
	// than the query distances the caller cares about, since the single-cell
	// lookup sees only triangles whose AABBs reached the query's cell.
	CellSize float32
	// BucketSize is the slot count per hash cell; 8 or 16. 0 selects 8.
	BucketSize int
	// MaxTriangles bounds every later Build. Must be positive.
	MaxTriangles int
	// Allocator backs the index-owned buffers. Nil selects the device
	// allocator.
	Allocator compute.Allocator
}

// Index is a triangle spatial-hash index. The frame counter that rotates
// bucket claims lives here: it survives across builds of the same index and
// dies with it.
type Index struct {
	dev      *compute.Device
	cellSize float32
	bucket   int

	maxM    int
	buckets *compute.U32Buffer // bucket·maxM slots of triangle indices
	counter *compute.U32Buffer // insertions per hash, may exceed bucket

	m    int    // triangle count of the latest build; also the hash modulus
	step uint32 // frame counter; advances once per Build
}

func align64(n int) int { return (n + 63) &^ 63 }

// SizeofBuffers returns the total bytes an index for maxTriangles with the
// given bucket size carves from its allocator, including alignment padding.
func SizeofBuffers(maxTriangles, bucketSize int) int {
	return align64(4*bucketSize*maxTriangles) + align64(4*maxTriangles)
}

// New constructs an index. Config invariant violations panic; allocation
// failures are returned.
func New(dev *compute.Device, cfg Config) (*Index, error) {
	if cfg.CellSize <= 0 {
		log.Panicf("trihash: cell size %v must be positive", cfg.CellSize)
	}
	bucket := cfg.BucketSize
	if bucket == 0 {
		bucket = 8
	}
	if bucket != 8 && bucket != 16 {
		log.Panicf("trihash: bucket size %d must be 8 or 16", cfg.BucketSize)
	}
	if cfg.MaxTriangles <= 0 {
		log.Panicf("trihash: max triangles %d must be positive", cfg.MaxTriangles)
	}
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = compute.DeviceAllocator{}
	}
	x := &Index{
		dev:      dev,
		cellSize: cfg.CellSize,
		bucket:   bucket,
		maxM:     cfg.MaxTriangles,
	}
	var err error
	if x.buckets, err = compute.NewU32(alloc, bucket*cfg.MaxTriangles); err != nil {
		return nil, err
	}
	if x.counter, err = compute.NewU32(alloc, cfg.MaxTriangles); err != nil {
		return nil, err
	}
	return x, nil
}

// CellSize returns the configured grid pitch.
func (x *Index) CellSize() float32 { return x.cellSize }

// BucketSize returns the per-cell slot count.
func (x *Index) BucketSize() int { return x.bucket }

// Len returns the triangle count of the latest build.
func (x *Index) Len() int { return x.m }

// Close drops the index's buffer references and resets the frame counter.
func (x *Index) Close() {
	x.buckets, x.counter = nil, nil
	x.m, x.step = 0, 0
}
