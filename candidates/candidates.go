// Package candidates implements the fixed-width candidate lists the spatial
// indexes produce, and the per-query register file that maintains one list
// sorted by distance during a search.
//
// A candidate buffer is a flat []uint32 viewed as rows of K entries per
// query, sorted by increasing squared distance to the query, Sentinel-padded.
// The buffer doubles as input and output: a find seeds its register from the
// row it is about to overwrite, which is what makes frame-to-frame reuse
// free. Callers fill the buffer with Sentinel before the first find and leave
// it alone afterwards.
package candidates

import "math"

// Sentinel marks an empty slot in a candidate row. It is also the "absent"
// value throughout the index internals.
const Sentinel = ^uint32(0)

// MaxK is the largest supported row width.
const MaxK = 32

// posInf is the resting distance of an empty register slot; any real squared
// distance displaces it.
var posInf = float32(math.Inf(1))

// Register is the per-query workspace: up to MaxK records of candidate index
// and squared distance, kept sorted by distance. It lives on the stack of one
// kernel invocation and never escapes a single find or reuse call.
type Register struct {
	k    int
	idx  [MaxK]uint32
	dist [MaxK]float32
}

// Reset empties the register to width k. k must be in [1, MaxK].
func (r *Register) Reset(k int) {
	r.k = k
	for i := 0; i < k; i++ {
		r.idx[i] = Sentinel
		r.dist[i] = posInf
	}
}

// K returns the configured row width.
func (r *Register) K() int { return r.k }

// Worst returns the distance of the last slot: +Inf while the register has
// room, else the largest retained distance. New candidates at or below this
// are worth inserting.
func (r *Register) Worst() float32 { return r.dist[r.k-1] }

// At returns slot i.
func (r *Register) At(i int) (idx uint32, dist float32) { return r.idx[i], r.dist[i] }

// Insert places {idx, dist} into the register, keeping it sorted by distance
// and free of duplicate indices:
//
//  1. find the first slot p with dist <= dist[p]; if none, the candidate is
//     worse than everything retained and is dropped;
//  2. find an existing slot d holding idx, if any;
//  3. shift slots [p, start) one to the right, where start is d when the
//     duplicate exists (lifting it out) and the last slot otherwise;
//  4. write {idx, dist} at p.
//
// Distances for a given index are deterministic within one call, so a
// duplicate is never found at a better distance than the incoming one.
func (r *Register) Insert(idx uint32, dist float32) {
	p := -1
	for i := 0; i < r.k; i++ {
		if dist <= r.dist[i] {
			p = i
			break
		}
	}
	if p < 0 {
		return
	}
	start := r.k - 1
	for i := 0; i < r.k; i++ {
		if r.idx[i] == idx {
			start = i
			break
		}
	}
	for i := start; i > p; i-- {
		r.idx[i] = r.idx[i-1]
		r.dist[i] = r.dist[i-1]
	}
	r.idx[p] = idx
	r.dist[p] = dist
}

// Seed resets the register to len(row) entries and re-inserts the row's
// current candidates, computing each one's distance through distOf. Entries
// distOf rejects (stale indices from an earlier build) are dropped. Seeding
// re-sorts, so a row carried across moving geometry stays valid as a warm
// start.
func (r *Register) Seed(row []uint32, distOf func(idx uint32) (float32, bool)) {
	r.Reset(len(row))
	for _, idx := range row {
		if idx == Sentinel {
			continue
		}
		if d, ok := distOf(idx); ok {
			r.Insert(idx, d)
		}
	}
}

// Store writes the register's indices back to row.
func (r *Register) Store(row []uint32) {
	for i := 0; i < r.k; i++ {
		row[i] = r.idx[i]
	}
}

// ValidK reports whether k is a usable row width.
func ValidK(k int) bool { return k >= 1 && k <= MaxK }

// FillSentinel resets a whole candidate buffer to empty rows.
func FillSentinel(buf []uint32) {
	for i := range buf {
		buf[i] = Sentinel
	}
}
