// Package bitonic sorts (hash, payload) pairs in place on a compute stream.
//
// A pair is packed as hash<<32 | payload, so one u64 compare orders by hash
// and breaks ties by payload; the sentinel pair (all ones) sorts to the end.
// The sort is the standard bitonic pyramid split into three kernel shapes:
// a first pass that runs every stage whose compare distance fits inside one
// threadgroup window, a general pass that performs a single global
// compare-exchange per invocation, and a final pass that collapses the
// remaining in-window stages of each outer unit. The shapes matter even on
// CPU: the windowed passes keep each group's working set resident in cache
// across many stages.
package bitonic

import (
	"github.com/simkit/collide/compute"
)

// SentinelPair is the padding value for unused table slots; it carries the
// sentinel hash and sentinel payload and sorts after every real pair.
const SentinelPair = ^uint64(0)

// Pack combines a hash and payload into a sortable pair.
func Pack(hash, payload uint32) uint64 { return uint64(hash)<<32 | uint64(payload) }

// Hash extracts the hash lane of a pair.
func Hash(pair uint64) uint32 { return uint32(pair >> 32) }

// Payload extracts the payload lane of a pair.
func Payload(pair uint64) uint32 { return uint32(pair) }

// Sort enqueues an in-place ascending sort of pairs on s. The length must be
// a power of two (callers pad with SentinelPair). The sort is complete when
// the stream's later commands run; nothing may read pairs before then.
func Sort(s *compute.Stream, pairs []uint64) error {
	n := len(pairs)
	if n&(n-1) != 0 {
		return compute.BufferShapef("bitonic: length %d is not a power of two", n)
	}
	if n < 2 {
		return nil
	}
	// One thread per comparator; a group of g threads owns a window of 2g
	// elements, and any compare distance b <= g stays inside the window.
	g := s.Dev().MaxGroupWidth()
	if g > n/2 {
		g = n / 2
	}

	if err := s.Dispatch(compute.Kernel{
		Name:  "bitonicFirst",
		Grid:  n / 2,
		Width: g,
		Group: func(_, first, limit int) {
			for u := 1; u <= g; u <<= 1 {
				for b := u; b >= 1; b >>= 1 {
					for p := first; p < limit; p++ {
						compareExchange(pairs, p, b, u)
					}
				}
			}
		},
	}); err != nil {
		return err
	}

	for unit := g << 1; unit < n; unit <<= 1 {
		u := unit
		for b := u; b > g; b >>= 1 {
			dist := b
			if err := s.Dispatch(compute.Kernel{
				Name: "bitonicGeneral",
				Grid: n / 2,
				Thread: func(p int) {
					compareExchange(pairs, p, dist, u)
				},
			}); err != nil {
				return err
			}
		}
		if err := s.Dispatch(compute.Kernel{
			Name:  "bitonicFinal",
			Grid:  n / 2,
			Width: g,
			Group: func(_, first, limit int) {
				for b := g; b >= 1; b >>= 1 {
					for p := first; p < limit; p++ {
						compareExchange(pairs, p, b, u)
					}
				}
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// compareExchange performs comparator p of a stage with compare distance b
// inside outer unit u. The comparator sorts ascending iff p&u == 0.
func compareExchange(pairs []uint64, p, b, u int) {
	l := ((p &^ (b - 1)) << 1) | (p & (b - 1))
	r := l + b
	asc := p&u == 0
	if (pairs[l] > pairs[r]) == asc {
		pairs[l], pairs[r] = pairs[r], pairs[l]
	}
}
