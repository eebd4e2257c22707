// Package compute provides the data-parallel runtime the spatial indexes are
// built on: a Device (a bounded pool of CPU workers standing in for a GPU),
// Streams (ordered asynchronous command queues whose enqueue order is the only
// inter-kernel happens-before edge), 1D kernel dispatch with a threadgroup
// width, typed flat buffers, and pluggable allocators.
//
// A kernel is a plain Go function invoked once per grid index. Threadgroups
// are contiguous runs of grid indices executed by a single worker; a kernel
// that needs threadgroup-wide cooperation (e.g. the bitonic sorter) uses the
// Group form and receives its whole index window at once.
//
// Commands on one stream execute strictly in FIFO order. Callers observe
// results only after Wait returns; two streams are independent and may be
// driven from different goroutines.
package compute
