package main

// collide-bench drives the point index over a deterministic jittering cloud
// and reports per-frame timings as TSV on stdout:
//
//	collide-bench -points 100000 -frames 60 -k 8
//
// Every even frame rebuilds and searches; every odd frame runs only the
// reuse pass, which is the intended steady-state usage. Pass -arena to back
// the index with a pre-sized hugepage arena instead of the Go heap.

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"

	"github.com/simkit/collide/candidates"
	"github.com/simkit/collide/compute"
	"github.com/simkit/collide/internal/cloudgen"
	"github.com/simkit/collide/pointhash"
)

var (
	nPoints  = flag.Int("points", 100000, "cloud size")
	nFrames  = flag.Int("frames", 60, "frames to simulate")
	kFlag    = flag.Int("k", 8, "candidates per point")
	cellSize = flag.Float64("cell", 0.1, "hash cell size")
	radius   = flag.Float64("radius", 0.05, "search radius parameter")
	seed     = flag.Uint64("seed", 1, "cloud seed")
	useArena = flag.Bool("arena", false, "back index buffers with a hugepage arena")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	var alloc compute.Allocator
	if *useArena {
		arena, err := compute.NewArena(pointhash.SizeofBuffers(*nPoints))
		if err != nil {
			log.Fatalf("arena: %v", err)
		}
		defer arena.Release() // nolint: errcheck
		alloc = arena
	}

	dev := compute.NewDevice(compute.DeviceConfig{})
	index, err := pointhash.New(dev, pointhash.Config{
		CellSize:  float32(*cellSize),
		Radius:    float32(*radius),
		MaxPoints: *nPoints,
		Allocator: alloc,
	})
	if err != nil {
		log.Fatalf("index: %v", err)
	}
	defer index.Close()

	cloud := cloudgen.Packed(*seed, *nPoints, 1.0)
	positions := compute.Positions{Data: cloud, Enc: compute.Float32x3, N: *nPoints}
	cand := make([]uint32, *nPoints**kFlag)
	candidates.FillSentinel(cand)

	w := tsv.NewWriter(os.Stdout)
	w.WriteString("frame\tphase\tmicros\tcells\tmax_run")
	if err := w.EndLine(); err != nil {
		log.Fatalf("write header: %v", err)
	}

	for frame := 0; frame < *nFrames; frame++ {
		cloudgen.Jitter(cloud, *seed, uint64(frame), float32(*cellSize)*0.02)
		stream := dev.NewStream()
		phase := "refine"
		start := time.Now()
		if frame%2 == 0 {
			phase = "build+find"
			err = index.Build(stream, positions)
			if err == nil {
				err = index.FindCandidates(stream, pointhash.FindOpts{Candidates: cand})
			}
		} else {
			err = index.RefineCandidates(stream, cand, 1.0)
		}
		if err == nil {
			err = stream.Wait()
		}
		stream.Close()
		if err != nil {
			log.Fatalf("frame %d: %v", frame, err)
		}
		elapsed := time.Since(start)

		stats := index.Stats()
		w.WriteString(strconv.Itoa(frame))
		w.WriteString(phase)
		w.WriteString(strconv.FormatInt(elapsed.Microseconds(), 10))
		w.WriteUint32(uint32(stats.Cells))
		w.WriteUint32(uint32(stats.MaxRun))
		if err := w.EndLine(); err != nil {
			log.Fatalf("write row: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}
}
