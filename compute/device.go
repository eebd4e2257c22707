package compute

import (
	"runtime"

	"github.com/grailbio/base/traverse"
)

// DefaultGroupWidth is the threadgroup width used when a kernel does not name
// one. 256 matches the dispatch width of the simulation passes this runtime
// was written for.
const DefaultGroupWidth = 256

// Device executes kernels on a bounded set of CPU workers. A Device is cheap
// (it holds no goroutines of its own; dispatch fans out through traverse) and
// safe for concurrent use by any number of streams.
type Device struct {
	workers    int
	groupWidth int
}

// DeviceConfig configures a Device. Zero values select the defaults.
type DeviceConfig struct {
	// Workers bounds kernel parallelism. Defaults to GOMAXPROCS.
	Workers int
	// MaxGroupWidth caps the threadgroup width. Defaults to
	// DefaultGroupWidth. Tests shrink it to force multi-group code paths.
	MaxGroupWidth int
}

// NewDevice returns a Device with the given configuration.
func NewDevice(cfg DeviceConfig) *Device {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	width := cfg.MaxGroupWidth
	if width <= 0 {
		width = DefaultGroupWidth
	}
	return &Device{workers: workers, groupWidth: width}
}

// Workers returns the dispatch parallelism bound.
func (d *Device) Workers() int { return d.workers }

// MaxGroupWidth returns the largest threadgroup width the device dispatches.
func (d *Device) MaxGroupWidth() int { return d.groupWidth }

// Kernel is one unit of 1D grid work. Exactly one of Thread or Group must be
// set. Thread kernels are invoked once per grid index. Group kernels are
// invoked once per threadgroup with the half-open index window the group
// owns; they are the shared-memory form and may cooperate freely inside the
// window but must not touch indices outside it.
type Kernel struct {
	Name string
	// Grid is the number of thread invocations.
	Grid int
	// Width is the threadgroup width; 0 means the device maximum. Widths
	// beyond the device maximum are clamped.
	Width int

	Thread func(gid int)
	Group  func(group, first, limit int)
}

// validate reports a pipeline-creation error for unusable kernel shapes.
func (k *Kernel) validate(d *Device) (width int, err error) {
	if k.Grid < 0 {
		return 0, PipelineCreationf("kernel %s: negative grid %d", k.Name, k.Grid)
	}
	if (k.Thread == nil) == (k.Group == nil) {
		return 0, PipelineCreationf("kernel %s: exactly one of Thread and Group must be set", k.Name)
	}
	if k.Width < 0 {
		return 0, PipelineCreationf("kernel %s: negative width %d", k.Name, k.Width)
	}
	width = k.Width
	if width == 0 || width > d.groupWidth {
		width = d.groupWidth
	}
	return width, nil
}

// dispatch runs the kernel to completion. Groups are contiguous index
// windows; each runs on one worker.
func (d *Device) dispatch(k *Kernel, width int) error {
	if k.Grid == 0 {
		return nil
	}
	groups := (k.Grid + width - 1) / width
	return traverse.Limit(d.workers).Each(groups, func(g int) error {
		first := g * width
		limit := first + width
		if limit > k.Grid {
			limit = k.Grid
		}
		if k.Group != nil {
			k.Group(g, first, limit)
			return nil
		}
		for gid := first; gid < limit; gid++ {
			k.Thread(gid)
		}
		return nil
	})
}
