package compute

import (
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
)

// Stream is an ordered asynchronous command queue on a Device. Enqueue
// operations return once the command is queued; commands execute strictly in
// FIFO order on a dedicated goroutine, which is the only happens-before edge
// between kernels. After the first failed command the remainder of the queue
// is discarded, so a stream's work is all-or-nothing as observed through
// Wait.
//
// A Stream may be fed from one goroutine at a time. Distinct streams are
// fully independent.
type Stream struct {
	dev  *Device
	cmds chan streamCmd

	mu  sync.Mutex
	err error
}

type streamCmd struct {
	name   string
	kernel *Kernel
	width  int
	host   func() error
	fence  chan struct{}
}

const streamQueueDepth = 64

// NewStream returns a Stream ready to accept commands. Callers must Close it
// when done.
func (d *Device) NewStream() *Stream {
	s := &Stream{dev: d, cmds: make(chan streamCmd, streamQueueDepth)}
	go s.run()
	return s
}

func (s *Stream) run() {
	for c := range s.cmds {
		if c.fence != nil {
			close(c.fence)
			continue
		}
		if s.Err() != nil {
			continue
		}
		var err error
		switch {
		case c.kernel != nil:
			err = s.dev.dispatch(c.kernel, c.width)
		case c.host != nil:
			err = c.host()
		}
		if err != nil {
			s.setErr(fmt.Errorf("%s: %w", c.name, err))
		}
	}
}

// Dev returns the device the stream dispatches to.
func (s *Stream) Dev() *Device { return s.dev }

// Dispatch enqueues a kernel. The returned error reports only malformed
// kernels (pipeline creation); execution errors surface through Wait.
func (s *Stream) Dispatch(k Kernel) error {
	width, err := k.validate(s.dev)
	if err != nil {
		return err
	}
	s.cmds <- streamCmd{name: k.Name, kernel: &k, width: width}
	return nil
}

// Do enqueues a serial host command. It runs in order with kernels, on the
// stream goroutine.
func (s *Stream) Do(name string, fn func() error) {
	s.cmds <- streamCmd{name: name, host: fn}
}

// Wait blocks until every previously enqueued command has executed and
// returns the stream's first error, if any. Wait may be called repeatedly.
func (s *Stream) Wait() error {
	fence := make(chan struct{})
	s.cmds <- streamCmd{fence: fence}
	<-fence
	return s.Err()
}

// Err returns the stream's first error without blocking.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	} else {
		log.Debug.Printf("stream: suppressed secondary error: %v", err)
	}
}

// Close releases the stream goroutine. Pending commands still execute;
// callers wanting their results must Wait first. Enqueuing after Close
// panics.
func (s *Stream) Close() {
	close(s.cmds)
}
