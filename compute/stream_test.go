package compute

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOrdering(t *testing.T) {
	dev := NewDevice(DeviceConfig{Workers: 4})
	s := dev.NewStream()
	defer s.Close()

	var trace []string
	require.NoError(t, s.Dispatch(Kernel{
		Name: "a", Grid: 1,
		Thread: func(int) { trace = append(trace, "a") },
	}))
	s.Do("b", func() error { trace = append(trace, "b"); return nil })
	require.NoError(t, s.Dispatch(Kernel{
		Name: "c", Grid: 1,
		Thread: func(int) { trace = append(trace, "c") },
	}))
	require.NoError(t, s.Wait())
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestStreamCoversGrid(t *testing.T) {
	dev := NewDevice(DeviceConfig{Workers: 3, MaxGroupWidth: 7})
	s := dev.NewStream()
	defer s.Close()

	const grid = 1000
	var hits [grid]int32
	require.NoError(t, s.Dispatch(Kernel{
		Name: "cover", Grid: grid,
		Thread: func(gid int) { atomic.AddInt32(&hits[gid], 1) },
	}))
	require.NoError(t, s.Wait())
	for gid, n := range hits {
		require.Equal(t, int32(1), n, "gid=%d", gid)
	}
}

func TestStreamGroupWindows(t *testing.T) {
	dev := NewDevice(DeviceConfig{Workers: 2, MaxGroupWidth: 8})
	s := dev.NewStream()
	defer s.Close()

	var total int64
	require.NoError(t, s.Dispatch(Kernel{
		Name: "windows", Grid: 30, Width: 8,
		Group: func(group, first, limit int) {
			assert.Equal(t, group*8, first)
			assert.LessOrEqual(t, limit, 30)
			atomic.AddInt64(&total, int64(limit-first))
		},
	}))
	require.NoError(t, s.Wait())
	assert.Equal(t, int64(30), total)
}

func TestStreamErrorDiscardsRemainder(t *testing.T) {
	dev := NewDevice(DeviceConfig{})
	s := dev.NewStream()
	defer s.Close()

	boom := errors.New("boom")
	ran := false
	s.Do("fail", func() error { return boom })
	require.NoError(t, s.Dispatch(Kernel{
		Name: "after", Grid: 4,
		Thread: func(int) { ran = true },
	}))
	err := s.Wait()
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran, "commands after a failure must not execute")
	// The error sticks on later Waits.
	assert.ErrorIs(t, s.Wait(), boom)
}

func TestDispatchValidation(t *testing.T) {
	dev := NewDevice(DeviceConfig{})
	s := dev.NewStream()
	defer s.Close()

	assert.ErrorIs(t, s.Dispatch(Kernel{Name: "none", Grid: 1}),
		ErrPipelineCreation)
	assert.ErrorIs(t, s.Dispatch(Kernel{
		Name: "both", Grid: 1,
		Thread: func(int) {},
		Group:  func(int, int, int) {},
	}), ErrPipelineCreation)
	assert.ErrorIs(t, s.Dispatch(Kernel{
		Name: "neg", Grid: -1, Thread: func(int) {},
	}), ErrPipelineCreation)
	// A malformed dispatch never reaches the queue.
	assert.NoError(t, s.Wait())
}

func TestEmptyGrid(t *testing.T) {
	dev := NewDevice(DeviceConfig{})
	s := dev.NewStream()
	defer s.Close()
	require.NoError(t, s.Dispatch(Kernel{
		Name: "empty", Grid: 0,
		Thread: func(int) { t.Error("must not run") },
	}))
	assert.NoError(t, s.Wait())
}
