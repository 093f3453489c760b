package stream

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/internal/gputest"
	"golang.org/x/exp/slog"
)

func readyPool(t *testing.T, device *gputest.Device, capacity int) (*devmem.Allocator, *Pool) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	allocator, err := devmem.New(logger, device, devmem.CreateOptions{})
	require.NoError(t, err)

	pool, err := New(logger, allocator, Options{
		Name:       "test",
		RecordSize: 8,
		Capacity:   capacity,
		Usage:      core1_0.BufferUsageVertexBuffer,
	})
	require.NoError(t, err)

	return allocator, pool
}

func TestCapacityForBudget(t *testing.T) {
	testCases := map[string]struct {
		RecordSize int
		Budget     int
		Expected   int
	}{
		"ExactPowerOfTwo":  {RecordSize: 16, Budget: 4096, Expected: 256},
		"RoundsDown":       {RecordSize: 24, Budget: 4096, Expected: 128},
		"RecordOverBudget": {RecordSize: 5000, Budget: 4096, Expected: 1},
		"SingleRecord":     {RecordSize: 64, Budget: 64, Expected: 1},
		"InvalidRecord":    {RecordSize: 0, Budget: 4096, Expected: 1},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, CapacityForBudget(testCase.RecordSize, testCase.Budget))
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	allocator, err := devmem.New(logger, gputest.NewDevice(), devmem.CreateOptions{})
	require.NoError(t, err)

	_, err = New(logger, allocator, Options{RecordSize: 0, Capacity: 16})
	require.Error(t, err)

	_, err = New(logger, allocator, Options{RecordSize: 16, Capacity: 0})
	require.Error(t, err)
}

func TestPool_Lifecycle(t *testing.T) {
	device := gputest.NewDevice()
	allocator, pool := readyPool(t, device, 16)

	pool.BeginFrame()
	require.Nil(t, pool.Current())

	buffer, _, err := pool.Acquire()
	require.NoError(t, err)
	require.Same(t, buffer, pool.Current())
	require.Equal(t, StateMapped, buffer.State())
	require.Equal(t, 0, buffer.Watermark())
	require.Equal(t, 16, buffer.Capacity())

	window, first, ok := buffer.Reserve(3)
	require.True(t, ok)
	require.Equal(t, 0, first)
	require.Len(t, window, 24)
	for i := range window {
		window[i] = byte(i + 1)
	}

	window, first, ok = buffer.Reserve(2)
	require.True(t, ok)
	require.Equal(t, 3, first)
	require.Len(t, window, 16)
	require.Equal(t, 40, buffer.Watermark())
	require.Equal(t, 11, buffer.Remaining())

	_, err = pool.EndFrame()
	require.NoError(t, err)
	require.Nil(t, pool.Current())
	require.Equal(t, StateInFlight, buffer.State())
	require.Equal(t, 1, pool.InFlightCount())

	// Only the written range reaches the device
	require.Len(t, device.Flushes, 1)
	require.Equal(t, 0, device.Flushes[0].Offset)
	require.Equal(t, 40, device.Flushes[0].Size)

	native := buffer.Native().(*gputest.Buffer)
	require.Equal(t, byte(1), native.Contents()[0])
	require.Equal(t, byte(24), native.Contents()[23])
	require.False(t, native.Memory.IsMapped())

	pool.BeginFrame()
	require.Equal(t, StateFree, buffer.State())
	require.Equal(t, 1, pool.FreeCount())
	require.Equal(t, 0, pool.InFlightCount())

	reused, _, err := pool.Acquire()
	require.NoError(t, err)
	require.Same(t, buffer, reused)
	require.Equal(t, 0, reused.Watermark())

	stats := pool.Stats()
	require.Equal(t, 1, stats.BuffersCreated)
	require.Equal(t, 2, stats.Maps)
	require.Equal(t, 1, stats.Flushes)
	require.Equal(t, 40, stats.FlushedBytes)

	pool.Destroy()
	require.Equal(t, 0, device.LiveBuffers())
	require.Equal(t, 0, device.LiveMemories())
	require.NoError(t, allocator.Destroy())
}

func TestPool_UnwrittenBufferFlushesNothing(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 16)

	pool.BeginFrame()
	buffer, _, err := pool.Acquire()
	require.NoError(t, err)

	_, err = pool.EndFrame()
	require.NoError(t, err)

	require.Empty(t, device.Flushes)
	require.Equal(t, 0, pool.Stats().FlushedBytes)
	require.Equal(t, StateFree, buffer.State())
	require.Equal(t, 1, pool.FreeCount())

	pool.Destroy()
}

func TestPool_ReserveBeyondCapacity(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	buffer, _, err := pool.Acquire()
	require.NoError(t, err)

	_, _, ok := buffer.Reserve(4)
	require.True(t, ok)
	require.Equal(t, 0, buffer.Remaining())

	_, _, ok = buffer.Reserve(1)
	require.False(t, ok)
	require.Equal(t, 32, buffer.Watermark())

	_, err = pool.Retire()
	require.NoError(t, err)
	require.Equal(t, 32, device.FlushedBytes())

	// Reserving from a retired buffer is refused
	_, _, ok = buffer.Reserve(1)
	require.False(t, ok)

	pool.Destroy()
}

func TestPool_SwapWithinFrameCreatesBuffer(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	first, _, err := pool.Acquire()
	require.NoError(t, err)
	_, _, ok := first.Reserve(4)
	require.True(t, ok)

	_, err = pool.Retire()
	require.NoError(t, err)

	second, _, err := pool.Acquire()
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 2, pool.Len())

	_, err = pool.EndFrame()
	require.NoError(t, err)

	pool.BeginFrame()
	require.Equal(t, 2, pool.FreeCount())

	pool.Destroy()
}

func TestPool_AcquireWhileMappedPanics(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	_, _, err := pool.Acquire()
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _, _ = pool.Acquire()
	})

	pool.Destroy()
}

func TestPool_MapFailure(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	device.MapFailures = 1

	buffer, res, err := pool.Acquire()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMapFailed))
	require.Equal(t, core1_0.VKErrorMemoryMapFailed, res)
	require.Nil(t, buffer)
	require.Nil(t, pool.Current())
	require.Equal(t, 1, pool.FreeCount())
	require.Equal(t, 1, pool.Stats().MapFailures)

	// The pool is still usable and reuses the same buffer
	buffer, _, err = pool.Acquire()
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())
	require.Equal(t, StateMapped, buffer.State())

	pool.Destroy()
}

func TestPool_CreateFailures(t *testing.T) {
	testCases := map[string]func(device *gputest.Device){
		"CreateBuffer":   func(device *gputest.Device) { device.FailCreateBufferAt = 1 },
		"AllocateMemory": func(device *gputest.Device) { device.FailAllocateAt = 1 },
	}

	for name, setup := range testCases {
		t.Run(name, func(t *testing.T) {
			device := gputest.NewDevice()
			setup(device)
			allocator, pool := readyPool(t, device, 4)

			pool.BeginFrame()
			_, res, err := pool.Acquire()
			require.Error(t, err)
			require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
			require.Equal(t, 0, pool.Len())
			require.Equal(t, 0, device.LiveBuffers())
			require.Equal(t, 0, device.LiveMemories())
			require.NoError(t, allocator.Destroy())
		})
	}
}

func TestPool_CoherentMemorySkipsDeviceFlush(t *testing.T) {
	device := gputest.NewDevice().CoherentOnly()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	buffer, _, err := pool.Acquire()
	require.NoError(t, err)
	_, _, ok := buffer.Reserve(2)
	require.True(t, ok)

	_, err = pool.EndFrame()
	require.NoError(t, err)
	require.Empty(t, device.Flushes)
	require.Equal(t, 16, pool.Stats().FlushedBytes)

	pool.Destroy()
}

func TestPool_BeginFrameRetiresMappedBuffer(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	buffer, _, err := pool.Acquire()
	require.NoError(t, err)
	_, _, ok := buffer.Reserve(1)
	require.True(t, ok)

	pool.BeginFrame()
	require.Nil(t, pool.Current())
	require.Equal(t, StateFree, buffer.State())
	require.Len(t, device.Flushes, 1)
	require.NoError(t, pool.Validate())

	pool.Destroy()
}

func TestPool_Validate(t *testing.T) {
	device := gputest.NewDevice()
	_, pool := readyPool(t, device, 4)

	pool.BeginFrame()
	buffer, _, err := pool.Acquire()
	require.NoError(t, err)
	require.NoError(t, pool.Validate())

	buffer.state = StateInFlight
	require.Error(t, pool.Validate())
	buffer.state = StateMapped

	pool.free = append(pool.free, buffer.index)
	require.Error(t, pool.Validate())
	pool.free = pool.free[:0]

	pool.Destroy()
}
