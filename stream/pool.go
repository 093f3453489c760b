package stream

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"golang.org/x/exp/slog"
)

// ErrMapFailed is returned by Acquire when the chosen buffer could not be mapped. The buffer is
// returned to the free set and the pool remains usable.
var ErrMapFailed = errors.New("streaming buffer could not be mapped")

const noBuffer = -1

// Pool owns a set of streaming buffers for a single component. At most one buffer is mapped at a
// time. Buffers retired during a frame stay in flight until the next BeginFrame.
//
// Pool performs no synchronization of any kind. BeginFrame must only be called once the device
// has finished executing the command buffer that consumed the previous frame's buffers.
type Pool struct {
	logger    *slog.Logger
	allocator *devmem.Allocator
	options   Options

	buffers []*Buffer
	free    []int
	inUse   []int
	current int

	stats memutils.StreamStatistics
}

// New creates an empty pool. Buffers are created on demand by Acquire.
func New(logger *slog.Logger, allocator *devmem.Allocator, options Options) (*Pool, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}

	logger.Debug("Pool::New",
		slog.String("Name", options.Name),
		slog.Int("RecordSize", options.RecordSize),
		slog.Int("Capacity", options.Capacity),
	)

	return &Pool{
		logger:    logger,
		allocator: allocator,
		options:   options,
		current:   noBuffer,
	}, nil
}

// Options returns the options the pool was created with
func (p *Pool) Options() Options { return p.options }

// BeginFrame returns every in-flight buffer to the free set. A buffer still mapped from the
// previous frame is retired first.
func (p *Pool) BeginFrame() {
	if p.current != noBuffer {
		p.logger.Warn("streaming buffer still mapped at frame start", slog.String("Pool", p.options.Name))
		_, err := p.Retire()
		if err != nil {
			p.logger.Error("failed to retire streaming buffer", slog.String("Pool", p.options.Name), slog.Any("error", err))
		}
	}

	for _, index := range p.inUse {
		p.buffers[index].state = StateFree
		p.free = append(p.free, index)
	}
	p.inUse = p.inUse[:0]

	memutils.DebugValidate(p)
}

// Current returns the mapped buffer, or nil if no buffer is mapped
func (p *Pool) Current() *Buffer {
	if p.current == noBuffer {
		return nil
	}
	return p.buffers[p.current]
}

// Acquire maps a free buffer for writing, creating a new one if the free set is empty, and makes
// it the pool's current buffer. It panics if a buffer is already mapped: callers swap buffers by
// calling Retire first.
func (p *Pool) Acquire() (*Buffer, common.VkResult, error) {
	if p.current != noBuffer {
		panic("attempted to acquire a streaming buffer while another is mapped")
	}

	var buffer *Buffer
	if len(p.free) > 0 {
		last := len(p.free) - 1
		buffer = p.buffers[p.free[last]]
		p.free = p.free[:last]
	} else {
		var res common.VkResult
		var err error
		buffer, res, err = p.create()
		if err != nil {
			return nil, res, err
		}
	}

	ptr, res, err := buffer.allocation.Map()
	if err != nil {
		p.free = append(p.free, buffer.index)
		p.stats.MapFailures++
		p.logger.Warn("streaming buffer map failed",
			slog.String("Pool", p.options.Name),
			slog.Int("Buffer", buffer.index),
			slog.Any("error", err),
		)
		return nil, res, errors.Mark(errors.Wrapf(err, "pool %q", p.options.Name), ErrMapFailed)
	}
	p.stats.Maps++

	size := p.options.RecordSize * p.options.Capacity
	offset := buffer.allocation.Offset(0)
	buffer.mapped = unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), size)
	buffer.watermark = 0
	buffer.state = StateMapped
	p.current = buffer.index

	memutils.DebugValidate(p)
	return buffer, res, nil
}

func (p *Pool) create() (*Buffer, common.VkResult, error) {
	device := p.allocator.Device()

	native, res, err := device.CreateBuffer(core1_0.BufferCreateInfo{
		Size:        p.options.RecordSize * p.options.Capacity,
		Usage:       p.options.Usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, res, errors.Wrapf(err, "pool %q: creating streaming buffer", p.options.Name)
	}

	allocation, res, err := p.allocator.AllocateBuffers([]gpu.Buffer{native}, core1_0.MemoryPropertyHostVisible)
	if err != nil {
		native.Destroy()
		return nil, res, errors.Wrapf(err, "pool %q: allocating streaming buffer memory", p.options.Name)
	}

	buffer := &Buffer{
		pool:       p,
		index:      len(p.buffers),
		buffer:     native,
		allocation: allocation,
		state:      StateFree,
	}
	p.buffers = append(p.buffers, buffer)
	p.stats.BuffersCreated++

	p.logger.Debug("Pool::create",
		slog.String("Name", p.options.Name),
		slog.Int("Buffer", buffer.index),
		slog.Int("MemoryTypeIndex", allocation.MemoryTypeIndex()),
	)

	return buffer, core1_0.VKSuccess, nil
}

// Retire flushes the written range of the current buffer, unmaps it, and marks it in flight. A
// buffer nothing was written to goes straight back to the free set. Retire does nothing when no
// buffer is mapped.
func (p *Pool) Retire() (common.VkResult, error) {
	if p.current == noBuffer {
		return core1_0.VKSuccess, nil
	}

	buffer := p.buffers[p.current]
	p.current = noBuffer

	res, err := buffer.allocation.Flush(buffer.allocation.Offset(0), buffer.watermark)
	if buffer.watermark > 0 && err == nil {
		p.stats.Flushes++
		p.stats.FlushedBytes += buffer.watermark
	}

	unmapErr := buffer.allocation.Unmap()
	buffer.mapped = nil

	if buffer.watermark == 0 {
		buffer.state = StateFree
		p.free = append(p.free, buffer.index)
	} else {
		buffer.state = StateInFlight
		p.inUse = append(p.inUse, buffer.index)
	}

	memutils.DebugValidate(p)

	if err != nil {
		return res, errors.Wrapf(err, "pool %q: flushing streaming buffer", p.options.Name)
	}
	if unmapErr != nil {
		return core1_0.VKErrorUnknown, unmapErr
	}
	return res, nil
}

// EndFrame retires the current buffer, if any
func (p *Pool) EndFrame() (common.VkResult, error) {
	return p.Retire()
}

// Destroy releases every buffer and its memory. The device must no longer be using any of them.
func (p *Pool) Destroy() {
	p.logger.Debug("Pool::Destroy", slog.String("Name", p.options.Name), slog.Int("Buffers", len(p.buffers)))

	for _, buffer := range p.buffers {
		buffer.buffer.Destroy()
		buffer.allocation.Free()
		buffer.mapped = nil
	}

	p.buffers = nil
	p.free = nil
	p.inUse = nil
	p.current = noBuffer
}

// Len is the number of buffers the pool has created
func (p *Pool) Len() int { return len(p.buffers) }

// FreeCount is the number of buffers available to Acquire without creating a new one
func (p *Pool) FreeCount() int { return len(p.free) }

// InFlightCount is the number of buffers retired this frame
func (p *Pool) InFlightCount() int { return len(p.inUse) }

// Stats returns the pool's activity counters
func (p *Pool) Stats() memutils.StreamStatistics { return p.stats }

func (p *Pool) PrintJSON(json *jwriter.ObjectState) {
	json.Name("Name").String(p.options.Name)
	json.Name("RecordSize").Int(p.options.RecordSize)
	json.Name("Capacity").Int(p.options.Capacity)
	json.Name("Buffers").Int(len(p.buffers))
	json.Name("Free").Int(len(p.free))
	json.Name("InFlight").Int(len(p.inUse))
	p.stats.PrintJSON(json)
}

// Validate checks that every buffer is in exactly one place and that its state agrees with that
// place
func (p *Pool) Validate() error {
	seen := make([]bool, len(p.buffers))
	mark := func(index int, expected State) error {
		if index < 0 || index >= len(p.buffers) {
			return errors.Newf("buffer index %d is out of range", index)
		}
		if seen[index] {
			return errors.Newf("buffer %d is tracked twice", index)
		}
		seen[index] = true
		if p.buffers[index].state != expected {
			return errors.Newf("buffer %d is %s but tracked as %s", index, p.buffers[index].state, expected)
		}
		if p.buffers[index].watermark > p.options.RecordSize*p.options.Capacity {
			return errors.Newf("buffer %d watermark %d exceeds capacity", index, p.buffers[index].watermark)
		}
		return nil
	}

	for _, index := range p.free {
		if err := mark(index, StateFree); err != nil {
			return err
		}
	}
	for _, index := range p.inUse {
		if err := mark(index, StateInFlight); err != nil {
			return err
		}
	}
	if p.current != noBuffer {
		if err := mark(p.current, StateMapped); err != nil {
			return err
		}
	}

	for index, ok := range seen {
		if !ok {
			return errors.Newf("buffer %d is not tracked", index)
		}
	}
	return nil
}
