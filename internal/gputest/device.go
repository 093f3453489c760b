// Package gputest provides in-memory implementations of the gpu interfaces. Device memory is
// backed by byte slices so tests can map, write, flush and read back exactly what a draw would
// consume.
package gputest

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
)

// Device is a fake gpu.Device. Its exported fields may be changed between calls to inject
// failures or alter what the device reports.
type Device struct {
	MemoryTypes  []core1_0.MemoryType
	MemoryHeaps  []core1_0.MemoryHeap
	DeviceLimits gpu.Limits
	Caps         gpu.Capabilities

	// BufferAlignment is the alignment reported for every created buffer
	BufferAlignment int
	// MemoryTypeBits is reported as the usable memory types of every created buffer
	MemoryTypeBits uint32

	// MapFailures is the number of upcoming Map calls that will fail
	MapFailures int
	// FailCreateBufferAt makes the Nth CreateBuffer call (counting from 1) fail
	FailCreateBufferAt int
	// FailAllocateAt makes the Nth AllocateMemory call (counting from 1) fail
	FailAllocateAt int

	Buffers  []*Buffer
	Memories []*Memory
	Flushes  []gpu.MappedRange

	createBufferCalls int
	allocateCalls     int
}

var _ gpu.Device = &Device{}

// NewDevice returns a device with a device-local type, a host-visible non-coherent type and a
// host-visible coherent type, in that order
func NewDevice() *Device {
	return &Device{
		MemoryTypes: []core1_0.MemoryType{
			{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: core1_0.MemoryPropertyHostVisible, HeapIndex: 1},
			{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent, HeapIndex: 1},
		},
		MemoryHeaps: []core1_0.MemoryHeap{
			{Size: 1 << 30, Flags: core1_0.MemoryHeapDeviceLocal},
			{Size: 1 << 28},
		},
		DeviceLimits: gpu.Limits{
			BufferImageGranularity: 1,
			NonCoherentAtomSize:    1,
		},
		Caps: gpu.Capabilities{
			MultiDrawIndirect:    true,
			MaxDrawIndirectCount: 1024,
			MultiViewport:        true,
			BatchedBind:          true,
		},
		BufferAlignment: 16,
		MemoryTypeBits:  0x7,
	}
}

// CoherentOnly removes the non-coherent host-visible memory type so that every host-visible
// allocation is coherent
func (d *Device) CoherentOnly() *Device {
	d.MemoryTypes = []core1_0.MemoryType{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent, HeapIndex: 1},
	}
	d.MemoryTypeBits = 0x3
	return d
}

func (d *Device) MemoryProperties() *core1_0.PhysicalDeviceMemoryProperties {
	return &core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: d.MemoryTypes,
		MemoryHeaps: d.MemoryHeaps,
	}
}

func (d *Device) Limits() gpu.Limits { return d.DeviceLimits }

func (d *Device) Capabilities() gpu.Capabilities { return d.Caps }

func (d *Device) CreateBuffer(info core1_0.BufferCreateInfo) (gpu.Buffer, common.VkResult, error) {
	d.createBufferCalls++
	if d.createBufferCalls == d.FailCreateBufferAt {
		return nil, core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError()
	}

	buffer := &Buffer{
		device: d,
		Info:   info,
		requirements: core1_0.MemoryRequirements{
			Size:           info.Size,
			Alignment:      d.BufferAlignment,
			MemoryTypeBits: d.MemoryTypeBits,
		},
	}
	d.Buffers = append(d.Buffers, buffer)
	return buffer, core1_0.VKSuccess, nil
}

func (d *Device) AllocateMemory(info core1_0.MemoryAllocateInfo) (gpu.Memory, common.VkResult, error) {
	d.allocateCalls++
	if d.allocateCalls == d.FailAllocateAt {
		return nil, core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError()
	}

	memory := &Memory{
		device:          d,
		Data:            make([]byte, info.AllocationSize),
		MemoryTypeIndex: info.MemoryTypeIndex,
	}
	d.Memories = append(d.Memories, memory)
	return memory, core1_0.VKSuccess, nil
}

func (d *Device) BindBufferMemory(memory gpu.Memory, bindings []gpu.BufferBinding) (common.VkResult, error) {
	fake, ok := memory.(*Memory)
	if !ok {
		return core1_0.VKErrorUnknown, errors.New("memory was not allocated by this device")
	}

	for _, binding := range bindings {
		buffer, ok := binding.Buffer.(*Buffer)
		if !ok {
			return core1_0.VKErrorUnknown, errors.New("buffer was not created by this device")
		}
		if buffer.Memory != nil {
			return core1_0.VKErrorUnknown, errors.New("buffer is already bound")
		}
		if binding.Offset+buffer.Info.Size > len(fake.Data) {
			return core1_0.VKErrorUnknown, errors.Newf("binding at %d overruns a %d-byte allocation",
				binding.Offset, len(fake.Data))
		}
	}

	for _, binding := range bindings {
		buffer := binding.Buffer.(*Buffer)
		buffer.Memory = fake
		buffer.Offset = binding.Offset
	}
	return core1_0.VKSuccess, nil
}

func (d *Device) BindImageMemory(memory gpu.Memory, bindings []gpu.ImageBinding) (common.VkResult, error) {
	return core1_0.VKErrorFeatureNotPresent, errors.New("the fake device does not create images")
}

func (d *Device) FlushMappedRanges(ranges []gpu.MappedRange) (common.VkResult, error) {
	for _, r := range ranges {
		fake, ok := r.Memory.(*Memory)
		if !ok {
			return core1_0.VKErrorUnknown, errors.New("memory was not allocated by this device")
		}
		if fake.mapCount == 0 {
			return core1_0.VKErrorUnknown, errors.New("flushed memory is not mapped")
		}
		if r.Offset < 0 || r.Offset+r.Size > len(fake.Data) {
			return core1_0.VKErrorUnknown, errors.Newf("flush range [%d, %d) is outside the allocation",
				r.Offset, r.Offset+r.Size)
		}
	}

	d.Flushes = append(d.Flushes, ranges...)
	return core1_0.VKSuccess, nil
}

// FlushedBytes sums the sizes of every range flushed so far
func (d *Device) FlushedBytes() int {
	total := 0
	for _, r := range d.Flushes {
		total += r.Size
	}
	return total
}

// LiveBuffers counts buffers that have been created but not destroyed
func (d *Device) LiveBuffers() int {
	count := 0
	for _, buffer := range d.Buffers {
		if !buffer.Destroyed {
			count++
		}
	}
	return count
}

// LiveMemories counts allocations that have not been freed
func (d *Device) LiveMemories() int {
	count := 0
	for _, memory := range d.Memories {
		if !memory.Freed {
			count++
		}
	}
	return count
}

// Buffer is a fake gpu.Buffer
type Buffer struct {
	device       *Device
	requirements core1_0.MemoryRequirements

	Info      core1_0.BufferCreateInfo
	Memory    *Memory
	Offset    int
	Destroyed bool
}

func (b *Buffer) MemoryRequirements() *core1_0.MemoryRequirements {
	reqs := b.requirements
	return &reqs
}

func (b *Buffer) Destroy() {
	if b.Destroyed {
		panic("buffer destroyed twice")
	}
	b.Destroyed = true
}

// Contents returns the bytes of the memory the buffer is bound to
func (b *Buffer) Contents() []byte {
	if b.Memory == nil {
		return nil
	}
	return b.Memory.Data[b.Offset : b.Offset+b.Info.Size]
}

// Memory is a fake gpu.Memory backed by a byte slice
type Memory struct {
	device *Device

	Data            []byte
	MemoryTypeIndex int
	Freed           bool
	Maps            int

	mapCount int
}

func (m *Memory) Map(offset, size int) (unsafe.Pointer, common.VkResult, error) {
	if m.device.MapFailures > 0 {
		m.device.MapFailures--
		return nil, core1_0.VKErrorMemoryMapFailed, core1_0.VKErrorMemoryMapFailed.ToError()
	}
	if m.mapCount > 0 {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.New("memory is already mapped")
	}
	if offset < 0 || offset+size > len(m.Data) || size <= 0 {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.Newf("map range [%d, %d) is outside the allocation",
			offset, offset+size)
	}

	m.mapCount++
	m.Maps++
	return unsafe.Pointer(&m.Data[offset]), core1_0.VKSuccess, nil
}

func (m *Memory) Unmap() {
	if m.mapCount == 0 {
		panic("memory unmapped while not mapped")
	}
	m.mapCount--
}

// IsMapped is true between a successful Map and its Unmap
func (m *Memory) IsMapped() bool { return m.mapCount > 0 }

func (m *Memory) Free() {
	if m.Freed {
		panic("memory freed twice")
	}
	m.Freed = true
}
