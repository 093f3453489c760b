package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/tilerender/gpu"
)

type deviceMemory struct {
	memory    core1_0.DeviceMemory
	callbacks *driver.AllocationCallbacks
}

var _ gpu.Memory = &deviceMemory{}

func (m *deviceMemory) Map(offset, size int) (unsafe.Pointer, common.VkResult, error) {
	return m.memory.Map(offset, size, 0)
}

func (m *deviceMemory) Unmap() {
	m.memory.Unmap()
}

func (m *deviceMemory) Free() {
	m.memory.Free(m.callbacks)
}

type buffer struct {
	buffer    core1_0.Buffer
	callbacks *driver.AllocationCallbacks
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) MemoryRequirements() *core1_0.MemoryRequirements {
	return b.buffer.MemoryRequirements()
}

func (b *buffer) Destroy() {
	b.buffer.Destroy(b.callbacks)
}

type image struct {
	image     core1_0.Image
	callbacks *driver.AllocationCallbacks
}

var _ gpu.Image = &image{}

func (i *image) MemoryRequirements() *core1_0.MemoryRequirements {
	return i.image.MemoryRequirements()
}

func (i *image) Destroy() {
	i.image.Destroy(i.callbacks)
}

// WrapBuffer adopts a buffer created elsewhere (static geometry, for instance) so that it can be
// bound or drawn through the gpu interfaces
func WrapBuffer(b core1_0.Buffer, callbacks *driver.AllocationCallbacks) gpu.Buffer {
	return &buffer{buffer: b, callbacks: callbacks}
}

// WrapImage adopts an image created elsewhere so that it can be placed by devmem.Allocator
func WrapImage(i core1_0.Image, callbacks *driver.AllocationCallbacks) gpu.Image {
	return &image{image: i, callbacks: callbacks}
}

// NativeMemory returns the vkngwrapper handle behind a gpu.Memory. Memory that was not allocated by
// a Device from this package has no native handle and produces an error.
func NativeMemory(m gpu.Memory) (core1_0.DeviceMemory, error) {
	switch v := m.(type) {
	case *deviceMemory:
		return v.memory, nil
	case nil:
		return nil, errors.New("attempted to resolve a nil memory")
	}

	return nil, errors.Newf("memory of type %T has no native vulkan handle", m)
}

// NativeBuffer returns the vkngwrapper handle behind a gpu.Buffer
func NativeBuffer(b gpu.Buffer) (core1_0.Buffer, error) {
	switch v := b.(type) {
	case *buffer:
		return v.buffer, nil
	case nil:
		return nil, errors.New("attempted to resolve a nil buffer")
	}

	return nil, errors.Newf("buffer of type %T has no native vulkan handle", b)
}

// NativeImage returns the vkngwrapper handle behind a gpu.Image
func NativeImage(i gpu.Image) (core1_0.Image, error) {
	switch v := i.(type) {
	case *image:
		return v.image, nil
	case nil:
		return nil, errors.New("attempted to resolve a nil image")
	}

	return nil, errors.Newf("image of type %T has no native vulkan handle", i)
}
