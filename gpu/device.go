package gpu

//go:generate mockgen -source device.go -destination ./mocks/device.go -package mock_gpu

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Resource is anything that needs backing device memory
type Resource interface {
	MemoryRequirements() *core1_0.MemoryRequirements
	Destroy()
}

// Buffer is a device buffer. It is bound to memory through Device.BindBufferMemory
type Buffer interface {
	Resource
}

// Image is a device image. It is bound to memory through Device.BindImageMemory
type Image interface {
	Resource
}

// Memory is a single device memory allocation
type Memory interface {
	// Map maps size bytes starting at offset into host address space
	Map(offset, size int) (unsafe.Pointer, common.VkResult, error)
	Unmap()
	Free()
}

type BufferBinding struct {
	Buffer Buffer
	Offset int
}

type ImageBinding struct {
	Image  Image
	Offset int
}

// MappedRange is a byte range of a Memory that the host has written and the device must see
type MappedRange struct {
	Memory Memory
	Offset int
	Size   int
}

// Limits holds the device limits the allocator needs
type Limits struct {
	// BufferImageGranularity is the minimum spacing between adjacent linear and optimal resources
	BufferImageGranularity int
	// NonCoherentAtomSize is the alignment required of flushed ranges on non-coherent memory
	NonCoherentAtomSize int
}

// Device is the resource-creation surface the renderer core consumes
type Device interface {
	MemoryProperties() *core1_0.PhysicalDeviceMemoryProperties
	Limits() Limits
	Capabilities() Capabilities

	CreateBuffer(info core1_0.BufferCreateInfo) (Buffer, common.VkResult, error)
	AllocateMemory(info core1_0.MemoryAllocateInfo) (Memory, common.VkResult, error)

	// BindBufferMemory binds every buffer in bindings to memory at its offset
	BindBufferMemory(memory Memory, bindings []BufferBinding) (common.VkResult, error)
	// BindImageMemory binds every image in bindings to memory at its offset
	BindImageMemory(memory Memory, bindings []ImageBinding) (common.VkResult, error)

	FlushMappedRanges(ranges []MappedRange) (common.VkResult, error)
}
