package devmem

import "github.com/vkngwrapper/tilerender/gpu"

type AllocateDeviceMemoryCallback func(
	allocator *Allocator,
	memoryType int,
	memory gpu.Memory,
	size int,
	userData interface{},
)

type FreeDeviceMemoryCallback func(
	allocator *Allocator,
	memoryType int,
	memory gpu.Memory,
	size int,
	userData interface{},
)

// MemoryCallbackOptions is an optional set of callbacks executed whenever the Allocator allocates
// or frees device memory
type MemoryCallbackOptions struct {
	Allocate AllocateDeviceMemoryCallback
	Free     FreeDeviceMemoryCallback
	UserData interface{}
}

func (a *Allocator) notifyAllocate(memoryType int, memory gpu.Memory, size int) {
	c := a.memoryCallbacks
	if c != nil && c.Allocate != nil {
		c.Allocate(a, memoryType, memory, size, c.UserData)
	}
}

func (a *Allocator) notifyFree(memoryType int, memory gpu.Memory, size int) {
	c := a.memoryCallbacks
	if c != nil && c.Free != nil {
		c.Free(a, memoryType, memory, size, c.UserData)
	}
}
