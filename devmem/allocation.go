package devmem

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"github.com/vkngwrapper/tilerender/placement"
	"golang.org/x/exp/slog"
)

// Allocation is one block of device memory with a fixed set of resources bound into it. It does
// not retain the resources themselves, only where they were placed.
type Allocation struct {
	allocator *Allocator
	id        int
	memory    gpu.Memory
	placement *placement.Placement
	heapIndex int
	coherent  bool

	mapCount int
	mapped   unsafe.Pointer
}

// Memory is the device memory backing the allocation
func (a *Allocation) Memory() gpu.Memory { return a.memory }

// MemoryTypeIndex is the memory type the allocation was drawn from
func (a *Allocation) MemoryTypeIndex() int { return a.placement.MemoryTypeIndex }

// Size is the total size of the allocation in bytes
func (a *Allocation) Size() int { return a.placement.Size }

// ResourceCount is the number of resources bound into the allocation
func (a *Allocation) ResourceCount() int { return len(a.placement.Offsets) }

// Offset returns the byte offset of the resource at index in the allocated batch
func (a *Allocation) Offset(index int) int { return a.placement.Offsets[index] }

// IsHostCoherent is true when writes through Map are visible to the device without Flush
func (a *Allocation) IsHostCoherent() bool { return a.coherent }

// Map maps the entire allocation into host memory and returns a pointer to its first byte. Map may
// be called more than once: every successful call must be paired with an Unmap, and the memory is
// unmapped when the last one is made.
func (a *Allocation) Map() (unsafe.Pointer, common.VkResult, error) {
	if a.memory == nil {
		return nil, core1_0.VKErrorUnknown, errors.New("attempted to map a freed allocation")
	}

	if a.mapCount > 0 {
		a.mapCount++
		return a.mapped, core1_0.VKSuccess, nil
	}

	ptr, res, err := a.memory.Map(0, a.placement.Size)
	if err != nil {
		return nil, res, err
	}
	if ptr == nil {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.New("device returned a nil mapping")
	}

	a.mapped = ptr
	a.mapCount = 1
	return ptr, res, nil
}

// Unmap releases one successful Map call
func (a *Allocation) Unmap() error {
	if a.mapCount == 0 {
		return errors.New("attempted to unmap an allocation that was not mapped")
	}

	a.mapCount--
	if a.mapCount == 0 {
		a.memory.Unmap()
		a.mapped = nil
	}
	return nil
}

// IsMapped is true while at least one Map call has not been released
func (a *Allocation) IsMapped() bool { return a.mapCount > 0 }

// Flush makes host writes to [offset, offset+size) visible to the device. The range is expanded
// outward to the device's non-coherent atom size and clamped to the allocation. On host-coherent
// memory or an empty range this does nothing.
func (a *Allocation) Flush(offset, size int) (common.VkResult, error) {
	if offset < 0 || size < 0 || offset+size > a.placement.Size {
		return core1_0.VKErrorUnknown, errors.Newf("flush range [%d, %d) is outside a %d-byte allocation",
			offset, offset+size, a.placement.Size)
	}
	if a.coherent || size == 0 {
		return core1_0.VKSuccess, nil
	}

	offset, size = memutils.AlignRange(offset, size, a.allocator.nonCoherentAtomSize, a.placement.Size)
	return a.allocator.FlushRange(a.placement.MemoryTypeIndex, a.memory, offset, size)
}

// Free unmaps the allocation if necessary and returns its memory to the device. Resources bound
// into the allocation must already have been destroyed.
func (a *Allocation) Free() {
	if a.memory == nil {
		return
	}

	a.allocator.logger.Debug("Allocation::Free",
		slog.Int("Id", a.id),
		slog.Int("Size", a.placement.Size),
	)

	if a.mapCount > 0 {
		a.memory.Unmap()
		a.mapCount = 0
		a.mapped = nil
	}

	a.allocator.release(a)
	a.memory.Free()
	a.memory = nil
}

func (a *Allocation) printJSON(json *jwriter.ObjectState) {
	json.Name("Id").Int(a.id)
	json.Name("MemoryTypeIndex").Int(a.placement.MemoryTypeIndex)
	json.Name("Size").Int(a.placement.Size)
	json.Name("Mapped").Bool(a.mapCount > 0)

	offsets := json.Name("Offsets").Array()
	for _, offset := range a.placement.Offsets {
		offsets.Int(offset)
	}
	offsets.End()
}
