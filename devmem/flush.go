package devmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"golang.org/x/exp/slog"
)

// FlushRange makes host writes to [offset, offset+size) of memory visible to the device. When the
// memory type is host-coherent, or the range is empty, no device call is made. Otherwise exactly
// the requested range is flushed: callers flushing a sub-range of non-coherent memory are
// responsible for aligning it to NonCoherentAtomSize, as Allocation.Flush does.
func (a *Allocator) FlushRange(memoryTypeIndex int, memory gpu.Memory, offset, size int) (common.VkResult, error) {
	if memoryTypeIndex < 0 || memoryTypeIndex >= len(a.memoryProperties.MemoryTypes) {
		return core1_0.VKErrorUnknown, errors.Newf("memory type index %d is out of range", memoryTypeIndex)
	}
	if size == 0 || a.isHostCoherent(memoryTypeIndex) {
		return core1_0.VKSuccess, nil
	}
	if memory == nil {
		return core1_0.VKErrorUnknown, errors.New("attempted to flush nil memory")
	}

	a.logger.Debug("Allocator::FlushRange",
		slog.Int("MemoryTypeIndex", memoryTypeIndex),
		slog.Int("Offset", offset),
		slog.Int("Size", size),
	)

	return a.device.FlushMappedRanges([]gpu.MappedRange{
		{Memory: memory, Offset: offset, Size: size},
	})
}
