package devmem

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/internal/utils"
	"github.com/vkngwrapper/tilerender/memutils"
	"github.com/vkngwrapper/tilerender/placement"
	"golang.org/x/exp/slog"
)

// Allocator creates one device memory allocation per batch of resources and binds every resource
// in the batch at its planned offset. An allocation's layout is fixed when it is created: memory is
// never suballocated again after the batch is bound.
type Allocator struct {
	logger          *slog.Logger
	device          gpu.Device
	createFlags     CreateFlags
	memoryCallbacks *MemoryCallbackOptions

	memoryProperties    *core1_0.PhysicalDeviceMemoryProperties
	granularity         int
	nonCoherentAtomSize int

	mutex       utils.OptionalRWMutex
	nextID      int
	allocations *swiss.Map[int, *Allocation]
}

// resourceBatch hides whether a batch holds buffers or images from the shared allocation path
type resourceBatch interface {
	Len() int
	Requirements(index int) *core1_0.MemoryRequirements
	Bind(device gpu.Device, memory gpu.Memory, offsets []int) (common.VkResult, error)
}

type bufferBatch []gpu.Buffer

func (b bufferBatch) Len() int { return len(b) }
func (b bufferBatch) Requirements(index int) *core1_0.MemoryRequirements {
	return b[index].MemoryRequirements()
}
func (b bufferBatch) Bind(device gpu.Device, memory gpu.Memory, offsets []int) (common.VkResult, error) {
	bindings := make([]gpu.BufferBinding, 0, len(b))
	for i, buffer := range b {
		bindings = append(bindings, gpu.BufferBinding{Buffer: buffer, Offset: offsets[i]})
	}
	return device.BindBufferMemory(memory, bindings)
}

type imageBatch []gpu.Image

func (b imageBatch) Len() int { return len(b) }
func (b imageBatch) Requirements(index int) *core1_0.MemoryRequirements {
	return b[index].MemoryRequirements()
}
func (b imageBatch) Bind(device gpu.Device, memory gpu.Memory, offsets []int) (common.VkResult, error) {
	bindings := make([]gpu.ImageBinding, 0, len(b))
	for i, image := range b {
		bindings = append(bindings, gpu.ImageBinding{Image: image, Offset: offsets[i]})
	}
	return device.BindImageMemory(memory, bindings)
}

// AllocateBuffers allocates a single block of device memory with the requested property flags and
// binds every buffer in it. Either every buffer is bound or, on failure, none are and no memory
// remains allocated.
func (a *Allocator) AllocateBuffers(buffers []gpu.Buffer, flags core1_0.MemoryPropertyFlags) (*Allocation, common.VkResult, error) {
	a.logger.Debug("Allocator::AllocateBuffers", slog.Int("Count", len(buffers)))
	return a.allocate(bufferBatch(buffers), flags)
}

// AllocateImages allocates a single block of device memory with the requested property flags and
// binds every image in it. Either every image is bound or, on failure, none are and no memory
// remains allocated.
func (a *Allocator) AllocateImages(images []gpu.Image, flags core1_0.MemoryPropertyFlags) (*Allocation, common.VkResult, error) {
	a.logger.Debug("Allocator::AllocateImages", slog.Int("Count", len(images)))
	return a.allocate(imageBatch(images), flags)
}

func (a *Allocator) allocate(batch resourceBatch, flags core1_0.MemoryPropertyFlags) (*Allocation, common.VkResult, error) {
	count := batch.Len()
	requirements := make([]placement.Requirement, 0, count)
	for i := 0; i < count; i++ {
		reqs := batch.Requirements(i)
		if reqs == nil {
			return nil, core1_0.VKErrorUnknown, errors.Newf("resource %d reported no memory requirements", i)
		}
		requirements = append(requirements, placement.RequirementFrom(reqs))
	}

	plan, res, err := placement.Plan(requirements, a.granularity, a.memoryProperties.MemoryTypes, flags)
	if err != nil {
		return nil, res, err
	}

	memory, res, err := a.device.AllocateMemory(core1_0.MemoryAllocateInfo{
		AllocationSize:  plan.Size,
		MemoryTypeIndex: plan.MemoryTypeIndex,
	})
	if err != nil {
		return nil, res, err
	}

	res, err = batch.Bind(a.device, memory, plan.Offsets)
	if err != nil {
		memory.Free()
		return nil, res, errors.Wrapf(err, "binding %d resources to a %d-byte allocation", count, plan.Size)
	}

	allocation := &Allocation{
		allocator: a,
		memory:    memory,
		placement: plan,
		heapIndex: a.memoryProperties.MemoryTypes[plan.MemoryTypeIndex].HeapIndex,
		coherent:  a.isHostCoherent(plan.MemoryTypeIndex),
	}

	a.mutex.Lock()
	allocation.id = a.nextID
	a.nextID++
	a.allocations.Put(allocation.id, allocation)
	a.mutex.Unlock()

	a.notifyAllocate(plan.MemoryTypeIndex, memory, plan.Size)

	return allocation, core1_0.VKSuccess, nil
}

func (a *Allocator) release(allocation *Allocation) {
	a.mutex.Lock()
	_, live := a.allocations.Get(allocation.id)
	a.allocations.Delete(allocation.id)
	a.mutex.Unlock()

	if !live {
		panic(fmt.Sprintf("allocation %d was released twice", allocation.id))
	}

	a.notifyFree(allocation.placement.MemoryTypeIndex, allocation.memory, allocation.placement.Size)
}

// MemoryTypeCount returns the number of memory types the device exposes
func (a *Allocator) MemoryTypeCount() int {
	return len(a.memoryProperties.MemoryTypes)
}

// MemoryTypeProperties returns the property flags of a single memory type
func (a *Allocator) MemoryTypeProperties(memoryTypeIndex int) core1_0.MemoryPropertyFlags {
	return a.memoryProperties.MemoryTypes[memoryTypeIndex].PropertyFlags
}

// IsMemoryTypeHostCoherent returns true if host writes to memory of this type are visible to the
// device without an explicit flush
func (a *Allocator) IsMemoryTypeHostCoherent(memoryTypeIndex int) bool {
	return a.isHostCoherent(memoryTypeIndex)
}

func (a *Allocator) isHostCoherent(memoryTypeIndex int) bool {
	if memoryTypeIndex < 0 || memoryTypeIndex >= len(a.memoryProperties.MemoryTypes) {
		return false
	}
	return a.memoryProperties.MemoryTypes[memoryTypeIndex].PropertyFlags&core1_0.MemoryPropertyHostCoherent != 0
}

// NonCoherentAtomSize is the alignment flushed ranges are expanded to on non-coherent memory
func (a *Allocator) NonCoherentAtomSize() int {
	return a.nonCoherentAtomSize
}

// Device returns the device this allocator allocates from
func (a *Allocator) Device() gpu.Device {
	return a.device
}

// CalculateStatistics gathers the statistics of every live allocation into total and returns the
// per-heap breakdown
func (a *Allocator) CalculateStatistics(total *memutils.DetailedStatistics) []memutils.DetailedStatistics {
	heaps := make([]memutils.DetailedStatistics, len(a.memoryProperties.MemoryHeaps))
	for heapIndex := range heaps {
		heaps[heapIndex].Clear()
	}

	a.mutex.RLock()
	a.allocations.Iter(func(id int, allocation *Allocation) bool {
		if allocation.heapIndex >= 0 && allocation.heapIndex < len(heaps) {
			allocation.placement.AddDetailedStatistics(&heaps[allocation.heapIndex])
		}
		return false
	})
	a.mutex.RUnlock()

	total.Clear()
	for heapIndex := range heaps {
		total.AddDetailedStatistics(&heaps[heapIndex])
	}

	return heaps
}

// AllocationCount returns the number of allocations that have not been freed
func (a *Allocator) AllocationCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.allocations.Count()
}

// BuildStatsString produces a JSON document describing every heap and every live allocation
func (a *Allocator) BuildStatsString() string {
	var total memutils.DetailedStatistics
	heaps := a.CalculateStatistics(&total)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	totalObj := objState.Name("Total").Object()
	total.PrintJSON(&totalObj)
	totalObj.End()

	heapArray := objState.Name("Heaps").Array()
	for heapIndex := range heaps {
		heapObj := heapArray.Object()
		heapObj.Name("Index").Int(heapIndex)
		heapObj.Name("Size").Int(a.memoryProperties.MemoryHeaps[heapIndex].Size)
		heapObj.Name("Flags").String(fmt.Sprint(a.memoryProperties.MemoryHeaps[heapIndex].Flags))
		heaps[heapIndex].PrintJSON(&heapObj)
		heapObj.End()
	}
	heapArray.End()

	typeArray := objState.Name("MemoryTypes").Array()
	for typeIndex := 0; typeIndex < a.MemoryTypeCount(); typeIndex++ {
		typeObj := typeArray.Object()
		typeObj.Name("Index").Int(typeIndex)
		typeObj.Name("HeapIndex").Int(a.memoryProperties.MemoryTypes[typeIndex].HeapIndex)
		typeObj.Name("Flags").String(fmt.Sprint(a.MemoryTypeProperties(typeIndex)))
		typeObj.Name("HostCoherent").Bool(a.isHostCoherent(typeIndex))
		typeObj.End()
	}
	typeArray.End()

	a.mutex.RLock()
	allocArray := objState.Name("Allocations").Array()
	a.allocations.Iter(func(id int, allocation *Allocation) bool {
		allocObj := allocArray.Object()
		allocation.printJSON(&allocObj)
		allocObj.End()
		return false
	})
	allocArray.End()
	a.mutex.RUnlock()

	objState.End()
	return string(writer.Bytes())
}

// Destroy reports every allocation that was never freed. It does not free them: the owners of
// those allocations still hold resources bound to them.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	leaked := a.allocations.Count()
	if leaked == 0 {
		return nil
	}

	a.allocations.Iter(func(id int, allocation *Allocation) bool {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] allocation leaked",
			slog.Int("Id", id),
			slog.Int("MemoryTypeIndex", allocation.placement.MemoryTypeIndex),
			slog.Int("Size", allocation.placement.Size),
			slog.Int("Resources", len(allocation.placement.Offsets)),
		)
		return false
	})

	return errors.Newf("allocator destroyed with %d unreleased allocations", leaked)
}
