// Package placement plans how a batch of buffers or images is packed into one device memory
// allocation: the byte offset of every resource, the total allocation size, and the memory type
// the allocation is drawn from.
package placement

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/memutils"
)

var (
	// ErrNoCompatibleMemoryType is returned when no memory type is usable by every resource in the
	// request and also carries every required property flag
	ErrNoCompatibleMemoryType = errors.New("no compatible memory type")
	// ErrEmptyRequest is returned when there is nothing to place
	ErrEmptyRequest = errors.New("placement request contains no resources")
)

// Requirement is the memory requirement of a single resource
type Requirement struct {
	Size      int
	Alignment int
	// MemoryTypeBits has bit i set when memory type i may back this resource
	MemoryTypeBits uint32
}

// RequirementFrom converts a driver-reported memory requirement
func RequirementFrom(reqs *core1_0.MemoryRequirements) Requirement {
	return Requirement{
		Size:           reqs.Size,
		Alignment:      reqs.Alignment,
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

// Placement is the planned layout of one allocation. Offsets has one entry per requested
// resource, in request order.
type Placement struct {
	Offsets         []int
	Size            int
	MemoryTypeIndex int

	requirements []Requirement
	granularity  int
}

// Plan walks requirements in order, placing each resource at the running offset rounded up first
// to granularity and then to the resource's own alignment. It then selects the lowest-indexed
// memory type that every resource accepts and whose property flags contain requiredFlags.
//
// Nothing is allocated: on failure the caller has nothing to unwind.
func Plan(
	requirements []Requirement,
	granularity int,
	memoryTypes []core1_0.MemoryType,
	requiredFlags core1_0.MemoryPropertyFlags,
) (*Placement, common.VkResult, error) {
	if len(requirements) == 0 {
		return nil, core1_0.VKErrorUnknown, ErrEmptyRequest
	}

	if granularity < 1 {
		granularity = 1
	}
	err := memutils.CheckPow2(granularity, "granularity")
	if err != nil {
		return nil, core1_0.VKErrorUnknown, err
	}

	placement := &Placement{
		Offsets:      make([]int, len(requirements)),
		requirements: make([]Requirement, len(requirements)),
		granularity:  granularity,
	}

	usableTypes := ^uint32(0)
	offset := 0
	for i, req := range requirements {
		if req.Alignment < 1 {
			req.Alignment = 1
		}
		err = memutils.CheckPow2(req.Alignment, "resource alignment")
		if err != nil {
			return nil, core1_0.VKErrorUnknown, errors.Wrapf(err, "resource %d", i)
		}
		if req.Size < 0 {
			return nil, core1_0.VKErrorUnknown, errors.Newf("resource %d has negative size %d", i, req.Size)
		}

		offset = memutils.AlignUp(offset, granularity)
		offset = memutils.AlignUp(offset, req.Alignment)

		placement.Offsets[i] = offset
		placement.requirements[i] = req
		offset += req.Size

		usableTypes &= req.MemoryTypeBits
	}
	placement.Size = offset

	if placement.Size == 0 {
		return nil, core1_0.VKErrorUnknown, errors.Wrap(ErrEmptyRequest, "all resources are zero-sized")
	}

	placement.MemoryTypeIndex, err = FindMemoryTypeIndex(usableTypes, memoryTypes, requiredFlags)
	if err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	memutils.DebugValidate(placement)
	return placement, core1_0.VKSuccess, nil
}

// FindMemoryTypeIndex scans usableTypes from its lowest set bit upward and returns the first
// memory type whose property flags contain requiredFlags. Partial matches are never selected.
func FindMemoryTypeIndex(usableTypes uint32, memoryTypes []core1_0.MemoryType, requiredFlags core1_0.MemoryPropertyFlags) (int, error) {
	for usableTypes != 0 {
		typeIndex := bits.TrailingZeros32(usableTypes)
		if typeIndex >= len(memoryTypes) {
			break
		}

		if memoryTypes[typeIndex].PropertyFlags&requiredFlags == requiredFlags {
			return typeIndex, nil
		}

		usableTypes &^= 1 << typeIndex
	}

	return -1, errors.Wrapf(ErrNoCompatibleMemoryType, "required flags %v", requiredFlags)
}

// Validate checks that every offset is aligned, that no two resources overlap, that every
// boundary respects the granularity, and that the total size covers the last resource
func (p *Placement) Validate() error {
	if len(p.Offsets) != len(p.requirements) {
		return errors.Newf("placement has %d offsets for %d resources", len(p.Offsets), len(p.requirements))
	}

	end := 0
	for i, offset := range p.Offsets {
		req := p.requirements[i]
		if offset%req.Alignment != 0 {
			return errors.Newf("resource %d at offset %d violates alignment %d", i, offset, req.Alignment)
		}
		if offset%p.granularity != 0 {
			return errors.Newf("resource %d at offset %d violates granularity %d", i, offset, p.granularity)
		}
		if offset < end {
			return errors.Newf("resource %d at offset %d overlaps the previous resource ending at %d", i, offset, end)
		}
		end = offset + req.Size
	}

	if p.Size < end {
		return errors.Newf("placement size %d does not cover the last resource ending at %d", p.Size, end)
	}

	return nil
}

// AddDetailedStatistics records each placed resource as an allocation and each alignment gap
// between resources as an unused range
func (p *Placement) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += p.Size

	end := 0
	for i, offset := range p.Offsets {
		if offset > end {
			stats.AddUnusedRange(offset - end)
		}
		stats.AddAllocation(p.requirements[i].Size)
		end = offset + p.requirements[i].Size
	}
}
