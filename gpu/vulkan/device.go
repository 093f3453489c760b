package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"golang.org/x/exp/slog"
)

// Device implements gpu.Device on top of a vkngwrapper logical device
type Device struct {
	logger    *slog.Logger
	device    core1_0.Device
	callbacks *driver.AllocationCallbacks

	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
	limits           gpu.Limits
	capabilities     gpu.Capabilities
	extensions       *extensionData
}

var _ gpu.Device = &Device{}

// NewDevice reads the properties and limits of physicalDevice once and wraps device.
// enabledFeatures must be the EnabledFeatures device was created with; nil means no optional
// features are in use. callbacks may be nil.
func NewDevice(logger *slog.Logger, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, enabledFeatures *core1_0.PhysicalDeviceFeatures, callbacks *driver.AllocationCallbacks) (*Device, error) {
	properties, err := physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	err = memutils.CheckPow2(properties.Limits.BufferImageGranularity, "device bufferImageGranularity")
	if err != nil {
		return nil, err
	}
	err = memutils.CheckPow2(properties.Limits.NonCoherentAtomSize, "device nonCoherentAtomSize")
	if err != nil {
		return nil, err
	}

	extensions := newExtensionData(device)
	d := &Device{
		logger:           logger,
		device:           device,
		callbacks:        callbacks,
		memoryProperties: physicalDevice.MemoryProperties(),
		limits: gpu.Limits{
			BufferImageGranularity: properties.Limits.BufferImageGranularity,
			NonCoherentAtomSize:    properties.Limits.NonCoherentAtomSize,
		},
		capabilities: capabilitiesFrom(enabledFeatures, properties.Limits, extensions),
		extensions:   extensions,
	}

	logger.Debug("Device::NewDevice",
		slog.Int("MemoryTypes", len(d.memoryProperties.MemoryTypes)),
		slog.Bool("MultiDrawIndirect", d.capabilities.MultiDrawIndirect),
		slog.Bool("MultiViewport", d.capabilities.MultiViewport),
		slog.Bool("BatchedBind", d.capabilities.BatchedBind),
	)

	return d, nil
}

func (d *Device) MemoryProperties() *core1_0.PhysicalDeviceMemoryProperties {
	return d.memoryProperties
}

func (d *Device) Limits() gpu.Limits {
	return d.limits
}

func (d *Device) Capabilities() gpu.Capabilities {
	return d.capabilities
}

func (d *Device) CreateBuffer(info core1_0.BufferCreateInfo) (gpu.Buffer, common.VkResult, error) {
	b, res, err := d.device.CreateBuffer(d.callbacks, info)
	if err != nil {
		return nil, res, err
	}

	return &buffer{buffer: b, callbacks: d.callbacks}, res, nil
}

func (d *Device) AllocateMemory(info core1_0.MemoryAllocateInfo) (gpu.Memory, common.VkResult, error) {
	m, res, err := d.device.AllocateMemory(d.callbacks, info)
	if err != nil {
		return nil, res, err
	}

	return &deviceMemory{memory: m, callbacks: d.callbacks}, res, nil
}

func (d *Device) BindBufferMemory(memory gpu.Memory, bindings []gpu.BufferBinding) (common.VkResult, error) {
	native, err := NativeMemory(memory)
	if err != nil {
		return core1_0.VKErrorUnknown, err
	}

	if d.extensions.BindMemory2 != nil {
		infos := make([]core1_1.BindBufferMemoryInfo, 0, len(bindings))
		for _, binding := range bindings {
			b, err := NativeBuffer(binding.Buffer)
			if err != nil {
				return core1_0.VKErrorUnknown, err
			}
			infos = append(infos, core1_1.BindBufferMemoryInfo{
				Buffer:       b,
				Memory:       native,
				MemoryOffset: binding.Offset,
			})
		}

		return d.extensions.BindMemory2.BindBufferMemory2(infos)
	}

	for _, binding := range bindings {
		b, err := NativeBuffer(binding.Buffer)
		if err != nil {
			return core1_0.VKErrorUnknown, err
		}

		res, err := b.BindBufferMemory(native, binding.Offset)
		if err != nil {
			return res, errors.Wrapf(err, "failed to bind buffer at offset %d", binding.Offset)
		}
	}

	return core1_0.VKSuccess, nil
}

func (d *Device) BindImageMemory(memory gpu.Memory, bindings []gpu.ImageBinding) (common.VkResult, error) {
	native, err := NativeMemory(memory)
	if err != nil {
		return core1_0.VKErrorUnknown, err
	}

	if d.extensions.BindMemory2 != nil {
		infos := make([]core1_1.BindImageMemoryInfo, 0, len(bindings))
		for _, binding := range bindings {
			i, err := NativeImage(binding.Image)
			if err != nil {
				return core1_0.VKErrorUnknown, err
			}
			infos = append(infos, core1_1.BindImageMemoryInfo{
				Image:        i,
				Memory:       native,
				MemoryOffset: uint64(binding.Offset),
			})
		}

		return d.extensions.BindMemory2.BindImageMemory2(infos)
	}

	for _, binding := range bindings {
		i, err := NativeImage(binding.Image)
		if err != nil {
			return core1_0.VKErrorUnknown, err
		}

		res, err := i.BindImageMemory(native, binding.Offset)
		if err != nil {
			return res, errors.Wrapf(err, "failed to bind image at offset %d", binding.Offset)
		}
	}

	return core1_0.VKSuccess, nil
}

func (d *Device) FlushMappedRanges(ranges []gpu.MappedRange) (common.VkResult, error) {
	if len(ranges) == 0 {
		return core1_0.VKSuccess, nil
	}

	memRanges := make([]core1_0.MappedMemoryRange, 0, len(ranges))
	for _, r := range ranges {
		native, err := NativeMemory(r.Memory)
		if err != nil {
			return core1_0.VKErrorUnknown, err
		}

		memRanges = append(memRanges, core1_0.MappedMemoryRange{
			Memory: native,
			Offset: r.Offset,
			Size:   r.Size,
		})
	}

	return d.device.FlushMappedMemoryRanges(memRanges)
}
