package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_bind_memory2"
	khr_bind_memory2_shim "github.com/vkngwrapper/extensions/v2/khr_bind_memory2/shim"
	"github.com/vkngwrapper/tilerender/gpu"
)

type extensionData struct {
	// BindMemory2 is nil when neither core 1.1 nor khr_bind_memory2 is active
	BindMemory2 khr_bind_memory2_shim.Shim
}

func newExtensionData(device core1_0.Device) *extensionData {
	data := &extensionData{}

	device11 := core1_1.PromoteDevice(device)
	if device11 != nil {
		// Core 1.1 active - vkBindBufferMemory2 is core
		data.BindMemory2 = device11
	}

	// khr_bind_memory2 if core 1.1 is not active
	if data.BindMemory2 == nil && device.IsDeviceExtensionActive(khr_bind_memory2.ExtensionName) {
		extension := khr_bind_memory2.CreateExtensionFromDevice(device)
		data.BindMemory2 = khr_bind_memory2_shim.NewShim(device, extension)
	}

	return data
}

func capabilitiesFrom(features *core1_0.PhysicalDeviceFeatures, limits *core1_0.PhysicalDeviceLimits, extensions *extensionData) gpu.Capabilities {
	caps := gpu.Capabilities{
		BatchedBind:          extensions != nil && extensions.BindMemory2 != nil,
		MaxDrawIndirectCount: 1,
	}

	if features != nil {
		caps.MultiDrawIndirect = features.MultiDrawIndirect
		caps.MultiViewport = features.MultiViewport
	}

	if caps.MultiDrawIndirect && limits != nil && int(limits.MaxDrawIndirectCount) > 1 {
		caps.MaxDrawIndirectCount = int(limits.MaxDrawIndirectCount)
	}

	return caps
}
