package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_bind_memory2"
	"github.com/vkngwrapper/tilerender/gpu"
	"go.uber.org/mock/gomock"
)

func TestExtensionData_None(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})

	extension := newExtensionData(device)

	require.Equal(t, &extensionData{}, extension)
	require.False(t, capabilitiesFrom(nil, nil, extension).BatchedBind)
}

func TestExtensionData_Core1_1(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{})

	extension := newExtensionData(device)

	require.Equal(t, &extensionData{
		BindMemory2: device,
	}, extension)
	require.True(t, capabilitiesFrom(nil, nil, extension).BatchedBind)
}

func TestExtensionData_Core1_1IgnoresExtension(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{
		khr_bind_memory2.ExtensionName,
	})

	extension := newExtensionData(device)

	require.Equal(t, &extensionData{
		BindMemory2: device,
	}, extension)
}

func TestExtensionData_BindMemory2(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{
		khr_bind_memory2.ExtensionName,
	})

	extension := newExtensionData(device)

	require.NotNil(t, extension.BindMemory2)
	require.True(t, capabilitiesFrom(nil, nil, extension).BatchedBind)
}

func TestCapabilitiesFrom_NoFeatures(t *testing.T) {
	caps := capabilitiesFrom(nil, nil, &extensionData{})

	require.Equal(t, gpu.Capabilities{MaxDrawIndirectCount: 1}, caps)
	require.Equal(t, 1, caps.IndirectDrawLimit())
}

func TestCapabilitiesFrom_MultiDrawIndirect(t *testing.T) {
	caps := capabilitiesFrom(
		&core1_0.PhysicalDeviceFeatures{MultiDrawIndirect: true, MultiViewport: true},
		&core1_0.PhysicalDeviceLimits{MaxDrawIndirectCount: 1 << 20},
		&extensionData{},
	)

	require.True(t, caps.MultiDrawIndirect)
	require.True(t, caps.MultiViewport)
	require.False(t, caps.BatchedBind)
	require.Equal(t, 1<<20, caps.IndirectDrawLimit())
}

func TestCapabilitiesFrom_LimitIgnoredWithoutFeature(t *testing.T) {
	caps := capabilitiesFrom(
		&core1_0.PhysicalDeviceFeatures{},
		&core1_0.PhysicalDeviceLimits{MaxDrawIndirectCount: 64},
		nil,
	)

	require.False(t, caps.MultiDrawIndirect)
	require.Equal(t, 1, caps.MaxDrawIndirectCount)
}

func TestNativeMemory_Foreign(t *testing.T) {
	_, err := NativeMemory(nil)
	require.Error(t, err)

	_, err = NativeBuffer(nil)
	require.Error(t, err)

	_, err = NativeImage(nil)
	require.Error(t, err)
}
