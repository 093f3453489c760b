package vulkan

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/tilerender/gpu"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewDevice_EnabledFeatures(t *testing.T) {
	testCases := map[string]struct {
		Enabled           *core1_0.PhysicalDeviceFeatures
		MultiViewport     bool
		IndirectDrawLimit int
	}{
		"NilEnabled": {
			Enabled:           nil,
			IndirectDrawLimit: 1,
		},
		"SupportedNotEnabled": {
			Enabled:           &core1_0.PhysicalDeviceFeatures{},
			IndirectDrawLimit: 1,
		},
		"MultiDrawIndirectEnabled": {
			Enabled:           &core1_0.PhysicalDeviceFeatures{MultiDrawIndirect: true},
			IndirectDrawLimit: 1 << 20,
		},
		"AllEnabled": {
			Enabled:           &core1_0.PhysicalDeviceFeatures{MultiDrawIndirect: true, MultiViewport: true},
			MultiViewport:     true,
			IndirectDrawLimit: 1 << 20,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})

			// The hardware supports everything; only what was enabled may be reported
			physicalDevice := mocks.NewMockPhysicalDevice(ctrl)
			physicalDevice.EXPECT().Properties().Return(&core1_0.PhysicalDeviceProperties{
				Limits: &core1_0.PhysicalDeviceLimits{
					BufferImageGranularity: 1,
					NonCoherentAtomSize:    64,
					MaxDrawIndirectCount:   1 << 20,
				},
			}, nil)
			physicalDevice.EXPECT().MemoryProperties().Return(&core1_0.PhysicalDeviceMemoryProperties{})
			physicalDevice.EXPECT().Features().Return(&core1_0.PhysicalDeviceFeatures{
				MultiDrawIndirect: true,
				MultiViewport:     true,
			}).AnyTimes()

			d, err := NewDevice(testLogger(), physicalDevice, device, testCase.Enabled, nil)
			require.NoError(t, err)

			caps := d.Capabilities()
			require.Equal(t, testCase.MultiViewport, caps.MultiViewport)
			require.Equal(t, testCase.IndirectDrawLimit, caps.IndirectDrawLimit())
			require.False(t, caps.BatchedBind)
			require.Equal(t, gpu.Limits{BufferImageGranularity: 1, NonCoherentAtomSize: 64}, d.Limits())
		})
	}
}

func TestNewDevice_RejectsNonPow2Atom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	physicalDevice := mocks.NewMockPhysicalDevice(ctrl)
	physicalDevice.EXPECT().Properties().Return(&core1_0.PhysicalDeviceProperties{
		Limits: &core1_0.PhysicalDeviceLimits{
			BufferImageGranularity: 1,
			NonCoherentAtomSize:    48,
		},
	}, nil)

	_, err := NewDevice(testLogger(), physicalDevice, device, nil, nil)
	require.Error(t, err)
}

func TestDevice_BindBufferMemory_OneByOne(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)
	first := mocks.NewMockBuffer(ctrl)
	second := mocks.NewMockBuffer(ctrl)

	gomock.InOrder(
		first.EXPECT().BindBufferMemory(memory, 0).Return(core1_0.VKSuccess, nil),
		second.EXPECT().BindBufferMemory(memory, 256).Return(core1_0.VKSuccess, nil),
	)

	res, err := d.BindBufferMemory(&deviceMemory{memory: memory}, []gpu.BufferBinding{
		{Buffer: WrapBuffer(first, nil), Offset: 0},
		{Buffer: WrapBuffer(second, nil), Offset: 256},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestDevice_BindBufferMemory_OneByOneFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)
	first := mocks.NewMockBuffer(ctrl)
	second := mocks.NewMockBuffer(ctrl)

	first.EXPECT().BindBufferMemory(memory, 0).Return(core1_0.VKErrorOutOfDeviceMemory, errors.New("out of memory"))

	res, err := d.BindBufferMemory(&deviceMemory{memory: memory}, []gpu.BufferBinding{
		{Buffer: WrapBuffer(first, nil), Offset: 0},
		{Buffer: WrapBuffer(second, nil), Offset: 256},
	})
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
}

func TestDevice_BindBufferMemory_Batched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)
	first := mocks.NewMockBuffer(ctrl)
	second := mocks.NewMockBuffer(ctrl)

	device.EXPECT().BindBufferMemory2([]core1_1.BindBufferMemoryInfo{
		{Buffer: first, Memory: memory, MemoryOffset: 0},
		{Buffer: second, Memory: memory, MemoryOffset: 1024},
	}).Return(core1_0.VKSuccess, nil)

	res, err := d.BindBufferMemory(&deviceMemory{memory: memory}, []gpu.BufferBinding{
		{Buffer: WrapBuffer(first, nil), Offset: 0},
		{Buffer: WrapBuffer(second, nil), Offset: 1024},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestDevice_BindBufferMemory_ForeignBuffer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)

	// No BindBufferMemory2 expectation: nothing may reach the device
	_, err := d.BindBufferMemory(&deviceMemory{memory: memory}, []gpu.BufferBinding{
		{Buffer: nil, Offset: 0},
	})
	require.Error(t, err)
}

func TestDevice_BindImageMemory_OneByOne(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)
	image := mocks.NewMockImage(ctrl)

	image.EXPECT().BindImageMemory(memory, 4096).Return(core1_0.VKSuccess, nil)

	res, err := d.BindImageMemory(&deviceMemory{memory: memory}, []gpu.ImageBinding{
		{Image: WrapImage(image, nil), Offset: 4096},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestDevice_BindImageMemory_Batched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memory := mocks.EasyMockDeviceMemory(ctrl)
	first := mocks.NewMockImage(ctrl)
	second := mocks.NewMockImage(ctrl)

	device.EXPECT().BindImageMemory2([]core1_1.BindImageMemoryInfo{
		{Image: first, Memory: memory, MemoryOffset: 0},
		{Image: second, Memory: memory, MemoryOffset: 65536},
	}).Return(core1_0.VKSuccess, nil)

	res, err := d.BindImageMemory(&deviceMemory{memory: memory}, []gpu.ImageBinding{
		{Image: WrapImage(first, nil), Offset: 0},
		{Image: WrapImage(second, nil), Offset: 65536},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestDevice_FlushMappedRanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	memoryA := mocks.EasyMockDeviceMemory(ctrl)
	memoryB := mocks.EasyMockDeviceMemory(ctrl)

	device.EXPECT().FlushMappedMemoryRanges([]core1_0.MappedMemoryRange{
		{Memory: memoryA, Offset: 0, Size: 128},
		{Memory: memoryB, Offset: 256, Size: 64},
	}).Return(core1_0.VKSuccess, nil)

	res, err := d.FlushMappedRanges([]gpu.MappedRange{
		{Memory: &deviceMemory{memory: memoryA}, Offset: 0, Size: 128},
		{Memory: &deviceMemory{memory: memoryB}, Offset: 256, Size: 64},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestDevice_FlushMappedRanges_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	d := &Device{logger: testLogger(), device: device, extensions: newExtensionData(device)}

	res, err := d.FlushMappedRanges(nil)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}
