package vulkan

import (
	"testing"

	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/tilerender/gpu"
	mock_gpu "github.com/vkngwrapper/tilerender/gpu/mocks"
	"go.uber.org/mock/gomock"
)

func TestCommandRecorder_NativeBuffers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	commandBuffer := mocks.NewMockCommandBuffer(ctrl)
	vertices := mocks.NewMockBuffer(ctrl)
	indices := mocks.NewMockBuffer(ctrl)
	indirect := mocks.NewMockBuffer(ctrl)

	gomock.InOrder(
		commandBuffer.EXPECT().CmdBindVertexBuffers(0, []core1_0.Buffer{vertices}, []int{64}),
		commandBuffer.EXPECT().CmdBindIndexBuffer(indices, 0, core1_0.IndexTypeUInt16),
		commandBuffer.EXPECT().CmdDrawIndexed(6, 10, uint32(0), 0, uint32(4)),
		commandBuffer.EXPECT().CmdDrawIndexedIndirect(indirect, 40, 3, 20),
	)

	recorder := NewCommandRecorder(testLogger(), commandBuffer)
	recorder.BindVertexBuffers(0, []gpu.Buffer{WrapBuffer(vertices, nil)}, []int{64})
	recorder.BindIndexBuffer(WrapBuffer(indices, nil), 0, core1_0.IndexTypeUInt16)
	recorder.DrawIndexed(6, 10, 0, 0, 4)
	recorder.DrawIndexedIndirect(WrapBuffer(indirect, nil), 40, 3, 20)
}

func TestCommandRecorder_DropsForeignBuffers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Cmd* expectations: any call reaching the command buffer fails the test
	commandBuffer := mocks.NewMockCommandBuffer(ctrl)
	native := mocks.NewMockBuffer(ctrl)
	foreign := mock_gpu.NewMockBuffer(ctrl)

	recorder := NewCommandRecorder(testLogger(), commandBuffer)
	recorder.BindVertexBuffers(0, []gpu.Buffer{WrapBuffer(native, nil), foreign}, []int{0, 0})
	recorder.BindIndexBuffer(foreign, 0, core1_0.IndexTypeUInt32)
	recorder.DrawIndexedIndirect(foreign, 0, 1, 20)
	recorder.BindIndexBuffer(nil, 0, core1_0.IndexTypeUInt32)
}
