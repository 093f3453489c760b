package gpu

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/core1_0"
)

// CommandRecorder records draw work into the frame's current command buffer
type CommandRecorder interface {
	BindPipeline(pipeline core1_0.Pipeline)
	BindVertexBuffers(firstBinding int, buffers []Buffer, offsets []int)
	BindIndexBuffer(buffer Buffer, offset int, indexType core1_0.IndexType)
	PushConstants(layout core1_0.PipelineLayout, stages core1_0.ShaderStageFlags, offset int, data []byte)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)
	DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)
	DrawIndexedIndirect(buffer Buffer, offset, drawCount, stride int)

	SetViewports(viewports []core1_0.Viewport)
	SetScissors(scissors []core1_0.Rect2D)
}

// DrawIndexedIndirectCommand matches the layout of VkDrawIndexedIndirectCommand
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// DrawIndexedIndirectStride is the byte size of one DrawIndexedIndirectCommand
const DrawIndexedIndirectStride = int(unsafe.Sizeof(DrawIndexedIndirectCommand{}))
