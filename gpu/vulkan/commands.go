package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"golang.org/x/exp/slog"
)

// CommandRecorder implements gpu.CommandRecorder on a vkngwrapper command buffer in the
// recording state. Buffers without a native handle are logged and the command is dropped.
type CommandRecorder struct {
	logger        *slog.Logger
	commandBuffer core1_0.CommandBuffer
}

var _ gpu.CommandRecorder = &CommandRecorder{}

func NewCommandRecorder(logger *slog.Logger, commandBuffer core1_0.CommandBuffer) *CommandRecorder {
	return &CommandRecorder{logger: logger, commandBuffer: commandBuffer}
}

func (r *CommandRecorder) native(b gpu.Buffer) (core1_0.Buffer, bool) {
	native, err := NativeBuffer(b)
	if err != nil {
		r.logger.Error("dropping command for foreign buffer", slog.Any("error", err))
		return nil, false
	}
	return native, true
}

func (r *CommandRecorder) BindPipeline(pipeline core1_0.Pipeline) {
	r.commandBuffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline)
}

func (r *CommandRecorder) BindVertexBuffers(firstBinding int, buffers []gpu.Buffer, offsets []int) {
	natives := make([]core1_0.Buffer, 0, len(buffers))
	for _, b := range buffers {
		native, ok := r.native(b)
		if !ok {
			return
		}
		natives = append(natives, native)
	}

	r.commandBuffer.CmdBindVertexBuffers(firstBinding, natives, offsets)
}

func (r *CommandRecorder) BindIndexBuffer(buffer gpu.Buffer, offset int, indexType core1_0.IndexType) {
	native, ok := r.native(buffer)
	if !ok {
		return
	}
	r.commandBuffer.CmdBindIndexBuffer(native, offset, indexType)
}

func (r *CommandRecorder) PushConstants(layout core1_0.PipelineLayout, stages core1_0.ShaderStageFlags, offset int, data []byte) {
	r.commandBuffer.CmdPushConstants(layout, stages, offset, data)
}

func (r *CommandRecorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	r.commandBuffer.CmdDraw(vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (r *CommandRecorder) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	r.commandBuffer.CmdDrawIndexed(indexCount, instanceCount, uint32(firstIndex), vertexOffset, uint32(firstInstance))
}

func (r *CommandRecorder) DrawIndexedIndirect(buffer gpu.Buffer, offset, drawCount, stride int) {
	native, ok := r.native(buffer)
	if !ok {
		return
	}
	r.commandBuffer.CmdDrawIndexedIndirect(native, offset, drawCount, stride)
}

func (r *CommandRecorder) SetViewports(viewports []core1_0.Viewport) {
	r.commandBuffer.CmdSetViewport(viewports)
}

func (r *CommandRecorder) SetScissors(scissors []core1_0.Rect2D) {
	r.commandBuffer.CmdSetScissor(scissors)
}
