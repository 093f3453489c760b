package gputest

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"golang.org/x/exp/slices"
)

type Op string

const (
	OpBindPipeline        Op = "BindPipeline"
	OpBindVertexBuffers   Op = "BindVertexBuffers"
	OpBindIndexBuffer     Op = "BindIndexBuffer"
	OpPushConstants       Op = "PushConstants"
	OpDraw                Op = "Draw"
	OpDrawIndexed         Op = "DrawIndexed"
	OpDrawIndexedIndirect Op = "DrawIndexedIndirect"
	OpSetViewports        Op = "SetViewports"
	OpSetScissors         Op = "SetScissors"
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	Pipeline  core1_0.Pipeline
	Buffers   []gpu.Buffer
	Offsets   []int
	Buffer    gpu.Buffer
	Offset    int
	IndexType core1_0.IndexType
	Data      []byte

	VertexCount   int
	IndexCount    int
	InstanceCount int
	FirstVertex   int
	FirstIndex    int
	VertexOffset  int
	FirstInstance int
	DrawCount     int
	Stride        int

	Viewports []core1_0.Viewport
	Scissors  []core1_0.Rect2D

	// Indirect holds the commands an indirect draw consumed, decoded when it was recorded
	Indirect []gpu.DrawIndexedIndirectCommand
}

// Recorder is a gpu.CommandRecorder that keeps every call in order
type Recorder struct {
	Commands []Command
}

var _ gpu.CommandRecorder = &Recorder{}

func (r *Recorder) BindPipeline(pipeline core1_0.Pipeline) {
	r.Commands = append(r.Commands, Command{Op: OpBindPipeline, Pipeline: pipeline})
}

func (r *Recorder) BindVertexBuffers(firstBinding int, buffers []gpu.Buffer, offsets []int) {
	r.Commands = append(r.Commands, Command{
		Op:          OpBindVertexBuffers,
		FirstVertex: firstBinding,
		Buffers:     slices.Clone(buffers),
		Offsets:     slices.Clone(offsets),
	})
}

func (r *Recorder) BindIndexBuffer(buffer gpu.Buffer, offset int, indexType core1_0.IndexType) {
	r.Commands = append(r.Commands, Command{Op: OpBindIndexBuffer, Buffer: buffer, Offset: offset, IndexType: indexType})
}

func (r *Recorder) PushConstants(layout core1_0.PipelineLayout, stages core1_0.ShaderStageFlags, offset int, data []byte) {
	r.Commands = append(r.Commands, Command{Op: OpPushConstants, Offset: offset, Data: slices.Clone(data)})
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	r.Commands = append(r.Commands, Command{
		Op:            OpDraw,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	r.Commands = append(r.Commands, Command{
		Op:            OpDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

func (r *Recorder) DrawIndexedIndirect(buffer gpu.Buffer, offset, drawCount, stride int) {
	command := Command{
		Op:        OpDrawIndexedIndirect,
		Buffer:    buffer,
		Offset:    offset,
		DrawCount: drawCount,
		Stride:    stride,
	}

	if fake, ok := buffer.(*Buffer); ok && fake.Memory != nil {
		contents := fake.Contents()
		for i := 0; i < drawCount; i++ {
			start := offset + i*stride
			if start+gpu.DrawIndexedIndirectStride > len(contents) {
				break
			}
			command.Indirect = append(command.Indirect, DecodeIndirect(contents[start:]))
		}
	}

	r.Commands = append(r.Commands, command)
}

func (r *Recorder) SetViewports(viewports []core1_0.Viewport) {
	r.Commands = append(r.Commands, Command{Op: OpSetViewports, Viewports: slices.Clone(viewports)})
}

func (r *Recorder) SetScissors(scissors []core1_0.Rect2D) {
	r.Commands = append(r.Commands, Command{Op: OpSetScissors, Scissors: slices.Clone(scissors)})
}

// Filter returns the recorded commands whose Op is one of ops, in recording order
func (r *Recorder) Filter(ops ...Op) []Command {
	var out []Command
	for _, command := range r.Commands {
		if slices.Contains(ops, command.Op) {
			out = append(out, command)
		}
	}
	return out
}

// Draws returns every draw command of any kind
func (r *Recorder) Draws() []Command {
	return r.Filter(OpDraw, OpDrawIndexed, OpDrawIndexedIndirect)
}

// Count returns how many commands of the given kind were recorded
func (r *Recorder) Count(op Op) int {
	return len(r.Filter(op))
}

func (r *Recorder) Reset() {
	r.Commands = nil
}
