package paint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"github.com/vkngwrapper/tilerender/stream"
)

// Painter is the frame protocol every painter implements. Paint is specific to each painter's
// instance type.
type Painter interface {
	Name() string
	BeginFrame(cmd gpu.CommandRecorder)
	SetTransform(transform mgl32.Mat4)
	Flush()
	EndFrame() (common.VkResult, error)
	Pending() int
	Stats() memutils.StreamStatistics
	Destroy()
}

var (
	_ Painter = &CirclePainter{}
	_ Painter = &SpecialPainter{}
	_ Painter = &PersonPainter{}
	_ Painter = &ShoutPainter{}
	_ Painter = &HighlightPainter{}
)

// drawQuads draws one four-vertex strip per instance. The quad corners come from the vertex
// index, so only the instance buffer is bound.
func drawQuads(cmd gpu.CommandRecorder, buffer *stream.Buffer, first, count int) {
	cmd.BindVertexBuffers(0, []gpu.Buffer{buffer.Native()}, []int{buffer.ByteOffset(first)})
	cmd.Draw(4, count, 0, 0)
}

// drawModel draws model once per instance, with the model's vertices at binding 0 and the
// instances at binding 1
func drawModel(cmd gpu.CommandRecorder, model Model, buffer *stream.Buffer, first, count int) {
	cmd.BindVertexBuffers(0,
		[]gpu.Buffer{model.Vertices, buffer.Native()},
		[]int{model.VertexOffset, buffer.ByteOffset(first)},
	)
	cmd.BindIndexBuffer(model.Indices, model.IndexOffset, model.IndexType)
	cmd.DrawIndexed(model.IndexCount, count, 0, 0, 0)
}
