package paint

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/stream"
)

// Pipeline is the pipeline a painter draws with. The painter pushes its transform to the layout
// as a 64-byte block at offset 0.
type Pipeline struct {
	Pipeline   core1_0.Pipeline
	Layout     core1_0.PipelineLayout
	PushStages core1_0.ShaderStageFlags
}

// Model is fixed geometry drawn once per instance
type Model struct {
	Vertices     gpu.Buffer
	VertexOffset int
	Indices      gpu.Buffer
	IndexOffset  int
	IndexCount   int
	IndexType    core1_0.IndexType
}

func (m Model) validate() error {
	if m.Vertices == nil || m.Indices == nil {
		return errors.New("model is missing its vertex or index buffer")
	}
	if m.IndexCount < 1 {
		return errors.Newf("model has %d indices", m.IndexCount)
	}
	return nil
}

// Options configures one painter
type Options struct {
	Pipeline Pipeline
	// Capacity is the number of instances per streaming buffer. When zero, the capacity is the
	// largest power of two whose records fit in Budget bytes.
	Capacity int
	Budget   int
}

func (o Options) capacity(recordSize int) int {
	if o.Capacity > 0 {
		return o.Capacity
	}
	return stream.CapacityForBudget(recordSize, o.Budget)
}

var identity = mgl32.Ident4()
