package gpu

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slices"
)

type vertexBinding struct {
	buffer Buffer
	offset int
}

// StateCache is a CommandRecorder that forwards to another recorder but drops binds that
// would not change the bound state. It targets one frame's command buffer at a time: call Retarget
// when a new frame starts recording, and Reset whenever the target begins a new render pass.
type StateCache struct {
	target CommandRecorder

	pipelineBound bool
	pipeline      core1_0.Pipeline

	vertexBindings []vertexBinding

	indexBound  bool
	indexBuffer Buffer
	indexOffset int
	indexType   core1_0.IndexType

	viewports []core1_0.Viewport
	scissors  []core1_0.Rect2D

	elided int
}

var _ CommandRecorder = &StateCache{}

func NewStateCache(target CommandRecorder) *StateCache {
	return &StateCache{target: target}
}

// Reset forgets all cached state so the next bind of each kind is always forwarded
func (c *StateCache) Reset() {
	c.pipelineBound = false
	c.pipeline = nil
	c.vertexBindings = c.vertexBindings[:0]
	c.indexBound = false
	c.indexBuffer = nil
	c.viewports = nil
	c.scissors = nil
}

// Retarget points the cache at the command buffer of a new frame. Bound state and the elided
// count start over.
func (c *StateCache) Retarget(target CommandRecorder) {
	c.target = target
	c.Reset()
	c.elided = 0
}

// Elided returns how many commands were dropped as redundant since the cache was created or
// last retargeted
func (c *StateCache) Elided() int {
	return c.elided
}

func (c *StateCache) BindPipeline(pipeline core1_0.Pipeline) {
	if c.pipelineBound && c.pipeline == pipeline {
		c.elided++
		return
	}

	c.pipelineBound = true
	c.pipeline = pipeline
	c.target.BindPipeline(pipeline)
}

func (c *StateCache) BindVertexBuffers(firstBinding int, buffers []Buffer, offsets []int) {
	end := firstBinding + len(buffers)
	if end <= len(c.vertexBindings) {
		same := true
		for i := range buffers {
			bound := c.vertexBindings[firstBinding+i]
			if bound.buffer != buffers[i] || bound.offset != offsets[i] {
				same = false
				break
			}
		}

		if same {
			c.elided++
			return
		}
	}

	for len(c.vertexBindings) < end {
		c.vertexBindings = append(c.vertexBindings, vertexBinding{offset: -1})
	}
	for i := range buffers {
		c.vertexBindings[firstBinding+i] = vertexBinding{buffer: buffers[i], offset: offsets[i]}
	}
	c.target.BindVertexBuffers(firstBinding, buffers, offsets)
}

func (c *StateCache) BindIndexBuffer(buffer Buffer, offset int, indexType core1_0.IndexType) {
	if c.indexBound && c.indexBuffer == buffer && c.indexOffset == offset && c.indexType == indexType {
		c.elided++
		return
	}

	c.indexBound = true
	c.indexBuffer = buffer
	c.indexOffset = offset
	c.indexType = indexType
	c.target.BindIndexBuffer(buffer, offset, indexType)
}

func (c *StateCache) PushConstants(layout core1_0.PipelineLayout, stages core1_0.ShaderStageFlags, offset int, data []byte) {
	c.target.PushConstants(layout, stages, offset, data)
}

func (c *StateCache) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	c.target.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *StateCache) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	c.target.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *StateCache) DrawIndexedIndirect(buffer Buffer, offset, drawCount, stride int) {
	c.target.DrawIndexedIndirect(buffer, offset, drawCount, stride)
}

func (c *StateCache) SetViewports(viewports []core1_0.Viewport) {
	if c.viewports != nil && slices.Equal(c.viewports, viewports) {
		c.elided++
		return
	}

	c.viewports = slices.Clone(viewports)
	c.target.SetViewports(viewports)
}

func (c *StateCache) SetScissors(scissors []core1_0.Rect2D) {
	if c.scissors != nil && slices.Equal(c.scissors, scissors) {
		c.elided++
		return
	}

	c.scissors = slices.Clone(scissors)
	c.target.SetScissors(scissors)
}
