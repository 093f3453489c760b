package paint

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"github.com/vkngwrapper/tilerender/stream"
	"golang.org/x/exp/slog"
)

// drawBatch records the draw for count instances starting at the record first of buffer. The
// pipeline and transform are already bound.
type drawBatch func(cmd gpu.CommandRecorder, buffer *stream.Buffer, first, count int)

// batcher implements the frame protocol shared by every painter
type batcher[T record] struct {
	logger   *slog.Logger
	name     string
	pool     *stream.Pool
	pipeline Pipeline
	draw     drawBatch

	cmd       gpu.CommandRecorder
	inFrame   bool
	transform mgl32.Mat4

	pendingFirst int
	pendingCount int

	drawCalls int
	instances int
}

func newBatcher[T record](
	logger *slog.Logger,
	allocator *devmem.Allocator,
	name string,
	recordSize int,
	options Options,
	draw drawBatch,
) (*batcher[T], error) {
	pool, err := stream.New(logger, allocator, stream.Options{
		Name:       name,
		RecordSize: recordSize,
		Capacity:   options.capacity(recordSize),
		Usage:      core1_0.BufferUsageVertexBuffer,
	})
	if err != nil {
		return nil, err
	}

	return &batcher[T]{
		logger:    logger,
		name:      name,
		pool:      pool,
		pipeline:  options.Pipeline,
		draw:      draw,
		transform: identity,
	}, nil
}

// BeginFrame recycles last frame's buffers and directs draws to cmd. The command buffer that
// consumed the previous frame must have completed.
func (b *batcher[T]) BeginFrame(cmd gpu.CommandRecorder) {
	if b.inFrame {
		panic(b.name + ": BeginFrame called twice without EndFrame")
	}

	b.pool.BeginFrame()
	b.cmd = cmd
	b.inFrame = true
	b.pendingCount = 0
	b.pendingFirst = 0
}

// paint appends one instance, drawing the pending batch first if the mapped buffer is full. If
// no buffer can be mapped the instance is dropped and the error is returned.
func (b *batcher[T]) paint(instance T) error {
	if !b.inFrame {
		panic(b.name + ": Paint called outside of a frame")
	}

	buffer := b.pool.Current()
	if buffer != nil && buffer.Remaining() == 0 {
		b.Flush()
		_, err := b.pool.Retire()
		if err != nil {
			b.logger.Error("failed to retire full streaming buffer", slog.String("Painter", b.name), slog.Any("error", err))
		}
		buffer = nil
	}

	if buffer == nil {
		var err error
		buffer, _, err = b.pool.Acquire()
		if err != nil {
			return errors.Wrapf(err, "%s: instance dropped", b.name)
		}
	}

	window, first, _ := buffer.Reserve(1)
	instance.encode(&recordWriter{dst: window})

	if b.pendingCount == 0 {
		b.pendingFirst = first
	}
	b.pendingCount++
	return nil
}

// Flush draws the pending instances. It does nothing if there are none.
func (b *batcher[T]) Flush() {
	if b.pendingCount == 0 {
		return
	}

	buffer := b.pool.Current()
	b.cmd.BindPipeline(b.pipeline.Pipeline)
	b.cmd.PushConstants(b.pipeline.Layout, b.pipeline.PushStages, 0, EncodeMat4(b.transform))
	b.draw(b.cmd, buffer, b.pendingFirst, b.pendingCount)

	b.drawCalls++
	b.instances += b.pendingCount
	b.pendingFirst += b.pendingCount
	b.pendingCount = 0
}

// SetTransform changes the transform pushed with each draw. A pending batch was painted under the
// old transform, so it is drawn first.
func (b *batcher[T]) SetTransform(transform mgl32.Mat4) {
	if transform == b.transform {
		return
	}

	if b.inFrame {
		b.Flush()
	}
	b.transform = transform
}

// EndFrame draws the pending batch, then flushes and unmaps the written part of the mapped buffer
func (b *batcher[T]) EndFrame() (common.VkResult, error) {
	if !b.inFrame {
		return core1_0.VKSuccess, nil
	}

	b.Flush()
	res, err := b.pool.EndFrame()
	b.cmd = nil
	b.inFrame = false
	if err != nil {
		return res, errors.Wrapf(err, "%s: ending frame", b.name)
	}
	return res, nil
}

// Destroy releases the painter's streaming buffers. The device must be idle.
func (b *batcher[T]) Destroy() {
	b.pool.Destroy()
}

func (b *batcher[T]) Name() string {
	return b.name
}

func (b *batcher[T]) Stats() memutils.StreamStatistics {
	stats := b.pool.Stats()
	stats.DrawCalls = b.drawCalls
	stats.Instances = b.instances
	return stats
}

// Pending is the number of painted instances not yet drawn
func (b *batcher[T]) Pending() int {
	return b.pendingCount
}
