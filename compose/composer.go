package compose

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/memutils"
	"github.com/vkngwrapper/tilerender/paint"
	"github.com/vkngwrapper/tilerender/stream"
	"golang.org/x/exp/slog"
)

// MapGeometry is the static map mesh and the pipeline it is drawn with
type MapGeometry struct {
	Vertices  gpu.Buffer
	Indices   gpu.Buffer
	IndexType core1_0.IndexType
	Pipeline  paint.Pipeline
}

// Options configures a Composer
type Options struct {
	// IndirectCapacity is the number of indirect commands per indirect buffer
	IndirectCapacity int
	// DisableIndirect forces immediate draws even when the device supports multi-draw-indirect
	DisableIndirect bool
}

// ViewportPainter paints the dynamic objects of one viewport. It runs after the viewport's map
// draw, with the viewport state already set.
type ViewportPainter func(index int, viewport Viewport, projection mgl32.Mat4) error

// FrameStats describes the work of one Compose call
type FrameStats struct {
	Viewports        int
	SkippedViewports int
	Ranges           int
	Indices          int
	DrawCalls        int
}

// Composer draws the map for every viewport of a frame, one merged range per tile row, and
// sequences the per-viewport painters between them.
//
// In indirect mode the row commands of all viewports share one indirect buffer per frame, but
// each viewport still issues its own indirect draw over its slice of that buffer. Every viewport
// pushes its own projection before drawing, so the commands of two viewports cannot be merged
// into a single draw.
type Composer struct {
	logger   *slog.Logger
	grid     TileGrid
	mesh     MapMesh
	geometry MapGeometry
	caps     gpu.Capabilities

	indirect *stream.Pool
	last     FrameStats
	total    memutils.StreamStatistics
}

// New creates a composer. When the device supports multi-draw-indirect the composer maps an
// indirect buffer immediately: if that map fails, the composer uses immediate draws for the rest
// of its life. Any other failure is returned.
func New(logger *slog.Logger, allocator *devmem.Allocator, grid TileGrid, mesh MapMesh, geometry MapGeometry, options Options) (*Composer, error) {
	if mesh == nil {
		return nil, errors.New("composer requires a map mesh")
	}
	if geometry.Vertices == nil || geometry.Indices == nil {
		return nil, errors.New("composer requires map vertex and index buffers")
	}

	c := &Composer{
		logger:   logger,
		grid:     grid,
		mesh:     mesh,
		geometry: geometry,
		caps:     allocator.Device().Capabilities(),
	}

	if !c.caps.MultiDrawIndirect || options.DisableIndirect {
		logger.Debug("Composer::New", slog.Bool("Indirect", false))
		return c, nil
	}

	capacity := options.IndirectCapacity
	if capacity < 1 {
		capacity = 1
	}
	pool, err := stream.New(logger, allocator, stream.Options{
		Name:       "indirect",
		RecordSize: gpu.DrawIndexedIndirectStride,
		Capacity:   capacity,
		Usage:      core1_0.BufferUsageIndirectBuffer,
	})
	if err != nil {
		return nil, err
	}

	pool.BeginFrame()
	_, _, err = pool.Acquire()
	if errors.Is(err, stream.ErrMapFailed) {
		logger.Warn("indirect buffer could not be mapped, using immediate draws", slog.Any("error", err))
		pool.Destroy()
		return c, nil
	} else if err != nil {
		pool.Destroy()
		return nil, err
	}

	_, err = pool.Retire()
	if err != nil {
		pool.Destroy()
		return nil, err
	}

	c.indirect = pool
	logger.Debug("Composer::New", slog.Bool("Indirect", true), slog.Int("IndirectCapacity", capacity))
	return c, nil
}

// Indirect is true when map ranges are drawn through indirect buffers
func (c *Composer) Indirect() bool {
	return c.indirect != nil
}

// Compose records the map and the dynamic objects of every viewport into cmd. The viewport state
// is only set when there is more than one viewport: a single viewport uses whatever state the
// frame began with.
//
// For each viewport, every painter in painters receives the viewport's projection, paintViewport
// is called, and the painters are flushed before the next viewport's state is set. The painters
// must already be in a frame.
//
// Compose recycles the indirect buffers of the previous call, so the command buffer recorded by
// that call must have completed.
func (c *Composer) Compose(cmd gpu.CommandRecorder, viewports []Viewport, paintViewport ViewportPainter, painters ...paint.Painter) (FrameStats, error) {
	var stats FrameStats
	if c.indirect != nil {
		c.indirect.BeginFrame()
	}

	for index, viewport := range viewports {
		if len(viewports) > 1 {
			viewportState, scissors := viewport.state()
			cmd.SetViewports(viewportState)
			cmd.SetScissors(scissors)
		}

		projection := viewport.Projection()
		tiles, visible := VisibleTiles(c.grid, viewport)
		if visible {
			stats.Viewports++
			c.drawMap(cmd, index, projection, MergeScanlines(c.mesh, tiles), &stats)
		} else {
			stats.SkippedViewports++
		}

		for _, painter := range painters {
			painter.SetTransform(projection)
		}

		if paintViewport != nil {
			err := paintViewport(index, viewport, projection)
			if err != nil {
				c.endFrame(&stats)
				return stats, errors.Wrapf(err, "painting viewport %d", index)
			}
		}

		for _, painter := range painters {
			painter.Flush()
		}
	}

	c.endFrame(&stats)
	return stats, nil
}

func (c *Composer) endFrame(stats *FrameStats) {
	if c.indirect != nil {
		_, err := c.indirect.EndFrame()
		if err != nil {
			c.logger.Error("failed to flush indirect commands", slog.Any("error", err))
		}
	}

	c.last = *stats
	c.total.DrawCalls += stats.DrawCalls
	c.total.Instances += stats.Ranges
}

func (c *Composer) drawMap(cmd gpu.CommandRecorder, viewportIndex int, projection mgl32.Mat4, ranges []IndexRange, stats *FrameStats) {
	if len(ranges) == 0 {
		return
	}

	pipeline := c.geometry.Pipeline
	cmd.BindPipeline(pipeline.Pipeline)
	cmd.PushConstants(pipeline.Layout, pipeline.PushStages, 0, paint.EncodeMat4(projection))
	cmd.BindVertexBuffers(0, []gpu.Buffer{c.geometry.Vertices}, []int{0})
	cmd.BindIndexBuffer(c.geometry.Indices, 0, c.geometry.IndexType)

	for _, r := range ranges {
		stats.Ranges++
		stats.Indices += r.IndexCount
	}

	remaining := ranges
	if c.indirect != nil {
		remaining = c.drawIndirect(cmd, viewportIndex, ranges, stats)
	}

	for _, r := range remaining {
		cmd.DrawIndexed(r.IndexCount, 1, r.FirstIndex, 0, viewportIndex)
		stats.DrawCalls++
	}
}

// drawIndirect writes ranges into indirect buffers and draws them. If an indirect buffer cannot be
// mapped it returns the ranges it did not draw.
func (c *Composer) drawIndirect(cmd gpu.CommandRecorder, viewportIndex int, ranges []IndexRange, stats *FrameStats) []IndexRange {
	limit := c.caps.IndirectDrawLimit()

	for len(ranges) > 0 {
		buffer := c.indirect.Current()
		if buffer != nil && buffer.Remaining() == 0 {
			_, err := c.indirect.Retire()
			if err != nil {
				c.logger.Error("failed to flush indirect commands", slog.Any("error", err))
			}
			buffer = nil
		}

		if buffer == nil {
			var err error
			buffer, _, err = c.indirect.Acquire()
			if err != nil {
				c.logger.Warn("falling back to immediate draws for this frame", slog.Any("error", err))
				return ranges
			}
		}

		count := buffer.Remaining()
		if count > len(ranges) {
			count = len(ranges)
		}

		window, first, _ := buffer.Reserve(count)
		for i, r := range ranges[:count] {
			encodeIndirect(window[i*gpu.DrawIndexedIndirectStride:], gpu.DrawIndexedIndirectCommand{
				IndexCount:    uint32(r.IndexCount),
				InstanceCount: 1,
				FirstIndex:    uint32(r.FirstIndex),
				VertexOffset:  0,
				FirstInstance: uint32(viewportIndex),
			})
		}

		for drawn := 0; drawn < count; drawn += limit {
			drawCount := count - drawn
			if drawCount > limit {
				drawCount = limit
			}
			cmd.DrawIndexedIndirect(buffer.Native(), buffer.ByteOffset(first+drawn), drawCount, gpu.DrawIndexedIndirectStride)
			stats.DrawCalls++
		}

		ranges = ranges[count:]
	}

	return nil
}

func encodeIndirect(dst []byte, command gpu.DrawIndexedIndirectCommand) {
	binary.LittleEndian.PutUint32(dst[0:], command.IndexCount)
	binary.LittleEndian.PutUint32(dst[4:], command.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:], command.FirstIndex)
	binary.LittleEndian.PutUint32(dst[12:], uint32(command.VertexOffset))
	binary.LittleEndian.PutUint32(dst[16:], command.FirstInstance)
}

// LastFrame returns the stats of the most recent Compose call
func (c *Composer) LastFrame() FrameStats {
	return c.last
}

// Stats returns the composer's draw totals and, when drawing indirectly, its indirect buffer
// activity
func (c *Composer) Stats() memutils.StreamStatistics {
	stats := c.total
	if c.indirect != nil {
		pool := c.indirect.Stats()
		pool.DrawCalls = 0
		pool.Instances = 0
		stats.AddStatistics(&pool)
	}
	return stats
}

func (c *Composer) PrintJSON(json *jwriter.ObjectState) {
	json.Name("Indirect").Bool(c.indirect != nil)
	stats := c.Stats()
	stats.PrintJSON(json)
}

// Destroy releases the indirect buffers. The device must be idle.
func (c *Composer) Destroy() {
	if c.indirect != nil {
		c.indirect.Destroy()
		c.indirect = nil
	}
}
