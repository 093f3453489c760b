// Package render wires the allocator, the painters and the frame composer into one per-frame
// renderer for the tile map
package render

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/tilerender/compose"
	"github.com/vkngwrapper/tilerender/config"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/paint"
	"github.com/vkngwrapper/tilerender/stream"
	"golang.org/x/exp/slog"
)

// Assets are the objects built by the asset and pipeline loaders that the renderer draws with
type Assets struct {
	Grid         compose.TileGrid
	Mesh         compose.MapMesh
	Map          compose.MapGeometry
	PersonModel  paint.Model
	SpecialModel map[int]paint.Model

	Circles    paint.Pipeline
	Specials   paint.Pipeline
	Persons    paint.Pipeline
	Shouts     paint.Pipeline
	Highlights paint.Pipeline
}

// TileSpecials lists the map specials standing on one tile
type TileSpecials interface {
	SpecialsAt(x, y int) []paint.SpecialInstance
}

// FrameScene is everything the game logic wants drawn this frame
type FrameScene struct {
	Viewports []compose.Viewport
	Specials  TileSpecials
	// Highlights holds the highlighted tiles of each viewport, indexed like Viewports
	Highlights [][]paint.HighlightInstance
	Persons    []paint.PersonInstance
	Shouts     []paint.ShoutInstance
	Circles    []paint.CircleInstance
}

// Renderer owns every GPU object this package creates
type Renderer struct {
	logger    *slog.Logger
	allocator *devmem.Allocator

	circles    *paint.CirclePainter
	specials   *paint.SpecialPainter
	persons    *paint.PersonPainter
	shouts     *paint.ShoutPainter
	highlights *paint.HighlightPainter
	composer   *compose.Composer

	painters  []paint.Painter
	cache     *gpu.StateCache
	recording bool
	grid      compose.TileGrid
	dropped   int
}

// New builds the allocator, the painters and the composer, in that order. If any of them fails,
// everything already built is destroyed in reverse order and the error is returned.
func New(logger *slog.Logger, device gpu.Device, options config.Options, assets Assets) (*Renderer, error) {
	err := options.Validate()
	if err != nil {
		return nil, err
	}

	var unwind []func()
	fail := func(err error, stage string) (*Renderer, error) {
		for i := len(unwind) - 1; i >= 0; i-- {
			unwind[i]()
		}
		logger.Error("renderer construction failed", slog.String("Stage", stage), slog.Any("error", err))
		return nil, errors.Wrapf(err, "creating %s", stage)
	}

	r := &Renderer{logger: logger, grid: assets.Grid}

	var allocatorFlags devmem.CreateFlags
	if options.Allocator.ExternallySynchronized {
		allocatorFlags |= devmem.AllocatorCreateExternallySynchronized
	}
	r.allocator, err = devmem.New(logger, device, devmem.CreateOptions{Flags: allocatorFlags})
	if err != nil {
		return fail(err, "allocator")
	}
	unwind = append(unwind, func() {
		destroyErr := r.allocator.Destroy()
		if destroyErr != nil {
			logger.Error("allocator released with live allocations", slog.Any("error", destroyErr))
		}
	})

	large := paint.Options{Budget: options.Stream.Budget}
	small := paint.Options{Capacity: options.Stream.SmallCapacity}

	large.Pipeline = assets.Circles
	r.circles, err = paint.NewCirclePainter(logger, r.allocator, large)
	if err != nil {
		return fail(err, "circle painter")
	}
	unwind = append(unwind, r.circles.Destroy)

	large.Pipeline = assets.Specials
	r.specials, err = paint.NewSpecialPainter(logger, r.allocator, large)
	if err != nil {
		return fail(err, "special painter")
	}
	unwind = append(unwind, r.specials.Destroy)
	for index, model := range assets.SpecialModel {
		err = r.specials.RegisterModel(index, model)
		if err != nil {
			return fail(err, "special painter")
		}
	}

	large.Pipeline = assets.Persons
	r.persons, err = paint.NewPersonPainter(logger, r.allocator, assets.PersonModel, large)
	if err != nil {
		return fail(err, "person painter")
	}
	unwind = append(unwind, r.persons.Destroy)

	small.Pipeline = assets.Shouts
	r.shouts, err = paint.NewShoutPainter(logger, r.allocator, small)
	if err != nil {
		return fail(err, "shout painter")
	}
	unwind = append(unwind, r.shouts.Destroy)

	small.Pipeline = assets.Highlights
	r.highlights, err = paint.NewHighlightPainter(logger, r.allocator, small)
	if err != nil {
		return fail(err, "highlight painter")
	}
	unwind = append(unwind, r.highlights.Destroy)

	r.composer, err = compose.New(logger, r.allocator, assets.Grid, assets.Mesh, assets.Map, compose.Options{
		IndirectCapacity: stream.CapacityForBudget(gpu.DrawIndexedIndirectStride, options.Composer.IndirectBudget),
		DisableIndirect:  !options.Composer.Indirect,
	})
	if err != nil {
		return fail(err, "composer")
	}

	r.painters = []paint.Painter{r.specials, r.highlights, r.persons, r.shouts, r.circles}

	logger.Debug("Renderer::New",
		slog.Bool("Indirect", r.composer.Indirect()),
		slog.Int("SpecialModels", r.specials.ModelCount()),
	)
	return r, nil
}

// BeginFrame starts recording a frame into cmd. The command buffer of the previous frame must have
// completed: its streaming buffers are reused from here on.
func (r *Renderer) BeginFrame(cmd gpu.CommandRecorder) {
	if r.cache == nil {
		r.cache = gpu.NewStateCache(cmd)
	} else {
		r.cache.Retarget(cmd)
	}
	r.recording = true
	for _, painter := range r.painters {
		painter.BeginFrame(r.cache)
	}
}

// Draw records the map and every dynamic object of scene. Instances that could not be written
// because a streaming buffer failed to map are dropped and counted; the frame carries on.
func (r *Renderer) Draw(scene FrameScene) (compose.FrameStats, error) {
	if !r.recording {
		panic("Draw called outside of a frame")
	}

	return r.composer.Compose(r.cache, scene.Viewports, func(index int, viewport compose.Viewport, projection mgl32.Mat4) error {
		r.paintViewport(index, viewport, scene)
		return nil
	}, r.painters...)
}

func (r *Renderer) paintViewport(index int, viewport compose.Viewport, scene FrameScene) {
	if scene.Specials != nil {
		tiles, visible := compose.VisibleTiles(r.grid, viewport)
		if visible {
			for y := tiles.YMin; y < tiles.YMax; y++ {
				for x := tiles.XMin; x < tiles.XMax; x++ {
					for _, special := range scene.Specials.SpecialsAt(x, y) {
						r.check(r.specials.Paint(special))
					}
				}
			}
		}
	}

	if index < len(scene.Highlights) {
		for _, highlight := range scene.Highlights[index] {
			r.check(r.highlights.Paint(highlight))
		}
	}

	for _, person := range scene.Persons {
		r.check(r.persons.Paint(person))
	}
	for _, shout := range scene.Shouts {
		r.check(r.shouts.Paint(shout))
	}
	for _, circle := range scene.Circles {
		r.check(r.circles.Paint(circle))
	}
}

func (r *Renderer) check(err error) {
	if err == nil {
		return
	}

	r.dropped++
	if !errors.Is(err, stream.ErrMapFailed) {
		r.logger.Error("instance dropped", slog.Any("error", err))
	}
}

// EndFrame draws what the painters still hold and flushes their streaming buffers
func (r *Renderer) EndFrame() error {
	var err error
	for _, painter := range r.painters {
		_, endErr := painter.EndFrame()
		err = errors.CombineErrors(err, endErr)
	}
	r.recording = false
	return err
}

// Dropped is the number of instances that could not be painted since the renderer was created
func (r *Renderer) Dropped() int {
	return r.dropped
}

// Allocator returns the allocator backing every buffer the renderer creates
func (r *Renderer) Allocator() *devmem.Allocator {
	return r.allocator
}

// Composer returns the frame composer
func (r *Renderer) Composer() *compose.Composer {
	return r.composer
}

// Elided is the number of redundant binds skipped in the current frame
func (r *Renderer) Elided() int {
	if !r.recording {
		return 0
	}
	return r.cache.Elided()
}

// BuildStatsString describes the activity of every painter and the composer as JSON
func (r *Renderer) BuildStatsString() string {
	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("Dropped").Int(r.dropped)

	caps := objState.Name("Capabilities").Object()
	r.allocator.Device().Capabilities().PrintJSON(&caps)
	caps.End()

	painters := objState.Name("Painters").Array()
	for _, painter := range r.painters {
		painterObj := painters.Object()
		painterObj.Name("Name").String(painter.Name())
		stats := painter.Stats()
		stats.PrintJSON(&painterObj)
		painterObj.End()
	}
	painters.End()

	composerObj := objState.Name("Composer").Object()
	r.composer.PrintJSON(&composerObj)
	composerObj.End()

	objState.End()
	return string(writer.Bytes())
}

// Destroy releases everything in the reverse order it was created. The device must be idle. It
// returns an error if any device memory outlived its owner.
func (r *Renderer) Destroy() error {
	r.logger.Debug("Renderer::Destroy")

	r.composer.Destroy()
	r.highlights.Destroy()
	r.shouts.Destroy()
	r.persons.Destroy()
	r.specials.Destroy()
	r.circles.Destroy()
	return r.allocator.Destroy()
}
