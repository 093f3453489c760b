package compose

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// TileGrid is the size of the map in tiles and the world size of one tile
type TileGrid struct {
	TilesX     int
	TilesY     int
	TileWidth  float32
	TileHeight float32
}

// Viewport is one player's view: where it lands on the framebuffer and which part of the world it
// shows
type Viewport struct {
	Rect          core1_0.Rect2D
	Center        mgl32.Vec2
	VisibleWidth  float32
	VisibleHeight float32
}

// Projection maps the visible world rectangle to clip space
func (v Viewport) Projection() mgl32.Mat4 {
	halfWidth := v.VisibleWidth / 2
	halfHeight := v.VisibleHeight / 2
	return mgl32.Ortho2D(
		v.Center.X()-halfWidth, v.Center.X()+halfWidth,
		v.Center.Y()-halfHeight, v.Center.Y()+halfHeight,
	)
}

func (v Viewport) state() ([]core1_0.Viewport, []core1_0.Rect2D) {
	viewport := core1_0.Viewport{
		X:        float32(v.Rect.Offset.X),
		Y:        float32(v.Rect.Offset.Y),
		Width:    float32(v.Rect.Extent.Width),
		Height:   float32(v.Rect.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	return []core1_0.Viewport{viewport}, []core1_0.Rect2D{v.Rect}
}

// TileRange is a half-open rectangle of tiles: XMin <= x < XMax, YMin <= y < YMax
type TileRange struct {
	XMin, XMax int
	YMin, YMax int
}

func (r TileRange) Empty() bool {
	return r.XMin >= r.XMax || r.YMin >= r.YMax
}

// Count is the number of tiles in the range
func (r TileRange) Count() int {
	if r.Empty() {
		return 0
	}
	return (r.XMax - r.XMin) * (r.YMax - r.YMin)
}

// VisibleTiles returns the tiles a viewport can see, clipped to the grid. It returns false when
// nothing of the grid is visible.
func VisibleTiles(grid TileGrid, viewport Viewport) (TileRange, bool) {
	if grid.TileWidth <= 0 || grid.TileHeight <= 0 {
		return TileRange{}, false
	}

	halfWidth := float64(viewport.VisibleWidth) / 2
	halfHeight := float64(viewport.VisibleHeight) / 2
	centerX := float64(viewport.Center.X())
	centerY := float64(viewport.Center.Y())

	r := TileRange{
		XMin: clampTile(math.Floor((centerX-halfWidth)/float64(grid.TileWidth)), grid.TilesX),
		XMax: clampTile(math.Ceil((centerX+halfWidth)/float64(grid.TileWidth)), grid.TilesX),
		YMin: clampTile(math.Floor((centerY-halfHeight)/float64(grid.TileHeight)), grid.TilesY),
		YMax: clampTile(math.Ceil((centerY+halfHeight)/float64(grid.TileHeight)), grid.TilesY),
	}

	if r.Empty() {
		return TileRange{}, false
	}
	return r, true
}

func clampTile(tile float64, limit int) int {
	if math.IsNaN(tile) || tile < 0 {
		return 0
	}
	if tile > float64(limit) {
		return limit
	}
	return int(tile)
}
