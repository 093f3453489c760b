package paint

import "github.com/go-gl/mathgl/mgl32"

type record interface {
	encode(w *recordWriter)
}

// CircleInstance is one filled ring centered on a world position
type CircleInstance struct {
	Center    mgl32.Vec2
	Radius    float32
	Thickness float32
	Color     mgl32.Vec4
}

const circleRecordSize = 32

func (c CircleInstance) encode(w *recordWriter) {
	w.vec2(c.Center)
	w.float32(c.Radius)
	w.float32(c.Thickness)
	w.vec4(c.Color)
}

// SpecialInstance places one registered map-special model
type SpecialInstance struct {
	// Model is the index the model was registered under
	Model        int
	Position     mgl32.Vec3
	Yaw          float32
	Scale        float32
	TextureIndex uint32
}

const specialRecordSize = 24

func (s SpecialInstance) encode(w *recordWriter) {
	w.vec3(s.Position)
	w.float32(s.Yaw)
	w.float32(s.Scale)
	w.uint32(s.TextureIndex)
}

// PersonInstance places the person model
type PersonInstance struct {
	Position mgl32.Vec3
	Yaw      float32
	Color    mgl32.Vec4
}

const personRecordSize = 32

func (p PersonInstance) encode(w *recordWriter) {
	w.vec3(p.Position)
	w.float32(p.Yaw)
	w.vec4(p.Color)
}

// ShoutInstance is one expanding ring. Age runs from 0 when the shout starts to 1 when it fades out.
type ShoutInstance struct {
	Center mgl32.Vec2
	Radius float32
	Age    float32
	Color  mgl32.Vec4
}

const shoutRecordSize = 32

func (s ShoutInstance) encode(w *recordWriter) {
	w.vec2(s.Center)
	w.float32(s.Radius)
	w.float32(s.Age)
	w.vec4(s.Color)
}

// HighlightInstance marks one map tile
type HighlightInstance struct {
	TileX int32
	TileY int32
	Pulse float32
	Color mgl32.Vec4
}

const highlightRecordSize = 32

func (h HighlightInstance) encode(w *recordWriter) {
	w.int32(h.TileX)
	w.int32(h.TileY)
	w.float32(h.Pulse)
	w.float32(0)
	w.vec4(h.Color)
}
