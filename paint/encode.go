package paint

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// recordWriter packs little-endian shader inputs into a mapped window
type recordWriter struct {
	dst []byte
	off int
}

func (w *recordWriter) float32(v float32) {
	binary.LittleEndian.PutUint32(w.dst[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *recordWriter) uint32(v uint32) {
	binary.LittleEndian.PutUint32(w.dst[w.off:], v)
	w.off += 4
}

func (w *recordWriter) int32(v int32) {
	w.uint32(uint32(v))
}

func (w *recordWriter) vec2(v mgl32.Vec2) {
	w.float32(v[0])
	w.float32(v[1])
}

func (w *recordWriter) vec3(v mgl32.Vec3) {
	w.float32(v[0])
	w.float32(v[1])
	w.float32(v[2])
}

func (w *recordWriter) vec4(v mgl32.Vec4) {
	for _, c := range v {
		w.float32(c)
	}
}

// EncodeMat4 packs a column-major matrix as a 64-byte push constant block
func EncodeMat4(m mgl32.Mat4) []byte {
	out := make([]byte, 64)
	w := recordWriter{dst: out}
	for _, c := range m {
		w.float32(c)
	}
	return out
}
