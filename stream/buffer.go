package stream

import (
	"fmt"

	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
)

// State is where a Buffer is in its per-frame lifecycle
type State int

const (
	// StateFree buffers sit in the pool's free set and may be mapped
	StateFree State = iota
	// StateMapped is the single buffer of a pool currently receiving host writes
	StateMapped
	// StateInFlight buffers were referenced by recorded draws this frame and may not be reused until
	// the next BeginFrame
	StateInFlight
)

var stateNames = map[State]string{
	StateFree:     "Free",
	StateMapped:   "Mapped",
	StateInFlight: "InFlight",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return name
}

// Buffer is one fixed-capacity streaming buffer and the memory it is bound to
type Buffer struct {
	pool       *Pool
	index      int
	buffer     gpu.Buffer
	allocation *devmem.Allocation

	state     State
	mapped    []byte
	watermark int
}

// State returns the buffer's current lifecycle state
func (b *Buffer) State() State { return b.state }

// Native returns the device buffer, for binding as a vertex or indirect buffer
func (b *Buffer) Native() gpu.Buffer { return b.buffer }

// Capacity is the number of records the buffer holds
func (b *Buffer) Capacity() int { return b.pool.options.Capacity }

// RecordSize is the size in bytes of one record
func (b *Buffer) RecordSize() int { return b.pool.options.RecordSize }

// Watermark is the number of bytes written since the buffer was last mapped
func (b *Buffer) Watermark() int { return b.watermark }

// Written is the number of records written since the buffer was last mapped
func (b *Buffer) Written() int { return b.watermark / b.pool.options.RecordSize }

// Remaining is the number of records that still fit
func (b *Buffer) Remaining() int {
	return b.Capacity() - b.Written()
}

// Reserve claims the next count records and returns the writable bytes backing them along with
// the index of the first reserved record. It returns false without reserving anything if the
// buffer is not mapped or count records do not fit.
func (b *Buffer) Reserve(count int) ([]byte, int, bool) {
	if b.state != StateMapped || count < 0 || count > b.Remaining() {
		return nil, 0, false
	}

	first := b.Written()
	start := b.watermark
	b.watermark += count * b.pool.options.RecordSize
	return b.mapped[start:b.watermark:b.watermark], first, true
}

// ByteOffset returns the offset of a record from the start of the buffer
func (b *Buffer) ByteOffset(record int) int {
	return record * b.pool.options.RecordSize
}
