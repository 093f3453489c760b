package memutils

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~int64 | ~uint64 | ~uint32
}

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a power of two. Zero is
// rejected as well, since it cannot be used as an alignment.
func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return errors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two
func AlignUp[T Number](value, alignment T) T {
	return (value + alignment - 1) & ^(alignment - 1)
}

// AlignDown rounds value down to the previous multiple of alignment, which must be a power of two
func AlignDown[T Number](value, alignment T) T {
	return value & ^(alignment - 1)
}

// AlignRange expands the range [offset, offset+size) outward so that both ends sit on a multiple
// of alignment, then clamps the end to limit. It returns the new offset and size.
func AlignRange(offset, size, alignment, limit int) (int, int) {
	DebugCheckPow2(alignment, "range alignment")

	start := AlignDown(offset, alignment)
	end := AlignUp(offset+size, alignment)
	if end > limit {
		end = limit
	}
	if end < start {
		return start, 0
	}
	return start, end - start
}

// PrevPow2 returns the largest power of two that is less than or equal to value. Values below
// one return zero.
func PrevPow2(value int) int {
	if value < 1 {
		return 0
	}
	return 1 << (bits.Len(uint(value)) - 1)
}
