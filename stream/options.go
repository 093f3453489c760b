package stream

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/tilerender/memutils"
)

// Options describes the buffers a Pool creates. Every buffer holds Capacity records of
// RecordSize bytes.
type Options struct {
	// Name identifies the pool in logs
	Name       string
	RecordSize int
	Capacity   int
	Usage      core1_0.BufferUsageFlags
}

func (o Options) validate() error {
	if o.RecordSize < 1 {
		return errors.Newf("pool %q: record size must be positive, got %d", o.Name, o.RecordSize)
	}
	if o.Capacity < 1 {
		return errors.Newf("pool %q: capacity must be positive, got %d", o.Name, o.Capacity)
	}
	return nil
}

// CapacityForBudget returns the largest power-of-two record count whose records fit in budget
// bytes. At least one record is always allowed, even when a single record exceeds the budget.
func CapacityForBudget(recordSize, budget int) int {
	if recordSize < 1 {
		return 1
	}

	capacity := memutils.PrevPow2(budget / recordSize)
	if capacity < 1 {
		return 1
	}
	return capacity
}
