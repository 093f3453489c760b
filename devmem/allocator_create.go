package devmem

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/internal/utils"
	"github.com/vkngwrapper/tilerender/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator and all objects created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// thread at a time or are synchronized by some other mechanism, but performance may improve because
	// internal mutexes are not used.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// MemoryCallbackOptions is an optional set of callbacks that will be executed when device memory
	// is allocated or freed by this allocator
	MemoryCallbackOptions *MemoryCallbackOptions
}

// New creates a new Allocator
//
// device - The device that resources are created on and memory is allocated from
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, device gpu.Device, options CreateOptions) (*Allocator, error) {
	memoryProperties := device.MemoryProperties()
	if memoryProperties == nil || len(memoryProperties.MemoryTypes) == 0 {
		return nil, errors.New("device reports no memory types")
	}

	limits := device.Limits()
	granularity := limits.BufferImageGranularity
	if granularity < 1 {
		granularity = 1
	}
	atomSize := limits.NonCoherentAtomSize
	if atomSize < 1 {
		atomSize = 1
	}

	err := memutils.CheckPow2(granularity, "device bufferImageGranularity")
	if err != nil {
		return nil, err
	}
	err = memutils.CheckPow2(atomSize, "device nonCoherentAtomSize")
	if err != nil {
		return nil, err
	}

	allocator := &Allocator{
		logger:              logger,
		device:              device,
		createFlags:         options.Flags,
		memoryCallbacks:     options.MemoryCallbackOptions,
		memoryProperties:    memoryProperties,
		granularity:         granularity,
		nonCoherentAtomSize: atomSize,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Flags&AllocatorCreateExternallySynchronized == 0,
		},
		allocations: swiss.NewMap[int, *Allocation](16),
	}

	logger.Debug("Allocator::New",
		slog.String("Flags", options.Flags.String()),
		slog.Int("Granularity", granularity),
		slog.Int("NonCoherentAtomSize", atomSize),
	)

	return allocator, nil
}
