// Package config holds the renderer's tunables and loads them from TOML
package config

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/tilerender/memutils"
)

type AllocatorOptions struct {
	// ExternallySynchronized disables the allocator's internal locking. Only set it when a single
	// goroutine drives the renderer.
	ExternallySynchronized bool `toml:"externally_synchronized"`
}

type StreamOptions struct {
	// Budget is the target size in bytes of one streaming buffer for painters that routinely draw
	// many instances
	Budget int `toml:"budget"`
	// SmallCapacity is the instance count of one streaming buffer for painters whose batches are
	// rarely large
	SmallCapacity int `toml:"small_capacity"`
}

type ComposerOptions struct {
	// Indirect allows map ranges to be drawn through indirect buffers on devices that support
	// multi-draw-indirect
	Indirect bool `toml:"indirect"`
	// IndirectBudget is the target size in bytes of one indirect buffer
	IndirectBudget int `toml:"indirect_budget"`
}

// Options are the renderer tunables. The zero value is not valid: start from Default.
type Options struct {
	Allocator AllocatorOptions `toml:"allocator"`
	Stream    StreamOptions    `toml:"stream"`
	Composer  ComposerOptions  `toml:"composer"`
}

// Default returns the tunables the renderer ships with
func Default() Options {
	return Options{
		Stream: StreamOptions{
			Budget:        4096,
			SmallCapacity: 16,
		},
		Composer: ComposerOptions{
			Indirect:       true,
			IndirectBudget: 4096,
		},
	}
}

// Validate reports the first invalid tunable
func (o Options) Validate() error {
	if o.Stream.Budget < 1 {
		return errors.Newf("stream.budget must be positive, got %d", o.Stream.Budget)
	}
	err := memutils.CheckPow2(o.Stream.SmallCapacity, "stream.small_capacity")
	if err != nil {
		return err
	}
	if o.Composer.IndirectBudget < 1 {
		return errors.Newf("composer.indirect_budget must be positive, got %d", o.Composer.IndirectBudget)
	}
	return nil
}

// Parse reads TOML over the defaults, so any tunable the document leaves out keeps its default
// value. Unknown keys are rejected.
func Parse(data []byte) (Options, error) {
	options := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&options)
	if err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Options{}, errors.Newf("unknown configuration keys:\n%s", strict.String())
		}
		return Options{}, errors.Wrap(err, "parsing configuration")
	}

	err = options.Validate()
	if err != nil {
		return Options{}, err
	}
	return options, nil
}

// Load parses the TOML file at path
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "reading configuration %s", path)
	}

	options, err := Parse(data)
	if err != nil {
		return Options{}, errors.Wrapf(err, "configuration %s", path)
	}
	return options, nil
}

// Encode renders options as TOML
func (o Options) Encode() ([]byte, error) {
	return toml.Marshal(o)
}
