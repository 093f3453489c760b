package paint

import (
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/stream"
	"golang.org/x/exp/slog"
)

// PersonPainter draws every person with one shared model
type PersonPainter struct {
	*batcher[PersonInstance]
	model Model
}

func NewPersonPainter(logger *slog.Logger, allocator *devmem.Allocator, model Model, options Options) (*PersonPainter, error) {
	err := model.validate()
	if err != nil {
		return nil, err
	}

	p := &PersonPainter{model: model}
	p.batcher, err = newBatcher[PersonInstance](logger, allocator, "persons", personRecordSize, options,
		func(cmd gpu.CommandRecorder, buffer *stream.Buffer, first, count int) {
			drawModel(cmd, p.model, buffer, first, count)
		})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PersonPainter) Paint(person PersonInstance) error {
	return p.paint(person)
}
