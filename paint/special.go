package paint

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tilerender/devmem"
	"github.com/vkngwrapper/tilerender/gpu"
	"github.com/vkngwrapper/tilerender/stream"
	"golang.org/x/exp/slog"
)

// ErrUnknownModel is returned when a special refers to a model index that was never registered
var ErrUnknownModel = errors.New("unknown special model")

// SpecialPainter draws the static objects placed on map tiles. Each special names one of the
// registered models, and a single draw can only use one model, so painting a special with a
// different model than the pending batch draws the batch first.
type SpecialPainter struct {
	*batcher[SpecialInstance]

	models       *swiss.Map[int, Model]
	currentModel int
}

func NewSpecialPainter(logger *slog.Logger, allocator *devmem.Allocator, options Options) (*SpecialPainter, error) {
	p := &SpecialPainter{
		models:       swiss.NewMap[int, Model](8),
		currentModel: -1,
	}

	var err error
	p.batcher, err = newBatcher[SpecialInstance](logger, allocator, "specials", specialRecordSize, options, p.drawSpecials)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterModel makes model available to specials under index, replacing any model already there
func (p *SpecialPainter) RegisterModel(index int, model Model) error {
	err := model.validate()
	if err != nil {
		return errors.Wrapf(err, "special model %d", index)
	}

	if index == p.currentModel {
		p.Flush()
	}
	p.models.Put(index, model)
	return nil
}

// ModelCount is the number of registered models
func (p *SpecialPainter) ModelCount() int {
	return p.models.Count()
}

// CurrentModel is the model of the batch being accumulated, or -1 before the first special
func (p *SpecialPainter) CurrentModel() int {
	return p.currentModel
}

func (p *SpecialPainter) Paint(special SpecialInstance) error {
	if !p.models.Has(special.Model) {
		return errors.Wrapf(ErrUnknownModel, "model %d", special.Model)
	}

	if special.Model != p.currentModel {
		p.Flush()
		p.currentModel = special.Model
	}
	return p.paint(special)
}

func (p *SpecialPainter) drawSpecials(cmd gpu.CommandRecorder, buffer *stream.Buffer, first, count int) {
	model, _ := p.models.Get(p.currentModel)
	drawModel(cmd, model, buffer, first, count)
}
